package catalog

import (
	"slices"

	"github.com/ziadkadry99/catalog-site/internal/backend"
	"github.com/ziadkadry99/catalog-site/internal/urlstate"
)

// Collection names one independently loaded remote collection.
type Collection int

const (
	Categories Collection = iota
	Manufacturers
	Products
	Suggestions
	numCollections
)

func (c Collection) String() string {
	switch c {
	case Categories:
		return "categories"
	case Manufacturers:
		return "manufacturers"
	case Products:
		return "products"
	case Suggestions:
		return "suggestions"
	}
	return "unknown"
}

// Listings are the collections loaded on start and on refresh.
var Listings = []Collection{Categories, Manufacturers, Products}

// Plan returns the collections that must be fetched after the state moves
// from prev to next. Categories and manufacturers do not depend on the view
// state and are only loaded on start and refresh; suggestions are driven by
// search input directly. View mode and accordion changes need nothing.
func Plan(prev, next urlstate.State) []Collection {
	if !productQueryEqual(ProductQuery(prev, 0), ProductQuery(next, 0)) {
		return []Collection{Products}
	}
	return nil
}

// ProductQuery derives the product listing request for s. The category is
// taken from the auxiliary filter when it names one, else from the category
// slot.
func ProductQuery(s urlstate.State, limit int) backend.ProductQuery {
	cat := s.Filters.CategoryID()
	if cat == "" && len(s.Filters.Auxiliary) == 0 {
		cat = s.CategoryID
	}
	page := s.Page
	if page < 1 {
		page = 1
	}
	return backend.ProductQuery{
		Search:     s.Search,
		CategoryID: cat,
		Components: s.Filters.Components,
		Products:   s.Filters.Products,
		Parts:      s.Filters.Parts,
		Page:       page,
		Limit:      limit,
	}
}

func productQueryEqual(a, b backend.ProductQuery) bool {
	return a.Search == b.Search &&
		a.CategoryID == b.CategoryID &&
		a.Page == b.Page &&
		a.Limit == b.Limit &&
		slices.Equal(a.Components, b.Components) &&
		slices.Equal(a.Products, b.Products) &&
		slices.Equal(a.Parts, b.Parts)
}
