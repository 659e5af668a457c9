// Package urlstate keeps the catalog view state mirrored in a query string,
// with durable storage as the fallback when the query string is empty.
package urlstate

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/ziadkadry99/catalog-site/internal/filters"
)

// ViewMode selects how the product listing is laid out.
type ViewMode string

const (
	ViewGrid ViewMode = "grid"
	ViewList ViewMode = "list"
)

// Valid reports whether v is a known view mode.
func (v ViewMode) Valid() bool {
	return v == ViewGrid || v == ViewList
}

// Query parameter keys.
const (
	ParamSearch    = "search"
	ParamView      = "view"
	ParamAccordion = "accordion"
	ParamCategory  = "category"
	ParamPage      = "page"
)

// DefaultAccordion is the filter group opened on a fresh session.
const DefaultAccordion = string(filters.GroupAuxiliary)

// Keys lists every query parameter owned by the synchronizer.
func Keys() []string {
	keys := []string{ParamSearch, ParamView, ParamAccordion, ParamCategory, ParamPage}
	for _, g := range filters.Groups {
		keys = append(keys, string(g))
	}
	return keys
}

// State is the full URL-backed view state.
type State struct {
	Search     string
	CategoryID string
	Page       int
	View       ViewMode
	Accordion  string
	Filters    filters.State
}

// Default returns the state used when neither the URL nor storage has one.
func Default() State {
	return State{
		Page:      1,
		View:      ViewGrid,
		Accordion: DefaultAccordion,
		Filters:   filters.Default(),
	}
}

// Equal compares two states.
func (s State) Equal(o State) bool {
	return s.Search == o.Search &&
		s.CategoryID == o.CategoryID &&
		s.Page == o.Page &&
		s.View == o.View &&
		s.Accordion == o.Accordion &&
		s.Filters.Equal(o.Filters)
}

// HasState reports whether q carries any key owned by the synchronizer.
func HasState(q url.Values) bool {
	for _, k := range Keys() {
		if _, ok := q[k]; ok {
			return true
		}
	}
	return false
}

// Parse reads a State from q. A missing or unparseable page is 1 and a
// missing or unknown view is grid. Absent filter keys parse as empty.
func Parse(q url.Values) State {
	s := State{
		Search:     q.Get(ParamSearch),
		CategoryID: q.Get(ParamCategory),
		Page:       1,
		View:       ViewGrid,
		Accordion:  q.Get(ParamAccordion),
	}

	if p, err := strconv.Atoi(q.Get(ParamPage)); err == nil && p >= 1 {
		s.Page = p
	}
	if v := ViewMode(q.Get(ParamView)); v.Valid() {
		s.View = v
	}

	f := filters.State{}
	for _, g := range filters.Groups {
		f = f.With(g, splitList(q.Get(string(g))))
	}
	s.Filters = f
	return s
}

// Partial is a sparse update. Nil fields are left untouched.
type Partial struct {
	Search     *string
	CategoryID *string
	Page       *int
	View       *ViewMode
	Accordion  *string
	Filters    *filters.State
}

// Full returns a Partial that sets every slot of s.
func Full(s State) Partial {
	f := s.Filters
	return Partial{
		Search:     &s.Search,
		CategoryID: &s.CategoryID,
		Page:       &s.Page,
		View:       &s.View,
		Accordion:  &s.Accordion,
		Filters:    &f,
	}
}

// Apply merges p into s.
func (p Partial) Apply(s State) State {
	if p.Search != nil {
		s.Search = *p.Search
	}
	if p.CategoryID != nil {
		s.CategoryID = *p.CategoryID
	}
	if p.Page != nil {
		s.Page = *p.Page
	}
	if p.View != nil {
		s.View = *p.View
	}
	if p.Accordion != nil {
		s.Accordion = *p.Accordion
	}
	if p.Filters != nil {
		s.Filters = p.Filters.Clone()
	}
	return s
}

// Merge writes p into a copy of q. Empty strings, zero numbers and empty
// lists remove their key instead of serialising an empty value.
func Merge(q url.Values, p Partial) url.Values {
	out := cloneValues(q)

	if p.Search != nil {
		setOrDelete(out, ParamSearch, *p.Search)
	}
	if p.CategoryID != nil {
		setOrDelete(out, ParamCategory, *p.CategoryID)
	}
	if p.Page != nil {
		if *p.Page == 0 {
			out.Del(ParamPage)
		} else {
			out.Set(ParamPage, strconv.Itoa(*p.Page))
		}
	}
	if p.View != nil {
		setOrDelete(out, ParamView, string(*p.View))
	}
	if p.Accordion != nil {
		setOrDelete(out, ParamAccordion, *p.Accordion)
	}
	if p.Filters != nil {
		for _, g := range filters.Groups {
			setOrDelete(out, string(g), strings.Join(p.Filters.Values(g), ","))
		}
	}
	return out
}

// Encode serialises s on top of base.
func Encode(base url.Values, s State) url.Values {
	return Merge(base, Full(s))
}

func setOrDelete(q url.Values, key, value string) {
	if value == "" {
		q.Del(key)
		return
	}
	q.Set(key, value)
}

func splitList(raw string) []string {
	if raw == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func cloneValues(q url.Values) url.Values {
	out := make(url.Values, len(q))
	for k, v := range q {
		out[k] = append([]string(nil), v...)
	}
	return out
}
