// Package catalog coordinates the product catalog's remote collections with
// the URL-backed filter state.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ziadkadry99/catalog-site/internal/backend"
	"github.com/ziadkadry99/catalog-site/internal/debounce"
	"github.com/ziadkadry99/catalog-site/internal/filters"
	"github.com/ziadkadry99/catalog-site/internal/urlstate"
)

var (
	ErrUnknownGroup    = errors.New("unknown filter group")
	ErrInvalidPage     = errors.New("page must be at least 1")
	ErrInvalidViewMode = errors.New("unknown view mode")

	// ErrStale is returned by a load whose result was discarded because a
	// newer load of the same collection was dispatched.
	ErrStale = errors.New("response superseded by a newer request")
)

// Backend is the subset of the backend client the controller needs.
type Backend interface {
	Categories(ctx context.Context) ([]backend.Category, error)
	Manufacturers(ctx context.Context) ([]string, error)
	Products(ctx context.Context, q backend.ProductQuery) (*backend.ProductPage, error)
	Autocomplete(ctx context.Context, query string) ([]string, error)
}

// Options tunes a Controller. Zero values take the defaults.
type Options struct {
	PageSize         int
	AutocompleteWait time.Duration
	MinQueryLength   int
	Notifier         Notifier
}

func (o Options) withDefaults() Options {
	if o.PageSize <= 0 {
		o.PageSize = 12
	}
	if o.AutocompleteWait <= 0 {
		o.AutocompleteWait = 300 * time.Millisecond
	}
	if o.MinQueryLength <= 0 {
		o.MinQueryLength = 2
	}
	if o.Notifier == nil {
		o.Notifier = LogNotifier{}
	}
	return o
}

// Phase is the session lifecycle stage.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseReady   Phase = "ready"
)

// Status is the load state of one collection. Err is cleared by the next
// successful load of the same collection.
type Status struct {
	Loading bool
	Err     error
}

// View is a read-only snapshot of the controller.
type View struct {
	Phase         Phase
	State         urlstate.State
	Categories    []backend.Category
	Manufacturers []string
	Products      []backend.Product
	Pagination    backend.Pagination
	Suggestions   []string
	Status        map[Collection]Status
	Refreshing    bool
	LastError     string
}

type inflight struct {
	gen    uint64
	cancel context.CancelFunc
}

// Controller owns the filter session. Methods are safe for concurrent use;
// network calls run without holding the lock and their results are applied
// only if no newer request for the same collection has been dispatched.
type Controller struct {
	backend Backend
	sync    *urlstate.Synchronizer
	store   urlstate.Persister
	opts    Options
	suggest *debounce.Debouncer[string]

	mu         sync.Mutex
	base       context.Context
	started    bool
	state      urlstate.State
	requests   [numCollections]inflight
	status     [numCollections]Status
	refreshing bool
	lastError  string

	categories    []backend.Category
	manufacturers []string
	products      []backend.Product
	pagination    backend.Pagination
	suggestions   []string
}

// NewController creates a controller mirroring its state into loc and store.
// store may be nil, in which case nothing is persisted.
func NewController(b Backend, loc urlstate.Location, store urlstate.Persister, opts Options) *Controller {
	c := &Controller{
		backend: b,
		sync:    urlstate.NewSynchronizer(loc, store),
		store:   store,
		opts:    opts.withDefaults(),
		base:    context.Background(),
		state:   urlstate.Default(),
	}
	c.suggest = debounce.New(c.opts.AutocompleteWait, func(q string) {
		c.mu.Lock()
		ctx := c.base
		c.mu.Unlock()
		c.loadSuggestions(ctx, q)
	})
	return c
}

// Start hydrates the state from the location (or storage) and loads every
// listing concurrently. ctx also bounds background autocomplete lookups.
func (c *Controller) Start(ctx context.Context) error {
	st := c.sync.Load(ctx)

	c.mu.Lock()
	c.base = ctx
	c.state = st
	c.started = true
	c.mu.Unlock()

	return c.loadListings(ctx)
}

// Close cancels every in-flight request and any pending autocomplete.
func (c *Controller) Close() {
	c.suggest.Cancel()
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.requests {
		if c.requests[i].cancel != nil {
			c.requests[i].cancel()
			c.requests[i].cancel = nil
		}
		c.requests[i].gen++
		c.status[i].Loading = false
	}
}

// View returns a copy of the current state and collections.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{
		Phase:         c.phaseLocked(),
		State:         c.state,
		Categories:    slices.Clone(c.categories),
		Manufacturers: slices.Clone(c.manufacturers),
		Products:      slices.Clone(c.products),
		Pagination:    c.pagination,
		Suggestions:   slices.Clone(c.suggestions),
		Status:        make(map[Collection]Status, numCollections),
		Refreshing:    c.refreshing,
		LastError:     c.lastError,
	}
	v.State.Filters = c.state.Filters.Clone()
	for i := Collection(0); i < numCollections; i++ {
		v.Status[i] = c.status[i]
	}
	return v
}

func (c *Controller) phaseLocked() Phase {
	if !c.started {
		return PhaseIdle
	}
	for _, coll := range Listings {
		if c.status[coll].Loading {
			return PhaseLoading
		}
	}
	return PhaseReady
}

// LoadCategories fetches the category tree.
func (c *Controller) LoadCategories(ctx context.Context) error {
	rctx, gen := c.begin(ctx, Categories)
	cats, err := c.backend.Categories(rctx)
	return c.finish(Categories, gen, err, func() { c.categories = cats })
}

// LoadManufacturers fetches the manufacturer names.
func (c *Controller) LoadManufacturers(ctx context.Context) error {
	rctx, gen := c.begin(ctx, Manufacturers)
	names, err := c.backend.Manufacturers(rctx)
	return c.finish(Manufacturers, gen, err, func() { c.manufacturers = names })
}

// LoadProducts fetches the product page matching the current state.
func (c *Controller) LoadProducts(ctx context.Context) error {
	rctx, gen := c.begin(ctx, Products)
	c.mu.Lock()
	q := ProductQuery(c.state, c.opts.PageSize)
	c.mu.Unlock()

	page, err := c.backend.Products(rctx, q)
	return c.finish(Products, gen, err, func() {
		c.products = page.Products
		c.pagination = page.Pagination
	})
}

func (c *Controller) loadSuggestions(ctx context.Context, query string) {
	rctx, gen := c.begin(ctx, Suggestions)
	names, err := c.backend.Autocomplete(rctx, strings.TrimSpace(query))
	// Suggestion failures are quiet; the search itself still works.
	c.mu.Lock()
	defer c.mu.Unlock()
	r := &c.requests[Suggestions]
	if r.gen != gen {
		return
	}
	r.cancel()
	r.cancel = nil
	c.status[Suggestions].Loading = false
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			c.status[Suggestions].Err = err
			log.Printf("catalog: loading suggestions for %q: %v", query, err)
		}
		return
	}
	c.status[Suggestions].Err = nil
	c.suggestions = names
}

// begin supersedes any in-flight request for coll and marks it loading.
func (c *Controller) begin(ctx context.Context, coll Collection) (context.Context, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r := &c.requests[coll]
	if r.cancel != nil {
		r.cancel()
	}
	r.gen++
	rctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	c.status[coll].Loading = true
	return rctx, r.gen
}

// finish applies a completed load when gen is still current. Failures are
// recorded on the collection and reported through the notifier.
func (c *Controller) finish(coll Collection, gen uint64, err error, apply func()) error {
	c.mu.Lock()
	r := &c.requests[coll]
	if r.gen != gen {
		c.mu.Unlock()
		return ErrStale
	}
	r.cancel()
	r.cancel = nil
	c.status[coll].Loading = false

	if err == nil {
		c.status[coll].Err = nil
		apply()
		c.mu.Unlock()
		return nil
	}
	if errors.Is(err, context.Canceled) {
		c.mu.Unlock()
		return err
	}
	c.status[coll].Err = err
	c.lastError = err.Error()
	c.mu.Unlock()

	c.opts.Notifier.Notify(Notification{
		Severity: SeverityError,
		Title:    "Failed to load " + coll.String(),
		Message:  err.Error(),
	})
	return err
}

func (c *Controller) loadListings(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error { return ignoreStale(c.LoadCategories(ctx)) })
	g.Go(func() error { return ignoreStale(c.LoadManufacturers(ctx)) })
	g.Go(func() error { return ignoreStale(c.LoadProducts(ctx)) })
	return g.Wait()
}

func ignoreStale(err error) error {
	if errors.Is(err, ErrStale) {
		return nil
	}
	return err
}

// RefreshData reloads every listing concurrently. A single success
// notification is sent when all of them load.
func (c *Controller) RefreshData(ctx context.Context) error {
	if inv, ok := c.backend.(interface{ InvalidateCache() }); ok {
		inv.InvalidateCache()
	}

	c.mu.Lock()
	c.refreshing = true
	c.mu.Unlock()

	err := c.loadListings(ctx)

	c.mu.Lock()
	c.refreshing = false
	c.mu.Unlock()

	if err != nil {
		return fmt.Errorf("refreshing catalog: %w", err)
	}
	c.opts.Notifier.Notify(Notification{
		Severity: SeveritySuccess,
		Title:    "Catalog refreshed",
		Message:  "Categories, manufacturers and products are up to date.",
	})
	return nil
}

// mutate applies fn to the state, mirrors the result into the location and
// storage, and loads whatever the change requires.
func (c *Controller) mutate(ctx context.Context, fn func(s urlstate.State) (urlstate.State, error)) error {
	c.mu.Lock()
	prev := c.state
	next, err := fn(prev)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.commitLocked(ctx, next)
	c.mu.Unlock()

	c.fetch(ctx, Plan(prev, next))
	return nil
}

func (c *Controller) commitLocked(ctx context.Context, next urlstate.State) {
	c.state = c.sync.Update(ctx, urlstate.Full(next))
	if c.store != nil {
		c.store.SaveSnapshot(ctx, urlstate.SnapshotOf(c.state))
	}
}

// fetch runs the planned loads in order. Their failures are reported through
// Status and the notifier, not returned.
func (c *Controller) fetch(ctx context.Context, plan []Collection) {
	for _, coll := range plan {
		var err error
		switch coll {
		case Categories:
			err = c.LoadCategories(ctx)
		case Manufacturers:
			err = c.LoadManufacturers(ctx)
		case Products:
			err = c.LoadProducts(ctx)
		}
		if err != nil && !errors.Is(err, ErrStale) && !errors.Is(err, context.Canceled) {
			log.Printf("catalog: loading %s: %v", coll, err)
		}
	}
}

// HandleSearch sets the search term and returns to page 1. Queries of at
// least MinQueryLength characters schedule a debounced autocomplete lookup;
// shorter ones clear the suggestions immediately. A non-empty accordion
// switches the open filter group.
func (c *Controller) HandleSearch(ctx context.Context, query, accordion string) error {
	if len([]rune(strings.TrimSpace(query))) >= c.opts.MinQueryLength {
		c.suggest.Call(query)
	} else {
		c.clearSuggestions()
	}

	return c.mutate(ctx, func(s urlstate.State) (urlstate.State, error) {
		s.Search = query
		s.Page = 1
		if accordion != "" {
			s.Accordion = accordion
		}
		return s, nil
	})
}

func (c *Controller) clearSuggestions() {
	c.suggest.Cancel()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearSuggestionsLocked()
}

func (c *Controller) clearSuggestionsLocked() {
	r := &c.requests[Suggestions]
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.gen++
	c.status[Suggestions] = Status{}
	c.suggestions = nil
}

// HandleFilterChange applies a checkbox change to group. The auxiliary
// group is exclusive and also drives the category; the others are plain
// multi-select.
func (c *Controller) HandleFilterChange(ctx context.Context, group filters.Group, value string, checked bool) error {
	if !group.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownGroup, group)
	}
	return c.mutate(ctx, func(s urlstate.State) (urlstate.State, error) {
		f, err := s.Filters.Toggle(group, value, checked)
		if err != nil {
			return s, err
		}
		s.Filters = f
		if group == filters.GroupAuxiliary {
			s.CategoryID = f.CategoryID()
		}
		s.Page = 1
		return s, nil
	})
}

// SwitchToCategory makes id the only selected category.
func (c *Controller) SwitchToCategory(ctx context.Context, id string) error {
	return c.mutate(ctx, func(s urlstate.State) (urlstate.State, error) {
		s.Filters = s.Filters.SelectCategory(id)
		s.CategoryID = s.Filters.CategoryID()
		s.Page = 1
		return s, nil
	})
}

// ClearAllFilters resets filters, category, search and suggestions together.
func (c *Controller) ClearAllFilters(ctx context.Context) error {
	c.suggest.Cancel()
	return c.mutate(ctx, func(s urlstate.State) (urlstate.State, error) {
		c.clearSuggestionsLocked()
		s.Filters = filters.Default()
		s.CategoryID = ""
		s.Search = ""
		s.Page = 1
		return s, nil
	})
}

// SetPage moves to page n.
func (c *Controller) SetPage(ctx context.Context, n int) error {
	if n < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidPage, n)
	}
	return c.mutate(ctx, func(s urlstate.State) (urlstate.State, error) {
		s.Page = n
		return s, nil
	})
}

// SetViewMode switches between grid and list layout.
func (c *Controller) SetViewMode(ctx context.Context, v urlstate.ViewMode) error {
	if !v.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidViewMode, v)
	}
	return c.mutate(ctx, func(s urlstate.State) (urlstate.State, error) {
		s.View = v
		return s, nil
	})
}

// SetAccordion records which filter group is open. Empty collapses all.
func (c *Controller) SetAccordion(ctx context.Context, key string) error {
	return c.mutate(ctx, func(s urlstate.State) (urlstate.State, error) {
		s.Accordion = key
		return s, nil
	})
}

// Reconcile picks up external navigation of the location, such as back or
// forward, and reloads what the new state requires. It reports whether the
// state changed.
func (c *Controller) Reconcile(ctx context.Context) (bool, error) {
	next, changed := c.sync.Reconcile()
	if !changed {
		return false, nil
	}

	c.mu.Lock()
	prev := c.state
	c.state = next
	if c.store != nil {
		c.store.SaveSnapshot(ctx, urlstate.SnapshotOf(next))
	}
	c.mu.Unlock()

	if prev.Search != next.Search {
		c.clearSuggestions()
	}
	c.fetch(ctx, Plan(prev, next))
	return true, nil
}
