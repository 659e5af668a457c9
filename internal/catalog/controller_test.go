package catalog

import (
	"context"
	"errors"
	"net/url"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/ziadkadry99/catalog-site/internal/backend"
	"github.com/ziadkadry99/catalog-site/internal/filters"
	"github.com/ziadkadry99/catalog-site/internal/urlstate"
)

type fakeBackend struct {
	mu             sync.Mutex
	productQueries []backend.ProductQuery
	autocompletes  []string
	catErr         error
	mfrErr         error

	// productsFn overrides the default product response when set.
	productsFn func(ctx context.Context, q backend.ProductQuery) (*backend.ProductPage, error)
}

func (f *fakeBackend) Categories(ctx context.Context) ([]backend.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.catErr != nil {
		return nil, f.catErr
	}
	return []backend.Category{{ID: "cat-aux", Name: "Auxiliary"}, {ID: "cat-pumps", Name: "Pumps"}}, nil
}

func (f *fakeBackend) Manufacturers(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mfrErr != nil {
		return nil, f.mfrErr
	}
	return []string{"Acme", "Globex"}, nil
}

func (f *fakeBackend) Products(ctx context.Context, q backend.ProductQuery) (*backend.ProductPage, error) {
	f.mu.Lock()
	f.productQueries = append(f.productQueries, q)
	fn := f.productsFn
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, q)
	}
	return &backend.ProductPage{
		Products:   []backend.Product{{ID: "p-" + q.Search, Name: "Result for " + q.Search, CategoryID: q.CategoryID}},
		Pagination: backend.Pagination{Page: q.Page, Limit: q.Limit, Total: 1, TotalPages: 1},
	}, nil
}

func (f *fakeBackend) Autocomplete(ctx context.Context, query string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.autocompletes = append(f.autocompletes, query)
	return []string{query + " valve", query + " meter"}, nil
}

func (f *fakeBackend) lastProductQuery(t *testing.T) backend.ProductQuery {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.productQueries) == 0 {
		t.Fatal("no product requests made")
	}
	return f.productQueries[len(f.productQueries)-1]
}

func (f *fakeBackend) productCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.productQueries)
}

func (f *fakeBackend) autocompleteCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.autocompletes)
}

type memPersister struct {
	mu    sync.Mutex
	saved *urlstate.Snapshot
	saves int
}

func (m *memPersister) LoadSnapshot(ctx context.Context) (urlstate.Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saved == nil {
		return urlstate.Snapshot{}, false
	}
	return *m.saved, true
}

func (m *memPersister) SaveSnapshot(ctx context.Context, sn urlstate.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = &sn
	m.saves++
}

func (m *memPersister) last() urlstate.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saved == nil {
		return urlstate.Snapshot{}
	}
	return *m.saved
}

type harness struct {
	ctrl  *Controller
	be    *fakeBackend
	loc   *urlstate.MemoryLocation
	store *memPersister
	notes *Recorder
}

func newHarness(t *testing.T, rawURL string, store *memPersister) *harness {
	t.Helper()
	loc, err := urlstate.NewMemoryLocation(rawURL)
	if err != nil {
		t.Fatalf("NewMemoryLocation: %v", err)
	}
	if store == nil {
		store = &memPersister{}
	}
	h := &harness{be: &fakeBackend{}, loc: loc, store: store, notes: &Recorder{}}
	h.ctrl = NewController(h.be, loc, store, Options{
		PageSize:         12,
		AutocompleteWait: 20 * time.Millisecond,
		Notifier:         h.notes,
	})
	t.Cleanup(h.ctrl.Close)
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	if err := h.ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
}

func TestStartLoadsListings(t *testing.T) {
	h := newHarness(t, "/products", nil)

	if got := h.ctrl.View().Phase; got != PhaseIdle {
		t.Errorf("phase before start = %s, want idle", got)
	}
	h.start(t)

	v := h.ctrl.View()
	if v.Phase != PhaseReady {
		t.Errorf("phase = %s, want ready", v.Phase)
	}
	if len(v.Categories) != 2 || len(v.Manufacturers) != 2 || len(v.Products) != 1 {
		t.Errorf("collections not loaded: %+v", v)
	}
	if !v.State.Filters.Equal(filters.Default()) || v.State.View != urlstate.ViewGrid || v.State.Page != 1 {
		t.Errorf("state = %+v, want defaults", v.State)
	}
	if got := h.loc.Query().Get("auxiliary"); got != filters.ShowAll {
		t.Errorf("auxiliary in URL = %q, want Show All", got)
	}
}

func TestRestoresViewModeFromStorage(t *testing.T) {
	store := &memPersister{saved: &urlstate.Snapshot{
		ViewMode:  urlstate.ViewList,
		Accordion: "parts",
		Filters:   filters.Default(),
	}}
	h := newHarness(t, "/products", store)
	h.start(t)

	v := h.ctrl.View()
	if v.State.View != urlstate.ViewList {
		t.Errorf("view = %s, want list", v.State.View)
	}
	if v.State.Accordion != "parts" {
		t.Errorf("accordion = %q, want parts", v.State.Accordion)
	}
	if h.loc.Query().Get("view") != "list" {
		t.Errorf("URL = %s, want view=list", h.loc)
	}
}

func TestSearchWithCategoryThenShowAll(t *testing.T) {
	h := newHarness(t, "/products", nil)
	h.start(t)
	ctx := context.Background()

	if err := h.ctrl.HandleSearch(ctx, "alt", ""); err != nil {
		t.Fatalf("HandleSearch: %v", err)
	}
	if err := h.ctrl.HandleFilterChange(ctx, filters.GroupAuxiliary, "cat-aux", true); err != nil {
		t.Fatalf("HandleFilterChange: %v", err)
	}

	q := h.be.lastProductQuery(t)
	if q.Search != "alt" || q.CategoryID != "cat-aux" {
		t.Errorf("query = %+v, want search alt in cat-aux", q)
	}

	if err := h.ctrl.HandleFilterChange(ctx, filters.GroupAuxiliary, filters.ShowAll, true); err != nil {
		t.Fatalf("HandleFilterChange(Show All): %v", err)
	}
	q = h.be.lastProductQuery(t)
	if q.Search != "alt" || q.CategoryID != "" {
		t.Errorf("query = %+v, want search alt with no category", q)
	}

	v := h.ctrl.View()
	if !slices.Equal(v.State.Filters.Auxiliary, []string{filters.ShowAll}) {
		t.Errorf("auxiliary = %v, want [Show All]", v.State.Filters.Auxiliary)
	}
	if v.State.Search != "alt" {
		t.Errorf("search = %q, want alt", v.State.Search)
	}
	if h.loc.Query().Has("category") {
		t.Errorf("URL still carries category: %s", h.loc)
	}
}

func TestExclusiveCategorySelection(t *testing.T) {
	h := newHarness(t, "/products", nil)
	h.start(t)
	ctx := context.Background()

	for _, step := range []struct {
		group filters.Group
		value string
	}{
		{filters.GroupComponents, "valve"},
		{filters.GroupParts, "seal"},
		{filters.GroupProducts, "pump"},
	} {
		if err := h.ctrl.HandleFilterChange(ctx, step.group, step.value, true); err != nil {
			t.Fatalf("HandleFilterChange(%s): %v", step.group, err)
		}
	}
	if err := h.ctrl.SetPage(ctx, 3); err != nil {
		t.Fatalf("SetPage: %v", err)
	}

	if err := h.ctrl.SwitchToCategory(ctx, "cat-pumps"); err != nil {
		t.Fatalf("SwitchToCategory: %v", err)
	}
	v := h.ctrl.View()
	f := v.State.Filters
	if len(f.Components)+len(f.Products)+len(f.Parts) != 0 {
		t.Errorf("other groups not cleared: %+v", f)
	}
	if !slices.Equal(f.Auxiliary, []string{"cat-pumps"}) || v.State.CategoryID != "cat-pumps" {
		t.Errorf("category = %v / %q", f.Auxiliary, v.State.CategoryID)
	}
	if v.State.Page != 1 {
		t.Errorf("page = %d, want reset to 1", v.State.Page)
	}

	if err := h.ctrl.HandleFilterChange(ctx, filters.GroupAuxiliary, "cat-pumps", false); err != nil {
		t.Fatalf("uncheck: %v", err)
	}
	if got := h.ctrl.View().State.Filters.Auxiliary; !slices.Equal(got, []string{filters.ShowAll}) {
		t.Errorf("auxiliary after uncheck = %v, want [Show All]", got)
	}
}

func TestValidationBeforeNetwork(t *testing.T) {
	h := newHarness(t, "/products", nil)
	h.start(t)
	ctx := context.Background()
	before := h.be.productCalls()

	if err := h.ctrl.SetPage(ctx, 0); !errors.Is(err, ErrInvalidPage) {
		t.Errorf("SetPage(0) = %v, want ErrInvalidPage", err)
	}
	if err := h.ctrl.SetViewMode(ctx, "tiles"); !errors.Is(err, ErrInvalidViewMode) {
		t.Errorf("SetViewMode(tiles) = %v, want ErrInvalidViewMode", err)
	}
	if err := h.ctrl.HandleFilterChange(ctx, "brand", "acme", true); !errors.Is(err, ErrUnknownGroup) {
		t.Errorf("HandleFilterChange(brand) = %v, want ErrUnknownGroup", err)
	}
	if got := h.be.productCalls(); got != before {
		t.Errorf("product calls = %d, want %d", got, before)
	}
}

func TestViewAndAccordionDoNotFetch(t *testing.T) {
	h := newHarness(t, "/products", nil)
	h.start(t)
	ctx := context.Background()
	before := h.be.productCalls()

	if err := h.ctrl.SetViewMode(ctx, urlstate.ViewList); err != nil {
		t.Fatalf("SetViewMode: %v", err)
	}
	if err := h.ctrl.SetAccordion(ctx, "components"); err != nil {
		t.Fatalf("SetAccordion: %v", err)
	}
	if got := h.be.productCalls(); got != before {
		t.Errorf("product calls = %d, want %d", got, before)
	}

	sn := h.store.last()
	if sn.ViewMode != urlstate.ViewList || sn.Accordion != "components" {
		t.Errorf("persisted snapshot = %+v", sn)
	}
}

func TestEveryMutationPersists(t *testing.T) {
	h := newHarness(t, "/products", nil)
	h.start(t)
	ctx := context.Background()

	if err := h.ctrl.HandleSearch(ctx, "pump", ""); err != nil {
		t.Fatal(err)
	}
	if got := h.store.last().Search; got != "pump" {
		t.Errorf("persisted search = %q", got)
	}

	if err := h.ctrl.HandleFilterChange(ctx, filters.GroupParts, "seal", true); err != nil {
		t.Fatal(err)
	}
	if got := h.store.last().Filters.Parts; !slices.Equal(got, []string{"seal"}) {
		t.Errorf("persisted parts = %v", got)
	}

	if err := h.ctrl.ClearAllFilters(ctx); err != nil {
		t.Fatal(err)
	}
	sn := h.store.last()
	if sn.Search != "" || !sn.Filters.Equal(filters.Default()) {
		t.Errorf("persisted after clear = %+v", sn)
	}
	v := h.ctrl.View()
	if v.State.Search != "" || len(v.Suggestions) != 0 {
		t.Errorf("state after clear = %+v", v.State)
	}
}

func TestFailureIsolation(t *testing.T) {
	h := newHarness(t, "/products", nil)
	h.be.mfrErr = errors.New("manufacturers offline")

	if err := h.ctrl.Start(context.Background()); err == nil {
		t.Fatal("expected start to report the manufacturers failure")
	}

	v := h.ctrl.View()
	if len(v.Categories) != 2 || len(v.Products) != 1 {
		t.Errorf("other collections should load: %+v", v)
	}
	if v.Status[Manufacturers].Err == nil || v.Status[Categories].Err != nil {
		t.Errorf("status = %+v", v.Status)
	}
	if v.Status[Manufacturers].Loading {
		t.Error("loading flag left set after failure")
	}
	if v.LastError == "" {
		t.Error("LastError not set")
	}
	if got := h.notes.Count(SeverityError); got != 1 {
		t.Errorf("error notifications = %d, want 1", got)
	}

	h.be.mu.Lock()
	h.be.mfrErr = nil
	h.be.mu.Unlock()
	if err := h.ctrl.LoadManufacturers(context.Background()); err != nil {
		t.Fatalf("LoadManufacturers: %v", err)
	}
	if st := h.ctrl.View().Status[Manufacturers]; st.Err != nil {
		t.Errorf("error not cleared by successful load: %v", st.Err)
	}
}

func TestRefreshData(t *testing.T) {
	h := newHarness(t, "/products", nil)
	h.start(t)
	ctx := context.Background()

	if err := h.ctrl.RefreshData(ctx); err != nil {
		t.Fatalf("RefreshData: %v", err)
	}
	if got := h.notes.Count(SeveritySuccess); got != 1 {
		t.Errorf("success notifications = %d, want 1", got)
	}
	if h.ctrl.View().Refreshing {
		t.Error("refreshing flag left set")
	}

	h.be.mu.Lock()
	h.be.catErr = errors.New("boom")
	h.be.mu.Unlock()
	if err := h.ctrl.RefreshData(ctx); err == nil {
		t.Fatal("expected refresh error")
	}
	if got := h.notes.Count(SeveritySuccess); got != 1 {
		t.Errorf("success notifications after failure = %d, want still 1", got)
	}
}

func TestStaleProductResponseDiscarded(t *testing.T) {
	h := newHarness(t, "/products", nil)
	h.start(t)
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	var sawCancel bool
	h.be.mu.Lock()
	h.be.productsFn = func(rctx context.Context, q backend.ProductQuery) (*backend.ProductPage, error) {
		if q.Search != "old" {
			return &backend.ProductPage{Products: []backend.Product{{ID: "new"}}}, nil
		}
		close(started)
		<-release
		// Answer regardless of cancellation so the generation check is what
		// keeps the result out.
		sawCancel = rctx.Err() != nil
		return &backend.ProductPage{Products: []backend.Product{{ID: "old"}}}, nil
	}
	h.be.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- h.ctrl.HandleSearch(ctx, "old", "") }()
	<-started

	if err := h.ctrl.HandleSearch(ctx, "new", ""); err != nil {
		t.Fatalf("HandleSearch(new): %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("HandleSearch(old): %v", err)
	}

	v := h.ctrl.View()
	if len(v.Products) != 1 || v.Products[0].ID != "new" {
		t.Errorf("products = %+v, want the newer response", v.Products)
	}
	if v.Status[Products].Loading {
		t.Error("products still marked loading")
	}
	if !sawCancel {
		t.Error("superseded request context was not cancelled")
	}
}

func TestAutocompleteDebounced(t *testing.T) {
	h := newHarness(t, "/products", nil)
	h.start(t)
	ctx := context.Background()

	for _, q := range []string{"v", "va", "val", "valv"} {
		if err := h.ctrl.HandleSearch(ctx, q, ""); err != nil {
			t.Fatal(err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(h.ctrl.View().Suggestions) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("suggestions never arrived")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := h.be.autocompleteCalls(); !slices.Equal(got, []string{"valv"}) {
		t.Errorf("autocomplete calls = %v, want [valv]", got)
	}

	// Too short: cleared at once, no lookup.
	if err := h.ctrl.HandleSearch(ctx, " a ", ""); err != nil {
		t.Fatal(err)
	}
	if got := h.ctrl.View().Suggestions; len(got) != 0 {
		t.Errorf("suggestions = %v, want cleared", got)
	}
	time.Sleep(60 * time.Millisecond)
	if got := len(h.be.autocompleteCalls()); got != 1 {
		t.Errorf("autocomplete calls = %d, want 1", got)
	}
}

func TestHandleSearchSwitchesAccordion(t *testing.T) {
	h := newHarness(t, "/products", nil)
	h.start(t)

	if err := h.ctrl.HandleSearch(context.Background(), "x", "products"); err != nil {
		t.Fatal(err)
	}
	if got := h.ctrl.View().State.Accordion; got != "products" {
		t.Errorf("accordion = %q, want products", got)
	}
}

func TestReconcileAfterBack(t *testing.T) {
	h := newHarness(t, "/products?search=first", nil)
	h.loc.Navigate(url.Values{"search": {"second"}})
	h.start(t)
	ctx := context.Background()

	if got := h.be.lastProductQuery(t).Search; got != "second" {
		t.Fatalf("initial search = %q, want second", got)
	}

	h.loc.Back()
	changed, err := h.ctrl.Reconcile(ctx)
	if err != nil || !changed {
		t.Fatalf("Reconcile = %v, %v", changed, err)
	}
	if got := h.be.lastProductQuery(t).Search; got != "first" {
		t.Errorf("search after back = %q, want first", got)
	}
	if got := h.store.last().Search; got != "first" {
		t.Errorf("persisted search = %q, want first", got)
	}

	calls := h.be.productCalls()
	if changed, _ := h.ctrl.Reconcile(ctx); changed {
		t.Error("second Reconcile reported a change")
	}
	if h.be.productCalls() != calls {
		t.Error("unchanged Reconcile fetched products")
	}
}

func TestClearAllFiltersDropsSuggestions(t *testing.T) {
	h := newHarness(t, "/products?search=valve&category=cat-pumps", nil)
	h.start(t)
	ctx := context.Background()

	if err := h.ctrl.HandleSearch(ctx, "valve", ""); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for len(h.ctrl.View().Suggestions) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("suggestions never arrived")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// A lookup still waiting on the debounce must not land after the reset.
	if err := h.ctrl.HandleSearch(ctx, "pump", ""); err != nil {
		t.Fatal(err)
	}
	if err := h.ctrl.ClearAllFilters(ctx); err != nil {
		t.Fatal(err)
	}
	v := h.ctrl.View()
	if v.State.Search != "" || v.State.CategoryID != "" || len(v.Suggestions) != 0 {
		t.Errorf("after clear: search=%q category=%q suggestions=%v", v.State.Search, v.State.CategoryID, v.Suggestions)
	}

	time.Sleep(60 * time.Millisecond)
	if got := h.ctrl.View().Suggestions; len(got) != 0 {
		t.Errorf("suggestions reappeared: %v", got)
	}
	if got := h.be.autocompleteCalls(); slices.Contains(got, "pump") {
		t.Errorf("autocomplete calls = %v, pending lookup was not cancelled", got)
	}
}
