package urlstate

import (
	"context"
	"net/url"
	"slices"
	"testing"

	"github.com/ziadkadry99/catalog-site/internal/filters"
)

type memPersister struct {
	saved *Snapshot
	saves int
}

func (m *memPersister) LoadSnapshot(ctx context.Context) (Snapshot, bool) {
	if m.saved == nil {
		return Snapshot{}, false
	}
	return *m.saved, true
}

func (m *memPersister) SaveSnapshot(ctx context.Context, sn Snapshot) {
	m.saved = &sn
	m.saves++
}

func mustLocation(t *testing.T, raw string) *MemoryLocation {
	t.Helper()
	loc, err := NewMemoryLocation(raw)
	if err != nil {
		t.Fatalf("NewMemoryLocation: %v", err)
	}
	return loc
}

func TestParseDefaults(t *testing.T) {
	s := Parse(url.Values{})
	if s.Page != 1 {
		t.Errorf("Page = %d, want 1", s.Page)
	}
	if s.View != ViewGrid {
		t.Errorf("View = %q, want grid", s.View)
	}
	if s.Search != "" || s.CategoryID != "" {
		t.Errorf("unexpected search/category: %+v", s)
	}
}

func TestParseBadValues(t *testing.T) {
	tests := []struct {
		query    string
		wantPage int
		wantView ViewMode
	}{
		{"page=abc", 1, ViewGrid},
		{"page=0", 1, ViewGrid},
		{"page=-3", 1, ViewGrid},
		{"page=7&view=list", 7, ViewList},
		{"view=carousel", 1, ViewGrid},
	}
	for _, tt := range tests {
		q, _ := url.ParseQuery(tt.query)
		s := Parse(q)
		if s.Page != tt.wantPage || s.View != tt.wantView {
			t.Errorf("Parse(%q) = page %d view %q, want %d %q", tt.query, s.Page, s.View, tt.wantPage, tt.wantView)
		}
	}
}

func TestParseFilterLists(t *testing.T) {
	q, _ := url.ParseQuery("auxiliary=cat-1&components=valve,pump&parts=")
	s := Parse(q)
	if !slices.Equal(s.Filters.Auxiliary, []string{"cat-1"}) {
		t.Errorf("auxiliary = %v", s.Filters.Auxiliary)
	}
	if !slices.Equal(s.Filters.Components, []string{"valve", "pump"}) {
		t.Errorf("components = %v", s.Filters.Components)
	}
	if len(s.Filters.Parts) != 0 || len(s.Filters.Products) != 0 {
		t.Errorf("expected empty parts/products, got %v %v", s.Filters.Parts, s.Filters.Products)
	}
}

func TestMergeRemovesEmptySlots(t *testing.T) {
	q, _ := url.ParseQuery("search=alt&page=3&category=c1&other=keep")
	empty := ""
	zero := 0
	f := filters.State{}

	out := Merge(q, Partial{Search: &empty, Page: &zero, CategoryID: &empty, Filters: &f})

	for _, k := range []string{ParamSearch, ParamPage, ParamCategory, "auxiliary", "components"} {
		if _, ok := out[k]; ok {
			t.Errorf("key %q should be removed, got %v", k, out[k])
		}
	}
	if out.Get("other") != "keep" {
		t.Error("unrelated keys must survive Merge")
	}
	if q.Get(ParamSearch) != "alt" {
		t.Error("Merge must not modify its input")
	}
}

func TestRoundTrip(t *testing.T) {
	states := []State{
		Default(),
		{Page: 1, View: ViewGrid, Filters: filters.State{}},
		{
			Search:     "alt",
			CategoryID: "cat-aux",
			Page:       4,
			View:       ViewList,
			Accordion:  "components",
			Filters: filters.State{
				Auxiliary:  []string{"cat-aux"},
				Components: []string{"valve", "pump"},
				Products:   []string{"acme"},
				Parts:      []string{"seal", "o ring"},
			},
		},
		{Search: "two words & more", Page: 2, View: ViewGrid, Accordion: "parts",
			Filters: filters.State{Auxiliary: []string{filters.ShowAll}, Parts: []string{"x"}}},
	}

	for i, s := range states {
		encoded := Encode(url.Values{}, s).Encode()
		q, err := url.ParseQuery(encoded)
		if err != nil {
			t.Fatalf("case %d: ParseQuery: %v", i, err)
		}
		got := Parse(q)
		if !got.Equal(s) {
			t.Errorf("case %d: round trip mismatch\n got  %+v\n want %+v\n via %s", i, got, s, encoded)
		}
	}
}

func TestLoadPrefersURL(t *testing.T) {
	loc := mustLocation(t, "/products?view=list&search=pump")
	store := &memPersister{saved: &Snapshot{Search: "stored", ViewMode: ViewGrid}}

	s := NewSynchronizer(loc, store).Load(context.Background())
	if s.Search != "pump" || s.View != ViewList {
		t.Errorf("Load = %+v, want search=pump view=list", s)
	}
}

func TestLoadFallsBackToStorage(t *testing.T) {
	loc := mustLocation(t, "/products")
	store := &memPersister{saved: &Snapshot{
		ViewMode:  ViewList,
		Accordion: "parts",
		Filters:   filters.State{Auxiliary: []string{"cat-7"}},
	}}

	s := NewSynchronizer(loc, store).Load(context.Background())
	if s.View != ViewList {
		t.Errorf("View = %q, want list", s.View)
	}
	if s.CategoryID != "cat-7" {
		t.Errorf("CategoryID = %q, want cat-7", s.CategoryID)
	}
	if got := loc.Query().Get(ParamView); got != "list" {
		t.Errorf("URL view = %q, want list written back", got)
	}
}

func TestLoadDefaultsWhenEverythingEmpty(t *testing.T) {
	loc := mustLocation(t, "/products")
	s := NewSynchronizer(loc, &memPersister{}).Load(context.Background())

	want := Default()
	if !s.Equal(want) {
		t.Errorf("Load = %+v, want %+v", s, want)
	}
	if s.Accordion != "auxiliary" {
		t.Errorf("Accordion = %q", s.Accordion)
	}
	if !slices.Equal(s.Filters.Auxiliary, []string{filters.ShowAll}) {
		t.Errorf("auxiliary = %v", s.Filters.Auxiliary)
	}
}

func TestUpdateReplacesHistoryEntry(t *testing.T) {
	loc := mustLocation(t, "/products?search=a")
	store := &memPersister{}
	sync := NewSynchronizer(loc, store)
	sync.Load(context.Background())

	term := "alt"
	page := 1
	s := sync.Update(context.Background(), Partial{Search: &term, Page: &page})

	if loc.Len() != 1 {
		t.Errorf("history length = %d, want 1", loc.Len())
	}
	if got := loc.Query().Get(ParamSearch); got != "alt" {
		t.Errorf("URL search = %q", got)
	}
	if s.Search != "alt" {
		t.Errorf("state search = %q", s.Search)
	}
	if store.saved == nil || store.saved.Search != "alt" {
		t.Errorf("snapshot not persisted: %+v", store.saved)
	}
}

func TestReconcileAfterBack(t *testing.T) {
	loc := mustLocation(t, "/products?search=first")
	sync := NewSynchronizer(loc, nil)
	sync.Load(context.Background())

	q := url.Values{}
	q.Set(ParamSearch, "second")
	loc.Navigate(q)

	s, changed := sync.Reconcile()
	if !changed || s.Search != "second" {
		t.Fatalf("Reconcile after navigate = %+v, %v", s, changed)
	}

	// Nothing moved: no change reported.
	if _, changed := sync.Reconcile(); changed {
		t.Error("second Reconcile should be a no-op")
	}

	loc.Back()
	s, changed = sync.Reconcile()
	if !changed || s.Search != "first" {
		t.Errorf("Reconcile after Back = %+v, %v", s, changed)
	}
	if loc.Len() != 2 {
		t.Errorf("Reconcile must not write history, len = %d", loc.Len())
	}
}

func TestReconcileIgnoresEquivalentQuery(t *testing.T) {
	loc := mustLocation(t, "/products?search=x&page=1")
	sync := NewSynchronizer(loc, nil)
	sync.Load(context.Background())

	// Same state, different spelling of the query.
	q, _ := url.ParseQuery("page=01&search=x")
	loc.Replace(q)

	if _, changed := sync.Reconcile(); changed {
		t.Error("equivalent query should not count as a change")
	}
}

func TestMemoryLocationHistory(t *testing.T) {
	loc := mustLocation(t, "/p?a=1")
	loc.Navigate(url.Values{"a": {"2"}})
	loc.Navigate(url.Values{"a": {"3"}})

	if !loc.Back() || !loc.Back() {
		t.Fatal("expected two Back steps")
	}
	if loc.Back() {
		t.Error("Back at start of history should fail")
	}
	loc.Navigate(url.Values{"a": {"4"}})
	if loc.Forward() {
		t.Error("Navigate should drop forward history")
	}
	if loc.String() != "/p?a=4" {
		t.Errorf("String = %q", loc.String())
	}
}
