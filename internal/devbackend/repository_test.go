package devbackend

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/ziadkadry99/catalog-site/internal/backend"
	"github.com/ziadkadry99/catalog-site/internal/db"
)

func setupTestRepo(t *testing.T) *Repository {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	repo := NewRepository(database, DefaultSeed())
	if err := repo.Reset(context.Background()); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	return repo
}

func productIDs(ps []backend.Product) []string {
	ids := make([]string, len(ps))
	for i, p := range ps {
		ids[i] = p.ID
	}
	return ids
}

func TestCategoryTree(t *testing.T) {
	repo := setupTestRepo(t)

	cats, err := repo.Categories(context.Background())
	if err != nil {
		t.Fatalf("Categories: %v", err)
	}
	if len(cats) != 3 {
		t.Fatalf("top-level categories = %d, want 3", len(cats))
	}
	if cats[0].ID != "cat-aux" || len(cats[0].Subcategories) != 1 || cats[0].Subcategories[0].ID != "cat-aux-meters" {
		t.Errorf("tree = %+v", cats[0])
	}
}

func TestProductFilters(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	tests := []struct {
		name string
		f    ProductFilter
		want []string
	}{
		{"search", ProductFilter{Search: "alt"}, []string{"prod-alt-bracket", "prod-altimeter"}},
		{"category includes subcategories", ProductFilter{CategoryID: "cat-aux"}, []string{"prod-alt-bracket", "prod-altimeter", "prod-flow-meter"}},
		{"search within category", ProductFilter{Search: "alt", CategoryID: "cat-aux-meters"}, []string{"prod-altimeter"}},
		{"parts", ProductFilter{Parts: []string{"gasket"}}, []string{"prod-ball-valve", "prod-diaphragm"}},
		{"manufacturers and parts", ProductFilter{Manufacturers: []string{"Acme"}, Parts: []string{"seal", "gasket"}}, []string{"prod-ball-valve", "prod-flow-meter"}},
		{"components", ProductFilter{Components: []string{"sensor"}}, []string{"prod-altimeter", "prod-flow-meter"}},
		{"no match", ProductFilter{Search: "zzz"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _, err := repo.Products(ctx, tt.f)
			if err != nil {
				t.Fatalf("Products: %v", err)
			}
			if ids := productIDs(got); !slices.Equal(ids, tt.want) {
				t.Errorf("ids = %v, want %v", ids, tt.want)
			}
		})
	}
}

func TestProductPagination(t *testing.T) {
	repo := setupTestRepo(t)

	got, pg, err := repo.Products(context.Background(), ProductFilter{Page: 2, Limit: 4})
	if err != nil {
		t.Fatalf("Products: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("page 2 size = %d, want 2", len(got))
	}
	want := backend.Pagination{Page: 2, Limit: 4, Total: 6, TotalPages: 2, HasNext: false, HasPrev: true}
	if pg != want {
		t.Errorf("pagination = %+v, want %+v", pg, want)
	}
}

func TestAutocompletePrefixFirst(t *testing.T) {
	repo := setupTestRepo(t)

	got, err := repo.Autocomplete(context.Background(), "al", 8)
	if err != nil {
		t.Fatalf("Autocomplete: %v", err)
	}
	want := []string{"Alternator Bracket", "Altimeter AX-200", "Ball Valve BV-25", "Centrifugal Pump CP-4"}
	if !slices.Equal(got, want) {
		t.Errorf("suggestions = %v, want %v", got, want)
	}
}

func TestManufacturersAndJobs(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	names, err := repo.Manufacturers(ctx)
	if err != nil {
		t.Fatalf("Manufacturers: %v", err)
	}
	if !slices.Equal(names, []string{"Acme", "Globex", "Initech"}) {
		t.Errorf("manufacturers = %v", names)
	}

	jobs, err := repo.Jobs(ctx)
	if err != nil {
		t.Fatalf("Jobs: %v", err)
	}
	if len(jobs) != 2 {
		t.Errorf("active jobs = %d, want 2", len(jobs))
	}
}

func TestCategoryCRUD(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	c, err := repo.CreateCategory(ctx, CategoryInput{Name: "Hose Fittings", ParentID: "cat-pumps"})
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	if c.Slug != "hose-fittings" || c.ParentID != "cat-pumps" || c.ID == "" {
		t.Errorf("created = %+v", c)
	}

	if _, err := repo.CreateCategory(ctx, CategoryInput{Name: "Hose fittings"}); !errors.Is(err, ErrInvalid) {
		t.Errorf("duplicate slug err = %v, want ErrInvalid", err)
	}
	if _, err := repo.CreateCategory(ctx, CategoryInput{Name: "  "}); !errors.Is(err, ErrInvalid) {
		t.Errorf("empty name err = %v, want ErrInvalid", err)
	}
	if _, err := repo.UpdateCategory(ctx, c.ID, CategoryInput{Name: "Loop", ParentID: c.ID}); !errors.Is(err, ErrInvalid) {
		t.Errorf("self parent err = %v, want ErrInvalid", err)
	}

	updated, err := repo.UpdateCategory(ctx, c.ID, CategoryInput{Name: "Fittings", Slug: "fittings"})
	if err != nil {
		t.Fatalf("UpdateCategory: %v", err)
	}
	if updated.Name != "Fittings" || updated.ParentID != "" {
		t.Errorf("updated = %+v", updated)
	}

	if err := repo.DeleteCategory(ctx, "cat-aux"); err != nil {
		t.Fatalf("DeleteCategory: %v", err)
	}
	if _, err := repo.Category(ctx, "cat-aux-meters"); !errors.Is(err, ErrNotFound) {
		t.Errorf("subcategory survived delete: %v", err)
	}
	got, _, _ := repo.Products(ctx, ProductFilter{Search: "meter"})
	if len(got) != 0 {
		t.Errorf("products of deleted category remain: %v", productIDs(got))
	}
	if err := repo.DeleteCategory(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("delete missing err = %v, want ErrNotFound", err)
	}
}

func TestUpdateCategoryRejectsCycle(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	a, err := repo.CreateCategory(ctx, CategoryInput{Name: "Hydraulics"})
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	b, err := repo.CreateCategory(ctx, CategoryInput{Name: "Hydraulic Seals", ParentID: a.ID})
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	c, err := repo.CreateCategory(ctx, CategoryInput{Name: "O-Rings", ParentID: b.ID})
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}

	for _, parent := range []string{b.ID, c.ID} {
		if _, err := repo.UpdateCategory(ctx, a.ID, CategoryInput{Name: "Hydraulics", ParentID: parent}); !errors.Is(err, ErrInvalid) {
			t.Errorf("parent %s: err = %v, want ErrInvalid", parent, err)
		}
	}
	// Moving under an unrelated branch is fine.
	if _, err := repo.UpdateCategory(ctx, a.ID, CategoryInput{Name: "Hydraulics", ParentID: "cat-pumps"}); err != nil {
		t.Errorf("valid move: %v", err)
	}
}

func TestDeleteCategoryTerminatesOnCycle(t *testing.T) {
	repo := setupTestRepo(t)

	// Cycles can only come from data written outside the repository.
	if _, err := repo.db.Exec(`UPDATE categories SET parent_id = 'cat-aux-meters' WHERE id = 'cat-aux'`); err != nil {
		t.Fatalf("creating cycle: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := repo.DeleteCategory(ctx, "cat-aux"); err != nil {
		t.Fatalf("DeleteCategory: %v", err)
	}
	if _, err := repo.Category(ctx, "cat-aux-meters"); !errors.Is(err, ErrNotFound) {
		t.Errorf("cycle member survived delete: %v", err)
	}
}

func TestResetRestoresSeed(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	if _, err := repo.CreateContact(ctx, backend.ContactSubmission{Name: "Ada", Email: "ada@example.com", Message: "hi"}); err != nil {
		t.Fatalf("CreateContact: %v", err)
	}
	if err := repo.DeleteCategory(ctx, "cat-pumps"); err != nil {
		t.Fatalf("DeleteCategory: %v", err)
	}

	if err := repo.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	subs, _ := repo.Contacts(ctx)
	if len(subs) != 0 {
		t.Errorf("contacts after reset = %d, want 0", len(subs))
	}
	if _, err := repo.Category(ctx, "cat-pumps"); err != nil {
		t.Errorf("seed category missing after reset: %v", err)
	}
}

func TestContactValidation(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	bad := []backend.ContactSubmission{
		{Email: "a@b.c", Message: "m"},
		{Name: "n", Email: "not-an-email", Message: "m"},
		{Name: "n", Email: "a@b.c", Message: " "},
	}
	for _, sub := range bad {
		if _, err := repo.CreateContact(ctx, sub); !errors.Is(err, ErrInvalid) {
			t.Errorf("CreateContact(%+v) err = %v, want ErrInvalid", sub, err)
		}
	}
}

func TestSettings(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	if err := repo.PutSettings(ctx, map[string]string{"site_name": "Parts Co", "phone": "555"}); err != nil {
		t.Fatalf("PutSettings: %v", err)
	}
	got, err := repo.Settings(ctx)
	if err != nil {
		t.Fatalf("Settings: %v", err)
	}
	if got["site_name"] != "Parts Co" || got["phone"] != "555" || got["contact_email"] != "sales@example.com" {
		t.Errorf("settings = %v", got)
	}
}

type countingReporter struct {
	total, last int
	finished    bool
}

func (r *countingReporter) Start(total int) { r.total = total }

func (r *countingReporter) Update(n int, msg string) { r.last = n }

func (r *countingReporter) Finish() { r.finished = true }

func TestImportUpserts(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	seed, err := ParseSeed([]byte(`
categories:
  - id: cat-seals
    name: Seals
products:
  - id: prod-altimeter
    name: Altimeter AX-300
    category_id: cat-aux-meters
    manufacturer: Acme
  - id: prod-oring
    name: O-Ring Kit
    category_id: cat-seals
    manufacturer: Umbrella
`))
	if err != nil {
		t.Fatalf("ParseSeed: %v", err)
	}
	rep := &countingReporter{}
	if err := repo.Import(ctx, seed, rep); err != nil {
		t.Fatalf("Import: %v", err)
	}
	if rep.total != 3 || rep.last != 3 || !rep.finished {
		t.Errorf("reporter = %+v", rep)
	}

	got, _, _ := repo.Products(ctx, ProductFilter{Search: "Altimeter"})
	if len(got) != 1 || got[0].Name != "Altimeter AX-300" {
		t.Errorf("altimeter = %+v", got)
	}
	names, _ := repo.Manufacturers(ctx)
	if !slices.Contains(names, "Umbrella") {
		t.Errorf("manufacturers = %v", names)
	}
}

func TestOrderCategoriesParentsFirst(t *testing.T) {
	in := []SeedCategory{
		{ID: "c", ParentID: "b"},
		{ID: "b", ParentID: "a"},
		{ID: "a"},
		{ID: "x", ParentID: "y"},
		{ID: "y", ParentID: "x"},
	}
	var ids []string
	for _, c := range orderCategories(in) {
		ids = append(ids, c.ID)
	}
	if !slices.Equal(ids, []string{"a", "b", "c", "x", "y"}) {
		t.Errorf("order = %v", ids)
	}
}
