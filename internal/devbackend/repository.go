// Package devbackend is a self-contained implementation of the catalog
// backend for local development and tests.
package devbackend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/ziadkadry99/catalog-site/internal/backend"
	"github.com/ziadkadry99/catalog-site/internal/db"
)

var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid input")
)

// ProductFilter selects a page of products.
type ProductFilter struct {
	Search     string
	CategoryID string
	Components []string
	// Manufacturers is fed by the "products" filter group.
	Manufacturers []string
	Parts         []string
	Page          int
	Limit         int
}

// CategoryInput creates or updates a category.
type CategoryInput struct {
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	ParentID string `json:"parentId"`
	Position int    `json:"position"`
}

// Repository owns the development data set. It is constructed explicitly
// and can be reset between tests.
type Repository struct {
	db   *db.DB
	seed SeedData
}

// NewRepository creates a Repository backed by the given database. seed is
// the data set Reset restores; the database is not touched until then.
func NewRepository(database *db.DB, seed SeedData) *Repository {
	return &Repository{db: database, seed: seed}
}

// Reset deletes everything and reloads the seed.
func (r *Repository) Reset(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning reset: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"products", "categories", "jobs", "contact_submissions", "settings"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}
	if err := seedTx(ctx, tx, r.seed); err != nil {
		return err
	}
	return tx.Commit()
}

// Categories returns the category tree ordered by position.
func (r *Repository) Categories(ctx context.Context) ([]backend.Category, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, slug, COALESCE(parent_id, '')
		FROM categories ORDER BY position, name`)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	defer rows.Close()

	var flat []backend.Category
	for rows.Next() {
		var c backend.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.ParentID); err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		flat = append(flat, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return buildTree(flat, ""), nil
}

func buildTree(flat []backend.Category, parent string) []backend.Category {
	out := []backend.Category{}
	for _, c := range flat {
		if c.ParentID == parent {
			c.Subcategories = buildTree(flat, c.ID)
			out = append(out, c)
		}
	}
	return out
}

// Category returns one category without its children.
func (r *Repository) Category(ctx context.Context, id string) (*backend.Category, error) {
	var c backend.Category
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, slug, COALESCE(parent_id, '') FROM categories WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.Slug, &c.ParentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("category %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading category %s: %w", id, err)
	}
	c.Subcategories = []backend.Category{}
	return &c, nil
}

// CreateCategory inserts a category with a generated id.
func (r *Repository) CreateCategory(ctx context.Context, in CategoryInput) (*backend.Category, error) {
	if err := r.validateCategory(ctx, "", &in); err != nil {
		return nil, err
	}
	id := uuid.New().String()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO categories (id, name, slug, parent_id, position) VALUES (?, ?, ?, ?, ?)`,
		id, in.Name, in.Slug, nullable(in.ParentID), in.Position,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting category: %w", err)
	}
	return r.Category(ctx, id)
}

// UpdateCategory replaces a category's fields.
func (r *Repository) UpdateCategory(ctx context.Context, id string, in CategoryInput) (*backend.Category, error) {
	if _, err := r.Category(ctx, id); err != nil {
		return nil, err
	}
	if err := r.validateCategory(ctx, id, &in); err != nil {
		return nil, err
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE categories SET name = ?, slug = ?, parent_id = ?, position = ? WHERE id = ?`,
		in.Name, in.Slug, nullable(in.ParentID), in.Position, id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating category %s: %w", id, err)
	}
	return r.Category(ctx, id)
}

// DeleteCategory removes a category, its subcategories and their products.
func (r *Repository) DeleteCategory(ctx context.Context, id string) error {
	if _, err := r.Category(ctx, id); err != nil {
		return err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning delete: %w", err)
	}
	defer tx.Rollback()

	const subtree = `
		WITH RECURSIVE sub(id) AS (
			SELECT ? UNION SELECT c.id FROM categories c JOIN sub ON c.parent_id = sub.id
		)`
	if _, err := tx.ExecContext(ctx, subtree+" DELETE FROM products WHERE category_id IN (SELECT id FROM sub)", id); err != nil {
		return fmt.Errorf("deleting products of %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, subtree+" DELETE FROM categories WHERE id IN (SELECT id FROM sub)", id); err != nil {
		return fmt.Errorf("deleting category %s: %w", id, err)
	}
	return tx.Commit()
}

// checkAncestry rejects parent when id is among its ancestors.
func (r *Repository) checkAncestry(ctx context.Context, id, parent string) error {
	seen := map[string]bool{}
	for cur := parent; cur != "" && !seen[cur]; {
		if cur == id {
			return fmt.Errorf("%w: %s is a descendant of %s", ErrInvalid, parent, id)
		}
		seen[cur] = true
		var next sql.NullString
		err := r.db.QueryRowContext(ctx, "SELECT parent_id FROM categories WHERE id = ?", cur).Scan(&next)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading ancestors of %s: %w", parent, err)
		}
		cur = next.String
	}
	return nil
}

var slugUnsafe = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(s string) string {
	return strings.Trim(slugUnsafe.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

func (r *Repository) validateCategory(ctx context.Context, id string, in *CategoryInput) error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if in.Slug == "" {
		in.Slug = slugify(in.Name)
	}
	if in.ParentID != "" {
		if in.ParentID == id {
			return fmt.Errorf("%w: a category cannot be its own parent", ErrInvalid)
		}
		if _, err := r.Category(ctx, in.ParentID); err != nil {
			return fmt.Errorf("%w: parent %s does not exist", ErrInvalid, in.ParentID)
		}
		if id != "" {
			if err := r.checkAncestry(ctx, id, in.ParentID); err != nil {
				return err
			}
		}
	}
	var n int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM categories WHERE slug = ? AND id != ?", in.Slug, id).Scan(&n)
	if err != nil {
		return fmt.Errorf("checking slug: %w", err)
	}
	if n > 0 {
		return fmt.Errorf("%w: slug %q is taken", ErrInvalid, in.Slug)
	}
	return nil
}

// Manufacturers returns the distinct manufacturer names.
func (r *Repository) Manufacturers(ctx context.Context) ([]string, error) {
	return r.queryStrings(ctx, "SELECT DISTINCT manufacturer FROM products WHERE manufacturer != '' ORDER BY manufacturer")
}

// Products returns one page of products matching f. The category filter
// includes direct subcategories.
func (r *Repository) Products(ctx context.Context, f ProductFilter) ([]backend.Product, backend.Pagination, error) {
	var (
		clauses []string
		args    []any
	)
	if s := strings.TrimSpace(f.Search); s != "" {
		clauses = append(clauses, "(name LIKE ? OR description LIKE ?)")
		args = append(args, "%"+s+"%", "%"+s+"%")
	}
	if f.CategoryID != "" {
		clauses = append(clauses, "(category_id = ? OR category_id IN (SELECT id FROM categories WHERE parent_id = ?))")
		args = append(args, f.CategoryID, f.CategoryID)
	}
	for col, values := range map[string][]string{
		"component":    f.Components,
		"manufacturer": f.Manufacturers,
		"part":         f.Parts,
	} {
		if len(values) == 0 {
			continue
		}
		clauses = append(clauses, col+" IN ("+placeholders(len(values))+")")
		for _, v := range values {
			args = append(args, v)
		}
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products"+where, args...).Scan(&total); err != nil {
		return nil, backend.Pagination{}, fmt.Errorf("counting products: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 12
	}
	page := f.Page
	if page < 1 {
		page = 1
	}
	totalPages := (total + limit - 1) / limit
	pg := backend.Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}

	query := `SELECT id, name, description, category_id, manufacturer, component, part, image
		FROM products` + where + fmt.Sprintf(" ORDER BY name, id LIMIT %d OFFSET %d", limit, (page-1)*limit)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, pg, fmt.Errorf("listing products: %w", err)
	}
	defer rows.Close()

	out := []backend.Product{}
	for rows.Next() {
		var p backend.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.CategoryID, &p.Manufacturer, &p.Component, &p.Part, &p.Image); err != nil {
			return nil, pg, fmt.Errorf("scanning product: %w", err)
		}
		out = append(out, p)
	}
	return out, pg, rows.Err()
}

// Autocomplete returns up to limit product names containing q, prefix
// matches first.
func (r *Repository) Autocomplete(ctx context.Context, q string, limit int) ([]string, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []string{}, nil
	}
	if limit <= 0 {
		limit = 8
	}
	return r.queryStrings(ctx, `
		SELECT name FROM products WHERE name LIKE ?
		GROUP BY name
		ORDER BY CASE WHEN name LIKE ? THEN 0 ELSE 1 END, name
		LIMIT ?`, "%"+q+"%", q+"%", limit)
}

// Jobs returns the active career postings.
func (r *Repository) Jobs(ctx context.Context) ([]backend.Job, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, department, location, description FROM jobs
		WHERE active = 1 ORDER BY department, title`)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	defer rows.Close()

	out := []backend.Job{}
	for rows.Next() {
		var j backend.Job
		if err := rows.Scan(&j.ID, &j.Title, &j.Department, &j.Location, &j.Description); err != nil {
			return nil, fmt.Errorf("scanning job: %w", err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// CreateContact stores a contact form submission.
func (r *Repository) CreateContact(ctx context.Context, sub backend.ContactSubmission) (*backend.ContactSubmission, error) {
	sub.Name = strings.TrimSpace(sub.Name)
	sub.Email = strings.TrimSpace(sub.Email)
	switch {
	case sub.Name == "":
		return nil, fmt.Errorf("%w: name is required", ErrInvalid)
	case !strings.Contains(sub.Email, "@"):
		return nil, fmt.Errorf("%w: a valid email is required", ErrInvalid)
	case strings.TrimSpace(sub.Message) == "":
		return nil, fmt.Errorf("%w: message is required", ErrInvalid)
	}
	sub.ID = uuid.New().String()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO contact_submissions (id, name, email, company, message) VALUES (?, ?, ?, ?, ?)`,
		sub.ID, sub.Name, sub.Email, sub.Company, sub.Message,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting contact submission: %w", err)
	}
	return &sub, nil
}

// Contacts lists contact submissions, newest first.
func (r *Repository) Contacts(ctx context.Context) ([]backend.ContactSubmission, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, email, company, message FROM contact_submissions
		ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing contact submissions: %w", err)
	}
	defer rows.Close()

	out := []backend.ContactSubmission{}
	for rows.Next() {
		var c backend.ContactSubmission
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Company, &c.Message); err != nil {
			return nil, fmt.Errorf("scanning contact submission: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Settings returns every site setting.
func (r *Repository) Settings(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT key, value FROM settings")
	if err != nil {
		return nil, fmt.Errorf("listing settings: %w", err)
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scanning setting: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

// PutSettings upserts the given settings, leaving others unchanged.
func (r *Repository) PutSettings(ctx context.Context, values map[string]string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning settings update: %w", err)
	}
	defer tx.Rollback()

	for k, v := range values {
		if strings.TrimSpace(k) == "" {
			return fmt.Errorf("%w: empty setting key", ErrInvalid)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO settings (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value`, k, v); err != nil {
			return fmt.Errorf("writing setting %s: %w", k, err)
		}
	}
	return tx.Commit()
}

func (r *Repository) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
