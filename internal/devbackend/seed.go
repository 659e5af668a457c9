package devbackend

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ziadkadry99/catalog-site/internal/progress"
)

//go:embed seed.yaml
var defaultSeed []byte

// SeedCategory is a category row in a seed file.
type SeedCategory struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Slug     string `yaml:"slug"`
	ParentID string `yaml:"parent_id"`
	Position int    `yaml:"position"`
}

// SeedProduct is a product row in a seed file.
type SeedProduct struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	Description  string `yaml:"description"`
	CategoryID   string `yaml:"category_id"`
	Manufacturer string `yaml:"manufacturer"`
	Component    string `yaml:"component"`
	Part         string `yaml:"part"`
	Image        string `yaml:"image"`
}

// SeedJob is a career posting in a seed file. Active defaults to true.
type SeedJob struct {
	ID          string `yaml:"id"`
	Title       string `yaml:"title"`
	Department  string `yaml:"department"`
	Location    string `yaml:"location"`
	Description string `yaml:"description"`
	Active      *bool  `yaml:"active"`
}

// SeedData is the content of a seed file.
type SeedData struct {
	Categories []SeedCategory    `yaml:"categories"`
	Products   []SeedProduct     `yaml:"products"`
	Jobs       []SeedJob         `yaml:"jobs"`
	Settings   map[string]string `yaml:"settings"`
}

// Len returns the number of records in the seed.
func (s SeedData) Len() int {
	return len(s.Categories) + len(s.Products) + len(s.Jobs) + len(s.Settings)
}

// DefaultSeed returns the built-in development data set.
func DefaultSeed() SeedData {
	sd, err := ParseSeed(defaultSeed)
	if err != nil {
		panic(fmt.Sprintf("devbackend: built-in seed is invalid: %v", err))
	}
	return sd
}

// ParseSeed decodes seed YAML.
func ParseSeed(data []byte) (SeedData, error) {
	var sd SeedData
	if err := yaml.Unmarshal(data, &sd); err != nil {
		return SeedData{}, fmt.Errorf("parsing seed: %w", err)
	}
	return sd, nil
}

// LoadSeed reads a seed file.
func LoadSeed(path string) (SeedData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SeedData{}, fmt.Errorf("reading seed file: %w", err)
	}
	return ParseSeed(data)
}

// Import upserts seed records without clearing existing data, reporting
// each record to rep.
func (r *Repository) Import(ctx context.Context, seed SeedData, rep progress.Reporter) error {
	if rep == nil {
		rep = progress.Discard{}
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning import: %w", err)
	}
	defer tx.Rollback()

	rep.Start(seed.Len())
	n := 0
	step := func(msg string) {
		n++
		rep.Update(n, msg)
	}
	if err := writeSeed(ctx, tx, seed, step); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing import: %w", err)
	}
	rep.Finish()
	return nil
}

func seedTx(ctx context.Context, tx *sql.Tx, seed SeedData) error {
	return writeSeed(ctx, tx, seed, func(string) {})
}

func writeSeed(ctx context.Context, tx *sql.Tx, seed SeedData, step func(string)) error {
	// Parents first so parent_id always refers to an existing row.
	for _, c := range orderCategories(seed.Categories) {
		slug := c.Slug
		if slug == "" {
			slug = slugify(c.Name)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO categories (id, name, slug, parent_id, position) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET name = excluded.name, slug = excluded.slug,
				parent_id = excluded.parent_id, position = excluded.position`,
			c.ID, c.Name, slug, nullable(c.ParentID), c.Position,
		)
		if err != nil {
			return fmt.Errorf("seeding category %s: %w", c.ID, err)
		}
		step("category " + c.Name)
	}

	for _, p := range seed.Products {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO products (id, name, description, category_id, manufacturer, component, part, image)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET name = excluded.name, description = excluded.description,
				category_id = excluded.category_id, manufacturer = excluded.manufacturer,
				component = excluded.component, part = excluded.part, image = excluded.image`,
			p.ID, p.Name, p.Description, p.CategoryID, p.Manufacturer, p.Component, p.Part, p.Image,
		)
		if err != nil {
			return fmt.Errorf("seeding product %s: %w", p.ID, err)
		}
		step("product " + p.Name)
	}

	for _, j := range seed.Jobs {
		active := 1
		if j.Active != nil && !*j.Active {
			active = 0
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO jobs (id, title, department, location, description, active) VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET title = excluded.title, department = excluded.department,
				location = excluded.location, description = excluded.description, active = excluded.active`,
			j.ID, j.Title, j.Department, j.Location, j.Description, active,
		)
		if err != nil {
			return fmt.Errorf("seeding job %s: %w", j.ID, err)
		}
		step("job " + j.Title)
	}

	for k, v := range seed.Settings {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO settings (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value`, k, v)
		if err != nil {
			return fmt.Errorf("seeding setting %s: %w", k, err)
		}
		step("setting " + k)
	}
	return nil
}

func orderCategories(cats []SeedCategory) []SeedCategory {
	placed := map[string]bool{}
	done := make([]bool, len(cats))
	out := make([]SeedCategory, 0, len(cats))
	for progressed := true; progressed; {
		progressed = false
		for i, c := range cats {
			if done[i] {
				continue
			}
			if c.ParentID == "" || placed[c.ParentID] || !hasCategory(cats, c.ParentID) {
				out = append(out, c)
				placed[c.ID] = true
				done[i] = true
				progressed = true
			}
		}
	}
	// Cycles are written as given.
	for i, c := range cats {
		if !done[i] {
			out = append(out, c)
		}
	}
	return out
}

func hasCategory(cats []SeedCategory, id string) bool {
	for _, c := range cats {
		if c.ID == id {
			return true
		}
	}
	return false
}
