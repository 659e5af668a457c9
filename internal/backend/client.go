// Package backend is a typed client for the catalog backend's collection
// endpoints.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ziadkadry99/catalog-site/internal/cache"
	"github.com/ziadkadry99/catalog-site/internal/fetch"
)

const (
	keyCategories    = "categories"
	keyManufacturers = "manufacturers"
)

// ProductQuery selects a page of products.
type ProductQuery struct {
	Search     string
	CategoryID string
	Components []string
	Products   []string
	Parts      []string
	Page       int
	Limit      int
}

// Values encodes q as query parameters. Empty fields are omitted.
func (q ProductQuery) Values() url.Values {
	v := url.Values{}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.CategoryID != "" {
		v.Set("category", q.CategoryID)
	}
	if len(q.Components) > 0 {
		v.Set("components", strings.Join(q.Components, ","))
	}
	if len(q.Products) > 0 {
		v.Set("products", strings.Join(q.Products, ","))
	}
	if len(q.Parts) > 0 {
		v.Set("parts", strings.Join(q.Parts, ","))
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	return v
}

// Client talks to the backend. Categories and manufacturers are cached.
type Client struct {
	base          *url.URL
	fetch         *fetch.Client
	categories    *cache.Cache[[]Category]
	manufacturers *cache.Cache[[]string]
}

// NewClient creates a client for the API rooted at baseURL (for example
// "http://localhost:8080/api/proxy/"). cacheTTL of zero disables caching.
func NewClient(baseURL string, f *fetch.Client, cacheTTL time.Duration) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing backend URL %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("backend URL %q must be absolute", baseURL)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	if f == nil {
		f = fetch.New(nil, fetch.DefaultOptions())
	}
	return &Client{
		base:          u,
		fetch:         f,
		categories:    cache.New[[]Category](cacheTTL),
		manufacturers: cache.New[[]string](cacheTTL),
	}, nil
}

// Categories returns the category tree.
func (c *Client) Categories(ctx context.Context) ([]Category, error) {
	if v, ok := c.categories.Get(keyCategories); ok {
		return v, nil
	}
	var env Envelope[[]Category]
	if err := c.get(ctx, "categories", nil, &env); err != nil {
		return nil, fmt.Errorf("loading categories: %w", err)
	}
	c.categories.Set(keyCategories, env.Data)
	return env.Data, nil
}

// Manufacturers returns the manufacturer names.
func (c *Client) Manufacturers(ctx context.Context) ([]string, error) {
	if v, ok := c.manufacturers.Get(keyManufacturers); ok {
		return v, nil
	}
	var env Envelope[[]string]
	if err := c.get(ctx, "manufacturers", nil, &env); err != nil {
		return nil, fmt.Errorf("loading manufacturers: %w", err)
	}
	c.manufacturers.Set(keyManufacturers, env.Data)
	return env.Data, nil
}

// Products returns one filtered page of products.
func (c *Client) Products(ctx context.Context, q ProductQuery) (*ProductPage, error) {
	var env Envelope[[]Product]
	if err := c.get(ctx, "products", q.Values(), &env); err != nil {
		return nil, fmt.Errorf("loading products: %w", err)
	}
	page := &ProductPage{Products: env.Data}
	if env.Pagination != nil {
		page.Pagination = *env.Pagination
	}
	return page, nil
}

// Autocomplete returns search suggestions for query.
func (c *Client) Autocomplete(ctx context.Context, query string) ([]string, error) {
	var env Envelope[[]string]
	if err := c.get(ctx, "products/autocomplete", url.Values{"q": {query}}, &env); err != nil {
		return nil, fmt.Errorf("loading suggestions: %w", err)
	}
	return env.Data, nil
}

// Jobs returns the open career postings.
func (c *Client) Jobs(ctx context.Context) ([]Job, error) {
	var env Envelope[[]Job]
	if err := c.get(ctx, "jobs", nil, &env); err != nil {
		return nil, fmt.Errorf("loading jobs: %w", err)
	}
	return env.Data, nil
}

// SubmitContact posts a contact form submission and returns the stored copy.
func (c *Client) SubmitContact(ctx context.Context, sub ContactSubmission) (*ContactSubmission, error) {
	body, err := json.Marshal(sub)
	if err != nil {
		return nil, fmt.Errorf("encoding contact submission: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.resolve("contact", nil), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var env Envelope[ContactSubmission]
	if err := c.do(ctx, req, &env); err != nil {
		return nil, fmt.Errorf("submitting contact form: %w", err)
	}
	return &env.Data, nil
}

// InvalidateCache drops cached categories and manufacturers.
func (c *Client) InvalidateCache() {
	c.categories.Clear()
	c.manufacturers.Clear()
}

func (c *Client) resolve(path string, q url.Values) string {
	u := c.base.ResolveReference(&url.URL{Path: path})
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resolve(path, q), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return c.do(ctx, req, out)
}

// envelopeStatus is decoded first so success:false can be detected
// regardless of the data type.
type envelopeStatus struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, req *http.Request, out any) error {
	resp, err := c.fetch.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	var status envelopeStatus
	if err := json.Unmarshal(data, &status); err != nil {
		if resp.StatusCode >= 300 {
			return &APIError{Status: resp.StatusCode}
		}
		return fmt.Errorf("decoding response: %w", err)
	}
	if resp.StatusCode >= 300 || !status.Success {
		msg := status.Error
		if msg == "" {
			msg = status.Message
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
