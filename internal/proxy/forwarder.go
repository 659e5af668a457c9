// Package proxy relays browser requests to the catalog backend, translating
// session cookies into upstream credentials.
package proxy

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

// Config describes one proxy instance.
type Config struct {
	// Origin is the backend base URL, for example "http://backend:4000".
	Origin string
	// Namespace prefixes paths no rule matches, such as "api/" or "api/admin/".
	Namespace string
	Rules     []Rule
	Auth      []AuthStrategy
	// Client defaults to NewClient(0).
	Client *http.Client
}

// DefaultHeaderTimeout bounds the wait for upstream response headers.
const DefaultHeaderTimeout = 30 * time.Second

// NewClient returns an upstream client that bounds connecting and waiting
// for response headers but not reading the body, so downloads stream for as
// long as they need. headerTimeout <= 0 uses DefaultHeaderTimeout.
func NewClient(headerTimeout time.Duration) *http.Client {
	if headerTimeout <= 0 {
		headerTimeout = DefaultHeaderTimeout
	}
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.DialContext = (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext
	t.TLSHandshakeTimeout = 10 * time.Second
	t.ResponseHeaderTimeout = headerTimeout
	return &http.Client{Transport: t}
}

// Forwarder is an http.Handler relaying requests under a wildcard route.
type Forwarder struct {
	origin    *url.URL
	namespace string
	rules     RuleSet
	auth      []AuthStrategy
	client    *http.Client
}

// New validates cfg and creates a Forwarder.
func New(cfg Config) (*Forwarder, error) {
	u, err := url.Parse(cfg.Origin)
	if err != nil {
		return nil, fmt.Errorf("parsing origin %q: %w", cfg.Origin, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("origin %q must be an absolute URL", cfg.Origin)
	}
	rules := RuleSet(cfg.Rules)
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	client := cfg.Client
	if client == nil {
		client = NewClient(0)
	}
	return &Forwarder{
		origin:    u,
		namespace: cfg.Namespace,
		rules:     rules,
		auth:      cfg.Auth,
		client:    client,
	}, nil
}

// Routes returns a router accepting every forwarded method at /*.
func (f *Forwarder) Routes() chi.Router {
	r := chi.NewRouter()
	for _, m := range []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		r.Method(m, "/*", f)
	}
	return r
}

// Resolve returns the upstream URL for a path relative to the mount point.
func (f *Forwarder) Resolve(p, rawQuery string) *url.URL {
	u := *f.origin
	u.Path = strings.TrimSuffix(f.origin.Path, "/") + "/" + f.rules.Rewrite(f.namespace, p)
	u.RawPath = ""
	u.RawQuery = rawQuery
	return &u
}

func (f *Forwarder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	target := f.Resolve(chi.URLParam(r, "*"), r.URL.RawQuery)

	resp, err := f.forward(r, target)
	if err != nil {
		log.Printf("proxy: %s %s: %v", r.Method, target.Redacted(), err)
		resp = gatewayError(err.Error())
	}
	if err := Render(w, resp); err != nil {
		log.Printf("proxy: writing response for %s: %v", target.Redacted(), err)
	}
}

func (f *Forwarder) forward(r *http.Request, target *url.URL) (Response, error) {
	var body io.Reader
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, fmt.Errorf("reading request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	out, err := http.NewRequestWithContext(r.Context(), r.Method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("creating upstream request: %w", err)
	}
	if ct := r.Header.Get("Content-Type"); ct != "" {
		out.Header.Set("Content-Type", ct)
	}
	for _, s := range f.auth {
		s.Apply(r, out)
	}

	resp, err := f.client.Do(out)
	if err != nil {
		return nil, fmt.Errorf("upstream unavailable: %w", err)
	}
	return classify(resp), nil
}
