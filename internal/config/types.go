package config

import (
	"time"

	"github.com/ziadkadry99/catalog-site/internal/proxy"
)

// Config is the top-level catalog-site configuration, corresponding to .catalogsite.yml.
type Config struct {
	Server     ServerConfig     `yaml:"server" koanf:"server"`
	Backend    BackendConfig    `yaml:"backend" koanf:"backend"`
	Auth       AuthConfig       `yaml:"auth" koanf:"auth"`
	Proxies    []ProxyConfig    `yaml:"proxies" koanf:"proxies"`
	Fetch      FetchConfig      `yaml:"fetch" koanf:"fetch"`
	Storage    StorageConfig    `yaml:"storage" koanf:"storage"`
	Catalog    CatalogConfig    `yaml:"catalog" koanf:"catalog"`
	DevBackend DevBackendConfig `yaml:"dev_backend" koanf:"dev_backend"`
}

// ServerConfig holds the HTTP listener settings for `catalogsite serve`.
type ServerConfig struct {
	Port     int  `yaml:"port" koanf:"port"`
	AllowAll bool `yaml:"allow_all" koanf:"allow_all"`
}

// BackendConfig points at the upstream catalog API.
type BackendConfig struct {
	// Origin is where proxies forward to, e.g. http://localhost:4000.
	Origin string `yaml:"origin" koanf:"origin"`
	// APIBase is the URL the browse client calls, normally a proxy prefix
	// on this server.
	APIBase  string        `yaml:"api_base" koanf:"api_base"`
	CacheTTL time.Duration `yaml:"cache_ttl" koanf:"cache_ttl"`
	// HeaderTimeout bounds the proxies' wait for upstream response headers.
	// Response bodies are not time limited.
	HeaderTimeout time.Duration `yaml:"header_timeout" koanf:"header_timeout"`
}

// AuthConfig configures credential forwarding.
type AuthConfig struct {
	SessionCookie string `yaml:"session_cookie" koanf:"session_cookie"`
}

// ProxyConfig describes one mounted forwarder instance.
type ProxyConfig struct {
	Prefix     string       `yaml:"prefix" koanf:"prefix"`
	Namespace  string       `yaml:"namespace" koanf:"namespace"`
	Strategies []string     `yaml:"strategies" koanf:"strategies"`
	Rules      []proxy.Rule `yaml:"rules" koanf:"rules"`
}

// FetchConfig tunes the retrying HTTP client.
type FetchConfig struct {
	Timeout       time.Duration `yaml:"timeout" koanf:"timeout"`
	Retries       int           `yaml:"retries" koanf:"retries"`
	RetryDelay    time.Duration `yaml:"retry_delay" koanf:"retry_delay"`
	BackoffFactor float64       `yaml:"backoff_factor" koanf:"backoff_factor"`
}

// StorageConfig locates the durable local store.
type StorageConfig struct {
	Path string `yaml:"path" koanf:"path"`
}

// CatalogConfig tunes the filter/search controller.
type CatalogConfig struct {
	PageSize         int           `yaml:"page_size" koanf:"page_size"`
	AutocompleteWait time.Duration `yaml:"autocomplete_wait" koanf:"autocomplete_wait"`
	MinQueryLength   int           `yaml:"min_query_length" koanf:"min_query_length"`
}

// DevBackendConfig configures `catalogsite devbackend`.
type DevBackendConfig struct {
	Port int `yaml:"port" koanf:"port"`
	// Database is a SQLite file path; empty keeps the data in memory.
	Database   string `yaml:"database" koanf:"database"`
	AdminToken string `yaml:"admin_token" koanf:"admin_token"`
	UploadsDir string `yaml:"uploads_dir" koanf:"uploads_dir"`
	SeedFile   string `yaml:"seed_file" koanf:"seed_file"`
}

// DefaultPath is the config file looked up in the working directory.
const DefaultPath = ".catalogsite.yml"

// DefaultConfig returns a Config with sensible defaults: a public and an
// admin proxy in front of a backend on localhost:4000.
func DefaultConfig() *Config {
	strategies := []string{proxy.StrategyBearerCookie, proxy.StrategyCookiePassthrough}
	return &Config{
		Server: ServerConfig{Port: 8080},
		Backend: BackendConfig{
			Origin:        "http://localhost:4000",
			APIBase:       "http://localhost:8080/api/proxy/",
			CacheTTL:      5 * time.Minute,
			HeaderTimeout: proxy.DefaultHeaderTimeout,
		},
		Auth: AuthConfig{SessionCookie: proxy.DefaultSessionCookie},
		Proxies: []ProxyConfig{
			{Prefix: "/api/proxy", Namespace: "api/", Strategies: strategies, Rules: proxy.DefaultRules()},
			{Prefix: "/api/admin/proxy", Namespace: "api/admin/", Strategies: strategies, Rules: proxy.DefaultRules()},
		},
		Fetch: FetchConfig{
			Timeout:       8 * time.Second,
			Retries:       2,
			RetryDelay:    500 * time.Millisecond,
			BackoffFactor: 2,
		},
		Storage: StorageConfig{Path: ".catalogsite/state.db"},
		Catalog: CatalogConfig{
			PageSize:         12,
			AutocompleteWait: 300 * time.Millisecond,
			MinQueryLength:   2,
		},
		DevBackend: DevBackendConfig{
			Port:       4000,
			UploadsDir: "uploads",
		},
	}
}
