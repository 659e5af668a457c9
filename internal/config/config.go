package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/ziadkadry99/catalog-site/internal/proxy"
)

// EnvPrefix marks environment overrides. A double underscore separates
// nesting levels: CATALOG_BACKEND__ORIGIN -> backend.origin.
const EnvPrefix = "CATALOG_"

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (CATALOG_*).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Start from defaults. They are layered as YAML rather than decoded
	// into, so lists in the file replace the default lists outright.
	defaults, err := yamlv3.Marshal(DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("marshalling defaults: %w", err)
	}
	if err := k.Load(rawBytes(defaults), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	// Load YAML file if it exists.
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

// rawBytes is a koanf.Provider over an in-memory document.
type rawBytes []byte

func (b rawBytes) ReadBytes() ([]byte, error) { return b, nil }

func (b rawBytes) Read() (map[string]interface{}, error) {
	return nil, errors.New("rawBytes provider does not support Read")
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// validStrategies is the set of recognized auth forwarding strategies.
var validStrategies = map[string]bool{
	proxy.StrategyBearerCookie:      true,
	proxy.StrategyCookiePassthrough: true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if err := absoluteURL("backend.origin", c.Backend.Origin); err != nil {
		return err
	}
	if err := absoluteURL("backend.api_base", c.Backend.APIBase); err != nil {
		return err
	}
	if c.Backend.CacheTTL < 0 {
		return fmt.Errorf("backend.cache_ttl must be >= 0")
	}
	if c.Backend.HeaderTimeout <= 0 {
		return fmt.Errorf("backend.header_timeout must be > 0")
	}
	if c.Auth.SessionCookie == "" {
		return fmt.Errorf("auth.session_cookie is required")
	}

	seen := map[string]bool{}
	for i, p := range c.Proxies {
		if !strings.HasPrefix(p.Prefix, "/") {
			return fmt.Errorf("proxies[%d].prefix %q must start with /", i, p.Prefix)
		}
		if seen[p.Prefix] {
			return fmt.Errorf("proxies[%d].prefix %q is mounted twice", i, p.Prefix)
		}
		seen[p.Prefix] = true
		for _, s := range p.Strategies {
			if !validStrategies[s] {
				return fmt.Errorf("proxies[%d]: invalid strategy %q: must be one of bearer_cookie, cookie_passthrough", i, s)
			}
		}
		if err := proxy.RuleSet(p.Rules).Validate(); err != nil {
			return fmt.Errorf("proxies[%d]: %w", i, err)
		}
	}

	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch.timeout must be > 0")
	}
	if c.Fetch.Retries < 0 {
		return fmt.Errorf("fetch.retries must be >= 0")
	}
	if c.Fetch.BackoffFactor < 1 {
		return fmt.Errorf("fetch.backoff_factor must be >= 1")
	}
	if c.Catalog.PageSize <= 0 {
		return fmt.Errorf("catalog.page_size must be > 0")
	}
	if c.Catalog.MinQueryLength < 1 {
		return fmt.Errorf("catalog.min_query_length must be >= 1")
	}
	if c.DevBackend.Port <= 0 || c.DevBackend.Port > 65535 {
		return fmt.Errorf("dev_backend.port %d out of range", c.DevBackend.Port)
	}
	return nil
}

func absoluteURL(field, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", field)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s %q must be an absolute URL", field, raw)
	}
	return nil
}
