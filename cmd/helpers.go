package cmd

import (
	"fmt"
	"net/http"

	"github.com/ziadkadry99/catalog-site/internal/backend"
	"github.com/ziadkadry99/catalog-site/internal/config"
	"github.com/ziadkadry99/catalog-site/internal/db"
	"github.com/ziadkadry99/catalog-site/internal/fetch"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `catalogsite init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgFile, err)
	}
	return cfg, nil
}

// fetchOptions converts the fetch section of the config.
func fetchOptions(cfg *config.Config) fetch.Options {
	return fetch.Options{
		Timeout:       cfg.Fetch.Timeout,
		Retries:       cfg.Fetch.Retries,
		RetryDelay:    cfg.Fetch.RetryDelay,
		BackoffFactor: cfg.Fetch.BackoffFactor,
	}
}

// newBackendClient creates the retrying, caching API client used by browse.
func newBackendClient(cfg *config.Config, apiBase string) (*backend.Client, error) {
	if apiBase == "" {
		apiBase = cfg.Backend.APIBase
	}
	f := fetch.New(http.DefaultClient, fetchOptions(cfg))
	return backend.NewClient(apiBase, f, cfg.Backend.CacheTTL)
}

// openDatabase opens path, or an in-memory database when path is empty.
func openDatabase(path string) (*db.DB, error) {
	if path == "" || path == ":memory:" {
		return db.OpenMemory()
	}
	return db.Open(path)
}
