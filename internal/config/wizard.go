package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to path.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to catalogsite! Let's configure your site.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. Backend origin.
	originPrompt := promptui.Prompt{
		Label:    "Backend origin",
		Default:  cfg.Backend.Origin,
		Validate: validateAbsoluteURL,
	}
	origin, err := originPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("backend origin: %w", err)
	}
	cfg.Backend.Origin = strings.TrimRight(origin, "/")

	// 2. Listen port.
	portPrompt := promptui.Prompt{
		Label:    "Port to serve on",
		Default:  strconv.Itoa(cfg.Server.Port),
		Validate: validatePort,
	}
	portStr, err := portPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("port: %w", err)
	}
	cfg.Server.Port, _ = strconv.Atoi(portStr)
	cfg.Backend.APIBase = fmt.Sprintf("http://localhost:%d%s/", cfg.Server.Port, cfg.Proxies[0].Prefix)

	// 3. Auth forwarding.
	authPrompt := promptui.Select{
		Label: "How does the backend authenticate admin requests?",
		Items: []string{
			"both   - bearer header from the session cookie, plus the raw cookie",
			"bearer - bearer header only",
			"cookie - raw cookie only",
		},
	}
	authIdx, _, err := authPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("auth selection: %w", err)
	}
	strategies := strategyChoices[authIdx]
	for i := range cfg.Proxies {
		cfg.Proxies[i].Strategies = strategies
	}

	// 4. Session cookie name.
	cookiePrompt := promptui.Prompt{
		Label:   "Session cookie name",
		Default: cfg.Auth.SessionCookie,
	}
	cookie, err := cookiePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("session cookie: %w", err)
	}
	if cookie = strings.TrimSpace(cookie); cookie != "" {
		cfg.Auth.SessionCookie = cookie
	}

	// 5. Page size.
	pagePrompt := promptui.Prompt{
		Label:    "Products per page",
		Default:  strconv.Itoa(cfg.Catalog.PageSize),
		Validate: validatePositive,
	}
	pageStr, err := pagePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("page size: %w", err)
	}
	cfg.Catalog.PageSize, _ = strconv.Atoi(pageStr)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Save(path); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", path)
	return cfg, nil
}

var strategyChoices = [][]string{
	{"bearer_cookie", "cookie_passthrough"},
	{"bearer_cookie"},
	{"cookie_passthrough"},
}

func validateAbsoluteURL(s string) error {
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("enter an absolute URL such as http://localhost:4000")
	}
	return nil
}

func validatePort(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 || n > 65535 {
		return fmt.Errorf("enter a port between 1 and 65535")
	}
	return nil
}

func validatePositive(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fmt.Errorf("enter a positive number")
	}
	return nil
}
