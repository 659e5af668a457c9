package proxy

import (
	"fmt"
	"net/http"
)

// Strategy names accepted in configuration.
const (
	StrategyBearerCookie      = "bearer_cookie"
	StrategyCookiePassthrough = "cookie_passthrough"
)

// DefaultSessionCookie is the admin session cookie name.
const DefaultSessionCookie = "admin_token"

// AuthStrategy copies credentials from the inbound request to the upstream
// one.
type AuthStrategy interface {
	Name() string
	Apply(in, out *http.Request)
}

// BearerCookie turns the session cookie into an Authorization header.
type BearerCookie struct {
	Cookie string
}

func (BearerCookie) Name() string { return StrategyBearerCookie }

func (b BearerCookie) Apply(in, out *http.Request) {
	c, err := in.Cookie(b.Cookie)
	if err != nil || c.Value == "" {
		return
	}
	out.Header.Set("Authorization", "Bearer "+c.Value)
}

// CookiePassthrough forwards the raw Cookie header.
type CookiePassthrough struct{}

func (CookiePassthrough) Name() string { return StrategyCookiePassthrough }

func (CookiePassthrough) Apply(in, out *http.Request) {
	if v := in.Header.Get("Cookie"); v != "" {
		out.Header.Set("Cookie", v)
	}
}

// ParseStrategies builds strategies from their configured names.
func ParseStrategies(names []string, cookieName string) ([]AuthStrategy, error) {
	if cookieName == "" {
		cookieName = DefaultSessionCookie
	}
	out := make([]AuthStrategy, 0, len(names))
	for _, n := range names {
		switch n {
		case StrategyBearerCookie:
			out = append(out, BearerCookie{Cookie: cookieName})
		case StrategyCookiePassthrough:
			out = append(out, CookiePassthrough{})
		default:
			return nil, fmt.Errorf("unknown auth strategy %q", n)
		}
	}
	return out, nil
}
