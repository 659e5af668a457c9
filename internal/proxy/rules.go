package proxy

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Rule redirects request paths matching Pattern away from the API
// namespace. The path is rewritten as Target + (path - StripPrefix), with
// the separator left over from the strip dropped.
type Rule struct {
	Pattern     string `koanf:"pattern" yaml:"pattern"`
	StripPrefix string `koanf:"strip_prefix" yaml:"strip_prefix"`
	Target      string `koanf:"target" yaml:"target"`
}

// DefaultRules maps uploads to the origin's static root.
func DefaultRules() []Rule {
	return []Rule{{Pattern: "uploads/**", StripPrefix: "uploads", Target: ""}}
}

// RuleSet is an ordered rule table; the first match wins.
type RuleSet []Rule

// Validate checks every pattern.
func (rs RuleSet) Validate() error {
	for _, r := range rs {
		if !doublestar.ValidatePattern(r.Pattern) {
			return fmt.Errorf("invalid path pattern %q", r.Pattern)
		}
	}
	return nil
}

// Rewrite maps a request path (relative to the mount point) to an origin
// path. Paths no rule matches are placed under namespace.
func (rs RuleSet) Rewrite(namespace, p string) string {
	p = strings.TrimPrefix(p, "/")
	for _, r := range rs {
		if ok, _ := doublestar.Match(r.Pattern, p); ok {
			rest := strings.TrimPrefix(strings.TrimPrefix(p, r.StripPrefix), "/")
			return joinPath(r.Target, rest)
		}
	}
	return joinPath(namespace, p)
}

func joinPath(prefix, p string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return p
	}
	return prefix + "/" + p
}
