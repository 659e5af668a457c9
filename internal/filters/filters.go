// Package filters models the catalog filter selection: one exclusive
// category group and three plain multi-select groups.
package filters

import (
	"fmt"
	"slices"
)

// ShowAll is the auxiliary sentinel meaning "no specific category".
const ShowAll = "Show All"

// Group names a filter slot. The names double as query parameter keys.
type Group string

const (
	GroupAuxiliary  Group = "auxiliary"
	GroupComponents Group = "components"
	GroupProducts   Group = "products"
	GroupParts      Group = "parts"
)

// Groups lists every group in display order.
var Groups = []Group{GroupAuxiliary, GroupComponents, GroupProducts, GroupParts}

// Valid reports whether g is a known group.
func (g Group) Valid() bool {
	return slices.Contains(Groups, g)
}

// State is the selection for every group. Values keep insertion order.
type State struct {
	Auxiliary  []string `json:"auxiliary"`
	Components []string `json:"components"`
	Products   []string `json:"products"`
	Parts      []string `json:"parts"`
}

// Default returns the initial selection: ["Show All"] and nothing else.
func Default() State {
	return State{
		Auxiliary:  []string{ShowAll},
		Components: []string{},
		Products:   []string{},
		Parts:      []string{},
	}
}

// Values returns the selection for g.
func (s State) Values(g Group) []string {
	switch g {
	case GroupAuxiliary:
		return s.Auxiliary
	case GroupComponents:
		return s.Components
	case GroupProducts:
		return s.Products
	case GroupParts:
		return s.Parts
	}
	return nil
}

// With returns a copy of s with g set to values.
func (s State) With(g Group, values []string) State {
	out := s.Clone()
	v := slices.Clone(values)
	if v == nil {
		v = []string{}
	}
	switch g {
	case GroupAuxiliary:
		out.Auxiliary = v
	case GroupComponents:
		out.Components = v
	case GroupProducts:
		out.Products = v
	case GroupParts:
		out.Parts = v
	}
	return out
}

// Clone returns a deep copy with nil slots normalised to empty.
func (s State) Clone() State {
	return State{
		Auxiliary:  cloneNonNil(s.Auxiliary),
		Components: cloneNonNil(s.Components),
		Products:   cloneNonNil(s.Products),
		Parts:      cloneNonNil(s.Parts),
	}
}

// Equal compares two states slot by slot; nil and empty are equal.
func (s State) Equal(o State) bool {
	for _, g := range Groups {
		if !slices.Equal(s.Values(g), o.Values(g)) {
			return false
		}
	}
	return true
}

// CategoryID returns the selected specific category, or "" when the
// auxiliary group is empty or holds the sentinel.
func (s State) CategoryID() string {
	if len(s.Auxiliary) == 1 && s.Auxiliary[0] != ShowAll {
		return s.Auxiliary[0]
	}
	return ""
}

// Toggle applies a checkbox change. Auxiliary is exclusive: checking a
// specific value clears every other group, checking ShowAll clears specific
// categories, and unchecking the last value falls back to ShowAll. Other
// groups add on check and remove on uncheck.
func (s State) Toggle(g Group, value string, checked bool) (State, error) {
	if !g.Valid() {
		return s, fmt.Errorf("unknown filter group %q", g)
	}

	if g == GroupAuxiliary {
		if checked {
			return s.SelectCategory(value), nil
		}
		rest := remove(s.Auxiliary, value)
		if len(rest) == 0 {
			rest = []string{ShowAll}
		}
		return s.With(GroupAuxiliary, rest), nil
	}

	cur := s.Values(g)
	if checked {
		if slices.Contains(cur, value) {
			return s.Clone(), nil
		}
		return s.With(g, append(slices.Clone(cur), value)), nil
	}
	return s.With(g, remove(cur, value)), nil
}

// SelectCategory makes id the only auxiliary value. A specific id clears the
// other groups; ShowAll or "" only resets the auxiliary group.
func (s State) SelectCategory(id string) State {
	if id == "" || id == ShowAll {
		return s.With(GroupAuxiliary, []string{ShowAll})
	}
	return State{
		Auxiliary:  []string{id},
		Components: []string{},
		Products:   []string{},
		Parts:      []string{},
	}
}

// IsDefault reports whether nothing beyond ShowAll is selected.
func (s State) IsDefault() bool {
	return s.Equal(Default())
}

func remove(values []string, v string) []string {
	out := make([]string, 0, len(values))
	for _, x := range values {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}

func cloneNonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return slices.Clone(v)
}
