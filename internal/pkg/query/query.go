// Package query implements the shared list-endpoint grammar: page/limit
// clamping, sort-field parsing and offset slicing.
package query

import "strings"

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Page is a normalized pagination window.
type Page struct {
	Page  int
	Limit int
}

// NormalizePage clamps page to >= 1 and limit to 1..MaxLimit.
// Zero values pick the defaults.
func NormalizePage(page, limit int) Page {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Page{Page: page, Limit: limit}
}

// Sort is a parsed sort directive.
type Sort struct {
	Field string
	Desc  bool
}

// ParseSort parses the "field" / "-field" grammar. An empty or all-dash
// input falls back to defaultField descending (newest first).
func ParseSort(s, defaultField string) Sort {
	s = strings.TrimSpace(s)
	if s == "" {
		return Sort{Field: defaultField, Desc: true}
	}
	desc := false
	if strings.HasPrefix(s, "-") {
		desc = true
		s = strings.TrimPrefix(s, "-")
	}
	if s == "" {
		return Sort{Field: defaultField, Desc: true}
	}
	return Sort{Field: s, Desc: desc}
}

// ParseStatuses splits a comma-separated status set, dropping empties.
func ParseStatuses(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Slice applies the pagination window to an already-sorted slice.
func Slice[T any](items []T, p Page) []T {
	start := (p.Page - 1) * p.Limit
	if start >= len(items) {
		return []T{}
	}
	end := start + p.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
