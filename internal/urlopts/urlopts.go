// Package urlopts appends list query parameters (filter, include, limit,
// sort, order) to collection and link URLs.
package urlopts

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Options are the per-call query conventions.
type Options struct {
	Filter    url.Values
	Include   []string
	Limit     int
	SortBy    string
	SortOrder string
}

// Defaults are the per-type fallbacks used when Options leaves a value unset.
type Defaults struct {
	AlwaysInclude    []string
	DefaultLimit     int
	DefaultSortBy    string
	DefaultSortOrder string
}

// Build appends query parameters to rawURL. Existing query parameters are
// preserved; filter keys are emitted in sorted order so identical options
// always produce identical URLs.
func Build(rawURL string, opts Options, defaults Defaults) string {
	var b strings.Builder
	b.WriteString(rawURL)
	sep := func() {
		if strings.Contains(b.String(), "?") {
			b.WriteByte('&')
		} else {
			b.WriteByte('?')
		}
	}
	add := func(key, value string) {
		sep()
		b.WriteString(url.QueryEscape(key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(value))
	}

	keys := make([]string, 0, len(opts.Filter))
	for k := range opts.Filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range opts.Filter[k] {
			add(k, v)
		}
	}

	for _, inc := range Includes(opts.Include, defaults.AlwaysInclude) {
		add("include", inc)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = defaults.DefaultLimit
	}
	if limit > 0 {
		add("limit", strconv.Itoa(limit))
	}

	sortBy := opts.SortBy
	if sortBy == "" {
		sortBy = defaults.DefaultSortBy
	}
	if sortBy != "" {
		add("sort", sortBy)
	}

	order := opts.SortOrder
	if order == "" {
		order = defaults.DefaultSortOrder
	}
	if order != "" {
		add("order", order)
	}
	return b.String()
}

// Includes merges requested and always-included link names, dropping blanks
// and duplicates while keeping first-seen order.
func Includes(requested, always []string) []string {
	seen := make(map[string]struct{}, len(requested)+len(always))
	var out []string
	for _, list := range [][]string{requested, always} {
		for _, name := range list {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	return out
}

// AppendIncludes adds include parameters for each name to rawURL.
func AppendIncludes(rawURL string, names []string) string {
	return Build(rawURL, Options{Include: names}, Defaults{})
}
