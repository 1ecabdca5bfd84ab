// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package filter keeps or drops BibTeX entries by entry type. A Filter is the
// text-in/text-out capability behind both the web page and the filter command.
package filter

import (
	"fmt"
	"strings"

	"github.com/pdiddy/bibfilter/internal/bibtex"
	"github.com/pdiddy/bibfilter/pkg/types"
)

// Filter selects BibTeX entries by type. It holds no state between calls.
type Filter struct{}

// New returns a ready-to-use Filter.
func New() *Filter {
	return &Filter{}
}

// Process parses input as BibTeX, keeps the entries whose type is listed in
// include and not listed in exclude, and renders the kept entries back to
// BibTeX separated by newlines. An empty include list means
// bibtex.DefaultInclude. On a parse error no output is produced.
func (f *Filter) Process(input, include, exclude string) (string, error) {
	entries, err := bibtex.ParseString(input)
	if err != nil {
		return "", fmt.Errorf("parsing input: %w", err)
	}
	return bibtex.FormatAll(Select(entries, include, exclude)), nil
}

// Select returns the entries kept by include and exclude, in input order.
func Select(entries []types.Entry, include, exclude string) []types.Entry {
	in := ParseTypes(include)
	if len(in) == 0 {
		in = ParseTypes(bibtex.DefaultInclude)
	}
	out := ParseTypes(exclude)

	var kept []types.Entry
	for _, e := range entries {
		t := strings.ToLower(e.Type)
		if in[t] && !out[t] {
			kept = append(kept, e)
		}
	}
	return kept
}

// ParseTypes splits a list of entry types separated by commas, semicolons
// or whitespace into a lower-cased set. A leading @ on a type is ignored.
func ParseTypes(list string) map[string]bool {
	set := make(map[string]bool)
	for _, t := range strings.FieldsFunc(list, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	}) {
		t = strings.ToLower(strings.TrimPrefix(t, "@"))
		if t != "" {
			set[t] = true
		}
	}
	return set
}
