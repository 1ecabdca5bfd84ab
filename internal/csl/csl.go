// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package csl converts BibTeX entries to CSL (Citation Style Language) items
// and writes them as CSL-YAML, the bibliography format read by Pandoc and
// most reference managers.
package csl

import (
	"io"
	"strconv"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/bibfilter/pkg/types"
)

// Item is a bibliographic entry in CSL-YAML form.
type Item struct {
	ID             string `yaml:"id"`
	Type           string `yaml:"type"`
	Title          string `yaml:"title,omitempty"`
	Author         []Name `yaml:"author,omitempty"`
	Editor         []Name `yaml:"editor,omitempty"`
	ContainerTitle string `yaml:"container-title,omitempty"`
	Publisher      string `yaml:"publisher,omitempty"`
	PublisherPlace string `yaml:"publisher-place,omitempty"`
	Issued         *Date  `yaml:"issued,omitempty"`
	Volume         string `yaml:"volume,omitempty"`
	Issue          string `yaml:"issue,omitempty"`
	Page           string `yaml:"page,omitempty"`
	DOI            string `yaml:"DOI,omitempty"`
	URL            string `yaml:"URL,omitempty"`
	Note           string `yaml:"note,omitempty"`
}

// Name is a person's name in CSL form.
type Name struct {
	Family  string `yaml:"family,omitempty"`
	Given   string `yaml:"given,omitempty"`
	Literal string `yaml:"literal,omitempty"`
}

// Date is a CSL date using date-parts.
type Date struct {
	DateParts [][]int `yaml:"date-parts"`
}

var typeMap = map[string]string{
	"article":       "article-journal",
	"book":          "book",
	"booklet":       "pamphlet",
	"conference":    "paper-conference",
	"inbook":        "chapter",
	"incollection":  "chapter",
	"inproceedings": "paper-conference",
	"manual":        "book",
	"mastersthesis": "thesis",
	"misc":          "document",
	"phdthesis":     "thesis",
	"proceedings":   "book",
	"techreport":    "report",
	"unpublished":   "manuscript",
}

var months = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

// Write renders entries as a CSL-YAML list. Comment, preamble and string
// entries are skipped.
func Write(entries []types.Entry, w io.Writer) error {
	items := make([]Item, 0, len(entries))
	for _, e := range entries {
		if e.IsSpecial() {
			continue
		}
		items = append(items, FromEntry(e))
	}
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(items)
}

// FromEntry converts a BibTeX entry to a CSL item.
func FromEntry(e types.Entry) Item {
	item := Item{
		ID:        e.Key,
		Type:      typeMap[e.Type],
		Title:     clean(e.Value("title")),
		Publisher: clean(firstOf(e, "publisher", "school", "institution", "organization")),
		Volume:    e.Value("volume"),
		Issue:     e.Value("number"),
		Page:      strings.ReplaceAll(e.Value("pages"), "--", "-"),
		DOI:       e.Value("doi"),
		URL:       e.Value("url"),
		Note:      clean(e.Value("note")),
	}
	if item.Type == "" {
		item.Type = "document"
	}
	item.PublisherPlace = clean(e.Value("address"))
	item.ContainerTitle = clean(firstOf(e, "journal", "booktitle", "series"))

	item.Author = parseNames(e.Value("author"))
	item.Editor = parseNames(e.Value("editor"))

	if year, err := strconv.Atoi(strings.TrimSpace(e.Value("year"))); err == nil {
		parts := []int{year}
		if m := parseMonth(e.Value("month")); m > 0 {
			parts = append(parts, m)
		}
		item.Issued = &Date{DateParts: [][]int{parts}}
	}
	return item
}

func firstOf(e types.Entry, names ...string) string {
	for _, n := range names {
		if v := e.Value(n); v != "" {
			return v
		}
	}
	return ""
}

// parseNames splits a BibTeX name list on the word "and". Runs of
// whitespace, line breaks included, count as one space. Names written
// "Family, Given" are split on the comma; otherwise the last word is the
// family name. Braced single names become literals.
func parseNames(list string) []Name {
	list = strings.Join(strings.Fields(list), " ")
	if list == "" {
		return nil
	}
	var names []Name
	for _, raw := range splitAnd(list) {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		names = append(names, parseName(raw))
	}
	return names
}

func parseName(raw string) Name {
	if strings.HasPrefix(raw, "{") && strings.HasSuffix(raw, "}") {
		return Name{Literal: clean(raw)}
	}
	if family, given, ok := strings.Cut(raw, ","); ok {
		return Name{Family: clean(strings.TrimSpace(family)), Given: clean(strings.TrimSpace(given))}
	}
	idx := strings.LastIndex(raw, " ")
	if idx < 0 {
		return Name{Literal: clean(raw)}
	}
	return Name{Given: clean(raw[:idx]), Family: clean(raw[idx+1:])}
}

// splitAnd splits on " and " at brace depth zero. Whitespace in s must
// already be collapsed to single spaces.
func splitAnd(s string) []string {
	var (
		parts []string
		depth int
		start int
	)
	lower := strings.ToLower(s)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
		case ' ':
			if depth == 0 && strings.HasPrefix(lower[i:], " and ") {
				parts = append(parts, s[start:i])
				i += len(" and ") - 1
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

func parseMonth(v string) int {
	v = strings.ToLower(strings.TrimSpace(v))
	if n, err := strconv.Atoi(v); err == nil && n >= 1 && n <= 12 {
		return n
	}
	if len(v) >= 3 {
		return months[v[:3]]
	}
	return 0
}

// clean removes protective braces and collapses whitespace.
func clean(s string) string {
	s = strings.NewReplacer("{", "", "}", "").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}
