// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for bibfilter: BibTeX entries
// and the configuration of each command and the web surface.
package types

import "strings"

// Special entry types that carry raw text instead of a key and fields.
const (
	TypeComment  = "comment"
	TypePreamble = "preamble"
	TypeString   = "string"
)

// Field is one `name = value` pair of a BibTeX entry.
type Field struct {
	// Name is the lower-cased field name (e.g. "author").
	Name string `json:"name" yaml:"name"`

	// Value is the field value without its outer braces or quotes.
	// Inner braces, macros and # concatenations are kept verbatim.
	Value string `json:"value" yaml:"value"`

	// Verbatim marks values written without delimiters in the source:
	// numbers, macro names and # concatenations. They are emitted as is.
	Verbatim bool `json:"verbatim,omitempty" yaml:"verbatim,omitempty"`
}

// Entry is a single @type{...} element of a BibTeX document.
type Entry struct {
	// Type is the lower-cased entry type (e.g. "article", "comment").
	Type string `json:"type" yaml:"type"`

	// Key is the citation key. Empty for comment and preamble entries.
	Key string `json:"key,omitempty" yaml:"key,omitempty"`

	// Fields holds the entry fields in source order.
	Fields []Field `json:"fields,omitempty" yaml:"fields,omitempty"`

	// Raw is the body of comment, preamble and string entries.
	Raw string `json:"raw,omitempty" yaml:"raw,omitempty"`
}

// IsSpecial reports whether the entry is a comment, preamble or string
// definition rather than a bibliographic record.
func (e Entry) IsSpecial() bool {
	switch e.Type {
	case TypeComment, TypePreamble, TypeString:
		return true
	}
	return false
}

// Get returns the value of the named field and whether it was present.
// Field names are matched case-insensitively.
func (e Entry) Get(name string) (string, bool) {
	for _, f := range e.Fields {
		if strings.EqualFold(f.Name, name) {
			return f.Value, true
		}
	}
	return "", false
}

// Value returns the named field's value or "" when absent.
func (e Entry) Value(name string) string {
	v, _ := e.Get(name)
	return v
}

// Set replaces the value of an existing field or appends a new one.
func (e *Entry) Set(name, value string) {
	name = strings.ToLower(name)
	for i := range e.Fields {
		if e.Fields[i].Name == name {
			e.Fields[i].Value = value
			e.Fields[i].Verbatim = false
			return
		}
	}
	e.Fields = append(e.Fields, Field{Name: name, Value: value})
}
