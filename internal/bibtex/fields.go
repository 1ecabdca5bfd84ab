// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package bibtex

import (
	"strings"

	"github.com/pdiddy/bibfilter/pkg/types"
)

// DefaultInclude lists the standard entry types kept when no include list
// is given. Comments, preambles and string definitions are not included.
const DefaultInclude = "article,book,booklet,conference,inbook,incollection,inproceedings," +
	"manual,mastersthesis,misc,phdthesis,proceedings,techreport,unpublished"

// requiredFields maps each standard entry type to its required field slots.
// A slot written "a|b" is satisfied by either field.
var requiredFields = map[string][]string{
	"article":       {"author", "title", "journal", "year"},
	"book":          {"author|editor", "title", "publisher", "year"},
	"booklet":       {"title"},
	"conference":    {"author", "title", "booktitle", "year"},
	"inbook":        {"author|editor", "title", "chapter|pages", "publisher", "year"},
	"incollection":  {"author", "title", "booktitle", "publisher", "year"},
	"inproceedings": {"author", "title", "booktitle", "year"},
	"manual":        {"title"},
	"mastersthesis": {"author", "title", "school", "year"},
	"misc":          {},
	"phdthesis":     {"author", "title", "school", "year"},
	"proceedings":   {"title", "year"},
	"techreport":    {"author", "title", "institution", "year"},
	"unpublished":   {"author", "title", "note"},
}

// IsStandardType reports whether t is one of the standard BibTeX entry types.
func IsStandardType(t string) bool {
	_, ok := requiredFields[strings.ToLower(t)]
	return ok
}

// RequiredFields returns the required field slots for an entry type, or nil
// for unknown types.
func RequiredFields(entryType string) []string {
	slots, ok := requiredFields[strings.ToLower(entryType)]
	if !ok {
		return nil
	}
	return append([]string(nil), slots...)
}

// Missing returns the required slots an entry does not satisfy. Unknown
// and special entry types have no requirements.
func Missing(e types.Entry) []string {
	var missing []string
	for _, slot := range requiredFields[e.Type] {
		satisfied := false
		for _, name := range strings.Split(slot, "|") {
			if v, ok := e.Get(name); ok && strings.TrimSpace(v) != "" {
				satisfied = true
				break
			}
		}
		if !satisfied {
			missing = append(missing, slot)
		}
	}
	return missing
}
