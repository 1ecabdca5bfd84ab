// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package bibtex

import (
	"strings"

	"github.com/pdiddy/bibfilter/pkg/types"
)

// Format renders an entry as BibTeX, one field per line:
//
//	@article{key,
//	  author = {A. Author},
//	  year = 2016
//	}
func Format(e types.Entry) string {
	var sb strings.Builder
	sb.WriteString("@")
	sb.WriteString(e.Type)
	sb.WriteString("{")

	if e.IsSpecial() {
		sb.WriteString(e.Raw)
		sb.WriteString("}")
		return sb.String()
	}

	sb.WriteString(e.Key)
	for _, f := range e.Fields {
		sb.WriteString(",\n  ")
		sb.WriteString(f.Name)
		sb.WriteString(" = ")
		if f.Verbatim {
			sb.WriteString(f.Value)
		} else {
			sb.WriteString("{")
			sb.WriteString(f.Value)
			sb.WriteString("}")
		}
	}
	if len(e.Fields) > 0 {
		sb.WriteString("\n")
	}
	sb.WriteString("}")
	return sb.String()
}

// FormatAll renders entries separated by a newline.
func FormatAll(entries []types.Entry) string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = Format(e)
	}
	return strings.Join(out, "\n")
}
