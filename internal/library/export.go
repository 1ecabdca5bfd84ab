// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package library

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/bibfilter/internal/bibtex"
	"github.com/pdiddy/bibfilter/internal/csl"
	"github.com/pdiddy/bibfilter/pkg/types"
)

// Format selects the export encoding.
type Format string

const (
	FormatBibTeX Format = "bib"
	FormatYAML   Format = "yaml"
	FormatJSON   Format = "json"
	FormatCSL    Format = "csl"
)

const exportLimit = 1000000

// Export writes the library, or the subset matching opts, to w.
func (s *Store) Export(ctx context.Context, opts QueryOptions, format Format, w io.Writer) error {
	if opts.MaxResults <= 0 {
		opts.MaxResults = exportLimit
	}
	records, err := s.Query(ctx, opts)
	if err != nil {
		return fmt.Errorf("querying for export: %w", err)
	}

	switch format {
	case FormatBibTeX, "":
		entries := entriesOf(records)
		if len(entries) == 0 {
			return nil
		}
		_, err := fmt.Fprintln(w, bibtex.FormatAll(entries))
		return err
	case FormatYAML:
		data, err := yaml.Marshal(records)
		if err != nil {
			return fmt.Errorf("marshaling YAML: %w", err)
		}
		_, err = w.Write(data)
		return err
	case FormatJSON:
		data, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case FormatCSL:
		return csl.Write(entriesOf(records), w)
	}
	return fmt.Errorf("unsupported format %q: use bib, yaml, json or csl", format)
}

func entriesOf(records []Record) []types.Entry {
	entries := make([]types.Entry, len(records))
	for i, r := range records {
		entries[i] = r.Entry
	}
	return entries
}
