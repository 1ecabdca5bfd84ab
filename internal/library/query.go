// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package library

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pdiddy/bibfilter/pkg/types"
)

// QueryOptions holds parameters for library queries.
type QueryOptions struct {
	// Text is an FTS5 full-text query over key, title, author and entry text.
	Text string

	// Types keeps only the listed entry types.
	Types []string

	// Year keeps only entries with this year value.
	Year string

	// Source keeps only entries imported from a file path containing this text.
	Source string

	// MaxResults limits result count. Zero uses the store default.
	MaxResults int
}

// IsEmpty reports whether the query has no search text or filters.
func (q QueryOptions) IsEmpty() bool {
	return q.Text == "" && len(q.Types) == 0 && q.Year == "" && q.Source == ""
}

// Record is a stored entry and the file it was imported from.
type Record struct {
	types.Entry `yaml:",inline"`
	Source string `json:"source" yaml:"source"`
}

// Query searches the library. Full-text results are ranked by relevance;
// filter-only results are sorted by citation key.
func (s *Store) Query(ctx context.Context, opts QueryOptions) ([]Record, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = s.maxResults
	}

	var (
		qb     strings.Builder
		args   []any
		useFTS = opts.Text != ""
	)

	if useFTS {
		qb.WriteString(
			`SELECT e.data, e.source
			FROM entries_fts
			JOIN entries e ON e.rowid = entries_fts.rowid
			WHERE entries_fts MATCH ?`)
		args = append(args, opts.Text)
	} else {
		qb.WriteString(`SELECT e.data, e.source FROM entries e WHERE 1=1`)
	}

	if len(opts.Types) > 0 {
		qb.WriteString(` AND e.type IN (?` + strings.Repeat(`, ?`, len(opts.Types)-1) + `)`)
		for _, t := range opts.Types {
			args = append(args, strings.ToLower(t))
		}
	}
	if opts.Year != "" {
		qb.WriteString(` AND e.year = ?`)
		args = append(args, opts.Year)
	}
	if opts.Source != "" {
		qb.WriteString(` AND instr(e.source, ?) > 0`)
		args = append(args, opts.Source)
	}

	if useFTS {
		qb.WriteString(` ORDER BY entries_fts.rank`)
	} else {
		qb.WriteString(` ORDER BY e.key COLLATE NOCASE`)
	}
	qb.WriteString(` LIMIT ?`)
	args = append(args, maxResults)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying library: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			data   string
			source string
			rec    Record
		)
		if err := rows.Scan(&data, &source); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		if err := json.Unmarshal([]byte(data), &rec.Entry); err != nil {
			return nil, fmt.Errorf("decoding entry: %w", err)
		}
		rec.Source = source
		records = append(records, rec)
	}
	return records, rows.Err()
}
