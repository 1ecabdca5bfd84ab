// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package library keeps a local SQLite collection of BibTeX entries with a
// full-text index over keys, titles, authors and the rendered entry text.
package library

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/bibfilter/internal/bibtex"
	"github.com/pdiddy/bibfilter/pkg/types"
)

const dbFile = "bibfilter.db"

// Store manages the library database.
type Store struct {
	db         *sql.DB
	maxResults int
}

// NewStore opens or creates cfg.Dir/bibfilter.db and its schema.
func NewStore(cfg types.LibraryConfig) (*Store, error) {
	dir := cfg.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating library directory: %w", err)
	}

	dbPath := filepath.Join(dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}

	s := &Store{db: db, maxResults: maxResults}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS entries (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			key TEXT NOT NULL UNIQUE COLLATE NOCASE,
			type TEXT NOT NULL,
			title TEXT,
			author TEXT,
			year TEXT,
			body TEXT NOT NULL,
			data TEXT NOT NULL,
			source TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_type ON entries(type)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_year ON entries(year)`,
		`CREATE TABLE IF NOT EXISTS import_status (
			path TEXT PRIMARY KEY,
			file_mod_time TEXT
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='entries_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}
	if ftsExists > 0 {
		return nil
	}

	ftsStatements := []string{
		`CREATE VIRTUAL TABLE entries_fts USING fts5(key, title, author, body, content=entries, content_rowid=rowid)`,
		`CREATE TRIGGER entries_ai AFTER INSERT ON entries BEGIN
			INSERT INTO entries_fts(rowid, key, title, author, body)
			VALUES (new.rowid, new.key, new.title, new.author, new.body);
		END`,
		`CREATE TRIGGER entries_ad AFTER DELETE ON entries BEGIN
			INSERT INTO entries_fts(entries_fts, rowid, key, title, author, body)
			VALUES ('delete', old.rowid, old.key, old.title, old.author, old.body);
		END`,
		`CREATE TRIGGER entries_au AFTER UPDATE ON entries BEGIN
			INSERT INTO entries_fts(entries_fts, rowid, key, title, author, body)
			VALUES ('delete', old.rowid, old.key, old.title, old.author, old.body);
			INSERT INTO entries_fts(rowid, key, title, author, body)
			VALUES (new.rowid, new.key, new.title, new.author, new.body);
		END`,
	}
	for _, stmt := range ftsStatements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("creating FTS infrastructure: %w", err)
		}
	}
	return nil
}

// ImportSummary holds counts from one import run.
type ImportSummary struct {
	Files   int
	Skipped int
	Failed  int
	Entries int
	Ignored int
}

// Import parses each .bib file and upserts its keyed entries. Files whose
// modification time matches the previous import are skipped. A file that
// fails to read or parse is reported on w and counted, and the remaining
// files are still imported.
func (s *Store) Import(ctx context.Context, paths []string, w io.Writer) (ImportSummary, error) {
	var summary ImportSummary
	for _, path := range paths {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}
		summary.Files++

		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		info, err := os.Stat(path)
		if err != nil {
			fmt.Fprintf(w, "failed   %s: %v\n", path, err)
			summary.Failed++
			continue
		}
		modTime := info.ModTime().UTC().Format(time.RFC3339Nano)

		var stored string
		err = s.db.QueryRowContext(ctx,
			`SELECT file_mod_time FROM import_status WHERE path = ?`, abs,
		).Scan(&stored)
		if err == nil && stored == modTime {
			fmt.Fprintf(w, "skipped  %s\n", path)
			summary.Skipped++
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(w, "failed   %s: %v\n", path, err)
			summary.Failed++
			continue
		}
		entries, err := bibtex.Parse(data)
		if err != nil {
			fmt.Fprintf(w, "failed   %s: %v\n", path, err)
			summary.Failed++
			continue
		}

		written, ignored, err := s.importEntries(ctx, abs, modTime, entries)
		if err != nil {
			fmt.Fprintf(w, "failed   %s: %v\n", path, err)
			summary.Failed++
			continue
		}
		summary.Entries += written
		summary.Ignored += ignored
		fmt.Fprintf(w, "imported %s (%d entries)\n", path, written)
	}

	fmt.Fprintf(w, "\nfiles: %d, entries: %d, skipped: %d, failed: %d\n",
		summary.Files, summary.Entries, summary.Skipped, summary.Failed)
	return summary, nil
}

func (s *Store) importEntries(ctx context.Context, source, modTime string, entries []types.Entry) (int, int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO entries (key, type, title, author, year, body, data, source)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
			type=excluded.type, title=excluded.title, author=excluded.author,
			year=excluded.year, body=excluded.body, data=excluded.data,
			source=excluded.source`)
	if err != nil {
		return 0, 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	written, ignored := 0, 0
	for _, e := range entries {
		if e.IsSpecial() || e.Key == "" {
			ignored++
			continue
		}
		data, err := json.Marshal(e)
		if err != nil {
			return 0, 0, fmt.Errorf("encoding entry %s: %w", e.Key, err)
		}
		if _, err := stmt.ExecContext(ctx,
			e.Key, e.Type, e.Value("title"), e.Value("author"), e.Value("year"),
			bibtex.Format(e), string(data), source,
		); err != nil {
			return 0, 0, fmt.Errorf("inserting entry %s: %w", e.Key, err)
		}
		written++
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO import_status (path, file_mod_time) VALUES (?, ?)
		 ON CONFLICT(path) DO UPDATE SET file_mod_time=excluded.file_mod_time`,
		source, modTime,
	); err != nil {
		return 0, 0, fmt.Errorf("updating import status: %w", err)
	}

	return written, ignored, tx.Commit()
}

// Count returns the number of entries in the library.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting entries: %w", err)
	}
	return n, nil
}
