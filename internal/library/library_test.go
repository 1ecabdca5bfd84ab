package library

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/bibfilter/pkg/types"
)

// --- test helpers ---

func testSetup(t *testing.T) (*Store, string) {
	t.Helper()
	tmpDir := t.TempDir()

	store, err := NewStore(types.LibraryConfig{
		Dir:        filepath.Join(tmpDir, "library"),
		MaxResults: 20,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	return store, tmpDir
}

func writeBib(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const sampleBib = `@comment{exported from a reference manager}

@article{vaswani2017,
  author = {Vaswani, Ashish and Shazeer, Noam},
  title = {Attention Is All You Need},
  journal = {NeurIPS},
  year = 2017
}

@book{knuth1984,
  author = {Knuth, Donald E.},
  title = {The {TeX}book},
  publisher = {Addison-Wesley},
  year = 1984
}

@misc{doiel2016,
  author = {R. S. Doiel},
  title = {Filtering bibliographies on the command line},
  year = 2016
}
`

func importSample(t *testing.T, store *Store, dir string) ImportSummary {
	t.Helper()
	path := writeBib(t, dir, "refs.bib", sampleBib)
	var buf bytes.Buffer
	summary, err := store.Import(context.Background(), []string{path}, &buf)
	if err != nil {
		t.Fatal(err)
	}
	return summary
}

func keysOf(records []Record) []string {
	keys := make([]string, len(records))
	for i, r := range records {
		keys[i] = r.Key
	}
	return keys
}

// --- NewStore ---

func TestNewStoreCreatesDatabase(t *testing.T) {
	_, tmpDir := testSetup(t)
	if _, err := os.Stat(filepath.Join(tmpDir, "library", dbFile)); err != nil {
		t.Fatalf("database file not created: %v", err)
	}
}

func TestNewStoreReopensExistingSchema(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := types.LibraryConfig{Dir: tmpDir}

	first, err := NewStore(cfg)
	if err != nil {
		t.Fatal(err)
	}
	first.Close()

	second, err := NewStore(cfg)
	if err != nil {
		t.Fatalf("reopening store: %v", err)
	}
	second.Close()
}

// --- Import ---

func TestImportCountsEntries(t *testing.T) {
	store, tmpDir := testSetup(t)
	summary := importSample(t, store, tmpDir)

	if summary.Files != 1 || summary.Entries != 3 {
		t.Errorf("summary = %+v, want 1 file and 3 entries", summary)
	}
	if summary.Ignored != 1 {
		t.Errorf("Ignored = %d, want 1 (the comment)", summary.Ignored)
	}

	n, err := store.Count(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("Count = %d, want 3", n)
	}
}

func TestImportSkipsUnchangedFile(t *testing.T) {
	store, tmpDir := testSetup(t)
	importSample(t, store, tmpDir)

	path := filepath.Join(tmpDir, "refs.bib")
	var buf bytes.Buffer
	summary, err := store.Import(context.Background(), []string{path}, &buf)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Skipped != 1 || summary.Entries != 0 {
		t.Errorf("summary = %+v, want the file skipped", summary)
	}
	if !strings.Contains(buf.String(), "skipped") {
		t.Errorf("progress output missing skip line: %q", buf.String())
	}
}

func TestImportUpdatesChangedFile(t *testing.T) {
	store, tmpDir := testSetup(t)
	importSample(t, store, tmpDir)

	updated := strings.Replace(sampleBib, "Attention Is All You Need", "Attention Revisited", 1)
	path := writeBib(t, tmpDir, "refs.bib", updated)
	later := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	summary, err := store.Import(context.Background(), []string{path}, &buf)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Entries != 3 {
		t.Errorf("Entries = %d, want 3", summary.Entries)
	}

	n, _ := store.Count(context.Background())
	if n != 3 {
		t.Errorf("Count = %d after re-import, want 3 (upsert, not duplicate)", n)
	}

	records, err := store.Query(context.Background(), QueryOptions{Text: "revisited"})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].Key != "vaswani2017" {
		t.Errorf("query after update = %v, want [vaswani2017]", keysOf(records))
	}
}

func TestImportKeysAreCaseInsensitive(t *testing.T) {
	store, tmpDir := testSetup(t)
	importSample(t, store, tmpDir)

	path := writeBib(t, tmpDir, "other.bib", "@misc{KNUTH1984, title = {Replacement}}")
	var buf bytes.Buffer
	if _, err := store.Import(context.Background(), []string{path}, &buf); err != nil {
		t.Fatal(err)
	}

	n, _ := store.Count(context.Background())
	if n != 3 {
		t.Errorf("Count = %d, want 3", n)
	}
	records, err := store.Query(context.Background(), QueryOptions{Text: "replacement"})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].Type != "misc" {
		t.Errorf("expected knuth1984 replaced by the misc entry, got %+v", records)
	}
}

func TestImportReportsBadFileAndContinues(t *testing.T) {
	store, tmpDir := testSetup(t)
	bad := writeBib(t, tmpDir, "bad.bib", "@article{broken, title = {unclosed")
	good := writeBib(t, tmpDir, "good.bib", sampleBib)

	var buf bytes.Buffer
	summary, err := store.Import(context.Background(),
		[]string{filepath.Join(tmpDir, "missing.bib"), bad, good}, &buf)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Failed != 2 {
		t.Errorf("Failed = %d, want 2", summary.Failed)
	}
	if summary.Entries != 3 {
		t.Errorf("Entries = %d, want 3 from the good file", summary.Entries)
	}
	if !strings.Contains(buf.String(), "failed") {
		t.Errorf("progress output missing failure lines: %q", buf.String())
	}
}

func TestImportFileWithAddressInComment(t *testing.T) {
	store, tmpDir := testSetup(t)
	path := writeBib(t, tmpDir, "refs.bib", "% maintained by jane@example.org\n"+sampleBib)

	var buf bytes.Buffer
	summary, err := store.Import(context.Background(), []string{path}, &buf)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Failed != 0 {
		t.Errorf("Failed = %d, want 0: %s", summary.Failed, buf.String())
	}
	if summary.Entries != 3 {
		t.Errorf("Entries = %d, want 3", summary.Entries)
	}
}

func TestImportCancelledContext(t *testing.T) {
	store, tmpDir := testSetup(t)
	path := writeBib(t, tmpDir, "refs.bib", sampleBib)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var buf bytes.Buffer
	if _, err := store.Import(ctx, []string{path}, &buf); err == nil {
		t.Error("expected error from cancelled context")
	}
}

// --- Query ---

func TestQueryFullText(t *testing.T) {
	store, tmpDir := testSetup(t)
	importSample(t, store, tmpDir)

	records, err := store.Query(context.Background(), QueryOptions{Text: "attention"})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].Key != "vaswani2017" {
		t.Fatalf("got %v, want [vaswani2017]", keysOf(records))
	}
	if records[0].Value("journal") != "NeurIPS" {
		t.Errorf("journal = %q, want NeurIPS", records[0].Value("journal"))
	}
	if !strings.HasSuffix(records[0].Source, "refs.bib") {
		t.Errorf("Source = %q, want path ending in refs.bib", records[0].Source)
	}
}

func TestQueryByAuthor(t *testing.T) {
	store, tmpDir := testSetup(t)
	importSample(t, store, tmpDir)

	records, err := store.Query(context.Background(), QueryOptions{Text: "author:knuth"})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].Key != "knuth1984" {
		t.Errorf("got %v, want [knuth1984]", keysOf(records))
	}
}

func TestQueryFilterOnlySortedByKey(t *testing.T) {
	store, tmpDir := testSetup(t)
	importSample(t, store, tmpDir)

	records, err := store.Query(context.Background(), QueryOptions{Types: []string{"Book", "misc"}})
	if err != nil {
		t.Fatal(err)
	}
	got := strings.Join(keysOf(records), ",")
	if got != "doiel2016,knuth1984" {
		t.Errorf("keys = %s, want doiel2016,knuth1984", got)
	}
}

func TestQueryByYearAndSource(t *testing.T) {
	store, tmpDir := testSetup(t)
	importSample(t, store, tmpDir)
	path := writeBib(t, tmpDir, "extra.bib", "@misc{extra2016, title = {Extra}, year = 2016}")
	var buf bytes.Buffer
	if _, err := store.Import(context.Background(), []string{path}, &buf); err != nil {
		t.Fatal(err)
	}

	records, err := store.Query(context.Background(), QueryOptions{Year: "2016"})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Errorf("year 2016: got %v, want 2 entries", keysOf(records))
	}

	records, err = store.Query(context.Background(), QueryOptions{Year: "2016", Source: "extra.bib"})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].Key != "extra2016" {
		t.Errorf("year 2016 from extra.bib: got %v, want [extra2016]", keysOf(records))
	}
}

func TestQueryMaxResults(t *testing.T) {
	store, tmpDir := testSetup(t)
	importSample(t, store, tmpDir)

	records, err := store.Query(context.Background(), QueryOptions{MaxResults: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Errorf("got %d records, want 2", len(records))
	}
}

func TestQueryOptionsIsEmpty(t *testing.T) {
	if !(QueryOptions{MaxResults: 5}).IsEmpty() {
		t.Error("MaxResults alone should not count as a filter")
	}
	if (QueryOptions{Year: "2020"}).IsEmpty() {
		t.Error("Year is a filter")
	}
}

// --- Export ---

func TestExportBibTeX(t *testing.T) {
	store, tmpDir := testSetup(t)
	importSample(t, store, tmpDir)

	var buf bytes.Buffer
	if err := store.Export(context.Background(), QueryOptions{Types: []string{"book"}}, FormatBibTeX, &buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "@book{knuth1984,\n") {
		t.Errorf("unexpected export:\n%s", out)
	}
	if !strings.Contains(out, "title = {The {TeX}book}") {
		t.Errorf("nested braces not preserved:\n%s", out)
	}
	if !strings.Contains(out, "year = 1984") {
		t.Errorf("bare year not preserved:\n%s", out)
	}
}

func TestExportJSON(t *testing.T) {
	store, tmpDir := testSetup(t)
	importSample(t, store, tmpDir)

	var buf bytes.Buffer
	if err := store.Export(context.Background(), QueryOptions{}, FormatJSON, &buf); err != nil {
		t.Fatal(err)
	}
	var records []Record
	if err := json.Unmarshal(buf.Bytes(), &records); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(records) != 3 {
		t.Errorf("got %d records, want 3", len(records))
	}
}

func TestExportYAML(t *testing.T) {
	store, tmpDir := testSetup(t)
	importSample(t, store, tmpDir)

	var buf bytes.Buffer
	if err := store.Export(context.Background(), QueryOptions{Text: "knuth"}, FormatYAML, &buf); err != nil {
		t.Fatal(err)
	}
	var records []Record
	if err := yaml.Unmarshal(buf.Bytes(), &records); err != nil {
		t.Fatalf("invalid YAML: %v", err)
	}
	if len(records) != 1 || records[0].Key != "knuth1984" {
		t.Errorf("got %+v, want knuth1984", records)
	}
}

func TestExportCSL(t *testing.T) {
	store, tmpDir := testSetup(t)
	importSample(t, store, tmpDir)

	var buf bytes.Buffer
	if err := store.Export(context.Background(), QueryOptions{Text: "attention"}, FormatCSL, &buf); err != nil {
		t.Fatal(err)
	}
	var items []map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &items); err != nil {
		t.Fatalf("invalid CSL YAML: %v", err)
	}
	if len(items) != 1 || items[0]["id"] != "vaswani2017" {
		t.Errorf("unexpected CSL items: %v", items)
	}
}

func TestExportUnsupportedFormat(t *testing.T) {
	store, _ := testSetup(t)
	var buf bytes.Buffer
	if err := store.Export(context.Background(), QueryOptions{}, Format("ris"), &buf); err == nil {
		t.Error("expected error for unsupported format")
	}
}
