package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/bibfilter/internal/fetch"
)

const refsBib = `@comment{mixed sources}

@article{smith2020,
  author = {Smith, Jane},
  title = {A Study},
  journal = {J. Stud.},
  year = 2020
}

@book{knuth1984,
  author = {Knuth, Donald E.},
  title = {The {TeX}book},
  publisher = {Addison-Wesley},
  year = 1984
}

@misc{doiel2016,
  title = {Notes}
}
`

// execute runs the root command with args and returns what it printed.
// Flags are reset first because cobra keeps their values between runs.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			sv.Replace(nil)
		} else {
			f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "bibfilter dev\n", out)
}

func TestFilterDefaultIncludeDropsComments(t *testing.T) {
	path := writeFile(t, "refs.bib", refsBib)

	out, err := execute(t, "filter", path)
	require.NoError(t, err)
	assert.NotContains(t, out, "@comment")
	assert.Contains(t, out, "@article{smith2020,")
	assert.Contains(t, out, "@book{knuth1984,")
	assert.Contains(t, out, "@misc{doiel2016,")
}

func TestFilterIncludeExcludeToFile(t *testing.T) {
	path := writeFile(t, "refs.bib", refsBib)
	target := filepath.Join(t.TempDir(), "out.bib")

	_, err := execute(t, "filter", path, target, "--include", "article book misc", "--exclude", "misc")
	require.NoError(t, err)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), "smith2020")
	assert.Contains(t, string(data), "knuth1984")
	assert.NotContains(t, string(data), "doiel2016")
}

func TestFilterReadsStdin(t *testing.T) {
	old := fetch.Stdin
	fetch.Stdin = strings.NewReader(refsBib)
	t.Cleanup(func() { fetch.Stdin = old })

	out, err := execute(t, "filter", "--include", "book")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "@book{knuth1984,"), out)
	assert.NotContains(t, out, "smith2020")
}

func TestFilterParseError(t *testing.T) {
	path := writeFile(t, "bad.bib", "@article{broken, title = {open")

	_, err := execute(t, "filter", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")
}

func TestFilterUsesEnvironmentDefaults(t *testing.T) {
	t.Setenv("BIBFILTER_FILTER_EXCLUDE", "book")
	path := writeFile(t, "refs.bib", refsBib)

	out, err := execute(t, "filter", path)
	require.NoError(t, err)
	assert.NotContains(t, out, "knuth1984")
	assert.Contains(t, out, "smith2020")
}

func TestMerge(t *testing.T) {
	a := writeFile(t, "a.bib", refsBib)
	b := writeFile(t, "b.bib", "@article{SMITH2020, title = {Other}}\n@misc{new2024, title = {New}}")

	tests := []struct {
		op       string
		contains []string
		excludes []string
	}{
		{"join", []string{"smith2020", "knuth1984", "new2024"}, []string{"SMITH2020"}},
		{"diff", []string{"knuth1984", "doiel2016"}, []string{"smith2020", "new2024"}},
		{"intersect", []string{"smith2020"}, []string{"knuth1984", "new2024"}},
		{"exclusive", []string{"knuth1984", "new2024"}, []string{"smith2020", "SMITH2020"}},
	}
	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			out, err := execute(t, "merge", "--op", tt.op, a, b)
			require.NoError(t, err)
			for _, s := range tt.contains {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, out, s)
			}
		})
	}
}

func TestMergeUnknownOp(t *testing.T) {
	a := writeFile(t, "a.bib", refsBib)
	_, err := execute(t, "merge", "--op", "union", a, a)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown merge operation")
}

func TestCheckReportsMissingFields(t *testing.T) {
	path := writeFile(t, "refs.bib", refsBib+"\n@article{bare2021, title = {Bare}}\n@dataset{d1, title = {Data}}\n")

	out, err := execute(t, "check", path)
	require.Error(t, err)
	assert.Contains(t, out, "bare2021")
	assert.Contains(t, out, "missing author, journal, year")
	assert.Contains(t, out, "unknown entry type")
	assert.Contains(t, out, "5 entries checked, 1 incomplete")
}

func TestCheckPasses(t *testing.T) {
	path := writeFile(t, "refs.bib", refsBib)
	out, err := execute(t, "check", path)
	require.NoError(t, err)
	assert.Contains(t, out, "3 entries checked, 0 incomplete")
}

func TestLibraryImportQueryExport(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, "refs.bib", refsBib)

	out, err := execute(t, "library", "--library-dir", dir, "import", path)
	require.NoError(t, err)
	assert.Contains(t, out, "imported")
	assert.Contains(t, out, "entries: 3")

	out, err = execute(t, "library", "--library-dir", dir, "query", "author:knuth")
	require.NoError(t, err)
	assert.Contains(t, out, "knuth1984")
	assert.Contains(t, out, "1 results")

	out, err = execute(t, "library", "--library-dir", dir, "query", "--year", "2020", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"key": "smith2020"`)

	out, err = execute(t, "library", "--library-dir", dir, "export", "--format", "bib")
	require.NoError(t, err)
	assert.Contains(t, out, "@book{knuth1984,")
	assert.Contains(t, out, "@misc{doiel2016")

	_, err = execute(t, "library", "--library-dir", dir, "query")
	assert.Error(t, err, "query without text or filters is rejected")
}

func TestTruncateKeepsCharactersWhole(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 20))
	assert.Equal(t, "Über die Grundlagen der Mathematik un...",
		truncate("Über die Grundlagen der Mathematik und Logik", 40))

	got := truncate(strings.Repeat("日本語", 10), 20)
	assert.True(t, utf8.ValidString(got), got)
	assert.Equal(t, 20, utf8.RuneCountInString(got))
}

func TestLibraryQueryTableWithNonASCIITitle(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, "refs.bib", "@article{müller2019, title = {Über die Grundlagen der Mathematik und Logik}, year = 2019}\n")

	_, err := execute(t, "library", "--library-dir", dir, "import", path)
	require.NoError(t, err)

	out, err := execute(t, "library", "--library-dir", dir, "query", "--year", "2019")
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(out), out)
	assert.Contains(t, out, "Über die Grundlagen der Mathematik un...")
}

func TestInvalidConfigurationIsRejected(t *testing.T) {
	t.Setenv("BIBFILTER_HTTP_MAX_RETRIES", "99")
	path := writeFile(t, "refs.bib", refsBib)

	_, err := execute(t, "filter", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}
