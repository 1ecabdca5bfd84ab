package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/bibfilter/internal/library"
)

var libraryCmd = &cobra.Command{
	Use:   "library",
	Short: "Manage the local entry library (import, query, export)",
	Long: `Library manages a local SQLite collection of BibTeX entries with FTS5
full-text search. Use subcommands to import .bib files, query entries, or
export them.`,
}

// --- import subcommand ---

var libraryImportCmd = &cobra.Command{
	Use:   "import FILE...",
	Short: "Import .bib files into the library",
	Long: `Import parses each file and inserts or replaces its entries by citation
key. Comments, preambles and string definitions are not stored. Files that
have not changed since their last import are skipped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLibraryImport,
}

func runLibraryImport(cmd *cobra.Command, args []string) error {
	store, err := openLibrary()
	if err != nil {
		return err
	}
	defer store.Close()

	summary, err := store.Import(cmd.Context(), args, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d file(s) failed to import", summary.Failed)
	}
	return nil
}

// --- query subcommand ---

var libraryQueryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Search the library with full-text search and filters",
	Long: `Query searches the library using FTS5 full-text search over keys,
titles, authors and entry text, structured filters (type, year, source), or
a combination of both. Column filters such as author:knuth are supported.`,
	RunE: runLibraryQuery,
}

func runLibraryQuery(cmd *cobra.Command, args []string) error {
	opts := queryOptsFromFlags(cmd, args)
	if opts.IsEmpty() {
		return fmt.Errorf("query or filter required: provide search text, --type, --year or --source")
	}

	store, err := openLibrary()
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.Query(cmd.Context(), opts)
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatQueryOutput(cmd, records, jsonOutput)
}

func formatQueryOutput(cmd *cobra.Command, records []library.Record, jsonOutput bool) error {
	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	if len(records) == 0 {
		fmt.Fprintln(out, "No results found.")
		return nil
	}

	fmt.Fprintf(out, "%-4s  %-20s  %-13s  %-4s  %s\n", "Rank", "Key", "Type", "Year", "Title")
	fmt.Fprintln(out, strings.Repeat("-", 90))

	for i, r := range records {
		fmt.Fprintf(out, "%-4d  %-20s  %-13s  %-4s  %s\n",
			i+1, truncate(r.Key, 20), r.Type, r.Value("year"), truncate(r.Value("title"), 40))
	}

	fmt.Fprintf(out, "\n%d results\n", len(records))
	return nil
}

// truncate shortens s to at most n characters, ending in "..." when cut.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}

// --- export subcommand ---

var libraryExportCmd = &cobra.Command{
	Use:   "export [text]",
	Short: "Export the library as BibTeX, YAML, JSON or CSL-YAML",
	Long: `Export writes the whole library (or a filtered subset) to stdout or the
file given with -o. Supports the same filters as query.`,
	RunE: runLibraryExport,
}

func runLibraryExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	output, _ := cmd.Flags().GetString("output")

	store, err := openLibrary()
	if err != nil {
		return err
	}
	defer store.Close()

	w := cmd.OutOrStdout()
	if output != "" && output != "-" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("creating %s: %w", output, err)
		}
		defer f.Close()
		w = f
	}

	opts := queryOptsFromFlags(cmd, args)
	if err := store.Export(cmd.Context(), opts, library.Format(format), w); err != nil {
		return err
	}
	if output != "" && output != "-" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Exported to %s\n", output)
	}
	return nil
}

// --- shared helpers ---

func openLibrary() (*library.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return library.NewStore(cfg.Library)
}

func queryOptsFromFlags(cmd *cobra.Command, args []string) library.QueryOptions {
	entryTypes, _ := cmd.Flags().GetStringSlice("type")
	year, _ := cmd.Flags().GetString("year")
	source, _ := cmd.Flags().GetString("source")
	limit, _ := cmd.Flags().GetInt("limit")

	return library.QueryOptions{
		Text:       strings.Join(args, " "),
		Types:      entryTypes,
		Year:       year,
		Source:     source,
		MaxResults: limit,
	}
}

func init() {
	// Shared flags on the parent command, inherited by subcommands.
	libraryCmd.PersistentFlags().String("library-dir", "library", "directory holding bibfilter.db")
	libraryCmd.PersistentFlags().Int("max-results", 20, "default maximum number of query results")
	viper.BindPFlag("library.dir", libraryCmd.PersistentFlags().Lookup("library-dir"))
	viper.BindPFlag("library.max_results", libraryCmd.PersistentFlags().Lookup("max-results"))

	for _, c := range []*cobra.Command{libraryQueryCmd, libraryExportCmd} {
		c.Flags().StringSlice("type", nil, "filter by entry type (repeatable or comma-separated)")
		c.Flags().String("year", "", "filter by year")
		c.Flags().String("source", "", "filter by imported file path")
	}

	// Query flags.
	libraryQueryCmd.Flags().Int("limit", 0, "maximum results (0 = use default)")
	libraryQueryCmd.Flags().Bool("json", false, "output results as JSON")

	// Export flags.
	libraryExportCmd.Flags().String("format", "bib", "export format: bib, yaml, json or csl")
	libraryExportCmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
	libraryExportCmd.Flags().Int("limit", 0, "maximum entries to export (0 = all)")

	// Wire subcommands.
	libraryCmd.AddCommand(libraryImportCmd)
	libraryCmd.AddCommand(libraryQueryCmd)
	libraryCmd.AddCommand(libraryExportCmd)

	rootCmd.AddCommand(libraryCmd)
}
