package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/bibfilter/internal/bibtex"
	"github.com/pdiddy/bibfilter/internal/fetch"
	"github.com/pdiddy/bibfilter/internal/filter"
	"github.com/pdiddy/bibfilter/pkg/types"
)

var filterCmd = &cobra.Command{
	Use:   "filter [BIBFILE|URL|-] [OUTFILE]",
	Short: "Keep or drop BibTeX entries by type",
	Long: `Filter reads a BibTeX document from a file, a URL or standard input and
writes the entries whose type is included and not excluded.

Type lists are separated by commas or spaces. An empty include list keeps
the standard entry types:

  ` + bibtex.DefaultInclude,
	Args: cobra.MaximumNArgs(2),
	RunE: runFilter,
}

func init() {
	filterCmd.Flags().String("include", "", "entry types to keep (default: standard types)")
	filterCmd.Flags().String("exclude", "", "entry types to drop")
	viper.BindPFlag("filter.include", filterCmd.Flags().Lookup("include"))
	viper.BindPFlag("filter.exclude", filterCmd.Flags().Lookup("exclude"))

	rootCmd.AddCommand(filterCmd)
}

func runFilter(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	source := "-"
	if len(args) > 0 {
		source = args[0]
	}
	data, err := fetch.Read(cmd.Context(), httpClient(cfg.HTTP), source, cfg.HTTP)
	if err != nil {
		return err
	}

	out, err := filter.New().Process(string(data), cfg.Filter.Include, cfg.Filter.Exclude)
	if err != nil {
		return fmt.Errorf("filtering %s: %w", source, err)
	}

	var target string
	if len(args) > 1 {
		target = args[1]
	}
	return writeOutput(cmd, target, out)
}

// --- shared helpers ---

func httpClient(cfg types.HTTPConfig) *http.Client {
	return &http.Client{Timeout: cfg.Timeout}
}

// readEntries reads and parses one BibTeX source.
func readEntries(ctx context.Context, cfg types.HTTPConfig, source string) ([]types.Entry, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	data, err := fetch.Read(ctx, httpClient(cfg), source, cfg)
	if err != nil {
		return nil, err
	}
	entries, err := bibtex.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", source, err)
	}
	return entries, nil
}

// writeOutput writes text to the named file, or to the command's output
// when target is empty or "-". A trailing newline is added to non-empty text.
func writeOutput(cmd *cobra.Command, target, text string) error {
	if text != "" {
		text += "\n"
	}
	if target == "" || target == "-" {
		_, err := io.WriteString(cmd.OutOrStdout(), text)
		return err
	}
	if err := os.WriteFile(target, []byte(text), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", target, err)
	}
	return nil
}
