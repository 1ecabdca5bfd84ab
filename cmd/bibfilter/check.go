package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/bibfilter/internal/bibtex"
)

var checkCmd = &cobra.Command{
	Use:   "check [BIBFILE|URL|-]",
	Short: "Report entries missing required fields",
	Long: `Check parses a BibTeX document and lists every entry of a standard type
that lacks one of its required fields. A slot such as author|editor is
satisfied by either field. Entries of unknown types are listed as such but
do not fail the check.

Exits non-zero when any entry is incomplete.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	source := "-"
	if len(args) > 0 {
		source = args[0]
	}
	entries, err := readEntries(cmd.Context(), cfg.HTTP, source)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	checked, incomplete := 0, 0
	for _, e := range entries {
		if e.IsSpecial() {
			continue
		}
		checked++
		if !bibtex.IsStandardType(e.Type) {
			fmt.Fprintf(out, "%-24s %-14s unknown entry type\n", e.Key, e.Type)
			continue
		}
		if missing := bibtex.Missing(e); len(missing) > 0 {
			incomplete++
			fmt.Fprintf(out, "%-24s %-14s missing %s\n", e.Key, e.Type, strings.Join(missing, ", "))
		}
	}

	fmt.Fprintf(out, "\n%d entries checked, %d incomplete\n", checked, incomplete)
	if incomplete > 0 {
		return fmt.Errorf("%d entr(ies) missing required fields", incomplete)
	}
	return nil
}
