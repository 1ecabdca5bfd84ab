package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/bibfilter/internal/bibtex"
	"github.com/pdiddy/bibfilter/internal/merge"
)

var mergeCmd = &cobra.Command{
	Use:   "merge A.bib B.bib",
	Short: "Combine two bibliographies as sets of citation keys",
	Long: `Merge reads two BibTeX documents and combines them by citation key.
Keys are compared case-insensitively.

  join       entries of A, then entries of B whose key is not in A
  diff       entries of A whose key is not in B
  intersect  entries of A whose key is also in B
  exclusive  entries in only one of A and B`,
	Args: cobra.ExactArgs(2),
	RunE: runMerge,
}

func init() {
	mergeCmd.Flags().String("op", string(merge.OpJoin), "operation: join, diff, intersect or exclusive")
	mergeCmd.Flags().StringP("output", "o", "", "output file (default: stdout)")

	rootCmd.AddCommand(mergeCmd)
}

func runMerge(cmd *cobra.Command, args []string) error {
	opName, _ := cmd.Flags().GetString("op")
	op, err := merge.ParseOp(opName)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := readEntries(cmd.Context(), cfg.HTTP, args[0])
	if err != nil {
		return err
	}
	b, err := readEntries(cmd.Context(), cfg.HTTP, args[1])
	if err != nil {
		return err
	}

	merged, err := merge.Apply(op, a, b)
	if err != nil {
		return fmt.Errorf("merging: %w", err)
	}

	output, _ := cmd.Flags().GetString("output")
	return writeOutput(cmd, output, bibtex.FormatAll(merged))
}
