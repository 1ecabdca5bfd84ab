//go:build mage

package main

import (
	"fmt"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Library groups targets that work on a local development library.
type Library mg.Namespace

// Sample imports the parser test fixtures into ./library so query and
// export can be tried without real data.
func (Library) Sample() error {
	mg.Deps(Build)
	fixtures, err := filepath.Glob(filepath.Join("internal", "bibtex", "testdata", "*.bib"))
	if err != nil {
		return err
	}
	if len(fixtures) == 0 {
		return fmt.Errorf("no .bib fixtures found")
	}
	args := append([]string{"library", "import"}, fixtures...)
	return sh.RunV(filepath.Join(binDir, binName), args...)
}

// Reset deletes the development library database.
func (Library) Reset() error {
	return sh.Rm("library")
}
