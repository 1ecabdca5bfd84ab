// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package webapp hosts the BibTeX filter page. Its core is the Binder: on each
// trigger it reads the input, include and exclude cells of a Document, asks
// a Factory for a fresh filter, and writes the filter's result to the output
// cell. The HTTP server in this package builds one Document per request and
// drives the Binder from a form post or a JSON call.
package webapp

import (
	"github.com/pdiddy/bibfilter/internal/filter"
)

// Document is the set of named text cells a page exposes to the Binder.
type Document interface {
	Value(id string) string
	SetValue(id, value string)
}

// Processor is the filtering capability the Binder delegates to. Its
// grammar and matching rules are opaque to the Binder.
type Processor interface {
	Process(input, include, exclude string) (string, error)
}

// Factory returns a new Processor. The Binder calls it once per trigger.
type Factory func() Processor

// NewFilter is the Factory backed by filter.New.
func NewFilter() Processor {
	return filter.New()
}

// FieldIDs names the document cells the Binder reads and writes.
type FieldIDs struct {
	Input   string
	Include string
	Exclude string
	Output  string
	Action  string
}

// DefaultFieldIDs are the element IDs used by the bundled page.
var DefaultFieldIDs = FieldIDs{
	Input:   "input-bibtex",
	Include: "include-bibtex",
	Exclude: "exclude-bibtex",
	Output:  "output-bibtex",
	Action:  "filter-bibtex",
}

// Binder wires a Document's cells to a Processor.
type Binder struct {
	doc     Document
	factory Factory
	ids     FieldIDs
}

// NewBinder binds doc to processors produced by factory. A zero ids value
// means DefaultFieldIDs.
func NewBinder(doc Document, factory Factory, ids FieldIDs) *Binder {
	if ids == (FieldIDs{}) {
		ids = DefaultFieldIDs
	}
	return &Binder{doc: doc, factory: factory, ids: ids}
}

// Trigger runs one read-process-write cycle. The three input cells are
// passed through unmodified. On success the output cell is overwritten with
// exactly the processor's result. Processor errors are returned as is and
// leave the output cell untouched; panics are not recovered here.
func (b *Binder) Trigger() error {
	input := b.doc.Value(b.ids.Input)
	include := b.doc.Value(b.ids.Include)
	exclude := b.doc.Value(b.ids.Exclude)

	out, err := b.factory().Process(input, include, exclude)
	if err != nil {
		return err
	}
	b.doc.SetValue(b.ids.Output, out)
	return nil
}
