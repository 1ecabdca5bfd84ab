// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package webapp

import "net/url"

// MapDocument is an in-memory Document. The zero value is not usable; use
// NewMapDocument or NewFormDocument.
type MapDocument struct {
	cells map[string]string
}

// NewMapDocument returns a Document holding a copy of cells.
func NewMapDocument(cells map[string]string) *MapDocument {
	d := &MapDocument{cells: make(map[string]string, len(cells))}
	for k, v := range cells {
		d.cells[k] = v
	}
	return d
}

// NewFormDocument copies the first submitted value of each of the ids'
// cells from a posted form. Missing cells read as "".
func NewFormDocument(form url.Values, ids FieldIDs) *MapDocument {
	d := &MapDocument{cells: make(map[string]string, 4)}
	for _, id := range []string{ids.Input, ids.Include, ids.Exclude, ids.Output} {
		d.cells[id] = form.Get(id)
	}
	return d
}

// Value returns the text of cell id.
func (d *MapDocument) Value(id string) string {
	return d.cells[id]
}

// SetValue replaces the text of cell id.
func (d *MapDocument) SetValue(id, value string) {
	d.cells[id] = value
}
