// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package merge combines two BibTeX entry lists with set operations keyed by
// citation key. Keys compare case-insensitively; entries without a key
// (comments, preambles, string definitions) never match one another.
package merge

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pdiddy/bibfilter/pkg/types"
)

// Op names a merge operation.
type Op string

const (
	OpJoin      Op = "join"
	OpDiff      Op = "diff"
	OpIntersect Op = "intersect"
	OpExclusive Op = "exclusive"
)

// ErrUnknownOp is returned by Apply and ParseOp for unsupported operations.
var ErrUnknownOp = errors.New("unknown merge operation")

// Ops lists the supported operations in display order.
var Ops = []Op{OpJoin, OpDiff, OpIntersect, OpExclusive}

// ParseOp converts a name such as "join" to an Op.
func ParseOp(name string) (Op, error) {
	op := Op(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Ops {
		if op == known {
			return op, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownOp, name)
}

// Apply runs op over a and b.
func Apply(op Op, a, b []types.Entry) ([]types.Entry, error) {
	switch op {
	case OpJoin:
		return Join(a, b), nil
	case OpDiff:
		return Diff(a, b), nil
	case OpIntersect:
		return Intersect(a, b), nil
	case OpExclusive:
		return Exclusive(a, b), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownOp, op)
}

// Join returns every entry of a followed by the entries of b whose key is
// not already in a.
func Join(a, b []types.Entry) []types.Entry {
	out := append([]types.Entry(nil), a...)
	return append(out, Diff(b, a)...)
}

// Diff returns the entries of a whose key does not appear in b.
func Diff(a, b []types.Entry) []types.Entry {
	inB := keySet(b)
	var out []types.Entry
	for _, e := range a {
		if !inB[normKey(e)] {
			out = append(out, e)
		}
	}
	return out
}

// Intersect returns the entries of a whose key also appears in b.
func Intersect(a, b []types.Entry) []types.Entry {
	inB := keySet(b)
	var out []types.Entry
	for _, e := range a {
		if k := normKey(e); k != "" && inB[k] {
			out = append(out, e)
		}
	}
	return out
}

// Exclusive returns the symmetric difference: entries of a not in b
// followed by entries of b not in a.
func Exclusive(a, b []types.Entry) []types.Entry {
	return append(Diff(a, b), Diff(b, a)...)
}

func normKey(e types.Entry) string {
	return strings.ToLower(strings.TrimSpace(e.Key))
}

func keySet(entries []types.Entry) map[string]bool {
	set := make(map[string]bool, len(entries))
	for _, e := range entries {
		if k := normKey(e); k != "" {
			set[k] = true
		}
	}
	return set
}
