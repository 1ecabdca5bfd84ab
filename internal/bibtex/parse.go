// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package bibtex parses BibTeX documents into entries and renders entries
// back to BibTeX text.
//
// Text outside @-entries is treated as an implicit comment and dropped.
// @comment, @preamble and @string entries are kept with their raw body so
// they survive a parse/format cycle.
package bibtex

import (
	"fmt"
	"strings"

	"github.com/pdiddy/bibfilter/pkg/types"
)

// ParseError reports a malformed entry and the line where it was detected.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

type parser struct {
	src  []byte
	pos  int
	line int
}

// Parse reads every @-entry in src. An @ that is not followed by a type
// and an opening { or ( is part of the surrounding comment text and is
// skipped. On a malformed entry it returns the entries parsed so far
// together with a *ParseError.
func Parse(src []byte) ([]types.Entry, error) {
	p := &parser{src: src, line: 1}
	var entries []types.Entry
	for p.skipTo('@') {
		p.next() // '@'
		entryType, closer, ok := p.header()
		if !ok {
			continue
		}
		entry, err := p.entry(entryType, closer)
		if err != nil {
			return entries, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ParseString is Parse for string input.
func ParseString(s string) ([]types.Entry, error) {
	return Parse([]byte(s))
}

func (p *parser) errorf(format string, args ...any) error {
	return &ParseError{Line: p.line, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) next() byte {
	c := p.src[p.pos]
	p.pos++
	if c == '\n' {
		p.line++
	}
	return c
}

// skipTo advances to the next occurrence of c and reports whether one was found.
func (p *parser) skipTo(c byte) bool {
	for !p.eof() {
		if p.peek() == c {
			return true
		}
		p.next()
	}
	return false
}

func (p *parser) skipSpace() {
	for !p.eof() && isSpace(p.peek()) {
		p.next()
	}
}

// header reads the entry type and the opening delimiter that follow an @.
// It reports false when either is missing.
func (p *parser) header() (string, byte, bool) {
	p.skipSpace()
	entryType := strings.ToLower(p.ident())
	if entryType == "" {
		return "", 0, false
	}
	p.skipSpace()
	switch p.peek() {
	case '{':
		return entryType, '}', true
	case '(':
		return entryType, ')', true
	}
	return "", 0, false
}

// entry parses the rest of an entry whose opening delimiter is next.
func (p *parser) entry(entryType string, closer byte) (types.Entry, error) {
	start := p.line
	p.next()

	switch entryType {
	case types.TypeComment, types.TypePreamble, types.TypeString:
		body, err := p.body(closer, start)
		if err != nil {
			return types.Entry{}, err
		}
		return types.Entry{Type: entryType, Raw: strings.TrimSpace(body)}, nil
	}

	e := types.Entry{Type: entryType}
	p.skipSpace()
	e.Key = p.key(closer)
	p.skipSpace()
	if p.eof() {
		return e, p.errorf("unterminated @%s starting on line %d", entryType, start)
	}
	if p.peek() == closer {
		p.next()
		return e, nil
	}
	if p.peek() != ',' {
		return e, p.errorf("expected , after citation key %q", e.Key)
	}
	p.next()

	for {
		p.skipSpace()
		if p.eof() {
			return e, p.errorf("unterminated @%s starting on line %d", entryType, start)
		}
		if p.peek() == closer {
			p.next()
			return e, nil
		}
		f, err := p.field(closer)
		if err != nil {
			return e, err
		}
		e.Fields = append(e.Fields, f)
		p.skipSpace()
		switch {
		case p.eof():
			return e, p.errorf("unterminated @%s starting on line %d", entryType, start)
		case p.peek() == ',':
			p.next()
		case p.peek() == closer:
			p.next()
			return e, nil
		default:
			return e, p.errorf("expected , or %c after field %q", closer, f.Name)
		}
	}
}

// body reads up to the matching closer, tracking nested braces.
func (p *parser) body(closer byte, start int) (string, error) {
	from := p.pos
	depth := 0
	for !p.eof() {
		c := p.peek()
		switch {
		case c == '{':
			depth++
		case c == '}' && depth > 0:
			depth--
		case c == closer && depth == 0:
			text := string(p.src[from:p.pos])
			p.next()
			return text, nil
		}
		p.next()
	}
	return "", p.errorf("unterminated entry starting on line %d", start)
}

func (p *parser) ident() string {
	from := p.pos
	for !p.eof() && isIdent(p.peek()) {
		p.next()
	}
	return string(p.src[from:p.pos])
}

func (p *parser) key(closer byte) string {
	from := p.pos
	for !p.eof() {
		c := p.peek()
		if c == ',' || c == closer || c == '}' || isSpace(c) {
			break
		}
		p.next()
	}
	return string(p.src[from:p.pos])
}

func (p *parser) field(closer byte) (types.Field, error) {
	name := strings.ToLower(p.ident())
	if name == "" {
		return types.Field{}, p.errorf("expected field name, found %q", p.peek())
	}
	p.skipSpace()
	if p.peek() != '=' {
		return types.Field{}, p.errorf("expected = after field %q", name)
	}
	p.next()
	p.skipSpace()

	from := p.pos
	var (
		parts    []string
		verbatim bool
	)
	for {
		part, delimited, err := p.valuePart(closer)
		if err != nil {
			return types.Field{}, err
		}
		parts = append(parts, part)
		if !delimited {
			verbatim = true
		}
		p.skipSpace()
		if p.peek() != '#' {
			break
		}
		p.next()
		p.skipSpace()
		verbatim = true
	}

	if verbatim {
		return types.Field{Name: name, Value: strings.TrimSpace(string(p.src[from:p.pos])), Verbatim: true}, nil
	}
	return types.Field{Name: name, Value: parts[0]}, nil
}

// valuePart reads one braced, quoted or bare value. delimited reports
// whether braces or quotes were stripped.
func (p *parser) valuePart(closer byte) (string, bool, error) {
	start := p.line
	switch p.peek() {
	case '{':
		p.next()
		v, err := p.braced(start)
		return v, true, err
	case '"':
		p.next()
		v, err := p.quoted(start)
		return v, true, err
	}
	from := p.pos
	for !p.eof() {
		c := p.peek()
		if c == ',' || c == '#' || c == closer || c == '}' || isSpace(c) {
			break
		}
		p.next()
	}
	if p.pos == from {
		return "", false, p.errorf("expected field value")
	}
	return string(p.src[from:p.pos]), false, nil
}

func (p *parser) braced(start int) (string, error) {
	from := p.pos
	depth := 0
	for !p.eof() {
		switch p.peek() {
		case '{':
			depth++
		case '}':
			if depth == 0 {
				v := string(p.src[from:p.pos])
				p.next()
				return v, nil
			}
			depth--
		}
		p.next()
	}
	return "", p.errorf("unbalanced braces in value starting on line %d", start)
}

func (p *parser) quoted(start int) (string, error) {
	from := p.pos
	depth := 0
	for !p.eof() {
		switch p.peek() {
		case '{':
			depth++
		case '}':
			depth--
		case '"':
			if depth == 0 {
				v := string(p.src[from:p.pos])
				p.next()
				return v, nil
			}
		}
		p.next()
	}
	return "", p.errorf("unterminated quoted value starting on line %d", start)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isIdent(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' ||
		c == '_' || c == '-' || c == ':' || c == '.' || c == '+'
}
