// Copyright 2020 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package scanner

import (
	"fmt"
	"io"
	"unicode"
	"unicode/utf8"

	"github.com/sumfold/sumfold/ast/internal/tokens"
)

const bom = 0xFEFF

// tabSize is the column multiple a tab advances indentation to.
const tabSize = 8

// Scanner is used to tokenize an input stream of Python source code. Besides
// the tokens present in the text it produces the Newline, Indent and Dedent
// tokens that delimit logical lines and blocks.
type Scanner struct {
	offset   int
	row      int
	col      int
	bs       []byte
	curr     rune
	width    int
	errors   []Error
	keywords map[string]tokens.Token

	indents   []int
	queue     []item
	depth     int
	lineStart bool
	emitted   bool
}

type item struct {
	tok tokens.Token
	pos Position
	lit string
}

// Error represents a scanner error.
type Error struct {
	Pos     Position
	Message string
}

func (e Error) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Pos.Row, e.Pos.Col, e.Message)
}

// Position represents a point in the scanned source code.
type Position struct {
	Offset int // start offset in bytes
	End    int // end offset in bytes
	Row    int // line number computed in bytes
	Col    int // column number computed in bytes
}

// New returns an initialized scanner that will scan
// through the source code provided by the io.Reader.
func New(r io.Reader) (*Scanner, error) {

	bs, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	s := &Scanner{
		offset:    0,
		row:       1,
		col:       0,
		bs:        bs,
		curr:      -1,
		width:     0,
		keywords:  tokens.Keywords(),
		indents:   []int{0},
		lineStart: true,
	}

	s.next()

	if s.curr == bom {
		s.next()
	}

	return s, nil
}

// Bytes returns the raw bytes for the full source
// which the scanner has read in.
func (s *Scanner) Bytes() []byte {
	return s.bs
}

// String returns a human readable string of the current scanner state.
func (s *Scanner) String() string {
	return fmt.Sprintf("<curr: %q, offset: %d, len: %d, depth: %d, indents: %v>", s.curr, s.offset, len(s.bs), s.depth, s.indents)
}

// Scan will increment the scanners position in the source
// code until the next token is found. The token, starting position
// of the token, string literal, and any errors encountered are
// returned. A token will always be returned, the caller must check
// for any errors before using the other values.
func (s *Scanner) Scan() (tokens.Token, Position, string, []Error) {

	for len(s.queue) == 0 {
		s.fill()
	}

	it := s.queue[0]
	s.queue = s.queue[1:]

	errs := s.errors
	s.errors = nil

	return it.tok, it.pos, it.lit, errs
}

// fill queues at least one token, unless it only consumed a blank line.
func (s *Scanner) fill() {

	if s.lineStart && s.depth == 0 {
		if s.indentation() {
			return
		}
	}

	s.skipSpace()

	pos := s.position()

	switch {
	case s.curr == -1:
		s.eof(pos)
		return
	case s.curr == '\n' || s.curr == '\r':
		s.skipLineEnd()
		if s.emitted {
			s.push(tokens.Newline, pos, "")
		}
		s.emitted = false
		s.lineStart = true
		return
	case s.curr == '#':
		lit := s.scanComment()
		s.push(tokens.Comment, s.end(pos), lit)
		return
	}

	var tok tokens.Token
	var lit string

	switch {
	case isLetter(s.curr):
		lit = s.scanIdentifier()
		if (s.curr == '"' || s.curr == '\'') && isStringPrefix(lit) {
			tok = tokens.String
			lit = s.scanString(pos.Offset)
		} else if kw, ok := s.keywords[lit]; ok {
			tok = kw
		} else {
			tok = tokens.Ident
		}
	case isDecimal(s.curr):
		tok = tokens.Number
		lit = s.scanNumber()
	case s.curr == '"' || s.curr == '\'':
		tok = tokens.String
		lit = s.scanString(pos.Offset)
	default:
		tok = s.scanOperator()
		lit = string(s.bs[pos.Offset:s.literalEnd()])
	}

	s.emitted = true
	s.push(tok, s.end(pos), lit)
}

// indentation measures the indentation of a new logical line and queues
// Indent or Dedent tokens. Lines holding only whitespace are skipped and
// lines holding only a comment produce the comment token.
func (s *Scanner) indentation() bool {
	for {
		col := 0
		for s.curr == ' ' || s.curr == '\t' || s.curr == '\f' {
			switch s.curr {
			case ' ':
				col++
			case '\t':
				col = (col/tabSize + 1) * tabSize
			case '\f':
				col = 0
			}
			s.next()
		}

		switch s.curr {
		case '#':
			pos := s.position()
			lit := s.scanComment()
			s.push(tokens.Comment, s.end(pos), lit)
			s.skipLineEnd()
			return true
		case '\n', '\r':
			s.skipLineEnd()
			continue
		case -1:
			return false
		}

		s.lineStart = false
		pos := s.position()
		pos.End = pos.Offset

		top := s.indents[len(s.indents)-1]
		if col > top {
			s.indents = append(s.indents, col)
			s.push(tokens.Indent, pos, "")
			return true
		}

		for col < top {
			s.indents = s.indents[:len(s.indents)-1]
			top = s.indents[len(s.indents)-1]
			s.push(tokens.Dedent, pos, "")
		}

		if col != top {
			s.errorAt(pos, "unindent does not match any outer indentation level")
		}

		return len(s.queue) > 0
	}
}

func (s *Scanner) eof(pos Position) {
	pos.End = pos.Offset
	if s.emitted {
		s.push(tokens.Newline, pos, "")
		s.emitted = false
	}
	for len(s.indents) > 1 {
		s.indents = s.indents[:len(s.indents)-1]
		s.push(tokens.Dedent, pos, "")
	}
	s.push(tokens.EOF, pos, "")
}

func (s *Scanner) push(tok tokens.Token, pos Position, lit string) {
	s.queue = append(s.queue, item{tok: tok, pos: pos, lit: lit})
}

// skipSpace skips blanks, explicit line joins and, inside brackets, line
// breaks.
func (s *Scanner) skipSpace() {
	for {
		switch s.curr {
		case ' ', '\t', '\f':
			s.next()
		case '\n', '\r':
			if s.depth == 0 {
				return
			}
			s.next()
		case '\\':
			if c := s.peek(0); c == '\n' || (c == '\r' && s.peek(1) == '\n') {
				s.next()
				s.skipLineEnd()
				continue
			}
			return
		default:
			return
		}
	}
}

func (s *Scanner) skipLineEnd() {
	if s.curr == '\r' {
		s.next()
	}
	if s.curr == '\n' {
		s.next()
	}
}

func (s *Scanner) scanIdentifier() string {
	start := s.literalStart()
	for isLetter(s.curr) || isDigit(s.curr) {
		s.next()
	}
	return string(s.bs[start:s.literalEnd()])
}

// scanNumber consumes everything that could belong to a numeric literal.
// The parser decides whether the literal is a valid integer.
func (s *Scanner) scanNumber() string {
	start := s.literalStart()
	for isLetter(s.curr) || isDigit(s.curr) || s.curr == '.' {
		s.next()
	}
	return string(s.bs[start:s.literalEnd()])
}

func (s *Scanner) scanString(start int) string {
	quote := s.curr
	triple := s.peek(0) == byte(quote) && s.peek(1) == byte(quote)
	if triple {
		s.next()
		s.next()
	}
	s.next()

	for {
		ch := s.curr
		if ch == -1 {
			s.error("eof in string literal")
			break
		}
		if !triple && (ch == '\n' || ch == '\r') {
			s.error("non-terminated string")
			break
		}
		if ch == '\\' {
			s.next()
			if s.curr != -1 {
				s.next()
			}
			continue
		}
		if ch == quote {
			if !triple {
				s.next()
				break
			}
			if s.peek(0) == byte(quote) && s.peek(1) == byte(quote) {
				s.next()
				s.next()
				s.next()
				break
			}
		}
		s.next()
	}

	return string(s.bs[start:s.literalEnd()])
}

func (s *Scanner) scanComment() string {
	start := s.literalStart()
	for s.curr != '\n' && s.curr != '\r' && s.curr != -1 {
		s.next()
	}
	return string(s.bs[start:s.literalEnd()])
}

func (s *Scanner) scanOperator() tokens.Token {
	ch := s.curr
	s.next()

	switch ch {
	case '(':
		s.depth++
		return tokens.LParen
	case '[':
		s.depth++
		return tokens.LBrack
	case '{':
		s.depth++
		return tokens.LBrace
	case ')':
		s.closeBracket()
		return tokens.RParen
	case ']':
		s.closeBracket()
		return tokens.RBrack
	case '}':
		s.closeBracket()
		return tokens.RBrace
	case ',':
		return tokens.Comma
	case ':':
		return tokens.Colon
	case ';':
		return tokens.Semicolon
	case '.':
		return tokens.Dot
	case '+':
		return s.withAssign(tokens.Add, tokens.AddAssign)
	case '-':
		return s.withAssign(tokens.Sub, tokens.SubAssign)
	case '%':
		return s.withAssign(tokens.Rem, tokens.RemAssign)
	case '*':
		if s.curr == '*' {
			s.next()
			return s.withAssign(tokens.Pow, tokens.PowAssign)
		}
		return s.withAssign(tokens.Mul, tokens.MulAssign)
	case '/':
		if s.curr == '/' {
			s.next()
			return s.withAssign(tokens.FloorDiv, tokens.FloorDivAssign)
		}
		return s.withAssign(tokens.Quo, tokens.QuoAssign)
	case '=':
		return s.withAssign(tokens.Assign, tokens.Equal)
	case '<':
		return s.withAssign(tokens.Lt, tokens.Lte)
	case '>':
		return s.withAssign(tokens.Gt, tokens.Gte)
	case '!':
		if s.curr == '=' {
			s.next()
			return tokens.Neq
		}
	}

	return tokens.Illegal
}

func (s *Scanner) withAssign(plain, assign tokens.Token) tokens.Token {
	if s.curr == '=' {
		s.next()
		return assign
	}
	return plain
}

func (s *Scanner) closeBracket() {
	if s.depth > 0 {
		s.depth--
	}
}

func (s *Scanner) next() {

	if s.offset >= len(s.bs) {
		s.curr = -1
		s.width = 0
		s.offset = len(s.bs)
		return
	}

	s.curr, s.width = utf8.DecodeRune(s.bs[s.offset:])

	if s.curr == utf8.RuneError && s.width == 1 {
		s.error("illegal utf-8 character")
	}

	s.offset += s.width

	if s.curr == '\n' {
		s.row++
		s.col = 0
	} else {
		s.col++
	}
}

func (s *Scanner) peek(i int) byte {
	if s.offset+i < len(s.bs) {
		return s.bs[s.offset+i]
	}
	return 0
}

func (s *Scanner) literalStart() int {
	return s.offset - s.width
}

func (s *Scanner) literalEnd() int {
	return s.offset - s.width
}

func (s *Scanner) position() Position {
	row := s.row
	if s.curr == '\n' {
		// the newline itself belongs to the line it terminates
		row--
	}
	return Position{Offset: s.literalStart(), Row: row, Col: s.col}
}

func (s *Scanner) end(pos Position) Position {
	pos.End = s.literalEnd()
	return pos
}

func (s *Scanner) error(reason string) {
	s.errorAt(Position{Offset: s.offset, Row: s.row, Col: s.col}, reason)
}

func (s *Scanner) errorAt(pos Position, reason string) {
	s.errors = append(s.errors, Error{Pos: pos, Message: reason})
}

func isStringPrefix(lit string) bool {
	switch lit {
	case "r", "R", "u", "U", "b", "B", "f", "F",
		"rb", "rB", "Rb", "RB", "br", "bR", "Br", "BR",
		"rf", "rF", "Rf", "RF", "fr", "fR", "Fr", "FR":
		return true
	}
	return false
}

func isLetter(ch rune) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z' || ch == '_' || ch >= utf8.RuneSelf && unicode.IsLetter(ch)
}

func isDigit(ch rune) bool {
	return isDecimal(ch) || ch >= utf8.RuneSelf && unicode.IsDigit(ch)
}

func isDecimal(ch rune) bool { return '0' <= ch && ch <= '9' }
