// Copyright 2020 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package ast

import (
	"bytes"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/sumfold/sumfold/ast/internal/scanner"
	"github.com/sumfold/sumfold/ast/internal/tokens"
)

// Parser is used to parse Python source code.
type Parser struct {
	r        io.Reader
	s        *state
	filename string
}

type state struct {
	s      *scanner.Scanner
	tok    tokens.Token
	lit    string
	loc    Location
	errors Errors
}

func (s *state) Text(offset, end int) []byte {
	bs := s.s.Bytes()
	if offset >= 0 && offset < len(bs) {
		if end >= offset && end <= len(bs) {
			return bs[offset:end]
		}
	}
	return nil
}

// NewParser creates and initializes a Parser.
func NewParser() *Parser {
	p := &Parser{s: &state{}}
	return p
}

// WithFilename provides the filename for Location details
// on parsed statements.
func (p *Parser) WithFilename(filename string) *Parser {
	p.filename = filename
	return p
}

// WithReader provides the io.Reader that the parser will
// use as its source.
func (p *Parser) WithReader(r io.Reader) *Parser {
	p.r = r
	return p
}

// Parse will read the source and return the parsed statements. Parsing stops
// at the first syntax error.
func (p *Parser) Parse() (Body, Errors) {

	var err error
	p.s.s, err = scanner.New(p.r)
	if err != nil {
		return nil, Errors{
			&Error{
				Code:     ParseErr,
				Message:  err.Error(),
				Location: nil,
			},
		}
	}

	// read the first token to initialize the parser
	p.scan()

	body := Body{}

	for p.s.tok != tokens.EOF && !p.failed() {
		if p.s.tok == tokens.Indent {
			p.error(p.s.Loc(), "unexpected indent")
			break
		}
		body = append(body, p.parseStatement()...)
	}

	if p.failed() {
		return nil, p.s.errors
	}

	return body, nil
}

// parseStatement parses one compound statement or one line of simple
// statements.
func (p *Parser) parseStatement() Body {
	switch p.s.tok {
	case tokens.For:
		return p.single(p.parseFor())
	case tokens.While:
		return p.single(p.parseWhile())
	case tokens.If:
		return p.single(p.parseIf())
	case tokens.Def:
		return p.single(p.parseFuncDef())
	}
	return p.parseSimpleStatements()
}

func (p *Parser) single(s Statement) Body {
	if s == nil {
		return nil
	}
	return Body{s}
}

func (p *Parser) parseSimpleStatements() Body {
	var body Body
	for {
		s := p.parseSmallStatement()
		if s == nil {
			return nil
		}
		body = append(body, s)

		if p.s.tok != tokens.Semicolon {
			break
		}
		p.scan()
		if p.s.tok == tokens.Newline {
			break
		}
	}

	if !p.expect(tokens.Newline) {
		return nil
	}

	return body
}

func (p *Parser) parseSmallStatement() Statement {
	loc := p.s.Loc()

	switch p.s.tok {
	case tokens.Pass:
		p.scan()
		return &Pass{Location: loc}
	case tokens.Return:
		p.scan()
		stmt := &Return{Location: loc}
		if p.s.tok != tokens.Newline && p.s.tok != tokens.Semicolon {
			if stmt.Value = p.parseExpr(); stmt.Value == nil {
				return nil
			}
		}
		return stmt
	}

	lhs := p.parseExpr()
	if lhs == nil {
		return nil
	}

	switch {
	case p.s.tok == tokens.Assign:
		if !p.checkTarget(lhs) {
			return nil
		}
		p.scan()
		rhs := p.parseExpr()
		if rhs == nil {
			return nil
		}
		if p.s.tok == tokens.Assign {
			p.error(p.s.Loc(), "chained assignment is not supported")
			return nil
		}
		return &Assign{Target: lhs, Value: rhs, Location: loc}
	case tokens.IsAugmentedAssign(p.s.tok):
		if !p.checkTarget(lhs) {
			return nil
		}
		op := augmentedOperators[p.s.tok]
		p.scan()
		rhs := p.parseExpr()
		if rhs == nil {
			return nil
		}
		return &AugAssign{Target: lhs, Op: op, Value: rhs, Location: loc}
	}

	return &ExprStmt{Expr: lhs, Location: loc}
}

var augmentedOperators = map[tokens.Token]Operator{
	tokens.AddAssign:      Add,
	tokens.SubAssign:      Sub,
	tokens.MulAssign:      Mul,
	tokens.PowAssign:      Pow,
	tokens.QuoAssign:      Div,
	tokens.FloorDivAssign: FloorDiv,
	tokens.RemAssign:      Mod,
}

func (p *Parser) checkTarget(t *Term) bool {
	if _, ok := t.Value.(Var); !ok {
		p.errorf(t.Location, "cannot assign to %v", TypeName(t.Value))
		return false
	}
	return true
}

func (p *Parser) parseFor() Statement {
	loc := p.s.Loc()
	p.scan()

	target := p.parseTarget()
	if target == nil || !p.expect(tokens.In) {
		return nil
	}

	iter := p.parseExpr()
	if iter == nil {
		return nil
	}

	stmt := &For{Target: target, Iter: iter, Location: loc}
	if stmt.Body = p.parseBlock(); stmt.Body == nil {
		return nil
	}

	if p.s.tok == tokens.Else {
		p.scan()
		if stmt.Else = p.parseBlock(); stmt.Else == nil {
			return nil
		}
	}

	return stmt
}

func (p *Parser) parseWhile() Statement {
	loc := p.s.Loc()
	p.scan()

	cond := p.parseExpr()
	if cond == nil {
		return nil
	}

	stmt := &While{Cond: cond, Location: loc}
	if stmt.Body = p.parseBlock(); stmt.Body == nil {
		return nil
	}

	if p.s.tok == tokens.Else {
		p.scan()
		if stmt.Else = p.parseBlock(); stmt.Else == nil {
			return nil
		}
	}

	return stmt
}

// parseIf parses an if statement. The elif clauses become nested If
// statements in the else branch.
func (p *Parser) parseIf() Statement {
	loc := p.s.Loc()
	p.scan()

	cond := p.parseExpr()
	if cond == nil {
		return nil
	}

	stmt := &If{Cond: cond, Location: loc}
	if stmt.Body = p.parseBlock(); stmt.Body == nil {
		return nil
	}

	switch p.s.tok {
	case tokens.Elif:
		elif := p.parseIf()
		if elif == nil {
			return nil
		}
		stmt.Else = Body{elif}
	case tokens.Else:
		p.scan()
		if stmt.Else = p.parseBlock(); stmt.Else == nil {
			return nil
		}
	}

	return stmt
}

func (p *Parser) parseFuncDef() Statement {
	loc := p.s.Loc()
	p.scan()

	if p.s.tok != tokens.Ident {
		p.illegal("expected function name")
		return nil
	}

	stmt := &FuncDef{Name: Var(p.s.lit), Location: loc}
	p.scan()

	if !p.expect(tokens.LParen) {
		return nil
	}

	for p.s.tok != tokens.RParen {
		if p.s.tok != tokens.Ident {
			p.illegal("expected parameter name")
			return nil
		}
		stmt.Params = append(stmt.Params, Var(p.s.lit))
		p.scan()
		if p.s.tok != tokens.Comma {
			break
		}
		p.scan()
	}

	if !p.expect(tokens.RParen) {
		return nil
	}

	if stmt.Body = p.parseBlock(); stmt.Body == nil {
		return nil
	}

	return stmt
}

// parseBlock parses ":" followed by either an indented suite or simple
// statements on the same line.
func (p *Parser) parseBlock() Body {
	if !p.expect(tokens.Colon) {
		return nil
	}

	if p.s.tok != tokens.Newline {
		return p.parseSimpleStatements()
	}

	p.scan()

	if p.s.tok != tokens.Indent {
		p.illegal("expected an indented block")
		return nil
	}

	p.scan()

	body := Body{}
	for p.s.tok != tokens.Dedent && p.s.tok != tokens.EOF {
		if p.s.tok == tokens.Indent {
			p.error(p.s.Loc(), "unexpected indent")
			return nil
		}
		stmts := p.parseStatement()
		if stmts == nil {
			return nil
		}
		body = append(body, stmts...)
	}

	if p.s.tok == tokens.Dedent {
		p.scan()
	}

	return body
}

func (p *Parser) parseTarget() *Term {
	if p.s.tok != tokens.Ident {
		p.illegal("expected identifier")
		return nil
	}
	t := VarTerm(p.s.lit).SetLocation(p.s.Loc())
	p.scan()
	if p.s.tok == tokens.Comma {
		p.error(p.s.Loc(), "tuple targets are not supported")
		return nil
	}
	return t
}

// parseExpr parses a boolean expression. Conditional expressions and
// lambdas are not part of the language.
func (p *Parser) parseExpr() *Term {
	return p.parseOr()
}

func (p *Parser) parseOr() *Term {
	lhs := p.parseAnd()
	for lhs != nil && p.s.tok == tokens.Or {
		p.scan()
		rhs := p.parseAnd()
		if rhs == nil {
			return nil
		}
		lhs = BinOpTerm(Or, lhs, rhs).SetLocation(lhs.Location)
	}
	return lhs
}

func (p *Parser) parseAnd() *Term {
	lhs := p.parseNot()
	for lhs != nil && p.s.tok == tokens.And {
		p.scan()
		rhs := p.parseNot()
		if rhs == nil {
			return nil
		}
		lhs = BinOpTerm(And, lhs, rhs).SetLocation(lhs.Location)
	}
	return lhs
}

func (p *Parser) parseNot() *Term {
	if p.s.tok == tokens.Not {
		loc := p.s.Loc()
		p.scan()
		operand := p.parseNot()
		if operand == nil {
			return nil
		}
		return UnaryOpTerm(Not, operand).SetLocation(loc)
	}
	return p.parseComparison()
}

var comparisonOperators = map[tokens.Token]Operator{
	tokens.Equal: Eq,
	tokens.Neq:   NotEq,
	tokens.Lt:    Lt,
	tokens.Lte:   LtE,
	tokens.Gt:    Gt,
	tokens.Gte:   GtE,
}

func (p *Parser) parseComparison() *Term {
	lhs := p.parseSum()
	if lhs == nil {
		return nil
	}

	if p.s.tok == tokens.In || p.s.tok == tokens.Not {
		p.error(p.s.Loc(), "membership tests are not supported")
		return nil
	}

	op, ok := comparisonOperators[p.s.tok]
	if !ok {
		return lhs
	}

	p.scan()
	rhs := p.parseSum()
	if rhs == nil {
		return nil
	}

	if _, ok := comparisonOperators[p.s.tok]; ok {
		p.error(p.s.Loc(), "chained comparisons are not supported")
		return nil
	}

	return BinOpTerm(op, lhs, rhs).SetLocation(lhs.Location)
}

func (p *Parser) parseSum() *Term {
	lhs := p.parseProduct()
	for lhs != nil && (p.s.tok == tokens.Add || p.s.tok == tokens.Sub) {
		op := Add
		if p.s.tok == tokens.Sub {
			op = Sub
		}
		p.scan()
		rhs := p.parseProduct()
		if rhs == nil {
			return nil
		}
		lhs = BinOpTerm(op, lhs, rhs).SetLocation(lhs.Location)
	}
	return lhs
}

var productOperators = map[tokens.Token]Operator{
	tokens.Mul:      Mul,
	tokens.Quo:      Div,
	tokens.FloorDiv: FloorDiv,
	tokens.Rem:      Mod,
}

func (p *Parser) parseProduct() *Term {
	lhs := p.parseFactor()
	for lhs != nil {
		op, ok := productOperators[p.s.tok]
		if !ok {
			break
		}
		p.scan()
		rhs := p.parseFactor()
		if rhs == nil {
			return nil
		}
		lhs = BinOpTerm(op, lhs, rhs).SetLocation(lhs.Location)
	}
	return lhs
}

func (p *Parser) parseFactor() *Term {
	if p.s.tok == tokens.Sub || p.s.tok == tokens.Add {
		op := Neg
		if p.s.tok == tokens.Add {
			op = Pos
		}
		loc := p.s.Loc()
		p.scan()
		operand := p.parseFactor()
		if operand == nil {
			return nil
		}
		return UnaryOpTerm(op, operand).SetLocation(loc)
	}
	return p.parsePower()
}

// parsePower parses "primary ** factor". The exponent binds less tightly
// than a unary operator on its right: 2 ** -1 is 2 ** (-1).
func (p *Parser) parsePower() *Term {
	base := p.parsePrimary()
	if base == nil || p.s.tok != tokens.Pow {
		return base
	}
	p.scan()
	exp := p.parseFactor()
	if exp == nil {
		return nil
	}
	return BinOpTerm(Pow, base, exp).SetLocation(base.Location)
}

func (p *Parser) parsePrimary() *Term {
	term := p.parseAtom()
	for term != nil {
		switch p.s.tok {
		case tokens.LParen:
			term = p.parseCall(term)
		case tokens.Dot:
			p.error(p.s.Loc(), "attribute access is not supported")
			return nil
		case tokens.LBrack:
			p.error(p.s.Loc(), "subscripts are not supported")
			return nil
		default:
			return term
		}
	}
	return nil
}

func (p *Parser) parseCall(fn *Term) *Term {
	p.scan()

	call := &Call{Func: fn}

	for p.s.tok != tokens.RParen {
		if p.s.tok == tokens.Mul || p.s.tok == tokens.Pow {
			p.error(p.s.Loc(), "argument unpacking is not supported")
			return nil
		}

		arg := p.parseExpr()
		if arg == nil {
			return nil
		}

		switch {
		case p.s.tok == tokens.Assign:
			name, ok := arg.Value.(Var)
			if !ok {
				p.errorf(arg.Location, "keyword must be an identifier")
				return nil
			}
			p.scan()
			value := p.parseExpr()
			if value == nil {
				return nil
			}
			call.Keywords = append(call.Keywords, &Keyword{Name: name, Value: value})
		case len(call.Keywords) > 0:
			p.errorf(arg.Location, "positional argument follows keyword argument")
			return nil
		case p.s.tok == tokens.For:
			gens := p.parseGenerators()
			if gens == nil {
				return nil
			}
			if len(call.Args) > 0 || p.s.tok != tokens.RParen {
				p.errorf(arg.Location, "generator expression must be parenthesized")
				return nil
			}
			arg = ComprehensionTerm(GeneratorExp, arg, gens...).SetLocation(arg.Location)
			call.Args = append(call.Args, arg)
		default:
			call.Args = append(call.Args, arg)
		}

		if p.s.tok != tokens.Comma {
			break
		}
		p.scan()
	}

	if !p.expect(tokens.RParen) {
		return nil
	}

	return NewTerm(call).SetLocation(fn.Location)
}

func (p *Parser) parseGenerators() []*Generator {
	var gens []*Generator
	for p.s.tok == tokens.For {
		p.scan()

		target := p.parseTarget()
		if target == nil || !p.expect(tokens.In) {
			return nil
		}

		iter := p.parseOr()
		if iter == nil {
			return nil
		}

		g := &Generator{Target: target, Iter: iter}

		for p.s.tok == tokens.If {
			p.scan()
			cond := p.parseOr()
			if cond == nil {
				return nil
			}
			g.Ifs = append(g.Ifs, cond)
		}

		gens = append(gens, g)
	}
	return gens
}

func (p *Parser) parseAtom() *Term {
	loc := p.s.Loc()

	switch p.s.tok {
	case tokens.Ident:
		t := VarTerm(p.s.lit).SetLocation(loc)
		p.scan()
		return t
	case tokens.Number:
		i, err := parseIntLiteral(p.s.lit)
		if err != nil {
			p.error(loc, err.Error())
			return nil
		}
		p.scan()
		return BigIntTerm(i).SetLocation(loc)
	case tokens.String:
		var sb strings.Builder
		for p.s.tok == tokens.String {
			s, err := unquote(p.s.lit)
			if err != nil {
				p.error(p.s.Loc(), err.Error())
				return nil
			}
			sb.WriteString(s)
			p.scan()
		}
		return StringTerm(sb.String()).SetLocation(loc)
	case tokens.LParen:
		return p.parseParens()
	case tokens.LBrack:
		return p.parseList()
	case tokens.LBrace:
		p.error(loc, "dict and set displays are not supported")
		return nil
	}

	p.illegal("expected expression")
	return nil
}

func (p *Parser) parseParens() *Term {
	loc := p.s.Loc()
	p.scan()

	if p.s.tok == tokens.RParen {
		p.error(loc, "tuples are not supported")
		return nil
	}

	inner := p.parseExpr()
	if inner == nil {
		return nil
	}

	switch p.s.tok {
	case tokens.For:
		gens := p.parseGenerators()
		if gens == nil {
			return nil
		}
		inner = ComprehensionTerm(GeneratorExp, inner, gens...).SetLocation(loc)
	case tokens.Comma:
		p.error(loc, "tuples are not supported")
		return nil
	}

	if !p.expect(tokens.RParen) {
		return nil
	}

	return inner
}

func (p *Parser) parseList() *Term {
	loc := p.s.Loc()
	p.scan()

	list := &List{Elems: []*Term{}}

	for p.s.tok != tokens.RBrack {
		elem := p.parseExpr()
		if elem == nil {
			return nil
		}

		if p.s.tok == tokens.For && len(list.Elems) == 0 {
			gens := p.parseGenerators()
			if gens == nil || !p.expect(tokens.RBrack) {
				return nil
			}
			return ComprehensionTerm(ListComp, elem, gens...).SetLocation(loc)
		}

		list.Elems = append(list.Elems, elem)

		if p.s.tok != tokens.Comma {
			break
		}
		p.scan()
	}

	if !p.expect(tokens.RBrack) {
		return nil
	}

	return NewTerm(list).SetLocation(loc)
}

func (p *Parser) expect(tok tokens.Token) bool {
	if p.s.tok != tok {
		p.illegal("expected %v", tok)
		return false
	}
	p.scan()
	return true
}

func (p *Parser) failed() bool {
	return len(p.s.errors) > 0
}

func (p *Parser) scan() {
	for {
		var errs []scanner.Error
		var pos scanner.Position
		p.s.tok, pos, p.s.lit, errs = p.s.s.Scan()

		p.s.loc.File = p.filename
		p.s.loc.Row = pos.Row
		p.s.loc.Col = pos.Col
		p.s.loc.Text = p.s.Text(pos.Offset, pos.End)

		for _, err := range errs {
			p.error(p.s.Loc(), err.Message)
		}

		if p.s.tok != tokens.Comment {
			break
		}
	}

	if p.s.tok == tokens.Illegal && !p.failed() {
		p.illegal("")
	}
}

func (s *state) Loc() *Location {
	cpy := s.loc
	return &cpy
}

func (p *Parser) error(loc *Location, reason string) {
	p.errorf(loc, "%s", reason)
}

func (p *Parser) errorf(loc *Location, f string, a ...any) {
	if p.failed() {
		return
	}
	p.s.errors = append(p.s.errors, &Error{
		Code:     ParseErr,
		Message:  fmt.Sprintf(f, a...),
		Location: loc,
	})
}

func (p *Parser) illegal(note string, a ...any) {
	tok := p.s.tok.String()

	if p.s.tok == tokens.Illegal {
		p.errorf(p.s.Loc(), "illegal token")
		return
	}

	tokType := "token"
	if tokens.IsKeyword(p.s.tok) {
		tokType = "keyword"
	}

	note = fmt.Sprintf(note, a...)
	if len(note) > 0 {
		p.errorf(p.s.Loc(), "unexpected %s %s: %v", tok, tokType, note)
	} else {
		p.errorf(p.s.Loc(), "unexpected %s %s", tok, tokType)
	}
}

// parseIntLiteral parses decimal, hexadecimal, octal and binary integer
// literals. Underscores may separate digits.
func parseIntLiteral(lit string) (*big.Int, error) {
	lower := strings.ToLower(lit)
	prefixed := strings.HasPrefix(lower, "0x") || strings.HasPrefix(lower, "0o") || strings.HasPrefix(lower, "0b")

	if !prefixed {
		if strings.ContainsAny(lower, ".e") {
			return nil, fmt.Errorf("floating point literals are not supported: %v", lit)
		}
		if len(lit) > 1 && lit[0] == '0' && strings.Trim(lit, "0_") != "" {
			return nil, fmt.Errorf("leading zeros in decimal integer literals are not permitted: %v", lit)
		}
		if strings.Trim(lit, "0_") == "" {
			lit = "0"
		}
	}

	i, ok := new(big.Int).SetString(lit, 0)
	if !ok {
		return nil, fmt.Errorf("invalid integer literal: %v", lit)
	}
	return i, nil
}

// unquote decodes a string literal including its optional prefix.
func unquote(lit string) (string, error) {
	i := strings.IndexAny(lit, `"'`)
	if i < 0 {
		return "", fmt.Errorf("invalid string literal: %v", lit)
	}

	prefix := strings.ToLower(lit[:i])
	body := lit[i:]

	switch {
	case strings.Contains(prefix, "b"):
		return "", fmt.Errorf("bytes literals are not supported")
	case strings.Contains(prefix, "f"):
		return "", fmt.Errorf("f-strings are not supported")
	}

	n := 1
	if len(body) >= 6 && (strings.HasPrefix(body, `"""`) || strings.HasPrefix(body, `'''`)) {
		n = 3
	}
	if len(body) < 2*n {
		return "", fmt.Errorf("invalid string literal: %v", lit)
	}
	body = body[n : len(body)-n]

	if strings.Contains(prefix, "r") || !strings.Contains(body, `\`) {
		return body, nil
	}

	return unescape(body)
}

func unescape(s string) (string, error) {
	var buf bytes.Buffer
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			buf.WriteByte(c)
			continue
		}

		i++
		switch c = s[i]; c {
		case '\n':
		case '\\', '\'', '"':
			buf.WriteByte(c)
		case 'n':
			buf.WriteByte('\n')
		case 't':
			buf.WriteByte('\t')
		case 'r':
			buf.WriteByte('\r')
		case 'a':
			buf.WriteByte('\a')
		case 'b':
			buf.WriteByte('\b')
		case 'f':
			buf.WriteByte('\f')
		case 'v':
			buf.WriteByte('\v')
		case 'x', 'u', 'U':
			size := map[byte]int{'x': 2, 'u': 4, 'U': 8}[c]
			if i+1+size > len(s) {
				return "", fmt.Errorf("truncated \\%c escape", c)
			}
			r, err := strconv.ParseUint(s[i+1:i+1+size], 16, 32)
			if err != nil || r > utf8.MaxRune {
				return "", fmt.Errorf("invalid \\%c escape", c)
			}
			buf.WriteRune(rune(r))
			i += size
		case '0', '1', '2', '3', '4', '5', '6', '7':
			j := i
			for j < len(s) && j < i+3 && s[j] >= '0' && s[j] <= '7' {
				j++
			}
			r, _ := strconv.ParseUint(s[i:j], 8, 32)
			buf.WriteRune(rune(r))
			i = j - 1
		default:
			// unknown escapes are kept verbatim
			buf.WriteByte('\\')
			buf.WriteByte(c)
		}
	}
	return buf.String(), nil
}
