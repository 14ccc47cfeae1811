// Copyright 2016 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package ast

import (
	"strconv"
)

// Binding strength of expressions, weakest first. A child whose precedence
// is lower than what its position requires is wrapped in parentheses.
const (
	precLowest = iota
	precOr
	precAnd
	precNot
	precCompare
	precSum
	precProduct
	precUnary
	precPow
	precAtom
)

// Precedence returns the binding strength of v when rendered as source.
func Precedence(v Value) int {
	switch v := v.(type) {
	case Int:
		if v.Sign() < 0 {
			return precUnary
		}
		return precAtom
	case *BinOp:
		return binaryPrecedence(v.Op)
	case *UnaryOp:
		if v.Op == Not {
			return precNot
		}
		return precUnary
	default:
		return precAtom
	}
}

func binaryPrecedence(op Operator) int {
	switch op {
	case Or:
		return precOr
	case And:
		return precAnd
	case Add, Sub:
		return precSum
	case Mul, Div, FloorDiv, Mod:
		return precProduct
	case Pow:
		return precPow
	default:
		return precCompare
	}
}

// AppendText appends the source representation of term to buf and returns
// the extended buffer.
func (term *Term) AppendText(buf []byte) ([]byte, error) {
	return term.Value.AppendText(buf)
}

// appendOperand appends t, parenthesized if it binds weaker than minPrec.
func appendOperand(buf []byte, t *Term, minPrec int) ([]byte, error) {
	var err error
	if Precedence(t.Value) < minPrec {
		buf = append(buf, '(')
		if buf, err = t.Value.AppendText(buf); err != nil {
			return nil, err
		}
		return append(buf, ')'), nil
	}
	return t.Value.AppendText(buf)
}

func (num Int) AppendText(buf []byte) ([]byte, error) {
	if num.v == nil {
		return append(buf, '0'), nil
	}
	return num.v.Append(buf, 10), nil
}

func (str String) AppendText(buf []byte) ([]byte, error) {
	return strconv.AppendQuote(buf, string(str)), nil
}

func (v Var) AppendText(buf []byte) ([]byte, error) {
	return append(buf, v...), nil
}

func (b *BinOp) AppendText(buf []byte) ([]byte, error) {
	prec := binaryPrecedence(b.Op)

	left, right := prec, prec+1
	switch {
	case b.Op == Pow:
		// right associative, and a signed base needs parentheses
		left, right = prec+1, prec
	case b.Op.IsComparison():
		left = prec + 1
	}

	buf, err := appendOperand(buf, b.Left, left)
	if err != nil {
		return nil, err
	}
	buf = append(buf, ' ')
	buf = append(buf, b.Op.String()...)
	buf = append(buf, ' ')
	return appendOperand(buf, b.Right, right)
}

func (u *UnaryOp) AppendText(buf []byte) ([]byte, error) {
	if u.Op == Not {
		return appendOperand(append(buf, "not "...), u.Operand, precNot)
	}
	buf = append(buf, u.Op.String()...)
	return appendOperand(buf, u.Operand, precUnary)
}

func (c *Call) AppendText(buf []byte) ([]byte, error) {
	buf, err := appendOperand(buf, c.Func, precAtom)
	if err != nil {
		return nil, err
	}

	buf = append(buf, '(')

	// A generator expression that is the only argument shares the call's
	// parentheses.
	if len(c.Args) == 1 && len(c.Keywords) == 0 {
		if comp, ok := c.Args[0].Value.(*Comprehension); ok && comp.Kind == GeneratorExp {
			if buf, err = comp.appendInner(buf); err != nil {
				return nil, err
			}
			return append(buf, ')'), nil
		}
	}

	if buf, err = AppendDelimeted(buf, c.Args, ", "); err != nil {
		return nil, err
	}

	for i, kw := range c.Keywords {
		if i > 0 || len(c.Args) > 0 {
			buf = append(buf, ", "...)
		}
		buf = append(buf, kw.Name...)
		buf = append(buf, '=')
		if buf, err = kw.Value.AppendText(buf); err != nil {
			return nil, err
		}
	}

	return append(buf, ')'), nil
}

func (l *List) AppendText(buf []byte) ([]byte, error) {
	buf, err := AppendDelimeted(append(buf, '['), l.Elems, ", ")
	if err != nil {
		return nil, err
	}
	return append(buf, ']'), nil
}

func (c *Comprehension) AppendText(buf []byte) ([]byte, error) {
	open, closing := byte('('), byte(')')
	if c.Kind == ListComp {
		open, closing = '[', ']'
	}

	buf, err := c.appendInner(append(buf, open))
	if err != nil {
		return nil, err
	}
	return append(buf, closing), nil
}

func (c *Comprehension) appendInner(buf []byte) ([]byte, error) {
	buf, err := c.Elem.AppendText(buf)
	if err != nil {
		return nil, err
	}

	for _, g := range c.Generators {
		buf = append(buf, " for "...)
		if buf, err = g.Target.AppendText(buf); err != nil {
			return nil, err
		}
		buf = append(buf, " in "...)
		if buf, err = appendOperand(buf, g.Iter, precOr); err != nil {
			return nil, err
		}
		for _, cond := range g.Ifs {
			buf = append(buf, " if "...)
			if buf, err = appendOperand(buf, cond, precOr); err != nil {
				return nil, err
			}
		}
	}

	return buf, nil
}

// AppendDelimeted appends the text representation of terms, separated by
// delim, to buf.
func AppendDelimeted(buf []byte, terms []*Term, delim string) ([]byte, error) {
	var err error
	for i, t := range terms {
		if i > 0 {
			buf = append(buf, delim...)
		}
		if buf, err = t.AppendText(buf); err != nil {
			return nil, err
		}
	}
	return buf, nil
}
