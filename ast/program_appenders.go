// Copyright 2016 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package ast

import (
	"strings"
)

// Indent is the text emitted once per block nesting level.
const Indent = "    "

// AppendText appends the source of the module to buf. Every statement line
// is terminated by a newline.
func (mod *Module) AppendText(buf []byte) ([]byte, error) {
	return mod.Body.AppendText(buf)
}

// AppendText appends the statements of body, one per line, to buf.
func (body Body) AppendText(buf []byte) ([]byte, error) {
	var err error
	for _, s := range body {
		if buf, err = appendStatement(buf, s, 0); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func (s *Assign) AppendText(buf []byte) ([]byte, error)    { return appendSingle(buf, s) }
func (s *AugAssign) AppendText(buf []byte) ([]byte, error) { return appendSingle(buf, s) }
func (s *For) AppendText(buf []byte) ([]byte, error)       { return appendSingle(buf, s) }
func (s *While) AppendText(buf []byte) ([]byte, error)     { return appendSingle(buf, s) }
func (s *If) AppendText(buf []byte) ([]byte, error)        { return appendSingle(buf, s) }
func (s *FuncDef) AppendText(buf []byte) ([]byte, error)   { return appendSingle(buf, s) }
func (s *Return) AppendText(buf []byte) ([]byte, error)    { return appendSingle(buf, s) }
func (s *ExprStmt) AppendText(buf []byte) ([]byte, error)  { return appendSingle(buf, s) }
func (s *Pass) AppendText(buf []byte) ([]byte, error)      { return appendSingle(buf, s) }

// appendSingle renders a statement without the trailing newline.
func appendSingle(buf []byte, s Statement) ([]byte, error) {
	buf, err := appendStatement(buf, s, 0)
	if err != nil {
		return nil, err
	}
	return buf[:len(buf)-1], nil
}

func appendBody(buf []byte, body Body, depth int) ([]byte, error) {
	var err error
	if len(body) == 0 {
		buf = appendIndent(buf, depth)
		return append(buf, "pass\n"...), nil
	}
	for _, s := range body {
		if buf, err = appendStatement(buf, s, depth); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func appendIndent(buf []byte, depth int) []byte {
	return append(buf, strings.Repeat(Indent, depth)...)
}

func appendStatement(buf []byte, s Statement, depth int) ([]byte, error) {
	var err error

	buf = appendIndent(buf, depth)

	switch s := s.(type) {
	case *Assign:
		if buf, err = s.Target.AppendText(buf); err != nil {
			return nil, err
		}
		buf = append(buf, " = "...)
		if buf, err = s.Value.AppendText(buf); err != nil {
			return nil, err
		}
	case *AugAssign:
		if buf, err = s.Target.AppendText(buf); err != nil {
			return nil, err
		}
		buf = append(buf, ' ')
		buf = append(buf, s.Op.String()...)
		buf = append(buf, "= "...)
		if buf, err = s.Value.AppendText(buf); err != nil {
			return nil, err
		}
	case *For:
		buf = append(buf, "for "...)
		if buf, err = s.Target.AppendText(buf); err != nil {
			return nil, err
		}
		buf = append(buf, " in "...)
		if buf, err = s.Iter.AppendText(buf); err != nil {
			return nil, err
		}
		return appendBlocks(append(buf, ":\n"...), s.Body, s.Else, depth)
	case *While:
		buf = append(buf, "while "...)
		if buf, err = s.Cond.AppendText(buf); err != nil {
			return nil, err
		}
		return appendBlocks(append(buf, ":\n"...), s.Body, s.Else, depth)
	case *If:
		return appendIf(buf, s, depth, "if ")
	case *FuncDef:
		buf = append(buf, "def "...)
		buf = append(buf, s.Name...)
		buf = append(buf, '(')
		for i, p := range s.Params {
			if i > 0 {
				buf = append(buf, ", "...)
			}
			buf = append(buf, p...)
		}
		buf = append(buf, "):\n"...)
		return appendBody(buf, s.Body, depth+1)
	case *Return:
		buf = append(buf, "return"...)
		if s.Value != nil {
			buf = append(buf, ' ')
			if buf, err = s.Value.AppendText(buf); err != nil {
				return nil, err
			}
		}
	case *ExprStmt:
		if buf, err = s.Expr.AppendText(buf); err != nil {
			return nil, err
		}
	case *Pass:
		buf = append(buf, "pass"...)
	}

	return append(buf, '\n'), nil
}

func appendIf(buf []byte, s *If, depth int, keyword string) ([]byte, error) {
	buf = append(buf, keyword...)
	buf, err := s.Cond.AppendText(buf)
	if err != nil {
		return nil, err
	}
	buf = append(buf, ":\n"...)
	if buf, err = appendBody(buf, s.Body, depth+1); err != nil {
		return nil, err
	}

	if len(s.Else) == 1 {
		if elif, ok := s.Else[0].(*If); ok {
			return appendIf(appendIndent(buf, depth), elif, depth, "elif ")
		}
	}

	return appendElse(buf, s.Else, depth)
}

func appendBlocks(buf []byte, body, orElse Body, depth int) ([]byte, error) {
	buf, err := appendBody(buf, body, depth+1)
	if err != nil {
		return nil, err
	}
	return appendElse(buf, orElse, depth)
}

func appendElse(buf []byte, orElse Body, depth int) ([]byte, error) {
	if len(orElse) == 0 {
		return buf, nil
	}
	buf = appendIndent(buf, depth)
	buf = append(buf, "else:\n"...)
	return appendBody(buf, orElse, depth+1)
}
