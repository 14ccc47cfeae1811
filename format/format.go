// Copyright 2017 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package format implements formatting of Python source files.
package format

import (
	"bytes"
	"fmt"

	"github.com/sumfold/sumfold/ast"
)

// Opts lets you control the code formatting via `AstWithOpts()`.
type Opts struct {
	// Indent is the text emitted once per nesting level. Defaults to four
	// spaces.
	Indent string
}

// Source formats a Python source file. The bytes provided must describe a
// complete module. If they don't, Source will return an error resulting from
// the attempt to parse the bytes.
func Source(filename string, src []byte) ([]byte, error) {
	return SourceWithOpts(filename, src, Opts{})
}

// SourceWithOpts formats a Python source file with the given options.
func SourceWithOpts(filename string, src []byte, opts Opts) ([]byte, error) {
	module, err := ast.ParseModule(filename, string(src))
	if err != nil {
		return nil, err
	}
	return AstWithOpts(module, opts)
}

// MustAst is a helper function to format an AST element. If any errors
// occurs this function will panic. This is mostly used for test
func MustAst(x any) []byte {
	bs, err := Ast(x)
	if err != nil {
		panic(err)
	}
	return bs
}

// Ast formats an AST element. Modules, bodies and statements are rendered
// one statement per line; terms are rendered without a trailing newline.
func Ast(x any) ([]byte, error) {
	return AstWithOpts(x, Opts{})
}

// AstWithOpts formats an AST element with the given options.
func AstWithOpts(x any, opts Opts) ([]byte, error) {
	var bs []byte
	var err error

	switch x := x.(type) {
	case *ast.Module:
		bs, err = x.AppendText(nil)
	case ast.Body:
		bs, err = x.AppendText(nil)
	case ast.Statement:
		bs, err = x.AppendText(nil)
		bs = append(bs, '\n')
	case *ast.Term:
		bs, err = x.AppendText(nil)
	default:
		return nil, fmt.Errorf("not an ast element: %v", x)
	}
	if err != nil {
		return nil, err
	}

	if opts.Indent == "" || opts.Indent == ast.Indent {
		return bs, nil
	}
	return reindent(bs, opts.Indent), nil
}

func reindent(bs []byte, indent string) []byte {
	unit := []byte(ast.Indent)
	lines := bytes.SplitAfter(bs, []byte("\n"))
	out := make([]byte, 0, len(bs))
	for _, line := range lines {
		depth := 0
		for bytes.HasPrefix(line, unit) {
			line = line[len(unit):]
			depth++
		}
		for range depth {
			out = append(out, indent...)
		}
		out = append(out, line...)
	}
	return out
}
