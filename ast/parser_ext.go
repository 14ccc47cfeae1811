// Copyright 2016 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// This file contains extra functions for parsing Python source. The
// grammar itself lives in parser.go; these helpers cover the common entry
// points (source files, REPL input, single expressions).

package ast

import (
	"bytes"
	"fmt"

	"github.com/pkg/errors"
)

// MustParseModule returns a parsed module.
// If an error occurs during parsing, panic.
func MustParseModule(input string) *Module {
	parsed, err := ParseModule("", input)
	if err != nil {
		panic(err)
	}
	return parsed
}

// MustParseStatements returns a slice of parsed statements.
// If an error occurs during parsing, panic.
func MustParseStatements(input string) Body {
	parsed, err := ParseStatements("", input)
	if err != nil {
		panic(err)
	}
	return parsed
}

// MustParseStatement returns exactly one statement.
// If an error occurs during parsing, panic.
func MustParseStatement(input string) Statement {
	parsed, err := ParseStatement(input)
	if err != nil {
		panic(err)
	}
	return parsed
}

// MustParseExpr returns a parsed expression.
// If an error occurs during parsing, panic.
func MustParseExpr(input string) *Term {
	parsed, err := ParseExpr(input)
	if err != nil {
		panic(err)
	}
	return parsed
}

// ParseModule returns a parsed Module object.
// Empty input results in a module with an empty body.
func ParseModule(filename, input string) (*Module, error) {
	stmts, err := ParseStatements(filename, input)
	if err != nil {
		return nil, err
	}
	return &Module{Body: stmts}, nil
}

// ParseStatements returns a slice of parsed statements.
// This is the default return value from the parser.
func ParseStatements(filename, input string) (Body, error) {
	stmts, errs := NewParser().
		WithFilename(filename).
		WithReader(bytes.NewBufferString(input)).
		Parse()

	if len(errs) > 0 {
		return nil, errs
	}

	return stmts, nil
}

// ParseStatement returns exactly one statement.
// If multiple statements are parsed, an error is returned.
func ParseStatement(input string) (Statement, error) {
	stmts, err := ParseStatements("", input)
	if err != nil {
		return nil, err
	}
	if len(stmts) != 1 {
		return nil, fmt.Errorf("expected exactly one statement")
	}
	return stmts[0], nil
}

// ParseExpr returns exactly one expression.
// If the input is not a single expression statement, an error is returned.
func ParseExpr(input string) (*Term, error) {
	stmt, err := ParseStatement(input)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse expression")
	}
	expr, ok := stmt.(*ExprStmt)
	if !ok {
		return nil, fmt.Errorf("expected expression but got %v", TypeName(stmt))
	}
	return expr.Expr, nil
}
