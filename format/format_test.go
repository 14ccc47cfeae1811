// Copyright 2017 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package format

import (
	"testing"

	"github.com/sumfold/sumfold/ast"
)

func TestFormatSource(t *testing.T) {

	tests := []struct {
		note   string
		input  string
		indent string
		exp    string
	}{
		{
			note:  "spacing",
			input: "S=0\nfor i in range(3):\n  S+=i*(i+1)\n",
			exp:   "S = 0\nfor i in range(3):\n    S += i * (i + 1)\n",
		},
		{
			note:  "redundant parentheses",
			input: "x = (a * b) + ((c))\n",
			exp:   "x = a * b + c\n",
		},
		{
			note:   "tabs",
			input:  "def f(n):\n    if n:\n        return 1\n    return 2\n",
			indent: "\t",
			exp:    "def f(n):\n\tif n:\n\t\treturn 1\n\treturn 2\n",
		},
		{
			note:  "empty",
			input: "",
			exp:   "",
		},
	}

	for _, tc := range tests {
		t.Run(tc.note, func(t *testing.T) {
			result, err := SourceWithOpts("test.py", []byte(tc.input), Opts{Indent: tc.indent})
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if string(result) != tc.exp {
				t.Fatalf("Expected:\n\n%q\n\nGot:\n\n%q", tc.exp, result)
			}
		})
	}
}

func TestFormatSourceError(t *testing.T) {
	if _, err := Source("test.py", []byte("for\n")); err == nil {
		t.Fatal("Expected parse error")
	}
}

func TestFormatAst(t *testing.T) {
	if bs := MustAst(ast.MustParseExpr("1+2*x")); string(bs) != "1 + 2 * x" {
		t.Fatalf("Unexpected term: %q", bs)
	}
	if bs := MustAst(ast.MustParseStatement("S+=1")); string(bs) != "S += 1\n" {
		t.Fatalf("Unexpected statement: %q", bs)
	}
	if _, err := Ast(42); err == nil {
		t.Fatal("Expected error for non-ast value")
	}
}
