// Copyright 2016 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package eval

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/sumfold/sumfold/ast"
	"github.com/sumfold/sumfold/metrics"
)

func TestModuleValues(t *testing.T) {

	tests := []struct {
		note     string
		module   string
		bindings map[string]int64
		name     string
		exp      string
	}{
		{
			note:   "gauss",
			module: "S = 0\nfor i in range(100):\n    S += i\n",
			name:   "S",
			exp:    "4950",
		},
		{
			note:   "sum with start",
			module: "S = sum((i * i for i in range(10)), 5)\n",
			name:   "S",
			exp:    "290",
		},
		{
			note:   "sum with start keyword",
			module: "S = sum([i for i in range(4)], start=-6)\n",
			name:   "S",
			exp:    "0",
		},
		{
			note:   "floor division rounds down",
			module: "a = -7 // 2\n",
			name:   "a",
			exp:    "-4",
		},
		{
			note:   "modulo has the sign of the divisor",
			module: "a = -7 % 3\n",
			name:   "a",
			exp:    "2",
		},
		{
			note:   "power",
			module: "a = 2 ** 100\n",
			name:   "a",
			exp:    "1267650600228229401496703205376",
		},
		{
			note:     "free variables",
			module:   "a = n * n - m\n",
			bindings: map[string]int64{"n": 12, "m": 4},
			name:     "a",
			exp:      "140",
		},
		{
			note:   "max and min",
			module: "a = max(-3, 0) + min([4, 2, 9])\n",
			name:   "a",
			exp:    "2",
		},
		{
			note:   "while",
			module: "i = 0\nwhile i < 10:\n    i += 3\n",
			name:   "i",
			exp:    "12",
		},
		{
			note:   "if elif else",
			module: "x = 5\nif x < 3:\n    y = 1\nelif x < 6:\n    y = 2\nelse:\n    y = 3\n",
			name:   "y",
			exp:    "2",
		},
		{
			note:   "function",
			module: "def f(a, b):\n    return a * b + 1\nr = f(3, b=4)\n",
			name:   "r",
			exp:    "13",
		},
		{
			note:   "function locals do not leak",
			module: "x = 1\ndef f():\n    x = 2\n    return x\ny = f() + x\n",
			name:   "y",
			exp:    "3",
		},
		{
			note:   "range with step",
			module: "S = sum(range(10, 0, -3))\n",
			name:   "S",
			exp:    "22",
		},
		{
			note:   "empty range",
			module: "S = 7\nfor i in range(5, 2):\n    S += i\n",
			name:   "S",
			exp:    "7",
		},
		{
			note:   "comprehension with condition",
			module: "S = sum(i for i in range(10) if i % 2 == 0)\n",
			name:   "S",
			exp:    "20",
		},
		{
			note:   "nested generators",
			module: "S = sum(i * j for i in range(3) for j in range(4))\n",
			name:   "S",
			exp:    "18",
		},
		{
			note:   "boolean operators",
			module: "a = (0 or 5) + (3 and 4) + (not 0)\n",
			name:   "a",
			exp:    "10",
		},
		{
			note:   "len",
			module: "a = len(range(3, 10, 2)) + len([1, 2]) + len('abc')\n",
			name:   "a",
			exp:    "9",
		},
	}

	for _, tc := range tests {
		t.Run(tc.note, func(t *testing.T) {
			m := ast.MustParseModule(tc.module)
			result, err := New().Module(context.Background(), m, IntBindings(tc.bindings))
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			v, ok := result.Get(tc.name)
			if !ok {
				t.Fatalf("Expected %v to be bound in %v", tc.name, result.Names())
			}
			if v.String() != tc.exp {
				t.Fatalf("Expected %v = %v but got %v", tc.name, tc.exp, v)
			}
		})
	}
}

func TestModuleErrors(t *testing.T) {

	tests := []struct {
		note   string
		module string
		code   string
		msg    string
	}{
		{
			note:   "unbound name",
			module: "a = b + 1\n",
			code:   NameErr,
			msg:    "name b is not defined",
		},
		{
			note:   "zero division",
			module: "a = 1 // 0\n",
			code:   ZeroDivisionErr,
			msg:    "integer division or modulo by zero",
		},
		{
			note:   "true division",
			module: "a = 1 / 2\n",
			code:   TypeErr,
			msg:    "true division is not supported",
		},
		{
			note:   "negative exponent",
			module: "a = 2 ** -1\n",
			code:   TypeErr,
			msg:    "negative exponent",
		},
		{
			note:   "not callable",
			module: "a = 1\nb = a(2)\n",
			code:   TypeErr,
			msg:    "int object is not callable",
		},
		{
			note:   "not iterable",
			module: "for i in 5:\n    pass\n",
			code:   TypeErr,
			msg:    "int object is not iterable",
		},
		{
			note:   "return outside function",
			module: "return 1\n",
			code:   TypeErr,
			msg:    "return outside function",
		},
		{
			note:   "budget",
			module: "while 1:\n    pass\n",
			code:   BudgetErr,
			msg:    "step budget of 1000 exhausted",
		},
	}

	for _, tc := range tests {
		t.Run(tc.note, func(t *testing.T) {
			m := ast.MustParseModule(tc.module)
			_, err := New().WithMaxSteps(1000).Module(context.Background(), m, nil)
			if err == nil {
				t.Fatal("Expected error")
			}
			if !IsCode(err, tc.code) {
				t.Fatalf("Expected %v but got %v", tc.code, err)
			}
			if !strings.Contains(err.Error(), tc.msg) {
				t.Fatalf("Expected error to contain %q but got %v", tc.msg, err)
			}
		})
	}
}

func TestCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := ast.MustParseModule("S = 0\nfor i in range(100000):\n    S += i\n")
	_, err := New().Module(ctx, m, nil)
	if !IsCode(err, CancelErr) {
		t.Fatalf("Expected cancel error but got %v", err)
	}
}

func TestPrint(t *testing.T) {
	var buf bytes.Buffer
	m := ast.MustParseModule("print('S =', 3 * 4, [1, 'a'], None, 1 < 2)\n")
	if _, err := New().WithOutput(&buf).Module(context.Background(), m, nil); err != nil {
		t.Fatal(err)
	}
	if exp := "S = 12 [1, \"a\"] None True\n"; buf.String() != exp {
		t.Fatalf("Expected %q but got %q", exp, buf.String())
	}
}

func TestExpr(t *testing.T) {
	v, err := New().Expr(context.Background(), ast.MustParseExpr("(max(n, 0) ** 2 - max(n, 0)) // 2"), IntBindings(map[string]int64{"n": 10}))
	if err != nil {
		t.Fatal(err)
	}
	if v.String() != "45" {
		t.Fatalf("Expected 45 but got %v", v)
	}
}

func TestStepsMetric(t *testing.T) {
	m := metrics.New()
	mod := ast.MustParseModule("S = 0\nfor i in range(10):\n    S += i\n")
	result, err := New().WithMetrics(m).Module(context.Background(), mod, nil)
	if err != nil {
		t.Fatal(err)
	}
	// two statements, ten iterations, ten body statements
	if result.Steps != 22 {
		t.Fatalf("Expected 22 steps but got %d", result.Steps)
	}
	if v := m.Counter(metrics.EvalInterpretStep).Int64(); v != 22 {
		t.Fatalf("Expected step counter 22 but got %d", v)
	}
}

func TestInts(t *testing.T) {
	mod := ast.MustParseModule("a = 1\nb = 'x'\ndef f():\n    pass\n")
	result, err := New().Module(context.Background(), mod, nil)
	if err != nil {
		t.Fatal(err)
	}
	ints := result.Ints()
	if len(ints) != 1 || ints["a"].Int64() != 1 {
		t.Fatalf("Unexpected ints: %v", ints)
	}
	if names := result.Names(); strings.Join(names, ",") != "a,b,f" {
		t.Fatalf("Unexpected names: %v", names)
	}
}

func TestBuiltins(t *testing.T) {
	if exp := "abs,len,list,max,min,print,range,sum"; strings.Join(Builtins(), ",") != exp {
		t.Fatalf("Expected %v but got %v", exp, Builtins())
	}
}

func TestContinue(t *testing.T) {
	ctx := context.Background()
	i := New()

	r, err := i.Continue(ctx, nil, ast.MustParseModule("def f():\n    return x * 2\n"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := i.Continue(ctx, r, ast.MustParseModule("x = 21\n")); err != nil {
		t.Fatal(err)
	}

	v, err := i.ExprIn(ctx, r, ast.MustParseExpr("f()"))
	if err != nil {
		t.Fatal(err)
	}
	if v.String() != "42" {
		t.Fatalf("Expected 42 but got %v", v)
	}
	if names := strings.Join(r.Names(), ","); names != "f,x" {
		t.Fatalf("Expected the previous result to see new names but got %v", names)
	}
}
