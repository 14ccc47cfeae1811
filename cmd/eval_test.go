// Copyright 2018 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sumfold/sumfold/ast"
	"github.com/sumfold/sumfold/util/test"
)

const sumProgram = `S = 0
for i in range(n):
    S += i
print(S)
`

type evalJSON struct {
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
	Bindings map[string]any `json:"bindings"`
	Steps    int64          `json:"steps"`
	Metrics  map[string]any `json:"metrics"`
}

func testEvalJSON(t *testing.T, params evalCommandParams, src string) (int, evalJSON, string) {
	t.Helper()

	if err := params.outputFormat.Set("json"); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	code := evalFile(context.Background(), nil, &params, strings.NewReader(src), &stdout, &stderr)

	var out evalJSON
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		t.Fatalf("Expected JSON output but got %v:\n%s", err, stdout.String())
	}
	return code, out, stderr.String()
}

func TestEvalBindings(t *testing.T) {
	files := map[string]string{
		"sum.py": sumProgram,
	}

	test.WithTempFS(files, func(root string) {
		params := newEvalCommandParams()
		params.bindings = []string{"n=10"}

		var stdout, stderr bytes.Buffer
		code := evalFile(context.Background(), []string{filepath.Join(root, "sum.py")}, &params, nil, &stdout, &stderr)
		if code != 0 {
			t.Fatalf("Expected exit code 0 but got %d: %v", code, stderr.String())
		}

		out := stdout.String()
		if !strings.HasPrefix(out, "45\n") {
			t.Fatalf("Expected print output first but got:\n%s", out)
		}
		for _, exp := range []string{"NAME", "VALUE", "| S ", "| 45 ", "| n ", "| 10 "} {
			if !strings.Contains(out, exp) {
				t.Fatalf("Expected output to contain %q:\n\n%s", exp, out)
			}
		}
	})
}

func TestEvalJSON(t *testing.T) {
	params := newEvalCommandParams()
	params.bindings = []string{"n=10"}
	params.metrics = true

	code, out, stderr := testEvalJSON(t, params, sumProgram)
	if code != 0 {
		t.Fatalf("Expected exit code 0 but got %d: %v", code, stderr)
	}
	if stderr != "45\n" {
		t.Fatalf("Expected print output on stderr but got %q", stderr)
	}
	if out.Bindings["S"] != float64(45) || out.Bindings["i"] != float64(9) {
		t.Fatalf("Unexpected bindings: %v", out.Bindings)
	}
	if out.Steps == 0 {
		t.Fatal("Expected steps to be counted")
	}
	if _, ok := out.Metrics["counter_eval_interpret_step"]; !ok {
		t.Fatalf("Expected step counter in metrics but got: %v", out.Metrics)
	}
}

func TestEvalOptimize(t *testing.T) {
	params := newEvalCommandParams()
	params.bindings = []string{"n=1000"}
	params.optimize = true

	code, out, stderr := testEvalJSON(t, params, sumProgram)
	if code != 0 {
		t.Fatalf("Expected exit code 0 but got %d: %v", code, stderr)
	}
	if out.Bindings["S"] != float64(499500) {
		t.Fatalf("Unexpected bindings: %v", out.Bindings)
	}
	if _, ok := out.Bindings["i"]; ok {
		t.Fatalf("Expected loop to be rewritten but got: %v", out.Bindings)
	}

	params.optimize = false
	_, plain, _ := testEvalJSON(t, params, sumProgram)
	if plain.Steps <= out.Steps {
		t.Fatalf("Expected optimized program to take fewer steps (%d) than the original (%d)", out.Steps, plain.Steps)
	}
}

func TestEvalErrors(t *testing.T) {
	tests := []struct {
		note     string
		src      string
		bindings []string
		maxSteps int64
		code     string
	}{
		{
			note: "unbound name",
			src:  sumProgram,
			code: "eval_name_error",
		},
		{
			note: "parse error",
			src:  "for\n",
			code: ast.ParseErr,
		},
		{
			note:     "budget",
			src:      sumProgram,
			bindings: []string{"n=1000"},
			maxSteps: 10,
			code:     "eval_budget_error",
		},
		{
			note:     "invalid binding",
			src:      sumProgram,
			bindings: []string{"n"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.note, func(t *testing.T) {
			params := newEvalCommandParams()
			params.bindings = tc.bindings
			if tc.maxSteps > 0 {
				params.maxSteps = tc.maxSteps
			}

			code, out, _ := testEvalJSON(t, params, tc.src)
			if code != 1 {
				t.Fatalf("Expected exit code 1 but got %d", code)
			}
			if len(out.Errors) != 1 || out.Errors[0].Code != tc.code || out.Errors[0].Message == "" {
				t.Fatalf("Expected one error with code %q but got %+v", tc.code, out.Errors)
			}
		})
	}
}

func TestParseBindings(t *testing.T) {
	tests := []struct {
		note    string
		pairs   []string
		exp     map[string]string
		wantErr bool
	}{
		{
			note:  "decimal and hex",
			pairs: []string{"n=10", " m = 0x10 ", "k=-3"},
			exp:   map[string]string{"n": "10", "m": "16", "k": "-3"},
		},
		{
			note:    "missing value",
			pairs:   []string{"n"},
			wantErr: true,
		},
		{
			note:    "not an integer",
			pairs:   []string{"n=abc"},
			wantErr: true,
		},
		{
			note:    "not a name",
			pairs:   []string{"1=2"},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.note, func(t *testing.T) {
			bindings, err := parseBindings(tc.pairs)
			if tc.wantErr {
				if err == nil {
					t.Fatal("Expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if len(bindings) != len(tc.exp) {
				t.Fatalf("Expected %v but got %v", tc.exp, bindings)
			}
			for k, v := range tc.exp {
				if bindings[ast.Var(k)].String() != v {
					t.Fatalf("Expected %v=%v but got %v", k, v, bindings[ast.Var(k)])
				}
			}
		})
	}
}
