// Copyright 2017 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sumfold/sumfold/ast"
	"github.com/sumfold/sumfold/loader"
	"github.com/sumfold/sumfold/util/test"
)

const unoptimized = `S = 0
for i in range(10):
    S += i
`

const optimized = `S = 0
S = 45
`

func runOptimize(t *testing.T, params optimizeCommandParams, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := optimize(context.Background(), args, &params, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestOptimizeStdin(t *testing.T) {
	code, stdout, stderr := runOptimize(t, newOptimizeCommandParams(), unoptimized)
	if code != 0 {
		t.Fatalf("Expected exit code 0 but got %d: %v", code, stderr)
	}
	if stdout != optimized {
		test.FatalMismatch(t, stdout, optimized)
	}
}

func TestOptimizeStdinParseError(t *testing.T) {
	code, stdout, stderr := runOptimize(t, newOptimizeCommandParams(), "for\n")
	if code != 1 {
		t.Fatalf("Expected exit code 1 but got %d", code)
	}
	if stdout != "" || !strings.Contains(stderr, "stdin") {
		t.Fatalf("Unexpected output: stdout %q stderr %q", stdout, stderr)
	}
}

func TestOptimizeFile(t *testing.T) {
	files := map[string]string{
		"a.py": unoptimized,
	}

	test.WithTempFS(files, func(root string) {
		code, stdout, stderr := runOptimize(t, newOptimizeCommandParams(), "", filepath.Join(root, "a.py"))
		if code != 0 {
			t.Fatalf("Expected exit code 0 but got %d: %v", code, stderr)
		}
		if stdout != optimized {
			test.FatalMismatch(t, stdout, optimized)
		}
	})
}

func TestOptimizeFailNoChanges(t *testing.T) {
	params := newOptimizeCommandParams()
	params.fail = true

	files := map[string]string{
		"a.py": optimized,
	}

	test.WithTempFS(files, func(root string) {
		code, stdout, _ := runOptimize(t, params, "", filepath.Join(root, "a.py"))
		if code != 0 {
			t.Fatalf("Expected exit code 0 but got %d", code)
		}
		if stdout != optimized {
			test.FatalMismatch(t, stdout, optimized)
		}
	})
}

func TestOptimizeFailWithChanges(t *testing.T) {
	params := newOptimizeCommandParams()
	params.fail = true

	files := map[string]string{
		"a.py": unoptimized,
	}

	test.WithTempFS(files, func(root string) {
		code, stdout, stderr := runOptimize(t, params, "", filepath.Join(root, "a.py"))
		if code != 2 {
			t.Fatalf("Expected exit code 2 but got %d", code)
		}
		if stdout != "" {
			t.Fatalf("Expected no output but got:\n%s", stdout)
		}
		if !strings.Contains(stderr, "unexpected rewrite") {
			t.Fatalf("Expected rewrite error but got %q", stderr)
		}
	})
}

func TestOptimizeList(t *testing.T) {
	files := map[string]string{
		"a.py":     unoptimized,
		"b.py":     optimized,
		"sub/c.py": unoptimized,
	}

	test.WithTempFS(files, func(root string) {
		params := newOptimizeCommandParams()
		params.list = true

		code, stdout, stderr := runOptimize(t, params, "", root)
		if code != 0 {
			t.Fatalf("Expected exit code 0 but got %d: %v", code, stderr)
		}

		exp := filepath.Join(root, "a.py") + "\n" + filepath.Join(root, "sub", "c.py") + "\n"
		if stdout != exp {
			t.Fatalf("Expected:\n%s\n\nGot:\n%s\n\n", exp, stdout)
		}

		params.fail = true
		code, stdout, _ = runOptimize(t, params, "", root)
		if code != 2 {
			t.Fatalf("Expected exit code 2 but got %d", code)
		}
		if stdout != filepath.Join(root, "a.py")+"\n" {
			t.Fatalf("Expected listing to stop at the first file but got:\n%s", stdout)
		}
	})
}

func TestOptimizeDiff(t *testing.T) {
	files := map[string]string{
		"a.py": unoptimized,
	}

	test.WithTempFS(files, func(root string) {
		params := newOptimizeCommandParams()
		params.diff = true

		code, stdout, stderr := runOptimize(t, params, "", filepath.Join(root, "a.py"))
		if code != 0 {
			t.Fatalf("Expected exit code 0 but got %d: %v", code, stderr)
		}

		for _, exp := range []string{"--- ", "+++ ", "@@ ", " S = 0\n", "-for i in range(10):\n", "-    S += i\n", "+S = 45\n"} {
			if !strings.Contains(stdout, exp) {
				t.Fatalf("Expected diff to contain %q:\n\n%s", exp, stdout)
			}
		}
	})
}

func TestOptimizeDiffNoChanges(t *testing.T) {
	files := map[string]string{
		"a.py": optimized,
	}

	test.WithTempFS(files, func(root string) {
		params := newOptimizeCommandParams()
		params.diff = true
		params.fail = true

		code, stdout, _ := runOptimize(t, params, "", filepath.Join(root, "a.py"))
		if code != 0 || stdout != "" {
			t.Fatalf("Expected no diff but got code %d:\n%s", code, stdout)
		}
	})
}

func TestOptimizeWrite(t *testing.T) {
	files := map[string]string{
		"a.py": unoptimized,
		"b.py": "x = 1\n\n\n",
	}

	test.WithTempFS(files, func(root string) {
		params := newOptimizeCommandParams()
		params.overwrite = true

		code, stdout, stderr := runOptimize(t, params, "", root)
		if code != 0 {
			t.Fatalf("Expected exit code 0 but got %d: %v", code, stderr)
		}
		if stdout != "" {
			t.Fatalf("Expected no output but got:\n%s", stdout)
		}

		bs, err := os.ReadFile(filepath.Join(root, "a.py"))
		if err != nil {
			t.Fatal(err)
		}
		if string(bs) != optimized {
			t.Fatalf("Expected:\n%s\n\nGot:\n%s\n\n", optimized, string(bs))
		}

		// Files without rewrites are left alone, layout included.
		bs, err = os.ReadFile(filepath.Join(root, "b.py"))
		if err != nil {
			t.Fatal(err)
		}
		if string(bs) != "x = 1\n\n\n" {
			t.Fatalf("Expected b.py to be untouched but got %q", string(bs))
		}
	})
}

func TestOptimizeIgnore(t *testing.T) {
	files := map[string]string{
		"a.py":        unoptimized,
		"vendor/b.py": unoptimized,
	}

	test.WithTempFS(files, func(root string) {
		params := newOptimizeCommandParams()
		params.list = true
		params.ignore = []string{"vendor"}

		_, stdout, _ := runOptimize(t, params, "", root)
		if stdout != filepath.Join(root, "a.py")+"\n" {
			t.Fatalf("Expected vendor to be ignored but got:\n%s", stdout)
		}
	})
}

func TestOptimizeConfigFile(t *testing.T) {
	files := map[string]string{
		"a.py":        unoptimized,
		"vendor/b.py": unoptimized,
		"build/c.py":  unoptimized,
		"config.yaml": "ignore:\n- vendor\n",
	}

	test.WithTempFS(files, func(root string) {
		params := newOptimizeCommandParams()
		params.list = true
		params.configFile = filepath.Join(root, "config.yaml")
		params.configOverrides = []string{"ignore=[vendor,build]"}
		params.changed = func(string) bool { return false }

		code, stdout, stderr := runOptimize(t, params, "", root)
		if code != 0 {
			t.Fatalf("Expected exit code 0 but got %d: %v", code, stderr)
		}

		if stdout != filepath.Join(root, "a.py")+"\n" {
			t.Fatalf("Expected only a.py to be listed but got:\n%s", stdout)
		}
	})
}

func TestOptimizeConfigFlagsTakePrecedence(t *testing.T) {
	files := map[string]string{
		"config.yaml": "max_exponent: 3\nlogging:\n  level: debug\n",
	}

	test.WithTempFS(files, func(root string) {
		params := newOptimizeCommandParams()
		params.configFile = filepath.Join(root, "config.yaml")
		params.maxExponent = 5
		params.changed = func(name string) bool { return name == "max-exponent" }

		var stdout, stderr bytes.Buffer
		if code := optimize(context.Background(), nil, &params, strings.NewReader("x = 1\n"), &stdout, &stderr); code != 0 {
			t.Fatalf("Expected exit code 0 but got %d: %v", code, stderr.String())
		}
		if params.maxExponent != 5 {
			t.Fatalf("Expected flag value to be kept but got %d", params.maxExponent)
		}
		if params.logLevel.String() != "debug" {
			t.Fatalf("Expected configured log level but got %v", params.logLevel.String())
		}
	})
}

func TestOptimizeConfigInvalid(t *testing.T) {
	params := newOptimizeCommandParams()
	params.configOverrides = []string{"max_exponent=0"}

	code, _, stderr := runOptimize(t, params, unoptimized)
	if code != 1 || !strings.Contains(stderr, "max_exponent") {
		t.Fatalf("Expected config error but got code %d: %v", code, stderr)
	}
}

func TestOptimizeReportJSON(t *testing.T) {
	src := "S = 0\nfor i in range(10):\n    S += i\nfor i in range(3):\n    T += i\n"

	params := newOptimizeCommandParams()
	if err := params.report.Set("json"); err != nil {
		t.Fatal(err)
	}
	params.metrics = true

	code, stdout, stderr := runOptimize(t, params, src)
	if code != 0 {
		t.Fatalf("Expected exit code 0 but got %d: %v", code, stderr)
	}

	var output struct {
		Files []struct {
			File  string `json:"file"`
			Loops []struct {
				Kind        string `json:"kind"`
				Status      string `json:"status"`
				Reason      string `json:"reason"`
				Replacement string `json:"replacement"`
			} `json:"loops"`
		} `json:"files"`
		Metrics map[string]any `json:"metrics"`
	}
	if err := json.Unmarshal([]byte(stdout), &output); err != nil {
		t.Fatalf("Expected JSON but got %v:\n%s", err, stdout)
	}

	if len(output.Files) != 1 || output.Files[0].File != "stdin" {
		t.Fatalf("Unexpected files: %s", stdout)
	}

	loops := output.Files[0].Loops
	if len(loops) != 2 {
		t.Fatalf("Expected two loops but got: %s", stdout)
	}
	if loops[0].Kind != "for" || loops[0].Status != "resolved" || loops[0].Replacement != "S = 45" {
		t.Fatalf("Unexpected first loop: %+v", loops[0])
	}
	if loops[1].Status != "blocked" || loops[1].Reason == "" {
		t.Fatalf("Unexpected second loop: %+v", loops[1])
	}

	if _, ok := output.Metrics["counter_loops_rewritten"]; !ok {
		t.Fatalf("Expected metrics in report but got: %v", output.Metrics)
	}
}

func TestOptimizeReportPretty(t *testing.T) {
	params := newOptimizeCommandParams()
	if err := params.report.Set("pretty"); err != nil {
		t.Fatal(err)
	}

	code, stdout, _ := runOptimize(t, params, unoptimized)
	if code != 0 {
		t.Fatalf("Expected exit code 0 but got %d", code)
	}
	if strings.Contains(stdout, "S = 0\n") {
		t.Fatalf("Expected source to be suppressed:\n%s", stdout)
	}
	for _, exp := range []string{"stdin:", "resolved", "S = 45"} {
		if !strings.Contains(stdout, exp) {
			t.Fatalf("Expected report to contain %q:\n\n%s", exp, stdout)
		}
	}
}

func TestOptimizeMetricsTextfile(t *testing.T) {
	test.WithTempFS(map[string]string{}, func(root string) {
		params := newOptimizeCommandParams()
		params.metricsTextfile = filepath.Join(root, "sumfold.prom")

		if code, _, stderr := runOptimize(t, params, unoptimized); code != 0 {
			t.Fatalf("Expected exit code 0 but got %d: %v", code, stderr)
		}

		bs, err := os.ReadFile(params.metricsTextfile)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(bs), `sumfold_constructs_total{kind="for",status="resolved"} 1`) {
			t.Fatalf("Unexpected textfile contents:\n%s", string(bs))
		}
	})
}

func TestOptimizeVerify(t *testing.T) {
	params := newOptimizeCommandParams()
	params.verify = true

	src := "S = 0\nfor i in range(n):\n    S += i * i\nT = sum(k for k in range(5))\n"
	code, _, stderr := runOptimize(t, params, src)
	if code != 0 {
		t.Fatalf("Expected verification to pass but got %d: %v", code, stderr)
	}
}

func TestOptimizeVerifyNoSamples(t *testing.T) {
	params := newOptimizeCommandParams()
	params.verify = true

	src := "S = 0\nfor i in range(10):\n    S += i\nx = 1 // 0\n"
	code, stdout, stderr := runOptimize(t, params, src)
	if code != 0 {
		t.Fatalf("Expected exit code 0 but got %d: %v", code, stderr)
	}
	if !strings.Contains(stdout, "S = 45\n") {
		t.Fatalf("Expected optimized output but got %q", stdout)
	}
	if !strings.Contains(stderr, "was not verified") {
		t.Fatalf("Expected warning on stderr but got %q", stderr)
	}
}

func TestVerifyModule(t *testing.T) {
	original := ast.MustParseModule("S = 0\nfor i in range(n):\n    S += i\n")

	tests := []struct {
		note      string
		original  string
		optimized string
		wantErr   bool
		notRun    bool
	}{
		{
			note:      "equivalent",
			optimized: "S = 0\nS = max(n, 0) * (max(n, 0) - 1) // 2\n",
		},
		{
			note:      "wrong value",
			optimized: "S = 0\nS = n\n",
			wantErr:   true,
		},
		{
			note:      "fails",
			optimized: "S = 0\nS = n // 0\n",
			wantErr:   true,
		},
		{
			note:      "original fails on every sample",
			original:  "S = 0\nfor i in range(n):\n    S += i\nx = S // 0\n",
			optimized: "S = 0\nS = n\nx = S // 0\n",
			wantErr:   true,
			notRun:    true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.note, func(t *testing.T) {
			m := original
			if tc.original != "" {
				m = ast.MustParseModule(tc.original)
			}
			err := verifyModule(context.Background(), m, ast.MustParseModule(tc.optimized))
			if tc.wantErr && err == nil {
				t.Fatal("Expected error")
			} else if !tc.wantErr && err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if errors.Is(err, errNotVerified) != tc.notRun {
				t.Fatalf("Expected not verified to be %v but got %v", tc.notRun, err)
			}
		})
	}
}

func TestFreeNames(t *testing.T) {
	m := ast.MustParseModule("y = x + len(range(z))\nprint(y)\n")
	names := freeNames(m)
	exp := []ast.Var{"x", "y", "z"}
	if len(names) != len(exp) {
		t.Fatalf("Expected %v but got %v", exp, names)
	}
	for i := range exp {
		if names[i] != exp[i] {
			t.Fatalf("Expected %v but got %v", exp, names)
		}
	}
}

func TestOptimizeCacheSkipsUnchanged(t *testing.T) {
	files := map[string]string{
		"a.py": unoptimized,
	}

	test.WithTempFS(files, func(root string) {
		params := newOptimizeCommandParams()
		var stderr bytes.Buffer

		r, err := newOptimizeRun(context.Background(), &params, &stderr)
		if err != nil {
			t.Fatal(err)
		}
		defer r.close()

		var first, second bytes.Buffer
		if code := r.paths(context.Background(), []string{root}, &first); code != 0 {
			t.Fatalf("Expected exit code 0 but got %d: %v", code, stderr.String())
		}

		result, err := loader.All([]string{root})
		if err != nil {
			t.Fatal(err)
		}
		if code := r.process(context.Background(), &params, pyFiles(result), &second, true); code != 0 {
			t.Fatalf("Expected exit code 0 but got %d", code)
		}

		if first.String() != optimized || second.Len() != 0 {
			t.Fatalf("Expected cached file to be skipped but got %q and %q", first.String(), second.String())
		}
		if r.cache.Len() != 1 {
			t.Fatalf("Expected one cache entry but got %d", r.cache.Len())
		}
	})
}
