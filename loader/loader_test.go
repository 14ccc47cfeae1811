// Copyright 2017 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package loader

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/sumfold/sumfold/ast"
	"github.com/sumfold/sumfold/metrics"
	"github.com/sumfold/sumfold/util/test"
)

func TestLoadDirectory(t *testing.T) {
	files := map[string]string{
		"/a.py":            "S = 0\nfor i in range(10):\n    S += i\n",
		"/sub/b.py":        "x = sum(i for i in range(4))\n",
		"/sub/notes.txt":   "not python {",
		"/sub/.hidden.py":  "y = 1\n",
		"/sub/deep/c.py":   "z = 2\n",
		"/vendor/skip.py":  "w = 3\n",
		"/sub/deep/README": "ignored",
	}

	test.WithTempFS(files, func(rootDir string) {
		m := metrics.New()
		filter := func(abspath string, info os.FileInfo, depth int) bool {
			return GlobExcludeName(".*", 1)(abspath, info, depth) || GlobExcludeName("vendor", 1)(abspath, info, depth)
		}

		loaded, err := NewFileLoader().WithMetrics(m).WithFilter(filter).All([]string{rootDir})
		if err != nil {
			t.Fatal(err)
		}

		exp := []string{
			filepath.Join(rootDir, "a.py"),
			filepath.Join(rootDir, "sub", "b.py"),
			filepath.Join(rootDir, "sub", "deep", "c.py"),
		}
		if diff := cmp.Diff(exp, loaded.Names()); diff != "" {
			t.Fatalf("Unexpected files (-want, +got):\n%v", diff)
		}

		a := loaded.Modules[exp[0]]
		if string(a.Raw) != files["/a.py"] {
			t.Fatalf("Unexpected raw content: %q", a.Raw)
		}
		if !a.Parsed.Equal(ast.MustParseModule(files["/a.py"])) {
			t.Fatalf("Unexpected module: %v", a.Parsed)
		}

		if len(loaded.ParsedModules()) != 3 {
			t.Fatalf("Expected 3 parsed modules")
		}

		if v := m.Counter(metrics.LoaderReadFiles).Int64(); v != 3 {
			t.Fatalf("Expected 3 files read but got %d", v)
		}
	})
}

func TestLoadExplicitFile(t *testing.T) {
	files := map[string]string{
		"/script": "S = 1\n",
	}

	test.WithTempFS(files, func(rootDir string) {
		path := filepath.Join(rootDir, "script")
		loaded, err := All([]string{path})
		if err != nil {
			t.Fatal(err)
		}
		if _, ok := loaded.Modules[path]; !ok {
			t.Fatalf("Expected %v to be loaded but got %v", path, loaded.Names())
		}
	})
}

func TestLoadErrors(t *testing.T) {
	files := map[string]string{
		"/good.py": "S = 1\n",
		"/bad.py":  "for\n",
	}

	test.WithTempFS(files, func(rootDir string) {
		_, err := Filtered([]string{rootDir, filepath.Join(rootDir, "missing.py")}, nil)
		if err == nil {
			t.Fatal("Expected error")
		}

		var errs Errors
		if !errors.As(err, &errs) || len(errs) != 2 {
			t.Fatalf("Expected two loader errors but got %v", err)
		}

		if !strings.HasPrefix(err.Error(), "2 errors occurred during loading:\n") {
			t.Fatalf("Unexpected message: %v", err)
		}

		var astErrs ast.Errors
		if !errors.As(errs[0], &astErrs) || astErrs[0].Code != ast.ParseErr {
			t.Fatalf("Expected parse error first but got %v", errs[0])
		}

		if !os.IsNotExist(errs[1]) {
			t.Fatalf("Expected not exist error but got %v", errs[1])
		}
	})
}

func TestErrorsMessage(t *testing.T) {
	if msg := (Errors{}).Error(); msg != "no error(s)" {
		t.Fatalf("Unexpected message: %v", msg)
	}
	if msg := (Errors{errors.New("boom")}).Error(); msg != "1 error occurred during loading: boom" {
		t.Fatalf("Unexpected message: %v", msg)
	}
}

func TestGlobExcludeName(t *testing.T) {
	test.WithTempFS(map[string]string{"/x/a_test.py": "", "/x/a.py": ""}, func(rootDir string) {
		filter := GlobExcludeName("*_test.py", 1)

		for name, exp := range map[string]bool{"a_test.py": true, "a.py": false} {
			info, err := os.Stat(filepath.Join(rootDir, "x", name))
			if err != nil {
				t.Fatal(err)
			}
			if filter("", info, 1) != exp {
				t.Fatalf("Expected %v to be excluded: %v", name, exp)
			}
			if filter("", info, 0) {
				t.Fatalf("Did not expect %v to be excluded below the minimum depth", name)
			}
		}
	})
}

func TestPathsAndDirs(t *testing.T) {
	files := map[string]string{
		"/a.py":       "",
		"/sub/b.py":   "",
		"/sub/x/c.py": "",
	}

	test.WithTempFS(files, func(rootDir string) {
		paths, err := Paths(rootDir, true)
		if err != nil {
			t.Fatal(err)
		}

		exp := []string{
			rootDir,
			filepath.Join(rootDir, "sub"),
			filepath.Join(rootDir, "sub", "x"),
		}
		if diff := cmp.Diff(exp, Dirs(paths)[1:]); diff != "" {
			t.Fatalf("Unexpected dirs (-want, +got):\n%v", diff)
		}

		shallow, err := Paths(rootDir, false)
		if err != nil {
			t.Fatal(err)
		}
		for _, p := range shallow {
			if strings.HasSuffix(p, "c.py") {
				t.Fatalf("Did not expect non-recursive walk to reach %v", p)
			}
		}
	})
}

func TestCleanPath(t *testing.T) {
	if p := CleanPath("/a/b/../c.py"); p != "a/c.py" {
		t.Fatalf("Unexpected path: %v", p)
	}
}
