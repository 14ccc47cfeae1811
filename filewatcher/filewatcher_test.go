// Copyright 2023 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package filewatcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"

	"github.com/sumfold/sumfold/loader"
	"github.com/sumfold/sumfold/logging"
	"github.com/sumfold/sumfold/util/test"
)

func TestWatchPaths(t *testing.T) {

	fs := map[string]string{
		"/foo/bar/baz.py": "x = 1\n",
		"/foo/faz/baz.py": "x = 1\n",
		"/foo/baz.py":     "x = 1\n",
		"/other/a.py":     "x = 1\n",
	}

	expected := []string{
		"/foo", "/foo/bar", "/foo/faz", "/other",
	}

	test.WithTempFS(fs, func(rootDir string) {
		paths, err := getWatchPaths([]string{
			filepath.Join(rootDir, "foo"),
			filepath.Join(rootDir, "other", "a.py"),
		})
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		result := make([]string, 0, len(paths))
		for _, p := range paths {
			result = append(result, filepath.ToSlash(strings.TrimPrefix(p, rootDir)))
		}
		if !slices.Equal(expected, result) {
			t.Fatalf("Expected %q but got: %q", expected, result)
		}
	})
}

func TestWatchPathsMissing(t *testing.T) {
	if _, err := getWatchPaths([]string{"/does/not/exist"}); err == nil {
		t.Fatal("Expected error for missing path")
	}
}

type reload struct {
	result *loader.Result
	err    error
}

func TestFileWatcherReload(t *testing.T) {
	defer leaktest.Check(t)()

	test.WithTempFS(map[string]string{"/src/a.py": "S = 0\n"}, func(rootDir string) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		reloads := make(chan reload, 16)
		onReload := func(ctx context.Context, result *loader.Result, _ time.Duration, err error) {
			select {
			case reloads <- reload{result, err}:
			case <-ctx.Done():
			}
		}

		root := filepath.Join(rootDir, "src")
		w := NewFileWatcher([]string{root}, nil, onReload, logging.NewNoOpLogger()).
			WithInterval(10 * time.Millisecond)
		if err := w.Start(ctx); err != nil {
			t.Fatal(err)
		}

		if err := os.WriteFile(filepath.Join(root, "b.py"), []byte("T = 1\n"), 0o644); err != nil {
			t.Fatal(err)
		}

		timeout := time.After(10 * time.Second)
		for {
			select {
			case r := <-reloads:
				if r.err != nil {
					continue
				}
				if _, ok := r.result.Modules[filepath.Join(root, "b.py")]; ok {
					if len(r.result.Modules) != 2 {
						t.Fatalf("Expected two modules but got %v", r.result.Names())
					}
					cancel()
					return
				}
			case <-timeout:
				t.Fatal("Timed out waiting for reload")
			}
		}
	})
}

func TestFileWatcherReloadError(t *testing.T) {
	defer leaktest.Check(t)()

	test.WithTempFS(map[string]string{"/src/a.py": "S = 0\n"}, func(rootDir string) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		errs := make(chan error, 16)
		onReload := func(ctx context.Context, _ *loader.Result, _ time.Duration, err error) {
			if err == nil {
				return
			}
			select {
			case errs <- err:
			case <-ctx.Done():
			}
		}

		root := filepath.Join(rootDir, "src")
		w := NewFileWatcher([]string{root}, nil, onReload, logging.NewNoOpLogger()).
			WithInterval(10 * time.Millisecond)
		if err := w.Start(ctx); err != nil {
			t.Fatal(err)
		}

		if err := os.WriteFile(filepath.Join(root, "a.py"), []byte("for\n"), 0o644); err != nil {
			t.Fatal(err)
		}

		select {
		case err := <-errs:
			var loaderErrs loader.Errors
			if !errors.As(err, &loaderErrs) {
				t.Fatalf("Expected loader errors but got %v", err)
			}
		case <-time.After(10 * time.Second):
			t.Fatal("Timed out waiting for reload error")
		}
	})
}

func TestFileWatcherStartError(t *testing.T) {
	w := NewFileWatcher([]string{"/does/not/exist"}, nil, nil, logging.NewNoOpLogger())
	if err := w.Start(context.Background()); err == nil {
		t.Fatal("Expected error")
	}
}
