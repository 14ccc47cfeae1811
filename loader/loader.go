// Copyright 2017 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package loader contains utilities for loading Python source files.
package loader

import (
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gobwas/glob"

	"github.com/sumfold/sumfold/ast"
	"github.com/sumfold/sumfold/metrics"
)

// PyExt is the extension of files picked up when walking directories.
const PyExt = ".py"

// Result represents the result of successfully loading zero or more files.
type Result struct {
	Modules map[string]*PyFile
}

// ParsedModules returns the parsed modules stored on the result.
func (l *Result) ParsedModules() map[string]*ast.Module {
	modules := make(map[string]*ast.Module, len(l.Modules))
	for _, module := range l.Modules {
		modules[module.Name] = module.Parsed
	}
	return modules
}

// Names returns the sorted names of the loaded files.
func (l *Result) Names() []string {
	return slices.Sorted(maps.Keys(l.Modules))
}

// PyFile represents the result of loading a single Python source file.
type PyFile struct {
	Name   string
	Parsed *ast.Module
	Raw    []byte
}

// Filter defines the interface for filtering files during loading. If the
// filter returns true, the file should be excluded from the result.
type Filter func(abspath string, info fs.FileInfo, depth int) bool

// GlobExcludeName excludes files and directories whose names match the
// glob pattern at minDepth or greater. Invalid patterns match nothing.
func GlobExcludeName(pattern string, minDepth int) Filter {
	g, err := glob.Compile(pattern)
	return func(_ string, info fs.FileInfo, depth int) bool {
		if err != nil {
			return false
		}
		return depth >= minDepth && g.Match(info.Name())
	}
}

// FileLoader loads Python files from disk.
type FileLoader struct {
	metrics metrics.Metrics
	filter  Filter
}

// NewFileLoader returns a new FileLoader instance.
func NewFileLoader() *FileLoader {
	return &FileLoader{
		metrics: metrics.NoOp(),
	}
}

// WithMetrics provides the metrics instance to use while loading.
func (fl *FileLoader) WithMetrics(m metrics.Metrics) *FileLoader {
	fl.metrics = m
	return fl
}

// WithFilter sets the filter applied to every file and directory visited.
func (fl *FileLoader) WithFilter(filter Filter) *FileLoader {
	fl.filter = filter
	return fl
}

// All returns a Result object loaded (recursively) from the specified paths.
// Files named explicitly are loaded regardless of their extension; files
// found by walking a directory must end in .py.
func (fl *FileLoader) All(paths []string) (*Result, error) {
	errs := Errors{}
	result := &Result{Modules: map[string]*PyFile{}}

	for _, path := range paths {
		fl.allRec(path, &errs, result, 0)
	}

	if len(errs) > 0 {
		return nil, errs
	}

	return result, nil
}

func (fl *FileLoader) allRec(path string, errs *Errors, loaded *Result, depth int) {
	info, err := os.Stat(path)
	if err != nil {
		errs.add(err)
		return
	}

	if fl.filter != nil && fl.filter(path, info, depth) {
		return
	}

	if !info.IsDir() {
		if depth > 0 && filepath.Ext(path) != PyExt {
			return
		}
		file, err := fl.load(path)
		if err != nil {
			errs.add(err)
			return
		}
		loaded.Modules[file.Name] = file
		return
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		errs.add(err)
		return
	}

	for _, entry := range entries {
		fl.allRec(filepath.Join(path, entry.Name()), errs, loaded, depth+1)
	}
}

func (fl *FileLoader) load(path string) (*PyFile, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fl.metrics.Counter(metrics.LoaderReadFiles).Incr()
	return Py(path, bs)
}

// All returns a Result object loaded (recursively) from the specified paths.
func All(paths []string) (*Result, error) {
	return NewFileLoader().All(paths)
}

// Filtered returns a Result object loaded (recursively) from the specified
// paths while applying the given filter.
func Filtered(paths []string, filter Filter) (*Result, error) {
	return NewFileLoader().WithFilter(filter).All(paths)
}

// Py parses bs as the content of the file at path.
func Py(path string, bs []byte) (*PyFile, error) {
	name := filepath.Clean(path)
	module, err := ast.ParseModule(name, string(bs))
	if err != nil {
		return nil, err
	}
	return &PyFile{
		Name:   name,
		Parsed: module,
		Raw:    bs,
	}, nil
}

// CleanPath returns the normalized version of a path that can be used as an identifier.
func CleanPath(path string) string {
	return strings.Trim(filepath.ToSlash(filepath.Clean(path)), "/")
}

// Paths returns a sorted list of files contained at path. If recurse is true
// and path is a directory, then Paths will walk the directory structure
// recursively and list files at each level.
func Paths(path string, recurse bool) (paths []string, err error) {
	err = filepath.WalkDir(path, func(f string, _ fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !recurse {
			if path != f && path != filepath.Dir(f) {
				return filepath.SkipDir
			}
		}
		paths = append(paths, f)
		return nil
	})
	return paths, err
}

// Dirs resolves filepaths to directories. It will return a list of unique
// directories.
func Dirs(paths []string) []string {
	unique := map[string]struct{}{}

	for _, path := range paths {
		unique[filepath.Dir(path)] = struct{}{}
	}

	return slices.Sorted(maps.Keys(unique))
}

// Errors is returned when one or more files fail to load.
type Errors []error

func (e Errors) Error() string {
	if len(e) == 0 {
		return "no error(s)"
	}
	if len(e) == 1 {
		return fmt.Sprintf("1 error occurred during loading: %v", e[0])
	}
	buf := make([]string, len(e))
	for i := range buf {
		buf[i] = e[i].Error()
	}
	return fmt.Sprintf("%v errors occurred during loading:\n", len(e)) + strings.Join(buf, "\n")
}

func (e *Errors) add(err error) {
	*e = append(*e, err)
}
