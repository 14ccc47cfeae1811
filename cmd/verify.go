// Copyright 2020 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package cmd

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/sumfold/sumfold/ast"
	"github.com/sumfold/sumfold/eval"
)

// verifyMaxSteps bounds each run made by --verify.
const verifyMaxSteps = 1_000_000

// errNotVerified is returned when the original program fails on every
// sample, so nothing was compared.
var errNotVerified = errors.New("not verified")

// verifySamples produce the value bound to the i-th free name.
var verifySamples = []func(i int) int64{
	func(int) int64 { return 0 },
	func(int) int64 { return 7 },
	func(i int) int64 { return int64(i%5) + 1 },
	func(i int) int64 { return -int64(i%4) - 2 },
}

// verifyModule runs original and optimized for each sample binding of the
// free names of original and compares the integers both bind. Samples the
// original program fails on are skipped and errNotVerified is returned if no
// sample is left. Names bound as loop targets are not compared, since a
// rewritten loop only binds its target when it is read elsewhere.
func verifyModule(ctx context.Context, original, optimized *ast.Module) error {
	free := freeNames(original)
	targets := loopTargets(original)
	interp := evalInterpreter(verifyMaxSteps)

	var ran int
	var skipped error

	for n, sample := range verifySamples {
		bindings := sampleBindings(free, sample)

		want, err := interp.Module(ctx, original, bindings)
		if err != nil {
			skipped = err
			continue
		}
		ran++

		got, err := interp.Module(ctx, optimized, bindings)
		if err != nil {
			return fmt.Errorf("sample %d: %w", n, err)
		}

		wantInts, gotInts := want.Ints(), got.Ints()
		for _, name := range want.Names() {
			if _, ok := targets[ast.Var(name)]; ok {
				continue
			}
			w, ok := wantInts[name]
			if !ok {
				continue
			}
			g, ok := gotInts[name]
			if !ok {
				continue
			}
			if w.Cmp(g) != 0 {
				return fmt.Errorf("sample %d: %v is %v but %v after optimization", n, name, w, g)
			}
		}
	}

	if ran == 0 {
		return fmt.Errorf("%w: every sample failed on the original program: %w", errNotVerified, skipped)
	}

	return nil
}

func evalInterpreter(maxSteps int64) *eval.Interpreter {
	return eval.New().WithMaxSteps(maxSteps)
}

func sampleBindings(names []ast.Var, sample func(int) int64) eval.Bindings {
	bindings := make(eval.Bindings, len(names))
	for i, name := range names {
		bindings[name] = eval.Int64Value(sample(i))
	}
	return bindings
}

// freeNames returns the sorted names used in m that are not builtins.
func freeNames(m *ast.Module) []ast.Var {
	builtins := eval.Builtins()
	seen := map[ast.Var]struct{}{}
	ast.WalkVars(m, func(v ast.Var) bool {
		if _, found := slices.BinarySearch(builtins, string(v)); !found {
			seen[v] = struct{}{}
		}
		return false
	})

	names := make([]ast.Var, 0, len(seen))
	for v := range seen {
		names = append(names, v)
	}
	slices.Sort(names)
	return names
}

func loopTargets(m *ast.Module) map[ast.Var]struct{} {
	targets := map[ast.Var]struct{}{}
	ast.WalkStatements(m, func(s ast.Statement) bool {
		if f, ok := s.(*ast.For); ok {
			ast.WalkVars(f.Target, func(v ast.Var) bool {
				targets[v] = struct{}{}
				return false
			})
		}
		return false
	})
	return targets
}
