// Copyright 2020 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package optimizer

import (
	"math/big"

	"github.com/sumfold/sumfold/ast"
	"github.com/sumfold/sumfold/closedform"
	"github.com/sumfold/sumfold/internal/levenshtein"
)

var (
	rangeVar = ast.Var("range")
	maxVar   = ast.Var("max")
)

// rangeInfo describes a counting range. Constant ranges carry the bounds
// and the sums of every supported power over them. Symbolic ranges iterate
// over [0, bound) for an identifier bound.
type rangeInfo struct {
	from, to *big.Int
	length   *big.Int
	perPower [closedform.MaxPower + 1]*big.Int

	bound ast.Var
}

func (r *rangeInfo) symbolic() bool {
	return r.from == nil
}

func newConstantRange(from, to *big.Int) *rangeInfo {
	r := &rangeInfo{from: from, to: to}
	for p := 0; p <= closedform.MaxPower; p++ {
		r.perPower[p] = closedform.SumPow(p, from, to)
	}
	r.length = r.perPower[0]
	return r
}

// count returns the number of iterations as a term in the length of the
// symbolic range, max(bound, 0).
func (r *rangeInfo) count() *ast.Term {
	return ast.CallTerm(ast.NewTerm(maxVar), ast.NewTerm(r.bound), ast.IntTerm(0))
}

// analyzeRange inspects the iterable of a loop or generator. It returns a
// *BlockedError if the iterable is not a counting range the closed forms
// apply to and an *ast.Error if it is a two argument range over non-constant
// bounds.
func (n *normalizer) analyzeRange(iter *ast.Term) (*rangeInfo, error) {
	call, ok := iter.Value.(*ast.Call)
	if !ok {
		return nil, blocked(iter.Location, "iterable %v is not a call to range", iter)
	}

	name, ok := call.Name()
	if !ok || name != rangeVar {
		if s, ok := levenshtein.Suggest(string(name), string(rangeVar)); ok {
			return nil, blocked(iter.Location, "iterable %v is not a call to range (did you mean %v?)", iter, s)
		}
		return nil, blocked(iter.Location, "iterable %v is not a call to range", iter)
	}

	if len(call.Keywords) > 0 {
		return nil, blocked(iter.Location, "keyword arguments in %v", iter)
	}

	switch len(call.Args) {
	case 1:
		if to, ok := n.Constant(call.Args[0]); ok {
			return newConstantRange(new(big.Int), to), nil
		}
		if v, ok := call.Args[0].Value.(ast.Var); ok {
			return &rangeInfo{bound: v}, nil
		}
		return nil, blocked(iter.Location, "bound of %v is neither a constant nor an identifier", iter)
	case 2:
		from, ok1 := n.Constant(call.Args[0])
		to, ok2 := n.Constant(call.Args[1])
		if !ok1 || !ok2 {
			return nil, ast.NewError(ast.RangeErr, iter.Location, "range(x) for non-constant x: %v", iter)
		}
		return newConstantRange(from, to), nil
	case 0:
		return nil, blocked(iter.Location, "%v has no arguments", iter)
	}

	return nil, blocked(iter.Location, "%v has an explicit step", iter)
}
