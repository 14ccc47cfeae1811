// Copyright 2020 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package optimizer

import (
	"math/big"

	"github.com/sumfold/sumfold/ast"
)

// synthesize builds an expression equal to s. Each product is rendered with
// its coefficient first and repeated factors as powers. Coefficients of 1
// are dropped and negative coefficients after the first product turn the
// addition into a subtraction.
func synthesize(s sop) *ast.Term {
	if len(s) == 0 {
		return ast.IntTerm(0)
	}

	var result *ast.Term
	for _, p := range s {
		coef, syms := p.split()
		if result == nil {
			result = monomial(coef, syms)
			continue
		}
		if coef.Sign() < 0 {
			result = ast.BinOpTerm(ast.Sub, result, monomial(new(big.Int).Neg(coef), syms))
		} else {
			result = ast.BinOpTerm(ast.Add, result, monomial(coef, syms))
		}
	}
	return result
}

func monomial(coef *big.Int, syms []factor) *ast.Term {
	if len(syms) == 0 {
		return ast.BigIntTerm(coef)
	}

	var result *ast.Term
	for i := 0; i < len(syms); {
		j := i + 1
		for j < len(syms) && syms[j].key == syms[i].key {
			j++
		}
		f := syms[i].term
		if j-i > 1 {
			f = ast.BinOpTerm(ast.Pow, f, ast.IntTerm(int64(j-i)))
		}
		switch {
		case result != nil:
			result = ast.BinOpTerm(ast.Mul, result, f)
		case coef.Cmp(big.NewInt(1)) == 0:
			result = f
		case coef.Cmp(big.NewInt(-1)) == 0:
			result = ast.UnaryOpTerm(ast.Neg, f)
		default:
			result = ast.BinOpTerm(ast.Mul, ast.BigIntTerm(coef), f)
		}
		i = j
	}
	return result
}
