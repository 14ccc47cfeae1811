// Copyright 2016 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package closedform computes sums of integer powers over half-open ranges
// without iterating.
package closedform

import (
	"fmt"
	"math/big"
)

// MaxPower is the largest exponent SumPow supports.
const MaxPower = 11

// SumPow returns the sum of i**power for every integer i in [from, to). The
// result is 0 when from >= to. SumPow panics if power is outside
// [0, MaxPower].
func SumPow(power int, from, to *big.Int) *big.Int {
	checkPower(power)
	if from.Cmp(to) >= 0 {
		return new(big.Int)
	}
	f := prefixSums[power]
	return new(big.Int).Sub(f(to), f(from))
}

// prefixSums[k](t) is the sum of i**k for i in [0, t). Every formula is a
// polynomial in m = t-1, so it also extends to negative t and differences
// of two prefix sums give sums over arbitrary ranges.
var prefixSums = [MaxPower + 1]func(t *big.Int) *big.Int{
	func(t *big.Int) *big.Int {
		return new(big.Int).Set(t)
	},
	func(t *big.Int) *big.Int {
		m := pred(t)
		return exactDiv(mul(m, succ(m)), 2)
	},
	func(t *big.Int) *big.Int {
		m := pred(t)
		return exactDiv(mul(m, succ(m), poly(m, 2, 1)), 6)
	},
	func(t *big.Int) *big.Int {
		m := pred(t)
		tri := exactDiv(mul(m, succ(m)), 2)
		return mul(tri, tri)
	},
	func(t *big.Int) *big.Int {
		m := pred(t)
		return exactDiv(mul(m, succ(m), poly(m, 2, 1), poly(m, 3, 3, -1)), 30)
	},
	func(t *big.Int) *big.Int {
		m := pred(t)
		return exactDiv(mul(m, m, succ(m), succ(m), poly(m, 2, 2, -1)), 12)
	},
	func(t *big.Int) *big.Int {
		m := pred(t)
		return exactDiv(mul(m, succ(m), poly(m, 2, 1), poly(m, 3, 6, 0, -3, 1)), 42)
	},
	func(t *big.Int) *big.Int {
		m := pred(t)
		return exactDiv(mul(m, m, succ(m), succ(m), poly(m, 3, 6, -1, -4, 2)), 24)
	},
	func(t *big.Int) *big.Int {
		m := pred(t)
		return exactDiv(mul(m, succ(m), poly(m, 2, 1), poly(m, 5, 15, 5, -15, -1, 9, -3)), 90)
	},
	func(t *big.Int) *big.Int {
		m := pred(t)
		return exactDiv(mul(m, m, succ(m), succ(m), poly(m, 1, 1, -1), poly(m, 2, 4, -1, -3, 3)), 20)
	},
	func(t *big.Int) *big.Int {
		m := pred(t)
		return exactDiv(mul(m, succ(m), poly(m, 2, 1), poly(m, 1, 1, -1), poly(m, 3, 9, 2, -11, 3, 10, -5)), 66)
	},
	func(t *big.Int) *big.Int {
		m := pred(t)
		return exactDiv(mul(m, m, succ(m), succ(m), poly(m, 2, 8, 4, -16, -5, 26, -3, -20, 10)), 24)
	},
}

func pred(x *big.Int) *big.Int {
	return new(big.Int).Sub(x, big.NewInt(1))
}

func succ(x *big.Int) *big.Int {
	return new(big.Int).Add(x, big.NewInt(1))
}

func mul(xs ...*big.Int) *big.Int {
	r := big.NewInt(1)
	for _, x := range xs {
		r.Mul(r, x)
	}
	return r
}

// poly evaluates the polynomial with the given coefficients, highest degree
// first, at x.
func poly(x *big.Int, coeffs ...int64) *big.Int {
	r := new(big.Int)
	for _, c := range coeffs {
		r.Mul(r, x)
		r.Add(r, big.NewInt(c))
	}
	return r
}

// exactDiv divides n by d and panics if the division leaves a remainder.
// The formulas above always divide exactly; a remainder means one of them
// is wrong.
func exactDiv(n *big.Int, d int64) *big.Int {
	q, r := new(big.Int).QuoRem(n, big.NewInt(d), new(big.Int))
	if r.Sign() != 0 {
		panic(fmt.Sprintf("closedform: %v is not divisible by %d", n, d))
	}
	return q
}
