// Copyright 2016 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package closedform

import (
	"fmt"
	"math/big"
)

// polynomials[p] holds the coefficients of the polynomial F with
// F(t) = sum of i**p for i in [0, t), lowest degree first.
var polynomials = func() [MaxPower + 1][]*big.Rat {
	var ps [MaxPower + 1][]*big.Rat
	bs := bernoulliNumbers(MaxPower)
	for p := 0; p <= MaxPower; p++ {
		ps[p] = faulhaber(p, bs)
	}
	return ps
}()

// Polynomial returns the coefficients c[0], ..., c[power+1] of the
// polynomial F in t with F(t) = SumPow(power, 0, t) for t >= 0, lowest
// degree first. The returned slice is a copy.
func Polynomial(power int) []*big.Rat {
	checkPower(power)
	src := polynomials[power]
	cpy := make([]*big.Rat, len(src))
	for i := range src {
		cpy[i] = new(big.Rat).Set(src[i])
	}
	return cpy
}

// Denominator returns the least common multiple of the denominators of
// Polynomial(power).
func Denominator(power int) *big.Int {
	checkPower(power)
	d := big.NewInt(1)
	for _, c := range polynomials[power] {
		d = lcm(d, c.Denom())
	}
	return d
}

// Scaled returns the coefficients of Polynomial(power) multiplied by d.
// It panics if d is not a multiple of Denominator(power).
func Scaled(power int, d *big.Int) []*big.Int {
	checkPower(power)
	out := make([]*big.Int, len(polynomials[power]))
	for i, c := range polynomials[power] {
		n := new(big.Int).Mul(c.Num(), d)
		q, r := new(big.Int).QuoRem(n, c.Denom(), new(big.Int))
		if r.Sign() != 0 {
			panic(fmt.Sprintf("closedform: %v is not a multiple of the denominator of %v", d, c))
		}
		out[i] = q
	}
	return out
}

// Eval evaluates the polynomial with coefficients cs, lowest degree first,
// at t.
func Eval(cs []*big.Rat, t *big.Int) *big.Rat {
	x := new(big.Rat).SetInt(t)
	r := new(big.Rat)
	for i := len(cs) - 1; i >= 0; i-- {
		r.Mul(r, x)
		r.Add(r, cs[i])
	}
	return r
}

// Bernoulli returns the Bernoulli number B(n) with B(1) = -1/2.
func Bernoulli(n int) *big.Rat {
	if n < 0 {
		panic(fmt.Sprintf("closedform: negative index %d", n))
	}
	return bernoulliNumbers(n)[n]
}

// bernoulliNumbers returns B(0), ..., B(n) using
// B(m) = -1/(m+1) * sum over k < m of C(m+1, k) * B(k).
func bernoulliNumbers(n int) []*big.Rat {
	bs := make([]*big.Rat, n+1)
	bs[0] = big.NewRat(1, 1)
	for m := 1; m <= n; m++ {
		acc := new(big.Rat)
		for k := 0; k < m; k++ {
			term := new(big.Rat).SetInt(binomial(m+1, k))
			acc.Add(acc, term.Mul(term, bs[k]))
		}
		bs[m] = acc.Mul(acc, big.NewRat(-1, int64(m+1)))
	}
	return bs
}

// faulhaber builds F(t) = 1/(p+1) * sum over j <= p of C(p+1, j) * B(j) * t**(p+1-j).
func faulhaber(p int, bs []*big.Rat) []*big.Rat {
	cs := make([]*big.Rat, p+2)
	for i := range cs {
		cs[i] = new(big.Rat)
	}
	scale := big.NewRat(1, int64(p+1))
	for j := 0; j <= p; j++ {
		c := new(big.Rat).SetInt(binomial(p+1, j))
		c.Mul(c, bs[j])
		cs[p+1-j].Mul(c, scale)
	}
	return cs
}

func binomial(n, k int) *big.Int {
	return new(big.Int).Binomial(int64(n), int64(k))
}

func lcm(a, b *big.Int) *big.Int {
	g := new(big.Int).GCD(nil, nil, a, b)
	r := new(big.Int).Mul(a, b)
	r.Quo(r, g)
	return r.Abs(r)
}

func checkPower(power int) {
	if power < 0 || power > MaxPower {
		panic(fmt.Sprintf("closedform: unsupported power %d", power))
	}
}
