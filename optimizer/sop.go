// Copyright 2020 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package optimizer

import (
	"math/big"
	"slices"
	"strings"

	"github.com/sumfold/sumfold/ast"
)

// factor is one multiplicand of a product: either an integer constant or a
// symbolic value. Symbolic factors are identifiers or opaque atoms such as
// max(n, 0), keyed by their source text.
type factor struct {
	c    *big.Int
	key  string
	term *ast.Term
}

func constFactor(c *big.Int) factor {
	return factor{c: c}
}

func varFactor(v ast.Var) factor {
	return factor{key: string(v), term: ast.NewTerm(v)}
}

func atomFactor(t *ast.Term) factor {
	return factor{key: t.String(), term: t}
}

func (f factor) isConst() bool {
	return f.c != nil
}

func (f factor) String() string {
	if f.isConst() {
		return f.c.String()
	}
	return f.key
}

// product is a list of factors multiplied together.
type product []factor

// split returns the product of the constant factors and the symbolic
// factors in canonical order.
func (p product) split() (*big.Int, []factor) {
	coef := big.NewInt(1)
	var syms []factor
	for _, f := range p {
		if f.isConst() {
			coef.Mul(coef, f.c)
		} else {
			syms = append(syms, f)
		}
	}
	slices.SortStableFunc(syms, func(a, b factor) int {
		return strings.Compare(a.key, b.key)
	})
	return coef, syms
}

// count returns the number of occurrences of the symbolic factor key.
func (p product) count(key string) int {
	n := 0
	for _, f := range p {
		if !f.isConst() && f.key == key {
			n++
		}
	}
	return n
}

// without returns a copy of p without the symbolic factor key.
func (p product) without(key string) product {
	out := make(product, 0, len(p))
	for _, f := range p {
		if f.isConst() || f.key != key {
			out = append(out, f)
		}
	}
	return out
}

func (p product) String() string {
	s := make([]string, len(p))
	for i := range p {
		s[i] = p[i].String()
	}
	return "[" + strings.Join(s, "; ") + "]"
}

// sop is a sum of products. The empty sop is the constant 0.
type sop []product

func constSOP(c *big.Int) sop {
	if c.Sign() == 0 {
		return sop{}
	}
	return sop{{constFactor(c)}}
}

// constant returns the value of s if s has no symbolic factors.
func (s sop) constant() (*big.Int, bool) {
	sum := new(big.Int)
	for _, p := range s {
		coef, syms := p.split()
		if len(syms) > 0 {
			return nil, false
		}
		sum.Add(sum, coef)
	}
	return sum, true
}

func (s sop) String() string {
	ps := make([]string, len(s))
	for i := range s {
		ps[i] = s[i].String()
	}
	return "[" + strings.Join(ps, "; ") + "]"
}

// partitionKey identifies the multiset of symbolic factors of a product.
// Factors must already be in canonical order.
func partitionKey(syms []factor) string {
	keys := make([]string, len(syms))
	for i := range syms {
		keys[i] = syms[i].key
	}
	return strings.Join(keys, "\x00")
}

// foldPartitions merges products with the same symbolic factors by summing
// their constant coefficients. Partitions keep the order in which they were
// first seen. Partitions whose coefficients cancel are dropped and a
// coefficient of 1 is omitted unless the product would otherwise be empty.
func foldPartitions(s sop) sop {
	type group struct {
		coef *big.Int
		syms []factor
	}

	var order []string
	groups := map[string]*group{}

	for _, p := range s {
		coef, syms := p.split()
		key := partitionKey(syms)
		g, ok := groups[key]
		if !ok {
			g = &group{coef: new(big.Int), syms: syms}
			groups[key] = g
			order = append(order, key)
		}
		g.coef.Add(g.coef, coef)
	}

	out := make(sop, 0, len(order))
	for _, key := range order {
		g := groups[key]
		if g.coef.Sign() == 0 {
			continue
		}
		p := make(product, 0, len(g.syms)+1)
		p = append(p, g.syms...)
		if len(g.syms) == 0 || g.coef.Cmp(big.NewInt(1)) != 0 {
			p = append(p, constFactor(g.coef))
		}
		out = append(out, p)
	}
	return out
}

func addSOP(a, b sop) sop {
	out := make(sop, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return foldPartitions(out)
}

func negateSOP(s sop) sop {
	out := make(sop, len(s))
	for i, p := range s {
		out[i] = append(product{constFactor(big.NewInt(-1))}, p...)
	}
	return out
}

func subSOP(a, b sop) sop {
	return addSOP(a, negateSOP(b))
}

// mulSOP returns the folded cartesian product of a and b.
func mulSOP(a, b sop) sop {
	out := make(sop, 0, len(a)*len(b))
	for _, l := range a {
		for _, r := range b {
			p := make(product, 0, len(l)+len(r))
			p = append(p, l...)
			p = append(p, r...)
			out = append(out, p)
		}
	}
	return foldPartitions(out)
}

func scaleSOP(s sop, c *big.Int) sop {
	return mulSOP(s, constSOP(c))
}
