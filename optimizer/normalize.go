// Copyright 2020 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package optimizer

import (
	"fmt"
	"math/big"

	"github.com/sumfold/sumfold/ast"
)

// DefaultMaxExponent is the largest constant exponent the normalizer expands
// over a non-constant base.
const DefaultMaxExponent = 32

// maxConstantBits bounds the size of folded constant powers.
const maxConstantBits = 1 << 16

// BlockedError explains why a loop or sum was left unchanged.
type BlockedError struct {
	Location *ast.Location
	Reason   string
}

func (e *BlockedError) Error() string {
	if e.Location == nil {
		return e.Reason
	}
	return e.Location.Format("%v", e.Reason)
}

func blocked(loc *ast.Location, f string, a ...any) *BlockedError {
	return &BlockedError{Location: loc, Reason: fmt.Sprintf(f, a...)}
}

// normalizer flattens arithmetic expressions into sums of products.
type normalizer struct {
	maxExponent int
}

func newNormalizer(maxExponent int) *normalizer {
	if maxExponent <= 0 {
		maxExponent = DefaultMaxExponent
	}
	return &normalizer{maxExponent: maxExponent}
}

// Normalize returns the sum of products equal to t. Expressions outside of
// +, -, * and ** by a non-negative constant yield a *BlockedError.
func (n *normalizer) Normalize(t *ast.Term) (sop, error) {
	switch v := t.Value.(type) {
	case ast.Int:
		return constSOP(v.BigInt()), nil
	case ast.Var:
		return sop{{varFactor(v)}}, nil
	case *ast.UnaryOp:
		switch v.Op {
		case ast.Neg:
			s, err := n.Normalize(v.Operand)
			if err != nil {
				return nil, err
			}
			return mulSOP(constSOP(big.NewInt(-1)), s), nil
		case ast.Pos:
			return n.Normalize(v.Operand)
		}
		return nil, blocked(t.Location, "unsupported operator %q in %v", v.Op, t)
	case *ast.BinOp:
		return n.binOp(t, v)
	}
	return nil, blocked(t.Location, "unsupported %v expression %v", ast.TypeName(t.Value), t)
}

func (n *normalizer) binOp(t *ast.Term, b *ast.BinOp) (sop, error) {
	switch b.Op {
	case ast.Add, ast.Sub, ast.Mul, ast.Pow:
	default:
		return nil, blocked(t.Location, "unsupported operator %q in %v", b.Op, t)
	}

	left, err := n.Normalize(b.Left)
	if err != nil {
		return nil, err
	}

	right, err := n.Normalize(b.Right)
	if err != nil {
		return nil, err
	}

	switch b.Op {
	case ast.Add:
		return addSOP(left, right), nil
	case ast.Sub:
		return subSOP(left, right), nil
	case ast.Mul:
		return mulSOP(left, right), nil
	}

	k, ok := right.constant()
	if !ok {
		return nil, blocked(t.Location, "non-constant exponent in %v", t)
	}
	if k.Sign() < 0 {
		return nil, blocked(t.Location, "negative exponent in %v", t)
	}

	if base, ok := left.constant(); ok {
		if !k.IsInt64() || int64(base.BitLen())*k.Int64() > maxConstantBits {
			return nil, blocked(t.Location, "result of %v is too large", t)
		}
		return constSOP(new(big.Int).Exp(base, k, nil)), nil
	}

	if !k.IsInt64() || k.Int64() > int64(n.maxExponent) {
		return nil, blocked(t.Location, "exponent %v exceeds the maximum of %d", k, n.maxExponent)
	}

	result := constSOP(big.NewInt(1))
	for range k.Int64() {
		result = mulSOP(result, left)
	}
	return result, nil
}

// Constant returns the value of t if it normalizes to a constant.
func (n *normalizer) Constant(t *ast.Term) (*big.Int, bool) {
	s, err := n.Normalize(t)
	if err != nil {
		return nil, false
	}
	return s.constant()
}
