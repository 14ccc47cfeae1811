// Copyright 2016 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package eval

import (
	"math/big"

	"github.com/sumfold/sumfold/ast"
)

// maxPowResultBits bounds the size of x ** k results.
const maxPowResultBits = 1 << 24

func binary(loc *ast.Location, op ast.Operator, a, b Value) (Value, error) {
	if op.IsComparison() {
		return compare(loc, op, a, b)
	}

	x, xok := asInt(a)
	y, yok := asInt(b)
	if !xok || !yok {
		return sequenceOp(loc, op, a, b)
	}

	switch op {
	case ast.Add:
		return IntValue(new(big.Int).Add(x, y)), nil
	case ast.Sub:
		return IntValue(new(big.Int).Sub(x, y)), nil
	case ast.Mul:
		return IntValue(new(big.Int).Mul(x, y)), nil
	case ast.FloorDiv:
		if y.Sign() == 0 {
			return nil, zeroDivisionErr(loc)
		}
		q, _ := floorDivMod(x, y)
		return IntValue(q), nil
	case ast.Mod:
		if y.Sign() == 0 {
			return nil, zeroDivisionErr(loc)
		}
		_, m := floorDivMod(x, y)
		return IntValue(m), nil
	case ast.Pow:
		if y.Sign() < 0 {
			return nil, typeErr(loc, "negative exponent %v is not supported for integers", y)
		}
		if !y.IsInt64() || int64(x.BitLen())*y.Int64() > maxPowResultBits {
			return nil, typeErr(loc, "result of %v ** %v is too large", x, y)
		}
		return IntValue(new(big.Int).Exp(x, y, nil)), nil
	case ast.Div:
		return nil, typeErr(loc, "true division is not supported for integers")
	}

	return nil, typeErr(loc, "unsupported operand types for %v: %v and %v", op, a.TypeName(), b.TypeName())
}

// floorDivMod returns the quotient rounded towards negative infinity and the
// remainder with the sign of the divisor.
func floorDivMod(x, y *big.Int) (*big.Int, *big.Int) {
	q, m := new(big.Int).QuoRem(x, y, new(big.Int))
	if m.Sign() != 0 && m.Sign() != y.Sign() {
		q.Sub(q, big.NewInt(1))
		m.Add(m, y)
	}
	return q, m
}

func sequenceOp(loc *ast.Location, op ast.Operator, a, b Value) (Value, error) {
	switch op {
	case ast.Add:
		switch a := a.(type) {
		case Str:
			if b, ok := b.(Str); ok {
				return a + b, nil
			}
		case List:
			if b, ok := b.(List); ok {
				out := make(List, 0, len(a)+len(b))
				out = append(out, a...)
				return append(out, b...), nil
			}
		}
	case ast.Mul:
		if n, ok := asInt(b); ok {
			return repeat(loc, a, n)
		}
		if n, ok := asInt(a); ok {
			return repeat(loc, b, n)
		}
	}
	return nil, typeErr(loc, "unsupported operand types for %v: %v and %v", op, a.TypeName(), b.TypeName())
}

func repeat(loc *ast.Location, v Value, n *big.Int) (Value, error) {
	if !n.IsInt64() || n.Int64() > maxPowResultBits {
		return nil, typeErr(loc, "repeat count %v is too large", n)
	}
	k := int(max(n.Int64(), 0))
	switch v := v.(type) {
	case Str:
		out := make([]byte, 0, len(v)*k)
		for range k {
			out = append(out, v...)
		}
		return Str(out), nil
	case List:
		out := make(List, 0, len(v)*k)
		for range k {
			out = append(out, v...)
		}
		return out, nil
	}
	return nil, typeErr(loc, "can't multiply sequence of type %v", v.TypeName())
}

func compare(loc *ast.Location, op ast.Operator, a, b Value) (Value, error) {
	switch op {
	case ast.Eq:
		return Bool(Equal(a, b)), nil
	case ast.NotEq:
		return Bool(!Equal(a, b)), nil
	}

	var c int
	x, xok := asInt(a)
	y, yok := asInt(b)
	switch {
	case xok && yok:
		c = x.Cmp(y)
	default:
		sa, aok := a.(Str)
		sb, bok := b.(Str)
		if !aok || !bok {
			return nil, typeErr(loc, "%v not supported between %v and %v", op, a.TypeName(), b.TypeName())
		}
		switch {
		case sa < sb:
			c = -1
		case sa > sb:
			c = 1
		}
	}

	switch op {
	case ast.Lt:
		return Bool(c < 0), nil
	case ast.LtE:
		return Bool(c <= 0), nil
	case ast.Gt:
		return Bool(c > 0), nil
	default:
		return Bool(c >= 0), nil
	}
}

func unary(loc *ast.Location, op ast.Operator, a Value) (Value, error) {
	if op == ast.Not {
		return Bool(!truthy(a)), nil
	}
	x, ok := asInt(a)
	if !ok {
		return nil, typeErr(loc, "bad operand type for unary %v: %v", op, a.TypeName())
	}
	if op == ast.Neg {
		return IntValue(new(big.Int).Neg(x)), nil
	}
	return IntValue(new(big.Int).Set(x)), nil
}
