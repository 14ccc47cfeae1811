// Copyright 2017 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package eval

import (
	"math/big"
	"strconv"
	"strings"

	"github.com/sumfold/sumfold/ast"
)

// Value is a runtime value.
type Value interface {
	TypeName() string
	String() string
}

// Int is an arbitrary precision integer. Ints are never modified after
// construction.
type Int struct {
	v *big.Int
}

// IntValue returns an Int holding i.
func IntValue(i *big.Int) Int {
	return Int{v: i}
}

// Int64Value returns an Int holding i.
func Int64Value(i int64) Int {
	return Int{v: big.NewInt(i)}
}

// BigInt returns a copy of the integer.
func (i Int) BigInt() *big.Int {
	return new(big.Int).Set(i.v)
}

func (Int) TypeName() string { return "int" }

func (i Int) String() string { return i.v.String() }

// Bool is a boolean.
type Bool bool

func (Bool) TypeName() string { return "bool" }

func (b Bool) String() string {
	if b {
		return "True"
	}
	return "False"
}

// Str is a string.
type Str string

func (Str) TypeName() string { return "str" }

func (s Str) String() string { return string(s) }

// None is the value of functions without a return value.
type None struct{}

func (None) TypeName() string { return "NoneType" }

func (None) String() string { return "None" }

// List is a list of values.
type List []Value

func (List) TypeName() string { return "list" }

func (l List) String() string {
	s := make([]string, len(l))
	for i := range l {
		s[i] = repr(l[i])
	}
	return "[" + strings.Join(s, ", ") + "]"
}

// Range is a lazily evaluated range(from, to, step).
type Range struct {
	From, To, Step *big.Int
}

func (*Range) TypeName() string { return "range" }

func (r *Range) String() string {
	if r.Step.Cmp(big.NewInt(1)) == 0 {
		return "range(" + r.From.String() + ", " + r.To.String() + ")"
	}
	return "range(" + r.From.String() + ", " + r.To.String() + ", " + r.Step.String() + ")"
}

// Len returns the number of elements of the range.
func (r *Range) Len() *big.Int {
	var n *big.Int
	if r.Step.Sign() > 0 {
		n = new(big.Int).Sub(r.To, r.From)
		n.Add(n, r.Step).Sub(n, big.NewInt(1))
	} else {
		n = new(big.Int).Sub(r.From, r.To)
		n.Sub(n, r.Step).Sub(n, big.NewInt(1))
	}
	if n.Sign() <= 0 {
		return new(big.Int)
	}
	abs := new(big.Int).Abs(r.Step)
	return n.Quo(n, abs)
}

// Function is a user defined function.
type Function struct {
	Def     *ast.FuncDef
	globals *scope
}

func (*Function) TypeName() string { return "function" }

func (f *Function) String() string { return "<function " + string(f.Def.Name) + ">" }

// Builtin is a function provided by the interpreter.
type Builtin struct {
	Name string
	fn   builtinFunc
}

func (*Builtin) TypeName() string { return "builtin_function_or_method" }

func (b *Builtin) String() string { return "<built-in function " + b.Name + ">" }

func repr(v Value) string {
	if s, ok := v.(Str); ok {
		return strconv.Quote(string(s))
	}
	return v.String()
}

// Equal reports whether a and b are equal. Booleans compare equal to the
// integers 0 and 1.
func Equal(a, b Value) bool {
	ai, aok := asInt(a)
	bi, bok := asInt(b)
	if aok && bok {
		return ai.Cmp(bi) == 0
	}
	switch a := a.(type) {
	case Str:
		b, ok := b.(Str)
		return ok && a == b
	case None:
		_, ok := b.(None)
		return ok
	case List:
		b, ok := b.(List)
		if !ok || len(a) != len(b) {
			return false
		}
		for i := range a {
			if !Equal(a[i], b[i]) {
				return false
			}
		}
		return true
	case *Range:
		b, ok := b.(*Range)
		return ok && a.From.Cmp(b.From) == 0 && a.To.Cmp(b.To) == 0 && a.Step.Cmp(b.Step) == 0
	}
	return a == b
}

func asInt(v Value) (*big.Int, bool) {
	switch v := v.(type) {
	case Int:
		return v.v, true
	case Bool:
		if v {
			return big.NewInt(1), true
		}
		return new(big.Int), true
	}
	return nil, false
}

func truthy(v Value) bool {
	switch v := v.(type) {
	case Int:
		return v.v.Sign() != 0
	case Bool:
		return bool(v)
	case Str:
		return len(v) > 0
	case None:
		return false
	case List:
		return len(v) > 0
	case *Range:
		return v.Len().Sign() > 0
	}
	return true
}
