// Copyright 2016 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package eval

import (
	"fmt"
	"math/big"
	"slices"
	"strings"

	"github.com/sumfold/sumfold/ast"
)

type builtinFunc func(e *evaluator, loc *ast.Location, args []Value, kwargs map[ast.Var]Value) (Value, error)

var builtins = map[ast.Var]*Builtin{}

// Builtins returns the sorted names of the builtin functions.
func Builtins() []string {
	names := make([]string, 0, len(builtins))
	for k := range builtins {
		names = append(names, string(k))
	}
	slices.Sort(names)
	return names
}

func register(name string, fn builtinFunc) {
	builtins[ast.Var(name)] = &Builtin{Name: name, fn: fn}
}

func init() {
	register("range", builtinRange)
	register("sum", builtinSum)
	register("max", builtinMinMax(1))
	register("min", builtinMinMax(-1))
	register("abs", builtinAbs)
	register("len", builtinLen)
	register("list", builtinList)
	register("print", builtinPrint)
}

func noKeywords(loc *ast.Location, name string, kwargs map[ast.Var]Value) error {
	for k := range kwargs {
		return typeErr(loc, "%v() got an unexpected keyword argument %v", name, k)
	}
	return nil
}

func intArg(loc *ast.Location, name string, v Value) (*big.Int, error) {
	i, ok := asInt(v)
	if !ok {
		return nil, typeErr(loc, "%v() expects integer arguments, got %v", name, v.TypeName())
	}
	return i, nil
}

func builtinRange(_ *evaluator, loc *ast.Location, args []Value, kwargs map[ast.Var]Value) (Value, error) {
	if err := noKeywords(loc, "range", kwargs); err != nil {
		return nil, err
	}
	ints := make([]*big.Int, len(args))
	for i := range args {
		x, err := intArg(loc, "range", args[i])
		if err != nil {
			return nil, err
		}
		ints[i] = x
	}

	r := &Range{From: new(big.Int), Step: big.NewInt(1)}
	switch len(ints) {
	case 1:
		r.To = ints[0]
	case 2:
		r.From, r.To = ints[0], ints[1]
	case 3:
		r.From, r.To, r.Step = ints[0], ints[1], ints[2]
		if r.Step.Sign() == 0 {
			return nil, typeErr(loc, "range() arg 3 must not be zero")
		}
	default:
		return nil, typeErr(loc, "range expected 1 to 3 arguments, got %d", len(ints))
	}
	return r, nil
}

func builtinSum(e *evaluator, loc *ast.Location, args []Value, kwargs map[ast.Var]Value) (Value, error) {
	if len(args) == 0 || len(args) > 2 {
		return nil, typeErr(loc, "sum expected 1 or 2 arguments, got %d", len(args))
	}
	var acc Value = Int64Value(0)
	if len(args) == 2 {
		acc = args[1]
	}
	if start, ok := kwargs["start"]; ok {
		if len(args) == 2 {
			return nil, typeErr(loc, "sum() got multiple values for argument start")
		}
		acc = start
		delete(kwargs, "start")
	}
	if err := noKeywords(loc, "sum", kwargs); err != nil {
		return nil, err
	}
	err := e.iterate(loc, args[0], func(x Value) error {
		r, err := binary(loc, ast.Add, acc, x)
		if err != nil {
			return err
		}
		acc = r
		return nil
	})
	return acc, err
}

func builtinMinMax(sign int) builtinFunc {
	name := "max"
	if sign < 0 {
		name = "min"
	}
	return func(e *evaluator, loc *ast.Location, args []Value, kwargs map[ast.Var]Value) (Value, error) {
		if err := noKeywords(loc, name, kwargs); err != nil {
			return nil, err
		}
		candidates := args
		if len(args) == 1 {
			candidates = nil
			err := e.iterate(loc, args[0], func(x Value) error {
				candidates = append(candidates, x)
				return nil
			})
			if err != nil {
				return nil, err
			}
		}
		if len(candidates) == 0 {
			return nil, typeErr(loc, "%v() arg is an empty sequence", name)
		}
		best := candidates[0]
		for _, x := range candidates[1:] {
			op := ast.Gt
			if sign < 0 {
				op = ast.Lt
			}
			better, err := compare(loc, op, x, best)
			if err != nil {
				return nil, err
			}
			if better.(Bool) {
				best = x
			}
		}
		return best, nil
	}
}

func builtinAbs(_ *evaluator, loc *ast.Location, args []Value, kwargs map[ast.Var]Value) (Value, error) {
	if err := noKeywords(loc, "abs", kwargs); err != nil {
		return nil, err
	}
	if len(args) != 1 {
		return nil, typeErr(loc, "abs() takes exactly one argument (%d given)", len(args))
	}
	x, err := intArg(loc, "abs", args[0])
	if err != nil {
		return nil, err
	}
	return IntValue(new(big.Int).Abs(x)), nil
}

func builtinLen(_ *evaluator, loc *ast.Location, args []Value, kwargs map[ast.Var]Value) (Value, error) {
	if err := noKeywords(loc, "len", kwargs); err != nil {
		return nil, err
	}
	if len(args) != 1 {
		return nil, typeErr(loc, "len() takes exactly one argument (%d given)", len(args))
	}
	switch x := args[0].(type) {
	case List:
		return Int64Value(int64(len(x))), nil
	case Str:
		return Int64Value(int64(len([]rune(string(x))))), nil
	case *Range:
		return IntValue(x.Len()), nil
	}
	return nil, typeErr(loc, "object of type %v has no len()", args[0].TypeName())
}

func builtinList(e *evaluator, loc *ast.Location, args []Value, kwargs map[ast.Var]Value) (Value, error) {
	if err := noKeywords(loc, "list", kwargs); err != nil {
		return nil, err
	}
	out := List{}
	if len(args) == 0 {
		return out, nil
	}
	if len(args) > 1 {
		return nil, typeErr(loc, "list expected at most 1 argument, got %d", len(args))
	}
	err := e.iterate(loc, args[0], func(x Value) error {
		out = append(out, x)
		return nil
	})
	return out, err
}

func builtinPrint(e *evaluator, loc *ast.Location, args []Value, kwargs map[ast.Var]Value) (Value, error) {
	if err := noKeywords(loc, "print", kwargs); err != nil {
		return nil, err
	}
	s := make([]string, len(args))
	for i := range args {
		s[i] = args[i].String()
	}
	if _, err := fmt.Fprintln(e.output, strings.Join(s, " ")); err != nil {
		return nil, newError(InternalErr, loc, "print: %v", err)
	}
	return None{}, nil
}
