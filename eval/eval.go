// Copyright 2016 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package eval interprets modules with arbitrary precision integer
// semantics. It is used to check that optimized programs compute the same
// values as their originals.
package eval

import (
	"context"
	"io"
	"maps"
	"math/big"
	"slices"

	"github.com/sumfold/sumfold/ast"
	"github.com/sumfold/sumfold/metrics"
)

// DefaultMaxSteps is the default step budget of an Interpreter.
const DefaultMaxSteps = 10_000_000

// Interpreter evaluates modules. An Interpreter is configured once and can
// then be used for any number of evaluations, including concurrent ones.
type Interpreter struct {
	maxSteps int64
	output   io.Writer
	metrics  metrics.Metrics
}

// New returns an Interpreter with default settings.
func New() *Interpreter {
	return &Interpreter{
		maxSteps: DefaultMaxSteps,
		output:   io.Discard,
		metrics:  metrics.NoOp(),
	}
}

// WithMaxSteps sets the number of statements and loop iterations an
// evaluation may execute.
func (i *Interpreter) WithMaxSteps(n int64) *Interpreter {
	i.maxSteps = n
	return i
}

// WithOutput sets the writer print writes to.
func (i *Interpreter) WithOutput(w io.Writer) *Interpreter {
	i.output = w
	return i
}

// WithMetrics sets the metrics the step counter is recorded in.
func (i *Interpreter) WithMetrics(m metrics.Metrics) *Interpreter {
	i.metrics = m
	return i
}

// Bindings maps free identifiers to their values before evaluation.
type Bindings map[ast.Var]Value

// IntBindings returns Bindings holding integers.
func IntBindings(m map[string]int64) Bindings {
	b := make(Bindings, len(m))
	for k, v := range m {
		b[ast.Var(k)] = Int64Value(v)
	}
	return b
}

// Result holds the global names of an evaluated module.
type Result struct {
	globals map[ast.Var]Value
	Steps   int64
}

// Get returns the value bound to name.
func (r *Result) Get(name string) (Value, bool) {
	v, ok := r.globals[ast.Var(name)]
	return v, ok
}

// Names returns the sorted names bound by the module.
func (r *Result) Names() []string {
	names := make([]string, 0, len(r.globals))
	for k := range r.globals {
		names = append(names, string(k))
	}
	slices.Sort(names)
	return names
}

// Ints returns the integer valued names bound by the module.
func (r *Result) Ints() map[string]*big.Int {
	out := map[string]*big.Int{}
	for k, v := range r.globals {
		if i, ok := v.(Int); ok {
			out[string(k)] = i.BigInt()
		}
	}
	return out
}

// Module executes m with the given bindings for free names.
func (i *Interpreter) Module(ctx context.Context, m *ast.Module, bindings Bindings) (*Result, error) {
	return i.run(i.newEval(ctx, bindings), m)
}

// Continue executes m in the global scope of prev, which is updated in
// place. Functions defined by earlier modules see the names m binds. A nil
// prev starts from an empty scope.
func (i *Interpreter) Continue(ctx context.Context, prev *Result, m *ast.Module) (*Result, error) {
	e := i.newEval(ctx, nil)
	if prev != nil {
		e.globals = &scope{vars: prev.globals}
	}
	return i.run(e, m)
}

// ExprIn evaluates t in the global scope of prev.
func (i *Interpreter) ExprIn(ctx context.Context, prev *Result, t *ast.Term) (Value, error) {
	e := i.newEval(ctx, nil)
	if prev != nil {
		e.globals = &scope{vars: prev.globals}
	}
	v, err := e.term(e.globals, t)
	i.metrics.Counter(metrics.EvalInterpretStep).Add(uint64(e.steps))
	return v, err
}

func (i *Interpreter) run(e *evaluator, m *ast.Module) (*Result, error) {
	err := e.body(e.globals, m.Body)
	i.metrics.Counter(metrics.EvalInterpretStep).Add(uint64(e.steps))
	if err != nil {
		if _, ok := err.(*returnSignal); ok {
			return nil, newError(TypeErr, nil, "return outside function")
		}
		return nil, err
	}
	return &Result{globals: e.globals.vars, Steps: e.steps}, nil
}

// Expr evaluates t with the given bindings.
func (i *Interpreter) Expr(ctx context.Context, t *ast.Term, bindings Bindings) (Value, error) {
	e := i.newEval(ctx, bindings)
	v, err := e.term(e.globals, t)
	i.metrics.Counter(metrics.EvalInterpretStep).Add(uint64(e.steps))
	return v, err
}

func (i *Interpreter) newEval(ctx context.Context, bindings Bindings) *evaluator {
	globals := newScope(nil)
	maps.Copy(globals.vars, bindings)
	return &evaluator{
		ctx:      ctx,
		maxSteps: i.maxSteps,
		output:   i.output,
		globals:  globals,
	}
}

type scope struct {
	vars   map[ast.Var]Value
	parent *scope
}

func newScope(parent *scope) *scope {
	return &scope{vars: map[ast.Var]Value{}, parent: parent}
}

func (s *scope) lookup(v ast.Var) (Value, bool) {
	for ; s != nil; s = s.parent {
		if x, ok := s.vars[v]; ok {
			return x, true
		}
	}
	return nil, false
}

type returnSignal struct {
	value Value
}

func (*returnSignal) Error() string { return "return" }

type evaluator struct {
	ctx      context.Context
	maxSteps int64
	steps    int64
	output   io.Writer
	globals  *scope
}

func (e *evaluator) step(loc *ast.Location) error {
	e.steps++
	if e.maxSteps > 0 && e.steps > e.maxSteps {
		return newError(BudgetErr, loc, "step budget of %d exhausted", e.maxSteps)
	}
	if e.steps%1024 == 0 {
		if err := e.ctx.Err(); err != nil {
			return newError(CancelErr, loc, "evaluation cancelled: %v", err)
		}
	}
	return nil
}

func (e *evaluator) body(s *scope, body ast.Body) error {
	for _, stmt := range body {
		if err := e.statement(s, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (e *evaluator) statement(s *scope, stmt ast.Statement) error {
	if err := e.step(stmt.Loc()); err != nil {
		return err
	}

	switch stmt := stmt.(type) {
	case *ast.Assign:
		v, err := e.term(s, stmt.Value)
		if err != nil {
			return err
		}
		return e.assign(s, stmt.Target, v)

	case *ast.AugAssign:
		cur, err := e.term(s, stmt.Target)
		if err != nil {
			return err
		}
		v, err := e.term(s, stmt.Value)
		if err != nil {
			return err
		}
		r, err := binary(stmt.Location, stmt.Op, cur, v)
		if err != nil {
			return err
		}
		return e.assign(s, stmt.Target, r)

	case *ast.For:
		iter, err := e.term(s, stmt.Iter)
		if err != nil {
			return err
		}
		err = e.iterate(stmt.Location, iter, func(x Value) error {
			if err := e.assign(s, stmt.Target, x); err != nil {
				return err
			}
			return e.body(s, stmt.Body)
		})
		if err != nil {
			return err
		}
		return e.body(s, stmt.Else)

	case *ast.While:
		for {
			c, err := e.term(s, stmt.Cond)
			if err != nil {
				return err
			}
			if !truthy(c) {
				break
			}
			if err := e.step(stmt.Location); err != nil {
				return err
			}
			if err := e.body(s, stmt.Body); err != nil {
				return err
			}
		}
		return e.body(s, stmt.Else)

	case *ast.If:
		c, err := e.term(s, stmt.Cond)
		if err != nil {
			return err
		}
		if truthy(c) {
			return e.body(s, stmt.Body)
		}
		return e.body(s, stmt.Else)

	case *ast.FuncDef:
		s.vars[stmt.Name] = &Function{Def: stmt, globals: e.globals}
		return nil

	case *ast.Return:
		var v Value = None{}
		if stmt.Value != nil {
			var err error
			if v, err = e.term(s, stmt.Value); err != nil {
				return err
			}
		}
		return &returnSignal{value: v}

	case *ast.ExprStmt:
		_, err := e.term(s, stmt.Expr)
		return err

	case *ast.Pass:
		return nil
	}

	return newError(InternalErr, stmt.Loc(), "unsupported statement %v", ast.TypeName(stmt))
}

func (e *evaluator) assign(s *scope, target *ast.Term, v Value) error {
	name, ok := target.Value.(ast.Var)
	if !ok {
		return typeErr(target.Location, "cannot assign to %v", ast.TypeName(target.Value))
	}
	s.vars[name] = v
	return nil
}

// iterate calls f for every element of iter. Every iteration costs a step.
func (e *evaluator) iterate(loc *ast.Location, iter Value, f func(Value) error) error {
	switch iter := iter.(type) {
	case *Range:
		i := new(big.Int).Set(iter.From)
		for (iter.Step.Sign() > 0 && i.Cmp(iter.To) < 0) || (iter.Step.Sign() < 0 && i.Cmp(iter.To) > 0) {
			if err := e.step(loc); err != nil {
				return err
			}
			if err := f(IntValue(new(big.Int).Set(i))); err != nil {
				return err
			}
			i.Add(i, iter.Step)
		}
		return nil
	case List:
		for _, x := range iter {
			if err := e.step(loc); err != nil {
				return err
			}
			if err := f(x); err != nil {
				return err
			}
		}
		return nil
	case Str:
		for _, r := range string(iter) {
			if err := e.step(loc); err != nil {
				return err
			}
			if err := f(Str(string(r))); err != nil {
				return err
			}
		}
		return nil
	}
	return typeErr(loc, "%v object is not iterable", iter.TypeName())
}

func (e *evaluator) term(s *scope, t *ast.Term) (Value, error) {
	switch v := t.Value.(type) {
	case ast.Int:
		return IntValue(v.BigInt()), nil

	case ast.String:
		return Str(v), nil

	case ast.Var:
		if x, ok := s.lookup(v); ok {
			return x, nil
		}
		if b, ok := builtins[v]; ok {
			return b, nil
		}
		switch v {
		case "True":
			return Bool(true), nil
		case "False":
			return Bool(false), nil
		case "None":
			return None{}, nil
		}
		return nil, nameErr(t.Location, v)

	case *ast.BinOp:
		return e.binOp(s, t, v)

	case *ast.UnaryOp:
		x, err := e.term(s, v.Operand)
		if err != nil {
			return nil, err
		}
		return unary(t.Location, v.Op, x)

	case *ast.Call:
		return e.call(s, t, v)

	case *ast.List:
		out := make(List, 0, len(v.Elems))
		for _, elem := range v.Elems {
			x, err := e.term(s, elem)
			if err != nil {
				return nil, err
			}
			out = append(out, x)
		}
		return out, nil

	case *ast.Comprehension:
		var out List
		err := e.comprehension(newScope(s), t.Location, v, 0, func(x Value) {
			out = append(out, x)
		})
		if err != nil {
			return nil, err
		}
		if out == nil {
			out = List{}
		}
		return out, nil
	}

	return nil, newError(InternalErr, t.Location, "unsupported expression %v", ast.TypeName(t.Value))
}

func (e *evaluator) comprehension(s *scope, loc *ast.Location, c *ast.Comprehension, i int, yield func(Value)) error {
	if i == len(c.Generators) {
		x, err := e.term(s, c.Elem)
		if err != nil {
			return err
		}
		yield(x)
		return nil
	}
	g := c.Generators[i]
	iter, err := e.term(s, g.Iter)
	if err != nil {
		return err
	}
	return e.iterate(loc, iter, func(x Value) error {
		if err := e.assign(s, g.Target, x); err != nil {
			return err
		}
		for _, cond := range g.Ifs {
			ok, err := e.term(s, cond)
			if err != nil {
				return err
			}
			if !truthy(ok) {
				return nil
			}
		}
		return e.comprehension(s, loc, c, i+1, yield)
	})
}

func (e *evaluator) binOp(s *scope, t *ast.Term, b *ast.BinOp) (Value, error) {
	left, err := e.term(s, b.Left)
	if err != nil {
		return nil, err
	}

	switch b.Op {
	case ast.And:
		if !truthy(left) {
			return left, nil
		}
		return e.term(s, b.Right)
	case ast.Or:
		if truthy(left) {
			return left, nil
		}
		return e.term(s, b.Right)
	}

	right, err := e.term(s, b.Right)
	if err != nil {
		return nil, err
	}
	return binary(t.Location, b.Op, left, right)
}

func (e *evaluator) call(s *scope, t *ast.Term, c *ast.Call) (Value, error) {
	fn, err := e.term(s, c.Func)
	if err != nil {
		return nil, err
	}

	args := make([]Value, 0, len(c.Args))
	for _, a := range c.Args {
		x, err := e.term(s, a)
		if err != nil {
			return nil, err
		}
		args = append(args, x)
	}

	kwargs := map[ast.Var]Value{}
	for _, kw := range c.Keywords {
		x, err := e.term(s, kw.Value)
		if err != nil {
			return nil, err
		}
		kwargs[kw.Name] = x
	}

	switch fn := fn.(type) {
	case *Builtin:
		return fn.fn(e, t.Location, args, kwargs)
	case *Function:
		return e.apply(t.Location, fn, args, kwargs)
	}
	return nil, typeErr(t.Location, "%v object is not callable", fn.TypeName())
}

func (e *evaluator) apply(loc *ast.Location, fn *Function, args []Value, kwargs map[ast.Var]Value) (Value, error) {
	params := fn.Def.Params
	if len(args) > len(params) {
		return nil, typeErr(loc, "%v() takes %d positional arguments but %d were given", fn.Def.Name, len(params), len(args))
	}

	local := newScope(fn.globals)
	for i, p := range params {
		switch {
		case i < len(args):
			local.vars[p] = args[i]
		default:
			x, ok := kwargs[p]
			if !ok {
				return nil, typeErr(loc, "%v() missing required argument %v", fn.Def.Name, p)
			}
			local.vars[p] = x
			delete(kwargs, p)
		}
	}
	for k := range kwargs {
		return nil, typeErr(loc, "%v() got an unexpected keyword argument %v", fn.Def.Name, k)
	}

	err := e.body(local, fn.Def.Body)
	if err == nil {
		return None{}, nil
	}
	if r, ok := err.(*returnSignal); ok {
		return r.value, nil
	}
	return nil, err
}
