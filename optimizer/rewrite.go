// Copyright 2020 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package optimizer

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/sumfold/sumfold/ast"
	"github.com/sumfold/sumfold/closedform"
	"github.com/sumfold/sumfold/logging"
	"github.com/sumfold/sumfold/metrics"
)

var (
	sumVar   = ast.Var("sum")
	startVar = ast.Var("start")
)

// State is the position of a loop context in its life cycle.
type State int

// Loop context states. A context is opened when an eligible construct is
// entered, accumulates while its body is visited and is then either resolved
// to a replacement or blocked. Closed contexts have been popped off the stack.
const (
	Open State = iota
	Accumulating
	Resolved
	Blocked
	Closed
)

var stateNames = [...]string{
	Open:         "open",
	Accumulating: "accumulating",
	Resolved:     "resolved",
	Blocked:      "blocked",
	Closed:       "closed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Kind distinguishes the two accumulation constructs.
type Kind int

// Accumulation constructs.
const (
	ForLoop Kind = iota
	SumCall
)

func (k Kind) String() string {
	if k == SumCall {
		return "sum"
	}
	return "for"
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// loopContext tracks one accumulation construct while its body is visited.
type loopContext struct {
	kind     Kind
	state    State
	loopVar  ast.Var
	acc      ast.Var // empty for sum calls
	rng      *rangeInfo
	location *ast.Location
	reason   string
}

func (c *loopContext) block(reason string) {
	if c.state == Blocked {
		return
	}
	c.state = Blocked
	c.reason = reason
}

// accumulator is a name last assigned a constant in a known block.
type accumulator struct {
	value *big.Int
	block int
}

// pass holds the state of one optimization run over one module.
type pass struct {
	ctx      context.Context
	logger   logging.Logger
	metrics  metrics.Metrics
	norm     *normalizer
	registry map[ast.Var]accumulator
	stack    []*loopContext
	blocks   int
	block    int
	report   *Report

	// reads counts the reads of each name outside of the loops that bind it.
	reads map[ast.Var]int
	// binding is emitted after the statement being rewritten.
	binding ast.Statement
}

func newPass(ctx context.Context, logger logging.Logger, m metrics.Metrics, maxExponent int) *pass {
	return &pass{
		ctx:      ctx,
		logger:   logger,
		metrics:  m,
		norm:     newNormalizer(maxExponent),
		registry: map[ast.Var]accumulator{},
		report:   &Report{},
	}
}

func (p *pass) Body(body ast.Body) (ast.Body, error) {
	p.blocks++
	saved := p.block
	p.block = p.blocks
	defer func() { p.block = saved }()

	var out ast.Body
	for i, s := range body {
		if err := p.ctx.Err(); err != nil {
			return nil, err
		}
		r, err := p.Statement(s)
		if err != nil {
			return nil, err
		}
		binding := p.binding
		p.binding = nil
		if (r != s || binding != nil) && out == nil {
			out = make(ast.Body, i, len(body))
			copy(out, body[:i])
		}
		if out != nil {
			out = append(out, r)
			if binding != nil {
				out = append(out, binding)
			}
		}
	}
	if out == nil {
		return body, nil
	}
	return out, nil
}

func (p *pass) Statement(s ast.Statement) (ast.Statement, error) {
	switch s := s.(type) {
	case *ast.Assign:
		value, err := p.Term(s.Value)
		if err != nil {
			return nil, err
		}
		target := p.storeTarget(s.Target)
		if v, ok := target.Value.(ast.Var); ok {
			if c, ok := p.norm.Constant(value); ok {
				p.register(v, c)
			}
		}
		if value == s.Value {
			return s, nil
		}
		cpy := *s
		cpy.Value = value
		return &cpy, nil

	case *ast.AugAssign:
		value, err := p.Term(s.Value)
		if err != nil {
			return nil, err
		}
		p.storeTarget(s.Target)
		if value == s.Value {
			return s, nil
		}
		cpy := *s
		cpy.Value = value
		return &cpy, nil

	case *ast.For:
		if aug, acc, loopVar, ok := forCandidate(s); ok {
			return p.forLoop(s, aug, acc, loopVar)
		}
		iter, err := p.Term(s.Iter)
		if err != nil {
			return nil, err
		}
		p.storeTarget(s.Target)
		body, err := p.Body(s.Body)
		if err != nil {
			return nil, err
		}
		orElse, err := p.Body(s.Else)
		if err != nil {
			return nil, err
		}
		if iter == s.Iter && sameBody(body, s.Body) && sameBody(orElse, s.Else) {
			return s, nil
		}
		cpy := *s
		cpy.Iter, cpy.Body, cpy.Else = iter, body, orElse
		return &cpy, nil

	case *ast.While:
		cond, err := p.Term(s.Cond)
		if err != nil {
			return nil, err
		}
		body, err := p.Body(s.Body)
		if err != nil {
			return nil, err
		}
		orElse, err := p.Body(s.Else)
		if err != nil {
			return nil, err
		}
		if cond == s.Cond && sameBody(body, s.Body) && sameBody(orElse, s.Else) {
			return s, nil
		}
		cpy := *s
		cpy.Cond, cpy.Body, cpy.Else = cond, body, orElse
		return &cpy, nil

	case *ast.If:
		cond, err := p.Term(s.Cond)
		if err != nil {
			return nil, err
		}
		body, err := p.Body(s.Body)
		if err != nil {
			return nil, err
		}
		orElse, err := p.Body(s.Else)
		if err != nil {
			return nil, err
		}
		if cond == s.Cond && sameBody(body, s.Body) && sameBody(orElse, s.Else) {
			return s, nil
		}
		cpy := *s
		cpy.Cond, cpy.Body, cpy.Else = cond, body, orElse
		return &cpy, nil

	case *ast.FuncDef:
		p.store(s.Name)
		saved := p.registry
		p.registry = map[ast.Var]accumulator{}
		body, err := p.Body(s.Body)
		p.registry = saved
		if err != nil {
			return nil, err
		}
		if sameBody(body, s.Body) {
			return s, nil
		}
		cpy := *s
		cpy.Body = body
		return &cpy, nil

	case *ast.Return:
		if s.Value == nil {
			return s, nil
		}
		value, err := p.Term(s.Value)
		if err != nil || value == s.Value {
			return s, err
		}
		cpy := *s
		cpy.Value = value
		return &cpy, nil

	case *ast.ExprStmt:
		expr, err := p.Term(s.Expr)
		if err != nil || expr == s.Expr {
			return s, err
		}
		cpy := *s
		cpy.Expr = expr
		return &cpy, nil
	}

	return s, nil
}

// forCandidate reports whether s has the shape of an accumulation loop:
// no else clause, an identifier target and a body consisting of a single
// "acc += expr" into an identifier other than the loop variable.
func forCandidate(s *ast.For) (*ast.AugAssign, ast.Var, ast.Var, bool) {
	if len(s.Else) > 0 || len(s.Body) != 1 {
		return nil, "", "", false
	}
	loopVar, ok := s.Target.Value.(ast.Var)
	if !ok {
		return nil, "", "", false
	}
	aug, ok := s.Body[0].(*ast.AugAssign)
	if !ok || aug.Op != ast.Add {
		return nil, "", "", false
	}
	acc, ok := aug.Target.Value.(ast.Var)
	if !ok || acc == loopVar {
		return nil, "", "", false
	}
	return aug, acc, loopVar, true
}

func (p *pass) forLoop(s *ast.For, aug *ast.AugAssign, acc, loopVar ast.Var) (ast.Statement, error) {
	iter, err := p.Term(s.Iter)
	if err != nil {
		return nil, err
	}

	c := &loopContext{kind: ForLoop, loopVar: loopVar, acc: acc, location: s.Location}
	if err := p.open(c, iter); err != nil {
		return nil, err
	}

	init, ok := p.registry[acc]
	if !ok || init.block != p.block {
		c.block(fmt.Sprintf("no known initial value for accumulator %v", acc))
	}

	p.push(c)
	p.store(loopVar)
	value, err := p.Term(aug.Value)
	p.pop()
	if err != nil {
		return nil, err
	}
	p.store(acc)

	original := s
	if iter != s.Iter || value != aug.Value {
		augCpy := *aug
		augCpy.Value = value
		forCpy := *s
		forCpy.Iter = iter
		forCpy.Body = ast.Body{&augCpy}
		s = &forCpy
	}

	var replacement *ast.Term
	if c.state != Blocked {
		replacement = p.resolve(c, value, constSOP(init.value))
	}

	if c.state == Blocked {
		p.record(c, original.String(), "")
		return s, nil
	}

	if v, ok := p.norm.Constant(replacement); ok {
		p.register(acc, v)
	}

	result := &ast.Assign{
		Target:   ast.NewTerm(acc).SetLocation(aug.Target.Location),
		Value:    replacement,
		Location: s.Location,
	}
	p.record(c, original.String(), result.String())
	p.binding = p.loopBinding(c, s.Target.Location)
	return result, nil
}

// loopBinding returns the assignment of the last value of the loop variable
// of c if the loop ran at least once and the variable is read elsewhere.
func (p *pass) loopBinding(c *loopContext, loc *ast.Location) ast.Statement {
	if c.rng.symbolic() || c.rng.length.Sign() <= 0 || p.reads[c.loopVar] == 0 {
		return nil
	}
	last := new(big.Int).Sub(c.rng.to, big.NewInt(1))
	p.register(c.loopVar, last)
	return &ast.Assign{
		Target:   ast.NewTerm(c.loopVar).SetLocation(loc),
		Value:    ast.BigIntTerm(last),
		Location: loc,
	}
}

// sumCandidate reports whether c has the shape sum(<comprehension>[, start])
// over a single generator without conditions.
func sumCandidate(c *ast.Call) (*ast.Comprehension, *ast.Term, bool) {
	name, ok := c.Name()
	if !ok || name != sumVar || len(c.Args) == 0 || len(c.Args) > 2 {
		return nil, nil, false
	}
	comp, ok := c.Args[0].Value.(*ast.Comprehension)
	if !ok || len(comp.Generators) != 1 || len(comp.Generators[0].Ifs) > 0 {
		return nil, nil, false
	}
	if _, ok := comp.Generators[0].Target.Value.(ast.Var); !ok {
		return nil, nil, false
	}

	var start *ast.Term
	if len(c.Args) == 2 {
		start = c.Args[1]
	}
	switch len(c.Keywords) {
	case 0:
	case 1:
		if start != nil || c.Keywords[0].Name != startVar {
			return nil, nil, false
		}
		start = c.Keywords[0].Value
	default:
		return nil, nil, false
	}
	return comp, start, true
}

func (p *pass) sumCall(t *ast.Term, call *ast.Call, comp *ast.Comprehension, start *ast.Term) (*ast.Term, error) {
	gen := comp.Generators[0]
	loopVar := gen.Target.Value.(ast.Var)

	iter, err := p.Term(gen.Iter)
	if err != nil {
		return nil, err
	}

	if start != nil {
		if start, err = p.Term(start); err != nil {
			return nil, err
		}
	}

	c := &loopContext{kind: SumCall, loopVar: loopVar, location: t.Location}
	if err := p.open(c, iter); err != nil {
		return nil, err
	}

	p.push(c)
	p.store(loopVar)
	elem, err := p.Term(comp.Elem)
	p.pop()
	if err != nil {
		return nil, err
	}

	current := t
	if iter != gen.Iter || elem != comp.Elem || (start != nil && !sameStart(call, start)) {
		current = rebuildSum(t, call, comp, iter, elem, start)
	}

	var replacement *ast.Term
	if c.state != Blocked {
		init := sop{}
		if start != nil {
			s, err := p.norm.Normalize(start)
			if err != nil {
				c.block(reason(err))
			}
			init = s
		}
		if c.state != Blocked {
			replacement = p.resolve(c, elem, init)
		}
	}

	if c.state == Blocked {
		p.record(c, t.String(), "")
		return current, nil
	}

	replacement.SetLocation(t.Location)
	p.record(c, t.String(), replacement.String())
	return replacement, nil
}

func sameStart(call *ast.Call, start *ast.Term) bool {
	if len(call.Args) == 2 {
		return call.Args[1] == start
	}
	return call.Keywords[0].Value == start
}

func rebuildSum(t *ast.Term, call *ast.Call, comp *ast.Comprehension, iter, elem, start *ast.Term) *ast.Term {
	gen := *comp.Generators[0]
	gen.Iter = iter
	compCpy := *comp
	compCpy.Elem = elem
	compCpy.Generators = []*ast.Generator{&gen}

	callCpy := *call
	callCpy.Args = []*ast.Term{ast.NewTerm(&compCpy).SetLocation(call.Args[0].Location)}
	if len(call.Args) == 2 {
		callCpy.Args = append(callCpy.Args, start)
	} else if start != nil {
		callCpy.Keywords = []*ast.Keyword{{Name: startVar, Value: start}}
	}
	return ast.NewTerm(&callCpy).SetLocation(t.Location)
}

// open analyzes the iterable of a freshly opened context. Constructs that
// do not iterate over a counting range block the context. Two argument
// ranges over non-constant bounds abort the pass.
func (p *pass) open(c *loopContext, iter *ast.Term) error {
	c.state = Open
	p.logger.Debug("Opened %v context over %v at %v.", c.kind, iter, c.location)
	rng, err := p.norm.analyzeRange(iter)
	if err != nil {
		var be *BlockedError
		if !errors.As(err, &be) {
			return err
		}
		c.block(be.Reason)
		return nil
	}
	c.rng = rng
	return nil
}

func (p *pass) push(c *loopContext) {
	if c.state == Open {
		c.state = Accumulating
	}
	p.stack = append(p.stack, c)
}

func (p *pass) pop() {
	p.stack = p.stack[:len(p.stack)-1]
}

// resolve computes the closed form of summing body over the context's range
// on top of init. It blocks the context and returns nil if the body cannot
// be expressed.
func (p *pass) resolve(c *loopContext, body *ast.Term, init sop) *ast.Term {
	s, err := p.norm.Normalize(body)
	if err != nil {
		c.block(reason(err))
		return nil
	}
	p.metrics.Histogram(metrics.NormalizedTerms).Update(int64(len(s)))

	var result *ast.Term
	if c.rng.symbolic() {
		result = p.resolveSymbolic(c, s, init)
	} else {
		result = p.resolveConstant(c, s, init)
	}
	if result != nil {
		c.state = Resolved
	}
	return result
}

func (p *pass) resolveConstant(c *loopContext, s sop, init sop) *ast.Term {
	key := string(c.loopVar)
	var out sop
	for _, prod := range s {
		power := prod.count(key)
		if power > closedform.MaxPower {
			c.block(fmt.Sprintf("%v is raised to the power %d, closed forms exist up to %d", c.loopVar, power, closedform.MaxPower))
			return nil
		}
		scaled := append(prod.without(key), constFactor(c.rng.perPower[power]))
		out = append(out, scaled)
	}
	out = append(out, init...)
	return synthesize(foldPartitions(out))
}

// resolveSymbolic expresses the sum over [0, bound) as a polynomial in
// max(bound, 0). The polynomial coefficients are fractions, so every term
// is scaled by the common denominator d and the result divided by d.
func (p *pass) resolveSymbolic(c *loopContext, s sop, init sop) *ast.Term {
	key := string(c.loopVar)
	d := big.NewInt(1)
	for _, prod := range s {
		power := prod.count(key)
		if power > closedform.MaxPower {
			c.block(fmt.Sprintf("%v is raised to the power %d, closed forms exist up to %d", c.loopVar, power, closedform.MaxPower))
			return nil
		}
		d = lcm(d, closedform.Denominator(power))
	}

	count := atomFactor(c.rng.count())

	var out sop
	for _, prod := range s {
		power := prod.count(key)
		rest := prod.without(key)
		cs := closedform.Scaled(power, d)
		for k := len(cs) - 1; k >= 0; k-- {
			if cs[k].Sign() == 0 {
				continue
			}
			term := make(product, 0, len(rest)+k+1)
			term = append(term, rest...)
			for range k {
				term = append(term, count)
			}
			term = append(term, constFactor(cs[k]))
			out = append(out, term)
		}
	}
	out = append(out, scaleSOP(init, d)...)

	result := synthesize(foldPartitions(out))
	if d.Cmp(big.NewInt(1)) == 0 {
		return result
	}
	return ast.BinOpTerm(ast.FloorDiv, result, ast.BigIntTerm(d))
}

func lcm(a, b *big.Int) *big.Int {
	g := new(big.Int).GCD(nil, nil, a, b)
	r := new(big.Int).Mul(a, b)
	return r.Quo(r, g)
}

// Term optimizes sum calls in t and guards accumulators of enclosing loops
// against references.
func (p *pass) Term(t *ast.Term) (*ast.Term, error) {
	switch v := t.Value.(type) {
	case ast.Var:
		p.guard(v)
		return t, nil

	case *ast.BinOp:
		left, err := p.Term(v.Left)
		if err != nil {
			return nil, err
		}
		right, err := p.Term(v.Right)
		if err != nil {
			return nil, err
		}
		if left == v.Left && right == v.Right {
			return t, nil
		}
		return ast.BinOpTerm(v.Op, left, right).SetLocation(t.Location), nil

	case *ast.UnaryOp:
		operand, err := p.Term(v.Operand)
		if err != nil || operand == v.Operand {
			return t, err
		}
		return ast.UnaryOpTerm(v.Op, operand).SetLocation(t.Location), nil

	case *ast.Call:
		if comp, start, ok := sumCandidate(v); ok {
			return p.sumCall(t, v, comp, start)
		}
		return p.call(t, v)

	case *ast.List:
		elems, changed, err := p.terms(v.Elems)
		if err != nil || !changed {
			return t, err
		}
		return ast.ListTerm(elems...).SetLocation(t.Location), nil

	case *ast.Comprehension:
		return p.comprehension(t, v)
	}

	return t, nil
}

func (p *pass) call(t *ast.Term, c *ast.Call) (*ast.Term, error) {
	fn, err := p.Term(c.Func)
	if err != nil {
		return nil, err
	}
	args, changed, err := p.terms(c.Args)
	if err != nil {
		return nil, err
	}
	changed = changed || fn != c.Func

	kws := c.Keywords
	copied := false
	for i, kw := range c.Keywords {
		value, err := p.Term(kw.Value)
		if err != nil {
			return nil, err
		}
		if value == kw.Value {
			continue
		}
		if !copied {
			kws = append([]*ast.Keyword(nil), c.Keywords...)
			copied = true
		}
		kws[i] = &ast.Keyword{Name: kw.Name, Value: value}
		changed = true
	}

	if !changed {
		return t, nil
	}
	return ast.NewTerm(&ast.Call{Func: fn, Args: args, Keywords: kws}).SetLocation(t.Location), nil
}

func (p *pass) comprehension(t *ast.Term, c *ast.Comprehension) (*ast.Term, error) {
	changed := false
	gens := make([]*ast.Generator, len(c.Generators))
	for i, g := range c.Generators {
		iter, err := p.Term(g.Iter)
		if err != nil {
			return nil, err
		}
		target := p.storeTarget(g.Target)
		ifs, ifsChanged, err := p.terms(g.Ifs)
		if err != nil {
			return nil, err
		}
		if iter == g.Iter && !ifsChanged {
			gens[i] = g
			continue
		}
		gens[i] = &ast.Generator{Target: target, Iter: iter, Ifs: ifs}
		changed = true
	}
	elem, err := p.Term(c.Elem)
	if err != nil {
		return nil, err
	}
	if !changed && elem == c.Elem {
		return t, nil
	}
	return ast.ComprehensionTerm(c.Kind, elem, gens...).SetLocation(t.Location), nil
}

func (p *pass) terms(ts []*ast.Term) ([]*ast.Term, bool, error) {
	var out []*ast.Term
	for i, t := range ts {
		r, err := p.Term(t)
		if err != nil {
			return nil, false, err
		}
		if r != t && out == nil {
			out = make([]*ast.Term, i, len(ts))
			copy(out, ts[:i])
		}
		if out != nil {
			out = append(out, r)
		}
	}
	if out == nil {
		return ts, false, nil
	}
	return out, true, nil
}

// guard blocks every enclosing context accumulating into v. The single
// augmented assignment of a loop is the only permitted reference to its
// accumulator and never reaches guard.
func (p *pass) guard(v ast.Var) {
	for _, c := range p.stack {
		if c.acc == v && c.state != Blocked {
			c.block(fmt.Sprintf("accumulator %v is referenced inside its own loop", v))
			p.logger.Debug("Blocked %v context at %v: %v.", c.kind, c.location, c.reason)
		}
	}
}

// store records an assignment to v. The name is no longer known to hold a
// constant and loops accumulating into it are blocked.
func (p *pass) store(v ast.Var) {
	p.guard(v)
	delete(p.registry, v)
}

func (p *pass) storeTarget(t *ast.Term) *ast.Term {
	ast.WalkVars(t, func(v ast.Var) bool {
		p.store(v)
		return false
	})
	return t
}

func (p *pass) register(v ast.Var, value *big.Int) {
	p.logger.Debug("Registered %v = %v as a potential accumulator.", v, value)
	p.registry[v] = accumulator{value: value, block: p.block}
}

func (p *pass) record(c *loopContext, original, replacement string) {
	result := LoopResult{
		Location:    c.location,
		Kind:        c.kind,
		Status:      c.state,
		Reason:      c.reason,
		Original:    original,
		Replacement: replacement,
	}
	p.report.Loops = append(p.report.Loops, result)

	switch {
	case c.state == Resolved && c.kind == ForLoop:
		p.metrics.Counter(metrics.LoopsRewritten).Incr()
	case c.state == Resolved:
		p.metrics.Counter(metrics.SumsRewritten).Incr()
	case c.kind == ForLoop:
		p.metrics.Counter(metrics.LoopsBlocked).Incr()
	default:
		p.metrics.Counter(metrics.SumsBlocked).Incr()
	}

	if c.state == Resolved {
		p.logger.Debug("Rewrote %v ==> %v", original, replacement)
	} else {
		p.logger.WithFields(map[string]any{
			"location": c.location.String(),
			"kind":     c.kind.String(),
		}).Debug("Left %v context unchanged: %v.", c.kind, c.reason)
	}
	c.state = Closed
}

func reason(err error) string {
	var be *BlockedError
	if errors.As(err, &be) {
		return be.Reason
	}
	return err.Error()
}

func sameBody(a, b ast.Body) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
