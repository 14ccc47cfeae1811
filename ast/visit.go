// Copyright 2016 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package ast

// Visitor defines the interface for iterating AST elements.
// The Visit function can return a Visitor w which will be
// used to visit the children of the AST element v. If the
// Visit function returns nil, the children will not be visited.
type Visitor interface {
	Visit(v any) (w Visitor)
}

// Walk iterates the AST by calling the Visit function on the Visitor
// v for x before recursing.
func Walk(v Visitor, x any) {
	w := v.Visit(x)
	if w == nil {
		return
	}
	switch x := x.(type) {
	case *Module:
		Walk(w, x.Body)
	case Body:
		for _, s := range x {
			Walk(w, s)
		}
	case *Assign:
		Walk(w, x.Target)
		Walk(w, x.Value)
	case *AugAssign:
		Walk(w, x.Target)
		Walk(w, x.Value)
	case *For:
		Walk(w, x.Target)
		Walk(w, x.Iter)
		Walk(w, x.Body)
		Walk(w, x.Else)
	case *While:
		Walk(w, x.Cond)
		Walk(w, x.Body)
		Walk(w, x.Else)
	case *If:
		Walk(w, x.Cond)
		Walk(w, x.Body)
		Walk(w, x.Else)
	case *FuncDef:
		Walk(w, x.Body)
	case *Return:
		if x.Value != nil {
			Walk(w, x.Value)
		}
	case *ExprStmt:
		Walk(w, x.Expr)
	case *Term:
		Walk(w, x.Value)
	case *BinOp:
		Walk(w, x.Left)
		Walk(w, x.Right)
	case *UnaryOp:
		Walk(w, x.Operand)
	case *Call:
		Walk(w, x.Func)
		for _, a := range x.Args {
			Walk(w, a)
		}
		for _, kw := range x.Keywords {
			Walk(w, kw.Value)
		}
	case *List:
		for _, e := range x.Elems {
			Walk(w, e)
		}
	case *Comprehension:
		for _, g := range x.Generators {
			Walk(w, g.Iter)
			Walk(w, g.Target)
			for _, cond := range g.Ifs {
				Walk(w, cond)
			}
		}
		Walk(w, x.Elem)
	}
}

// WalkVars calls the function f on all vars under x. If the function f
// returns true, AST nodes under the last node will not be visited.
func WalkVars(x any, f func(Var) bool) {
	vis := NewGenericVisitor(func(x any) bool {
		if v, ok := x.(Var); ok {
			return f(v)
		}
		return false
	})
	Walk(vis, x)
}

// WalkCalls calls the function f on all calls under x. If the function f
// returns true, AST nodes under the last node will not be visited.
func WalkCalls(x any, f func(*Call) bool) {
	vis := NewGenericVisitor(func(x any) bool {
		if c, ok := x.(*Call); ok {
			return f(c)
		}
		return false
	})
	Walk(vis, x)
}

// WalkStatements calls the function f on all statements under x. If the
// function f returns true, AST nodes under the last node will not be visited.
func WalkStatements(x any, f func(Statement) bool) {
	vis := NewGenericVisitor(func(x any) bool {
		if s, ok := x.(Statement); ok {
			return f(s)
		}
		return false
	})
	Walk(vis, x)
}

// GenericVisitor implements the Visitor interface to provide
// a utility to walk over AST nodes using a closure. If the closure
// returns true, the visitor will not walk over AST nodes under x.
type GenericVisitor struct {
	f func(x any) bool
}

// NewGenericVisitor returns a new GenericVisitor that will invoke the function
// f on AST nodes.
func NewGenericVisitor(f func(x any) bool) *GenericVisitor {
	return &GenericVisitor{f}
}

// Visit calls the function f on the GenericVisitor.
func (vis *GenericVisitor) Visit(x any) Visitor {
	if vis.f(x) {
		return nil
	}
	return vis
}
