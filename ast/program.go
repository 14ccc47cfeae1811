// Copyright 2016 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package ast

import (
	"encoding/json"
)

// Module represents a parsed source file.
type Module struct {
	Body Body `json:"body"`
}

// Equal returns true if mod equals other. Locations are ignored.
func (mod *Module) Equal(other *Module) bool {
	if mod == nil || other == nil {
		return mod == other
	}
	return mod.Body.Equal(other.Body)
}

// Copy returns a shallow copy of mod. Statements are shared because they
// are never modified in place.
func (mod *Module) Copy() *Module {
	cpy := *mod
	cpy.Body = append(Body(nil), mod.Body...)
	return &cpy
}

func (mod *Module) String() string {
	buf, err := mod.AppendText(nil)
	if err != nil {
		panic(err)
	}
	return string(buf)
}

// Statement is implemented by every kind of statement:
//
// - Assign, AugAssign
// - For, While, If
// - FuncDef, Return
// - ExprStmt, Pass
type Statement interface {
	// Loc returns the location of the statement's first token.
	Loc() *Location

	// Equal returns true if the other statement is structurally equal.
	// Locations are ignored.
	Equal(other Statement) bool

	// String returns the source representation of the statement.
	String() string

	// AppendText appends the source representation of the statement to buf.
	AppendText(buf []byte) ([]byte, error)

	stmt()
}

// Body is a sequence of statements executed in order.
type Body []Statement

// Equal returns true if both bodies hold equal statements in the same order.
func (body Body) Equal(other Body) bool {
	if len(body) != len(other) {
		return false
	}
	for i := range body {
		if !body[i].Equal(other[i]) {
			return false
		}
	}
	return true
}

// MarshalJSON encodes every statement together with its type name.
func (body Body) MarshalJSON() ([]byte, error) {
	stmts := make([]map[string]any, 0, len(body))
	for _, s := range body {
		stmts = append(stmts, map[string]any{
			"type":  TypeName(s),
			"value": s,
		})
	}
	return json.Marshal(stmts)
}

func (body Body) String() string {
	buf, err := body.AppendText(nil)
	if err != nil {
		panic(err)
	}
	return string(buf)
}

// Assign represents "target = value".
type Assign struct {
	Target   *Term     `json:"target"`
	Value    *Term     `json:"value"`
	Location *Location `json:"location,omitempty"`
}

// AugAssign represents an augmented assignment such as "target += value".
type AugAssign struct {
	Target   *Term     `json:"target"`
	Op       Operator  `json:"op"`
	Value    *Term     `json:"value"`
	Location *Location `json:"location,omitempty"`
}

// For represents "for target in iter: body [else: else]".
type For struct {
	Target   *Term     `json:"target"`
	Iter     *Term     `json:"iter"`
	Body     Body      `json:"body"`
	Else     Body      `json:"else,omitempty"`
	Location *Location `json:"location,omitempty"`
}

// While represents "while cond: body [else: else]".
type While struct {
	Cond     *Term     `json:"cond"`
	Body     Body      `json:"body"`
	Else     Body      `json:"else,omitempty"`
	Location *Location `json:"location,omitempty"`
}

// If represents "if cond: body [else: else]". An elif chain is an If whose
// Else holds exactly one If.
type If struct {
	Cond     *Term     `json:"cond"`
	Body     Body      `json:"body"`
	Else     Body      `json:"else,omitempty"`
	Location *Location `json:"location,omitempty"`
}

// FuncDef represents "def name(params): body".
type FuncDef struct {
	Name     Var       `json:"name"`
	Params   []Var     `json:"params,omitempty"`
	Body     Body      `json:"body"`
	Location *Location `json:"location,omitempty"`
}

// Return represents "return [value]".
type Return struct {
	Value    *Term     `json:"value,omitempty"`
	Location *Location `json:"location,omitempty"`
}

// ExprStmt is an expression evaluated for its side effects.
type ExprStmt struct {
	Expr     *Term     `json:"expr"`
	Location *Location `json:"location,omitempty"`
}

// Pass represents "pass".
type Pass struct {
	Location *Location `json:"location,omitempty"`
}

func (*Assign) stmt()    {}
func (*AugAssign) stmt() {}
func (*For) stmt()       {}
func (*While) stmt()     {}
func (*If) stmt()        {}
func (*FuncDef) stmt()   {}
func (*Return) stmt()    {}
func (*ExprStmt) stmt()  {}
func (*Pass) stmt()      {}

func (s *Assign) Loc() *Location    { return s.Location }
func (s *AugAssign) Loc() *Location { return s.Location }
func (s *For) Loc() *Location       { return s.Location }
func (s *While) Loc() *Location     { return s.Location }
func (s *If) Loc() *Location        { return s.Location }
func (s *FuncDef) Loc() *Location   { return s.Location }
func (s *Return) Loc() *Location    { return s.Location }
func (s *ExprStmt) Loc() *Location  { return s.Location }
func (s *Pass) Loc() *Location      { return s.Location }

func (s *Assign) Equal(other Statement) bool {
	o, ok := other.(*Assign)
	return ok && s.Target.Equal(o.Target) && s.Value.Equal(o.Value)
}

func (s *AugAssign) Equal(other Statement) bool {
	o, ok := other.(*AugAssign)
	return ok && s.Op == o.Op && s.Target.Equal(o.Target) && s.Value.Equal(o.Value)
}

func (s *For) Equal(other Statement) bool {
	o, ok := other.(*For)
	return ok && s.Target.Equal(o.Target) && s.Iter.Equal(o.Iter) && s.Body.Equal(o.Body) && s.Else.Equal(o.Else)
}

func (s *While) Equal(other Statement) bool {
	o, ok := other.(*While)
	return ok && s.Cond.Equal(o.Cond) && s.Body.Equal(o.Body) && s.Else.Equal(o.Else)
}

func (s *If) Equal(other Statement) bool {
	o, ok := other.(*If)
	return ok && s.Cond.Equal(o.Cond) && s.Body.Equal(o.Body) && s.Else.Equal(o.Else)
}

func (s *FuncDef) Equal(other Statement) bool {
	o, ok := other.(*FuncDef)
	if !ok || s.Name != o.Name || len(s.Params) != len(o.Params) {
		return false
	}
	for i := range s.Params {
		if s.Params[i] != o.Params[i] {
			return false
		}
	}
	return s.Body.Equal(o.Body)
}

func (s *Return) Equal(other Statement) bool {
	o, ok := other.(*Return)
	return ok && s.Value.Equal(o.Value)
}

func (s *ExprStmt) Equal(other Statement) bool {
	o, ok := other.(*ExprStmt)
	return ok && s.Expr.Equal(o.Expr)
}

func (*Pass) Equal(other Statement) bool {
	_, ok := other.(*Pass)
	return ok
}

func (s *Assign) String() string    { return stmtString(s) }
func (s *AugAssign) String() string { return stmtString(s) }
func (s *For) String() string       { return stmtString(s) }
func (s *While) String() string     { return stmtString(s) }
func (s *If) String() string        { return stmtString(s) }
func (s *FuncDef) String() string   { return stmtString(s) }
func (s *Return) String() string    { return stmtString(s) }
func (s *ExprStmt) String() string  { return stmtString(s) }
func (s *Pass) String() string      { return stmtString(s) }

func stmtString(s Statement) string {
	buf, err := s.AppendText(nil)
	if err != nil {
		panic(err)
	}
	return string(buf)
}
