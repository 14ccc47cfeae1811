// Copyright 2016 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package ast

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/pkg/errors"
)

// Location records a position in source code
type Location struct {
	Text []byte `json:"-"`              // The original text fragment from the source.
	File string `json:"file,omitempty"` // The name of the source file (which may be empty).
	Row  int    `json:"row"`            // The line in the source.
	Col  int    `json:"col"`            // The column in the row.
}

// NewLocation returns a new Location object.
func NewLocation(text []byte, file string, row int, col int) *Location {
	return &Location{Text: text, File: file, Row: row, Col: col}
}

// Errorf returns a new error value with a message formatted to include the location
// info (e.g., line, column, filename, etc.)
func (loc *Location) Errorf(f string, a ...any) error {
	return errors.New(loc.Format(f, a...))
}

// Wrapf returns a new error value that wraps an existing error with a message formatted
// to include the location info (e.g., line, column, filename, etc.)
func (loc *Location) Wrapf(err error, f string, a ...any) error {
	return errors.Wrap(err, loc.Format(f, a...))
}

// Format returns a formatted string prefixed with the location information.
func (loc *Location) Format(f string, a ...any) string {
	if len(loc.File) > 0 {
		f = fmt.Sprintf("%v:%v: %v", loc.File, loc.Row, f)
	} else {
		f = fmt.Sprintf("%v:%v: %v", loc.Row, loc.Col, f)
	}
	return fmt.Sprintf(f, a...)
}

func (loc *Location) String() string {
	if loc == nil {
		return "<unknown>"
	}
	if len(loc.File) > 0 {
		return fmt.Sprintf("%v:%v:%v", loc.File, loc.Row, loc.Col)
	}
	return fmt.Sprintf("%v:%v", loc.Row, loc.Col)
}

// Value declares the common interface for all Term values. Every kind of
// expression in the language is represented as a type that implements this
// interface:
//
// - Int, String
// - Var
// - BinOp, UnaryOp
// - Call, List, Comprehension
//
// Values are never modified after construction. Rewrites build new values.
type Value interface {
	// Equal returns true if this value equals the other value.
	Equal(other Value) bool

	// String returns the source representation of the value.
	String() string

	// AppendText appends the source representation of the value to buf.
	AppendText(buf []byte) ([]byte, error)
}

// Term is an expression together with its position in the source.
type Term struct {
	Value    Value     `json:"value"`
	Location *Location `json:"location,omitempty"`
}

// NewTerm returns a new Term object.
func NewTerm(v Value) *Term {
	return &Term{
		Value: v,
	}
}

// SetLocation updates the term's Location and returns the term itself.
func (term *Term) SetLocation(loc *Location) *Term {
	term.Location = loc
	return term
}

// Loc returns the Location of term.
func (term *Term) Loc() *Location {
	if term == nil {
		return nil
	}
	return term.Location
}

// Equal returns true if this term equals the other term. Equality is
// defined for each kind of term. Locations are ignored.
func (term *Term) Equal(other *Term) bool {
	if term == nil || other == nil {
		return term == other
	}
	return term.Value.Equal(other.Value)
}

func (term *Term) String() string {
	return term.Value.String()
}

// MarshalJSON returns the JSON encoding of the term. The encoding carries a
// "type" discriminator so that parse trees can be inspected from the
// command line.
func (term *Term) MarshalJSON() ([]byte, error) {
	d := map[string]any{
		"type":  TypeName(term.Value),
		"value": term.Value,
	}
	if term.Location != nil {
		d["location"] = term.Location
	}
	return json.Marshal(d)
}

// Vars returns a VarSet with the variables referenced by this term.
func (term *Term) Vars() VarSet {
	vs := VarSet{}
	WalkVars(term, func(v Var) bool {
		vs.Add(v)
		return false
	})
	return vs
}

// Int represents an arbitrary-precision integer literal.
type Int struct {
	v *big.Int
}

// IntTerm creates a new Term with an Int value.
func IntTerm(i int64) *Term {
	return &Term{Value: IntValue(big.NewInt(i))}
}

// BigIntTerm creates a new Term with an Int value. The argument is copied.
func BigIntTerm(i *big.Int) *Term {
	return &Term{Value: IntValue(i)}
}

// IntValue returns an Int holding a copy of i.
func IntValue(i *big.Int) Int {
	return Int{v: new(big.Int).Set(i)}
}

// BigInt returns a copy of the integer.
func (num Int) BigInt() *big.Int {
	if num.v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(num.v)
}

// Sign returns -1, 0 or +1 depending on the sign of the integer.
func (num Int) Sign() int {
	if num.v == nil {
		return 0
	}
	return num.v.Sign()
}

// Cmp compares num to an int64.
func (num Int) Cmp(i int64) int {
	return num.BigInt().Cmp(big.NewInt(i))
}

// Equal returns true if the other Value is an Int with the same value.
func (num Int) Equal(other Value) bool {
	switch other := other.(type) {
	case Int:
		return num.BigInt().Cmp(other.BigInt()) == 0
	default:
		return false
	}
}

func (num Int) String() string {
	return num.BigInt().String()
}

// MarshalJSON encodes the integer as a JSON number without loss of
// precision.
func (num Int) MarshalJSON() ([]byte, error) {
	return []byte(num.String()), nil
}

// String represents a string literal.
type String string

// StringTerm creates a new Term with a String value.
func StringTerm(s string) *Term {
	return &Term{Value: String(s)}
}

// Equal returns true if the other Value is a String and is equal.
func (str String) Equal(other Value) bool {
	switch other := other.(type) {
	case String:
		return str == other
	default:
		return false
	}
}

func (str String) String() string {
	return string(str.mustAppend(nil))
}

func (str String) mustAppend(buf []byte) []byte {
	buf, _ = str.AppendText(buf)
	return buf
}

// Var represents an identifier.
type Var string

// VarTerm creates a new Term with a Var value.
func VarTerm(v string) *Term {
	return &Term{Value: Var(v)}
}

// Equal returns true if the other Value is a Var and has the same name.
func (v Var) Equal(other Value) bool {
	switch other := other.(type) {
	case Var:
		return v == other
	default:
		return false
	}
}

func (v Var) String() string {
	return string(v)
}

// VarSet represents a set of variables.
type VarSet map[Var]struct{}

// NewVarSet returns a new VarSet containing the specified variables.
func NewVarSet(vs ...Var) VarSet {
	s := VarSet{}
	for _, v := range vs {
		s.Add(v)
	}
	return s
}

// Add updates the set to include the variable "v".
func (s VarSet) Add(v Var) {
	s[v] = struct{}{}
}

// Contains returns true if the set contains the variable "v".
func (s VarSet) Contains(v Var) bool {
	_, ok := s[v]
	return ok
}

// Sorted returns a sorted slice of vars from s.
func (s VarSet) Sorted() []Var {
	sorted := make([]Var, 0, len(s))
	for v := range s {
		sorted = append(sorted, v)
	}
	sortVars(sorted)
	return sorted
}

// Operator identifies the operation performed by a BinOp or UnaryOp.
type Operator int

// Binary and unary operators.
const (
	Add Operator = iota
	Sub
	Mul
	Div
	FloorDiv
	Mod
	Pow
	Eq
	NotEq
	Lt
	LtE
	Gt
	GtE
	And
	Or
	Neg
	Pos
	Not
)

var operatorNames = [...]string{
	Add:      "+",
	Sub:      "-",
	Mul:      "*",
	Div:      "/",
	FloorDiv: "//",
	Mod:      "%",
	Pow:      "**",
	Eq:       "==",
	NotEq:    "!=",
	Lt:       "<",
	LtE:      "<=",
	Gt:       ">",
	GtE:      ">=",
	And:      "and",
	Or:       "or",
	Neg:      "-",
	Pos:      "+",
	Not:      "not",
}

func (op Operator) String() string {
	if int(op) < len(operatorNames) {
		return operatorNames[op]
	}
	return fmt.Sprintf("op(%d)", int(op))
}

// MarshalJSON encodes the operator as its source symbol.
func (op Operator) MarshalJSON() ([]byte, error) {
	return json.Marshal(op.String())
}

// IsComparison returns true for the comparison operators.
func (op Operator) IsComparison() bool {
	return op >= Eq && op <= GtE
}

// BinOp represents a binary operation, including comparisons and the
// boolean connectives.
type BinOp struct {
	Op    Operator `json:"op"`
	Left  *Term    `json:"left"`
	Right *Term    `json:"right"`
}

// BinOpTerm creates a new Term with a BinOp value.
func BinOpTerm(op Operator, left, right *Term) *Term {
	return &Term{Value: &BinOp{Op: op, Left: left, Right: right}}
}

// Equal returns true if the other Value is a BinOp with equal operands.
func (b *BinOp) Equal(other Value) bool {
	o, ok := other.(*BinOp)
	return ok && b.Op == o.Op && b.Left.Equal(o.Left) && b.Right.Equal(o.Right)
}

func (b *BinOp) String() string {
	return mustString(b)
}

// UnaryOp represents a prefix operation: negation, unary plus or "not".
type UnaryOp struct {
	Op      Operator `json:"op"`
	Operand *Term    `json:"operand"`
}

// UnaryOpTerm creates a new Term with a UnaryOp value.
func UnaryOpTerm(op Operator, operand *Term) *Term {
	return &Term{Value: &UnaryOp{Op: op, Operand: operand}}
}

// Equal returns true if the other Value is a UnaryOp with an equal operand.
func (u *UnaryOp) Equal(other Value) bool {
	o, ok := other.(*UnaryOp)
	return ok && u.Op == o.Op && u.Operand.Equal(o.Operand)
}

func (u *UnaryOp) String() string {
	return mustString(u)
}

// Keyword is a named argument of a Call.
type Keyword struct {
	Name  Var   `json:"name"`
	Value *Term `json:"value"`
}

// Call represents a function call.
type Call struct {
	Func     *Term      `json:"func"`
	Args     []*Term    `json:"args,omitempty"`
	Keywords []*Keyword `json:"keywords,omitempty"`
}

// CallTerm creates a new Term with a Call value.
func CallTerm(fn *Term, args ...*Term) *Term {
	return &Term{Value: &Call{Func: fn, Args: args}}
}

// Name returns the called function's name if it is a plain identifier.
func (c *Call) Name() (Var, bool) {
	v, ok := c.Func.Value.(Var)
	return v, ok
}

// Keyword returns the value of the named keyword argument, or nil.
func (c *Call) Keyword(name Var) *Term {
	for _, kw := range c.Keywords {
		if kw.Name == name {
			return kw.Value
		}
	}
	return nil
}

// Equal returns true if the other Value is a Call with equal function,
// arguments and keywords.
func (c *Call) Equal(other Value) bool {
	o, ok := other.(*Call)
	if !ok || !c.Func.Equal(o.Func) || !termsEqual(c.Args, o.Args) || len(c.Keywords) != len(o.Keywords) {
		return false
	}
	for i := range c.Keywords {
		if c.Keywords[i].Name != o.Keywords[i].Name || !c.Keywords[i].Value.Equal(o.Keywords[i].Value) {
			return false
		}
	}
	return true
}

func (c *Call) String() string {
	return mustString(c)
}

// List represents a list display, e.g. [1, 2, 3].
type List struct {
	Elems []*Term `json:"elems"`
}

// ListTerm creates a new Term with a List value.
func ListTerm(elems ...*Term) *Term {
	return &Term{Value: &List{Elems: elems}}
}

// Equal returns true if the other Value is a List with equal elements.
func (l *List) Equal(other Value) bool {
	o, ok := other.(*List)
	return ok && termsEqual(l.Elems, o.Elems)
}

func (l *List) String() string {
	return mustString(l)
}

// ComprehensionKind distinguishes generator expressions from list
// comprehensions.
type ComprehensionKind int

// Comprehension kinds.
const (
	GeneratorExp ComprehensionKind = iota
	ListComp
)

func (k ComprehensionKind) String() string {
	if k == ListComp {
		return "listcomp"
	}
	return "genexp"
}

// MarshalJSON encodes the kind by name.
func (k ComprehensionKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// Generator is one "for target in iter [if cond]..." clause of a
// comprehension.
type Generator struct {
	Target *Term   `json:"target"`
	Iter   *Term   `json:"iter"`
	Ifs    []*Term `json:"ifs,omitempty"`
}

// Equal returns true if both generators bind the same target over equal
// iterables with equal conditions.
func (g *Generator) Equal(other *Generator) bool {
	return g.Target.Equal(other.Target) && g.Iter.Equal(other.Iter) && termsEqual(g.Ifs, other.Ifs)
}

// Comprehension represents a generator expression or a list comprehension.
type Comprehension struct {
	Kind       ComprehensionKind `json:"kind"`
	Elem       *Term             `json:"elem"`
	Generators []*Generator      `json:"generators"`
}

// ComprehensionTerm creates a new Term with a Comprehension value.
func ComprehensionTerm(kind ComprehensionKind, elem *Term, gens ...*Generator) *Term {
	return &Term{Value: &Comprehension{Kind: kind, Elem: elem, Generators: gens}}
}

// Equal returns true if the other Value is an equal Comprehension.
func (c *Comprehension) Equal(other Value) bool {
	o, ok := other.(*Comprehension)
	if !ok || c.Kind != o.Kind || !c.Elem.Equal(o.Elem) || len(c.Generators) != len(o.Generators) {
		return false
	}
	for i := range c.Generators {
		if !c.Generators[i].Equal(o.Generators[i]) {
			return false
		}
	}
	return true
}

func (c *Comprehension) String() string {
	return mustString(c)
}

func termsEqual(a, b []*Term) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func mustString(v Value) string {
	buf, err := v.AppendText(nil)
	if err != nil {
		panic(err)
	}
	return string(buf)
}
