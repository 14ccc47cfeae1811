// Copyright 2018 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package ast

import (
	"fmt"
	"io"
	"strings"
)

// Pretty writes a pretty representation of the AST rooted at x to w.
//
// This function is intended for debug purposes when inspecting ASTs.
func Pretty(w io.Writer, x any) {
	Walk(&prettyPrinter{w: w}, x)
}

type prettyPrinter struct {
	depth int
	w     io.Writer
}

func (pp *prettyPrinter) Visit(x any) Visitor {
	switch x := x.(type) {
	case *Term:
		return pp
	case Body:
		if len(x) == 0 {
			return nil
		}
		pp.writeIndent("body")
	case *Module:
		pp.writeIndent("module")
	case *AugAssign:
		pp.writeIndent("augassign %v=", x.Op)
	case *FuncDef:
		params := make([]string, len(x.Params))
		for i := range x.Params {
			params[i] = string(x.Params[i])
		}
		pp.writeIndent("def %v(%v)", x.Name, strings.Join(params, ", "))
	case *BinOp:
		pp.writeIndent("binop %v", x.Op)
	case *UnaryOp:
		pp.writeIndent("unaryop %v", x.Op)
	case *Comprehension:
		pp.writeIndent("%v", x.Kind)
	case Int, String, Var:
		pp.writeIndent("%v", x)
	default:
		pp.writeIndent("%v", TypeName(x))
	}
	return &prettyPrinter{depth: pp.depth + 1, w: pp.w}
}

func (pp *prettyPrinter) writeIndent(f string, a ...any) {
	pad := strings.Repeat(" ", pp.depth)
	fmt.Fprintf(pp.w, pad+f+"\n", a...)
}
