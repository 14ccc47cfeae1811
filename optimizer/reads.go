// Copyright 2020 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package optimizer

import "github.com/sumfold/sumfold/ast"

// reads counts the names read under x. Assignment and loop targets are not
// reads. Reads of a for loop's target inside its body and reads of
// comprehension targets inside their comprehension see the binding of the
// loop itself and are not counted.
func reads(x any) map[ast.Var]int {
	counts := map[ast.Var]int{}
	var walk func(x any, local ast.VarSet)
	walk = func(x any, local ast.VarSet) {
		ast.Walk(ast.NewGenericVisitor(func(x any) bool {
			switch x := x.(type) {
			case ast.Var:
				if !local.Contains(x) {
					counts[x]++
				}
			case *ast.Assign:
				if _, ok := x.Target.Value.(ast.Var); ok {
					walk(x.Value, local)
					return true
				}
			case *ast.For:
				if v, ok := x.Target.Value.(ast.Var); ok {
					walk(x.Iter, local)
					walk(x.Body, with(local, v))
					walk(x.Else, local)
					return true
				}
			case *ast.Comprehension:
				inner := with(local)
				for _, g := range x.Generators {
					walk(g.Iter, inner)
					ast.WalkVars(g.Target, func(v ast.Var) bool {
						inner.Add(v)
						return false
					})
					for _, cond := range g.Ifs {
						walk(cond, inner)
					}
				}
				walk(x.Elem, inner)
				return true
			}
			return false
		}), x)
	}
	walk(x, nil)
	return counts
}

func with(s ast.VarSet, vs ...ast.Var) ast.VarSet {
	result := ast.NewVarSet(vs...)
	for v := range s {
		result.Add(v)
	}
	return result
}
