// Copyright 2016 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package ast

import (
	"reflect"
	"sort"
	"strings"
)

// TypeName returns a human readable name for the AST element type.
func TypeName(x any) string {
	t := reflect.TypeOf(x)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return strings.ToLower(t.Name())
}

// The type names provide consistent strings for types in error messages.
const (
	IntTypeName           = "int"
	StringTypeName        = "string"
	VarTypeName           = "var"
	BinOpTypeName         = "binop"
	UnaryOpTypeName       = "unaryop"
	CallTypeName          = "call"
	ListTypeName          = "list"
	ComprehensionTypeName = "comprehension"
)

func sortVars(vs []Var) {
	sort.Slice(vs, func(i, j int) bool {
		return vs[i] < vs[j]
	})
}
