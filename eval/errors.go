// Copyright 2017 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package eval

import (
	"errors"
	"fmt"

	"github.com/sumfold/sumfold/ast"
)

// Error is the error type returned by the interpreter when evaluation
// fails.
type Error struct {
	Code     string        `json:"code"`
	Message  string        `json:"message"`
	Location *ast.Location `json:"location,omitempty"`
}

const (
	// InternalErr represents an unknown evaluation error.
	InternalErr string = "eval_internal_error"

	// TypeErr indicates evaluation stopped because an operator or builtin was
	// applied to a value of an inappropriate type.
	TypeErr string = "eval_type_error"

	// NameErr indicates a reference to an unbound identifier.
	NameErr string = "eval_name_error"

	// ZeroDivisionErr indicates a division or modulo by zero.
	ZeroDivisionErr string = "eval_zero_division_error"

	// BudgetErr indicates the program did not finish within the step budget.
	BudgetErr string = "eval_budget_error"

	// CancelErr indicates evaluation was cancelled.
	CancelErr string = "eval_cancel_error"
)

// IsError returns true if the err is an Error.
func IsError(err error) bool {
	var e *Error
	return errors.As(err, &e)
}

// IsCode returns true if err is an Error with the given code.
func IsCode(err error, code string) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

func (e *Error) Error() string {

	msg := fmt.Sprintf("%v: %v", e.Code, e.Message)

	if e.Location != nil {
		msg = e.Location.String() + ": " + msg
	}

	return msg
}

func newError(code string, loc *ast.Location, f string, a ...any) *Error {
	return &Error{
		Code:     code,
		Location: loc,
		Message:  fmt.Sprintf(f, a...),
	}
}

func typeErr(loc *ast.Location, f string, a ...any) error {
	return newError(TypeErr, loc, f, a...)
}

func nameErr(loc *ast.Location, name ast.Var) error {
	return newError(NameErr, loc, "name %v is not defined", name)
}

func zeroDivisionErr(loc *ast.Location) error {
	return newError(ZeroDivisionErr, loc, "integer division or modulo by zero")
}
