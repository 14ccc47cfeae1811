// Copyright 2016 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package ast

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Errors represents a series of errors encountered during parsing,
// optimizing, etc.
type Errors []*Error

func (e Errors) Error() string {

	if len(e) == 0 {
		return "no error(s)"
	}

	if len(e) == 1 {
		return fmt.Sprintf("1 error occurred: %v", e[0].Error())
	}

	s := make([]string, 0, len(e))
	for _, err := range e {
		s = append(s, err.Error())
	}

	return fmt.Sprintf("%d errors occurred:\n%s", len(e), strings.Join(s, "\n"))
}

// Sort sorts the error slice by location. If the locations are equal then the
// error message is compared.
func (e Errors) Sort() {
	sort.Slice(e, func(i, j int) bool {
		a := e[i]
		b := e[j]

		if cmp := compareLocations(a.Location, b.Location); cmp != 0 {
			return cmp < 0
		}

		return a.Error() < b.Error()
	})
}

func compareLocations(a, b *Location) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	case a.File != b.File:
		return strings.Compare(a.File, b.File)
	case a.Row != b.Row:
		return a.Row - b.Row
	default:
		return a.Col - b.Col
	}
}

const (
	// ParseErr indicates an unclassified parse error occurred.
	ParseErr = "sumfold_parse_error"

	// RangeErr indicates that a loop iterates over a two argument range whose
	// bounds are not both constant.
	RangeErr = "sumfold_range_error"
)

// IsError returns true if err is an AST error with code.
func IsError(code string, err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	var es Errors
	if errors.As(err, &es) {
		for _, e := range es {
			if e.Code == code {
				return true
			}
		}
	}
	return false
}

// Error represents a single error caught during parsing, optimizing, etc.
type Error struct {
	Code     string    `json:"code"`
	Message  string    `json:"message"`
	Location *Location `json:"location,omitempty"`
}

func (e *Error) Error() string {

	var prefix string

	if e.Location != nil {

		if len(e.Location.File) > 0 {
			prefix += e.Location.File + ":" + fmt.Sprint(e.Location.Row)
		} else {
			prefix += fmt.Sprint(e.Location.Row) + ":" + fmt.Sprint(e.Location.Col)
		}
	}

	msg := fmt.Sprintf("%v: %v", e.Code, e.Message)

	if len(prefix) > 0 {
		msg = prefix + ": " + msg
	}

	return msg
}

// NewError returns a new Error object.
func NewError(code string, loc *Location, f string, a ...any) *Error {
	return &Error{
		Code:     code,
		Location: loc,
		Message:  fmt.Sprintf(f, a...),
	}
}
