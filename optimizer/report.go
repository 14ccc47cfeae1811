// Copyright 2020 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package optimizer

import (
	"github.com/sumfold/sumfold/ast"
)

// LoopResult describes the outcome for one accumulation construct.
type LoopResult struct {
	Location    *ast.Location `json:"location,omitempty"`
	Kind        Kind          `json:"kind"`
	Status      State         `json:"status"`
	Reason      string        `json:"reason,omitempty"`
	Original    string        `json:"original"`
	Replacement string        `json:"replacement,omitempty"`
}

// Report lists the constructs an optimization run considered, in the order
// their traversal completed.
type Report struct {
	Loops []LoopResult `json:"loops"`
}

// Rewritten returns the number of constructs that were replaced.
func (r *Report) Rewritten() int {
	return r.count(Resolved)
}

// Blocked returns the number of constructs that were left unchanged.
func (r *Report) Blocked() int {
	return r.count(Blocked)
}

func (r *Report) count(s State) int {
	if r == nil {
		return 0
	}
	n := 0
	for _, l := range r.Loops {
		if l.Status == s {
			n++
		}
	}
	return n
}

// Merge appends the results of other to r.
func (r *Report) Merge(other *Report) {
	if other != nil {
		r.Loops = append(r.Loops, other.Loops...)
	}
}
