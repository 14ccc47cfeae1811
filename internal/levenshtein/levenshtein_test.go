// Copyright 2025 The OPA Authors
// SPDX-License-Identifier: Apache-2.0

package levenshtein

import (
	"slices"
	"testing"
)

func TestClosestStrings(t *testing.T) {
	tests := []struct {
		note       string
		input      string
		candidates []string
		exp        []string
	}{
		{
			note:       "single match",
			input:      "rnage",
			candidates: []string{"range", "sum", "max"},
			exp:        []string{"range"},
		},
		{
			note:       "ties sorted",
			input:      "mix",
			candidates: []string{"sum", "max", "min"},
			exp:        []string{"max", "min"},
		},
		{
			note:       "nothing close",
			input:      "enumerate",
			candidates: []string{"range", "sum"},
			exp:        []string{},
		},
	}

	for _, tc := range tests {
		t.Run(tc.note, func(t *testing.T) {
			result := ClosestStrings(3, tc.input, slices.Values(tc.candidates))
			if !slices.Equal(result, tc.exp) {
				t.Fatalf("Expected %v but got %v", tc.exp, result)
			}
		})
	}
}

func TestSuggest(t *testing.T) {
	if s, ok := Suggest("rang", "range"); !ok || s != "range" {
		t.Fatalf("Expected range suggestion but got %q, %v", s, ok)
	}
	if _, ok := Suggest("range", "range"); ok {
		t.Fatal("Did not expect a suggestion for an exact match")
	}
	if _, ok := Suggest("zip", "range"); ok {
		t.Fatal("Did not expect a suggestion for a distant name")
	}
}
