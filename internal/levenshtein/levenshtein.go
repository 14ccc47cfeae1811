// Copyright 2025 The OPA Authors
// SPDX-License-Identifier: Apache-2.0

// Package levenshtein suggests known names close to a misspelled one.
package levenshtein

import (
	"iter"
	"slices"

	"github.com/agnivade/levenshtein"
)

// ClosestStrings returns the candidates with the smallest edit distance to a
// that is also below minDistance. Ties are returned in sorted order.
func ClosestStrings(minDistance int, a string, candidates iter.Seq[string]) []string {
	closestStrings := []string{}
	for c := range candidates {
		levDist := levenshtein.ComputeDistance(a, c)
		switch {
		case levDist < minDistance:
			closestStrings = []string{c}
			minDistance = levDist
		case levDist == minDistance:
			closestStrings = append(closestStrings, c)
		default:
			continue
		}
	}
	slices.Sort(closestStrings)
	return closestStrings
}

// Suggest returns the first of the closest known names that is at most two
// edits away from name. Exact matches are not suggestions.
func Suggest(name string, known ...string) (string, bool) {
	if slices.Contains(known, name) {
		return "", false
	}
	closest := ClosestStrings(3, name, slices.Values(known))
	if len(closest) == 0 {
		return "", false
	}
	return closest[0], true
}
