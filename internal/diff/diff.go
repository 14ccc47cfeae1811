// Copyright 2020 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package diff renders line based unified diffs.
package diff

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DefaultContext is the number of unchanged lines shown around a change.
const DefaultContext = 3

type line struct {
	op   byte
	text string
	a, b int
}

// Unified returns the unified diff turning a into b, or nil if they are
// equal.
func Unified(oldName, newName string, a, b []byte) []byte {
	return UnifiedContext(oldName, newName, a, b, DefaultContext)
}

// UnifiedContext is like Unified with n lines of context.
func UnifiedContext(oldName, newName string, a, b []byte, n int) []byte {
	if bytes.Equal(a, b) {
		return nil
	}

	lines := lineDiff(string(a), string(b))

	var changes []int
	for i := range lines {
		if lines[i].op != ' ' {
			changes = append(changes, i)
		}
	}
	if len(changes) == 0 {
		return nil
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "--- %v\n+++ %v\n", oldName, newName)

	first := changes[0]
	for i := 1; i <= len(changes); i++ {
		if i < len(changes) && changes[i]-changes[i-1]-1 <= 2*n {
			continue
		}
		last := changes[i-1]
		writeHunk(&buf, lines[max(first-n, 0):min(last+n+1, len(lines))])
		if i < len(changes) {
			first = changes[i]
		}
	}

	return buf.Bytes()
}

func lineDiff(a, b string) []line {
	dmp := diffmatchpatch.New()
	ca, cb, index := dmp.DiffLinesToChars(a, b)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(ca, cb, false), index)

	var out []line
	ai, bi := 1, 1
	for _, d := range diffs {
		var op byte
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			op = ' '
		case diffmatchpatch.DiffDelete:
			op = '-'
		default:
			op = '+'
		}
		for _, text := range splitLines(d.Text) {
			out = append(out, line{op: op, text: text, a: ai, b: bi})
			if op != '+' {
				ai++
			}
			if op != '-' {
				bi++
			}
		}
	}
	return out
}

func splitLines(s string) []string {
	parts := strings.SplitAfter(s, "\n")
	if parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}

func writeHunk(buf *bytes.Buffer, lines []line) {
	var na, nb int
	for _, l := range lines {
		if l.op != '+' {
			na++
		}
		if l.op != '-' {
			nb++
		}
	}

	fmt.Fprintf(buf, "@@ -%v +%v @@\n", hunkRange(lines[0].a, na), hunkRange(lines[0].b, nb))
	for _, l := range lines {
		buf.WriteByte(l.op)
		buf.WriteString(l.text)
		if !strings.HasSuffix(l.text, "\n") {
			buf.WriteString("\n\\ No newline at end of file\n")
		}
	}
}

func hunkRange(start, count int) string {
	switch count {
	case 0:
		return fmt.Sprintf("%d,0", start-1)
	case 1:
		return fmt.Sprint(start)
	}
	return fmt.Sprintf("%d,%d", start, count)
}
