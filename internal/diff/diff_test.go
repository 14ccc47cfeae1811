// Copyright 2020 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package diff

import (
	"testing"
)

func TestUnified(t *testing.T) {

	tests := []struct {
		note string
		a, b string
		exp  string
	}{
		{
			note: "equal",
			a:    "S = 0\n",
			b:    "S = 0\n",
			exp:  "",
		},
		{
			note: "rewritten loop",
			a:    "S = 0\nfor i in range(10):\n    S += i\n",
			b:    "S = 0\nS = 45\n",
			exp: `--- a.py
+++ a.py
@@ -1,3 +1,2 @@
 S = 0
-for i in range(10):
-    S += i
+S = 45
`,
		},
		{
			note: "separate hunks",
			a:    "a\nb\nc\nd\ne\nf\ng\nh\ni\nj\n",
			b:    "A\nb\nc\nd\ne\nf\ng\nh\ni\nJ\n",
			exp: `--- a.py
+++ a.py
@@ -1,4 +1,4 @@
-a
+A
 b
 c
 d
@@ -7,4 +7,4 @@
 g
 h
 i
-j
+J
`,
		},
		{
			note: "missing newline",
			a:    "x = 1",
			b:    "x = 2",
			exp: `--- a.py
+++ a.py
@@ -1 +1 @@
-x = 1
\ No newline at end of file
+x = 2
\ No newline at end of file
`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.note, func(t *testing.T) {
			result := Unified("a.py", "a.py", []byte(tc.a), []byte(tc.b))
			if string(result) != tc.exp {
				t.Fatalf("Expected:\n\n%v\n\nGot:\n\n%v", tc.exp, string(result))
			}
		})
	}
}

func TestUnifiedContext(t *testing.T) {
	result := UnifiedContext("old", "new", []byte("a\nb\nc\n"), []byte("a\nB\nc\n"), 0)
	exp := "--- old\n+++ new\n@@ -2 +2 @@\n-b\n+B\n"
	if string(result) != exp {
		t.Fatalf("Expected %q but got %q", exp, result)
	}
}
