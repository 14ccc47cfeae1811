// Copyright 2022 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package sourcecache

import (
	"testing"

	"github.com/sumfold/sumfold/metrics"
)

func TestCache(t *testing.T) {
	m := metrics.New()
	c, err := New[string](2)
	if err != nil {
		t.Fatal(err)
	}
	c.WithMetrics(m)

	a := Key([]byte("S = 0\n"))
	b := Key([]byte("S = 1\n"))
	d := Key([]byte("S = 2\n"))

	if _, ok := c.Get(a); ok {
		t.Fatal("Expected miss on empty cache")
	}

	c.Add(a, "A")
	c.Add(b, "B")

	if v, ok := c.Get(a); !ok || v != "A" {
		t.Fatalf("Expected hit with A but got %v (%v)", v, ok)
	}

	// b is now the least recently used entry.
	c.Add(d, "D")

	if _, ok := c.Get(b); ok {
		t.Fatal("Expected b to be evicted")
	}
	if c.Len() != 2 {
		t.Fatalf("Expected 2 entries but got %d", c.Len())
	}

	if hits := m.Counter(metrics.SourceCacheHit).Int64(); hits != 1 {
		t.Fatalf("Expected 1 hit but got %d", hits)
	}
	if misses := m.Counter(metrics.SourceCacheMiss).Int64(); misses != 2 {
		t.Fatalf("Expected 2 misses but got %d", misses)
	}
}

func TestKey(t *testing.T) {
	if Key([]byte("ab"), []byte("c")) == Key([]byte("a"), []byte("bc")) {
		t.Fatal("Expected part boundaries to change the key")
	}
	if Key([]byte("x")) != Key([]byte("x")) {
		t.Fatal("Expected key to be deterministic")
	}
}

func TestDefaultSize(t *testing.T) {
	c, err := New[int](0)
	if err != nil {
		t.Fatal(err)
	}
	for i := range DefaultSize + 10 {
		c.Add(uint64(i), i)
	}
	if c.Len() != DefaultSize {
		t.Fatalf("Expected %d entries but got %d", DefaultSize, c.Len())
	}
}
