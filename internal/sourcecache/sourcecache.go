// Copyright 2022 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package sourcecache memoizes per-source results keyed by a content hash.
package sourcecache

import (
	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/sumfold/sumfold/metrics"
)

// DefaultSize is the number of entries kept when no size is given.
const DefaultSize = 256

// Cache is a fixed size LRU cache. It is safe for concurrent use.
type Cache[V any] struct {
	entries *lru.Cache[uint64, V]
	metrics metrics.Metrics
}

// New returns a cache holding at most size entries.
func New[V any](size int) (*Cache[V], error) {
	if size <= 0 {
		size = DefaultSize
	}
	entries, err := lru.New[uint64, V](size)
	if err != nil {
		return nil, err
	}
	return &Cache[V]{entries: entries, metrics: metrics.NoOp()}, nil
}

// WithMetrics sets the metrics hits and misses are counted in.
func (c *Cache[V]) WithMetrics(m metrics.Metrics) *Cache[V] {
	c.metrics = m
	return c
}

// Key hashes parts into a cache key. Parts are separated so that moving
// bytes between adjacent parts changes the key.
func Key(parts ...[]byte) uint64 {
	d := xxhash.New()
	for _, p := range parts {
		_, _ = d.Write(p)
		_, _ = d.Write([]byte{0})
	}
	return d.Sum64()
}

// Get returns the value stored under key.
func (c *Cache[V]) Get(key uint64) (V, bool) {
	v, ok := c.entries.Get(key)
	if ok {
		c.metrics.Counter(metrics.SourceCacheHit).Incr()
	} else {
		c.metrics.Counter(metrics.SourceCacheMiss).Incr()
	}
	return v, ok
}

// Add stores v under key, evicting the least recently used entry if the
// cache is full.
func (c *Cache[V]) Add(key uint64, v V) {
	c.entries.Add(key, v)
}

// Len returns the number of cached entries.
func (c *Cache[V]) Len() int {
	return c.entries.Len()
}
