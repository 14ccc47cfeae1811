// Copyright 2017 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package metrics records timers, counters and histograms of optimizer runs.
package metrics

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	go_metrics "github.com/rcrowley/go-metrics"
)

// Well-known metric names.
const (
	OptimizeParse     = "optimize_parse"
	OptimizeRewrite   = "optimize_rewrite"
	OptimizeRender    = "optimize_render"
	OptimizeVerify    = "optimize_verify"
	LoopsRewritten    = "loops_rewritten"
	LoopsBlocked      = "loops_blocked"
	SumsRewritten     = "sums_rewritten"
	SumsBlocked       = "sums_blocked"
	NormalizedTerms   = "normalized_terms"
	SourceCacheHit    = "source_cache_hit"
	SourceCacheMiss   = "source_cache_miss"
	LoaderReadFiles   = "loader_read_files"
	EvalInterpretStep = "eval_interpret_step"
)

// Metrics is a named collection of timers, histograms and counters. All
// methods are safe for concurrent use.
type Metrics interface {
	Timer(name string) Timer
	Histogram(name string) Histogram
	Counter(name string) Counter
	// All returns the current values keyed by kind and name, e.g.
	// "counter_loops_rewritten" or "timer_optimize_parse_ns".
	All() map[string]any
	json.Marshaler
}

type metrics struct {
	mtx        sync.Mutex
	timers     map[string]Timer
	histograms map[string]Histogram
	counters   map[string]Counter
}

// New returns a new Metrics object.
func New() Metrics {
	return &metrics{
		timers:     map[string]Timer{},
		histograms: map[string]Histogram{},
		counters:   map[string]Counter{},
	}
}

// NoOp returns a Metrics implementation that records nothing.
func NoOp() Metrics {
	return noOpMetricsInstance
}

func (m *metrics) String() string {
	all := m.All()
	keys := slices.Sorted(maps.Keys(all))
	buf := make([]string, len(keys))
	for i, k := range keys {
		buf[i] = fmt.Sprintf("%v:%v", k, all[k])
	}
	return strings.Join(buf, " ")
}

func (m *metrics) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.All())
}

func (m *metrics) Timer(name string) Timer {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	t, ok := m.timers[name]
	if !ok {
		t = &timer{}
		m.timers[name] = t
	}
	return t
}

func (m *metrics) Histogram(name string) Histogram {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	h, ok := m.histograms[name]
	if !ok {
		h = newHistogram()
		m.histograms[name] = h
	}
	return h
}

func (m *metrics) Counter(name string) Counter {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	c, ok := m.counters[name]
	if !ok {
		c = &counter{}
		m.counters[name] = c
	}
	return c
}

func (m *metrics) All() map[string]any {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	result := make(map[string]any, len(m.timers)+len(m.histograms)+len(m.counters))
	for name, t := range m.timers {
		result["timer_"+name+"_ns"] = t.Value()
	}
	for name, h := range m.histograms {
		result["histogram_"+name] = h.Value()
	}
	for name, c := range m.counters {
		result["counter_"+name] = c.Value()
	}
	return result
}

// Timer accumulates elapsed time over Start/Stop pairs.
type Timer interface {
	Value() any
	Int64() int64
	Start()
	// Stop adds the nanoseconds since Start and returns them. Stopping a
	// timer that is not running adds nothing.
	Stop() int64
}

type timer struct {
	mtx     sync.Mutex
	started time.Time
	total   time.Duration
}

func (t *timer) Start() {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	t.started = time.Now()
}

func (t *timer) Stop() int64 {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	if t.started.IsZero() {
		return 0
	}
	d := time.Since(t.started)
	t.total += d
	t.started = time.Time{}
	return d.Nanoseconds()
}

func (t *timer) Value() any {
	return t.Int64()
}

func (t *timer) Int64() int64 {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	return t.total.Nanoseconds()
}

// Histogram summarizes a distribution of values.
type Histogram interface {
	Value() any
	Update(int64)
}

// histogramPercentiles are reported next to count, min, max and mean.
var histogramPercentiles = []float64{0.5, 0.9, 0.99}

type histogram struct {
	hist go_metrics.Histogram
}

func newHistogram() Histogram {
	return &histogram{go_metrics.NewHistogram(go_metrics.NewUniformSample(1024))}
}

func (h *histogram) Update(v int64) {
	h.hist.Update(v)
}

func (h *histogram) Value() any {
	snap := h.hist.Snapshot()
	ps := snap.Percentiles(histogramPercentiles)
	return map[string]any{
		"count": snap.Count(),
		"min":   snap.Min(),
		"max":   snap.Max(),
		"mean":  snap.Mean(),
		"p50":   ps[0],
		"p90":   ps[1],
		"p99":   ps[2],
	}
}

// Counter only grows.
type Counter interface {
	Value() any
	Int64() int64
	Incr()
	Add(n uint64)
}

type counter struct {
	n atomic.Uint64
}

func (c *counter) Incr()        { c.n.Add(1) }
func (c *counter) Add(n uint64) { c.n.Add(n) }
func (c *counter) Value() any   { return c.n.Load() }
func (c *counter) Int64() int64 { return int64(c.n.Load()) }

type noOpMetrics struct{}
type noOpTimer struct{}
type noOpHistogram struct{}
type noOpCounter struct{}

var (
	noOpMetricsInstance   = &noOpMetrics{}
	noOpTimerInstance     = &noOpTimer{}
	noOpHistogramInstance = &noOpHistogram{}
	noOpCounterInstance   = &noOpCounter{}
)

func (*noOpMetrics) Timer(string) Timer         { return noOpTimerInstance }
func (*noOpMetrics) Histogram(string) Histogram { return noOpHistogramInstance }
func (*noOpMetrics) Counter(string) Counter     { return noOpCounterInstance }
func (*noOpMetrics) All() map[string]any        { return nil }
func (*noOpMetrics) MarshalJSON() ([]byte, error) {
	return []byte("{}"), nil
}

func (*noOpTimer) Start()       {}
func (*noOpTimer) Stop() int64  { return 0 }
func (*noOpTimer) Value() any   { return 0 }
func (*noOpTimer) Int64() int64 { return 0 }

func (*noOpHistogram) Update(int64) {}
func (*noOpHistogram) Value() any   { return nil }

func (*noOpCounter) Incr()        {}
func (*noOpCounter) Add(uint64)   {}
func (*noOpCounter) Value() any   { return 0 }
func (*noOpCounter) Int64() int64 { return 0 }
