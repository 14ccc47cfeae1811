// Copyright 2019 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package prometheus

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/sumfold/sumfold/metrics"
	"github.com/sumfold/sumfold/optimizer"
)

const namespace = "sumfold"

// Provider wraps a metrics.Metrics provider with a Prometheus registry. The
// counters and timers of the inner provider are exported alongside the
// registry's own collectors.
type Provider struct {
	registry   *prometheus.Registry
	constructs *prometheus.CounterVec
	duration   prometheus.Histogram
	inner      metrics.Metrics
	logger     loggerFunc
}

type loggerFunc func(attrs map[string]any, f string, a ...any)

// New returns a new Provider object.
func New(inner metrics.Metrics, logger loggerFunc) *Provider {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collector())

	constructs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "constructs_total",
			Help:      "A count of loops and sum calls considered, by outcome.",
		},
		[]string{"kind", "status"},
	)
	registry.MustRegister(constructs)

	duration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "file_duration_seconds",
			Help:      "A histogram of the time spent optimizing one file.",
			Buckets: []float64{
				1e-5,
				1e-4,
				1e-3, // 1 millisecond
				0.01,
				0.1,
				1, // 1 second
			},
		},
	)
	registry.MustRegister(duration)

	registry.MustRegister(innerCollector{inner: inner})

	return &Provider{
		registry:   registry,
		constructs: constructs,
		duration:   duration,
		inner:      inner,
		logger:     logger,
	}
}

// Observe records the outcome of optimizing one file.
func (p *Provider) Observe(report *optimizer.Report, d time.Duration) {
	if report != nil {
		for _, l := range report.Loops {
			p.constructs.WithLabelValues(l.Kind.String(), l.Status.String()).Inc()
		}
	}
	p.duration.Observe(d.Seconds())
}

// All returns the union of the inner metric provider and the underlying
// prometheus registry.
func (p *Provider) All() map[string]any {

	all := p.inner.All()

	families, err := p.registry.Gather()
	if err != nil && p.logger != nil {
		p.logger(map[string]any{
			"err": err,
		}, "Failed to gather metrics from Prometheus registry.")
	}

	for _, f := range families {
		all[f.GetName()] = wrap{family: f}
	}

	return all
}

type wrap struct{ family proto.Message }

func (w wrap) MarshalJSON() ([]byte, error) {
	return protojson.Marshal(w.family)
}

// MarshalJSON returns a JSON representation of the unioned metrics.
func (p *Provider) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.All())
}

// Timer returns a named timer.
func (p *Provider) Timer(name string) metrics.Timer {
	return p.inner.Timer(name)
}

// Counter returns a named counter.
func (p *Provider) Counter(name string) metrics.Counter {
	return p.inner.Counter(name)
}

// Histogram returns a named histogram.
func (p *Provider) Histogram(name string) metrics.Histogram {
	return p.inner.Histogram(name)
}

// Gatherer returns the registry backing the provider.
func (p *Provider) Gatherer() prometheus.Gatherer {
	return p.registry
}

// WriteTextfile writes the gathered metrics to path in the text exposition
// format read by the node exporter's textfile collector.
func (p *Provider) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, p.registry)
}

// innerCollector exports the counters and timers of a metrics.Metrics
// instance. It is an unchecked collector since the set of names is only
// known when collecting.
type innerCollector struct {
	inner metrics.Metrics
}

func (innerCollector) Describe(chan<- *prometheus.Desc) {}

func (c innerCollector) Collect(ch chan<- prometheus.Metric) {
	for name, v := range c.inner.All() {
		var value float64
		var kind prometheus.ValueType
		switch v := v.(type) {
		case uint64:
			value, kind = float64(v), prometheus.CounterValue
		case int64:
			value, kind = float64(v), prometheus.GaugeValue
		default:
			continue
		}
		desc := prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", name),
			"Exported from "+strings.SplitN(name, "_", 2)[0]+" "+name+".",
			nil, nil,
		)
		ch <- prometheus.MustNewConstMetric(desc, kind, value)
	}
}
