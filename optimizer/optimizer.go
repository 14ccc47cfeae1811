// Copyright 2020 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package optimizer rewrites accumulation loops over counting ranges into
// closed form arithmetic.
//
// Two constructs are recognized:
//
//	S = 0
//	for i in range(100):
//	    S += i * i
//
// and sum(<expr> for i in range(...)). When the accumulated expression is a
// polynomial in the loop variable, the construct is replaced by an
// expression whose evaluation does not depend on the number of iterations:
//
//	S = 0
//	S = 328350
//
// Anything the optimizer cannot prove equivalent is left unchanged.
package optimizer

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sumfold/sumfold/ast"
	"github.com/sumfold/sumfold/logging"
	"github.com/sumfold/sumfold/metrics"
)

const tracerName = "github.com/sumfold/sumfold/optimizer"

// Optimizer rewrites modules. An Optimizer holds configuration only and may
// be used from multiple goroutines.
type Optimizer struct {
	logger      logging.Logger
	metrics     metrics.Metrics
	tracer      trace.Tracer
	maxExponent int
	bindLoopVar bool
}

// New returns an Optimizer with default settings.
func New() *Optimizer {
	return &Optimizer{
		logger:      logging.NewNoOpLogger(),
		metrics:     metrics.NoOp(),
		tracer:      otel.Tracer(tracerName),
		maxExponent: DefaultMaxExponent,
		bindLoopVar: true,
	}
}

// WithLogger sets the logger the rewrite trace is written to.
func (o *Optimizer) WithLogger(logger logging.Logger) *Optimizer {
	o.logger = logger
	return o
}

// WithMetrics sets the metrics timers and counters are recorded in.
func (o *Optimizer) WithMetrics(m metrics.Metrics) *Optimizer {
	o.metrics = m
	return o
}

// WithMaxExponent sets the largest constant exponent that is expanded.
func (o *Optimizer) WithMaxExponent(k int) *Optimizer {
	if k > 0 {
		o.maxExponent = k
	}
	return o
}

// WithLoopBindings controls whether a rewritten for loop is followed by an
// assignment of the last value of its loop variable when that variable is
// read elsewhere in the module. Without it every statement is replaced by
// exactly one statement.
func (o *Optimizer) WithLoopBindings(yes bool) *Optimizer {
	o.bindLoopVar = yes
	return o
}

// WithTracerProvider sets the provider of the tracer passes are traced with.
func (o *Optimizer) WithTracerProvider(tp trace.TracerProvider) *Optimizer {
	o.tracer = tp.Tracer(tracerName)
	return o
}

// Module optimizes m. The input module is not modified.
func (o *Optimizer) Module(m *ast.Module) (*ast.Module, *Report, error) {
	return o.ModuleContext(context.Background(), m)
}

// ModuleContext optimizes m. The pass stops early if ctx is cancelled.
func (o *Optimizer) ModuleContext(ctx context.Context, m *ast.Module) (*ast.Module, *Report, error) {
	ctx, span := o.tracer.Start(ctx, "optimize")
	defer span.End()

	o.metrics.Timer(metrics.OptimizeRewrite).Start()
	defer o.metrics.Timer(metrics.OptimizeRewrite).Stop()

	p := newPass(ctx, o.logger, o.metrics, o.maxExponent)
	if o.bindLoopVar {
		p.reads = reads(m)
	}
	body, err := p.Body(m.Body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, nil, err
	}

	span.SetAttributes(
		attribute.Int("sumfold.rewritten", p.report.Rewritten()),
		attribute.Int("sumfold.blocked", p.report.Blocked()),
	)

	result := m.Copy()
	result.Body = body
	return result, p.report, nil
}

// Source parses src and optimizes the resulting module.
func (o *Optimizer) Source(filename, src string) (*ast.Module, *Report, error) {
	return o.SourceContext(context.Background(), filename, src)
}

// SourceContext parses src and optimizes the resulting module.
func (o *Optimizer) SourceContext(ctx context.Context, filename, src string) (*ast.Module, *Report, error) {
	_, span := o.tracer.Start(ctx, "parse", trace.WithAttributes(attribute.String("sumfold.file", filename)))
	o.metrics.Timer(metrics.OptimizeParse).Start()
	m, err := ast.ParseModule(filename, src)
	o.metrics.Timer(metrics.OptimizeParse).Stop()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		return nil, nil, err
	}
	span.End()
	return o.ModuleContext(ctx, m)
}

// Optimize optimizes m with default settings.
func Optimize(m *ast.Module) (*ast.Module, error) {
	result, _, err := New().Module(m)
	return result, err
}

// OptimizeSource parses and optimizes src with default settings.
func OptimizeSource(src string) (*ast.Module, error) {
	result, _, err := New().Source("", src)
	return result, err
}
