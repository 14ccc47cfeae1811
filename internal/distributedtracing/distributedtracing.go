// Copyright 2021 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package distributedtracing sets up an OpenTelemetry tracer provider that
// exports the optimizer's spans over OTLP/gRPC.
package distributedtracing

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.7.0"
	"google.golang.org/grpc/credentials"

	"sigs.k8s.io/yaml"

	"github.com/sumfold/sumfold/logging"
)

// Config is the distributed_tracing section of the configuration file.
type Config struct {
	Type             string `json:"type,omitempty"`
	Address          string `json:"address,omitempty"`
	ServiceName      string `json:"service_name,omitempty"`
	SamplePercentage *int   `json:"sample_percentage,omitempty"`
	TLS              bool   `json:"tls,omitempty"`
}

// ParseConfig parses the raw section, which may be nil, and injects
// defaults.
func ParseConfig(raw []byte) (*Config, error) {
	var c Config
	if raw != nil {
		if err := yaml.Unmarshal(raw, &c); err != nil {
			return nil, err
		}
	}

	switch c.Type {
	case "", "grpc":
	default:
		return nil, fmt.Errorf("unknown distributed_tracing.type '%s', must be \"grpc\" or \"\" (unset)", c.Type)
	}

	if c.Address == "" {
		c.Address = "localhost:4317"
	}
	if c.ServiceName == "" {
		c.ServiceName = "sumfold"
	}
	if c.SamplePercentage == nil {
		p := 100
		c.SamplePercentage = &p
	}
	if p := *c.SamplePercentage; p < 0 || p > 100 {
		return nil, fmt.Errorf("distributed_tracing.sample_percentage %d is not between 0 and 100", p)
	}

	return &c, nil
}

// Enabled reports whether spans are exported.
func (c *Config) Enabled() bool {
	return c.Type == "grpc"
}

func (c *Config) transportCredentials() otlptracegrpc.Option {
	if !c.TLS {
		return otlptracegrpc.WithInsecure()
	}
	return otlptracegrpc.WithTLSCredentials(credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12}))
}

// Init returns an unstarted exporter and a tracer provider for the
// distributed_tracing section of the configuration. Both are nil when tracing
// is not enabled.
func Init(ctx context.Context, raw []byte) (*otlptrace.Exporter, *trace.TracerProvider, error) {
	c, err := ParseConfig(raw)
	if err != nil || !c.Enabled() {
		return nil, nil, err
	}

	exporter := otlptracegrpc.NewUnstarted(
		otlptracegrpc.WithEndpoint(c.Address),
		c.transportCredentials(),
	)

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceNameKey.String(c.ServiceName)))
	if err != nil {
		return nil, nil, err
	}

	ratio := float64(*c.SamplePercentage) / 100
	tp := trace.NewTracerProvider(
		trace.WithResource(res),
		trace.WithSampler(trace.ParentBased(trace.TraceIDRatioBased(ratio))),
		trace.WithSpanProcessor(trace.NewBatchSpanProcessor(exporter)),
	)

	return exporter, tp, nil
}

// SetupLogging routes OpenTelemetry's internal errors and logs to logger.
func SetupLogging(logger logging.Logger) {
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		logger.Warn("Distributed tracing: %v", err)
	}))
	otel.SetLogger(logr.New(&sink{logger: logger}))
}

// sink writes OpenTelemetry's logs to a logging.Logger. Key/value pairs are
// dropped.
type sink struct {
	logger logging.Logger
}

func (s *sink) Enabled(level int) bool {
	return int(s.logger.GetLevel()) >= level
}

func (*sink) Init(logr.RuntimeInfo) {}

func (s *sink) Info(_ int, msg string, _ ...any) {
	s.logger.Info(msg)
}

func (s *sink) Error(err error, msg string, _ ...any) {
	s.logger.WithFields(map[string]any{"err": err}).Error(msg)
}

func (s *sink) WithName(name string) logr.LogSink {
	return &sink{s.logger.WithFields(map[string]any{"name": name})}
}

func (s *sink) WithValues(...any) logr.LogSink {
	return s
}
