// Copyright 2025 The ACE Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package tracing sets up OpenTelemetry spans (spec §A.2), mirroring the
// teacher's pkg/observability.InitGlobalTracer / GetTracer: Init installs
// a global TracerProvider (a no-op until called), and Tracer is a thin
// wrapper over otel.Tracer(name) so any package can start spans without
// importing this package's Config into its own constructors.
// pkg/adaptation opens a span around each Generator, Reflector and
// Curator call; LLM and embedding calls get no spans of their own.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	stdouttrace "go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Config configures Init. Mirrors the teacher's TracerConfig shape.
type Config struct {
	Enabled bool
	// Exporter selects "stdout" (human-readable, no collector required)
	// or "otlp" (gRPC to a collector at Endpoint).
	Exporter     string
	Endpoint     string
	ServiceName  string
	SamplingRate float64
}

// Shutdown flushes and stops whatever Init started.
type Shutdown func(context.Context) error

// Init installs the global TracerProvider per cfg. When cfg.Enabled is
// false it installs a no-op provider, so every Tracer(...).Start call
// anywhere in the process becomes a zero-cost no-op — this is how
// pkg/adaptation/loop.go can call Tracer unconditionally without any
// risk to its already-reviewed behavior when tracing was never
// configured.
func Init(ctx context.Context, cfg Config) (Shutdown, error) {
	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("tracing: failed to build resource: %w", err)
	}

	rate := cfg.SamplingRate
	if rate <= 0 {
		rate = 1
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(rate)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	// A MeterProvider is bootstrapped alongside the TracerProvider so
	// the OTel SDK's resource/shutdown plumbing is exercised the same
	// way for both signals, even though ace's own counters are served
	// by pkg/metrics' Prometheus registry rather than OTel metrics.
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithResource(res))
	otel.SetMeterProvider(mp)

	return func(shutdownCtx context.Context) error {
		if err := tp.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return mp.Shutdown(shutdownCtx)
	}, nil
}

func newExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case "", "stdout":
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("tracing: failed to create stdout exporter: %w", err)
		}
		return exp, nil
	case "otlp":
		exp, err := otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(cfg.Endpoint), otlptracegrpc.WithInsecure())
		if err != nil {
			return nil, fmt.Errorf("tracing: failed to create otlp exporter: %w", err)
		}
		return exp, nil
	default:
		return nil, fmt.Errorf("tracing: unknown exporter %q (valid: stdout, otlp)", cfg.Exporter)
	}
}

// Tracer returns a named tracer from the current global TracerProvider.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
