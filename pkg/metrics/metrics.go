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

// Package metrics provides Prometheus instrumentation for the
// Adaptation Loop's run-summary counters (spec §A.2): sample outcomes
// by SkipReason, Delta operation counts, collapse-guard rejections, and
// per-role LLM call counts/durations. Mirrors the teacher's
// pkg/observability.Metrics: one struct of CounterVec/HistogramVec
// fields, grouped by concern, registered against a private registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every counter/histogram the Adaptation Loop reports.
// All Record* methods are nil-receiver safe so a Loop wired against
// Global() before metrics are initialized simply records nothing.
type Metrics struct {
	registry *prometheus.Registry

	samplesTotal   *prometheus.CounterVec
	deltaOps       *prometheus.CounterVec
	collapseReject prometheus.Counter

	llmCalls    *prometheus.CounterVec
	llmDuration *prometheus.HistogramVec
	llmErrors   *prometheus.CounterVec
}

// New constructs a Metrics instance under namespace ns (e.g. "ace").
func New(ns string) *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.samplesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "adaptation", Name: "samples_total",
		Help: "Total samples processed by the Adaptation Loop, labeled by terminal outcome.",
	}, []string{"outcome"})

	m.deltaOps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "adaptation", Name: "delta_operations_total",
		Help: "Total playbook Delta operations committed by the Curator.",
	}, []string{"op"})

	m.collapseReject = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "adaptation", Name: "collapse_guard_rejections_total",
		Help: "Total Deltas rejected by the Curator's no-regeneration/collapse guard.",
	})

	m.llmCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "llm", Name: "calls_total",
		Help: "Total LLM calls made by an Adaptation Loop role.",
	}, []string{"role"})

	m.llmDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns, Subsystem: "llm", Name: "call_duration_seconds",
		Help:    "LLM call duration in seconds, by role.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"role"})

	m.llmErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "llm", Name: "errors_total",
		Help: "Total LLM call errors, by role.",
	}, []string{"role"})

	m.registry.MustRegister(m.samplesTotal, m.deltaOps, m.collapseReject, m.llmCalls, m.llmDuration, m.llmErrors)
	return m
}

// RecordSample increments the sample counter for outcome (e.g. "done",
// or a SkipReason string).
func (m *Metrics) RecordSample(outcome string) {
	if m == nil {
		return
	}
	m.samplesTotal.WithLabelValues(outcome).Inc()
}

// RecordDelta adds n to op's operation counter ("add", "update", or
// "delete").
func (m *Metrics) RecordDelta(op string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.deltaOps.WithLabelValues(op).Add(float64(n))
}

// RecordCollapseRejected increments the collapse-guard rejection counter.
func (m *Metrics) RecordCollapseRejected() {
	if m == nil {
		return
	}
	m.collapseReject.Inc()
}

// RecordLLMCall records one LLM call's duration and, if err != nil, an
// error for role ("generator", "reflector", or "curator").
func (m *Metrics) RecordLLMCall(role string, dur time.Duration, err error) {
	if m == nil {
		return
	}
	m.llmCalls.WithLabelValues(role).Inc()
	m.llmDuration.WithLabelValues(role).Observe(dur.Seconds())
	if err != nil {
		m.llmErrors.WithLabelValues(role).Inc()
	}
}

// Handler serves the registry in the Prometheus exposition format. A
// nil Metrics serves 503, matching the teacher's disabled-metrics
// fallback.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}
