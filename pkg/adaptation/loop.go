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

// Package adaptation implements the Adaptation Loop (spec §4.6): the
// orchestrator that drives each sample through Generator -> (task
// environment) -> Reflector -> Curator, in offline (multi-epoch) or
// online (per-sample, predict-then-learn) mode.
//
// Nothing above this package observes an LLM error directly (spec §7):
// every failure is classified into a SkipReason, the sample is marked
// SKIPPED, and the loop continues. A run's only externally visible
// result is a Summary.
package adaptation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hungson175/ace/pkg/curator"
	"github.com/hungson175/ace/pkg/envplugin"
	"github.com/hungson175/ace/pkg/generator"
	"github.com/hungson175/ace/pkg/metrics"
	"github.com/hungson175/ace/pkg/playbook"
	"github.com/hungson175/ace/pkg/reflector"
	"github.com/hungson175/ace/pkg/tracing"
	"github.com/hungson175/ace/pkg/trajectory"
)

// Loop wires one Playbook Store to the three roles (and, optionally, a
// task environment) and drives samples through them.
type Loop struct {
	store *playbook.Store
	gen   *generator.Generator
	refl  *reflector.Reflector
	cur   *curator.Curator
	eval  envplugin.Evaluator // optional; nil means no environment feedback
	cfg   Config
}

// New creates a Loop. eval may be nil when samples carry no pass/fail
// environment signal (e.g. preference-only feedback folded into
// GroundTruth).
func New(store *playbook.Store, gen *generator.Generator, refl *reflector.Reflector, cur *curator.Curator, eval envplugin.Evaluator, cfg Config) *Loop {
	return &Loop{store: store, gen: gen, refl: refl, cur: cur, eval: eval, cfg: cfg}
}

// runToReflection drives Generate -> (Evaluate) -> Reflect for one
// sample, without touching the Playbook Store. Splitting this from
// commit lets offline batches run this half concurrently while still
// committing Deltas in arrival order (spec §5).
func (l *Loop) runToReflection(ctx context.Context, sample Sample) SampleResult {
	return l.reflectSample(ctx, l.generateSample(ctx, sample))
}

// generateSample drives Generate -> (Evaluate) for one sample and builds
// its Trajectory Record; online mode emits the prediction at this point.
func (l *Loop) generateSample(ctx context.Context, sample Sample) SampleResult {
	result := SampleResult{SampleID: sample.ID, State: StatePending}

	genResult, err := l.generate(ctx, sample)
	if err != nil {
		result.transition(StateSkipped, SkipGeneratorFatal, err)
		return result
	}
	result.transition(StateGenerated, SkipNone, nil)
	result.Prediction = genResult.Output

	rec := trajectory.Record{
		ID:              uuid.NewString(),
		Query:           sample.Query,
		Context:         sample.Context,
		GeneratorOutput: genResult.Output,
		CitedBulletIDs:  genResult.CitedBulletIDs,
		GroundTruth:     sample.GroundTruth,
		CreatedAt:       time.Now().Unix(),
	}
	l.attachFeedback(ctx, sample, genResult.Output, &rec)
	if rec.GroundTruth == "" && len(rec.EnvironmentFeedback.Diagnostics) == 0 {
		slog.Warn("adaptation: sample has no ground truth and no environment diagnostics", "sample", sample.ID)
	}
	result.Record = rec
	return result
}

// reflectSample runs the Reflector over a generated sample's record.
func (l *Loop) reflectSample(ctx context.Context, result SampleResult) SampleResult {
	if result.State != StateGenerated {
		return result // already SKIPPED by the Generator step
	}

	bundle, err := l.reflect(ctx, result.Record)
	if err != nil {
		result.transition(StateSkipped, reflectorSkipReason(err), err)
		return result
	}
	result.transition(StateReflected, SkipNone, nil)
	result.Bundle = bundle
	return result
}

// commit runs the Curator step and, on success, tags the cited bullets.
// Callers are responsible for calling commit in arrival order across a
// batch (spec §5: "committed in arrival order, not generation order").
func (l *Loop) commit(ctx context.Context, result SampleResult) SampleResult {
	if result.State != StateReflected {
		return result // already terminal (SKIPPED before reaching the Curator)
	}

	curResult, err := l.curate(ctx, result.Bundle)
	if err != nil {
		result.transition(StateSkipped, curatorSkipReason(err), err)
		return result
	}
	if curResult.Rejected != nil {
		result.transition(StateSkipped, SkipCollapseRejected, nil)
		return result
	}
	result.transition(StateCurated, SkipNone, nil)

	l.store.TagCited(result.Record.CitedBulletIDs, result.Bundle.BulletTags)
	result.Applied = curResult.Applied
	result.transition(StateDone, SkipNone, nil)
	return result
}

// runSample runs both halves sequentially; used by online mode and by
// offline mode when BatchSize is 1.
func (l *Loop) runSample(ctx context.Context, sample Sample) SampleResult {
	return l.commit(ctx, l.runToReflection(ctx, sample))
}

func (l *Loop) generate(ctx context.Context, sample Sample) (generator.Result, error) {
	ctx, span := tracing.Tracer("adaptation").Start(ctx, "generator.Generate", trace.WithAttributes(attribute.String("sample_id", sample.ID)))
	defer span.End()
	start := time.Now()

	callCtx, cancel := context.WithTimeout(ctx, l.cfg.callTimeout())
	defer cancel()
	res, err := l.gen.Generate(callCtx, sample.Query, sample.Context)
	metrics.Global().RecordLLMCall("generator", time.Since(start), err)
	if err != nil {
		wrapped := fmt.Errorf("adaptation: generator failed: %w", classifyLLMErr(err))
		span.RecordError(wrapped)
		span.SetStatus(codes.Error, wrapped.Error())
		return generator.Result{}, wrapped
	}
	span.SetStatus(codes.Ok, "")
	return res, nil
}

func (l *Loop) reflect(ctx context.Context, rec trajectory.Record) (trajectory.InsightBundle, error) {
	ctx, span := tracing.Tracer("adaptation").Start(ctx, "reflector.Reflect", trace.WithAttributes(attribute.String("record_id", rec.ID)))
	defer span.End()
	start := time.Now()

	cited := l.store.SnapshotForReflector(rec.CitedBulletIDs)
	callCtx, cancel := context.WithTimeout(ctx, l.cfg.callTimeout())
	defer cancel()
	bundle, err := l.refl.Reflect(callCtx, rec, cited)
	metrics.Global().RecordLLMCall("reflector", time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return trajectory.InsightBundle{}, err
	}
	span.SetStatus(codes.Ok, "")
	return bundle, nil
}

func (l *Loop) curate(ctx context.Context, bundle trajectory.InsightBundle) (curator.Result, error) {
	ctx, span := tracing.Tracer("adaptation").Start(ctx, "curator.Curate")
	defer span.End()
	start := time.Now()

	callCtx, cancel := context.WithTimeout(ctx, l.cfg.callTimeout())
	defer cancel()
	res, err := l.cur.Curate(callCtx, bundle)
	metrics.Global().RecordLLMCall("curator", time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return curator.Result{}, err
	}
	if res.Rejected != nil {
		metrics.Global().RecordCollapseRejected()
	} else {
		span.SetAttributes(
			attribute.Int("added", len(res.Applied.AddedIDs)),
			attribute.Int("updated", len(res.Applied.UpdatedIDs)),
			attribute.Int("deleted", len(res.Applied.DeletedIDs)),
		)
		metrics.Global().RecordDelta("add", len(res.Applied.AddedIDs))
		metrics.Global().RecordDelta("update", len(res.Applied.UpdatedIDs))
		metrics.Global().RecordDelta("delete", len(res.Applied.DeletedIDs))
	}
	span.SetStatus(codes.Ok, "")
	return res, nil
}

// attachFeedback calls the optional task environment plugin and folds
// its verdict into rec. A plugin error is logged and leaves rec's
// feedback at its zero value rather than failing the sample: the
// Reflector can still diagnose from the Generator's own output.
func (l *Loop) attachFeedback(ctx context.Context, sample Sample, output string, rec *trajectory.Record) {
	if l.eval == nil {
		return
	}
	resp, err := l.eval.Evaluate(envplugin.Request{
		Query:           sample.Query,
		GeneratorOutput: output,
		GroundTruth:     sample.GroundTruth,
	})
	if err != nil {
		slog.Warn("adaptation: environment evaluation failed", "sample", sample.ID, "err", err)
		return
	}
	diagnostics := map[string]any{}
	if resp.Diagnostics != "" {
		diagnostics["message"] = resp.Diagnostics
	}
	if resp.UnitTestReport != "" {
		diagnostics["unit_test_report"] = resp.UnitTestReport
	}
	rec.EnvironmentFeedback = trajectory.EnvironmentFeedback{Passed: resp.Passed, Diagnostics: diagnostics}
	if resp.GroundTruth != "" {
		rec.GroundTruth = resp.GroundTruth
	}
}

func reflectorSkipReason(err error) SkipReason {
	var parseErr *reflector.ParseError
	if errors.As(err, &parseErr) {
		return SkipReflectorParse
	}
	return SkipReflectorFatal
}

func curatorSkipReason(err error) SkipReason {
	var parseErr *curator.ParseError
	if errors.As(err, &parseErr) {
		return SkipCuratorParse
	}
	return SkipCuratorFatal
}

// classifyLLMErr wraps err as Transient when it looks like a deadline
// was exceeded (the one case the Adaptation Loop itself can observe
// directly; everything else httpclient already retried and gave up on,
// surfacing as a plain error we treat as Fatal).
func classifyLLMErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Transient{Err: err}
	}
	return &Fatal{Err: err}
}
