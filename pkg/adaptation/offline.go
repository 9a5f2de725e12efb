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

package adaptation

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// RunOffline drives samples through the loop for up to cfg.MaxEpochs
// epochs, persisting the playbook in place across both samples and
// epochs. It stops early when an epoch commits zero ADDs and zero
// UPDATEs, or when cfg.ValidationMetric fails to improve for two
// consecutive epochs (spec §4.6).
func (l *Loop) RunOffline(ctx context.Context, cfg OfflineConfig, samples []Sample) (Summary, error) {
	if cfg.MaxEpochs < 1 {
		return Summary{}, fmt.Errorf("adaptation: MaxEpochs must be >= 1")
	}

	summary := newSummary()
	completed := 0
	var bestMetric float64
	haveMetric := false
	stalledEpochs := 0

	for epoch := 1; epoch <= cfg.MaxEpochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return summary, &Cancelled{CompletedSamples: completed}
		}

		results, err := l.runEpoch(ctx, cfg, samples)
		for _, r := range results {
			summary.record(r)
			completed++
		}
		if err != nil {
			return summary, err
		}

		adds, updates := 0, 0
		for _, r := range results {
			adds += len(r.Applied.AddedIDs)
			updates += len(r.Applied.UpdatedIDs)
		}
		if adds == 0 && updates == 0 {
			slog.Info("adaptation: epoch committed no changes, stopping early", "epoch", epoch)
			break
		}

		if cfg.ValidationMetric != nil {
			metric := cfg.ValidationMetric(epoch, l.store)
			if !haveMetric || metric > bestMetric {
				bestMetric = metric
				haveMetric = true
				stalledEpochs = 0
			} else {
				stalledEpochs++
			}
			if stalledEpochs >= 2 {
				slog.Info("adaptation: validation metric stalled, stopping early", "epoch", epoch)
				break
			}
		}
	}

	return summary, nil
}

// runEpoch runs one full pass over samples, sequentially if
// cfg.BatchSize <= 1 or in bounded-parallel batches otherwise.
func (l *Loop) runEpoch(ctx context.Context, cfg OfflineConfig, samples []Sample) ([]SampleResult, error) {
	if cfg.batchSize() <= 1 {
		results := make([]SampleResult, 0, len(samples))
		for i, sample := range samples {
			if err := ctx.Err(); err != nil {
				return results, &Cancelled{CompletedSamples: i}
			}
			results = append(results, l.runSample(ctx, sample))
		}
		return results, nil
	}
	return l.runEpochBatched(ctx, cfg.batchSize(), samples)
}

func (l *Loop) runEpochBatched(ctx context.Context, batchSize int, samples []Sample) ([]SampleResult, error) {
	results := make([]SampleResult, 0, len(samples))
	for start := 0; start < len(samples); start += batchSize {
		end := start + batchSize
		if end > len(samples) {
			end = len(samples)
		}
		if err := ctx.Err(); err != nil {
			return results, &Cancelled{CompletedSamples: start}
		}

		batchResults, err := l.runBatch(ctx, samples[start:end])
		results = append(results, batchResults...)
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

// runBatch runs a batch's Generator/Reflector work concurrently
// (bounded by len(batch), itself bounded by the caller's batch size)
// but commits each sample's Delta strictly in the order the batch was
// given — first-come-first-commit (spec §5) — regardless of which
// sample's LLM calls happen to finish first. A turnstile of per-slot
// channels enforces the ordering without serializing the concurrent
// Generate/Reflect work itself.
func (l *Loop) runBatch(ctx context.Context, batch []Sample) ([]SampleResult, error) {
	results := make([]SampleResult, len(batch))
	turn := make([]chan struct{}, len(batch)+1)
	for i := range turn {
		turn[i] = make(chan struct{}, 1)
	}
	turn[0] <- struct{}{}

	g, _ := errgroup.WithContext(ctx)
	for i, sample := range batch {
		i, sample := i, sample
		g.Go(func() error {
			res := l.runToReflection(ctx, sample)

			select {
			case <-turn[i]:
			case <-ctx.Done():
				return ctx.Err()
			}
			results[i] = l.commit(ctx, res)
			turn[i+1] <- struct{}{}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, &Cancelled{}
	}
	return results, nil
}
