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

import "context"

// Predict reports one sample's emitted prediction, matched to it by
// SampleID. Online mode hands these out as soon as each sample is
// generated, strictly before that sample's Reflector/Curator step runs.
type Predict struct {
	SampleID   string
	Prediction string
}

// RunOnline drives samples through the loop in arrival order, one at a
// time: for each sample it predicts with the playbook as it stands,
// emits that prediction via emit (if non-nil), and only then reflects
// and curates so later samples benefit (spec §4.6: "the test prediction
// is never retroactively changed").
//
// Cancellation is only honored at a sample boundary (spec §5): a sample
// already in flight always finishes its full Generate/Reflect/Curate
// sequence before RunOnline checks ctx again.
func (l *Loop) RunOnline(ctx context.Context, samples []Sample, emit func(Predict)) (Summary, error) {
	summary := newSummary()

	for i, sample := range samples {
		if err := ctx.Err(); err != nil {
			return summary, &Cancelled{CompletedSamples: i}
		}

		result := l.generateSample(ctx, sample)
		if emit != nil {
			emit(Predict{SampleID: sample.ID, Prediction: result.Prediction})
		}
		result = l.commit(ctx, l.reflectSample(ctx, result))
		summary.record(result)
	}

	return summary, nil
}
