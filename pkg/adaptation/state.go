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
	"log/slog"

	"github.com/hungson175/ace/pkg/playbook"
	"github.com/hungson175/ace/pkg/trajectory"
)

// State is a sample's position in the per-sample state machine:
//
//	PENDING -> GENERATED -> REFLECTED -> CURATED -> DONE
//
// with SKIPPED reachable as a terminal state from any step.
type State string

const (
	StatePending   State = "PENDING"
	StateGenerated State = "GENERATED"
	StateReflected State = "REFLECTED"
	StateCurated   State = "CURATED"
	StateDone      State = "DONE"
	StateSkipped   State = "SKIPPED"
)

// SkipReason names why a sample never reached DONE. These are the
// bucket keys reported in a run Summary's SkippedByReason map.
type SkipReason string

const (
	SkipNone             SkipReason = ""
	SkipGeneratorFatal   SkipReason = "generator_fatal"
	SkipReflectorParse   SkipReason = "reflector_parse_error"
	SkipReflectorFatal   SkipReason = "reflector_fatal"
	SkipCuratorParse     SkipReason = "curator_parse_error"
	SkipCuratorFatal     SkipReason = "curator_fatal"
	SkipCollapseRejected SkipReason = "collapse_guard_rejected"
	SkipCancelled        SkipReason = "cancelled"
)

// SampleResult records the outcome of running one sample through the
// Generator -> (Environment) -> Reflector -> Curator pipeline.
type SampleResult struct {
	SampleID   string
	State      State
	SkipReason SkipReason
	Record     trajectory.Record
	Bundle     trajectory.InsightBundle
	Prediction string
	// Applied is only populated when the Curator actually committed a
	// Delta (State == StateDone); it drives offline mode's "an epoch
	// made no ADD/UPDATE" stop condition.
	Applied playbook.ApplyResult
	Err     error
}

func (r SampleResult) done() bool {
	return r.State == StateDone
}

// transition moves r to next, recording reason/err when next is
// SKIPPED, and logs the move (spec: "transitions are logged").
func (r *SampleResult) transition(next State, reason SkipReason, err error) {
	slog.Debug("adaptation: sample state transition",
		"sample", r.SampleID, "from", r.State, "to", next, "skip_reason", reason)
	r.State = next
	r.SkipReason = reason
	if err != nil {
		r.Err = err
	}
}
