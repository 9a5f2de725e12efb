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

// Package trajectory defines the Trajectory Record and Insight Bundle
// value types (spec §3): the Adaptation Loop's record of one
// (query, generation, feedback) triple, and the Reflector's structured
// diagnosis of it. Both are owned by the Adaptation Loop and discarded
// after curation unless persisted via pkg/trajectorystore.
package trajectory

import "github.com/hungson175/ace/pkg/bullet"

// EnvironmentFeedback is the pass/fail signal and structured diagnostics
// returned by the task environment after a Generator run.
type EnvironmentFeedback struct {
	Passed      bool           `json:"passed"`
	Diagnostics map[string]any `json:"diagnostics,omitempty"`
}

// Record is one (query, generation) Trajectory (spec §3).
type Record struct {
	// ID identifies this trajectory for replay/persistence; assigned by
	// the Adaptation Loop, not by any component described in the spec.
	ID string `json:"id"`

	Query           string   `json:"query"`
	Context         any      `json:"context,omitempty"`
	GeneratorOutput string   `json:"generator_output"`
	CitedBulletIDs  []string `json:"cited_bullet_ids"`

	EnvironmentFeedback EnvironmentFeedback `json:"environment_feedback"`
	GroundTruth         string              `json:"ground_truth,omitempty"`

	// CreatedAt is a logical (monotonic) timestamp, consistent with
	// pkg/bullet's CreatedAt/UpdatedAt fields.
	CreatedAt int64 `json:"created_at"`
}

// InsightBundle is the Reflector's structured diagnosis of a Trajectory
// (spec §3, §4.3).
type InsightBundle struct {
	Reasoning           string              `json:"reasoning"`
	ErrorIdentification string              `json:"error_identification"`
	RootCauseAnalysis   string              `json:"root_cause_analysis"`
	CorrectApproach     string              `json:"correct_approach"`
	KeyInsight          string              `json:"key_insight"`
	BulletTags          []bullet.BulletTag  `json:"bullet_tags"`
}

// Citations returns the bullet IDs this bundle's tags refer to.
func (b InsightBundle) Citations() []string {
	ids := make([]string, len(b.BulletTags))
	for i, t := range b.BulletTags {
		ids[i] = t.ID
	}
	return ids
}
