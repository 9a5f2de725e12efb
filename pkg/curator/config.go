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

package curator

import "github.com/hungson175/ace/pkg/playbook"

// DefaultCollapseGuardPct is K from spec §4.2 item 3 / §8 invariant 5: a
// Delta that would rewrite (UPDATE or DELETE) more than this percentage
// of a section's live bullets in one commit is rejected outright as a
// suspected context-collapse event.
const DefaultCollapseGuardPct = 30.0

// Config configures a Curator.
type Config struct {
	// CollapseGuardPct is K; zero means DefaultCollapseGuardPct.
	CollapseGuardPct float64

	// Policy selects when GrowAndRefine runs after a successful commit.
	// Only PolicyProactive triggers a sweep; PolicyLazy and the zero value
	// both leave the playbook unswept after a commit.
	Policy playbook.RefinePolicy

	// Refine is passed to Store.GrowAndRefine when Policy is
	// PolicyProactive and a Delta commits successfully. Sections is
	// overridden per-call with the sections the committed Delta touched.
	Refine playbook.RefineOptions

	// MaxTokens bounds the Curator's LLM call.
	MaxTokens int
	// Temperature is the sampling temperature for the Curator's LLM call.
	// The Curator asks for structural edits, not creative prose, so the
	// default (zero value) is deterministic.
	Temperature float64
}

func (c Config) collapseGuardPct() float64 {
	if c.CollapseGuardPct == 0 {
		return DefaultCollapseGuardPct
	}
	return c.CollapseGuardPct
}
