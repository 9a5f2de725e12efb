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

import (
	"fmt"
	"strings"

	"github.com/hungson175/ace/pkg/trajectory"
)

const curatorSystemPrompt = `You are the Curator of a growing playbook of reusable strategies for an AI agent.
You receive the current playbook and one Insight Bundle describing what the agent
got right or wrong on a single task. Decide what, if anything, the playbook should
change to capture the lesson.

Respond with a single JSON object of the form:
{"reasoning": "...", "operations": [{"type": "ADD"|"UPDATE"|"DELETE", "section": "...", "id": "...", "content": "..."}]}

Rules:
- ADD requires "section" and "content"; never supply "id" for ADD, fresh IDs are
  assigned by the playbook itself.
- UPDATE and DELETE require "id" and must refer to a bullet actually shown below.
  UPDATE also requires "content" with the bullet's full replacement text.
- Only propose operations for bullets the Insight Bundle gives you a concrete
  reason to add, rewrite, or remove. Do not rewrite a bullet you weren't asked to
  change, and do not regenerate a section from scratch.
- "operations" may be empty if nothing in the playbook needs to change.`

// buildPrompt renders the current playbook and bundle into the Curator's
// user-facing prompt, in the teacher's plain string-formatting idiom (no
// template engine).
func buildPrompt(playbookRender string, bundle trajectory.InsightBundle) string {
	var tags strings.Builder
	for _, t := range bundle.BulletTags {
		fmt.Fprintf(&tags, "- %s: %s\n", t.ID, t.Tag)
	}
	if tags.Len() == 0 {
		tags.WriteString("(none)\n")
	}

	prompt := fmt.Sprintf(`Current playbook:

%s

Insight Bundle for this trajectory:
- reasoning: %s
- error_identification: %s
- root_cause_analysis: %s
- correct_approach: %s
- key_insight: %s

Bullets cited and tagged in this trajectory:
%s
Propose the JSON Delta described above.`,
		playbookRender,
		bundle.Reasoning, bundle.ErrorIdentification, bundle.RootCauseAnalysis,
		bundle.CorrectApproach, bundle.KeyInsight, tags.String())

	return prompt
}

// reaskPrompt is appended when the first response failed to parse as a
// Delta, giving the LLM one chance to correct its output (spec §7).
func reaskPrompt(rawResponse string, parseErr error) string {
	return fmt.Sprintf(`Your previous response could not be parsed as the required JSON object.

Previous response:
%s

Parse error: %v

Reply again with ONLY the JSON object described in the system prompt, and nothing else.`,
		rawResponse, parseErr)
}
