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

package reflector

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hungson175/ace/pkg/bullet"
	"github.com/hungson175/ace/pkg/trajectory"
)

const reflectorSystemPrompt = `You are the Reflector: given how an AI agent attempted a task and what
happened, diagnose what went right or wrong and how the playbook of strategies it
was given should be judged.

Respond with a single JSON object of exactly this shape:
{"reasoning": "...", "error_identification": "...", "root_cause_analysis": "...",
 "correct_approach": "...", "key_insight": "...",
 "bullet_tags": [{"id": "...", "tag": "helpful"|"harmful"|"neutral"}]}

Only include bullet_tags entries for bullets shown to you below, one entry per
bullet you have an opinion on. Tag "helpful" if the bullet's guidance was used and
led somewhere good, "harmful" if it was used and misled the agent, "neutral"
otherwise.`

// buildPrompt renders one round's user prompt. previous is nil on the
// first round; on later rounds it is appended so the model can sharpen
// its own prior diagnosis (spec §4.3: "each round receiving the
// previous round's Insight Bundle").
func buildPrompt(rec trajectory.Record, cited []*bullet.Bullet, previous *trajectory.InsightBundle) string {
	var citedText strings.Builder
	if len(cited) == 0 {
		citedText.WriteString("(none cited)\n")
	}
	for _, b := range cited {
		fmt.Fprintf(&citedText, "- %s: %s\n", b.ID, b.Content)
	}

	groundTruth := rec.GroundTruth
	if groundTruth == "" {
		groundTruth = "(not available; rely on execution feedback only)"
	}

	prompt := fmt.Sprintf(`Query: %s

Agent output: %s

Ground truth: %s

Execution feedback: passed=%t diagnostics=%v

Bullets cited by the agent while producing this output:
%s`,
		rec.Query, rec.GeneratorOutput, groundTruth,
		rec.EnvironmentFeedback.Passed, rec.EnvironmentFeedback.Diagnostics, citedText.String())

	if previous != nil {
		prevJSON, _ := json.Marshal(previous)
		prompt += fmt.Sprintf("\n\nYour previous diagnosis of this same trajectory:\n%s\n\nSharpen it if you can; otherwise repeat it exactly.", prevJSON)
	}

	prompt += "\n\nRespond with the JSON object described in the system prompt."
	return prompt
}

// reaskPrompt is appended when a response failed to parse, giving the
// LLM one chance to correct its output (spec §4.3, §7).
func reaskPrompt(rawResponse string, parseErr error) string {
	return fmt.Sprintf(`Your previous response could not be parsed as the required JSON object.

Previous response:
%s

Parse error: %v

Reply again with ONLY the JSON object described in the system prompt, and nothing else.`,
		rawResponse, parseErr)
}
