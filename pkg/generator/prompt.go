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

package generator

import (
	"fmt"
	"strings"
)

const generatorSystemPrompt = `You are answering a task using a playbook of strategies as auxiliary reference
material. Treat the playbook as a tool: use whatever parts are relevant, ignore the
rest, and never feel obligated to use every bullet.

Respond with a single JSON object of exactly this shape:
{"reasoning": "...", "bullet_ids": ["..."], "final_answer": "..."}

"bullet_ids" must list the IDs (shown in brackets in the playbook) of every bullet
you actually used while producing your answer.`

const generatorAgenticSystemPrompt = `You are answering a task using a playbook of strategies as auxiliary reference
material, and may call tools against the task environment to gather information or
take actions before answering.

Respond with a single JSON object of exactly this shape:
{"reasoning": "...", "bullet_ids": ["..."],
 "tool_call": {"name": "...", "arguments": {...}}}
or, once you are ready to answer:
{"reasoning": "...", "bullet_ids": ["..."], "final_answer": "..."}

Call the "complete_task" tool (or respond with final_answer) as soon as you have
enough information; do not keep calling tools unnecessarily. "bullet_ids" must list
the IDs (shown in brackets in the playbook) of every bullet you used in this step.`

// buildPrompt renders one Generator call's user prompt. tools and
// transcript are empty/nil for single-shot calls; for the agentic loop,
// tools lists what's available and transcript is everything so far.
func buildPrompt(playbookRender, query string, queryContext any, tools []Tool, transcript string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Playbook:\n\n%s\n", playbookRender)
	fmt.Fprintf(&b, "Task: %s\n", query)
	if queryContext != nil {
		fmt.Fprintf(&b, "Additional context: %v\n", queryContext)
	}

	if len(tools) > 0 {
		b.WriteString("\nAvailable tools:\n")
		for _, t := range tools {
			fmt.Fprintf(&b, "- %s: %s (schema: %v)\n", t.Name, t.Description, t.Schema)
		}
	}

	if transcript != "" {
		fmt.Fprintf(&b, "\nTranscript so far:\n%s\n", transcript)
	}

	b.WriteString("\nRespond with the JSON object described in the system prompt.")
	return b.String()
}
