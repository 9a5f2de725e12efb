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

// Package generator implements the Generator role (spec §4.4): it
// answers a query using the current playbook as auxiliary context,
// either in one LLM call (single-shot) or by driving a REPL-like tool
// loop against an external environment (agentic) until the model
// signals completion.
package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hungson175/ace/pkg/llmclient"
	"github.com/hungson175/ace/pkg/playbook"
)

// ToolCaller is the narrow contract the Generator needs from an
// agentic task environment; pkg/toolenv.Client satisfies it
// structurally.
type ToolCaller interface {
	ListTools(ctx context.Context) ([]Tool, error)
	CallTool(ctx context.Context, name string, args map[string]any) (string, error)
}

// Tool mirrors toolenv.Tool so this package does not need to import
// pkg/toolenv just to describe one.
type Tool struct {
	Name        string
	Description string
	Schema      map[string]any
}

// Config configures a Generator.
type Config struct {
	// MaxToolSteps bounds the agentic loop (default DefaultMaxToolSteps).
	MaxToolSteps int
	MaxTokens    int
	Temperature  float64
}

// DefaultMaxToolSteps bounds an agentic run so a misbehaving model can
// never loop forever against the environment.
const DefaultMaxToolSteps = 10

func (c Config) maxToolSteps() int {
	if c.MaxToolSteps == 0 {
		return DefaultMaxToolSteps
	}
	return c.MaxToolSteps
}

// Result is what a Generator run produced: the text to become the
// Trajectory Record's GeneratorOutput, and the bullet IDs to become its
// CitedBulletIDs.
type Result struct {
	Output         string
	CitedBulletIDs []string
}

// Generator answers queries using a Playbook Store's current content.
type Generator struct {
	store *playbook.Store
	llm   llmclient.Client
	tools ToolCaller // nil for single-shot settings
	cfg   Config
}

// New creates a Generator. tools may be nil for single-shot settings;
// when set, Generate drives the agentic tool loop instead.
func New(store *playbook.Store, llm llmclient.Client, tools ToolCaller, cfg Config) *Generator {
	return &Generator{store: store, llm: llm, tools: tools, cfg: cfg}
}

// response is the structured shape every Generator LLM call returns
// (spec §4.4: "{reasoning, bullet_ids: [...], final_answer | action_trace}").
// In the agentic loop, a ToolCall in place of FinalAnswer requests one
// more environment step.
type response struct {
	Reasoning   string          `json:"reasoning"`
	BulletIDs   []string        `json:"bullet_ids"`
	FinalAnswer string          `json:"final_answer,omitempty"`
	ToolCall    *toolCallRequest `json:"tool_call,omitempty"`
}

type toolCallRequest struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Generate answers query, citing whichever live playbook bullets it
// used. If the Generator has a ToolCaller, it drives the agentic loop
// (spec §4.4 item 2); otherwise one LLM call suffices (item 3).
func (g *Generator) Generate(ctx context.Context, query string, queryContext any) (Result, error) {
	if g.tools != nil {
		return g.generateAgentic(ctx, query, queryContext)
	}
	return g.generateSingleShot(ctx, query, queryContext)
}

func (g *Generator) generateSingleShot(ctx context.Context, query string, queryContext any) (Result, error) {
	render := g.store.Render()
	prompt := buildPrompt(render, query, queryContext, nil, "")

	resp, err := g.llm.Generate(ctx, llmclient.Request{
		SystemPrompt:   generatorSystemPrompt,
		UserPrompt:     prompt,
		ResponseFormat: "json_object",
		Temperature:    g.cfg.Temperature,
		MaxTokens:      g.cfg.MaxTokens,
	})
	if err != nil {
		return Result{}, fmt.Errorf("generator: llm call failed: %w", err)
	}

	parsed, ok := parseResponse(resp.Content)
	if !ok {
		// spec §4.4 allows a text response_format; a response that isn't
		// valid JSON is treated as the final answer verbatim rather than
		// failing the sample outright.
		slog.Warn("generator response was not valid json; using it as a raw final answer")
		return Result{Output: resp.Content}, nil
	}

	return Result{
		Output:         parsed.FinalAnswer,
		CitedBulletIDs: g.filterKnownBullets(parsed.BulletIDs),
	}, nil
}

// generateAgentic drives a bounded tool-call loop against g.tools,
// stopping when the model supplies a final_answer or explicitly calls
// "complete_task", and concatenating every step into one transcript
// (spec §4.4 item 2: "the entire transcript is the generator_output").
func (g *Generator) generateAgentic(ctx context.Context, query string, queryContext any) (Result, error) {
	tools, err := g.tools.ListTools(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("generator: failed to list tools: %w", err)
	}
	render := g.store.Render()

	var transcript strings.Builder
	citedSeen := map[string]struct{}{}
	var cited []string

	for step := 0; step < g.cfg.maxToolSteps(); step++ {
		prompt := buildPrompt(render, query, queryContext, tools, transcript.String())
		resp, err := g.llm.Generate(ctx, llmclient.Request{
			SystemPrompt:   generatorAgenticSystemPrompt,
			UserPrompt:     prompt,
			ResponseFormat: "json_object",
			Temperature:    g.cfg.Temperature,
			MaxTokens:      g.cfg.MaxTokens,
		})
		if err != nil {
			return Result{Output: transcript.String()}, fmt.Errorf("generator: llm call failed: %w", err)
		}

		parsed, ok := parseResponse(resp.Content)
		if !ok {
			fmt.Fprintf(&transcript, "step %d: unparseable response, treated as final answer:\n%s\n", step, resp.Content)
			return Result{Output: transcript.String(), CitedBulletIDs: dedupOrdered(cited)}, nil
		}

		for _, id := range g.filterKnownBullets(parsed.BulletIDs) {
			if _, ok := citedSeen[id]; !ok {
				citedSeen[id] = struct{}{}
				cited = append(cited, id)
			}
		}

		if parsed.ToolCall == nil || parsed.ToolCall.Name == "complete_task" {
			fmt.Fprintf(&transcript, "step %d: final answer: %s\n", step, parsed.FinalAnswer)
			return Result{Output: transcript.String(), CitedBulletIDs: cited}, nil
		}

		toolResult, err := g.tools.CallTool(ctx, parsed.ToolCall.Name, parsed.ToolCall.Arguments)
		if err != nil {
			fmt.Fprintf(&transcript, "step %d: call %s failed: %v\n", step, parsed.ToolCall.Name, err)
			continue
		}
		fmt.Fprintf(&transcript, "step %d: called %s(%v) -> %s\n", step, parsed.ToolCall.Name, parsed.ToolCall.Arguments, toolResult)
	}

	slog.Warn("generator hit max tool steps without a final answer", "max_steps", g.cfg.maxToolSteps())
	return Result{Output: transcript.String(), CitedBulletIDs: cited}, nil
}

// filterKnownBullets drops any ID that doesn't resolve to a live bullet
// (spec §4.4: "IDs referencing unknown/tombstoned bullets are silently
// dropped").
func (g *Generator) filterKnownBullets(ids []string) []string {
	var out []string
	for _, id := range ids {
		if g.store.Get(id) != nil {
			out = append(out, id)
		}
	}
	return out
}

func parseResponse(raw string) (response, bool) {
	var resp response
	trimmed := strings.TrimSpace(raw)
	if err := json.Unmarshal([]byte(trimmed), &resp); err != nil {
		return response{}, false
	}
	return resp, true
}

func dedupOrdered(ids []string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, id := range ids {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
