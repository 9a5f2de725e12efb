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

// Package reflector implements the Reflector role (spec §4.3): given a
// Trajectory Record and the bullets the Generator cited, it produces a
// structured Insight Bundle diagnosing what happened, optionally
// iterating on its own diagnosis across several rounds before handing it
// to the Curator.
package reflector

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hungson175/ace/pkg/bullet"
	"github.com/hungson175/ace/pkg/llmclient"
	"github.com/hungson175/ace/pkg/trajectory"
)

// Reflector produces Insight Bundles from Trajectory Records.
type Reflector struct {
	llm llmclient.Client
	cfg Config
}

// New creates a Reflector calling llm for diagnoses.
func New(llm llmclient.Client, cfg Config) *Reflector {
	return &Reflector{llm: llm, cfg: cfg}
}

// Reflect diagnoses rec, whose cited bullets (already resolved by the
// caller via playbook.Store.SnapshotForReflector) are passed in cited.
//
// It iterates up to cfg.MaxRefinementRounds times (default 5; exactly
// one round if the caller set MaxRefinementRounds to 0 explicitly),
// stopping early the first time two consecutive rounds return
// byte-identical JSON (spec §4.3). A response that fails to parse as an
// Insight Bundle is re-asked once within that round; a second failure
// returns a *ParseError and no further rounds run.
func (r *Reflector) Reflect(ctx context.Context, rec trajectory.Record, cited []*bullet.Bullet) (trajectory.InsightBundle, error) {
	totalCalls := r.cfg.maxRounds()
	if totalCalls == 0 {
		// property 10: max_refinement_rounds=0 means "run exactly once",
		// not "never call the Reflector".
		totalCalls = 1
	}

	var bundle trajectory.InsightBundle
	var previousRaw string
	havePrevious := false

	for i := 0; i < totalCalls; i++ {
		var previous *trajectory.InsightBundle
		if havePrevious {
			prev := bundle
			previous = &prev
		}

		userPrompt := buildPrompt(rec, cited, previous)
		raw, parsed, err := r.requestBundle(ctx, userPrompt)
		if err != nil {
			return trajectory.InsightBundle{}, err
		}

		stop := havePrevious && raw == previousRaw
		bundle = parsed
		previousRaw = raw
		havePrevious = true
		if stop {
			break
		}
	}

	return bundle, nil
}

// requestBundle issues one LLM call and parses its response, re-asking
// once on a malformed response.
func (r *Reflector) requestBundle(ctx context.Context, userPrompt string) (string, trajectory.InsightBundle, error) {
	req := llmclient.Request{
		SystemPrompt:   reflectorSystemPrompt,
		UserPrompt:     userPrompt,
		ResponseFormat: "json_object",
		Temperature:    r.cfg.Temperature,
		MaxTokens:      r.cfg.MaxTokens,
	}

	resp, err := r.llm.Generate(ctx, req)
	if err != nil {
		return "", trajectory.InsightBundle{}, fmt.Errorf("reflector: llm call failed: %w", err)
	}

	bundle, parseErr := parseBundle(resp.Content)
	if parseErr == nil {
		return resp.Content, bundle, nil
	}

	req.UserPrompt = reaskPrompt(resp.Content, parseErr)
	resp, err = r.llm.Generate(ctx, req)
	if err != nil {
		return "", trajectory.InsightBundle{}, fmt.Errorf("reflector: llm re-ask failed: %w", err)
	}

	bundle, parseErr = parseBundle(resp.Content)
	if parseErr != nil {
		return "", trajectory.InsightBundle{}, &ParseError{Raw: resp.Content, Err: parseErr}
	}
	return resp.Content, bundle, nil
}

func parseBundle(raw string) (trajectory.InsightBundle, error) {
	var bundle trajectory.InsightBundle
	trimmed := strings.TrimSpace(raw)
	if err := json.Unmarshal([]byte(trimmed), &bundle); err != nil {
		return trajectory.InsightBundle{}, err
	}
	return bundle, nil
}
