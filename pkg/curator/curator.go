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

// Package curator implements the Curator role (spec §4.2): it turns a
// Reflector's Insight Bundle into a Delta, guards against committing a
// Delta that looks like context collapse, and applies whatever survives
// to the Playbook Store.
//
// Section/ID validation and ID assignment (spec §4.2 items 1-2) are
// already enforced by playbook.Store.Apply itself; this package's own
// job is prompt construction, the one-retry malformed-JSON recovery, the
// collapse guard Apply does not perform, and triggering GrowAndRefine
// after a proactive commit.
package curator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hungson175/ace/pkg/llmclient"
	"github.com/hungson175/ace/pkg/playbook"
	"github.com/hungson175/ace/pkg/trajectory"
)

// Curator owns one Playbook Store and applies Deltas derived from
// Insight Bundles to it.
type Curator struct {
	store *playbook.Store
	llm   llmclient.Client
	cfg   Config
}

// New creates a Curator over store, calling llm for Delta proposals.
func New(store *playbook.Store, llm llmclient.Client, cfg Config) *Curator {
	return &Curator{store: store, llm: llm, cfg: cfg}
}

// Result reports what Curate did: either a successful commit (Applied
// set, Rejected nil) or a rejected collapse (Rejected set, Applied the
// zero value).
type Result struct {
	Applied  playbook.ApplyResult
	Refined  playbook.RefineResult
	Rejected *RejectedCollapse
}

// Curate asks the LLM for a Delta addressing bundle, checks it against
// the collapse guard, and applies it if it passes (spec §4.2).
//
// A malformed LLM response is re-asked once; if the second response is
// still unparseable, Curate returns a *ParseError and the playbook is
// untouched. A Delta that fails the collapse guard is rejected (a
// non-nil Result.Rejected, nil error) without ever calling Apply.
func (c *Curator) Curate(ctx context.Context, bundle trajectory.InsightBundle) (Result, error) {
	render := c.store.Render()
	userPrompt := buildPrompt(render, bundle)

	delta, err := c.requestDelta(ctx, userPrompt)
	if err != nil {
		return Result{}, err
	}

	if rejected := c.checkCollapseGuard(delta); rejected != nil {
		slog.Warn("curator rejected delta as suspected collapse",
			"section", rejected.Section, "touched", rejected.TouchedCount, "live", rejected.LiveCount)
		return Result{Rejected: rejected}, nil
	}

	applied := c.store.Apply(delta)

	var refined playbook.RefineResult
	if c.cfg.Policy == playbook.PolicyProactive {
		sections := c.touchedSections(applied)
		if len(sections) > 0 {
			opts := c.cfg.Refine
			opts.Sections = sections
			refined, err = c.store.GrowAndRefine(opts)
			if err != nil {
				return Result{Applied: applied}, fmt.Errorf("curator: proactive refine failed: %w", err)
			}
		}
	}

	return Result{Applied: applied, Refined: refined}, nil
}

// requestDelta calls the LLM and parses its response into a Delta,
// re-asking once on a malformed response (spec §7).
func (c *Curator) requestDelta(ctx context.Context, userPrompt string) (playbook.Delta, error) {
	req := llmclient.Request{
		SystemPrompt:   curatorSystemPrompt,
		UserPrompt:     userPrompt,
		ResponseFormat: "json_object",
		Temperature:    c.cfg.Temperature,
		MaxTokens:      c.cfg.MaxTokens,
	}

	resp, err := c.llm.Generate(ctx, req)
	if err != nil {
		return playbook.Delta{}, fmt.Errorf("curator: llm call failed: %w", err)
	}

	delta, parseErr := parseDelta(resp.Content)
	if parseErr == nil {
		return delta, nil
	}

	req.UserPrompt = reaskPrompt(resp.Content, parseErr)
	resp, err = c.llm.Generate(ctx, req)
	if err != nil {
		return playbook.Delta{}, fmt.Errorf("curator: llm re-ask failed: %w", err)
	}

	delta, parseErr = parseDelta(resp.Content)
	if parseErr != nil {
		return playbook.Delta{}, &ParseError{Raw: resp.Content, Err: parseErr}
	}
	return delta, nil
}

func parseDelta(raw string) (playbook.Delta, error) {
	var delta playbook.Delta
	trimmed := strings.TrimSpace(raw)
	if err := json.Unmarshal([]byte(trimmed), &delta); err != nil {
		return playbook.Delta{}, err
	}
	return delta, nil
}

// checkCollapseGuard computes, per section, the ratio of distinct
// bullet IDs delta's UPDATE/DELETE operations touch to that section's
// live count before the Delta, and returns a *RejectedCollapse for the
// first section whose ratio exceeds the configured threshold, or nil if
// every section is within bounds (spec §4.2 item 3, §8 invariant 5).
//
// A section is resolved from the existing bullet's own Section, not
// from the operation's (LLM-supplied, ADD-only-reliable) Section field.
func (c *Curator) checkCollapseGuard(delta playbook.Delta) *RejectedCollapse {
	touched := map[string]map[string]struct{}{}
	for _, op := range delta.Operations {
		if op.Type != playbook.OpUpdate && op.Type != playbook.OpDelete {
			continue
		}
		b := c.store.Get(op.ID)
		if b == nil {
			continue // unknown ID; Apply will drop it, not this guard's concern
		}
		set, ok := touched[b.Section]
		if !ok {
			set = map[string]struct{}{}
			touched[b.Section] = set
		}
		set[op.ID] = struct{}{}
	}

	threshold := c.cfg.collapseGuardPct()
	for section, ids := range touched {
		live := c.store.LiveCount(section)
		if live == 0 {
			continue
		}
		ratio := 100 * float64(len(ids)) / float64(live)
		if ratio > threshold {
			return &RejectedCollapse{
				Section:      section,
				TouchedCount: len(ids),
				LiveCount:    live,
				ThresholdPct: threshold,
			}
		}
	}
	return nil
}

// touchedSections returns the distinct sections an ApplyResult's
// successful ADD/UPDATE operations landed in, for scoping a proactive
// GrowAndRefine sweep to only what just changed. Deletions need no
// refine (nothing new to dedup), so they don't widen the sweep.
func (c *Curator) touchedSections(applied playbook.ApplyResult) []string {
	seen := map[string]struct{}{}
	var out []string
	add := func(id string) {
		b := c.store.Get(id)
		if b == nil {
			return
		}
		if _, ok := seen[b.Section]; !ok {
			seen[b.Section] = struct{}{}
			out = append(out, b.Section)
		}
	}
	for _, id := range applied.AddedIDs {
		add(id)
	}
	for _, id := range applied.UpdatedIDs {
		add(id)
	}
	return out
}
