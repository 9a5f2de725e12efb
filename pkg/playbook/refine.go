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

package playbook

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/hungson175/ace/pkg/bullet"
)

// DefaultDedupThreshold is theta_dedup from spec §3 invariant 4.
const DefaultDedupThreshold = 0.92

// RefinePolicy selects whether the Curator runs GrowAndRefine's dedup
// sweep after each commit (spec §4.5). A sweep that compares every pair
// (no CandidateSource) leaves no two live bullets in a section at or above
// the dedup threshold; with a CandidateSource, only the pairs it returns
// are compared.
type RefinePolicy string

const (
	// PolicyProactive sweeps after every Curator commit.
	PolicyProactive RefinePolicy = "proactive"
	// PolicyLazy runs no sweep after a Curator commit. Render checks no
	// token ceiling, so under this policy a sweep happens only when
	// GrowAndRefine is called directly.
	PolicyLazy RefinePolicy = "lazy"
)

// Embedder produces embeddings for bullet content. Implementations wrap
// pkg/embedclient.Client; kept as a narrow function type here so
// pkg/playbook has no import-time dependency on any provider SDK.
type Embedder func(texts []string) ([][]float32, error)

// CandidateSource narrows the O(n^2) pairwise cosine comparison down to a
// plausible candidate set for large sections, backed by pkg/vectorstore.
// GrowAndRefine computes the exact cosine similarity on every candidate
// it's given before merging two bullets, so a source never causes a merge
// below the threshold; a near-duplicate pair that neither bullet's lookup
// returns is never compared and stays live.
type CandidateSource interface {
	Candidates(section, id string, embedding []float32, topK int) ([]string, error)
}

// TokenCounter counts tokens in rendered playbook text, backing the
// budget-driven pruning step (spec §4.5 step 4). Implementations wrap
// pkg/tokencount.
type TokenCounter func(text string) int

// RefineOptions configures a GrowAndRefine sweep.
type RefineOptions struct {
	// Threshold is theta_dedup; defaults to DefaultDedupThreshold if zero.
	Threshold float64

	// Sections restricts the sweep to these sections; empty means every
	// configured section.
	Sections []string

	// Embedder computes embeddings for bullets missing one. Required if
	// any live bullet lacks an embedding.
	Embedder Embedder

	// Candidates, if set, is consulted before falling back to exact
	// pairwise comparison within a section.
	Candidates CandidateSource

	// CandidateTopK bounds how many candidates to request per bullet.
	CandidateTopK int

	// BudgetTokens, if > 0, triggers step 4's ascending-score pruning
	// once the rendered playbook would otherwise exceed it.
	BudgetTokens int

	// Counter computes the token count of rendered text; required if
	// BudgetTokens > 0.
	Counter TokenCounter
}

// RefineResult reports what GrowAndRefine did.
type RefineResult struct {
	DeduplicatedIDs []string // bullets removed by the similarity sweep
	PrunedIDs       []string // bullets removed by budget pruning
}

// GrowAndRefine runs the dedup sweep described in spec §4.5: within each
// configured (or named) section, bullets whose embeddings have cosine
// similarity >= threshold are merged, keeping the one with the highest
// helpful-minus-harmful score (ties broken by lower/older ID); if
// opts.BudgetTokens is set and the playbook would still be too large,
// bullets are dropped in ascending score order (preserving at least one
// per non-empty section) until it fits.
func (s *Store) GrowAndRefine(opts RefineOptions) (RefineResult, error) {
	if opts.Threshold == 0 {
		opts.Threshold = DefaultDedupThreshold
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sections := opts.Sections
	if len(sections) == 0 {
		for _, sec := range s.sections {
			sections = append(sections, sec.Name)
		}
	}

	var result RefineResult
	for _, secName := range sections {
		if !s.hasSection(secName) {
			return result, &UnknownSectionError{Section: secName}
		}
		removed, err := s.dedupSection(secName, opts)
		if err != nil {
			return result, fmt.Errorf("dedup section %q: %w", secName, err)
		}
		result.DeduplicatedIDs = append(result.DeduplicatedIDs, removed...)
	}

	if opts.BudgetTokens > 0 {
		if opts.Counter == nil {
			return result, fmt.Errorf("budget_tokens set without a TokenCounter")
		}
		pruned := s.pruneToBudget(opts.BudgetTokens, opts.Counter)
		result.PrunedIDs = pruned
	}

	return result, nil
}

// dedupSection runs step 1-3 of §4.5 for one section. Caller holds the
// write lock.
func (s *Store) dedupSection(section string, opts RefineOptions) ([]string, error) {
	live := s.live[section]
	if len(live) < 2 {
		return nil, nil
	}

	if err := s.ensureEmbeddings(live, opts.Embedder); err != nil {
		return nil, err
	}

	uf := newUnionFind(live)
	topK := opts.CandidateTopK
	if topK <= 0 {
		topK = 10
	}

	if opts.Candidates != nil {
		for _, b := range live {
			ids, err := opts.Candidates.Candidates(section, b.ID, b.Embedding, topK)
			if err != nil {
				slog.Warn("candidate lookup failed, falling back to exact comparison for this bullet", "id", b.ID, "error", err)
				for _, other := range live {
					if other.ID != b.ID && cosineSimilarity(b.Embedding, other.Embedding) >= opts.Threshold {
						uf.union(b.ID, other.ID)
					}
				}
				continue
			}
			for _, otherID := range ids {
				other, ok := s.byID[otherID]
				if !ok || other.Section != section || other.ID == b.ID {
					continue
				}
				if cosineSimilarity(b.Embedding, other.Embedding) >= opts.Threshold {
					uf.union(b.ID, other.ID)
				}
			}
		}
	} else {
		for i := 0; i < len(live); i++ {
			for j := i + 1; j < len(live); j++ {
				if cosineSimilarity(live[i].Embedding, live[j].Embedding) >= opts.Threshold {
					uf.union(live[i].ID, live[j].ID)
				}
			}
		}
	}

	components := uf.components()
	var removed []string
	for _, group := range components {
		if len(group) < 2 {
			continue
		}
		keep := selectRetained(group, s.byID)
		for _, id := range group {
			if id == keep {
				continue
			}
			s.removeTombstone(id)
			removed = append(removed, id)
		}
	}
	return removed, nil
}

// ensureEmbeddings computes embeddings for any bullet in live missing
// one. Caller holds the write lock.
func (s *Store) ensureEmbeddings(live []*bullet.Bullet, embed Embedder) error {
	var missing []*bullet.Bullet
	for _, b := range live {
		if b.Embedding == nil {
			missing = append(missing, b)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	if embed == nil {
		return fmt.Errorf("%d bullet(s) missing embeddings and no Embedder configured", len(missing))
	}

	texts := make([]string, len(missing))
	for i, b := range missing {
		texts[i] = b.Content
	}
	vectors, err := embed(texts)
	if err != nil {
		return fmt.Errorf("failed to embed %d bullet(s): %w", len(missing), err)
	}
	if len(vectors) != len(missing) {
		return fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(missing))
	}
	for i, b := range missing {
		b.Embedding = vectors[i]
	}
	return nil
}

// selectRetained picks the bullet to keep from a dedup component:
// highest helpful-harmful score, ties broken by the lower (older) ID.
func selectRetained(ids []string, byID map[string]*bullet.Bullet) string {
	best := ids[0]
	for _, id := range ids[1:] {
		a, b := byID[best], byID[id]
		if b.Score() > a.Score() || (b.Score() == a.Score() && id < best) {
			best = id
		}
	}
	return best
}

// pruneToBudget drops bullets in ascending score order until the
// rendered playbook fits budgetTokens, preserving at least one bullet per
// non-empty section (spec §4.5 step 4). Caller holds the write lock.
func (s *Store) pruneToBudget(budgetTokens int, counter TokenCounter) []string {
	var pruned []string
	for counter(s.renderLocked(nil)) > budgetTokens {
		candidate, ok := s.lowestScoringPrunable()
		if !ok {
			break // nothing left that can be pruned without emptying a section
		}
		s.removeTombstone(candidate)
		pruned = append(pruned, candidate)
	}
	return pruned
}

// lowestScoringPrunable finds the globally lowest-score live bullet whose
// section would still have at least one bullet left after removing it.
func (s *Store) lowestScoringPrunable() (string, bool) {
	type cand struct {
		id    string
		score int
	}
	var all []cand
	for _, sec := range s.sections {
		live := s.live[sec.Name]
		if len(live) <= 1 {
			continue // preserve at least one bullet per non-empty section
		}
		for _, b := range live {
			all = append(all, cand{id: b.ID, score: b.Score()})
		}
	}
	if len(all) == 0 {
		return "", false
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].score != all[j].score {
			return all[i].score < all[j].score
		}
		return all[i].id < all[j].id
	})
	return all[0].id, true
}
