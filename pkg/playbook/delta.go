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
	"log/slog"

	"github.com/hungson175/ace/pkg/bullet"
)

// OperationType is the kind of mutation a Delta Operation performs.
type OperationType string

const (
	OpAdd    OperationType = "ADD"
	OpUpdate OperationType = "UPDATE"
	OpDelete OperationType = "DELETE"
)

// Operation is a single ADD/UPDATE/DELETE instruction (spec §3, Delta).
type Operation struct {
	Type    OperationType `json:"type"`
	Section string        `json:"section,omitempty"`
	ID      string        `json:"id,omitempty"`      // UPDATE, DELETE
	Content string        `json:"content,omitempty"` // ADD, UPDATE
}

// Delta is an ordered set of operations produced by the Curator from an
// Insight Bundle (spec §3).
type Delta struct {
	Reasoning  string      `json:"reasoning,omitempty"`
	Operations []Operation `json:"operations"`
}

// ApplyResult reports what happened to each operation in a Delta. Failed
// operations are logged and skipped; the rest of the Delta still applies
// (spec §4.1 failure semantics, §7).
type ApplyResult struct {
	AddedIDs   []string
	UpdatedIDs []string
	DeletedIDs []string
	Errors     []error
}

// Apply atomically applies delta's operations (spec §4.1). ADD assigns
// the next sequential section-scoped ID; UPDATE bumps UpdatedAt and
// invalidates the embedding (Open Question (b): invalidate, don't
// eagerly recompute); DELETE moves the bullet to the tombstone set. A
// per-operation failure (UnknownSectionError, OversizedBulletError,
// UnknownBulletIDError) is logged and the operation is dropped; the rest
// of the Delta still applies.
func (s *Store) Apply(delta Delta) ApplyResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res ApplyResult
	for _, op := range delta.Operations {
		switch op.Type {
		case OpAdd:
			id, err := s.applyAdd(op)
			if err != nil {
				slog.Warn("dropping ADD operation", "section", op.Section, "error", err)
				res.Errors = append(res.Errors, err)
				continue
			}
			res.AddedIDs = append(res.AddedIDs, id)

		case OpUpdate:
			if err := s.applyUpdate(op); err != nil {
				slog.Warn("dropping UPDATE operation", "id", op.ID, "error", err)
				res.Errors = append(res.Errors, err)
				continue
			}
			res.UpdatedIDs = append(res.UpdatedIDs, op.ID)

		case OpDelete:
			if err := s.applyDelete(op); err != nil {
				slog.Warn("dropping DELETE operation", "id", op.ID, "error", err)
				res.Errors = append(res.Errors, err)
				continue
			}
			res.DeletedIDs = append(res.DeletedIDs, op.ID)

		default:
			err := &UnknownSectionError{Section: string(op.Type)}
			slog.Warn("dropping operation with unrecognized type", "type", op.Type)
			res.Errors = append(res.Errors, err)
		}
	}
	return res
}

func (s *Store) applyAdd(op Operation) (string, error) {
	if !s.hasSection(op.Section) {
		return "", &UnknownSectionError{Section: op.Section}
	}
	if len(op.Content) > bullet.MaxContentBytes {
		return "", &OversizedBulletError{Section: op.Section, Size: len(op.Content), Max: bullet.MaxContentBytes}
	}

	now := s.tick()
	id := s.nextID(op.Section)
	b := &bullet.Bullet{
		ID:        id,
		Section:   op.Section,
		Content:   op.Content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.live[op.Section] = append(s.live[op.Section], b)
	s.byID[id] = b
	return id, nil
}

func (s *Store) applyUpdate(op Operation) error {
	b, ok := s.byID[op.ID]
	if !ok {
		return &UnknownBulletIDError{ID: op.ID}
	}
	if len(op.Content) > bullet.MaxContentBytes {
		return &OversizedBulletError{Section: b.Section, Size: len(op.Content), Max: bullet.MaxContentBytes}
	}
	b.Content = op.Content
	b.Embedding = nil
	b.UpdatedAt = s.tick()
	return nil
}

func (s *Store) applyDelete(op Operation) error {
	if !s.removeTombstone(op.ID) {
		return &UnknownBulletIDError{ID: op.ID}
	}
	return nil
}

// TagCited atomically increments HelpfulCount/HarmfulCount for bullets
// that are both cited and tagged (spec §4.1, testable property 6:
// "tag_cited only mutates counters for IDs present in both the cited set
// and the Reflector's tag list"). Tags for IDs outside citedIDs, and
// TagNeutral tags, never mutate anything.
func (s *Store) TagCited(citedIDs []string, tags []bullet.BulletTag) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cited := make(map[string]struct{}, len(citedIDs))
	for _, id := range citedIDs {
		cited[id] = struct{}{}
	}

	for _, t := range tags {
		if _, ok := cited[t.ID]; !ok {
			continue
		}
		b, ok := s.byID[t.ID]
		if !ok {
			continue // tombstoned or unknown since citation; ignore
		}
		switch t.Tag {
		case bullet.TagHelpful:
			b.HelpfulCount++
		case bullet.TagHarmful:
			b.HarmfulCount++
		case bullet.TagNeutral:
			// no-op
		}
	}
}
