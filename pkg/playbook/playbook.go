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

// Package playbook implements the ACE Playbook Store (spec §3, §4.1): an
// append-mostly, deduplicated, counter-annotated bullet collection grouped
// by section, with single-writer concurrency and JSON checkpointing.
package playbook

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/hungson175/ace/pkg/bullet"
)

// Section describes one configured playbook section: its rendering name
// and the ID prefix the Store assigns to bullets created in it
// (e.g. section "strategies_and_hard_rules" -> prefix "ctx", yielding IDs
// like "ctx-00263").
type Section struct {
	Name   string
	Prefix string
}

// Store is the in-memory, thread-safe Playbook Store.
//
// Mutation (Apply, TagCited, GrowAndRefine) is serialized behind mu; reads
// (Render, SnapshotForReflector) take a read lock and return independent
// copies, so they never race with a concurrent mutation and never block
// each other (spec §5).
type Store struct {
	mu sync.RWMutex

	sections []Section               // configured order; also the render order
	byName   map[string]Section       // section name -> config, for validation
	live     map[string][]*bullet.Bullet // section -> live bullets, insertion order
	byID     map[string]*bullet.Bullet   // all live bullets, for O(1) lookup
	tomb     map[string]struct{}     // tombstoned IDs, never reissued
	nextSeq  map[string]int          // id prefix -> next sequence number

	clock int64 // monotonic logical clock for CreatedAt/UpdatedAt
}

// New creates an empty Store configured with the given sections, in
// rendering order.
func New(sections []Section) *Store {
	s := &Store{
		sections: append([]Section(nil), sections...),
		byName:   make(map[string]Section, len(sections)),
		live:     make(map[string][]*bullet.Bullet, len(sections)),
		byID:     make(map[string]*bullet.Bullet),
		tomb:     make(map[string]struct{}),
		nextSeq:  make(map[string]int),
	}
	for _, sec := range sections {
		s.byName[sec.Name] = sec
		s.live[sec.Name] = nil
	}
	return s
}

// Sections returns the configured section list, in render order.
func (s *Store) Sections() []Section {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Section(nil), s.sections...)
}

// hasSection reports whether name is a configured section. Caller must
// hold at least a read lock.
func (s *Store) hasSection(name string) bool {
	_, ok := s.byName[name]
	return ok
}

// tick advances and returns the logical clock. Caller must hold the write
// lock.
func (s *Store) tick() int64 {
	s.clock++
	return s.clock
}

// nextID assigns the next sequential ID for the section's prefix. Caller
// must hold the write lock.
func (s *Store) nextID(section string) string {
	prefix := s.byName[section].Prefix
	s.nextSeq[prefix]++
	return fmt.Sprintf("%s-%05d", prefix, s.nextSeq[prefix])
}

// LiveCount returns the number of live bullets in section.
func (s *Store) LiveCount(section string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.live[section])
}

// TotalLiveCount returns the number of live bullets across all sections.
func (s *Store) TotalLiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// indexInSection returns the slice index of a bullet within its section's
// live slice, or -1. Caller must hold a lock.
func indexInSection(live []*bullet.Bullet, id string) int {
	for i, b := range live {
		if b.ID == id {
			return i
		}
	}
	return -1
}

// removeTombstone deletes the bullet with id from its section's live
// slice, moves it to the tombstone set, and removes it from byID. Caller
// must hold the write lock. Returns false if id was not live.
func (s *Store) removeTombstone(id string) bool {
	b, ok := s.byID[id]
	if !ok {
		return false
	}
	live := s.live[b.Section]
	idx := indexInSection(live, id)
	if idx < 0 {
		slog.Warn("bullet indexed but not found in its section slice; store corrupted", "id", id, "section", b.Section)
		return false
	}
	s.live[b.Section] = append(live[:idx], live[idx+1:]...)
	delete(s.byID, id)
	s.tomb[id] = struct{}{}
	return true
}
