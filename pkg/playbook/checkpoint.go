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
	"encoding/json"
	"fmt"
	"sort"

	"github.com/hungson175/ace/pkg/bullet"
)

// DocumentVersion is the "version" field of the persisted playbook
// format (spec §6).
const DocumentVersion = 1

// persistedBullet is the on-disk shape of a Bullet. Embeddings are never
// persisted (spec §6: "recomputed on load if needed").
type persistedBullet struct {
	ID           string `json:"id"`
	Section      string `json:"section"`
	Content      string `json:"content"`
	HelpfulCount int    `json:"helpful_count"`
	HarmfulCount int    `json:"harmful_count"`
	CreatedAt    int64  `json:"created_at"`
	UpdatedAt    int64  `json:"updated_at"`
}

// Document is the persisted playbook JSON document (spec §6).
type Document struct {
	Version    int               `json:"version"`
	Sections   []string          `json:"sections"`
	NextID     map[string]int    `json:"next_id"`
	Tombstones []string          `json:"tombstones"`
	Bullets    []persistedBullet `json:"bullets"`
}

// Checkpoint serializes the full store to the persisted JSON format.
func (s *Store) Checkpoint() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc := Document{
		Version:    DocumentVersion,
		Sections:   make([]string, len(s.sections)),
		NextID:     make(map[string]int, len(s.nextSeq)),
		Tombstones: make([]string, 0, len(s.tomb)),
	}
	for i, sec := range s.sections {
		doc.Sections[i] = sec.Name
	}
	for prefix, seq := range s.nextSeq {
		doc.NextID[prefix] = seq
	}
	for id := range s.tomb {
		doc.Tombstones = append(doc.Tombstones, id)
	}
	sort.Strings(doc.Tombstones)

	for _, sec := range s.sections {
		for _, b := range s.live[sec.Name] {
			doc.Bullets = append(doc.Bullets, persistedBullet{
				ID:           b.ID,
				Section:      b.Section,
				Content:      b.Content,
				HelpfulCount: b.HelpfulCount,
				HarmfulCount: b.HarmfulCount,
				CreatedAt:    b.CreatedAt,
				UpdatedAt:    b.UpdatedAt,
			})
		}
	}

	return json.Marshal(doc)
}

// Restore rebuilds a Store from a persisted checkpoint document. sections
// supplies the section->prefix configuration (not stored per-section in
// the document itself); it must name a superset of doc.Sections.
//
// Restore(Checkpoint()) reproduces the original store's live bullets,
// tombstones, and ID counters exactly, modulo embeddings (which are
// recomputed on demand, never persisted) — spec §8 testable property 7.
func Restore(data []byte, sections []Section) (*Store, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse playbook checkpoint: %w", err)
	}
	if doc.Version != DocumentVersion {
		return nil, fmt.Errorf("unsupported playbook document version %d", doc.Version)
	}

	s := New(sections)
	for prefix, seq := range doc.NextID {
		s.nextSeq[prefix] = seq
	}
	for _, id := range doc.Tombstones {
		s.tomb[id] = struct{}{}
	}

	var maxClock int64
	for _, pb := range doc.Bullets {
		if !s.hasSection(pb.Section) {
			return nil, fmt.Errorf("checkpoint references unknown section %q", pb.Section)
		}
		b := &bullet.Bullet{
			ID:           pb.ID,
			Section:      pb.Section,
			Content:      pb.Content,
			HelpfulCount: pb.HelpfulCount,
			HarmfulCount: pb.HarmfulCount,
			CreatedAt:    pb.CreatedAt,
			UpdatedAt:    pb.UpdatedAt,
		}
		s.live[pb.Section] = append(s.live[pb.Section], b)
		s.byID[pb.ID] = b
		if pb.UpdatedAt > maxClock {
			maxClock = pb.UpdatedAt
		}
	}
	s.clock = maxClock

	return s, nil
}
