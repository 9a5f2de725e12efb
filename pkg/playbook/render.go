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
	"strings"

	"github.com/hungson175/ace/pkg/bullet"
)

// Render produces the Generator-facing playbook view (spec §4.1).
//
// Each bullet is rendered as "[<id>] helpful=<h> harmful=<n> :: <content>"
// within its section header. Section order is the Store's configured
// order; within a section, live bullets render in insertion order. If
// sections is non-empty, only those sections (in the order given) are
// rendered; an empty/nil sections renders everything in configured order.
func (s *Store) Render(sections ...string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.renderLocked(sections)
}

// renderLocked is Render's body without locking; callers must already
// hold at least a read lock (used internally by GrowAndRefine's budget
// check, which holds the write lock).
func (s *Store) renderLocked(sections []string) string {
	order := s.sections
	if len(sections) > 0 {
		order = make([]Section, 0, len(sections))
		for _, name := range sections {
			if sec, ok := s.byName[name]; ok {
				order = append(order, sec)
			}
		}
	}

	var b strings.Builder
	for _, sec := range order {
		live := s.live[sec.Name]
		fmt.Fprintf(&b, "## %s\n", sec.Name)
		if len(live) == 0 {
			b.WriteString("(empty)\n\n")
			continue
		}
		for _, bul := range live {
			fmt.Fprintf(&b, "[%s] helpful=%d harmful=%d :: %s\n", bul.ID, bul.HelpfulCount, bul.HarmfulCount, bul.Content)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// SnapshotForReflector returns copies of the cited bullets, in the order
// they appear in the playbook's render order (section order, then
// insertion order within section) — spec §4.1. Unknown or tombstoned IDs
// are silently omitted, matching the Generator's citation-dropping rule
// (spec §4.4).
func (s *Store) SnapshotForReflector(citedIDs []string) []*bullet.Bullet {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cited := make(map[string]struct{}, len(citedIDs))
	for _, id := range citedIDs {
		cited[id] = struct{}{}
	}

	out := make([]*bullet.Bullet, 0, len(citedIDs))
	for _, sec := range s.sections {
		for _, bul := range s.live[sec.Name] {
			if _, ok := cited[bul.ID]; ok {
				out = append(out, bul.Clone())
			}
		}
	}
	return out
}

// Get returns a copy of the live bullet with id, or nil if it does not
// exist or is tombstoned.
func (s *Store) Get(id string) *bullet.Bullet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byID[id].Clone()
}

// AllLive returns copies of every live bullet in render order.
func (s *Store) AllLive() []*bullet.Bullet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*bullet.Bullet
	for _, sec := range s.sections {
		for _, bul := range s.live[sec.Name] {
			out = append(out, bul.Clone())
		}
	}
	return out
}
