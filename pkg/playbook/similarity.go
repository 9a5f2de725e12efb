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
	"math"

	"github.com/hungson175/ace/pkg/bullet"
)

// cosineSimilarity returns the cosine similarity of a and b, or -1 if
// either vector is empty, missing, or of mismatched length (treated as
// "never similar", never as a crash — a missing embedding must never
// silently merge two unrelated bullets).
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return -1
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return -1
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// unionFind is a minimal disjoint-set structure over bullet IDs, used to
// group near-duplicate bullets into connected components (spec §4.5
// step 2-3).
type unionFind struct {
	parent map[string]string
}

func newUnionFind(bullets []*bullet.Bullet) *unionFind {
	uf := &unionFind{parent: make(map[string]string, len(bullets))}
	for _, b := range bullets {
		uf.parent[b.ID] = b.ID
	}
	return uf
}

// find returns the representative of id's component, path-compressing
// along the way.
func (uf *unionFind) find(id string) string {
	root := id
	for uf.parent[root] != root {
		root = uf.parent[root]
	}
	for id != root {
		id, uf.parent[id] = uf.parent[id], root
	}
	return root
}

// union merges the components containing a and b.
func (uf *unionFind) union(a, b string) {
	ra, rb := uf.find(a), uf.find(b)
	if ra != rb {
		uf.parent[ra] = rb
	}
}

// components returns the current grouping as a slice of ID groups.
func (uf *unionFind) components() [][]string {
	groups := make(map[string][]string)
	for id := range uf.parent {
		root := uf.find(id)
		groups[root] = append(groups[root], id)
	}
	out := make([][]string, 0, len(groups))
	for _, g := range groups {
		out = append(out, g)
	}
	return out
}
