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

// Package vectorstore backs the grow-and-refine dedup sweep's candidate
// search (spec §4.5): instead of comparing every live bullet in a section
// against every other (O(n^2) cosine similarity), a configured Store
// narrows the comparison down to a plausible near-neighbor set per
// bullet. GrowAndRefine re-verifies candidates with exact cosine
// similarity, so a Store never causes a merge below the threshold; a
// near-duplicate pair it fails to return is never compared and stays live.
package vectorstore

import (
	"context"
	"fmt"
)

// Store indexes bullet embeddings per playbook section and serves
// near-neighbor candidate lookups. Its Candidates method has the exact
// signature of playbook.CandidateSource, so any Store satisfies that
// interface directly without an adapter.
type Store interface {
	// Upsert indexes (or re-indexes) a bullet's embedding under section.
	Upsert(ctx context.Context, section, id string, embedding []float32) error

	// Delete removes a bullet's embedding from the index. Called when a
	// bullet is tombstoned so later sweeps don't surface dead candidates.
	Delete(ctx context.Context, section, id string) error

	// Candidates returns up to topK bullet IDs in section whose indexed
	// embeddings are nearest to embedding, excluding id itself.
	Candidates(section, id string, embedding []float32, topK int) ([]string, error)

	// Close releases any resources (connections, file handles) held by
	// the backend.
	Close() error
}

// Config selects and configures one Store backend.
type Config struct {
	Type     string // "chromem", "qdrant", "pinecone"
	Chromem  *ChromemConfig
	Qdrant   *QdrantConfig
	Pinecone *PineconeConfig
}

// New constructs a Store from cfg. A nil or zero-value Config yields an
// in-memory chromem store, since that backend needs no external service.
func New(cfg Config) (Store, error) {
	switch cfg.Type {
	case "", "chromem":
		chromemCfg := ChromemConfig{}
		if cfg.Chromem != nil {
			chromemCfg = *cfg.Chromem
		}
		return newChromemStore(chromemCfg)
	case "qdrant":
		if cfg.Qdrant == nil {
			return nil, fmt.Errorf("vectorstore: qdrant configuration is required")
		}
		return newQdrantStore(*cfg.Qdrant)
	case "pinecone":
		if cfg.Pinecone == nil {
			return nil, fmt.Errorf("vectorstore: pinecone configuration is required")
		}
		return newPineconeStore(*cfg.Pinecone)
	default:
		return nil, fmt.Errorf("vectorstore: unknown backend type %q", cfg.Type)
	}
}
