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

package vectorstore

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/philippgille/chromem-go"
)

// ChromemConfig configures the embedded chromem-go backend. It requires
// no external service, so it's the default for development and for
// playbooks small enough to keep entirely in memory.
type ChromemConfig struct {
	// PersistPath, if set, persists the index to this directory (gob,
	// optionally gzip-compressed) so it survives process restarts.
	PersistPath string
	Compress    bool
}

type chromemStore struct {
	db       *chromem.DB
	cfg      ChromemConfig
	mu       sync.Mutex
	sections map[string]*chromem.Collection
}

// identityEmbed signals that chromem should never compute embeddings
// itself — every vector indexed here is already precomputed by
// pkg/embedclient.
func identityEmbed(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("vectorstore: embedding requested from chromem but vectors must be precomputed")
}

func newChromemStore(cfg ChromemConfig) (*chromemStore, error) {
	var db *chromem.DB

	if cfg.PersistPath == "" {
		db = chromem.NewDB()
		return &chromemStore{db: db, cfg: cfg, sections: make(map[string]*chromem.Collection)}, nil
	}

	if err := os.MkdirAll(cfg.PersistPath, 0o755); err != nil {
		return nil, fmt.Errorf("vectorstore: failed to create persist directory: %w", err)
	}
	dbPath := cfg.PersistPath + "/bullets.gob"
	if cfg.Compress {
		dbPath += ".gz"
	}
	if _, err := os.Stat(dbPath); err == nil {
		loaded, err := chromem.NewPersistentDB(dbPath, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("vectorstore: failed to load persisted index: %w", err)
		}
		db = loaded
	} else {
		db = chromem.NewDB()
	}

	return &chromemStore{db: db, cfg: cfg, sections: make(map[string]*chromem.Collection)}, nil
}

func (s *chromemStore) collection(section string) (*chromem.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if col, ok := s.sections[section]; ok {
		return col, nil
	}
	col, err := s.db.GetOrCreateCollection(section, nil, identityEmbed)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: failed to get/create section %q: %w", section, err)
	}
	s.sections[section] = col
	return col, nil
}

func (s *chromemStore) Upsert(ctx context.Context, section, id string, embedding []float32) error {
	col, err := s.collection(section)
	if err != nil {
		return err
	}
	doc := chromem.Document{ID: id, Embedding: embedding}
	if err := col.AddDocuments(ctx, []chromem.Document{doc}, runtime.NumCPU()); err != nil {
		return fmt.Errorf("vectorstore: chromem upsert failed: %w", err)
	}
	return s.persist()
}

func (s *chromemStore) Delete(ctx context.Context, section, id string) error {
	col, err := s.collection(section)
	if err != nil {
		return err
	}
	if err := col.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("vectorstore: chromem delete failed: %w", err)
	}
	return s.persist()
}

func (s *chromemStore) Candidates(section, id string, embedding []float32, topK int) ([]string, error) {
	col, err := s.collection(section)
	if err != nil {
		return nil, err
	}

	// Ask for one extra result since the bullet itself (already
	// indexed) is almost always its own nearest neighbor.
	n := topK + 1
	if count := col.Count(); n > count {
		n = count
	}
	if n == 0 {
		return nil, nil
	}

	results, err := col.QueryEmbedding(context.Background(), embedding, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: chromem query failed: %w", err)
	}

	ids := make([]string, 0, topK)
	for _, r := range results {
		if r.ID == id {
			continue
		}
		ids = append(ids, r.ID)
		if len(ids) == topK {
			break
		}
	}
	return ids, nil
}

func (s *chromemStore) Close() error {
	return s.persist()
}

func (s *chromemStore) persist() error {
	if s.cfg.PersistPath == "" {
		return nil
	}
	dbPath := s.cfg.PersistPath + "/bullets.gob"
	if s.cfg.Compress {
		dbPath += ".gz"
	}
	//nolint:staticcheck // chromem.DB.Export is the only persistence API available.
	if err := s.db.Export(dbPath, s.cfg.Compress, ""); err != nil {
		return fmt.Errorf("vectorstore: failed to persist index: %w", err)
	}
	return nil
}

var _ Store = (*chromemStore)(nil)
