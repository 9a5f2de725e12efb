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

	"github.com/pinecone-io/go-pinecone/pinecone"
)

// PineconeConfig configures the Pinecone backend. Unlike chromem and
// Qdrant, Pinecone indexes must already exist (created via the Pinecone
// console or API) — IndexName names the index every section's bullets
// are upserted into, namespaced by section.
type PineconeConfig struct {
	APIKey    string
	Host      string
	IndexName string
}

type pineconeStore struct {
	client    *pinecone.Client
	indexName string
}

func newPineconeStore(cfg PineconeConfig) (*pineconeStore, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("vectorstore: pinecone API key is required")
	}
	params := pinecone.NewClientParams{ApiKey: cfg.APIKey}
	if cfg.Host != "" {
		params.Host = cfg.Host
	}
	client, err := pinecone.NewClient(params)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: failed to create pinecone client: %w", err)
	}
	indexName := cfg.IndexName
	if indexName == "" {
		indexName = "ace-bullets"
	}
	return &pineconeStore{client: client, indexName: indexName}, nil
}

func (s *pineconeStore) connect(ctx context.Context, namespace string) (*pinecone.IndexConnection, error) {
	index, err := s.client.DescribeIndex(ctx, s.indexName)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: failed to describe index %q: %w", s.indexName, err)
	}
	conn, err := s.client.Index(pinecone.NewIndexConnParams{Host: index.Host, Namespace: namespace})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: failed to connect to index %q: %w", s.indexName, err)
	}
	return conn, nil
}

func (s *pineconeStore) Upsert(ctx context.Context, section, id string, embedding []float32) error {
	conn, err := s.connect(ctx, section)
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = conn.UpsertVectors(ctx, []*pinecone.Vector{{Id: id, Values: embedding}})
	if err != nil {
		return fmt.Errorf("vectorstore: pinecone upsert failed: %w", err)
	}
	return nil
}

func (s *pineconeStore) Delete(ctx context.Context, section, id string) error {
	conn, err := s.connect(ctx, section)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.DeleteVectorsById(ctx, []string{id}); err != nil {
		return fmt.Errorf("vectorstore: pinecone delete failed: %w", err)
	}
	return nil
}

func (s *pineconeStore) Candidates(section, id string, embedding []float32, topK int) ([]string, error) {
	ctx := context.Background()
	conn, err := s.connect(ctx, section)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	resp, err := conn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector: embedding,
		TopK:   uint32(topK + 1),
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: pinecone query failed: %w", err)
	}

	ids := make([]string, 0, topK)
	for _, match := range resp.Matches {
		if match.Vector == nil || match.Vector.Id == id {
			continue
		}
		ids = append(ids, match.Vector.Id)
		if len(ids) == topK {
			break
		}
	}
	return ids, nil
}

func (s *pineconeStore) Close() error {
	return nil
}

var _ Store = (*pineconeStore)(nil)
