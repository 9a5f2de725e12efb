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
	"strings"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantConfig configures the Qdrant backend. Each playbook section maps
// to one Qdrant collection, created on first upsert.
type QdrantConfig struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool
}

type qdrantStore struct {
	client *qdrant.Client
}

func newQdrantStore(cfg QdrantConfig) (*qdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: failed to create qdrant client for %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return &qdrantStore{client: client}, nil
}

func (s *qdrantStore) ensureCollection(ctx context.Context, section string, dim int) error {
	exists, err := s.client.CollectionExists(ctx, section)
	if err != nil {
		return fmt.Errorf("vectorstore: failed to check collection %q: %w", section, err)
	}
	if exists {
		return nil
	}
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: section,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dim),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return fmt.Errorf("vectorstore: failed to create collection %q: %w", section, err)
	}
	return nil
}

func (s *qdrantStore) Upsert(ctx context.Context, section, id string, embedding []float32) error {
	if err := s.ensureCollection(ctx, section, len(embedding)); err != nil {
		return err
	}

	bulletIDValue, err := qdrant.NewValue(id)
	if err != nil {
		return fmt.Errorf("vectorstore: failed to encode bullet id payload: %w", err)
	}
	point := &qdrant.PointStruct{
		Id:      qdrant.NewIDNum(bulletPointID(id)),
		Vectors: qdrant.NewVectors(embedding...),
		Payload: map[string]*qdrant.Value{"bullet_id": bulletIDValue},
	}
	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: section,
		Points:         []*qdrant.PointStruct{point},
	})
	if err != nil {
		return fmt.Errorf("vectorstore: qdrant upsert failed: %w", err)
	}
	return nil
}

func (s *qdrantStore) Delete(ctx context.Context, section, id string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: section,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{Ids: []*qdrant.PointId{qdrant.NewIDNum(bulletPointID(id))}},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("vectorstore: qdrant delete failed: %w", err)
	}
	return nil
}

func (s *qdrantStore) Candidates(section, id string, embedding []float32, topK int) ([]string, error) {
	ctx := context.Background()
	pointsClient := s.client.GetPointsClient()
	resp, err := pointsClient.Search(ctx, &qdrant.SearchPoints{
		CollectionName: section,
		Vector:         embedding,
		Limit:          uint64(topK + 1),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: qdrant search failed: %w", err)
	}

	ids := make([]string, 0, topK)
	for _, point := range resp.GetResult() {
		bulletID := bulletIDFromPayload(point.GetPayload())
		if bulletID == "" || bulletID == id {
			continue
		}
		ids = append(ids, bulletID)
		if len(ids) == topK {
			break
		}
	}
	return ids, nil
}

func (s *qdrantStore) Close() error {
	return s.client.Close()
}

// bulletPointID derives a stable numeric point ID from a bullet ID string,
// since Qdrant points are addressed by UUID or uint64 and ACE bullet IDs
// are neither. The bullet ID itself travels in the point payload and is
// what Candidates returns.
func bulletPointID(id string) uint64 {
	var h uint64 = 14695981039346656037
	for i := 0; i < len(id); i++ {
		h ^= uint64(id[i])
		h *= 1099511628211
	}
	return h
}

func bulletIDFromPayload(payload map[string]*qdrant.Value) string {
	v, ok := payload["bullet_id"]
	if !ok {
		return ""
	}
	return v.GetStringValue()
}

var _ Store = (*qdrantStore)(nil)
