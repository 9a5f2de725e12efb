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

package embedclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/hungson175/ace/pkg/httpclient"
)

var cohereDimensions = map[string]int{
	"embed-english-v3.0":            1024,
	"embed-multilingual-v3.0":       1024,
	"embed-english-light-v3.0":      384,
	"embed-multilingual-light-v3.0": 384,
}

type cohereEmbedder struct {
	cfg    Config
	client *httpclient.Client
}

func newCohereEmbedder(cfg Config) (*cohereEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("cohere embedder: API key is required")
	}
	if cfg.Host == "" {
		cfg.Host = "https://api.cohere.ai/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "embed-english-v3.0"
	}
	if cfg.Dimension == 0 {
		if dim, ok := cohereDimensions[cfg.Model]; ok {
			cfg.Dimension = dim
		} else {
			cfg.Dimension = 1024
		}
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 96
	}
	return &cohereEmbedder{cfg: cfg, client: newHTTPClient(cfg, httpclient.ParseCohereHeaders)}, nil
}

func (e *cohereEmbedder) Dimension() int { return e.cfg.Dimension }

type cohereEmbeddingRequest struct {
	Model     string   `json:"model"`
	Texts     []string `json:"texts"`
	InputType string   `json:"input_type"`
}

type cohereEmbeddingResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Message    string      `json:"message,omitempty"`
}

func (e *cohereEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.cfg.BatchSize {
		end := start + e.cfg.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		chunk, err := e.embedChunk(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, chunk...)
	}
	return out, nil
}

func (e *cohereEmbedder) embedChunk(ctx context.Context, texts []string) ([][]float32, error) {
	body := cohereEmbeddingRequest{Model: e.cfg.Model, Texts: texts, InputType: "search_document"}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("cohere embedder: failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.Host+"/embed", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("cohere embedder: failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("cohere embedder: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("cohere embedder: failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cohere embedder: HTTP %d: %s", resp.StatusCode, string(raw))
	}

	var out cohereEmbeddingResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("cohere embedder: failed to decode response: %w", err)
	}
	if out.Message != "" && len(out.Embeddings) == 0 {
		return nil, fmt.Errorf("cohere embedder: API error: %s", out.Message)
	}
	if len(out.Embeddings) != len(texts) {
		return nil, fmt.Errorf("cohere embedder: expected %d embeddings, got %d", len(texts), len(out.Embeddings))
	}

	return out.Embeddings, nil
}
