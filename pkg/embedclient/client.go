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

// Package embedclient implements the Embedding Client (spec §6):
// `list[string] -> list[vector]`, used by grow-and-refine to compute
// bullet embeddings. Each provider lives in its own file behind the
// Client interface, mirroring pkg/llmclient's layout.
package embedclient

import (
	"context"
	"fmt"
)

// Client is the Embedding Client contract (spec §6).
type Client interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// Config configures a provider.
type Config struct {
	Type      string // "openai", "ollama", "cohere"
	Model     string
	APIKey    string
	Host      string
	Dimension int
	BatchSize int

	TimeoutSeconds    int
	MaxRetries        int
	RetryDelaySeconds int
}

// New constructs a Client for cfg.Type.
func New(cfg Config) (Client, error) {
	switch cfg.Type {
	case "openai":
		return newOpenAIEmbedder(cfg)
	case "ollama":
		return newOllamaEmbedder(cfg)
	case "cohere":
		return newCohereEmbedder(cfg)
	default:
		return nil, fmt.Errorf("unsupported embedding provider type %q (supported: openai, ollama, cohere)", cfg.Type)
	}
}

// AsPlaybookEmbedder adapts a Client to playbook.Embedder's function
// signature without pkg/playbook importing this package.
func AsPlaybookEmbedder(c Client) func(texts []string) ([][]float32, error) {
	return func(texts []string) ([][]float32, error) {
		return c.EmbedBatch(context.Background(), texts)
	}
}
