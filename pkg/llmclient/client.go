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

// Package llmclient implements the LLM Client (spec §6): a narrow,
// synchronous `{system_prompt, user_prompt, response_format, temperature,
// max_tokens} -> {content, usage}` contract used identically by the
// Generator, Reflector, and Curator. Each provider lives in its own file
// behind the Client interface, mirroring the teacher's pkg/llms layout.
package llmclient

import (
	"context"
	"fmt"
)

// Usage reports token consumption for one Generate call.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Request is the provider-agnostic LLM call shape every role issues.
type Request struct {
	SystemPrompt string
	UserPrompt   string

	// ResponseFormat is "text" or "json_object". Curator and Reflector
	// always request "json_object"; Generator may use either.
	ResponseFormat string

	Temperature float64
	MaxTokens   int
}

// Response is what a provider returns for a Request.
type Response struct {
	Content string
	Usage   Usage
}

// Client is the LLM Client contract (spec §6).
type Client interface {
	Generate(ctx context.Context, req Request) (Response, error)
	ModelName() string
}

// Config configures a provider, analogous to the teacher's
// config.LLMProviderConfig.
type Config struct {
	Type        string // "anthropic", "openai", "ollama", "gemini"
	Model       string
	APIKey      string
	Host        string
	Temperature float64
	MaxTokens   int

	TimeoutSeconds    int
	MaxRetries        int
	RetryDelaySeconds int
}

// New constructs a Client for cfg.Type.
func New(cfg Config) (Client, error) {
	switch cfg.Type {
	case "anthropic":
		return newAnthropicProvider(cfg)
	case "openai":
		return newOpenAIProvider(cfg)
	case "ollama":
		return newOllamaProvider(cfg)
	case "gemini":
		return newGeminiProvider(cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM provider type %q (supported: anthropic, openai, ollama, gemini)", cfg.Type)
	}
}

// Registry holds named Clients, e.g. one per role (generator/reflector/curator).
type Registry struct {
	clients map[string]Client
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]Client)}
}

// Register adds a named client, failing if the name is already taken.
func (r *Registry) Register(name string, c Client) error {
	if name == "" {
		return fmt.Errorf("llm client name cannot be empty")
	}
	if c == nil {
		return fmt.Errorf("llm client %q cannot be nil", name)
	}
	if _, exists := r.clients[name]; exists {
		return fmt.Errorf("llm client %q already registered", name)
	}
	r.clients[name] = c
	return nil
}

// Get returns the named client.
func (r *Registry) Get(name string) (Client, error) {
	c, ok := r.clients[name]
	if !ok {
		return nil, fmt.Errorf("llm client %q not registered", name)
	}
	return c, nil
}
