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

package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/hungson175/ace/pkg/httpclient"
)

type ollamaProvider struct {
	cfg    Config
	client *httpclient.Client
}

func newOllamaProvider(cfg Config) (*ollamaProvider, error) {
	if cfg.Host == "" {
		cfg.Host = "http://localhost:11434"
	}
	return &ollamaProvider{cfg: cfg, client: newHTTPClient(cfg, nil)}, nil
}

func (p *ollamaProvider) ModelName() string { return p.cfg.Model }

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaRequest struct {
	Model   string         `json:"model"`
	Stream  bool           `json:"stream"`
	Format  string         `json:"format,omitempty"`
	Options *ollamaOptions `json:"options,omitempty"`

	Messages []ollamaMessage `json:"messages"`
}

type ollamaResponse struct {
	Message         ollamaMessage `json:"message"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
	Error           string        `json:"error,omitempty"`
}

func (p *ollamaProvider) Generate(ctx context.Context, req Request) (Response, error) {
	messages := []ollamaMessage{}
	if req.SystemPrompt != "" {
		messages = append(messages, ollamaMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, ollamaMessage{Role: "user", Content: req.UserPrompt})

	body := ollamaRequest{
		Model:    p.cfg.Model,
		Stream:   false,
		Messages: messages,
		Options: &ollamaOptions{
			Temperature: req.Temperature,
			NumPredict:  firstNonZero(req.MaxTokens, p.cfg.MaxTokens, 4096),
		},
	}
	if req.ResponseFormat == "json_object" {
		body.Format = "json"
	}

	data, err := json.Marshal(body)
	if err != nil {
		return Response{}, fmt.Errorf("ollama: failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Host+"/api/chat", bytes.NewReader(data))
	if err != nil {
		return Response{}, fmt.Errorf("ollama: failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("ollama: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("ollama: failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Response{}, fmt.Errorf("ollama: HTTP %d: %s", resp.StatusCode, string(raw))
	}

	var out ollamaResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return Response{}, fmt.Errorf("ollama: failed to decode response: %w", err)
	}
	if out.Error != "" {
		return Response{}, fmt.Errorf("ollama: API error: %s", out.Error)
	}

	return Response{
		Content: out.Message.Content,
		Usage:   Usage{InputTokens: out.PromptEvalCount, OutputTokens: out.EvalCount},
	}, nil
}
