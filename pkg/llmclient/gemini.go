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
	"context"
	"fmt"

	"google.golang.org/genai"
)

// geminiProvider wraps the official google.golang.org/genai SDK, unlike
// the other providers here which speak raw HTTP through pkg/httpclient —
// Gemini's structured-output and safety-setting surface is large enough
// that hand-rolling the wire format isn't worth it when a maintained
// client library is available.
type geminiProvider struct {
	cfg    Config
	client *genai.Client
}

func newGeminiProvider(cfg Config) (*geminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: failed to create client: %w", err)
	}
	return &geminiProvider{cfg: cfg, client: client}, nil
}

func (p *geminiProvider) ModelName() string { return p.cfg.Model }

func (p *geminiProvider) Generate(ctx context.Context, req Request) (Response, error) {
	temperature := float32(req.Temperature)
	maxTokens := int32(firstNonZero(req.MaxTokens, p.cfg.MaxTokens, 4096))

	genConfig := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: maxTokens,
	}
	if req.SystemPrompt != "" {
		genConfig.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if req.ResponseFormat == "json_object" {
		genConfig.ResponseMIMEType = "application/json"
	}

	result, err := p.client.Models.GenerateContent(ctx, p.cfg.Model, genai.Text(req.UserPrompt), genConfig)
	if err != nil {
		return Response{}, fmt.Errorf("gemini: request failed: %w", err)
	}
	if len(result.Candidates) == 0 {
		return Response{}, fmt.Errorf("gemini: response contained no candidates")
	}

	var usage Usage
	if result.UsageMetadata != nil {
		usage = Usage{
			InputTokens:  int(result.UsageMetadata.PromptTokenCount),
			OutputTokens: int(result.UsageMetadata.CandidatesTokenCount),
		}
	}

	return Response{Content: result.Text(), Usage: usage}, nil
}
