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

// Package tokencount counts tokens in rendered playbook text, backing
// budget_tokens (spec §4.1, §4.5). It wraps tiktoken-go so every caller
// counts against the same encoding instead of approximating with a
// character-per-token ratio.
package tokencount

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// defaultEncoding is used for every model family ACE talks to; none of
// the providers wired into pkg/llmclient publish their own tokenizer, so
// cl100k_base is the closest available approximation across them.
const defaultEncoding = "cl100k_base"

var (
	cacheMu  sync.RWMutex
	cached   *tiktoken.Tiktoken
	cacheErr error
)

// Counter counts tokens in text for a single encoding.
type Counter struct {
	encoding *tiktoken.Tiktoken
}

// New returns a Counter using the shared default encoding, initializing it
// on first use and reusing it for every subsequent call.
func New() (*Counter, error) {
	cacheMu.RLock()
	enc, err := cached, cacheErr
	cacheMu.RUnlock()
	if enc != nil || err != nil {
		return &Counter{encoding: enc}, err
	}

	cacheMu.Lock()
	defer cacheMu.Unlock()
	if cached == nil && cacheErr == nil {
		cached, cacheErr = tiktoken.GetEncoding(defaultEncoding)
		if cacheErr != nil {
			cacheErr = fmt.Errorf("failed to load token encoding %q: %w", defaultEncoding, cacheErr)
		}
	}
	return &Counter{encoding: cached}, cacheErr
}

// Count returns the number of tokens in text.
func (c *Counter) Count(text string) int {
	if c == nil || c.encoding == nil {
		return len(text) / 4
	}
	return len(c.encoding.Encode(text, nil, nil))
}

// AsPlaybookCounter adapts Count to playbook.TokenCounter's function
// signature without pkg/playbook importing tiktoken-go directly.
func (c *Counter) AsPlaybookCounter() func(string) int {
	return c.Count
}
