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

package generator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hungson175/ace/pkg/llmclient"
	"github.com/hungson175/ace/pkg/playbook"
)

type stubLLM struct {
	responses []string
	calls     int
}

func (s *stubLLM) Generate(ctx context.Context, req llmclient.Request) (llmclient.Response, error) {
	if s.calls >= len(s.responses) {
		return llmclient.Response{}, errors.New("stubLLM: no more queued responses")
	}
	resp := llmclient.Response{Content: s.responses[s.calls]}
	s.calls++
	return resp, nil
}

func (s *stubLLM) ModelName() string { return "stub" }

type stubTools struct {
	tools     []Tool
	callLog   []string
	responses map[string]string
}

func (s *stubTools) ListTools(ctx context.Context) ([]Tool, error) { return s.tools, nil }

func (s *stubTools) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	s.callLog = append(s.callLog, name)
	return s.responses[name], nil
}

func newTestStore(t *testing.T) *playbook.Store {
	t.Helper()
	store := playbook.New([]playbook.Section{{Name: "strategies", Prefix: "ctx"}})
	res := store.Apply(playbook.Delta{Operations: []playbook.Operation{
		{Type: playbook.OpAdd, Section: "strategies", Content: "check the phone app for roommate contacts"},
	}})
	require.Len(t, res.AddedIDs, 1)
	return store
}

func TestGenerateSingleShotCitesKnownBulletsOnly(t *testing.T) {
	store := newTestStore(t)
	liveID := store.AllLive()[0].ID

	respJSON := `{"reasoning":"used the contacts bullet","bullet_ids":["` + liveID + `","ghost-99"],"final_answer":"1068.0"}`
	llm := &stubLLM{responses: []string{respJSON}}

	g := New(store, llm, nil, Config{})
	result, err := g.Generate(context.Background(), "find money sent to roommates", nil)
	require.NoError(t, err)
	assert.Equal(t, "1068.0", result.Output)
	assert.Equal(t, []string{liveID}, result.CitedBulletIDs)
}

func TestGenerateSingleShotFallsBackToRawTextOnMalformedJSON(t *testing.T) {
	store := newTestStore(t)
	llm := &stubLLM{responses: []string{"the answer is 42"}}

	g := New(store, llm, nil, Config{})
	result, err := g.Generate(context.Background(), "what is the answer", nil)
	require.NoError(t, err)
	assert.Equal(t, "the answer is 42", result.Output)
	assert.Nil(t, result.CitedBulletIDs)
}

func TestGenerateAgenticDrivesLoopUntilCompleteTask(t *testing.T) {
	store := newTestStore(t)
	liveID := store.AllLive()[0].ID

	tools := &stubTools{
		tools:     []Tool{{Name: "lookup_contacts", Description: "look up roommate contacts"}},
		responses: map[string]string{"lookup_contacts": "alice, bob"},
	}

	llm := &stubLLM{responses: []string{
		`{"reasoning":"need contacts","bullet_ids":["` + liveID + `"],"tool_call":{"name":"lookup_contacts","arguments":{}}}`,
		`{"reasoning":"done","bullet_ids":[],"tool_call":{"name":"complete_task"},"final_answer":"1068.0"}`,
	}}

	g := New(store, llm, tools, Config{})
	result, err := g.Generate(context.Background(), "find money sent to roommates", nil)
	require.NoError(t, err)
	assert.Contains(t, result.Output, "1068.0")
	assert.Equal(t, []string{"lookup_contacts"}, tools.callLog)
	assert.Equal(t, []string{liveID}, result.CitedBulletIDs)
}

func TestGenerateAgenticStopsAtMaxToolSteps(t *testing.T) {
	store := newTestStore(t)

	tools := &stubTools{
		tools:     []Tool{{Name: "loop_forever"}},
		responses: map[string]string{"loop_forever": "..."},
	}

	resp := `{"reasoning":"again","bullet_ids":[],"tool_call":{"name":"loop_forever","arguments":{}}}`
	responses := make([]string, 3)
	for i := range responses {
		responses[i] = resp
	}
	llm := &stubLLM{responses: responses}

	g := New(store, llm, tools, Config{MaxToolSteps: 3})
	result, err := g.Generate(context.Background(), "never finishes", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, llm.calls)
	assert.Len(t, tools.callLog, 3)
	assert.Empty(t, result.CitedBulletIDs)
}
