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

package curator

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hungson175/ace/pkg/llmclient"
	"github.com/hungson175/ace/pkg/playbook"
	"github.com/hungson175/ace/pkg/trajectory"
)

// stubLLM returns queued responses in order, one per call to Generate.
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

func newTestStore() *playbook.Store {
	return playbook.New([]playbook.Section{
		{Name: "strategies", Prefix: "ctx"},
		{Name: "checklist", Prefix: "chk"},
	})
}

func seedBullets(t *testing.T, store *playbook.Store, section string, n int) []string {
	t.Helper()
	ops := make([]playbook.Operation, n)
	for i := 0; i < n; i++ {
		ops[i] = playbook.Operation{Type: playbook.OpAdd, Section: section, Content: fmt.Sprintf("bullet %d", i)}
	}
	res := store.Apply(playbook.Delta{Operations: ops})
	require.Len(t, res.AddedIDs, n)
	return res.AddedIDs
}

func TestCurateCommitsHappyPathAndProactivelyRefines(t *testing.T) {
	store := newTestStore()
	deltaJSON := `{"reasoning":"add a new rule","operations":[{"type":"ADD","section":"strategies","content":"always check bounds"}]}`
	llm := &stubLLM{responses: []string{deltaJSON}}

	c := New(store, llm, Config{Policy: playbook.PolicyProactive})
	result, err := c.Curate(context.Background(), trajectory.InsightBundle{KeyInsight: "off-by-one bug"})
	require.NoError(t, err)
	require.Nil(t, result.Rejected)
	assert.Len(t, result.Applied.AddedIDs, 1)
	assert.Equal(t, 1, store.LiveCount("strategies"))
	assert.Equal(t, 1, llm.calls)
}

func TestCurateRetriesOnceOnMalformedJSONThenSucceeds(t *testing.T) {
	store := newTestStore()
	llm := &stubLLM{responses: []string{
		"not json at all",
		`{"reasoning":"ok now","operations":[{"type":"ADD","section":"checklist","content":"verify output"}]}`,
	}}

	c := New(store, llm, Config{})
	result, err := c.Curate(context.Background(), trajectory.InsightBundle{})
	require.NoError(t, err)
	assert.Len(t, result.Applied.AddedIDs, 1)
	assert.Equal(t, 2, llm.calls)
}

func TestCurateReturnsParseErrorAfterSecondMalformedResponse(t *testing.T) {
	store := newTestStore()
	llm := &stubLLM{responses: []string{"still not json", "nope, also not json"}}

	c := New(store, llm, Config{})
	_, err := c.Curate(context.Background(), trajectory.InsightBundle{})
	require.Error(t, err)

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.False(t, parseErr.IsRetryable())
	assert.Equal(t, 0, store.TotalLiveCount())
}

func TestCurateRejectsDeltaThatRewritesTooManyBulletsInOneSection(t *testing.T) {
	store := newTestStore()
	ids := seedBullets(t, store, "strategies", 10)

	// Threshold defaults to 30%; touching 4/10 bullets in one section is
	// 40%, which must trip the guard and leave the playbook untouched.
	var ops []string
	for i := 0; i < 4; i++ {
		ops = append(ops, fmt.Sprintf(`{"type":"UPDATE","id":"%s","content":"rewritten"}`, ids[i]))
	}
	deltaJSON := fmt.Sprintf(`{"reasoning":"overhaul","operations":[%s]}`, joinJSON(ops))
	llm := &stubLLM{responses: []string{deltaJSON}}

	c := New(store, llm, Config{})
	result, err := c.Curate(context.Background(), trajectory.InsightBundle{})
	require.NoError(t, err)
	require.NotNil(t, result.Rejected)
	assert.Equal(t, "strategies", result.Rejected.Section)
	assert.Equal(t, 4, result.Rejected.TouchedCount)
	assert.Equal(t, 10, result.Rejected.LiveCount)

	for i, id := range ids {
		b := store.Get(id)
		require.NotNil(t, b)
		assert.Equal(t, fmt.Sprintf("bullet %d", i), b.Content)
	}
	assert.Equal(t, 10, store.LiveCount("strategies"))
}

func TestCurateAllowsDeltaWithinCollapseGuardThreshold(t *testing.T) {
	store := newTestStore()
	ids := seedBullets(t, store, "strategies", 10)

	// 2/10 = 20%, under the default 30% threshold.
	deltaJSON := fmt.Sprintf(`{"operations":[{"type":"DELETE","id":"%s"},{"type":"DELETE","id":"%s"}]}`, ids[0], ids[1])
	llm := &stubLLM{responses: []string{deltaJSON}}

	c := New(store, llm, Config{})
	result, err := c.Curate(context.Background(), trajectory.InsightBundle{})
	require.NoError(t, err)
	require.Nil(t, result.Rejected)
	assert.Len(t, result.Applied.DeletedIDs, 2)
	assert.Equal(t, 8, store.LiveCount("strategies"))
}

func TestCurateHonorsConfiguredCollapseGuardPct(t *testing.T) {
	store := newTestStore()
	ids := seedBullets(t, store, "strategies", 10)

	deltaJSON := fmt.Sprintf(`{"operations":[{"type":"DELETE","id":"%s"}]}`, ids[0])
	llm := &stubLLM{responses: []string{deltaJSON}}

	// 1/10 = 10%, which exceeds a tightened 5% threshold.
	c := New(store, llm, Config{CollapseGuardPct: 5})
	result, err := c.Curate(context.Background(), trajectory.InsightBundle{})
	require.NoError(t, err)
	require.NotNil(t, result.Rejected)
	assert.Equal(t, 5.0, result.Rejected.ThresholdPct)
}

func joinJSON(items []string) string {
	out := ""
	for i, s := range items {
		if i > 0 {
			out += ","
		}
		out += s
	}
	return out
}
