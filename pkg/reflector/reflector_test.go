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

package reflector

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hungson175/ace/pkg/bullet"
	"github.com/hungson175/ace/pkg/llmclient"
	"github.com/hungson175/ace/pkg/trajectory"
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

func sampleRecord() trajectory.Record {
	return trajectory.Record{
		ID:              "traj-1",
		Query:           "find money sent to roommates since Jan 1",
		GeneratorOutput: "SELECT * FROM transactions WHERE description LIKE '%roommate%'",
		CitedBulletIDs:  []string{"ctx-1"},
		EnvironmentFeedback: trajectory.EnvironmentFeedback{
			Passed:      false,
			Diagnostics: map[string]any{"expected": 1068.0, "got": 79.0},
		},
		GroundTruth: "1068.0",
	}
}

func TestReflectWithZeroRoundsCallsExactlyOnce(t *testing.T) {
	bundleJSON := `{"reasoning":"r","error_identification":"e","root_cause_analysis":"rc","correct_approach":"ca","key_insight":"ki","bullet_tags":[{"id":"ctx-1","tag":"harmful"}]}`
	llm := &stubLLM{responses: []string{bundleJSON}}

	r := New(llm, Config{MaxRefinementRounds: 0, ExplicitMaxRounds: true})
	bundle, err := r.Reflect(context.Background(), sampleRecord(), []*bullet.Bullet{{ID: "ctx-1", Content: "use transaction description"}})
	require.NoError(t, err)
	assert.Equal(t, 1, llm.calls)
	assert.Equal(t, "ki", bundle.KeyInsight)
	require.Len(t, bundle.BulletTags, 1)
	assert.Equal(t, bullet.TagHarmful, bundle.BulletTags[0].Tag)
}

func TestReflectStopsEarlyOnByteIdenticalConsecutiveRounds(t *testing.T) {
	bundleJSON := `{"reasoning":"r","error_identification":"e","root_cause_analysis":"rc","correct_approach":"ca","key_insight":"ki","bullet_tags":[]}`
	// Same response three times in a row: round 1 has no predecessor to
	// compare against, round 2 matches round 1 byte-for-byte and should
	// stop the loop, so only 2 of the 5 allowed calls are ever made.
	llm := &stubLLM{responses: []string{bundleJSON, bundleJSON, bundleJSON}}

	r := New(llm, Config{})
	bundle, err := r.Reflect(context.Background(), sampleRecord(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, llm.calls)
	assert.Equal(t, "ki", bundle.KeyInsight)
}

func TestReflectIteratesUpToConfiguredMaxRounds(t *testing.T) {
	llm := &stubLLM{responses: []string{
		`{"key_insight":"v1","bullet_tags":[]}`,
		`{"key_insight":"v2","bullet_tags":[]}`,
		`{"key_insight":"v3","bullet_tags":[]}`,
	}}

	r := New(llm, Config{MaxRefinementRounds: 3, ExplicitMaxRounds: true})
	bundle, err := r.Reflect(context.Background(), sampleRecord(), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, llm.calls)
	assert.Equal(t, "v3", bundle.KeyInsight)
}

func TestReflectRetriesOnceOnMalformedJSONThenSucceeds(t *testing.T) {
	llm := &stubLLM{responses: []string{
		"not json",
		`{"key_insight":"recovered","bullet_tags":[]}`,
	}}

	r := New(llm, Config{MaxRefinementRounds: 1, ExplicitMaxRounds: true})
	bundle, err := r.Reflect(context.Background(), sampleRecord(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, llm.calls)
	assert.Equal(t, "recovered", bundle.KeyInsight)
}

func TestReflectReturnsParseErrorAfterSecondMalformedResponse(t *testing.T) {
	llm := &stubLLM{responses: []string{"nope", "still nope"}}

	r := New(llm, Config{MaxRefinementRounds: 1, ExplicitMaxRounds: true})
	_, err := r.Reflect(context.Background(), sampleRecord(), nil)
	require.Error(t, err)

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.False(t, parseErr.IsRetryable())
}
