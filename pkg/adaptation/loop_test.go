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

package adaptation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hungson175/ace/pkg/curator"
	"github.com/hungson175/ace/pkg/envplugin"
	"github.com/hungson175/ace/pkg/generator"
	"github.com/hungson175/ace/pkg/llmclient"
	"github.com/hungson175/ace/pkg/playbook"
	"github.com/hungson175/ace/pkg/reflector"
)

// queueLLM is a minimal llmclient.Client that hands out queued
// responses in order and errors once exhausted, shared by every role's
// tests in this package.
type queueLLM struct {
	mu        sync.Mutex
	responses []string
	calls     int
}

func (q *queueLLM) Generate(ctx context.Context, req llmclient.Request) (llmclient.Response, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.calls >= len(q.responses) {
		return llmclient.Response{}, errors.New("queueLLM: exhausted")
	}
	resp := llmclient.Response{Content: q.responses[q.calls]}
	q.calls++
	return resp, nil
}

func (q *queueLLM) ModelName() string { return "stub" }

func newTestStore() *playbook.Store {
	return playbook.New([]playbook.Section{{Name: "strategies", Prefix: "ctx"}})
}

const emptyGenResponse = `{"reasoning":"r","bullet_ids":[],"final_answer":"the answer"}`
const emptyReflResponse = `{"reasoning":"r","error_identification":"e","root_cause_analysis":"c","correct_approach":"a","key_insight":"k","bullet_tags":[]}`
const noOpCurResponse = `{"reasoning":"r","operations":[]}`

func addCurResponse(content string) string {
	return fmt.Sprintf(`{"reasoning":"r","operations":[{"type":"ADD","section":"strategies","content":%q}]}`, content)
}

func newTestLoop(genResponses, reflResponses, curResponses []string, eval envplugin.Evaluator) (*Loop, *playbook.Store) {
	store := newTestStore()
	gen := generator.New(store, &queueLLM{responses: genResponses}, nil, generator.Config{})
	refl := reflector.New(&queueLLM{responses: reflResponses}, reflector.Config{ExplicitMaxRounds: true, MaxRefinementRounds: 1})
	cur := curator.New(store, &queueLLM{responses: curResponses}, curator.Config{})
	return New(store, gen, refl, cur, eval, Config{}), store
}

func TestRunSampleHappyPathReachesDone(t *testing.T) {
	loop, store := newTestLoop(
		[]string{emptyGenResponse},
		[]string{emptyReflResponse},
		[]string{addCurResponse("new insight")},
		nil,
	)

	result := loop.runSample(context.Background(), Sample{ID: "s1", Query: "q"})

	assert.Equal(t, StateDone, result.State)
	assert.Equal(t, SkipNone, result.SkipReason)
	assert.Equal(t, "the answer", result.Prediction)
	assert.Len(t, result.Applied.AddedIDs, 1)
	assert.Equal(t, 1, store.TotalLiveCount())
}

func TestRunSampleSkipsOnGeneratorFatal(t *testing.T) {
	loop, _ := newTestLoop(nil, nil, nil, nil)

	result := loop.runSample(context.Background(), Sample{ID: "s1", Query: "q"})

	assert.Equal(t, StateSkipped, result.State)
	assert.Equal(t, SkipGeneratorFatal, result.SkipReason)
	assert.Error(t, result.Err)
}

func TestRunSampleSkipsOnReflectorParseErrorAfterRetry(t *testing.T) {
	loop, _ := newTestLoop(
		[]string{emptyGenResponse},
		[]string{"not json", "still not json"},
		nil,
		nil,
	)

	result := loop.runSample(context.Background(), Sample{ID: "s1", Query: "q"})

	assert.Equal(t, StateSkipped, result.State)
	assert.Equal(t, SkipReflectorParse, result.SkipReason)
	var parseErr *reflector.ParseError
	assert.True(t, errors.As(result.Err, &parseErr))
}

func TestRunSampleSkipsOnCuratorRejectedCollapse(t *testing.T) {
	store := newTestStore()
	gen := generator.New(store, &queueLLM{responses: []string{emptyGenResponse}}, nil, generator.Config{})
	refl := reflector.New(&queueLLM{responses: []string{emptyReflResponse}}, reflector.Config{ExplicitMaxRounds: true, MaxRefinementRounds: 1})

	// Seed 10 live bullets, then have the Curator try to UPDATE 4 of
	// them in one Delta (40% > the default 30% collapse guard).
	var ops []string
	for i := 0; i < 10; i++ {
		store.Apply(playbook.Delta{Operations: []playbook.Operation{{Type: playbook.OpAdd, Section: "strategies", Content: fmt.Sprintf("bullet %d", i)}}})
	}
	ids := make([]string, 0, 10)
	for _, b := range store.AllLive() {
		ids = append(ids, b.ID)
	}
	for i := 0; i < 4; i++ {
		ops = append(ops, fmt.Sprintf(`{"type":"UPDATE","id":%q,"content":"rewritten"}`, ids[i]))
	}
	curResp := fmt.Sprintf(`{"reasoning":"r","operations":[%s]}`, joinComma(ops))
	cur := curator.New(store, &queueLLM{responses: []string{curResp}}, curator.Config{})

	loop := New(store, gen, refl, cur, nil, Config{})
	result := loop.runSample(context.Background(), Sample{ID: "s1", Query: "q"})

	assert.Equal(t, StateSkipped, result.State)
	assert.Equal(t, SkipCollapseRejected, result.SkipReason)
	// Rejected Delta must never touch the store.
	for _, id := range ids[:4] {
		assert.NotEqual(t, "rewritten", store.Get(id).Content)
	}
}

func joinComma(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ","
		}
		out += p
	}
	return out
}

func TestRunOnlineEmitsPredictionBeforeCuratorCommits(t *testing.T) {
	loop, store := newTestLoop(
		[]string{emptyGenResponse, emptyGenResponse},
		[]string{emptyReflResponse, emptyReflResponse},
		[]string{addCurResponse("first"), addCurResponse("second")},
		nil,
	)

	var emitted []Predict
	var liveAtEmit []int
	summary, err := loop.RunOnline(context.Background(), []Sample{{ID: "s1", Query: "q1"}, {ID: "s2", Query: "q2"}}, func(p Predict) {
		emitted = append(emitted, p)
		liveAtEmit = append(liveAtEmit, store.TotalLiveCount())
	})

	require.NoError(t, err)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 2, summary.Done)
	require.Len(t, emitted, 2)
	assert.Equal(t, "s1", emitted[0].SampleID)
	assert.Equal(t, "s2", emitted[1].SampleID)
	// The first sample's prediction must be emitted before its own
	// Curator commit lands, i.e. while the store is still empty.
	assert.Equal(t, 0, liveAtEmit[0])
	// By the time the second sample predicts, the first's commit has
	// already landed (sequential online mode, predict-then-learn).
	assert.Equal(t, 1, liveAtEmit[1])
	assert.Equal(t, 2, store.TotalLiveCount())
}

func TestRunOfflineStopsWhenEpochCommitsNoChanges(t *testing.T) {
	loop, _ := newTestLoop(
		[]string{emptyGenResponse},
		[]string{emptyReflResponse},
		[]string{noOpCurResponse},
		nil,
	)

	summary, err := loop.RunOffline(context.Background(), OfflineConfig{MaxEpochs: 5}, []Sample{{ID: "s1", Query: "q"}})

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Total, "should stop after the first epoch makes no changes")
	assert.Equal(t, 1, summary.Done)
}

func TestRunOfflineStopsOnStalledValidationMetric(t *testing.T) {
	loop, _ := newTestLoop(
		[]string{emptyGenResponse, emptyGenResponse, emptyGenResponse},
		[]string{emptyReflResponse, emptyReflResponse, emptyReflResponse},
		[]string{addCurResponse("one"), addCurResponse("two"), addCurResponse("three")},
		nil,
	)

	cfg := OfflineConfig{
		MaxEpochs:        5,
		ValidationMetric: func(epoch int, store *playbook.Store) float64 { return 1.0 },
	}
	summary, err := loop.RunOffline(context.Background(), cfg, []Sample{{ID: "s1", Query: "q"}})

	require.NoError(t, err)
	// epoch 1 sets the baseline, epoch 2 stalls once, epoch 3 stalls
	// twice in a row and the loop stops before epoch 4.
	assert.Equal(t, 3, summary.Total)
}

func TestRunOfflineRejectsZeroMaxEpochs(t *testing.T) {
	loop, _ := newTestLoop(nil, nil, nil, nil)
	_, err := loop.RunOffline(context.Background(), OfflineConfig{MaxEpochs: 0}, nil)
	assert.Error(t, err)
}

func TestRunOfflineBatchedCommitsInArrivalOrder(t *testing.T) {
	loop, store := newTestLoop(
		[]string{emptyGenResponse, emptyGenResponse, emptyGenResponse},
		[]string{emptyReflResponse, emptyReflResponse, emptyReflResponse},
		[]string{addCurResponse("a"), addCurResponse("b"), addCurResponse("c")},
		nil,
	)

	samples := []Sample{{ID: "s1", Query: "q1"}, {ID: "s2", Query: "q2"}, {ID: "s3", Query: "q3"}}
	summary, err := loop.RunOffline(context.Background(), OfflineConfig{MaxEpochs: 1, BatchSize: 3}, samples)

	require.NoError(t, err)
	assert.Equal(t, 3, summary.Done)
	live := store.AllLive()
	require.Len(t, live, 3)
	// IDs were assigned in arrival order (ctx-00001..ctx-00003) even
	// though the three samples' LLM calls ran concurrently.
	assert.Equal(t, "a", live[0].Content)
	assert.Equal(t, "b", live[1].Content)
	assert.Equal(t, "c", live[2].Content)
}

func TestAttachFeedbackUsesEvaluatorVerdict(t *testing.T) {
	eval := &fakeEvaluator{resp: envplugin.Response{Passed: true, Diagnostics: "looks good", GroundTruth: "42"}}
	loop, _ := newTestLoop(
		[]string{emptyGenResponse},
		[]string{emptyReflResponse},
		nil,
		eval,
	)

	result := loop.runToReflection(context.Background(), Sample{ID: "s1", Query: "q", GroundTruth: ""})

	assert.True(t, result.Record.EnvironmentFeedback.Passed)
	assert.Equal(t, "looks good", result.Record.EnvironmentFeedback.Diagnostics["message"])
	assert.Equal(t, "42", result.Record.GroundTruth)
}

type fakeEvaluator struct {
	resp envplugin.Response
	err  error
}

func (f *fakeEvaluator) Evaluate(req envplugin.Request) (envplugin.Response, error) {
	return f.resp, f.err
}
