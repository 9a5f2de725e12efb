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

package metrics

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordMethodsAreNilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordSample("done")
		m.RecordDelta("add", 3)
		m.RecordCollapseRejected()
		m.RecordLLMCall("generator", time.Millisecond, errors.New("boom"))
	})
}

func TestHandlerServesRegisteredCounters(t *testing.T) {
	m := New("ace_test")
	m.RecordSample("done")
	m.RecordLLMCall("generator", 10*time.Millisecond, nil)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "ace_test_adaptation_samples_total")
	assert.Contains(t, body, "ace_test_llm_calls_total")
}

func TestNilMetricsHandlerServesUnavailable(t *testing.T) {
	var m *Metrics
	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)
	assert.Equal(t, 503, rec.Code)
}

func TestGlobalDefaultsToNilAndIsSettable(t *testing.T) {
	SetGlobal(nil)
	assert.Nil(t, Global())

	m := New("ace_test_global")
	SetGlobal(m)
	assert.Same(t, m, Global())
	SetGlobal(nil)
}
