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

import "github.com/hungson175/ace/pkg/metrics"

// Summary is the only thing a run reports upward (spec §7: "the loop
// surfaces only a run summary {total, done, skipped_by_reason}").
type Summary struct {
	Total           int
	Done            int
	SkippedByReason map[SkipReason]int
}

func newSummary() Summary {
	return Summary{SkippedByReason: map[SkipReason]int{}}
}

// record tallies result into the summary and, every sample's single
// terminal point regardless of online/offline mode, reports its
// outcome to the global Metrics instance (a no-op until cmd/ace wires
// one in via metrics.SetGlobal).
func (s *Summary) record(result SampleResult) {
	s.Total++
	if result.done() {
		s.Done++
		metrics.Global().RecordSample("done")
		return
	}
	reason := result.SkipReason
	if reason == SkipNone {
		reason = SkipCancelled
	}
	s.SkippedByReason[reason]++
	metrics.Global().RecordSample(string(reason))
}
