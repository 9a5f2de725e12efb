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

import "fmt"

// ParseError is returned when the Curator's LLM response is not valid
// JSON (or doesn't match the expected Delta shape) after one re-ask
// (spec §7: "malformed JSON after one re-ask: sample SKIPPED").
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("curator: failed to parse delta JSON: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsRetryable reports whether the caller should re-ask the LLM. ParseError
// is only ever returned after the one allowed re-ask already happened, so
// it is never itself retryable.
func (e *ParseError) IsRetryable() bool { return false }

// RejectedCollapse is returned when a Delta fails the no-regeneration
// rule (spec §4.2 item 3, §8 invariant 5): it rewrites more than the
// configured percentage of live bullets in some section in one shot,
// a suspected context-collapse event. The playbook is left unchanged.
type RejectedCollapse struct {
	Section      string
	TouchedCount int
	LiveCount    int
	ThresholdPct float64
}

func (e *RejectedCollapse) Error() string {
	return fmt.Sprintf(
		"curator: rejected delta as suspected context collapse: section %q touches %d/%d live bullets (threshold %.0f%%)",
		e.Section, e.TouchedCount, e.LiveCount, e.ThresholdPct)
}

// IsRetryable is always false: a rejected Delta is a content problem, not
// a transient failure, and re-asking without changing anything would
// reproduce the same rejection.
func (e *RejectedCollapse) IsRetryable() bool { return false }
