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

import "fmt"

// Transient wraps an LLM call failure that httpclient's own retry/backoff
// already attempted and exhausted (spec §7: "retried with backoff;
// ultimately demoted to LLMFatal"). The Adaptation Loop never retries a
// Transient error itself; it is kept in the sample's Err so a caller can
// tell a timed-out call from other failures, while the sample is marked
// SKIPPED and counted under the same skip reason as a Fatal one.
type Transient struct {
	Err error
}

func (e *Transient) Error() string     { return fmt.Sprintf("llm transient error: %v", e.Err) }
func (e *Transient) Unwrap() error     { return e.Err }
func (e *Transient) IsRetryable() bool { return true }

// Fatal wraps an unrecoverable LLM provider error (spec §7:
// "unrecoverable provider error: sample marked SKIPPED, loop continues").
type Fatal struct {
	Err error
}

func (e *Fatal) Error() string     { return fmt.Sprintf("llm fatal error: %v", e.Err) }
func (e *Fatal) Unwrap() error     { return e.Err }
func (e *Fatal) IsRetryable() bool { return false }

// Cancelled reports cooperative cancellation observed at a sample
// boundary (spec §5, §7: "loop exits, last checkpoint is authoritative").
type Cancelled struct {
	CompletedSamples int
}

func (e *Cancelled) Error() string {
	return fmt.Sprintf("adaptation run cancelled after %d samples", e.CompletedSamples)
}

func (e *Cancelled) IsRetryable() bool { return false }
