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

import "fmt"

// ParseError is returned when the Reflector's LLM response is not valid
// JSON matching the Insight Bundle shape after one re-ask (spec §4.3,
// §7: "malformed JSON after one re-ask: sample SKIPPED").
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("reflector: failed to parse insight bundle JSON: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsRetryable is always false: ParseError is only ever returned after
// the one allowed re-ask has already happened.
func (e *ParseError) IsRetryable() bool { return false }
