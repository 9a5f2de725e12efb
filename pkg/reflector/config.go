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

// DefaultMaxRefinementRounds is the default number of times the
// Reflector may iterate on its own diagnosis before handing it to the
// Curator (spec §4.3). A value of 0 makes the Reflector run exactly
// once (spec §8, testable property 10).
const DefaultMaxRefinementRounds = 5

// Config configures a Reflector.
type Config struct {
	// MaxRefinementRounds is 0 or positive; a zero Config value uses
	// DefaultMaxRefinementRounds, NOT "run exactly once" - callers that
	// want the "exactly once" behavior from property 10 must set this
	// field to 0 explicitly via a non-zero Config (see New).
	MaxRefinementRounds int
	// ExplicitMaxRounds distinguishes "field left at zero value, use the
	// default" from "caller deliberately asked for exactly one round".
	ExplicitMaxRounds bool

	MaxTokens   int
	Temperature float64
}

func (c Config) maxRounds() int {
	if !c.ExplicitMaxRounds {
		return DefaultMaxRefinementRounds
	}
	return c.MaxRefinementRounds
}
