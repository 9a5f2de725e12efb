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

// Package envplugin makes the Environment/Task Runner collaborator
// contract (spec §6) concretely pluggable out-of-process, using
// github.com/hashicorp/go-plugin, so the ACE core never links against a
// specific task environment (an AppWorld-like sandbox, an XBRL QA
// harness, ...) at compile time.
package envplugin

// Request is what the Adaptation Loop gives a task environment to
// evaluate one Generator run.
type Request struct {
	Query           string
	GeneratorOutput string
	GroundTruth     string
}

// Response is the Environment/Task Runner contract's result shape
// (spec §6: "{passed: bool, diagnostics: string, unit_test_report?:
// string, ground_truth?: string}"). GroundTruth is only populated when
// the environment itself is authoritative on the label (e.g. it ran an
// oracle); otherwise the caller's own GroundTruth, if any, stands.
type Response struct {
	Passed         bool
	Diagnostics    string
	UnitTestReport string
	GroundTruth    string
}

// Evaluator is the Go-side shape of the Environment/Task Runner
// collaborator contract. Implementations run out-of-process as a
// plugin binary; host code only ever sees this interface.
type Evaluator interface {
	Evaluate(req Request) (Response, error)
}
