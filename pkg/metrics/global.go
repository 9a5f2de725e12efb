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

import "sync"

// global mirrors the teacher's pkg/observability SetGlobalMetrics /
// GetGlobalMetrics pattern: a package-level instance that packages deep
// in the call stack (pkg/adaptation's Loop) can reach without importing
// it into their own constructor signatures.
var (
	mu     sync.RWMutex
	global *Metrics
)

// SetGlobal installs m as the process-wide Metrics instance. Called
// once by cmd/ace's adapt command when --debug-addr (or an explicit
// config.MetricsConfig.Enabled) turns metrics on; left uncalled, Global
// returns a nil *Metrics whose Record* methods are no-ops.
func SetGlobal(m *Metrics) {
	mu.Lock()
	defer mu.Unlock()
	global = m
}

// Global returns the process-wide Metrics instance, or nil if SetGlobal
// was never called. nil is a valid, safe receiver for every Metrics
// method.
func Global() *Metrics {
	mu.RLock()
	defer mu.RUnlock()
	return global
}
