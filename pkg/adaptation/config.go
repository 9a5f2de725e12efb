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
	"time"

	"github.com/hungson175/ace/pkg/playbook"
)

// DefaultCallTimeout is the per-call LLM timeout the loop wraps around
// every Generator/Reflector/Curator invocation (spec §5).
const DefaultCallTimeout = 60 * time.Second

// Config configures a Loop shared by both offline and online runs.
type Config struct {
	// CallTimeout bounds each individual Generator/Reflector/Curator
	// call (default DefaultCallTimeout).
	CallTimeout time.Duration
}

func (c Config) callTimeout() time.Duration {
	if c.CallTimeout <= 0 {
		return DefaultCallTimeout
	}
	return c.CallTimeout
}

// OfflineConfig configures a multi-epoch training run over a fixed
// dataset (spec §4.6).
type OfflineConfig struct {
	Config

	// MaxEpochs bounds the loop (required, must be >= 1).
	MaxEpochs int

	// BatchSize allows bounded-parallel Generator/Reflector work within
	// an epoch; commits still land in arrival order (spec §5). A value
	// <= 1 runs strictly sequentially.
	BatchSize int

	// ValidationMetric, if non-nil, is evaluated once per epoch against
	// the playbook's current state; the run stops early if it fails to
	// improve (by any positive margin) for two consecutive epochs.
	ValidationMetric func(epoch int, store *playbook.Store) float64
}

func (c OfflineConfig) batchSize() int {
	if c.BatchSize < 1 {
		return 1
	}
	return c.BatchSize
}

// Sample is one (query, optional ground truth) unit of work the loop
// pushes through Generator -> Reflector -> Curator.
type Sample struct {
	ID          string
	Query       string
	Context     any
	GroundTruth string
}
