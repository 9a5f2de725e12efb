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

package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/fsnotify/fsnotify"

	"github.com/hungson175/ace/pkg/adaptation"
)

// datasetRecord is one JSONL line of a dataset file (spec §A.3).
type datasetRecord struct {
	ID           string `json:"id,omitempty"`
	Query        string `json:"query"`
	Context      any    `json:"context,omitempty"`
	GroundTruth  string `json:"ground_truth,omitempty"`
	FeedbackHint string `json:"feedback_hint,omitempty"`
}

func (r datasetRecord) toSample(fallbackID int) adaptation.Sample {
	id := r.ID
	if id == "" {
		id = fmt.Sprintf("sample-%d", fallbackID)
	}
	return adaptation.Sample{ID: id, Query: r.Query, Context: r.Context, GroundTruth: r.GroundTruth}
}

// readDataset reads every line of a JSONL dataset upfront, for offline
// mode (spec §A.3: "read fully upfront").
func readDataset(path string) ([]adaptation.Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	var samples []adaptation.Sample
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec datasetRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("dataset line %d: %w", lineNo, err)
		}
		samples = append(samples, rec.toSample(lineNo))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}
	return samples, nil
}

// tailDataset streams newly-appended JSONL lines to out as the dataset
// file grows, for online mode's "adapt as data arrives" use case. It
// reads whatever already exists first, then watches for writes via
// fsnotify, re-reading from the last offset on each event. It returns
// when ctx-independent stop is closed or the watcher errors fatally.
func tailDataset(path string, out chan<- adaptation.Sample, stop <-chan struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create dataset watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("failed to watch dataset %s: %w", path, err)
	}

	var offset int64
	lineNo := 0
	readNew := func() error {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		if _, err := f.Seek(offset, 0); err != nil {
			return err
		}
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			lineNo++
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			var rec datasetRecord
			if err := json.Unmarshal(line, &rec); err != nil {
				slog.Warn("dataset: skipping malformed line", "line", lineNo, "err", err)
				continue
			}
			out <- rec.toSample(lineNo)
		}
		pos, err := f.Seek(0, 1)
		if err != nil {
			return err
		}
		offset = pos
		return nil
	}

	if err := readNew(); err != nil {
		return fmt.Errorf("failed to read dataset: %w", err)
	}

	for {
		select {
		case <-stop:
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if err := readNew(); err != nil {
					slog.Warn("dataset: failed to read appended data", "err", err)
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("dataset: watcher error", "err", err)
		}
	}
}
