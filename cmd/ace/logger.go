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
	"fmt"
	"log/slog"
	"os"
)

// LogLevelEnvVar and LogFileEnvVar let a deployment override logging
// without touching CLI flags (priority: CLI flag > env var > default).
const (
	LogLevelEnvVar = "ACE_LOG_LEVEL"
	LogFileEnvVar  = "ACE_LOG_FILE"
)

// initLogger installs the process-wide slog default logger from CLI
// flags/env vars and returns a cleanup func that closes the log file,
// if one was opened.
func initLogger(cliLevel, cliFile, cliFormat string) (func(), error) {
	level := cliLevel
	if level == "" {
		level = os.Getenv(LogLevelEnvVar)
	}
	if level == "" {
		level = "info"
	}

	file := cliFile
	if file == "" {
		file = os.Getenv(LogFileEnvVar)
	}

	slogLevel, err := parseLevel(level)
	if err != nil {
		return nil, err
	}

	var output *os.File = os.Stderr
	var cleanup func()
	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", file, err)
		}
		output = f
		cleanup = func() { f.Close() }
	}

	opts := &slog.HandlerOptions{Level: slogLevel}
	var handler slog.Handler
	switch cliFormat {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}
	slog.SetDefault(slog.New(handler))
	return cleanup, nil
}

func parseLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level %q (valid: debug, info, warn, error)", s)
	}
}
