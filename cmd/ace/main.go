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

// Command ace drives the Adaptation Loop against a dataset, offline or
// online, and reports the resulting run Summary.
//
// Usage:
//
//	ace --config ace.yaml adapt --mode offline --dataset samples.jsonl --playbook-out playbook.json
//	ace --config ace.yaml adapt --mode online --dataset samples.jsonl --playbook-out playbook.json
//	ace --config ace.yaml validate --playbook playbook.json
//	ace schema
package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/alecthomas/kong"

	"github.com/hungson175/ace/pkg/config"
)

// CLI defines the ace command-line interface.
type CLI struct {
	Adapt    AdaptCmd    `cmd:"" help:"Run the Adaptation Loop over a dataset."`
	Validate ValidateCmd `cmd:"" help:"Validate a config file and/or playbook checkpoint."`
	Schema   SchemaCmd   `cmd:"" help:"Generate JSON Schema for ACE's document types."`
	Version  VersionCmd  `cmd:"" help:"Show version information."`

	Config    string `short:"c" help:"Path to config file." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)."`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple or json)." default:"simple"`
}

func main() {
	_ = config.LoadDotEnv()

	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("ace"),
		kong.Description("ACE - Agentic Context Engineering playbook adaptation"),
		kong.UsageOnError(),
	)

	cleanup, err := initLogger(cli.LogLevel, cli.LogFile, cli.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ace: failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	if cleanup != nil {
		defer cleanup()
	}

	err = ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("ace version %s\n", version)
	return nil
}
