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
	"encoding/json"
	"fmt"
	"os"

	"github.com/hungson175/ace/pkg/config"
	"github.com/hungson175/ace/pkg/playbook"
)

// ValidateCmd validates a config file and, optionally, a playbook
// checkpoint against their schemas and structural invariants.
type ValidateCmd struct {
	Playbook string `help:"Playbook checkpoint file to validate." type:"path" placeholder:"PATH"`

	Format      string `short:"f" help:"Output format: compact, verbose, json." default:"compact" enum:"compact,verbose,json"`
	PrintConfig bool   `short:"p" name:"print-config" help:"Print the expanded configuration (defaults applied, env vars resolved)."`
}

func (c *ValidateCmd) Run(cli *CLI) error {
	if cli.Config == "" {
		return fmt.Errorf("--config is required")
	}

	cfg, err := config.Load(cli.Config)
	if err != nil {
		return printLoadError(c.Format, cli.Config, err)
	}

	if c.PrintConfig {
		return printExpandedConfig(c.Format, cli.Config, cfg)
	}

	if c.Playbook != "" {
		if err := validatePlaybookFile(c.Playbook, cfg); err != nil {
			return printLoadError(c.Format, c.Playbook, err)
		}
		printSuccess(c.Format, c.Playbook)
		return nil
	}

	printSuccess(c.Format, cli.Config)
	return nil
}

func validatePlaybookFile(path string, cfg *config.Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read playbook checkpoint: %w", err)
	}
	if _, err := playbook.Restore(data, cfg.PlaybookSections()); err != nil {
		return fmt.Errorf("playbook checkpoint failed validation: %w", err)
	}
	return nil
}

type validationError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func printLoadError(format, file string, err error) error {
	switch format {
	case "json":
		printJSONResult(false, file, []validationError{{Type: "load", Message: err.Error()}})
	case "verbose":
		fmt.Fprintf(os.Stderr, "Validation Error\n================\n\n")
		fmt.Fprintf(os.Stderr, "File:  %s\n", file)
		fmt.Fprintf(os.Stderr, "Error: %s\n", err.Error())
	default:
		fmt.Fprintf(os.Stderr, "%s: %s\n", file, err.Error())
	}
	return fmt.Errorf("validation failed")
}

func printSuccess(format, file string) {
	switch format {
	case "json":
		printJSONResult(true, file, nil)
	case "verbose":
		fmt.Fprintf(os.Stdout, "Validation Successful\n======================\n\n")
		fmt.Fprintf(os.Stdout, "File:   %s\n", file)
		fmt.Fprintf(os.Stdout, "Status: OK\n")
	default:
		fmt.Fprintf(os.Stdout, "%s: valid\n", file)
	}
}

func printExpandedConfig(format, file string, cfg *config.Config) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(cfg); err != nil {
			return fmt.Errorf("failed to encode config as JSON: %w", err)
		}
	default:
		fmt.Fprintf(os.Stdout, "# Expanded configuration from: %s\n", file)
		fmt.Fprintf(os.Stdout, "# (defaults applied, env vars resolved)\n\n")
		if err := cfg.Dump(os.Stdout); err != nil {
			return fmt.Errorf("failed to encode config as YAML: %w", err)
		}
	}
	return nil
}

type jsonOutput struct {
	Valid  bool              `json:"valid"`
	File   string            `json:"file"`
	Errors []validationError `json:"errors,omitempty"`
}

func printJSONResult(valid bool, file string, errors []validationError) {
	output := jsonOutput{Valid: valid, File: file, Errors: errors}
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(output); err != nil {
		fmt.Fprintf(os.Stderr, "error encoding JSON: %v\n", err)
	}
}
