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

	"github.com/invopop/jsonschema"

	"github.com/hungson175/ace/pkg/bullet"
	"github.com/hungson175/ace/pkg/config"
	"github.com/hungson175/ace/pkg/playbook"
	"github.com/hungson175/ace/pkg/trajectory"
)

// SchemaCmd generates JSON Schema for ACE's config document and wire
// formats: the config.Config document itself, plus the bullet/playbook
// checkpoint and trajectory/insight types a tool author needs to
// produce or consume a dataset or a saved playbook.
type SchemaCmd struct {
	// Compact enables compact JSON output (no indentation).
	Compact bool `short:"c" help:"Compact JSON output (no indentation)."`

	// Target selects which document's schema to emit.
	Target string `help:"Schema to emit: config, playbook, bullet, trajectory, insight." default:"config" enum:"config,playbook,bullet,trajectory,insight"`
}

func (c *SchemaCmd) Run(cli *CLI) error {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:           true,
	}

	var schema *jsonschema.Schema
	switch c.Target {
	case "config":
		schema = reflector.Reflect(&config.Config{})
		schema.ID = "https://ace.dev/schemas/config.json"
		schema.Title = "ACE Configuration Schema"
		schema.Description = "Configuration document for the ace CLI"
	case "playbook":
		schema = reflector.Reflect(&playbook.Document{})
		schema.ID = "https://ace.dev/schemas/playbook.json"
		schema.Title = "ACE Playbook Checkpoint Schema"
		schema.Description = "Persisted playbook document (spec §6)"
	case "bullet":
		schema = reflector.Reflect(&bullet.Bullet{})
		schema.ID = "https://ace.dev/schemas/bullet.json"
		schema.Title = "ACE Bullet Schema"
	case "trajectory":
		schema = reflector.Reflect(&trajectory.Record{})
		schema.ID = "https://ace.dev/schemas/trajectory.json"
		schema.Title = "ACE Trajectory Record Schema"
	case "insight":
		schema = reflector.Reflect(&trajectory.InsightBundle{})
		schema.ID = "https://ace.dev/schemas/insight.json"
		schema.Title = "ACE Insight Bundle Schema"
	default:
		return fmt.Errorf("unknown schema target %q", c.Target)
	}
	schema.Version = "http://json-schema.org/draft-07/schema#"

	encoder := json.NewEncoder(os.Stdout)
	if !c.Compact {
		encoder.SetIndent("", "  ")
	}
	if err := encoder.Encode(schema); err != nil {
		return fmt.Errorf("failed to encode schema: %w", err)
	}
	return nil
}
