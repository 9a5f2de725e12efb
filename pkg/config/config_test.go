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

package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hungson175/ace/pkg/playbook"
)

func TestSetDefaultsFillsRoleAndAmbientSettings(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "test-key")
	cfg := &Config{Sections: []SectionConfig{{Name: "strategies", Prefix: "ctx"}}}

	cfg.SetDefaults()

	assert.Equal(t, LLMProviderAnthropic, cfg.Roles.Default.Provider)
	assert.Equal(t, "test-key", cfg.Roles.Default.APIKey)
	assert.Equal(t, playbook.DefaultDedupThreshold, cfg.Refine.DedupThreshold)
	assert.Equal(t, "127.0.0.1:9095", cfg.Metrics.Addr)
	assert.Equal(t, "stdout", cfg.Tracing.Exporter)
	assert.Equal(t, "info", cfg.Logger.Level)
}

func TestValidateRejectsEmptySections(t *testing.T) {
	cfg := &Config{}
	cfg.SetDefaults()
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsDuplicateSectionNames(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "test-key")
	cfg := &Config{Sections: []SectionConfig{{Name: "a"}, {Name: "a"}}}
	cfg.SetDefaults()
	assert.Error(t, cfg.Validate())
}

func TestRolesFallBackToDefault(t *testing.T) {
	temp := 0.4
	cfg := &Config{
		Roles: RolesConfig{
			Default:   LLMConfig{Provider: LLMProviderOllama, Model: "llama3.2", Temperature: &temp},
			Reflector: &LLMConfig{Provider: LLMProviderOllama, Model: "mistral"},
		},
	}

	assert.Equal(t, "llama3.2", cfg.GeneratorLLM().Model)
	assert.Equal(t, "mistral", cfg.ReflectorLLM().Model)
	assert.Equal(t, "llama3.2", cfg.CuratorLLM().Model)
}

func TestLoaderLoadsFileAndExpandsEnvVars(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "http://localhost:11434")

	dir := t.TempDir()
	path := filepath.Join(dir, "ace.yaml")
	doc := `
sections:
  - name: strategies
    prefix: ctx
roles:
  default:
    provider: ollama
    model: llama3.2
    base_url: ${OLLAMA_HOST}
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:11434", cfg.Roles.Default.BaseURL)
	assert.Equal(t, "strategies", cfg.Sections[0].Name)
}

func TestConfigDumpProducesValidYAML(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "test-key")
	cfg := &Config{Sections: []SectionConfig{{Name: "strategies", Prefix: "ctx"}}}
	cfg.SetDefaults()

	var buf bytes.Buffer
	require.NoError(t, cfg.Dump(&buf))
	assert.Contains(t, buf.String(), "strategies")
}
