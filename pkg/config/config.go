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

// Package config assembles every other package's Config type from a
// single on-disk document, the way the teacher's pkg/config does for
// its own agent/LLM/memory/server settings (spec §A.1.3): YAML on disk,
// ${VAR} expansion, environment-derived defaults, and structural
// validation before anything downstream ever sees it.
package config

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hungson175/ace/pkg/adaptation"
	"github.com/hungson175/ace/pkg/curator"
	"github.com/hungson175/ace/pkg/embedclient"
	"github.com/hungson175/ace/pkg/envplugin"
	"github.com/hungson175/ace/pkg/generator"
	"github.com/hungson175/ace/pkg/llmclient"
	"github.com/hungson175/ace/pkg/playbook"
	"github.com/hungson175/ace/pkg/reflector"
	"github.com/hungson175/ace/pkg/toolenv"
	"github.com/hungson175/ace/pkg/trajectorystore"
	"github.com/hungson175/ace/pkg/vectorstore"
)

// SectionConfig names one playbook section and its bullet ID prefix
// (spec §3: "each bullet belongs to exactly one section").
type SectionConfig struct {
	Name   string `yaml:"name" json:"name" jsonschema:"title=Name,description=Playbook section name"`
	Prefix string `yaml:"prefix" json:"prefix" jsonschema:"title=Prefix,description=Bullet ID prefix for this section"`
}

// RolesConfig carries one LLMConfig per ACE role. A role left nil
// inherits Default, so a single-model setup needs only Default set.
type RolesConfig struct {
	Default   LLMConfig  `yaml:"default,omitempty" json:"default,omitempty"`
	Generator *LLMConfig `yaml:"generator,omitempty" json:"generator,omitempty"`
	Reflector *LLMConfig `yaml:"reflector,omitempty" json:"reflector,omitempty"`
	Curator   *LLMConfig `yaml:"curator,omitempty" json:"curator,omitempty"`
}

func (r RolesConfig) generatorConfig() LLMConfig {
	if r.Generator != nil {
		return *r.Generator
	}
	return r.Default
}

func (r RolesConfig) reflectorConfig() LLMConfig {
	if r.Reflector != nil {
		return *r.Reflector
	}
	return r.Default
}

func (r RolesConfig) curatorConfig() LLMConfig {
	if r.Curator != nil {
		return *r.Curator
	}
	return r.Default
}

// EmbeddingConfig configures the Embedding Client (spec §6).
type EmbeddingConfig struct {
	Type      string `yaml:"type,omitempty" json:"type,omitempty" jsonschema:"title=Type,enum=openai,enum=ollama,enum=cohere,default=openai"`
	Model     string `yaml:"model,omitempty" json:"model,omitempty"`
	APIKey    string `yaml:"api_key,omitempty" json:"api_key,omitempty"`
	BaseURL   string `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	Dimension int    `yaml:"dimension,omitempty" json:"dimension,omitempty"`
	BatchSize int    `yaml:"batch_size,omitempty" json:"batch_size,omitempty" jsonschema:"default=64"`

	TimeoutSeconds    int `yaml:"timeout_seconds,omitempty" json:"timeout_seconds,omitempty"`
	MaxRetries        int `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`
	RetryDelaySeconds int `yaml:"retry_delay_seconds,omitempty" json:"retry_delay_seconds,omitempty"`
}

func (c EmbeddingConfig) embedclient() embedclient.Config {
	return embedclient.Config{
		Type:              c.Type,
		Model:             c.Model,
		APIKey:            c.APIKey,
		Host:              c.BaseURL,
		Dimension:         c.Dimension,
		BatchSize:         c.BatchSize,
		TimeoutSeconds:    c.TimeoutSeconds,
		MaxRetries:        c.MaxRetries,
		RetryDelaySeconds: c.RetryDelaySeconds,
	}
}

// RefineConfig configures the grow-and-refine dedup/retention sweep
// (spec §4.5) shared by every section unless overridden.
type RefineConfig struct {
	DedupThreshold float64 `yaml:"dedup_threshold,omitempty" json:"dedup_threshold,omitempty" jsonschema:"minimum=0,maximum=1,default=0.92"`
	CandidateTopK  int     `yaml:"candidate_top_k,omitempty" json:"candidate_top_k,omitempty" jsonschema:"default=8"`
	BudgetTokens   int     `yaml:"budget_tokens,omitempty" json:"budget_tokens,omitempty"`
	Policy         string  `yaml:"policy,omitempty" json:"policy,omitempty" jsonschema:"enum=proactive,enum=lazy,default=proactive"`
}

func (c RefineConfig) policy() playbook.RefinePolicy {
	if c.Policy == string(playbook.PolicyLazy) {
		return playbook.PolicyLazy
	}
	return playbook.PolicyProactive
}

// VectorstoreConfig selects and configures the grow-and-refine
// candidate-search backend (spec §4.5). Nil means the in-memory chromem
// default (vectorstore.New's own zero-value behavior).
type VectorstoreConfig struct {
	Type     string                      `yaml:"type,omitempty" json:"type,omitempty" jsonschema:"enum=chromem,enum=qdrant,enum=pinecone,default=chromem"`
	Qdrant   *vectorstore.QdrantConfig   `yaml:"qdrant,omitempty" json:"qdrant,omitempty"`
	Pinecone *vectorstore.PineconeConfig `yaml:"pinecone,omitempty" json:"pinecone,omitempty"`
}

func (c *VectorstoreConfig) vectorstore() vectorstore.Config {
	if c == nil {
		return vectorstore.Config{}
	}
	return vectorstore.Config{Type: c.Type, Qdrant: c.Qdrant, Pinecone: c.Pinecone}
}

// TrajectorystoreConfig enables optional replay persistence of
// Trajectory Records and Insight Bundles (spec §3). Nil disables it.
type TrajectorystoreConfig struct {
	DSN      string `yaml:"dsn,omitempty" json:"dsn,omitempty" jsonschema:"description=sqlite://, postgres://, or mysql:// DSN"`
	MaxConns int    `yaml:"max_conns,omitempty" json:"max_conns,omitempty"`
	MaxIdle  int    `yaml:"max_idle,omitempty" json:"max_idle,omitempty"`
}

func (c *TrajectorystoreConfig) trajectorystore() *trajectorystore.Config {
	if c == nil {
		return nil
	}
	return &trajectorystore.Config{DSN: c.DSN, MaxConns: c.MaxConns, MaxIdle: c.MaxIdle}
}

// ToolenvConfig connects the Generator's agentic tool loop to an
// out-of-process MCP tool server (spec §4.4). Nil disables tool use.
type ToolenvConfig struct {
	Command string            `yaml:"command,omitempty" json:"command,omitempty"`
	Args    []string          `yaml:"args,omitempty" json:"args,omitempty"`
	Env     map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
}

func (c *ToolenvConfig) toolenv() *toolenv.Config {
	if c == nil {
		return nil
	}
	return &toolenv.Config{Command: c.Command, Args: c.Args, Env: c.Env}
}

// EnvPluginConfig launches an optional task-environment evaluator
// plugin (spec §4.6's EnvironmentFeedback source). Nil means samples
// carry no pass/fail signal.
type EnvPluginConfig struct {
	Command string   `yaml:"command,omitempty" json:"command,omitempty"`
	Args    []string `yaml:"args,omitempty" json:"args,omitempty"`
}

func (c *EnvPluginConfig) envplugin() *envplugin.Config {
	if c == nil {
		return nil
	}
	return &envplugin.Config{Command: c.Command, Args: c.Args}
}

// AdaptationConfig carries the Adaptation Loop's own per-run knobs
// (spec §4.6, §5).
type AdaptationConfig struct {
	CallTimeoutSeconds  int  `yaml:"call_timeout_seconds,omitempty" json:"call_timeout_seconds,omitempty" jsonschema:"default=60"`
	MaxEpochs           int  `yaml:"max_epochs,omitempty" json:"max_epochs,omitempty" jsonschema:"default=1"`
	BatchSize           int  `yaml:"batch_size,omitempty" json:"batch_size,omitempty" jsonschema:"default=1"`
	MaxRefinementRounds int  `yaml:"max_refinement_rounds,omitempty" json:"max_refinement_rounds,omitempty"`
	ExplicitMaxRounds   bool `yaml:"explicit_max_rounds,omitempty" json:"explicit_max_rounds,omitempty"`
}

// MetricsConfig binds the Prometheus debug mux used by the run-summary
// counters (spec §A.2).
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Addr    string `yaml:"addr,omitempty" json:"addr,omitempty" jsonschema:"default=127.0.0.1:9095"`
}

// TracingConfig configures OpenTelemetry span export around every
// LLM/embedding/Curator-commit call (spec §A.2).
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Exporter     string  `yaml:"exporter,omitempty" json:"exporter,omitempty" jsonschema:"enum=stdout,enum=otlp,default=stdout"`
	Endpoint     string  `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	ServiceName  string  `yaml:"service_name,omitempty" json:"service_name,omitempty" jsonschema:"default=ace"`
	SamplingRate float64 `yaml:"sampling_rate,omitempty" json:"sampling_rate,omitempty" jsonschema:"default=1"`
}

// LoggerConfig configures log/slog's default logger (spec §A.1.1).
type LoggerConfig struct {
	Level  string `yaml:"level,omitempty" json:"level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error,default=info"`
	File   string `yaml:"file,omitempty" json:"file,omitempty"`
	Format string `yaml:"format,omitempty" json:"format,omitempty" jsonschema:"enum=simple,enum=json,default=simple"`
}

// Config is the root document `ace` loads: the sections a playbook is
// split into, each role's LLM, the embedding/vectorstore backends
// grow-and-refine needs, optional persistence and tool/environment
// plugins, and the ambient observability/logging settings.
type Config struct {
	Sections []SectionConfig `yaml:"sections" json:"sections"`
	Roles    RolesConfig     `yaml:"roles" json:"roles"`

	Embedding EmbeddingConfig `yaml:"embedding,omitempty" json:"embedding,omitempty"`
	Refine    RefineConfig    `yaml:"refine,omitempty" json:"refine,omitempty"`

	Vectorstore     *VectorstoreConfig     `yaml:"vectorstore,omitempty" json:"vectorstore,omitempty"`
	Trajectorystore *TrajectorystoreConfig `yaml:"trajectorystore,omitempty" json:"trajectorystore,omitempty"`
	Toolenv         *ToolenvConfig         `yaml:"toolenv,omitempty" json:"toolenv,omitempty"`
	EnvPlugin       *EnvPluginConfig       `yaml:"env_plugin,omitempty" json:"env_plugin,omitempty"`

	Adaptation AdaptationConfig `yaml:"adaptation,omitempty" json:"adaptation,omitempty"`
	Metrics    MetricsConfig    `yaml:"metrics,omitempty" json:"metrics,omitempty"`
	Tracing    TracingConfig    `yaml:"tracing,omitempty" json:"tracing,omitempty"`
	Logger     LoggerConfig     `yaml:"logger,omitempty" json:"logger,omitempty"`
}

// SetDefaults fills in every sub-config's defaults, mirroring the
// teacher's Config.SetDefaults cascading into each embedded section.
func (c *Config) SetDefaults() {
	def := c.Roles.Default
	def.SetDefaults()
	c.Roles.Default = def
	for _, role := range []**LLMConfig{&c.Roles.Generator, &c.Roles.Reflector, &c.Roles.Curator} {
		if *role != nil {
			(*role).SetDefaults()
		}
	}
	if c.Embedding.Type == "" {
		c.Embedding.Type = "openai"
	}
	if c.Embedding.APIKey == "" {
		c.Embedding.APIKey = GetProviderAPIKey(c.Embedding.Type)
	}
	if c.Embedding.BatchSize == 0 {
		c.Embedding.BatchSize = 64
	}
	if c.Refine.DedupThreshold == 0 {
		c.Refine.DedupThreshold = playbook.DefaultDedupThreshold
	}
	if c.Refine.CandidateTopK == 0 {
		c.Refine.CandidateTopK = 8
	}
	if c.Refine.Policy == "" {
		c.Refine.Policy = string(playbook.PolicyProactive)
	}
	if c.Adaptation.CallTimeoutSeconds == 0 {
		c.Adaptation.CallTimeoutSeconds = 60
	}
	if c.Adaptation.MaxEpochs == 0 {
		c.Adaptation.MaxEpochs = 1
	}
	if c.Adaptation.BatchSize == 0 {
		c.Adaptation.BatchSize = 1
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = "127.0.0.1:9095"
	}
	if c.Tracing.Exporter == "" {
		c.Tracing.Exporter = "stdout"
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "ace"
	}
	if c.Tracing.SamplingRate == 0 {
		c.Tracing.SamplingRate = 1
	}
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
	if c.Logger.Format == "" {
		c.Logger.Format = "simple"
	}
}

// Validate checks structural invariants beyond what decoding alone
// catches: at least one section, a valid LLM config per role, and a
// dedup threshold in (0, 1].
func (c *Config) Validate() error {
	if len(c.Sections) == 0 {
		return fmt.Errorf("config: at least one section is required")
	}
	seen := map[string]bool{}
	for _, s := range c.Sections {
		if s.Name == "" {
			return fmt.Errorf("config: section name is required")
		}
		if seen[s.Name] {
			return fmt.Errorf("config: duplicate section name %q", s.Name)
		}
		seen[s.Name] = true
	}
	if err := c.Roles.Default.Validate(); err != nil {
		return fmt.Errorf("config: roles.default: %w", err)
	}
	for name, role := range map[string]*LLMConfig{"generator": c.Roles.Generator, "reflector": c.Roles.Reflector, "curator": c.Roles.Curator} {
		if role == nil {
			continue
		}
		if err := role.Validate(); err != nil {
			return fmt.Errorf("config: roles.%s: %w", name, err)
		}
	}
	if c.Refine.DedupThreshold <= 0 || c.Refine.DedupThreshold > 1 {
		return fmt.Errorf("config: refine.dedup_threshold must be in (0, 1]")
	}
	if c.Adaptation.MaxEpochs < 1 {
		return fmt.Errorf("config: adaptation.max_epochs must be >= 1")
	}
	return nil
}

// Dump writes the expanded, defaulted configuration to w as YAML, using
// gopkg.in/yaml.v3 directly (mirroring the teacher's ValidateCmd
// printExpandedConfig / main.go's yaml.Marshal(cfg) use) so `ace
// validate --print-config` can show exactly what was loaded.
func (c *Config) Dump(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(c)
}

// PlaybookSections converts SectionConfig entries to playbook.Section values.
func (c *Config) PlaybookSections() []playbook.Section {
	out := make([]playbook.Section, 0, len(c.Sections))
	for _, s := range c.Sections {
		out = append(out, playbook.Section{Name: s.Name, Prefix: s.Prefix})
	}
	return out
}

// GeneratorLLM, ReflectorLLM, and CuratorLLM return each role's
// LLMConfig, falling back to Roles.Default when unset.
func (c *Config) GeneratorLLM() LLMConfig { return c.Roles.generatorConfig() }
func (c *Config) ReflectorLLM() LLMConfig { return c.Roles.reflectorConfig() }
func (c *Config) CuratorLLM() LLMConfig   { return c.Roles.curatorConfig() }

// GeneratorLLMClient, ReflectorLLMClient, and CuratorLLMClient return each
// role's settings translated into llmclient.New's own Config type.
func (c *Config) GeneratorLLMClient() llmclient.Config { return c.GeneratorLLM().llmclient() }
func (c *Config) ReflectorLLMClient() llmclient.Config { return c.ReflectorLLM().llmclient() }
func (c *Config) CuratorLLMClient() llmclient.Config   { return c.CuratorLLM().llmclient() }

// EmbedClient returns the embedclient.Config to construct the shared
// Embedding Client from.
func (c *Config) EmbedClient() embedclient.Config { return c.Embedding.embedclient() }

// VectorstoreSettings returns the vectorstore.Config for grow-and-refine's
// candidate search, defaulting to the in-memory chromem backend.
func (c *Config) VectorstoreSettings() vectorstore.Config { return c.Vectorstore.vectorstore() }

// TrajectorystoreSettings returns the optional replay-persistence
// config, or nil if trajectory persistence is disabled.
func (c *Config) TrajectorystoreSettings() *trajectorystore.Config {
	return c.Trajectorystore.trajectorystore()
}

// ToolenvSettings returns the optional MCP tool-transport config, or
// nil if the Generator should run single-shot (no tool use).
func (c *Config) ToolenvSettings() *toolenv.Config { return c.Toolenv.toolenv() }

// EnvPluginSettings returns the optional task-environment plugin
// config, or nil if samples carry no pass/fail signal.
func (c *Config) EnvPluginSettings() *envplugin.Config { return c.EnvPlugin.envplugin() }

// GeneratorConfig, ReflectorConfig, and CuratorConfig translate the
// loaded document into each role package's own Config type.
func (c *Config) GeneratorConfig() generator.Config {
	llm := c.GeneratorLLM()
	return generator.Config{MaxTokens: llm.MaxTokens, Temperature: derefTemp(llm.Temperature)}
}

func (c *Config) ReflectorConfig() reflector.Config {
	llm := c.ReflectorLLM()
	return reflector.Config{
		MaxRefinementRounds: c.Adaptation.MaxRefinementRounds,
		ExplicitMaxRounds:   c.Adaptation.ExplicitMaxRounds,
		MaxTokens:           llm.MaxTokens,
		Temperature:         derefTemp(llm.Temperature),
	}
}

func (c *Config) CuratorConfig() curator.Config {
	llm := c.CuratorLLM()
	sections := make([]string, 0, len(c.Sections))
	for _, s := range c.Sections {
		sections = append(sections, s.Name)
	}
	return curator.Config{
		CollapseGuardPct: 0, // 0 -> curator.DefaultCollapseGuardPct
		Policy:           c.Refine.policy(),
		Refine: playbook.RefineOptions{
			Threshold:     c.Refine.DedupThreshold,
			Sections:      sections,
			CandidateTopK: c.Refine.CandidateTopK,
			BudgetTokens:  c.Refine.BudgetTokens,
		},
		MaxTokens:   llm.MaxTokens,
		Temperature: derefTemp(llm.Temperature),
	}
}

// AdaptationLoopConfig and AdaptationOfflineConfig translate the
// loaded document into pkg/adaptation's own Config types.
func (c *Config) AdaptationLoopConfig() adaptation.Config {
	return adaptation.Config{CallTimeout: time.Duration(c.Adaptation.CallTimeoutSeconds) * time.Second}
}

func (c *Config) AdaptationOfflineConfig() adaptation.OfflineConfig {
	return adaptation.OfflineConfig{
		Config:    c.AdaptationLoopConfig(),
		MaxEpochs: c.Adaptation.MaxEpochs,
		BatchSize: c.Adaptation.BatchSize,
	}
}
