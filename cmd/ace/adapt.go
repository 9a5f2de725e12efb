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
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"github.com/hungson175/ace/pkg/adaptation"
	"github.com/hungson175/ace/pkg/config"
	"github.com/hungson175/ace/pkg/curator"
	"github.com/hungson175/ace/pkg/embedclient"
	"github.com/hungson175/ace/pkg/envplugin"
	"github.com/hungson175/ace/pkg/generator"
	"github.com/hungson175/ace/pkg/llmclient"
	"github.com/hungson175/ace/pkg/metrics"
	"github.com/hungson175/ace/pkg/playbook"
	"github.com/hungson175/ace/pkg/reflector"
	"github.com/hungson175/ace/pkg/tokencount"
	"github.com/hungson175/ace/pkg/toolenv"
	"github.com/hungson175/ace/pkg/tracing"
	"github.com/hungson175/ace/pkg/vectorstore"
)

// AdaptCmd runs the Adaptation Loop over a dataset (spec §6 "CLI
// surface (minimal)").
type AdaptCmd struct {
	Mode        string `help:"Adaptation mode: offline or online." default:"offline" enum:"offline,online"`
	Dataset     string `help:"Dataset file (JSONL)." required:"" type:"path"`
	PlaybookOut string `name:"playbook-out" help:"Where to write the resulting playbook checkpoint." required:"" type:"path"`
	PlaybookIn  string `name:"playbook-in" help:"Existing playbook checkpoint to resume from (optional)." type:"path"`

	Watch bool `help:"Online mode only: tail the dataset file for newly-appended samples via fsnotify instead of reading it once."`

	DebugAddr        string  `name:"debug-addr" help:"If set, serves Prometheus metrics on this address (overrides config)." placeholder:"HOST:PORT"`
	CollapseGuardPct float64 `name:"collapse-guard-pct" help:"Percentage of a section's live bullets a single Delta may rewrite before the Curator rejects it as a collapse event (overrides config; 0 uses the config/default)."`
}

func (c *AdaptCmd) Run(cli *CLI) error {
	if cli.Config == "" {
		return fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		Exporter:     cfg.Tracing.Exporter,
		Endpoint:     cfg.Tracing.Endpoint,
		ServiceName:  cfg.Tracing.ServiceName,
		SamplingRate: cfg.Tracing.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer shutdownTracing(context.Background())

	debugAddr := c.DebugAddr
	if debugAddr == "" && cfg.Metrics.Enabled {
		debugAddr = cfg.Metrics.Addr
	}
	if debugAddr != "" {
		m := metrics.New("ace")
		metrics.SetGlobal(m)
		srv := metrics.NewServer(debugAddr, m)
		if err := srv.Start(ctx); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		defer srv.Shutdown(context.Background())
	}

	loop, store, err := buildLoop(cfg, c.PlaybookIn, c.CollapseGuardPct)
	if err != nil {
		return err
	}

	var summary adaptation.Summary
	switch c.Mode {
	case "offline":
		samples, err := readDataset(c.Dataset)
		if err != nil {
			return err
		}
		summary, err = loop.RunOffline(ctx, cfg.AdaptationOfflineConfig(), samples)
		if err != nil {
			return fmt.Errorf("offline run failed: %w", err)
		}
	case "online":
		samples, err := loadOnlineSamples(ctx, c.Dataset, c.Watch)
		if err != nil {
			return err
		}
		summary, err = loop.RunOnline(ctx, samples, func(p adaptation.Predict) {
			fmt.Printf("%s\t%s\n", p.SampleID, p.Prediction)
		})
		if err != nil {
			return fmt.Errorf("online run failed: %w", err)
		}
	default:
		return fmt.Errorf("unknown mode %q", c.Mode)
	}

	printSummary(summary)

	data, err := store.Checkpoint()
	if err != nil {
		return fmt.Errorf("failed to serialize playbook: %w", err)
	}
	if err := os.WriteFile(c.PlaybookOut, data, 0644); err != nil {
		return fmt.Errorf("failed to write playbook checkpoint: %w", err)
	}

	if summary.SkippedByReason[adaptation.SkipGeneratorFatal] > 0 ||
		summary.SkippedByReason[adaptation.SkipReflectorFatal] > 0 ||
		summary.SkippedByReason[adaptation.SkipCuratorFatal] > 0 ||
		summary.SkippedByReason[adaptation.SkipCollapseRejected] > 0 {
		return fmt.Errorf("run completed with fatal skips; see summary above")
	}
	return nil
}

// loadOnlineSamples either reads the dataset fully upfront (default) or
// tails it for newly-appended lines until ctx is cancelled, per spec
// §A.3. Tailing accumulates samples until the process is interrupted,
// since RunOnline itself needs the full ordered slice upfront.
func loadOnlineSamples(ctx context.Context, path string, watch bool) ([]adaptation.Sample, error) {
	if !watch {
		return readDataset(path)
	}

	out := make(chan adaptation.Sample, 256)
	stop := make(chan struct{})
	errCh := make(chan error, 1)
	go func() { errCh <- tailDataset(path, out, stop) }()

	var samples []adaptation.Sample
	for {
		select {
		case <-ctx.Done():
			close(stop)
			return samples, nil
		case s := <-out:
			samples = append(samples, s)
		case err := <-errCh:
			return samples, err
		}
	}
}

// buildLoop wires every optional ACE collaborator from cfg into a fresh
// *adaptation.Loop, returning the Playbook Store so the caller can
// checkpoint it afterward.
func buildLoop(cfg *config.Config, playbookIn string, collapseGuardPct float64) (*adaptation.Loop, *playbook.Store, error) {
	store, err := openPlaybook(cfg, playbookIn)
	if err != nil {
		return nil, nil, err
	}

	genLLM, err := llmclient.New(cfg.GeneratorLLMClient())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create generator LLM client: %w", err)
	}
	reflLLM, err := llmclient.New(cfg.ReflectorLLMClient())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create reflector LLM client: %w", err)
	}
	curLLM, err := llmclient.New(cfg.CuratorLLMClient())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create curator LLM client: %w", err)
	}

	var tools generator.ToolCaller
	if cfg.Toolenv != nil {
		tc, err := toolenv.New(*cfg.ToolenvSettings())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect tool environment: %w", err)
		}
		tools = toolCallerAdapter{client: tc}
	}

	gen := generator.New(store, genLLM, tools, cfg.GeneratorConfig())
	refl := reflector.New(reflLLM, cfg.ReflectorConfig())
	curCfg := cfg.CuratorConfig()
	if collapseGuardPct > 0 {
		curCfg.CollapseGuardPct = collapseGuardPct
	}
	if err := wireRefineCollaborators(cfg, &curCfg); err != nil {
		return nil, nil, err
	}
	cur := curator.New(store, curLLM, curCfg)

	var eval envplugin.Evaluator
	if cfg.EnvPlugin != nil {
		host, err := envplugin.Connect(*cfg.EnvPluginSettings())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect environment plugin: %w", err)
		}
		eval = host
	}

	loop := adaptation.New(store, gen, refl, cur, eval, cfg.AdaptationLoopConfig())
	return loop, store, nil
}

// wireRefineCollaborators fills in curCfg.Refine's Embedder and
// Candidates, which depend on clients config.Config cannot build on its
// own (an embedclient.Client and a vectorstore.Store, respectively), and
// its token Counter when budget_tokens is set.
func wireRefineCollaborators(cfg *config.Config, curCfg *curator.Config) error {
	embedder, err := embedclient.New(cfg.EmbedClient())
	if err != nil {
		return fmt.Errorf("failed to create embedding client: %w", err)
	}
	curCfg.Refine.Embedder = embedclient.AsPlaybookEmbedder(embedder)

	store, err := vectorstore.New(cfg.VectorstoreSettings())
	if err != nil {
		return fmt.Errorf("failed to create vector store: %w", err)
	}
	curCfg.Refine.Candidates = store

	if curCfg.Refine.BudgetTokens > 0 {
		counter, err := tokencount.New()
		if err != nil {
			return fmt.Errorf("failed to create token counter: %w", err)
		}
		curCfg.Refine.Counter = counter.AsPlaybookCounter()
	}
	return nil
}

func openPlaybook(cfg *config.Config, playbookIn string) (*playbook.Store, error) {
	sections := cfg.PlaybookSections()
	if playbookIn == "" {
		return playbook.New(sections), nil
	}
	data, err := os.ReadFile(playbookIn)
	if err != nil {
		return nil, fmt.Errorf("failed to read playbook checkpoint: %w", err)
	}
	store, err := playbook.Restore(data, sections)
	if err != nil {
		return nil, fmt.Errorf("failed to restore playbook checkpoint: %w", err)
	}
	return store, nil
}

// printSummary renders a run's Summary as a simple two-column table,
// clamping to the terminal width when stdout is a terminal.
func printSummary(s adaptation.Summary) {
	width := 80
	if term.IsTerminal(int(os.Stdout.Fd())) {
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
			width = w
		}
	}
	rule := ""
	for i := 0; i < width && i < 40; i++ {
		rule += "-"
	}

	fmt.Fprintln(os.Stderr, rule)
	fmt.Fprintf(os.Stderr, "total:   %d\n", s.Total)
	fmt.Fprintf(os.Stderr, "done:    %d\n", s.Done)
	for reason, count := range s.SkippedByReason {
		if count == 0 {
			continue
		}
		fmt.Fprintf(os.Stderr, "skipped (%s): %d\n", reason, count)
	}
	fmt.Fprintln(os.Stderr, rule)
}
