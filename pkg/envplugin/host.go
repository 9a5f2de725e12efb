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

package envplugin

import (
	"fmt"
	"os/exec"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-plugin"
)

// Config configures how the Adaptation Loop launches and connects to an
// environment plugin binary.
type Config struct {
	// Command is the plugin binary's path.
	Command string
	// Args are passed to Command.
	Args []string
	// Logger receives the plugin's own log output; a discard logger is
	// used if nil.
	Logger hclog.Logger
}

// Host owns a running environment plugin's subprocess and the
// Evaluator client connected to it.
type Host struct {
	client *plugin.Client
	eval   Evaluator
}

// Connect launches the plugin binary named by cfg.Command and returns
// an Evaluator backed by it.
func Connect(cfg Config) (*Host, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("envplugin: command is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = hclog.New(&hclog.LoggerOptions{Name: "ace-envplugin", Level: hclog.Warn})
	}

	client := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig:  handshake,
		Plugins:          pluginMap(nil),
		Cmd:              exec.Command(cfg.Command, cfg.Args...),
		Logger:           logger,
		AllowedProtocols: []plugin.Protocol{plugin.ProtocolNetRPC},
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("envplugin: failed to establish rpc connection: %w", err)
	}

	raw, err := rpcClient.Dispense(pluginName)
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("envplugin: failed to dispense %q plugin: %w", pluginName, err)
	}

	eval, ok := raw.(Evaluator)
	if !ok {
		client.Kill()
		return nil, fmt.Errorf("envplugin: dispensed plugin does not implement Evaluator")
	}

	return &Host{client: client, eval: eval}, nil
}

// Evaluate forwards req to the connected plugin's Evaluator.
func (h *Host) Evaluate(req Request) (Response, error) {
	return h.eval.Evaluate(req)
}

// Close terminates the plugin subprocess.
func (h *Host) Close() {
	h.client.Kill()
}
