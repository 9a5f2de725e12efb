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

// Package toolenv is the Generator's tool-call transport for agentic
// settings (spec §4.4: "drives a REPL-like loop against the external
// environment"). It wires github.com/mark3labs/mcp-go's stdio client so
// an out-of-process task environment can expose tools over MCP; the
// tools themselves, and what they do, are entirely the task
// environment's concern — this package only transports calls to them.
package toolenv

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// Tool describes one tool exposed by the connected MCP server.
type Tool struct {
	Name        string
	Description string
	Schema      map[string]any
}

// Config configures a stdio-transport MCP connection.
type Config struct {
	Command string
	Args    []string
	Env     map[string]string
}

// Client is a connected MCP stdio session, lazily listing its tools on
// first use.
type Client struct {
	cfg Config

	mu      sync.Mutex
	mcp     *client.Client
	tools   []Tool
	started bool
}

// New creates a Client for cfg; the underlying process is not started
// until the first ListTools or CallTool call.
func New(cfg Config) (*Client, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("toolenv: command is required")
	}
	return &Client{cfg: cfg}, nil
}

func (c *Client) ensureConnected(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}

	mcpClient, err := client.NewStdioMCPClient(c.cfg.Command, envSlice(c.cfg.Env), c.cfg.Args...)
	if err != nil {
		return fmt.Errorf("toolenv: failed to create mcp client: %w", err)
	}
	if err := mcpClient.Start(ctx); err != nil {
		return fmt.Errorf("toolenv: failed to start mcp client: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ClientInfo = mcp.Implementation{Name: "ace", Version: "0.1.0"}
	initReq.Params.ProtocolVersion = "2024-11-05"
	if _, err := mcpClient.Initialize(ctx, initReq); err != nil {
		mcpClient.Close()
		return fmt.Errorf("toolenv: failed to initialize mcp session: %w", err)
	}

	listResp, err := mcpClient.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		mcpClient.Close()
		return fmt.Errorf("toolenv: failed to list tools: %w", err)
	}

	tools := make([]Tool, 0, len(listResp.Tools))
	for _, t := range listResp.Tools {
		tools = append(tools, Tool{
			Name:        t.Name,
			Description: t.Description,
			Schema:      convertSchema(t.InputSchema),
		})
	}

	c.mcp = mcpClient
	c.tools = tools
	c.started = true
	return nil
}

// ListTools returns the tools the connected environment exposes.
func (c *Client) ListTools(ctx context.Context) ([]Tool, error) {
	if err := c.ensureConnected(ctx); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Tool(nil), c.tools...), nil
}

// CallTool invokes a tool by name and returns its text content,
// concatenating every text block in the response.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	if err := c.ensureConnected(ctx); err != nil {
		return "", err
	}

	c.mu.Lock()
	mcpClient := c.mcp
	c.mu.Unlock()

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	resp, err := mcpClient.CallTool(ctx, req)
	if err != nil {
		return "", fmt.Errorf("toolenv: call to tool %q failed: %w", name, err)
	}

	var out strings.Builder
	for _, content := range resp.Content {
		if text, ok := content.(mcp.TextContent); ok {
			out.WriteString(text.Text)
		}
	}
	return out.String(), nil
}

// Close shuts down the underlying MCP session, if one was started.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return nil
	}
	return c.mcp.Close()
}

func envSlice(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, fmt.Sprintf("%s=%s", k, v))
	}
	return out
}

// convertSchema normalizes an MCP tool's raw JSON input schema into the
// map[string]any shape the Generator's prompt renders, by marshaling and
// unmarshaling through JSON rather than assuming specific field names.
func convertSchema(schema mcp.ToolInputSchema) map[string]any {
	data, err := json.Marshal(schema)
	if err != nil {
		return nil
	}
	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil
	}
	return result
}
