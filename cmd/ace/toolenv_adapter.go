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

	"github.com/hungson175/ace/pkg/generator"
	"github.com/hungson175/ace/pkg/toolenv"
)

// toolCallerAdapter bridges pkg/toolenv.Client to pkg/generator.ToolCaller:
// both describe a tool the same way, but as distinct named types, so
// []toolenv.Tool does not satisfy []generator.Tool on its own.
type toolCallerAdapter struct {
	client *toolenv.Client
}

func (a toolCallerAdapter) ListTools(ctx context.Context) ([]generator.Tool, error) {
	tools, err := a.client.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]generator.Tool, len(tools))
	for i, t := range tools {
		out[i] = generator.Tool{Name: t.Name, Description: t.Description, Schema: t.Schema}
	}
	return out, nil
}

func (a toolCallerAdapter) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	return a.client.CallTool(ctx, name, args)
}
