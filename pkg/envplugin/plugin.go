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
	"net/rpc"

	"github.com/hashicorp/go-plugin"
)

// handshake identifies this as an ACE environment plugin, distinct from
// any other go-plugin binary that might accidentally be invoked.
var handshake = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "ACE_ENV_PLUGIN",
	MagicCookieValue: "ace-evaluator-v1",
}

const pluginName = "evaluator"

// pluginMap is shared by both the host (Connect) and a plugin binary
// (Serve).
func pluginMap(impl Evaluator) map[string]plugin.Plugin {
	return map[string]plugin.Plugin{
		pluginName: &evaluatorPlugin{impl: impl},
	}
}

// evaluatorPlugin is the plugin.Plugin implementation, using
// go-plugin's net/rpc transport (no protobuf/code generation needed:
// Request/Response are plain gob-encodable structs).
type evaluatorPlugin struct {
	impl Evaluator
}

func (p *evaluatorPlugin) Server(*plugin.MuxBroker) (interface{}, error) {
	return &evaluatorRPCServer{impl: p.impl}, nil
}

func (p *evaluatorPlugin) Client(_ *plugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &evaluatorRPCClient{client: c}, nil
}

// evaluatorRPCServer runs inside the plugin binary, delegating to the
// real Evaluator implementation.
type evaluatorRPCServer struct {
	impl Evaluator
}

func (s *evaluatorRPCServer) Evaluate(req Request, resp *Response) error {
	out, err := s.impl.Evaluate(req)
	if err != nil {
		return err
	}
	*resp = out
	return nil
}

// evaluatorRPCClient runs in the ACE host process and satisfies
// Evaluator by forwarding calls over net/rpc to the plugin binary.
type evaluatorRPCClient struct {
	client *rpc.Client
}

func (c *evaluatorRPCClient) Evaluate(req Request) (Response, error) {
	var resp Response
	if err := c.client.Call(pluginName+".Evaluate", req, &resp); err != nil {
		return Response{}, err
	}
	return resp, nil
}
