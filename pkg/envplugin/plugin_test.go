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
	"errors"
	"net"
	"net/rpc"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEvaluator struct {
	resp Response
	err  error
}

func (f *fakeEvaluator) Evaluate(req Request) (Response, error) {
	return f.resp, f.err
}

// TestEvaluatorRPCRoundTrips exercises the net/rpc server/client glue
// directly over an in-process pipe, without spawning a real plugin
// subprocess (which Connect/Serve require).
func TestEvaluatorRPCRoundTrips(t *testing.T) {
	impl := &fakeEvaluator{resp: Response{Passed: true, Diagnostics: "ok"}}
	server := rpc.NewServer()
	require.NoError(t, server.RegisterName(pluginName, &evaluatorRPCServer{impl: impl}))

	clientConn, serverConn := net.Pipe()
	go server.ServeConn(serverConn)
	defer clientConn.Close()

	client := &evaluatorRPCClient{client: rpc.NewClient(clientConn)}
	resp, err := client.Evaluate(Request{Query: "q", GeneratorOutput: "a"})
	require.NoError(t, err)
	assert.True(t, resp.Passed)
	assert.Equal(t, "ok", resp.Diagnostics)
}

func TestEvaluatorRPCPropagatesError(t *testing.T) {
	impl := &fakeEvaluator{err: errors.New("boom")}
	server := rpc.NewServer()
	require.NoError(t, server.RegisterName(pluginName, &evaluatorRPCServer{impl: impl}))

	clientConn, serverConn := net.Pipe()
	go server.ServeConn(serverConn)
	defer clientConn.Close()

	client := &evaluatorRPCClient{client: rpc.NewClient(clientConn)}
	_, err := client.Evaluate(Request{})
	assert.Error(t, err)
}

func TestConnectRequiresCommand(t *testing.T) {
	_, err := Connect(Config{})
	assert.Error(t, err)
}
