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

package toolenv

import (
	"sort"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresCommand(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestEnvSliceFormatsKeyValuePairs(t *testing.T) {
	out := envSlice(map[string]string{"A": "1", "B": "2"})
	sort.Strings(out)
	assert.Equal(t, []string{"A=1", "B=2"}, out)
}

func TestConvertSchemaRoundTripsViaJSON(t *testing.T) {
	schema := mcp.ToolInputSchema{
		Type:     "object",
		Required: []string{"query"},
	}
	out := convertSchema(schema)
	require.NotNil(t, out)
	assert.Equal(t, "object", out["type"])
	assert.Equal(t, []any{"query"}, out["required"])
}
