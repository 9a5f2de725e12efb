package embedclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsUnknownProviderType(t *testing.T) {
	_, err := New(Config{Type: "not-a-provider"})
	require.Error(t, err)
}

func TestOpenAIEmbedBatchReordersByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		// Deliberately return out of order to exercise the reordering logic.
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"index": 1, "embedding": []float32{0.4, 0.5}},
				{"index": 0, "embedding": []float32{0.1, 0.2}},
			},
		})
	}))
	defer srv.Close()

	client, err := New(Config{Type: "openai", APIKey: "test-key", Host: srv.URL, Model: "text-embedding-3-small"})
	require.NoError(t, err)

	vecs, err := client.EmbedBatch(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{0.1, 0.2}, vecs[0])
	assert.Equal(t, []float32{0.4, 0.5}, vecs[1])
}

func TestOpenAIEmbedBatchChunksByBatchSize(t *testing.T) {
	var requestCount int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount++
		var body openAIEmbeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		resp := map[string]any{}
		data := make([]map[string]any, len(body.Input))
		for i := range body.Input {
			data[i] = map[string]any{"index": i, "embedding": []float32{float32(i)}}
		}
		resp["data"] = data
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client, err := New(Config{Type: "openai", APIKey: "test-key", Host: srv.URL, BatchSize: 2})
	require.NoError(t, err)

	vecs, err := client.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Len(t, vecs, 3)
	assert.Equal(t, 2, requestCount)
}

func TestOllamaEmbedBatchCallsEmbedEndpointPerText(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/api/embed", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()

	client, err := New(Config{Type: "ollama", Host: srv.URL, Model: "nomic-embed-text"})
	require.NoError(t, err)

	vecs, err := client.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vecs[0])
}

func TestCohereEmbedBatchParsesEmbeddings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embed", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"embeddings": [][]float32{{0.1, 0.2}, {0.3, 0.4}},
		})
	}))
	defer srv.Close()

	client, err := New(Config{Type: "cohere", APIKey: "test-key", Host: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, 1024, client.Dimension())

	vecs, err := client.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0.1, 0.2}, {0.3, 0.4}}, vecs)
}

func TestCohereEmbedBatchSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"message": "invalid api key"})
	}))
	defer srv.Close()

	client, err := New(Config{Type: "cohere", APIKey: "bad-key", Host: srv.URL})
	require.NoError(t, err)

	_, err = client.EmbedBatch(context.Background(), []string{"a"})
	assert.ErrorContains(t, err, "invalid api key")
}

func TestAsPlaybookEmbedderDelegatesToEmbedBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"index": 0, "embedding": []float32{1, 2, 3}}},
		})
	}))
	defer srv.Close()

	client, err := New(Config{Type: "openai", APIKey: "test-key", Host: srv.URL})
	require.NoError(t, err)

	fn := AsPlaybookEmbedder(client)
	vecs, err := fn([]string{"hello"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 2, 3}}, vecs)
}
