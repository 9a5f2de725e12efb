package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChromemCandidatesExcludesSelfAndFindsNearest(t *testing.T) {
	store, err := newChromemStore(ChromemConfig{})
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, "strategies", "b1", []float32{1, 0, 0}))
	require.NoError(t, store.Upsert(ctx, "strategies", "b2", []float32{0.99, 0.01, 0}))
	require.NoError(t, store.Upsert(ctx, "strategies", "b3", []float32{0, 1, 0}))

	ids, err := store.Candidates("strategies", "b1", []float32{1, 0, 0}, 2)
	require.NoError(t, err)

	assert.NotContains(t, ids, "b1")
	assert.Contains(t, ids, "b2")
}

func TestChromemCandidatesIsolatedBySection(t *testing.T) {
	store, err := newChromemStore(ChromemConfig{})
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, "strategies", "b1", []float32{1, 0}))
	require.NoError(t, store.Upsert(ctx, "checklist", "b2", []float32{1, 0}))

	ids, err := store.Candidates("strategies", "b1", []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.NotContains(t, ids, "b2")
}

func TestChromemDeleteRemovesFromIndex(t *testing.T) {
	store, err := newChromemStore(ChromemConfig{})
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, "strategies", "b1", []float32{1, 0}))
	require.NoError(t, store.Upsert(ctx, "strategies", "b2", []float32{0.9, 0.1}))
	require.NoError(t, store.Delete(ctx, "strategies", "b2"))

	ids, err := store.Candidates("strategies", "b1", []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.NotContains(t, ids, "b2")
}

func TestNewDefaultsToChromemBackend(t *testing.T) {
	store, err := New(Config{})
	require.NoError(t, err)
	defer store.Close()
	_, ok := store.(*chromemStore)
	assert.True(t, ok)
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	_, err := New(Config{Type: "not-a-backend"})
	assert.Error(t, err)
}

func TestNewRejectsQdrantWithoutConfig(t *testing.T) {
	_, err := New(Config{Type: "qdrant"})
	assert.Error(t, err)
}
