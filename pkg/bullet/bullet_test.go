package bullet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulletScore(t *testing.T) {
	b := &Bullet{HelpfulCount: 5, HarmfulCount: 2}
	assert.Equal(t, 3, b.Score())
}

func TestBulletCloneIsIndependent(t *testing.T) {
	b := &Bullet{ID: "ctx-00001", Content: "use phone app contacts", Embedding: []float32{0.1, 0.2}}
	clone := b.Clone()
	require.NotNil(t, clone)

	clone.Content = "mutated"
	clone.Embedding[0] = 9.9

	assert.Equal(t, "use phone app contacts", b.Content)
	assert.Equal(t, float32(0.1), b.Embedding[0])
}

func TestBulletCloneNil(t *testing.T) {
	var b *Bullet
	assert.Nil(t, b.Clone())
}
