package embedder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockEmbedDeterministic(t *testing.T) {
	mock := &MockProvider{Dims: 8}
	ctx := context.Background()

	a, err := mock.Embed(ctx, "works as a nurse")
	require.NoError(t, err)
	b, err := mock.Embed(ctx, "works as a nurse")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 8)

	// Unit length.
	var norm float64
	for _, v := range a {
		norm += v * v
	}
	assert.InDelta(t, 1.0, norm, 1e-9)
}

func TestMockEmbedBatchPreservesOrder(t *testing.T) {
	mock := &MockProvider{Dims: 8}
	ctx := context.Background()

	texts := []string{"alpha", "beta", "gamma"}
	vectors, err := mock.EmbedBatch(ctx, texts)
	require.NoError(t, err)
	require.Len(t, vectors, 3)

	for i, text := range texts {
		single, err := mock.Embed(ctx, text)
		require.NoError(t, err)
		assert.Equal(t, single, vectors[i])
	}
}

func TestMockEmbedBatchPartialFailure(t *testing.T) {
	mock := &MockProvider{Dims: 8, FailTexts: []string{"beta"}}

	vectors, err := mock.EmbedBatch(context.Background(), []string{"alpha", "beta", "gamma"})
	require.Error(t, err)
	require.Len(t, vectors, 3)

	// The failed entry is nil; its siblings still embed.
	assert.NotNil(t, vectors[0])
	assert.Nil(t, vectors[1])
	assert.NotNil(t, vectors[2])
}

func TestMockDimensionsDefault(t *testing.T) {
	assert.Equal(t, 8, (&MockProvider{}).Dimensions())
	assert.Equal(t, 32, (&MockProvider{Dims: 32}).Dimensions())
}
