package providers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockEmbeddingProviderDeterministic(t *testing.T) {
	p := NewMockEmbeddingProvider(32)

	out1, err := p.Embed(context.Background(), []string{"hello world"}, "")
	require.NoError(t, err)
	out2, err := p.Embed(context.Background(), []string{"hello world"}, "")
	require.NoError(t, err)

	require.Len(t, out1, 1)
	require.Len(t, out1[0], 32)
	assert.Equal(t, out1[0], out2[0])
}

func TestMockEmbeddingProviderDifferentTextsDiffer(t *testing.T) {
	p := NewMockEmbeddingProvider(32)

	out, err := p.Embed(context.Background(), []string{"alpha", "beta"}, "")
	require.NoError(t, err)
	assert.NotEqual(t, out[0], out[1])
}

func TestMockEmbeddingProviderVectorIsNormalized(t *testing.T) {
	p := NewMockEmbeddingProvider(64)

	out, err := p.Embed(context.Background(), []string{"normalize me"}, "")
	require.NoError(t, err)

	var sumSquares float64
	for _, x := range out[0] {
		sumSquares += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, sumSquares, 1e-4)
}

func TestMockEmbeddingProviderOverrideAndCallCount(t *testing.T) {
	p := NewMockEmbeddingProvider(4)
	override := []float32{1, 0, 0, 0}
	p.SetEmbeddingForText("fixed", override)

	out, err := p.Embed(context.Background(), []string{"fixed"}, "")
	require.NoError(t, err)
	assert.Equal(t, override, out[0])
	assert.Equal(t, 1, p.CallCount())
}

func TestCosineSimilarityIdenticalVectors(t *testing.T) {
	v := []float32{1, 2, 3}
	sim, err := CosineSimilarity(v, v)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sim, 1e-9)
}

func TestCosineSimilarityOrthogonalVectors(t *testing.T) {
	sim, err := CosineSimilarity([]float32{1, 0}, []float32{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, sim, 1e-9)
}

func TestCosineSimilarityDimensionMismatch(t *testing.T) {
	_, err := CosineSimilarity([]float32{1, 2}, []float32{1})
	assert.Error(t, err)
}

func TestCosineSimilarityZeroVector(t *testing.T) {
	sim, err := CosineSimilarity([]float32{0, 0}, []float32{1, 1})
	require.NoError(t, err)
	assert.Equal(t, 0.0, sim)
}
