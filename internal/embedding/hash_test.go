package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/domain"
)

func TestNewHash(t *testing.T) {
	t.Run("rejects non-positive dimension", func(t *testing.T) {
		_, err := NewHash(0)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("reports name and dimension", func(t *testing.T) {
		e, err := NewHash(64)
		require.NoError(t, err)
		assert.Equal(t, "hash", e.Name())
		assert.Equal(t, 64, e.Dimension())
	})
}

func TestHash_Embed(t *testing.T) {
	e, err := NewHash(64)
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("preserves order and length", func(t *testing.T) {
		vectors, err := e.Embed(ctx, []string{"first text", "second text", "third text"})
		require.NoError(t, err)
		require.Len(t, vectors, 3)
		for _, v := range vectors {
			assert.Len(t, v, 64)
		}
	})

	t.Run("identical text maps to identical unit vectors", func(t *testing.T) {
		vectors, err := e.Embed(ctx, []string{"the same text", "the same text"})
		require.NoError(t, err)
		assert.Equal(t, vectors[0], vectors[1])
		assert.InDelta(t, 1.0, norm(vectors[0]), 1e-5)
	})

	t.Run("different texts map to different vectors", func(t *testing.T) {
		vectors, err := e.Embed(ctx, []string{"some text", "completely unrelated words"})
		require.NoError(t, err)
		assert.NotEqual(t, vectors[0], vectors[1])
	})

	t.Run("empty text is an encoding error", func(t *testing.T) {
		_, err := e.Embed(ctx, []string{"fine", ""})
		assert.ErrorIs(t, err, domain.ErrEncoding)
	})
}

func TestNormalize(t *testing.T) {
	t.Run("scales to unit length", func(t *testing.T) {
		v := []float32{3, 4}
		Normalize(v)
		assert.InDelta(t, 0.6, v[0], 1e-6)
		assert.InDelta(t, 0.8, v[1], 1e-6)
	})

	t.Run("leaves zero vector untouched", func(t *testing.T) {
		v := []float32{0, 0, 0}
		Normalize(v)
		assert.Equal(t, []float32{0, 0, 0}, v)
	})
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
