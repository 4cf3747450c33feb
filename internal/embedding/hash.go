package embedding

import (
	"context"
	"fmt"
	"math"

	"docrag/internal/domain"
)

// Hash is a deterministic local embedder. It folds character values into a
// fixed-dimension vector and normalizes it, so identical texts always map to
// identical unit vectors. Retrieval quality is crude; its role is offline
// operation and tests that need a real Embedder without a network model.
type Hash struct {
	dimension int
}

// NewHash returns a hash embedder producing vectors of the given dimension.
func NewHash(dimension int) (*Hash, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension %d must be positive", domain.ErrInvalidInput, dimension)
	}
	return &Hash{dimension: dimension}, nil
}

func (e *Hash) Name() string { return "hash" }

func (e *Hash) Dimension() int { return e.dimension }

func (e *Hash) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		if text == "" {
			return nil, fmt.Errorf("%w: text %d is empty", domain.ErrEncoding, i)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v := make([]float32, e.dimension)
		for j, r := range text {
			v[j%e.dimension] += float32(r) / 1000.0
		}
		Normalize(v)
		vectors[i] = v
	}
	return vectors, nil
}

// Normalize scales v to unit length in place. Zero vectors are left untouched.
func Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}
