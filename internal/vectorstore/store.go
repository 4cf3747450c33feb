package vectorstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"docrag/internal/domain"
)

// Store is a flat vector index over parallel chunk and vector slices, scored by
// brute-force inner product. Vectors come from the injected embedder, so the
// population of the vector slice always equals the chunk count. Since embedders
// return unit vectors, scores are cosine similarities.
type Store struct {
	mu       sync.RWMutex
	embedder domain.Embedder
	logger   *zap.Logger
	chunks   []domain.Chunk
	vectors  [][]float32
}

// New returns an empty store indexing through the given embedder.
func New(embedder domain.Embedder, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{embedder: embedder, logger: logger}
}

// Add embeds the chunks and appends them to the index. The whole batch is
// embedded before any state changes, so a failed embedding leaves the store
// untouched. An empty batch is a no-op.
func (s *Store) Add(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Content
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed %d chunks: %w", len(chunks), err)
	}
	dim := s.embedder.Dimension()
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("%w: vector %d has dimension %d, want %d", domain.ErrEncoding, i, len(v), dim)
		}
	}

	s.mu.Lock()
	s.chunks = append(s.chunks, chunks...)
	s.vectors = append(s.vectors, vectors...)
	s.mu.Unlock()

	s.logger.Info("added chunks to index", zap.Int("chunks", len(chunks)))
	return nil
}

// Search embeds the query and returns up to topK results by descending inner
// product. An empty index yields an empty result, not an error.
func (s *Store) Search(ctx context.Context, query string, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK %d must be positive", domain.ErrInvalidInput, topK)
	}

	s.mu.RLock()
	empty := len(s.chunks) == 0
	s.mu.RUnlock()
	if empty {
		return nil, nil
	}

	// Embed outside the lock; the caller serializes writes against reads.
	qv, err := s.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.chunks) == 0 {
		return nil, nil
	}

	idxs := make([]int, len(s.vectors))
	scores := make([]float32, len(s.vectors))
	for i, v := range s.vectors {
		idxs[i] = i
		scores[i] = dot(v, qv)
	}
	sort.Slice(idxs, func(a, b int) bool { return scores[idxs[a]] > scores[idxs[b]] })

	if topK > len(idxs) {
		topK = len(idxs)
	}
	results := make([]domain.SearchResult, 0, topK)
	for _, j := range idxs[:topK] {
		results = append(results, domain.SearchResult{Chunk: s.chunks[j], Score: scores[j]})
	}
	return results, nil
}

func (s *Store) embedQuery(ctx context.Context, query string) ([]float32, error) {
	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 || len(vectors[0]) != s.embedder.Dimension() {
		return nil, fmt.Errorf("%w: query embedding has wrong shape", domain.ErrEncoding)
	}
	return vectors[0], nil
}

// Clear resets the store to the empty state.
func (s *Store) Clear() {
	s.mu.Lock()
	s.chunks = nil
	s.vectors = nil
	s.mu.Unlock()
	s.logger.Info("index cleared")
}

// Stats reports the current index contents.
func (s *Store) Stats() domain.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := domain.Stats{
		Chunks:    len(s.chunks),
		Dimension: s.embedder.Dimension(),
		Model:     s.embedder.Name(),
	}
	for _, ch := range s.chunks {
		st.TotalTokens += ch.TokenCount
	}
	if st.Chunks > 0 {
		st.AvgTokens = float64(st.TotalTokens) / float64(st.Chunks)
	}
	return st
}

func dot(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float32
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
