package pipeline

import (
	"context"
	"fmt"
	"os"
	"unicode/utf8"

	"go.uber.org/zap"

	"docrag/internal/domain"
	"docrag/internal/vectorstore"
)

// DefaultTopK is the number of chunks retrieved when the caller does not ask
// for a specific count.
const DefaultTopK = 3

// Pipeline exposes corpus lifecycle and query-time retrieval over a vector
// index. Retrieval never propagates failures to the caller: an answer without
// grounding context beats no answer, so errors are logged and an empty result
// is returned instead.
type Pipeline struct {
	index  domain.Index
	path   string
	logger *zap.Logger
}

// New wraps an index. When path is non-empty the corpus is persisted there as
// companion files, and any index already on disk is loaded best-effort: a
// corrupt or missing index logs a warning and the pipeline starts empty.
func New(index domain.Index, path string, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pipeline{index: index, path: path, logger: logger}
	if path != "" {
		if _, err := os.Stat(path + vectorstore.VecExt); err == nil {
			if err := p.index.Load(path); err != nil {
				p.logger.Warn("could not load existing index", zap.String("path", path), zap.Error(err))
			}
		}
	}
	return p
}

// AddDocument indexes the chunks and persists the updated corpus when a
// storage path is configured. A failed save is logged and not returned, since
// in-memory retrieval remains correct for the rest of the process lifetime.
func (p *Pipeline) AddDocument(ctx context.Context, chunks []domain.Chunk) error {
	if err := p.index.Add(ctx, chunks); err != nil {
		return fmt.Errorf("add document: %w", err)
	}
	if p.path != "" {
		if err := p.index.Save(p.path); err != nil {
			p.logger.Error("could not persist index after add", zap.String("path", p.path), zap.Error(err))
		}
	}
	p.logger.Info("document added", zap.Int("chunks", len(chunks)))
	return nil
}

// FindRelevantChunks returns the topK most relevant chunks for the query in
// rank order, falling back to DefaultTopK when topK is not positive. Any
// failure, including an unreachable embedding model, yields an empty slice.
func (p *Pipeline) FindRelevantChunks(ctx context.Context, query string, topK int) []domain.Chunk {
	if topK <= 0 {
		topK = DefaultTopK
	}
	results, err := p.index.Search(ctx, query, topK)
	if err != nil {
		p.logger.Error("retrieval failed", zap.String("query", preview(query)), zap.Error(err))
		return nil
	}
	chunks := make([]domain.Chunk, 0, len(results))
	for _, r := range results {
		chunks = append(chunks, r.Chunk)
	}
	p.logger.Info("retrieved chunks", zap.Int("count", len(chunks)))
	return chunks
}

// ScoredPreview pairs a truncated chunk content with its similarity score, for
// debugging and score inspection.
type ScoredPreview struct {
	Preview string
	Score   float32
}

// SimilarityScores returns (content preview, score) pairs for the query.
func (p *Pipeline) SimilarityScores(ctx context.Context, query string, topK int) ([]ScoredPreview, error) {
	results, err := p.index.Search(ctx, query, topK)
	if err != nil {
		return nil, err
	}
	out := make([]ScoredPreview, 0, len(results))
	for _, r := range results {
		out = append(out, ScoredPreview{Preview: preview(r.Chunk.Content), Score: r.Score})
	}
	return out, nil
}

// Clear empties the index and removes its persisted artifacts.
func (p *Pipeline) Clear() {
	p.index.Clear()
	if p.path != "" {
		for _, ext := range []string{vectorstore.VecExt, vectorstore.SidecarExt} {
			if err := os.Remove(p.path + ext); err != nil && !os.IsNotExist(err) {
				p.logger.Warn("could not remove index file", zap.String("file", p.path+ext), zap.Error(err))
			}
		}
	}
	p.logger.Info("pipeline cleared")
}

// Save persists the index to the configured path.
func (p *Pipeline) Save() error {
	if p.path == "" {
		return fmt.Errorf("%w: no storage path configured", domain.ErrInvalidInput)
	}
	return p.index.Save(p.path)
}

// Load restores the index from the configured path. On failure the pipeline
// stays in its previous state.
func (p *Pipeline) Load() error {
	if p.path == "" {
		return fmt.Errorf("%w: no storage path configured", domain.ErrInvalidInput)
	}
	return p.index.Load(p.path)
}

// Stats reports the current index contents.
func (p *Pipeline) Stats() domain.Stats { return p.index.Stats() }

func preview(s string) string {
	const max = 100
	if len(s) <= max {
		return s
	}
	// Back up to a rune boundary so the cut never splits a multi-byte rune.
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
