package domain

import "context"

// Embedder converts free text into fixed-dimension vectors. Embed preserves the
// order and length of its input and returns L2-normalized vectors, so inner
// products against the output are cosine similarities.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Chunker splits document text into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(text string, metadata map[string]string) ([]Chunk, error)
}

// Index stores chunk vectors and supports nearest-neighbor search with durable
// persistence. Writes must be serialized against reads by the caller; a single
// process owns an index instance.
type Index interface {
	Add(ctx context.Context, chunks []Chunk) error
	Search(ctx context.Context, query string, topK int) ([]SearchResult, error)
	Save(path string) error
	Load(path string) error
	Clear()
	Stats() Stats
}
