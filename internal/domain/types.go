package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
)

// Chunk is a token-bounded span of processed document text. Chunks are read-only
// after creation.
type Chunk struct {
	ID         string
	Content    string
	Metadata   map[string]string
	TokenCount int
}

// SearchResult is a matching chunk with a similarity score. Scores are inner
// products of unit vectors, so higher means more similar and values are
// comparable across queries on the same index.
type SearchResult struct {
	Chunk Chunk
	Score float32
}

// Stats describes the current contents of an index.
type Stats struct {
	Chunks      int
	Dimension   int
	Model       string
	TotalTokens int
	AvgTokens   float64
}

// ChunkID derives a stable identifier from content and metadata. Identical
// content under identical metadata always produces the same id, so re-adding
// the same span is detectable by the caller. The hash is kept full length;
// truncated ids invite silent collisions.
func ChunkID(content string, metadata map[string]string) string {
	h := sha256.New()
	h.Write([]byte(content))
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		h.Write([]byte{0})
		h.Write([]byte(k))
		h.Write([]byte{0})
		h.Write([]byte(metadata[k]))
	}
	return hex.EncodeToString(h.Sum(nil))
}
