package domain

import "errors"

// Error taxonomy for the retrieval engine. Callers match with errors.Is.
var (
	// ErrInvalidInput marks malformed caller input (bad chunk sizes, overlap
	// not smaller than the chunk size, non-positive topK). Never retryable.
	ErrInvalidInput = errors.New("invalid input")

	// ErrModelUnavailable means the embedding backend could not be reached or
	// refused the request. Retryable only for transient transport failures.
	ErrModelUnavailable = errors.New("embedding model unavailable")

	// ErrEncoding means a specific text could not be embedded.
	ErrEncoding = errors.New("text could not be encoded")

	// ErrCorruptIndex means persisted index artifacts are missing, garbled, or
	// inconsistent with each other. The caller falls back to an empty index
	// and rebuilds from source documents.
	ErrCorruptIndex = errors.New("corrupt index")
)
