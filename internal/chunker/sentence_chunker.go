package chunker

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"docrag/internal/domain"
	"docrag/internal/token"
)

// SentenceChunker splits text into token-bounded chunks at sentence boundaries,
// carrying the last sentences of each chunk into the next one as overlap.
type SentenceChunker struct {
	chunkSize    int
	chunkOverlap int
	counter      token.Counter
	disallowed   *regexp.Regexp
	spaceRun     *regexp.Regexp
	sentenceEnd  *regexp.Regexp
}

// New returns a chunker enforcing a token budget of chunkSize per chunk.
// chunkOverlap is the target number of overlap tokens between consecutive
// chunks and must be smaller than chunkSize.
func New(chunkSize, chunkOverlap int, counter token.Counter) (*SentenceChunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size %d must be positive", domain.ErrInvalidInput, chunkSize)
	}
	if chunkOverlap < 0 {
		return nil, fmt.Errorf("%w: chunk overlap %d must not be negative", domain.ErrInvalidInput, chunkOverlap)
	}
	if chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("%w: chunk overlap %d must be smaller than chunk size %d", domain.ErrInvalidInput, chunkOverlap, chunkSize)
	}
	if counter == nil {
		return nil, fmt.Errorf("%w: token counter is required", domain.ErrInvalidInput)
	}
	return &SentenceChunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		counter:      counter,
		disallowed:   regexp.MustCompile(`[^\p{L}\p{N}_\s.,!?;:\-()\[\]{}"']`),
		spaceRun:     regexp.MustCompile(`\s+`),
		sentenceEnd:  regexp.MustCompile(`[.!?]+ `),
	}, nil
}

// Chunk converts text into an ordered sequence of chunks carrying metadata.
// Empty or all-noise input yields no chunks and no error.
func (c *SentenceChunker) Chunk(text string, metadata map[string]string) ([]domain.Chunk, error) {
	clean := c.preprocess(text)
	sentences := c.splitSentences(clean)
	if len(sentences) == 0 {
		return nil, nil
	}

	var chunks []domain.Chunk
	var current []string
	currentTokens := 0

	for _, sentence := range sentences {
		n := c.counter.Count(sentence)
		if currentTokens+n > c.chunkSize && len(current) > 0 {
			chunks = append(chunks, c.emit(current, currentTokens, metadata))

			// Seed the next chunk with the tail of the closed one. Two
			// sentences of carry-over approximate the overlap budget; the
			// token-precise variant is deliberately not attempted.
			overlap := current
			if len(overlap) > 2 {
				overlap = overlap[len(overlap)-2:]
			}
			current = append(append([]string(nil), overlap...), sentence)
			currentTokens = 0
			for _, s := range current {
				currentTokens += c.counter.Count(s)
			}
		} else {
			current = append(current, sentence)
			currentTokens += n
		}
	}
	if len(current) > 0 {
		chunks = append(chunks, c.emit(current, currentTokens, metadata))
	}
	return chunks, nil
}

func (c *SentenceChunker) emit(sentences []string, tokens int, metadata map[string]string) domain.Chunk {
	content := strings.Join(sentences, " ")
	return domain.Chunk{
		ID:         domain.ChunkID(content, metadata),
		Content:    content,
		Metadata:   metadata,
		TokenCount: tokens,
	}
}

// preprocess collapses whitespace and strips characters outside the
// alphanumeric/punctuation allowlist.
func (c *SentenceChunker) preprocess(text string) string {
	text = strings.ReplaceAll(text, "\n", " ")
	text = strings.ReplaceAll(text, "\r", " ")
	text = c.disallowed.ReplaceAllString(text, "")
	text = c.spaceRun.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// splitSentences cuts normalized text after sentence-ending punctuation
// followed by a space. Fragments of three characters or fewer are noise and
// are dropped. Text with no sentence-ending punctuation is one sentence.
func (c *SentenceChunker) splitSentences(text string) []string {
	if text == "" {
		return nil
	}
	var sentences []string
	start := 0
	for _, loc := range c.sentenceEnd.FindAllStringIndex(text, -1) {
		s := strings.TrimSpace(text[start : loc[1]-1])
		if utf8.RuneCountInString(s) > 3 {
			sentences = append(sentences, s)
		}
		start = loc[1]
	}
	if tail := strings.TrimSpace(text[start:]); utf8.RuneCountInString(tail) > 3 {
		sentences = append(sentences, tail)
	}
	return sentences
}

// Summary aggregates statistics over a chunking run.
type Summary struct {
	Chunks      int
	TotalTokens int
	AvgTokens   float64
}

// Summarize reports chunk counts and token totals for a produced sequence.
func Summarize(chunks []domain.Chunk) Summary {
	s := Summary{Chunks: len(chunks)}
	for _, ch := range chunks {
		s.TotalTokens += ch.TokenCount
	}
	if s.Chunks > 0 {
		s.AvgTokens = float64(s.TotalTokens) / float64(s.Chunks)
	}
	return s
}
