package token

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// Counter reports how many tokens a text occupies under one tokenizer. Chunk
// token budgets are always enforced against a single Counter instance.
type Counter interface {
	Name() string
	Count(text string) int
}

// Tiktoken counts tokens with a BPE encoding, matching what generation models
// actually consume. cl100k_base is the canonical encoding for this engine.
type Tiktoken struct {
	encoding string
	enc      *tiktoken.Tiktoken
}

// NewTiktoken loads the named BPE encoding, e.g. "cl100k_base".
func NewTiktoken(encoding string) (*Tiktoken, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load tiktoken encoding %q: %w", encoding, err)
	}
	return &Tiktoken{encoding: encoding, enc: enc}, nil
}

func (t *Tiktoken) Name() string { return t.encoding }

func (t *Tiktoken) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}

// Words counts whitespace-separated words. It is a rough stand-in for BPE
// counts when the encoding data is unavailable, and keeps tests offline.
type Words struct{}

func (Words) Name() string { return "words" }

func (Words) Count(text string) int { return len(strings.Fields(text)) }
