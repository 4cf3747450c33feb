package embedding

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sort"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"docrag/internal/domain"
)

// OpenAI embeds text through the OpenAI embeddings API.
type OpenAI struct {
	client    *openai.Client
	model     string
	dimension int
	batchSize int
}

// OpenAIConfig configures the OpenAI embedder. APIKeyEnv names the environment
// variable holding the key.
type OpenAIConfig struct {
	APIKeyEnv string
	Model     string
	Timeout   time.Duration
	BatchSize int
}

// NewOpenAI builds an embedder for the configured model. A missing API key is
// reported as the model being unavailable, since no embedding can ever succeed.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "OPENAI_API_KEY"
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("%w: missing API key in env %s", domain.ErrModelUnavailable, cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		cfg.Model = string(openai.SmallEmbedding3)
	}
	dim, ok := modelDimensions[cfg.Model]
	if !ok {
		return nil, fmt.Errorf("%w: unknown embedding model %q", domain.ErrInvalidInput, cfg.Model)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	clientCfg := openai.DefaultConfig(key)
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &OpenAI{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     cfg.Model,
		dimension: dim,
		batchSize: cfg.BatchSize,
	}, nil
}

var modelDimensions = map[string]int{
	string(openai.SmallEmbedding3): 1536,
	string(openai.LargeEmbedding3): 3072,
	string(openai.AdaEmbeddingV2):  1536,
}

func (e *OpenAI) Name() string { return "openai/" + e.model }

func (e *OpenAI) Dimension() int { return e.dimension }

// Embed requests embeddings in batches, preserving input order. Vectors are
// L2-normalized before being returned.
func (e *OpenAI) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	for i, t := range texts {
		if t == "" {
			return nil, fmt.Errorf("%w: text %d is empty", domain.ErrEncoding, i)
		}
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := e.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}
	return out, nil
}

func (e *OpenAI) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrModelUnavailable, err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", domain.ErrEncoding, len(resp.Data), len(texts))
	}
	sort.Slice(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })
	vectors := make([][]float32, len(texts))
	for i, d := range resp.Data {
		if len(d.Embedding) != e.dimension {
			return nil, fmt.Errorf("%w: embedding %d has dimension %d, want %d", domain.ErrEncoding, i, len(d.Embedding), e.dimension)
		}
		v := append([]float32(nil), d.Embedding...)
		Normalize(v)
		vectors[i] = v
	}
	return vectors, nil
}
