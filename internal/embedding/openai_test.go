package embedding

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/domain"
)

func TestNewOpenAI(t *testing.T) {
	const keyEnv = "DOCRAG_TEST_OPENAI_KEY"

	t.Run("missing API key means the model is unavailable", func(t *testing.T) {
		t.Setenv(keyEnv, "")
		_, err := NewOpenAI(OpenAIConfig{APIKeyEnv: keyEnv})
		assert.ErrorIs(t, err, domain.ErrModelUnavailable)
	})

	t.Run("unknown model is rejected", func(t *testing.T) {
		t.Setenv(keyEnv, "sk-test")
		_, err := NewOpenAI(OpenAIConfig{APIKeyEnv: keyEnv, Model: "no-such-model"})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("known models report their dimension", func(t *testing.T) {
		t.Setenv(keyEnv, "sk-test")
		for model, dim := range map[string]int{
			"text-embedding-3-small": 1536,
			"text-embedding-3-large": 3072,
			"text-embedding-ada-002": 1536,
		} {
			e, err := NewOpenAI(OpenAIConfig{APIKeyEnv: keyEnv, Model: model})
			require.NoError(t, err)
			assert.Equal(t, dim, e.Dimension())
			assert.Equal(t, "openai/"+model, e.Name())
		}
	})

	t.Run("timeout and batch size are accepted", func(t *testing.T) {
		t.Setenv(keyEnv, "sk-test")
		e, err := NewOpenAI(OpenAIConfig{
			APIKeyEnv: keyEnv,
			Timeout:   5 * time.Second,
			BatchSize: 8,
		})
		require.NoError(t, err)
		assert.Equal(t, 8, e.batchSize)
		assert.Equal(t, "openai/text-embedding-3-small", e.Name())
	})
}
