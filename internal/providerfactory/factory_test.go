package providerfactory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragcore/internal/config"
)

func TestLLMRejectsDisabledProvider(t *testing.T) {
	f := New(&config.LLMConfig{
		OpenAI: config.ProviderSettings{Enabled: false},
	})

	_, err := f.LLM("openai")
	require.Error(t, err)
}

func TestLLMRejectsUnknownProvider(t *testing.T) {
	f := New(&config.LLMConfig{})

	_, err := f.LLM("made-up")
	require.Error(t, err)
}

func TestLLMCachesProviderUntilSettingsChange(t *testing.T) {
	cfg := &config.LLMConfig{
		OpenAI: config.ProviderSettings{Enabled: true, APIKey: "k1", Model: "gpt-4o-mini"},
	}
	f := New(cfg)

	first, err := f.LLM("openai")
	require.NoError(t, err)

	second, err := f.LLM("openai")
	require.NoError(t, err)
	assert.Same(t, first, second)

	cfg.OpenAI.APIKey = "k2"
	third, err := f.LLM("openai")
	require.NoError(t, err)
	assert.NotSame(t, first, third)
}

func TestDefaultUsesConfiguredDefaultProvider(t *testing.T) {
	f := New(&config.LLMConfig{
		DefaultProvider: "openai",
		OpenAI:          config.ProviderSettings{Enabled: true, APIKey: "k1"},
	})

	provider, err := f.Default()
	require.NoError(t, err)
	assert.NotNil(t, provider)
}

func TestDefaultErrorsWhenUnset(t *testing.T) {
	f := New(&config.LLMConfig{})

	_, err := f.Default()
	require.Error(t, err)
}

func TestEmbeddingCachesUntilConfigChange(t *testing.T) {
	f := New(&config.LLMConfig{})
	cfg := &config.EmbeddingConfig{APIKey: "k1", Model: "text-embedding-3-small"}

	first, err := f.Embedding(cfg)
	require.NoError(t, err)

	second, err := f.Embedding(cfg)
	require.NoError(t, err)
	assert.Same(t, first, second)
}
