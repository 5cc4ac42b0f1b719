package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragcore/internal/rcerrors"
	"ragcore/internal/types"
)

func TestOpenAIDriverGenerateParsesCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"model": "gpt-4o-mini",
			"choices": [{"message": {"content": "hello there"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 5, "completion_tokens": 2}
		}`))
	}))
	defer srv.Close()

	driver, err := NewOpenAIDriver("test-key", srv.URL, "gpt-4o-mini")
	require.NoError(t, err)

	completion, err := driver.Generate(context.Background(), "hi", types.LLMParameters{})
	require.NoError(t, err)
	assert.Equal(t, "hello there", completion.Content)
	assert.Equal(t, "openai", completion.Provider)
	assert.Equal(t, 5, completion.Usage.PromptTokens)
}

func TestOpenAIDriverGenerateMapsRateLimitError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"slow down"}`))
	}))
	defer srv.Close()

	driver, err := NewOpenAIDriver("test-key", srv.URL, "")
	require.NoError(t, err)

	_, err = driver.Generate(context.Background(), "hi", types.LLMParameters{})
	require.Error(t, err)
	assert.True(t, rcerrors.IsRetryable(err))
}

func TestOpenAIDriverGenerateMapsAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	driver, err := NewOpenAIDriver("bad-key", srv.URL, "")
	require.NoError(t, err)

	_, err = driver.Generate(context.Background(), "hi", types.LLMParameters{})
	require.Error(t, err)
	kind, ok := rcerrors.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, rcerrors.KindPermanentUpstream, kind)
}

func TestNewOpenAIDriverRequiresAPIKey(t *testing.T) {
	_, err := NewOpenAIDriver("", "", "")
	require.Error(t, err)
}
