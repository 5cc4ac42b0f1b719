package embeddings

import (
	"context"
	"fmt"
	"time"

	"ragcore/internal/rcerrors"
	"ragcore/internal/retry"
)

// RetryableProvider wraps a Provider with exponential-backoff retry,
// retrying only rcerrors.TransientUpstream failures per the taxonomy.
type RetryableProvider struct {
	provider Provider
	retrier  *retry.Retrier
}

// NewRetryableProvider wraps provider with the given retry config,
// defaulting to defaultEmbeddingRetryConfig when config is nil.
func NewRetryableProvider(provider Provider, config *retry.Config) *RetryableProvider {
	if config == nil {
		config = defaultEmbeddingRetryConfig()
	}
	return &RetryableProvider{provider: provider, retrier: retry.New(config)}
}

func defaultEmbeddingRetryConfig() *retry.Config {
	return &retry.Config{
		MaxAttempts:     3,
		InitialDelay:    500 * time.Millisecond,
		MaxDelay:        10 * time.Second,
		Multiplier:      2.0,
		RandomizeFactor: 0.2,
		RetryIf:         rcerrors.IsRetryable,
	}
}

// Generate embeds text, retrying transient upstream failures.
func (r *RetryableProvider) Generate(ctx context.Context, text string) ([]float64, error) {
	var embedding []float64
	result := r.retrier.Do(ctx, func(ctx context.Context) error {
		var err error
		embedding, err = r.provider.Generate(ctx, text)
		return err
	})
	if result.Err != nil {
		return nil, fmt.Errorf("embeddings: generate failed after %d attempts: %w", result.Attempts, result.Err)
	}
	return embedding, nil
}

// GenerateBatch embeds texts, retrying transient upstream failures.
func (r *RetryableProvider) GenerateBatch(ctx context.Context, texts []string) ([][]float64, error) {
	var embeddings [][]float64
	result := r.retrier.Do(ctx, func(ctx context.Context) error {
		var err error
		embeddings, err = r.provider.GenerateBatch(ctx, texts)
		return err
	})
	if result.Err != nil {
		return nil, fmt.Errorf("embeddings: generate batch failed after %d attempts: %w", result.Attempts, result.Err)
	}
	return embeddings, nil
}

// Dimensions delegates to the wrapped provider; no retry needed.
func (r *RetryableProvider) Dimensions() int {
	return r.provider.Dimensions()
}

// HealthCheck checks the wrapped provider with a shorter, higher-frequency
// retry schedule suited to liveness probes.
func (r *RetryableProvider) HealthCheck(ctx context.Context) error {
	healthRetrier := retry.New(&retry.Config{
		MaxAttempts:     5,
		InitialDelay:    200 * time.Millisecond,
		MaxDelay:        2 * time.Second,
		Multiplier:      1.5,
		RandomizeFactor: 0.1,
		RetryIf:         rcerrors.IsRetryable,
	})
	result := healthRetrier.Do(ctx, r.provider.HealthCheck)
	if result.Err != nil {
		return fmt.Errorf("embeddings: health check failed after %d attempts: %w", result.Attempts, result.Err)
	}
	return nil
}
