package embeddings

import (
	"context"
	"fmt"
	"time"

	"ragcore/internal/circuitbreaker"
)

// CircuitBreakerProvider wraps a Provider with circuit breaker protection,
// tripping after repeated failures so a struggling upstream stops being
// hammered by the retriever (C7).
type CircuitBreakerProvider struct {
	provider Provider
	cb       *circuitbreaker.CircuitBreaker
}

// NewCircuitBreakerProvider wraps provider with the given circuit breaker
// config, defaulting to a lower failure threshold than the generic
// default since embedding calls sit on the hot path of every search.
func NewCircuitBreakerProvider(provider Provider, config *circuitbreaker.Config) *CircuitBreakerProvider {
	if config == nil {
		config = &circuitbreaker.Config{
			FailureThreshold:      3,
			SuccessThreshold:      2,
			Timeout:               20 * time.Second,
			MaxConcurrentRequests: 5,
		}
	}
	return &CircuitBreakerProvider{provider: provider, cb: circuitbreaker.New(config)}
}

// Generate embeds text through the circuit breaker.
func (p *CircuitBreakerProvider) Generate(ctx context.Context, text string) ([]float64, error) {
	var result []float64
	err := p.cb.Execute(ctx, func(ctx context.Context) error {
		var err error
		result, err = p.provider.Generate(ctx, text)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("embeddings: provider unavailable: %w", err)
	}
	return result, nil
}

// GenerateBatch embeds texts through the circuit breaker.
func (p *CircuitBreakerProvider) GenerateBatch(ctx context.Context, texts []string) ([][]float64, error) {
	var result [][]float64
	err := p.cb.Execute(ctx, func(ctx context.Context) error {
		var err error
		result, err = p.provider.GenerateBatch(ctx, texts)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("embeddings: provider unavailable: %w", err)
	}
	return result, nil
}

// Dimensions delegates to the wrapped provider.
func (p *CircuitBreakerProvider) Dimensions() int {
	return p.provider.Dimensions()
}

// HealthCheck runs the wrapped provider's health check through the breaker.
func (p *CircuitBreakerProvider) HealthCheck(ctx context.Context) error {
	return p.cb.Execute(ctx, p.provider.HealthCheck)
}

// Stats returns the current circuit breaker statistics.
func (p *CircuitBreakerProvider) Stats() circuitbreaker.Stats {
	return p.cb.GetStats()
}
