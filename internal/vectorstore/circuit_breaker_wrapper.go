package vectorstore

import (
	"context"
	"fmt"
	"time"

	"ragcore/internal/circuitbreaker"
	"ragcore/internal/types"
)

// CircuitBreakerStore wraps a Store with circuit breaker protection,
// tripping after repeated failures so a struggling backend stops being
// hammered by the retriever (C7).
type CircuitBreakerStore struct {
	store Store
	cb    *circuitbreaker.CircuitBreaker
}

// NewCircuitBreakerStore wraps store with the given circuit breaker config,
// defaulting to 5 failures to open, 2 successes to close, a 30s open
// timeout and 10 concurrent requests when config is nil.
func NewCircuitBreakerStore(store Store, config *circuitbreaker.Config) *CircuitBreakerStore {
	if config == nil {
		config = &circuitbreaker.Config{
			FailureThreshold:      5,
			SuccessThreshold:      2,
			Timeout:               30 * time.Second,
			MaxConcurrentRequests: 10,
		}
	}
	return &CircuitBreakerStore{store: store, cb: circuitbreaker.New(config)}
}

func (c *CircuitBreakerStore) CreateCollection(ctx context.Context, cfg CollectionConfig) error {
	err := c.cb.Execute(ctx, func(ctx context.Context) error {
		return c.store.CreateCollection(ctx, cfg)
	})
	if err != nil {
		return fmt.Errorf("vectorstore: backend unavailable: %w", err)
	}
	return nil
}

func (c *CircuitBreakerStore) DeleteCollection(ctx context.Context, name string) error {
	err := c.cb.Execute(ctx, func(ctx context.Context) error {
		return c.store.DeleteCollection(ctx, name)
	})
	if err != nil {
		return fmt.Errorf("vectorstore: backend unavailable: %w", err)
	}
	return nil
}

func (c *CircuitBreakerStore) AddDocuments(ctx context.Context, collection string, chunks []types.EmbeddedChunk) ([]string, error) {
	var ids []string
	err := c.cb.Execute(ctx, func(ctx context.Context) error {
		var err error
		ids, err = c.store.AddDocuments(ctx, collection, chunks)
		return err
	})
	if err != nil {
		return ids, fmt.Errorf("vectorstore: backend unavailable: %w", err)
	}
	return ids, nil
}

func (c *CircuitBreakerStore) Search(ctx context.Context, collection string, queryEmbedding []float32, topK int, expr map[string]string) ([]types.QueryResult, error) {
	var results []types.QueryResult
	err := c.cb.Execute(ctx, func(ctx context.Context) error {
		var err error
		results, err = c.store.Search(ctx, collection, queryEmbedding, topK, expr)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: backend unavailable: %w", err)
	}
	return results, nil
}

// HealthCheck bypasses the breaker; a liveness probe needs to report the
// backend's real state even while the breaker is open.
func (c *CircuitBreakerStore) HealthCheck(ctx context.Context, timeout time.Duration) (types.VectorDBResponse, error) {
	return c.store.HealthCheck(ctx, timeout)
}

func (c *CircuitBreakerStore) GetCollectionStats(ctx context.Context, name string) (types.CollectionStats, error) {
	var stats types.CollectionStats
	err := c.cb.Execute(ctx, func(ctx context.Context) error {
		var err error
		stats, err = c.store.GetCollectionStats(ctx, name)
		return err
	})
	if err != nil {
		return types.CollectionStats{}, fmt.Errorf("vectorstore: backend unavailable: %w", err)
	}
	return stats, nil
}

func (c *CircuitBreakerStore) WithConnection(ctx context.Context, fn func(Conn) error) error {
	return c.store.WithConnection(ctx, fn)
}

func (c *CircuitBreakerStore) Close() error {
	return c.store.Close()
}

// Stats returns the current circuit breaker statistics.
func (c *CircuitBreakerStore) Stats() circuitbreaker.Stats {
	return c.cb.GetStats()
}
