package vectorstore

import (
	"context"
	"fmt"
	"time"

	"ragcore/internal/rcerrors"
	"ragcore/internal/retry"
	"ragcore/internal/types"
)

// RetryableStore wraps a Store with exponential-backoff retry, retrying
// only rcerrors.TransientUpstream failures per the taxonomy.
type RetryableStore struct {
	store   Store
	retrier *retry.Retrier
}

// NewRetryableStore wraps store with the given retry config, defaulting to
// defaultStoreRetryConfig when config is nil.
func NewRetryableStore(store Store, config *retry.Config) *RetryableStore {
	if config == nil {
		config = defaultStoreRetryConfig()
	}
	return &RetryableStore{store: store, retrier: retry.New(config)}
}

func defaultStoreRetryConfig() *retry.Config {
	return &retry.Config{
		MaxAttempts:     3,
		InitialDelay:    300 * time.Millisecond,
		MaxDelay:        5 * time.Second,
		Multiplier:      2.0,
		RandomizeFactor: 0.2,
		RetryIf:         rcerrors.IsRetryable,
	}
}

func (r *RetryableStore) CreateCollection(ctx context.Context, cfg CollectionConfig) error {
	result := r.retrier.Do(ctx, func(ctx context.Context) error {
		return r.store.CreateCollection(ctx, cfg)
	})
	if result.Err != nil {
		return fmt.Errorf("vectorstore: create collection failed after %d attempts: %w", result.Attempts, result.Err)
	}
	return nil
}

func (r *RetryableStore) DeleteCollection(ctx context.Context, name string) error {
	result := r.retrier.Do(ctx, func(ctx context.Context) error {
		return r.store.DeleteCollection(ctx, name)
	})
	if result.Err != nil {
		return fmt.Errorf("vectorstore: delete collection failed after %d attempts: %w", result.Attempts, result.Err)
	}
	return nil
}

func (r *RetryableStore) AddDocuments(ctx context.Context, collection string, chunks []types.EmbeddedChunk) ([]string, error) {
	var ids []string
	result := r.retrier.Do(ctx, func(ctx context.Context) error {
		var err error
		ids, err = r.store.AddDocuments(ctx, collection, chunks)
		return err
	})
	if result.Err != nil {
		return ids, fmt.Errorf("vectorstore: add documents failed after %d attempts: %w", result.Attempts, result.Err)
	}
	return ids, nil
}

func (r *RetryableStore) Search(ctx context.Context, collection string, queryEmbedding []float32, topK int, expr map[string]string) ([]types.QueryResult, error) {
	var results []types.QueryResult
	result := r.retrier.Do(ctx, func(ctx context.Context) error {
		var err error
		results, err = r.store.Search(ctx, collection, queryEmbedding, topK, expr)
		return err
	})
	if result.Err != nil {
		return nil, fmt.Errorf("vectorstore: search failed after %d attempts: %w", result.Attempts, result.Err)
	}
	return results, nil
}

// HealthCheck delegates directly; retrying a liveness probe would just
// mask the very condition it exists to report.
func (r *RetryableStore) HealthCheck(ctx context.Context, timeout time.Duration) (types.VectorDBResponse, error) {
	return r.store.HealthCheck(ctx, timeout)
}

func (r *RetryableStore) GetCollectionStats(ctx context.Context, name string) (types.CollectionStats, error) {
	var stats types.CollectionStats
	result := r.retrier.Do(ctx, func(ctx context.Context) error {
		var err error
		stats, err = r.store.GetCollectionStats(ctx, name)
		return err
	})
	if result.Err != nil {
		return types.CollectionStats{}, fmt.Errorf("vectorstore: get collection stats failed after %d attempts: %w", result.Attempts, result.Err)
	}
	return stats, nil
}

func (r *RetryableStore) WithConnection(ctx context.Context, fn func(Conn) error) error {
	return r.store.WithConnection(ctx, fn)
}

func (r *RetryableStore) Close() error {
	return r.store.Close()
}
