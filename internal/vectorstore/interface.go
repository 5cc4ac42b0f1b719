// Package vectorstore implements the Vector Store component (C1): one
// public Store contract, satisfied by a Qdrant driver (production) and an
// in-process HNSW driver (embedded/test), plus resilience decorators shared
// by both.
package vectorstore

import (
	"context"
	"time"

	"ragcore/internal/vectorstore/pool"

	"ragcore/internal/types"
)

// CollectionConfig describes a collection to create. Dimension and Metric
// are immutable once the collection exists.
type CollectionConfig struct {
	Name        string
	Dimension   int
	Metric      types.Metric
	IndexKind   types.IndexKind
	IndexParams map[string]string
}

// Store is the C1 contract every backend driver and resilience decorator
// implements identically, so downstream pipeline code never branches on
// which backend answered a call.
type Store interface {
	CreateCollection(ctx context.Context, cfg CollectionConfig) error
	DeleteCollection(ctx context.Context, name string) error
	AddDocuments(ctx context.Context, collection string, chunks []types.EmbeddedChunk) ([]string, error)
	Search(ctx context.Context, collection string, queryEmbedding []float32, topK int, expr map[string]string) ([]types.QueryResult, error)
	HealthCheck(ctx context.Context, timeout time.Duration) (types.VectorDBResponse, error)
	GetCollectionStats(ctx context.Context, name string) (types.CollectionStats, error)
	// WithConnection runs fn against a pooled backend connection, releasing
	// it on every exit path (success, error, ctx cancellation) via a
	// deferred pool.Put inside the implementation.
	WithConnection(ctx context.Context, fn func(Conn) error) error
	Close() error
}

// Conn is the scoped handle WithConnection hands to its callback; it exists
// only so a driver's WithConnection can expose a backend-specific escape
// hatch without widening the Store interface itself.
type Conn interface {
	pool.Connection
}
