// Package retriever implements the Retriever component (C7): it turns a
// query string into scored chunks by embedding the query (C2) and searching
// a collection's vector index (C1), enforcing a deterministic tie-break so
// results are stable across runs with identical scores.
package retriever

import (
	"context"
	"fmt"
	"sort"

	"ragcore/internal/embeddings"
	"ragcore/internal/rcerrors"
	"ragcore/internal/types"
	"ragcore/internal/vectorstore"
)

// Retriever wires the embedding provider (C2) and vector store (C1) behind
// the single Search operation spec S4.7 names.
type Retriever struct {
	embedder embeddings.Provider
	store    vectorstore.Store
}

// New builds a Retriever over the given embedding provider and vector
// store. Both are expected to already carry whatever retry/circuit-breaker
// decoration the provider factory (C6) applies.
func New(embedder embeddings.Provider, store vectorstore.Store) *Retriever {
	return &Retriever{embedder: embedder, store: store}
}

// Search embeds queryText, verifies it matches the target collection's
// dimension, searches collectionID for the topK nearest chunks under
// filters, and returns results in descending-score order with a
// deterministic tie-break.
func (r *Retriever) Search(ctx context.Context, queryText, collectionID string, topK int, filters map[string]string) ([]types.QueryResult, error) {
	embedding, err := r.embedder.Generate(ctx, queryText)
	if err != nil {
		return nil, rcerrors.Wrap(rcerrors.KindTransientUpstream, rcerrors.CodeRetrievalError, "retriever: failed to embed query", err)
	}

	stats, err := r.store.GetCollectionStats(ctx, collectionID)
	if err != nil {
		return nil, rcerrors.Wrap(rcerrors.KindNotFound, rcerrors.CodeRetrievalError, fmt.Sprintf("retriever: collection %q metadata lookup failed", collectionID), err)
	}
	if stats.Dimension != len(embedding) {
		return nil, rcerrors.New(rcerrors.KindValidation, rcerrors.CodeDimensionMismatch,
			fmt.Sprintf("retriever: query embedding has dimension %d, collection %q expects %d", len(embedding), collectionID, stats.Dimension))
	}

	query := make([]float32, len(embedding))
	for i, v := range embedding {
		query[i] = float32(v)
	}

	// collection_id scoping is already enforced by passing collectionID as
	// the target collection itself -- every backend partitions by
	// collection, so there is no separate payload field to filter on.
	results, err := r.store.Search(ctx, collectionID, query, topK, filters)
	if err != nil {
		return nil, rcerrors.Wrap(rcerrors.KindTransientUpstream, rcerrors.CodeRetrievalError, fmt.Sprintf("retriever: search in %q failed", collectionID), err)
	}

	sortResults(results)
	return results, nil
}

// sortResults orders by descending score, breaking ties by ascending
// chunk_index and then lexicographically ascending document_id so equal-
// score results come back in a deterministic order every run.
func sortResults(results []types.QueryResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].Chunk.ChunkIndex != results[j].Chunk.ChunkIndex {
			return results[i].Chunk.ChunkIndex < results[j].Chunk.ChunkIndex
		}
		return results[i].Chunk.DocumentID < results[j].Chunk.DocumentID
	})
}
