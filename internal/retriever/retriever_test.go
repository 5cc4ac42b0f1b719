package retriever

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragcore/internal/rcerrors"
	"ragcore/internal/types"
	"ragcore/internal/vectorstore"
)

type fakeEmbedder struct {
	embedding []float64
	err       error
}

func (f *fakeEmbedder) Generate(_ context.Context, _ string) ([]float64, error) {
	return f.embedding, f.err
}
func (f *fakeEmbedder) GenerateBatch(_ context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = f.embedding
	}
	return out, f.err
}
func (f *fakeEmbedder) Dimensions() int { return len(f.embedding) }
func (f *fakeEmbedder) HealthCheck(_ context.Context) error { return f.err }

type fakeStore struct {
	stats   types.CollectionStats
	results []types.QueryResult
	err     error
}

func (s *fakeStore) CreateCollection(context.Context, vectorstore.CollectionConfig) error { return nil }
func (s *fakeStore) DeleteCollection(context.Context, string) error                       { return nil }
func (s *fakeStore) AddDocuments(context.Context, string, []types.EmbeddedChunk) ([]string, error) {
	return nil, nil
}
func (s *fakeStore) Search(context.Context, string, []float32, int, map[string]string) ([]types.QueryResult, error) {
	return s.results, s.err
}
func (s *fakeStore) HealthCheck(context.Context, time.Duration) (types.VectorDBResponse, error) {
	return types.VectorDBResponse{Healthy: true}, nil
}
func (s *fakeStore) GetCollectionStats(context.Context, string) (types.CollectionStats, error) {
	return s.stats, nil
}
func (s *fakeStore) WithConnection(ctx context.Context, fn func(vectorstore.Conn) error) error {
	return fn(nil)
}
func (s *fakeStore) Close() error { return nil }

func TestSearchReturnsResultsInDescendingScoreOrder(t *testing.T) {
	embedder := &fakeEmbedder{embedding: []float64{1, 0, 0}}
	store := &fakeStore{
		stats: types.CollectionStats{Dimension: 3},
		results: []types.QueryResult{
			{Chunk: types.Chunk{ChunkID: "a", ChunkIndex: 0, DocumentID: "d1"}, Score: 0.5},
			{Chunk: types.Chunk{ChunkID: "b", ChunkIndex: 1, DocumentID: "d1"}, Score: 0.9},
		},
	}
	r := New(embedder, store)

	results, err := r.Search(context.Background(), "question", "coll1", 2, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "b", results[0].ChunkID)
	assert.Equal(t, "a", results[1].ChunkID)
}

func TestSearchBreaksTiesByChunkIndexThenDocumentID(t *testing.T) {
	embedder := &fakeEmbedder{embedding: []float64{1, 0, 0}}
	store := &fakeStore{
		stats: types.CollectionStats{Dimension: 3},
		results: []types.QueryResult{
			{Chunk: types.Chunk{ChunkID: "z", ChunkIndex: 2, DocumentID: "d2"}, Score: 0.7},
			{Chunk: types.Chunk{ChunkID: "y", ChunkIndex: 1, DocumentID: "d9"}, Score: 0.7},
			{Chunk: types.Chunk{ChunkID: "x", ChunkIndex: 1, DocumentID: "d1"}, Score: 0.7},
		},
	}
	r := New(embedder, store)

	results, err := r.Search(context.Background(), "q", "coll1", 3, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, []string{"x", "y", "z"}, []string{results[0].ChunkID, results[1].ChunkID, results[2].ChunkID})
}

func TestSearchFailsOnDimensionMismatch(t *testing.T) {
	embedder := &fakeEmbedder{embedding: []float64{1, 0}}
	store := &fakeStore{stats: types.CollectionStats{Dimension: 3}}
	r := New(embedder, store)

	_, err := r.Search(context.Background(), "q", "coll1", 1, nil)
	require.Error(t, err)
}

func TestSearchWrapsEmbeddingFailureAsRetrievalError(t *testing.T) {
	embedder := &fakeEmbedder{err: assert.AnError}
	store := &fakeStore{}
	r := New(embedder, store)

	_, err := r.Search(context.Background(), "q", "coll1", 1, nil)
	require.Error(t, err)
	code, _ := rcerrors.KindOf(err)
	assert.Equal(t, rcerrors.KindTransientUpstream, code)
	assert.ErrorIs(t, err, rcerrors.New(rcerrors.KindTransientUpstream, rcerrors.CodeRetrievalError, ""))
}
