package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/coder/hnsw"

	"ragcore/internal/rcerrors"
	"ragcore/internal/types"
)

// HNSWDriver is the embedded/test C1 backend: an in-process ANN index per
// collection via github.com/coder/hnsw, with no network round-trip and no
// connection pool (WithConnection hands back a no-op in-process handle).
type HNSWDriver struct {
	mu          sync.RWMutex
	collections map[string]*hnswCollection
}

type hnswCollection struct {
	mu        sync.RWMutex
	graph     *hnsw.Graph[uint64]
	dimension int
	metric    types.Metric
	idMap     map[string]uint64
	chunks    map[uint64]types.Chunk
	nextKey   uint64
}

// NewHNSWDriver returns an empty, collection-less HNSW-backed Store.
func NewHNSWDriver() *HNSWDriver {
	return &HNSWDriver{collections: make(map[string]*hnswCollection)}
}

func (d *HNSWDriver) CreateCollection(_ context.Context, cfg CollectionConfig) error {
	if cfg.Dimension <= 0 {
		return rcerrors.New(rcerrors.KindValidation, rcerrors.CodeInvalidDimension,
			fmt.Sprintf("dimension must be positive, got %d", cfg.Dimension))
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.collections[cfg.Name]; exists {
		return rcerrors.New(rcerrors.KindValidation, rcerrors.CodeCollectionExists,
			fmt.Sprintf("collection %q already exists", cfg.Name))
	}

	graph := hnsw.NewGraph[uint64]()
	if cfg.Metric == types.MetricL2 {
		graph.Distance = hnsw.EuclideanDistance
	} else {
		graph.Distance = hnsw.CosineDistance
	}
	graph.M = 16
	graph.EfSearch = 20

	d.collections[cfg.Name] = &hnswCollection{
		graph:     graph,
		dimension: cfg.Dimension,
		metric:    cfg.Metric,
		idMap:     make(map[string]uint64),
		chunks:    make(map[uint64]types.Chunk),
	}
	return nil
}

func (d *HNSWDriver) DeleteCollection(_ context.Context, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.collections[name]; !exists {
		return rcerrors.New(rcerrors.KindNotFound, rcerrors.CodeCollectionNotFound,
			fmt.Sprintf("collection %q not found", name))
	}
	delete(d.collections, name)
	return nil
}

func (d *HNSWDriver) collection(name string) (*hnswCollection, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, exists := d.collections[name]
	if !exists {
		return nil, rcerrors.New(rcerrors.KindNotFound, rcerrors.CodeCollectionNotFound,
			fmt.Sprintf("collection %q not found", name))
	}
	return c, nil
}

// AddDocuments checks every chunk's dimension first, then inserts all
// chunks in one pass under the collection lock; it does not batch.
func (d *HNSWDriver) AddDocuments(_ context.Context, collection string, chunks []types.EmbeddedChunk) ([]string, error) {
	c, err := d.collection(collection)
	if err != nil {
		return nil, err
	}

	for _, chunk := range chunks {
		if len(chunk.Embeddings) != c.dimension {
			return nil, rcerrors.New(rcerrors.KindValidation, rcerrors.CodeDimensionMismatch,
				fmt.Sprintf("chunk %q has dimension %d, collection %q expects %d", chunk.ChunkID, len(chunk.Embeddings), collection, c.dimension))
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	stored := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if existingKey, exists := c.idMap[chunk.ChunkID]; exists {
			delete(c.chunks, existingKey)
		}

		vec := make([]float32, len(chunk.Embeddings))
		copy(vec, chunk.Embeddings)
		if c.metric != types.MetricL2 {
			normalizeVectorInPlace(vec)
		}

		key := c.nextKey
		c.nextKey++
		c.graph.Add(hnsw.MakeNode(key, vec))
		c.idMap[chunk.ChunkID] = key
		c.chunks[key] = chunk.Chunk
		stored = append(stored, chunk.ChunkID)
	}
	return stored, nil
}

func (d *HNSWDriver) Search(_ context.Context, collection string, queryEmbedding []float32, topK int, expr map[string]string) ([]types.QueryResult, error) {
	c, err := d.collection(collection)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(queryEmbedding) != c.dimension {
		return nil, rcerrors.New(rcerrors.KindValidation, rcerrors.CodeDimensionMismatch,
			fmt.Sprintf("query embedding has dimension %d, collection %q expects %d", len(queryEmbedding), collection, c.dimension))
	}
	if c.graph.Len() == 0 {
		return []types.QueryResult{}, nil
	}

	query := make([]float32, len(queryEmbedding))
	copy(query, queryEmbedding)
	if c.metric != types.MetricL2 {
		normalizeVectorInPlace(query)
	}

	nodes := c.graph.Search(query, topK)
	results := make([]types.QueryResult, 0, len(nodes))
	for _, node := range nodes {
		chunk, exists := c.chunks[node.Key]
		if !exists {
			continue
		}
		if !matchesFilter(chunk, expr) {
			continue
		}
		distance := c.graph.Distance(query, node.Value)
		results = append(results, types.QueryResult{Chunk: chunk, Score: float64(distanceToScore(distance, c.metric))})
	}
	return results, nil
}

// matchesFilter applies expr client-side -- the HNSW driver has no
// server-side filter push-down, per S4.1's fallback clause.
func matchesFilter(chunk types.Chunk, expr map[string]string) bool {
	for k, v := range expr {
		if k == "document_id" {
			if chunk.DocumentID != v {
				return false
			}
			continue
		}
		if chunk.Metadata[k] != v {
			return false
		}
	}
	return true
}

func normalizeVectorInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	invMagnitude := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= invMagnitude
	}
}

func distanceToScore(distance float32, metric types.Metric) float32 {
	if metric == types.MetricL2 {
		return 1.0 / (1.0 + distance)
	}
	return 1.0 - distance/2.0
}

func (d *HNSWDriver) HealthCheck(_ context.Context, _ time.Duration) (types.VectorDBResponse, error) {
	return types.VectorDBResponse{Healthy: true}, nil
}

func (d *HNSWDriver) GetCollectionStats(_ context.Context, name string) (types.CollectionStats, error) {
	c, err := d.collection(name)
	if err != nil {
		return types.CollectionStats{}, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return types.CollectionStats{
		Count:     int64(len(c.idMap)),
		Dimension: c.dimension,
		IndexKind: types.IndexHNSW,
	}, nil
}

// hnswConn is a no-op in-process handle: there is no network connection to
// pool for an embedded index, but WithConnection still gives callers a
// uniform scoped-acquisition shape across backends.
type hnswConn struct{}

func (hnswConn) IsAlive() bool { return true }
func (hnswConn) Close() error  { return nil }
func (hnswConn) Reset() error  { return nil }

func (d *HNSWDriver) WithConnection(_ context.Context, fn func(Conn) error) error {
	return fn(hnswConn{})
}

func (d *HNSWDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.collections = make(map[string]*hnswCollection)
	return nil
}
