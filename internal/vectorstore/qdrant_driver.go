package vectorstore

import (
	"context"
	"fmt"
	"time"

	"github.com/qdrant/go-client/qdrant"

	"ragcore/internal/rcerrors"
	"ragcore/internal/types"
	"ragcore/internal/vectorstore/pool"
)

const defaultBatchSize = 100

// QdrantDriver is the production C1 backend: a gRPC client against
// github.com/qdrant/go-client, with a bounded connection pool for
// WithConnection-scoped access to the raw client.
type QdrantDriver struct {
	client *qdrant.Client
	pool   *pool.ConnectionPool
}

// QdrantConfig is the subset of connection details NewQdrantDriver needs;
// the caller (internal/config) owns the full environment-driven shape.
type QdrantConfig struct {
	Host     string
	Port     int
	APIKey   string
	UseTLS   bool
	PoolSize int
}

// NewQdrantDriver dials Qdrant and wraps the client in a bounded pool of
// pool.Connection handles, each backed by the same underlying client (the
// Qdrant Go client is already safe for concurrent use; pooling here exists
// to bound and account for concurrent WithConnection callers, matching the
// contract every backend exposes).
func NewQdrantDriver(cfg QdrantConfig) (*QdrantDriver, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:                   cfg.Host,
		Port:                   cfg.Port,
		APIKey:                 cfg.APIKey,
		UseTLS:                 cfg.UseTLS,
		SkipCompatibilityCheck: true,
	})
	if err != nil {
		return nil, rcerrors.Wrap(rcerrors.KindConfiguration, rcerrors.CodeProviderMisconfig, "qdrant: failed to create client", err)
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 10
	}
	poolCfg := pool.DefaultPoolConfig()
	poolCfg.MaxSize = poolSize

	p, err := pool.NewConnectionPool(poolCfg, func(ctx context.Context) (pool.Connection, error) {
		return &qdrantConn{client: client}, nil
	})
	if err != nil {
		return nil, rcerrors.Wrap(rcerrors.KindConfiguration, rcerrors.CodeProviderMisconfig, "qdrant: failed to build connection pool", err)
	}

	return &QdrantDriver{client: client, pool: p}, nil
}

// qdrantConn is a pool.Connection around the shared *qdrant.Client; the
// client itself is stateless and safe for concurrent use, so Reset is a
// no-op and IsAlive always reports true (liveness is checked separately by
// HealthCheck against the collection endpoint).
type qdrantConn struct {
	client *qdrant.Client
}

func (c *qdrantConn) IsAlive() bool { return true }
func (c *qdrantConn) Close() error  { return nil }
func (c *qdrantConn) Reset() error  { return nil }

func (d *QdrantDriver) CreateCollection(ctx context.Context, cfg CollectionConfig) error {
	if cfg.Dimension <= 0 {
		return rcerrors.New(rcerrors.KindValidation, rcerrors.CodeInvalidDimension,
			fmt.Sprintf("dimension must be positive, got %d", cfg.Dimension))
	}

	collections, err := d.client.ListCollections(ctx)
	if err != nil {
		return rcerrors.Wrap(rcerrors.KindTransientUpstream, rcerrors.CodeUpstreamUnavailable, "qdrant: list collections failed", err)
	}
	for _, name := range collections {
		if name == cfg.Name {
			return rcerrors.New(rcerrors.KindValidation, rcerrors.CodeCollectionExists,
				fmt.Sprintf("collection %q already exists", cfg.Name))
		}
	}

	err = d.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: cfg.Name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(cfg.Dimension),
			Distance: qdrantDistance(cfg.Metric),
		}),
	})
	if err != nil {
		return rcerrors.Wrap(rcerrors.KindTransientUpstream, rcerrors.CodeUpstreamUnavailable,
			fmt.Sprintf("qdrant: failed to create collection %q", cfg.Name), err)
	}
	return nil
}

func qdrantDistance(m types.Metric) qdrant.Distance {
	switch m {
	case types.MetricL2:
		return qdrant.Distance_Euclid
	case types.MetricIP:
		return qdrant.Distance_Dot
	default:
		return qdrant.Distance_Cosine
	}
}

func (d *QdrantDriver) DeleteCollection(ctx context.Context, name string) error {
	if err := d.client.DeleteCollection(ctx, name); err != nil {
		return rcerrors.Wrap(rcerrors.KindNotFound, rcerrors.CodeCollectionNotFound,
			fmt.Sprintf("qdrant: failed to delete collection %q", name), err)
	}
	return nil
}

// AddDocuments batches chunks into groups of defaultBatchSize before the
// backend call, per S4.1's partial-failure policy: a failed batch stops
// insertion but the caller still gets every ID successfully stored by
// earlier batches, plus an error naming the failing one.
func (d *QdrantDriver) AddDocuments(ctx context.Context, collection string, chunks []types.EmbeddedChunk) ([]string, error) {
	var stored []string
	for start := 0; start < len(chunks); start += defaultBatchSize {
		end := start + defaultBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		points := make([]*qdrant.PointStruct, 0, len(batch))
		ids := make([]string, 0, len(batch))
		for _, c := range batch {
			points = append(points, chunkToPoint(c))
			ids = append(ids, c.ChunkID)
		}

		if _, err := d.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: collection,
			Points:         points,
		}); err != nil {
			return stored, rcerrors.Wrap(rcerrors.KindTransientUpstream, rcerrors.CodeUpstreamUnavailable,
				fmt.Sprintf("qdrant: upsert batch [%d:%d] failed", start, end), err)
		}
		stored = append(stored, ids...)
	}
	return stored, nil
}

func stringValue(s string) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: s}}
}

func intValue(i int64) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: i}}
}

func stringPointID(s string) *qdrant.PointId {
	return &qdrant.PointId{PointIdOptions: &qdrant.PointId_Uuid{Uuid: s}}
}

func chunkToPoint(c types.EmbeddedChunk) *qdrant.PointStruct {
	payload := map[string]*qdrant.Value{
		"text":        stringValue(c.Text),
		"document_id": stringValue(c.DocumentID),
		"chunk_index": intValue(int64(c.ChunkIndex)),
	}
	for k, v := range c.Metadata {
		payload["meta:"+k] = stringValue(v)
	}

	return &qdrant.PointStruct{
		Id: stringPointID(c.ChunkID),
		Vectors: &qdrant.Vectors{
			VectorsOptions: &qdrant.Vectors_Vector{Vector: &qdrant.Vector{Data: c.Embeddings}},
		},
		Payload: payload,
	}
}

func (d *QdrantDriver) Search(ctx context.Context, collection string, queryEmbedding []float32, topK int, expr map[string]string) ([]types.QueryResult, error) {
	filter := buildFilter(expr)

	points, err := d.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(queryEmbedding...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
		Filter:         filter,
	})
	if err != nil {
		return nil, rcerrors.Wrap(rcerrors.KindTransientUpstream, rcerrors.CodeUpstreamUnavailable,
			fmt.Sprintf("qdrant: search in %q failed", collection), err)
	}

	results := make([]types.QueryResult, 0, len(points))
	for _, p := range points {
		results = append(results, types.QueryResult{
			Chunk: scoredPointToChunk(p),
			Score: float64(p.GetScore()),
		})
	}
	return results, nil
}

func buildFilter(expr map[string]string) *qdrant.Filter {
	if len(expr) == 0 {
		return nil
	}
	conditions := make([]*qdrant.Condition, 0, len(expr))
	for k, v := range expr {
		key := k
		if key != "document_id" {
			key = "meta:" + key
		}
		conditions = append(conditions, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key:   key,
					Match: &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: v}},
				},
			},
		})
	}
	return &qdrant.Filter{Must: conditions}
}

func scoredPointToChunk(p *qdrant.ScoredPoint) types.Chunk {
	payload := p.GetPayload()
	metadata := make(map[string]string)
	for k, v := range payload {
		const metaPrefix = "meta:"
		if len(k) > len(metaPrefix) && k[:len(metaPrefix)] == metaPrefix {
			metadata[k[len(metaPrefix):]] = v.GetStringValue()
		}
	}

	return types.Chunk{
		ChunkID:    pointIDToString(p.GetId()),
		Text:       payload["text"].GetStringValue(),
		DocumentID: payload["document_id"].GetStringValue(),
		ChunkIndex: int(payload["chunk_index"].GetIntegerValue()),
		Metadata:   metadata,
	}
}

func pointIDToString(id *qdrant.PointId) string {
	if uuid := id.GetUuid(); uuid != "" {
		return uuid
	}
	return fmt.Sprintf("%d", id.GetNum())
}

// HealthCheck probes liveness by listing collections -- the same call
// CreateCollection uses to check for an existing collection, cheaper than a
// round-trip through any one collection's info endpoint.
func (d *QdrantDriver) HealthCheck(ctx context.Context, timeout time.Duration) (types.VectorDBResponse, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, err := d.client.ListCollections(ctx)
	latency := time.Since(start)
	if err != nil {
		return types.VectorDBResponse{Healthy: false, Latency: latency, Message: err.Error()}, nil
	}
	return types.VectorDBResponse{Healthy: true, Latency: latency}, nil
}

func (d *QdrantDriver) GetCollectionStats(ctx context.Context, name string) (types.CollectionStats, error) {
	info, err := d.client.GetCollectionInfo(ctx, name)
	if err != nil {
		return types.CollectionStats{}, rcerrors.Wrap(rcerrors.KindNotFound, rcerrors.CodeCollectionNotFound,
			fmt.Sprintf("qdrant: collection %q not found", name), err)
	}

	return types.CollectionStats{
		Count:     int64(info.GetPointsCount()),
		Dimension: int(info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()),
		IndexKind: types.IndexHNSW,
	}, nil
}

func (d *QdrantDriver) WithConnection(ctx context.Context, fn func(Conn) error) error {
	conn, err := d.pool.Get(ctx)
	if err != nil {
		return rcerrors.Wrap(rcerrors.KindTransientUpstream, rcerrors.CodeUpstreamUnavailable, "qdrant: failed to acquire pooled connection", err)
	}
	defer func() { _ = conn.Close() }()
	return fn(conn)
}

func (d *QdrantDriver) Close() error {
	return d.pool.Close()
}
