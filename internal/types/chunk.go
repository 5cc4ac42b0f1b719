// Package types defines the shared entity model for the RAG execution core:
// chunks, collections, documents, prompt templates, LLM parameters, provider
// configuration, and the request/response shapes the search pipeline passes
// between components.
package types

import (
	"errors"
	"time"
)

// Chunk is a contiguous segment of a document, addressable by ID, optionally
// carrying an embedding once C2 has processed it.
type Chunk struct {
	ChunkID     string            `json:"chunk_id"`
	Text        string            `json:"text"`
	Embeddings  []float32         `json:"embeddings,omitempty"`
	DocumentID  string            `json:"document_id"`
	ChunkIndex  int               `json:"chunk_index"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// EmbeddedChunk is a Chunk expected to carry a non-empty embedding. FromChunk
// checks that invariant; a struct literal does not.
type EmbeddedChunk struct {
	Chunk
}

var ErrEmptyEmbedding = errors.New("types: embedded chunk requires a non-empty embedding")

// FromChunk promotes a Chunk to an EmbeddedChunk, failing if the embedding is
// absent. It is the only constructor that checks the embedding.
func FromChunk(c Chunk) (EmbeddedChunk, error) {
	if len(c.Embeddings) == 0 {
		return EmbeddedChunk{}, ErrEmptyEmbedding
	}
	return EmbeddedChunk{Chunk: c}, nil
}

// Metric is a vector-similarity metric supported by a Collection.
type Metric string

const (
	MetricL2     Metric = "L2"
	MetricCosine Metric = "COSINE"
	MetricIP     Metric = "IP"
)

// IndexKind names the ANN index strategy a backend driver should build for a
// Collection. See SPEC_FULL.md 4.1 for the selection guide a driver follows.
type IndexKind string

const (
	IndexFlat    IndexKind = "FLAT"
	IndexIVFFlat IndexKind = "IVF_FLAT"
	IndexHNSW    IndexKind = "HNSW"
)

// Collection is a named, dimension-fixed set of chunks backed by a vector
// index. Dimension is immutable after creation.
type Collection struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	VectorBackend string            `json:"vector_backend"`
	Dimension     int               `json:"dimension"`
	Metric        Metric            `json:"metric"`
	IndexKind     IndexKind         `json:"index_kind"`
	IndexParams   map[string]string `json:"index_params,omitempty"`
	OwnerID       string            `json:"owner_id"`
	CreatedAt     time.Time         `json:"created_at"`
}

// Document is owned by exactly one Collection and holds an ordered sequence
// of chunks.
type Document struct {
	ID           string  `json:"id"`
	CollectionID string  `json:"collection_id"`
	Name         string  `json:"name"`
	Chunks       []Chunk `json:"chunks"`
}

// QueryResult pairs a retrieved chunk with its similarity score. Higher is
// more similar regardless of the collection's underlying metric -- drivers
// normalise distance metrics (L2) into a similarity score before returning.
type QueryResult struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// CollectionStats is returned by GetCollectionStats.
type CollectionStats struct {
	Count     int64     `json:"count"`
	Dimension int       `json:"dimension"`
	IndexKind IndexKind `json:"index_kind"`
}

// VectorDBResponse is the result of a vector-store health check.
type VectorDBResponse struct {
	Healthy bool          `json:"healthy"`
	Latency time.Duration `json:"latency"`
	Message string        `json:"message,omitempty"`
}
