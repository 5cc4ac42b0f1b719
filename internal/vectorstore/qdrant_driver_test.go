package vectorstore

import (
	"testing"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragcore/internal/types"
)

func TestQdrantDistanceMapsMetricToEnum(t *testing.T) {
	assert.Equal(t, qdrant.Distance_Euclid, qdrantDistance(types.MetricL2))
	assert.Equal(t, qdrant.Distance_Dot, qdrantDistance(types.MetricIP))
	assert.Equal(t, qdrant.Distance_Cosine, qdrantDistance(types.MetricCosine))
	assert.Equal(t, qdrant.Distance_Cosine, qdrantDistance(""))
}

func TestPointIDToStringRoundTripsUUID(t *testing.T) {
	id := stringPointID("chunk-123")
	assert.Equal(t, "chunk-123", pointIDToString(id))
}

func TestChunkToPointCarriesTextDocumentAndMetadata(t *testing.T) {
	chunk := types.EmbeddedChunk{Chunk: types.Chunk{
		ChunkID:    "c1",
		Text:       "hello world",
		DocumentID: "doc1",
		ChunkIndex: 2,
		Embeddings: []float32{0.1, 0.2, 0.3},
		Metadata:   map[string]string{"source": "manual"},
	}}

	point := chunkToPoint(chunk)
	require.Equal(t, "c1", pointIDToString(point.GetId()))
	assert.Equal(t, "hello world", point.GetPayload()["text"].GetStringValue())
	assert.Equal(t, "doc1", point.GetPayload()["document_id"].GetStringValue())
	assert.Equal(t, int64(2), point.GetPayload()["chunk_index"].GetIntegerValue())
	assert.Equal(t, "manual", point.GetPayload()["meta:source"].GetStringValue())
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, point.GetVectors().GetVector().GetData())
}

func TestBuildFilterReturnsNilForEmptyExpr(t *testing.T) {
	assert.Nil(t, buildFilter(nil))
	assert.Nil(t, buildFilter(map[string]string{}))
}

func TestBuildFilterPrefixesNonDocumentIDKeys(t *testing.T) {
	filter := buildFilter(map[string]string{"document_id": "doc1", "source": "manual"})
	require.Len(t, filter.GetMust(), 2)

	keys := make(map[string]string)
	for _, cond := range filter.GetMust() {
		field := cond.GetField()
		keys[field.GetKey()] = field.GetMatch().GetKeyword()
	}
	assert.Equal(t, "doc1", keys["document_id"])
	assert.Equal(t, "manual", keys["meta:source"])
}

func TestStringValueAndIntValueRoundTrip(t *testing.T) {
	assert.Equal(t, "x", stringValue("x").GetStringValue())
	assert.Equal(t, int64(7), intValue(7).GetIntegerValue())
}
