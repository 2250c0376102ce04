package databases

import (
	"testing"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragcore/internal/rag/domain"
)

func TestPointUUIDPassesThroughRealUUIDs(t *testing.T) {
	id, remapped := pointUUID("11111111-1111-1111-1111-111111111111")
	assert.Equal(t, "11111111-1111-1111-1111-111111111111", id)
	assert.False(t, remapped)
}

func TestPointUUIDIsDeterministicForNonUUIDIds(t *testing.T) {
	id1, remapped1 := pointUUID("chunk-42")
	id2, remapped2 := pointUUID("chunk-42")
	assert.True(t, remapped1)
	assert.True(t, remapped2)
	assert.Equal(t, id1, id2, "the same chunk id must always map to the same point id")

	other, _ := pointUUID("chunk-43")
	assert.NotEqual(t, id1, other)
}

func TestChunkPayloadRoundTrip(t *testing.T) {
	now := time.Unix(12345, 0)
	c := domain.Chunk{
		ID:         "chunk-1",
		Text:       "hello world",
		SourceFile: "doc.txt",
		DocumentID: "doc-1",
		ChunkIndex: 3,
		StartChar:  10,
		EndChar:    20,
		CreatedAt:  now,
		UpdatedAt:  now,
		Metadata:   map[string]string{"lang": "en"},
	}

	payload := qdrant.NewValueMap(chunkToPayload(c))
	got := payloadToChunk("11111111-1111-1111-1111-111111111111", []float32{1, 2}, payload)

	assert.Equal(t, c.ID, got.ID)
	assert.Equal(t, c.Text, got.Text)
	assert.Equal(t, c.SourceFile, got.SourceFile)
	assert.Equal(t, c.DocumentID, got.DocumentID)
	assert.Equal(t, c.ChunkIndex, got.ChunkIndex)
	assert.Equal(t, c.StartChar, got.StartChar)
	assert.Equal(t, c.EndChar, got.EndChar)
	assert.Equal(t, "en", got.Metadata["lang"])
	assert.Equal(t, []float32{1, 2}, got.Vector)
}

func TestBuildFilterCoversFullFilterLanguage(t *testing.T) {
	gte, lte := 2, 8
	after := time.Unix(1000, 0)
	before := time.Unix(2000, 0)
	f := SearchFilter{
		SourceFile:    "a.txt",
		SourceFileAny: []string{"b.txt", "c.txt"},
		DocumentID:    "doc-1",
		ChunkIndexGTE: &gte,
		ChunkIndexLTE: &lte,
		CreatedAfter:  after,
		CreatedBefore: before,
		Metadata:      map[string]string{"lang": "en"},
	}

	filter := buildFilter(f)
	require.NotNil(t, filter)
	// sourceFile eq, sourceFile any, documentId eq, chunkIndex range,
	// createdAt range, metadata.lang eq.
	assert.Len(t, filter.Must, 6)
}

func TestBuildFilterNilWhenEmpty(t *testing.T) {
	assert.Nil(t, buildFilter(SearchFilter{}))
}

func TestChunkIndexRangeOnlyUsesSetBounds(t *testing.T) {
	gte := 5
	r := chunkIndexRange(SearchFilter{ChunkIndexGTE: &gte})
	require.NotNil(t, r.Gte)
	assert.Equal(t, 5.0, *r.Gte)
	assert.Nil(t, r.Lte)
}

func TestCreatedAtRangeConvertsToUnixSeconds(t *testing.T) {
	after := time.Unix(1700000000, 0)
	r := createdAtRange(SearchFilter{CreatedAfter: after})
	require.NotNil(t, r.Gte)
	assert.Equal(t, float64(1700000000), *r.Gte)
	assert.Nil(t, r.Lte)
}

func TestHitsToResultsExtractsPayloadFields(t *testing.T) {
	payload := qdrant.NewValueMap(map[string]any{
		payloadChunkIDField: "chunk-9",
		payloadText:         "body text",
		payloadSourceFile:   "f.txt",
		payloadChunkIndex:   int64(4),
		metadataPrefix + "lang": "en",
	})
	hits := []*qdrant.ScoredPoint{
		{Id: qdrant.NewIDUUID("11111111-1111-1111-1111-111111111111"), Score: 0.87, Payload: payload},
	}

	results := hitsToResults(hits)
	require.Len(t, results, 1)
	r := results[0]
	assert.Equal(t, "chunk-9", r.ChunkID)
	assert.Equal(t, "body text", r.Text)
	assert.Equal(t, "f.txt", r.SourceFile)
	assert.Equal(t, 4, r.ChunkIndex)
	assert.InDelta(t, 0.87, r.Score, 0.0001)
	assert.Equal(t, "en", r.Metadata["lang"])
}
