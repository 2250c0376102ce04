// Package databases implements C4: persisting and querying chunk vectors.
// Non-goals exclude full-text search and graph storage, so this package
// carries only the vector-store surface the teacher's interfaces.go used to
// share with FTS/graph backends.
package databases

import (
	"context"
	"time"

	"ragcore/internal/rag/domain"
)

// VectorResult is one nearest-neighbor hit (spec §4.4).
type VectorResult struct {
	ChunkID    string
	Text       string
	Score      float32
	SourceFile string
	ChunkIndex int
	Metadata   map[string]string
}

// SearchFilter is spec §4.4.1's filter language (subset): equality on
// sourceFile (or a MatchAny list via SourceFileAny), equality or range on
// chunkIndex, range on createdAt, and equality on metadata.<key>. Every
// non-zero field combines with AND.
type SearchFilter struct {
	SourceFile    string            `json:"sourceFile,omitempty"`
	SourceFileAny []string          `json:"sourceFileAny,omitempty"`
	DocumentID    string            `json:"documentId,omitempty"`
	ChunkIndex    *int              `json:"chunkIndex,omitempty"`
	ChunkIndexGTE *int              `json:"chunkIndexGte,omitempty"`
	ChunkIndexLTE *int              `json:"chunkIndexLte,omitempty"`
	CreatedAfter  time.Time         `json:"createdAfter,omitempty"`
	CreatedBefore time.Time         `json:"createdBefore,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// Stats summarizes the state of one collection (spec §4.4.1 Stats).
type Stats struct {
	PointCount     int64  `json:"pointCount"`
	CollectionName string `json:"collectionName"`
	Dimension      int    `json:"dimension"`
}

// VectorStore is C4's contract: upsert, point lookup/delete, similarity
// search, and collection housekeeping, with batch variants for ingestion
// throughput (spec §4.4.1).
type VectorStore interface {
	Upsert(ctx context.Context, chunk domain.Chunk) error
	UpsertBatch(ctx context.Context, chunks []domain.Chunk) error
	Get(ctx context.Context, chunkID string) (domain.Chunk, bool, error)
	Delete(ctx context.Context, chunkID string) error
	DeleteBySource(ctx context.Context, sourceFile string) (int, error)
	Search(ctx context.Context, vector []float32, k int, minScore float32, filter SearchFilter) ([]VectorResult, error)
	BatchSearch(ctx context.Context, vectors [][]float32, k int, minScore float32, filter SearchFilter) ([][]VectorResult, error)
	List(ctx context.Context, limit, offset int) ([]domain.Chunk, error)
	Stats(ctx context.Context) (Stats, error)
	Clear(ctx context.Context) error
	Dimension() int
	Close() error
}
