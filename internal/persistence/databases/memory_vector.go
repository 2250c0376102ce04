package databases

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/philippgille/chromem-go"

	"ragcore/internal/rag/domain"
)

// memoryVector is C4's dependency-free fallback backend (spec §4.4: "auto"
// mode falls back to an in-memory store when Qdrant is unreachable). It
// wraps chromem-go instead of a hand-rolled map so the fallback exercises
// the same similarity-search/filter semantics a real backend would.
type memoryVector struct {
	mu         sync.RWMutex
	db         *chromem.DB
	collection *chromem.Collection
	dimension  int
}

// identityEmbed satisfies chromem.EmbeddingFunc without ever calling an
// embedding model: every AddDocument/Query call here always supplies a
// precomputed vector, so this is only invoked if one is missing.
func identityEmbed(_ context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("memoryVector: no precomputed embedding supplied for %q", text)
}

func NewMemoryVector(collectionName string, dimension int) (VectorStore, error) {
	db := chromem.NewDB()
	col, err := db.CreateCollection(collectionName, nil, identityEmbed)
	if err != nil {
		return nil, fmt.Errorf("create chromem collection: %w", err)
	}
	return &memoryVector{db: db, collection: col, dimension: dimension}, nil
}

func (m *memoryVector) Dimension() int { return m.dimension }

func (m *memoryVector) Close() error { return nil }

func chunkMetadata(c domain.Chunk) map[string]string {
	meta := make(map[string]string, len(c.Metadata)+4)
	for k, v := range c.Metadata {
		meta[metadataPrefix+k] = v
	}
	meta[payloadSourceFile] = c.SourceFile
	meta[payloadDocumentID] = c.DocumentID
	meta[payloadChunkIndex] = strconv.Itoa(c.ChunkIndex)
	meta[payloadStartChar] = strconv.Itoa(c.StartChar)
	meta[payloadEndChar] = strconv.Itoa(c.EndChar)
	meta[payloadCreatedAt] = strconv.FormatInt(c.CreatedAt.Unix(), 10)
	return meta
}

func (m *memoryVector) Upsert(ctx context.Context, chunk domain.Chunk) error {
	return m.UpsertBatch(ctx, []domain.Chunk{chunk})
}

func (m *memoryVector) UpsertBatch(ctx context.Context, chunks []domain.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	docs := make([]chromem.Document, 0, len(chunks))
	for _, c := range chunks {
		docs = append(docs, chromem.Document{
			ID:        c.ID,
			Content:   c.Text,
			Embedding: c.Vector,
			Metadata:  chunkMetadata(c),
		})
	}
	return m.collection.AddDocuments(ctx, docs, 1)
}

func (m *memoryVector) Get(_ context.Context, chunkID string) (domain.Chunk, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, err := m.collection.GetByID(context.Background(), chunkID)
	if err != nil {
		return domain.Chunk{}, false, nil
	}
	return docToChunk(doc), true, nil
}

func (m *memoryVector) Delete(_ context.Context, chunkID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.collection.Delete(context.Background(), nil, nil, chunkID)
}

func (m *memoryVector) DeleteBySource(_ context.Context, sourceFile string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	where := map[string]string{payloadSourceFile: sourceFile}
	before := m.collection.Count()
	if err := m.collection.Delete(context.Background(), where, nil); err != nil {
		return 0, err
	}
	return before - m.collection.Count(), nil
}

func docToChunk(doc chromem.Document) domain.Chunk {
	c := domain.Chunk{ID: doc.ID, Text: doc.Content, Vector: doc.Embedding}
	meta := make(map[string]string)
	for k, v := range doc.Metadata {
		switch k {
		case payloadSourceFile:
			c.SourceFile = v
		case payloadDocumentID:
			c.DocumentID = v
		case payloadChunkIndex:
			c.ChunkIndex, _ = strconv.Atoi(v)
		case payloadStartChar:
			c.StartChar, _ = strconv.Atoi(v)
		case payloadEndChar:
			c.EndChar, _ = strconv.Atoi(v)
		case payloadCreatedAt:
			if sec, err := strconv.ParseInt(v, 10, 64); err == nil {
				c.CreatedAt = time.Unix(sec, 0).UTC()
			}
		default:
			if len(k) > len(metadataPrefix) && k[:len(metadataPrefix)] == metadataPrefix {
				meta[k[len(metadataPrefix):]] = v
			}
		}
	}
	c.Metadata = meta
	return c
}

// Search enforces spec §4.4.1's `score >= minScore` invariant and filter
// language itself, rather than leaving it to callers: chromem's `where` only
// supports equality, so SourceFileAny/chunkIndex-range/createdAt-range/
// minScore are applied as a post-filter over every equality-matching
// candidate before truncating to k. This is the same "functionally correct
// but unindexed" tradeoff spec §4.4.2 already accepts for the fallback
// store.
func (m *memoryVector) Search(ctx context.Context, vector []float32, k int, minScore float32, filter SearchFilter) ([]VectorResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if k <= 0 {
		k = 10
	}
	n := m.collection.Count()
	if n == 0 {
		return nil, nil
	}
	where := whereFromFilter(filter)
	results, err := m.collection.QueryEmbedding(ctx, vector, n, where, nil)
	if err != nil {
		return nil, err
	}
	out := make([]VectorResult, 0, k)
	for _, r := range results {
		if r.Similarity < minScore {
			continue
		}
		chunkIndex, _ := strconv.Atoi(r.Metadata[payloadChunkIndex])
		if !matchesExtraFilter(filter, chunkIndex, r.Metadata) {
			continue
		}
		out = append(out, VectorResult{
			ChunkID:    r.ID,
			Text:       r.Content,
			Score:      r.Similarity,
			SourceFile: r.Metadata[payloadSourceFile],
			ChunkIndex: chunkIndex,
			Metadata:   stripReserved(r.Metadata),
		})
		if len(out) >= k {
			break
		}
	}
	return out, nil
}

// whereFromFilter covers the equality constraints chromem can apply natively.
func whereFromFilter(f SearchFilter) map[string]string {
	where := map[string]string{}
	if f.SourceFile != "" {
		where[payloadSourceFile] = f.SourceFile
	}
	if f.DocumentID != "" {
		where[payloadDocumentID] = f.DocumentID
	}
	if len(where) == 0 {
		return nil
	}
	return where
}

// matchesExtraFilter applies the part of SearchFilter chromem's equality-only
// `where` cannot express: MatchAny, chunkIndex (in)equality/range, createdAt
// range, and metadata.<key> equality.
func matchesExtraFilter(f SearchFilter, chunkIndex int, meta map[string]string) bool {
	if len(f.SourceFileAny) > 0 {
		matched := false
		for _, sf := range f.SourceFileAny {
			if meta[payloadSourceFile] == sf {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if f.ChunkIndex != nil && chunkIndex != *f.ChunkIndex {
		return false
	}
	if f.ChunkIndexGTE != nil && chunkIndex < *f.ChunkIndexGTE {
		return false
	}
	if f.ChunkIndexLTE != nil && chunkIndex > *f.ChunkIndexLTE {
		return false
	}
	if !f.CreatedAfter.IsZero() || !f.CreatedBefore.IsZero() {
		sec, _ := strconv.ParseInt(meta[payloadCreatedAt], 10, 64)
		createdAt := time.Unix(sec, 0).UTC()
		if !f.CreatedAfter.IsZero() && createdAt.Before(f.CreatedAfter) {
			return false
		}
		if !f.CreatedBefore.IsZero() && createdAt.After(f.CreatedBefore) {
			return false
		}
	}
	for k, v := range f.Metadata {
		if meta[metadataPrefix+k] != v {
			return false
		}
	}
	return true
}

func stripReserved(md map[string]string) map[string]string {
	out := make(map[string]string)
	for k, v := range md {
		if len(k) > len(metadataPrefix) && k[:len(metadataPrefix)] == metadataPrefix {
			out[k[len(metadataPrefix):]] = v
		}
	}
	return out
}

func (m *memoryVector) BatchSearch(ctx context.Context, vectors [][]float32, k int, minScore float32, filter SearchFilter) ([][]VectorResult, error) {
	out := make([][]VectorResult, len(vectors))
	for i, v := range vectors {
		r, err := m.Search(ctx, v, k, minScore, filter)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

func (m *memoryVector) List(_ context.Context, limit, offset int) ([]domain.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	docs := m.collection.GetAll(context.Background())
	chunks := make([]domain.Chunk, 0, len(docs))
	for i, d := range docs {
		if i < offset {
			continue
		}
		if limit > 0 && len(chunks) >= limit {
			break
		}
		chunks = append(chunks, docToChunk(d))
	}
	return chunks, nil
}

func (m *memoryVector) Stats(_ context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{PointCount: int64(m.collection.Count()), CollectionName: m.collection.Name, Dimension: m.dimension}, nil
}

func (m *memoryVector) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.db.DeleteCollection(m.collection.Name)
}
