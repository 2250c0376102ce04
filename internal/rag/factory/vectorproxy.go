package factory

import (
	"context"
	"sync"

	"ragcore/internal/persistence/databases"
	"ragcore/internal/rag/domain"
)

// vectorStoreProxy implements databases.VectorStore by delegating to a
// swappable inner store, so C8's restart(C4) can dispose the old backend
// (closing its connection) and install a freshly-built one without the
// already-constructed Pipeline/Coordinator singletons noticing the change —
// they hold the proxy, not the concrete backend.
type vectorStoreProxy struct {
	mu    sync.RWMutex
	inner databases.VectorStore
}

func newVectorStoreProxy(inner databases.VectorStore) *vectorStoreProxy {
	return &vectorStoreProxy{inner: inner}
}

// swap replaces the delegate, closing the previous one. Returns the close
// error (if any) so the caller can log it without aborting the swap.
func (p *vectorStoreProxy) swap(next databases.VectorStore) error {
	p.mu.Lock()
	prev := p.inner
	p.inner = next
	p.mu.Unlock()

	if prev == nil {
		return nil
	}
	return prev.Close()
}

func (p *vectorStoreProxy) get() databases.VectorStore {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.inner
}

func (p *vectorStoreProxy) Upsert(ctx context.Context, chunk domain.Chunk) error {
	return p.get().Upsert(ctx, chunk)
}

func (p *vectorStoreProxy) UpsertBatch(ctx context.Context, chunks []domain.Chunk) error {
	return p.get().UpsertBatch(ctx, chunks)
}

func (p *vectorStoreProxy) Get(ctx context.Context, chunkID string) (domain.Chunk, bool, error) {
	return p.get().Get(ctx, chunkID)
}

func (p *vectorStoreProxy) Delete(ctx context.Context, chunkID string) error {
	return p.get().Delete(ctx, chunkID)
}

func (p *vectorStoreProxy) DeleteBySource(ctx context.Context, sourceFile string) (int, error) {
	return p.get().DeleteBySource(ctx, sourceFile)
}

func (p *vectorStoreProxy) Search(ctx context.Context, vector []float32, k int, minScore float32, filter databases.SearchFilter) ([]databases.VectorResult, error) {
	return p.get().Search(ctx, vector, k, minScore, filter)
}

func (p *vectorStoreProxy) BatchSearch(ctx context.Context, vectors [][]float32, k int, minScore float32, filter databases.SearchFilter) ([][]databases.VectorResult, error) {
	return p.get().BatchSearch(ctx, vectors, k, minScore, filter)
}

func (p *vectorStoreProxy) List(ctx context.Context, limit, offset int) ([]domain.Chunk, error) {
	return p.get().List(ctx, limit, offset)
}

func (p *vectorStoreProxy) Stats(ctx context.Context) (databases.Stats, error) {
	return p.get().Stats(ctx)
}

func (p *vectorStoreProxy) Clear(ctx context.Context) error {
	return p.get().Clear(ctx)
}

func (p *vectorStoreProxy) Dimension() int { return p.get().Dimension() }

func (p *vectorStoreProxy) Close() error { return p.get().Close() }
