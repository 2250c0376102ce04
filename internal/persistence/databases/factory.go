package databases

import (
	"context"
	"fmt"

	"ragcore/internal/config"
)

// NewVectorStore resolves C4's backend from cfg.VectorStore.DSN: an empty
// DSN selects the in-memory chromem-go store directly; any other DSN is
// treated as a Qdrant address, and if Qdrant cannot be reached the
// in-memory store is used instead.
func NewVectorStore(ctx context.Context, cfg config.VectorStoreConfig) (VectorStore, error) {
	if cfg.DSN == "" {
		return NewMemoryVector(cfg.CollectionName, cfg.Dimension)
	}
	store, err := NewQdrantVector(cfg.DSN, cfg.CollectionName, cfg.Dimension, "cosine")
	if err == nil {
		return store, nil
	}
	mem, memErr := NewMemoryVector(cfg.CollectionName, cfg.Dimension)
	if memErr != nil {
		return nil, fmt.Errorf("qdrant unavailable (%w) and memory fallback failed: %v", err, memErr)
	}
	return mem, nil
}
