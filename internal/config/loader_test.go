package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		old, had := os.LookupEnv(k)
		os.Unsetenv(k)
		t.Cleanup(func() {
			if had {
				os.Setenv(k, old)
			}
		})
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	clearEnv(t, "MAX_CHUNK_CHARS", "CHUNK_OVERLAP", "VECTOR_DIM", "COLLECTION_NAME")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.Chunking.MaxChunkChars)
	assert.Equal(t, 384, cfg.VectorStore.Dimension)
	assert.Equal(t, "rag_chunks", cfg.VectorStore.CollectionName)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	clearEnv(t, "MAX_CHUNK_CHARS", "COLLECTION_NAME")
	os.Setenv("MAX_CHUNK_CHARS", "1500")
	os.Setenv("COLLECTION_NAME", "custom_collection")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 1500, cfg.Chunking.MaxChunkChars)
	assert.Equal(t, "custom_collection", cfg.VectorStore.CollectionName)
}

func TestLoadClampsFileSizeToHardCap(t *testing.T) {
	clearEnv(t, "MAX_FILE_SIZE")
	os.Setenv("MAX_FILE_SIZE", "209715200") // 200MB, above the 100MB hard cap

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, int64(hardMaxFileSize), cfg.Chunking.MaxFileSize)
}

func TestLoadClampsOverlapEqualToMax(t *testing.T) {
	clearEnv(t, "MAX_CHUNK_CHARS", "CHUNK_OVERLAP")
	os.Setenv("MAX_CHUNK_CHARS", "100")
	os.Setenv("CHUNK_OVERLAP", "100")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Less(t, cfg.Chunking.ChunkOverlap, cfg.Chunking.MaxChunkChars)
}

func TestLoadReconcilesDimensionMismatch(t *testing.T) {
	clearEnv(t, "VECTOR_DIM")
	os.Setenv("VECTOR_DIM", "768")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 768, cfg.Embedding.Dimension)
	assert.Equal(t, 768, cfg.VectorStore.Dimension)
}
