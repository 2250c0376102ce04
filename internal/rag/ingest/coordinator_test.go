package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragcore/internal/config"
	"ragcore/internal/persistence/databases"
	"ragcore/internal/rag/domain"
	"ragcore/internal/rag/embedder"
)

func testChunking() config.ChunkingConfig {
	return config.ChunkingConfig{
		MaxChunkChars:   200,
		ChunkOverlap:    20,
		MinChunkChars:   1,
		MaxFileSize:     0,
		MaxChunksPerDoc: 100,
	}
}

func waitForTerminal(t *testing.T, c *Coordinator, documentID string) domain.UploadProgress {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rec, err := c.GetProgress(documentID)
		require.NoError(t, err)
		if rec.CurrentStep == domain.StepCompleted || rec.CurrentStep == domain.StepFailed {
			return rec
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("timed out waiting for ingestion to finish")
	return domain.UploadProgress{}
}

func TestCoordinatorStartIngestCompletesHappyPath(t *testing.T) {
	store, err := databases.NewMemoryVector("ingest-test", 16)
	require.NoError(t, err)
	emb := embedder.NewDeterministicEmbedder(16)
	c := New(emb, store, testChunking(), config.PathsConfig{}, 0)

	documentID, err := c.StartIngest(context.Background(), "notes.txt", []byte("Hello world. This is a test document about cats and dogs."))
	require.NoError(t, err)
	require.NotEmpty(t, documentID)

	rec := waitForTerminal(t, c, documentID)
	assert.Equal(t, domain.StepCompleted, rec.CurrentStep)
	assert.Equal(t, 100, rec.Progress)

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Greater(t, stats.PointCount, int64(0))
}

func TestCoordinatorStartIngestRejectsInvalidUpload(t *testing.T) {
	store, err := databases.NewMemoryVector("ingest-test-2", 16)
	require.NoError(t, err)
	emb := embedder.NewDeterministicEmbedder(16)
	c := New(emb, store, testChunking(), config.PathsConfig{}, 0)

	documentID, err := c.StartIngest(context.Background(), "payload.exe", []byte("data"))
	require.Error(t, err)

	rec, getErr := c.GetProgress(documentID)
	require.NoError(t, getErr)
	assert.Equal(t, domain.StepFailed, rec.CurrentStep)
	assert.NotEmpty(t, rec.ErrorMessage)
}

func TestCoordinatorGetProgressUnknownDocument(t *testing.T) {
	store, err := databases.NewMemoryVector("ingest-test-3", 16)
	require.NoError(t, err)
	emb := embedder.NewDeterministicEmbedder(16)
	c := New(emb, store, testChunking(), config.PathsConfig{}, 0)

	_, err = c.GetProgress("does-not-exist")
	assert.Error(t, err)
}
