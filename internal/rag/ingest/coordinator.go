package ingest

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"

	"ragcore/internal/config"
	"ragcore/internal/observability"
	"ragcore/internal/persistence/databases"
	"ragcore/internal/rag/chunker"
	"ragcore/internal/rag/docproc"
	"ragcore/internal/rag/domain"
	"ragcore/internal/rag/embedder"
	"ragcore/internal/ragerr"
)

// embedBatchSize caps how many chunk texts are sent to the embedder per
// call during the EMBEDDING step (§4.7: "in chunk-size groups").
const embedBatchSize = 32

// Coordinator is C7: it drives C3 -> C1 -> C4 for each upload behind a
// per-document progress FSM, mirroring the teacher's pattern of a thin
// orchestration type over already-independent component interfaces.
type Coordinator struct {
	embedder embedder.Embedder
	vectors  databases.VectorStore

	chunking config.ChunkingConfig
	paths    config.PathsConfig

	progress *progressStore

	// sem bounds concurrently-running background tasks to MaxConcurrentIngests
	// (spec §5); nil means unbounded.
	sem chan struct{}
}

// New builds a Coordinator. maxConcurrent <= 0 means no cap on in-flight
// background tasks.
func New(emb embedder.Embedder, vectors databases.VectorStore, chunking config.ChunkingConfig, paths config.PathsConfig, maxConcurrent int) *Coordinator {
	c := &Coordinator{
		embedder: emb,
		vectors:  vectors,
		chunking: chunking,
		paths:    paths,
		progress: newProgressStore(),
	}
	if maxConcurrent > 0 {
		c.sem = make(chan struct{}, maxConcurrent)
	}
	return c
}

// StartIngest implements §4.7's StartIngest: synchronous validation and
// persistence, then a backgrounded parse/chunk/embed/store pipeline.
// Returns the assigned documentId even when the background work later
// fails; callers poll GetProgress for the outcome.
func (c *Coordinator) StartIngest(ctx context.Context, filename string, data []byte) (string, error) {
	documentID := uuid.NewString()
	c.progress.create(documentID, filename, int64(len(data)))

	res, err := validate(filename, data, c.chunking.MaxFileSize)
	if err != nil {
		c.progress.fail(documentID, err)
		return documentID, err
	}
	log := observability.LoggerWithTrace(ctx)
	for _, w := range res.Warnings {
		log.Warn().Str("documentId", documentID).Str("filename", filename).Msg(w)
	}

	if c.paths.UploadDir != "" {
		if err := os.MkdirAll(c.paths.UploadDir, 0o755); err != nil {
			wrapped := ragerr.Wrap("ingest.StartIngest", ragerr.Internal, err)
			c.progress.fail(documentID, wrapped)
			return documentID, wrapped
		}
		dest := uniquifyPath(c.paths.UploadDir, filename)
		if err := os.WriteFile(dest, data, 0o644); err != nil {
			wrapped := ragerr.Wrap("ingest.StartIngest", ragerr.Internal, err)
			c.progress.fail(documentID, wrapped)
			return documentID, wrapped
		}
	}

	c.progress.advance(documentID, domain.StepValidation)

	go c.run(documentID, filename, data)

	return documentID, nil
}

// run is the background task for one upload (§4.7). Any error it
// encounters is caught and recorded in the progress record rather than
// propagated; partial chunks already stored are left in place.
func (c *Coordinator) run(documentID, filename string, data []byte) {
	if c.sem != nil {
		c.sem <- struct{}{}
		defer func() { <-c.sem }()
	}

	ctx := context.Background()
	log := observability.LoggerWithTrace(ctx).With().Str("documentId", documentID).Logger()

	c.progress.advance(documentID, domain.StepParsing)
	extracted, err := docproc.Process(filename, data)
	if err != nil {
		log.Error().Err(err).Msg("parsing failed")
		c.progress.fail(documentID, err)
		return
	}

	chunks, err := chunker.Assemble(extracted.Text, chunker.Options{
		MaxChunkChars:   c.chunking.MaxChunkChars,
		ChunkOverlap:    c.chunking.ChunkOverlap,
		MinChunkChars:   c.chunking.MinChunkChars,
		MaxChunksPerDoc: c.chunking.MaxChunksPerDoc,
	})
	if err != nil {
		log.Error().Err(err).Msg("chunking failed")
		c.progress.fail(documentID, err)
		return
	}
	for i := range chunks {
		chunks[i].DocumentID = documentID
		chunks[i].SourceFile = filename
	}
	c.progress.advance(documentID, domain.StepChunking)

	if err := c.embedChunks(ctx, chunks); err != nil {
		log.Error().Err(err).Msg("embedding failed")
		c.progress.fail(documentID, err)
		return
	}
	c.progress.advance(documentID, domain.StepEmbedding)

	if err := c.store(ctx, chunks); err != nil {
		log.Error().Err(err).Msg("storage failed")
		c.progress.fail(documentID, err)
		return
	}
	c.progress.advance(documentID, domain.StepStorage)

	c.progress.advance(documentID, domain.StepCompleted)
}

// embedChunks calls C1.Encode in embedBatchSize groups and assigns each
// chunk's vector (§4.7 EMBEDDING step).
func (c *Coordinator) embedChunks(ctx context.Context, chunks []domain.Chunk) error {
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		texts := make([]string, end-start)
		for i := start; i < end; i++ {
			texts[i-start] = chunks[i].Text
		}
		vectors, err := c.embedder.Encode(ctx, texts)
		if err != nil {
			return err
		}
		for i := start; i < end; i++ {
			chunks[i].Vector = vectors[i-start]
		}
	}
	return nil
}

// store writes chunks through to the vector store directly (§4.7 STORAGE
// step): ingestion does not enqueue async, it uses synchronous UpsertBatch
// to preserve progress semantics — a caller polling GetProgress must see
// StepStorage only once the chunks are actually durable.
func (c *Coordinator) store(ctx context.Context, chunks []domain.Chunk) error {
	return c.vectors.UpsertBatch(ctx, chunks)
}

// GetProgress implements §4.7's GetProgress.
func (c *Coordinator) GetProgress(documentID string) (domain.UploadProgress, error) {
	return c.progress.get(documentID)
}

// RunGC sweeps progress records older than the §3 retention window and
// returns how many it removed. It runs only when called; the factory does
// not schedule it.
func (c *Coordinator) RunGC() int {
	return c.progress.gc(time.Now())
}
