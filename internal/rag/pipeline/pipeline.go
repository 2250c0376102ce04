package pipeline

import (
	"context"
	"time"

	"ragcore/internal/llm"
	"ragcore/internal/persistence/databases"
	"ragcore/internal/rag/domain"
	"ragcore/internal/rag/embedder"
	"ragcore/internal/rag/prompt"
	"ragcore/internal/ragerr"
)

// noResultsMessage is the canned answer for an empty retrieval (spec §4.6 step 3).
const noResultsMessage = "I couldn't find any relevant information to answer that question."

// generationFailureMessage is the user-facing text substituted for a
// generation failure (spec §4.6/§7: generation failures return a
// user-facing message rather than raising).
const generationFailureMessage = "I'm sorry, I wasn't able to generate a response right now. Please try again shortly."

// Pipeline is C6: it drives C1 (embed) -> C4 (search) -> context assembly
// -> C5 (prompt+validate) -> C2 (generate).
type Pipeline struct {
	embedder embedder.Embedder
	vectors  databases.VectorStore
	llm      *llm.Client
	metrics  *Metrics
}

// New builds a Pipeline over already-constructed C1/C4/C2 singletons (owned
// by C8's factory).
func New(emb embedder.Embedder, vectors databases.VectorStore, llmClient *llm.Client) *Pipeline {
	return &Pipeline{embedder: emb, vectors: vectors, llm: llmClient, metrics: newMetrics()}
}

// Metrics returns a snapshot of the rolling query metrics (spec §4.6).
func (p *Pipeline) Metrics() Snapshot { return p.metrics.snapshot() }

// Query implements §4.6's algorithm end to end. Retrieval failures
// (embedding or search) are returned as a wrapped RetrievalError; a
// generation failure is absorbed into a StatusError response with a
// user-facing message rather than returned as an error, per §7's
// propagation rule.
func (p *Pipeline) Query(ctx context.Context, q RAGQuery) (RAGResponse, error) {
	start := time.Now()
	q = withDefaults(q)

	retrievalStart := time.Now()
	hits, err := p.retrieve(ctx, q)
	retrievalTime := time.Since(retrievalStart)
	if err != nil {
		p.metrics.recordFailure()
		return RAGResponse{}, ragerr.Wrap("pipeline.Query", ragerr.RetrievalError, err)
	}

	if len(hits) == 0 {
		p.metrics.recordFailure()
		return RAGResponse{
			Status:       StatusNoResults,
			Answer:       noResultsMessage,
			ResponseTime: time.Since(start),
			Metadata:     ResponseMetadata{ValidationStatus: domain.ValidationValid, SafetyScore: 1},
		}, nil
	}

	ragCtx := assembleContext(hits, q.MaxContextChars)

	qtype := q.QueryType
	if qtype == "" {
		qtype = prompt.Classify(q.Query)
	}
	promptText := prompt.Build(prompt.Request{
		Query:          q.Query,
		Context:        ragCtx,
		QueryType:      qtype,
		SafetyLevel:    q.SafetyLevel,
		ResponseFormat: q.ResponseFormat,
	})

	generationStart := time.Now()
	answer, genErr := p.llm.Generate(ctx, promptText, llm.GenerateOptions{Temperature: q.Temperature, MaxTokens: q.MaxTokens})
	generationTime := time.Since(generationStart)
	if genErr != nil {
		p.metrics.recordFailure()
		return RAGResponse{
			Status:       StatusError,
			Answer:       generationFailureMessage,
			Context:      ragCtx,
			ResponseTime: time.Since(start),
			Metadata: ResponseMetadata{
				Provider:           p.llm.ActiveProviderName(),
				ContextLength:      ragCtx.ContextLength,
				DocumentsRetrieved: len(ragCtx.Results),
				AvgRelevance:       avgRelevance(ragCtx.RelevanceScores),
				ValidationStatus:   domain.ValidationError,
			},
		}, nil
	}

	validation := prompt.ValidateResponse(answer, ragCtx)

	var sources []string
	if q.IncludeSources {
		sources = ragCtx.SourceFiles
	}

	p.metrics.recordSuccess(time.Since(start), retrievalTime, generationTime, ragCtx.ContextLength, len(ragCtx.Results), validation.SafetyScore, validationIssueCount(validation))

	return RAGResponse{
		Status:       StatusOK,
		Answer:       answer,
		Context:      ragCtx,
		ResponseTime: time.Since(start),
		Sources:      sources,
		Metadata: ResponseMetadata{
			Provider:           p.llm.ActiveProviderName(),
			ContextLength:      ragCtx.ContextLength,
			DocumentsRetrieved: len(ragCtx.Results),
			AvgRelevance:       avgRelevance(ragCtx.RelevanceScores),
			ValidationStatus:   validation.Status,
			SafetyScore:        validation.SafetyScore,
		},
	}, nil
}

// QueryStream runs steps 1-5 of §4.6 then forwards C2's streaming tokens to
// h verbatim; validation only runs in unary mode. It returns the assembled
// context so the caller can still report sources, and propagates retrieval
// or generation errors directly — callers translate those into the
// terminal {"type":"error",...} chunk §7 describes at the transport layer.
func (p *Pipeline) QueryStream(ctx context.Context, q RAGQuery, h llm.StreamHandler) (domain.RAGContext, error) {
	q = withDefaults(q)

	hits, err := p.retrieve(ctx, q)
	if err != nil {
		return domain.RAGContext{}, ragerr.Wrap("pipeline.QueryStream", ragerr.RetrievalError, err)
	}
	if len(hits) == 0 {
		return domain.RAGContext{}, nil
	}

	ragCtx := assembleContext(hits, q.MaxContextChars)

	qtype := q.QueryType
	if qtype == "" {
		qtype = prompt.Classify(q.Query)
	}
	promptText := prompt.Build(prompt.Request{
		Query:          q.Query,
		Context:        ragCtx,
		QueryType:      qtype,
		SafetyLevel:    q.SafetyLevel,
		ResponseFormat: q.ResponseFormat,
	})

	if err := p.llm.GenerateStreaming(ctx, promptText, llm.GenerateOptions{Temperature: q.Temperature, MaxTokens: q.MaxTokens}, h); err != nil {
		return ragCtx, ragerr.Wrap("pipeline.QueryStream", ragerr.GenerationError, err)
	}
	return ragCtx, nil
}

// retrieve embeds the query and searches the vector store (spec §4.6 steps
// 1-2); the `score >= minScore` invariant (spec §4.4.1, §8 Ranking) is
// enforced by the store itself, not post-filtered here.
func (p *Pipeline) retrieve(ctx context.Context, q RAGQuery) ([]databases.VectorResult, error) {
	qvec, err := p.embedder.EncodeOne(ctx, q.Query)
	if err != nil {
		return nil, err
	}
	return p.vectors.Search(ctx, qvec, q.TopK, q.ScoreThreshold, q.Filters)
}

func avgRelevance(scores []float32) float32 {
	if len(scores) == 0 {
		return 0
	}
	var sum float32
	for _, s := range scores {
		sum += s
	}
	return sum / float32(len(scores))
}

func validationIssueCount(v prompt.Validation) int {
	if v.Status == domain.ValidationValid {
		return 0
	}
	return 1
}
