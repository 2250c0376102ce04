package databases

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"ragcore/internal/rag/domain"
)

// Qdrant only allows UUIDs and positive integers as point IDs, so chunk IDs
// that are not already UUIDs are mapped to a deterministic UUID and the
// original chunk ID is kept in the payload (spec §4.4.1 Get/Delete by id).
const payloadChunkIDField = "_chunk_id"

const (
	payloadText       = "text"
	payloadSourceFile = "sourceFile"
	payloadChunkIndex = "chunkIndex"
	payloadDocumentID = "documentId"
	payloadStartChar  = "startChar"
	payloadEndChar    = "endChar"
	payloadCreatedAt  = "createdAt"
	payloadUpdatedAt  = "updatedAt"
	metadataPrefix    = "meta_"
)

type qdrantVector struct {
	client     *qdrant.Client
	collection string
	dimension  int
	metric     string // cosine|l2|euclidean|ip|dot|manhattan
}

// NewQdrantVector opens (and if absent, creates) a Qdrant collection sized
// for dimension-wide vectors, reached over the gRPC API (default port 6334).
// An API key can be supplied as a DSN query parameter:
// "http://localhost:6334?api_key=your_api_key".
func NewQdrantVector(dsn, collection string, dimension int, metric string) (VectorStore, error) {
	if collection == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	parsedURL, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse Qdrant DSN: %w", err)
	}
	host := parsedURL.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := parsedURL.Port()
	if port == "" {
		port = "6334"
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return nil, fmt.Errorf("invalid port in Qdrant DSN: %w", err)
	}
	cfg := &qdrant.Config{Host: host, Port: portNum}
	if parsedURL.Scheme == "https" {
		cfg.UseTLS = true
	}
	if apiKey := parsedURL.Query().Get("api_key"); apiKey != "" {
		cfg.APIKey = apiKey
	}
	client, err := qdrant.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create Qdrant client: %w", err)
	}
	qv := &qdrantVector{
		client:     client,
		collection: collection,
		dimension:  dimension,
		metric:     strings.ToLower(strings.TrimSpace(metric)),
	}
	ctx := context.Background()
	if err := qv.ensureCollection(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("ensure collection: %w", err)
	}
	return qv, nil
}

func (q *qdrantVector) ensureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("check collection exists: %w", err)
	}
	if exists {
		return nil
	}
	if q.dimension <= 0 {
		return fmt.Errorf("qdrant requires dimension > 0")
	}
	var distance qdrant.Distance
	switch q.metric {
	case "l2", "euclidean":
		distance = qdrant.Distance_Euclid
	case "ip", "dot":
		distance = qdrant.Distance_Dot
	case "manhattan":
		distance = qdrant.Distance_Manhattan
	default:
		distance = qdrant.Distance_Cosine
	}
	if err := q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.dimension),
			Distance: distance,
		}),
	}); err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	// Payload indexes on the fields C4's filtered search and DeleteBySource use
	// most often (spec §4.4.1).
	for _, field := range []string{payloadSourceFile, payloadChunkIndex, payloadCreatedAt} {
		schema := qdrant.FieldType_FieldTypeKeyword
		if field == payloadChunkIndex {
			schema = qdrant.FieldType_FieldTypeInteger
		}
		if _, err := q.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: q.collection,
			FieldName:      field,
			FieldType:      &schema,
		}); err != nil {
			return fmt.Errorf("create field index %s: %w", field, err)
		}
	}
	return nil
}

func (q *qdrantVector) Dimension() int { return q.dimension }

func (q *qdrantVector) Close() error { return q.client.Close() }

func pointUUID(chunkID string) (string, bool) {
	if _, err := uuid.Parse(chunkID); err == nil {
		return chunkID, false
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunkID)).String(), true
}

func chunkToPayload(c domain.Chunk) map[string]any {
	m := map[string]any{
		payloadText:       c.Text,
		payloadSourceFile: c.SourceFile,
		payloadChunkIndex: int64(c.ChunkIndex),
		payloadDocumentID: c.DocumentID,
		payloadStartChar:  int64(c.StartChar),
		payloadEndChar:    int64(c.EndChar),
		payloadCreatedAt:  c.CreatedAt.Unix(),
		payloadUpdatedAt:  c.UpdatedAt.Unix(),
		payloadChunkIDField: c.ID,
	}
	for k, v := range c.Metadata {
		m[metadataPrefix+k] = v
	}
	return m
}

func payloadToChunk(id string, vec []float32, payload map[string]*qdrant.Value) domain.Chunk {
	c := domain.Chunk{Vector: vec}
	meta := make(map[string]string)
	for k, v := range payload {
		switch k {
		case payloadChunkIDField:
			c.ID = v.GetStringValue()
		case payloadText:
			c.Text = v.GetStringValue()
		case payloadSourceFile:
			c.SourceFile = v.GetStringValue()
		case payloadChunkIndex:
			c.ChunkIndex = int(v.GetIntegerValue())
		case payloadDocumentID:
			c.DocumentID = v.GetStringValue()
		case payloadStartChar:
			c.StartChar = int(v.GetIntegerValue())
		case payloadEndChar:
			c.EndChar = int(v.GetIntegerValue())
		default:
			if strings.HasPrefix(k, metadataPrefix) {
				meta[strings.TrimPrefix(k, metadataPrefix)] = v.GetStringValue()
			}
		}
	}
	if c.ID == "" {
		c.ID = id
	}
	c.Metadata = meta
	return c
}

func (q *qdrantVector) Upsert(ctx context.Context, chunk domain.Chunk) error {
	return q.UpsertBatch(ctx, []domain.Chunk{chunk})
}

func (q *qdrantVector) UpsertBatch(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for _, c := range chunks {
		uuidStr, _ := pointUUID(c.ID)
		vec := make([]float32, len(c.Vector))
		copy(vec, c.Vector)
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(uuidStr),
			Vectors: qdrant.NewVectorsDense(vec),
			Payload: qdrant.NewValueMap(chunkToPayload(c)),
		})
	}
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Points:         points,
	})
	return err
}

func (q *qdrantVector) Get(ctx context.Context, chunkID string) (domain.Chunk, bool, error) {
	uuidStr, _ := pointUUID(chunkID)
	withVectors := true
	withPayload := true
	points, err := q.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: q.collection,
		Ids:            []*qdrant.PointId{qdrant.NewIDUUID(uuidStr)},
		WithVectors:    &qdrant.WithVectorsSelector{SelectorOptions: &qdrant.WithVectorsSelector_Enable{Enable: withVectors}},
		WithPayload:    &qdrant.WithPayloadSelector{SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: withPayload}},
	})
	if err != nil {
		return domain.Chunk{}, false, err
	}
	if len(points) == 0 {
		return domain.Chunk{}, false, nil
	}
	vec := points[0].GetVectors().GetVector().GetData()
	return payloadToChunk(chunkID, vec, points[0].Payload), true, nil
}

func (q *qdrantVector) Delete(ctx context.Context, chunkID string) error {
	uuidStr, _ := pointUUID(chunkID)
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Points:         qdrant.NewPointsSelector(qdrant.NewIDUUID(uuidStr)),
	})
	return err
}

func (q *qdrantVector) DeleteBySource(ctx context.Context, sourceFile string) (int, error) {
	filter := &qdrant.Filter{Must: []*qdrant.Condition{qdrant.NewMatch(payloadSourceFile, sourceFile)}}
	count, err := q.countMatching(ctx, filter)
	if err != nil {
		return 0, err
	}
	_, err = q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Points:         &qdrant.PointsSelector{PointsSelectorOneOf: &qdrant.PointsSelector_Filter{Filter: filter}},
	})
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func (q *qdrantVector) countMatching(ctx context.Context, filter *qdrant.Filter) (int64, error) {
	exact := true
	resp, err := q.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: q.collection,
		Filter:         filter,
		Exact:          &exact,
	})
	if err != nil {
		return 0, err
	}
	return int64(resp), nil
}

// buildFilter translates SearchFilter into Qdrant's native Must conditions
// (spec §4.4.1's filter language), so filtering and minScore are both
// enforced server-side rather than after the fact.
func buildFilter(f SearchFilter) *qdrant.Filter {
	var must []*qdrant.Condition
	if f.SourceFile != "" {
		must = append(must, qdrant.NewMatch(payloadSourceFile, f.SourceFile))
	}
	if len(f.SourceFileAny) > 0 {
		must = append(must, qdrant.NewMatchKeywords(payloadSourceFile, f.SourceFileAny...))
	}
	if f.DocumentID != "" {
		must = append(must, qdrant.NewMatch(payloadDocumentID, f.DocumentID))
	}
	if f.ChunkIndex != nil {
		must = append(must, qdrant.NewMatchInt(payloadChunkIndex, int64(*f.ChunkIndex)))
	}
	if f.ChunkIndexGTE != nil || f.ChunkIndexLTE != nil {
		must = append(must, qdrant.NewRange(payloadChunkIndex, chunkIndexRange(f)))
	}
	if !f.CreatedAfter.IsZero() || !f.CreatedBefore.IsZero() {
		must = append(must, qdrant.NewRange(payloadCreatedAt, createdAtRange(f)))
	}
	for k, v := range f.Metadata {
		must = append(must, qdrant.NewMatch(metadataPrefix+k, v))
	}
	if len(must) == 0 {
		return nil
	}
	return &qdrant.Filter{Must: must}
}

func chunkIndexRange(f SearchFilter) *qdrant.Range {
	r := &qdrant.Range{}
	if f.ChunkIndexGTE != nil {
		v := float64(*f.ChunkIndexGTE)
		r.Gte = &v
	}
	if f.ChunkIndexLTE != nil {
		v := float64(*f.ChunkIndexLTE)
		r.Lte = &v
	}
	return r
}

func createdAtRange(f SearchFilter) *qdrant.Range {
	r := &qdrant.Range{}
	if !f.CreatedAfter.IsZero() {
		v := float64(f.CreatedAfter.Unix())
		r.Gte = &v
	}
	if !f.CreatedBefore.IsZero() {
		v := float64(f.CreatedBefore.Unix())
		r.Lte = &v
	}
	return r
}

func (q *qdrantVector) Search(ctx context.Context, vector []float32, k int, minScore float32, filter SearchFilter) ([]VectorResult, error) {
	if k <= 0 {
		k = 10
	}
	vec := make([]float32, len(vector))
	copy(vec, vector)
	limit := uint64(k)
	qp := &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQueryDense(vec),
		Limit:          &limit,
		Filter:         buildFilter(filter),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if minScore > 0 {
		st := minScore
		qp.ScoreThreshold = &st
	}
	hits, err := q.client.Query(ctx, qp)
	if err != nil {
		return nil, err
	}
	return hitsToResults(hits), nil
}

func (q *qdrantVector) BatchSearch(ctx context.Context, vectors [][]float32, k int, minScore float32, filter SearchFilter) ([][]VectorResult, error) {
	out := make([][]VectorResult, len(vectors))
	for i, v := range vectors {
		r, err := q.Search(ctx, v, k, minScore, filter)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

func hitsToResults(hits []*qdrant.ScoredPoint) []VectorResult {
	results := make([]VectorResult, 0, len(hits))
	for _, hit := range hits {
		chunkID := ""
		text := ""
		sourceFile := ""
		chunkIndex := 0
		if hit.Payload != nil {
			if v, ok := hit.Payload[payloadChunkIDField]; ok {
				chunkID = v.GetStringValue()
			}
			if v, ok := hit.Payload[payloadText]; ok {
				text = v.GetStringValue()
			}
			if v, ok := hit.Payload[payloadSourceFile]; ok {
				sourceFile = v.GetStringValue()
			}
			if v, ok := hit.Payload[payloadChunkIndex]; ok {
				chunkIndex = int(v.GetIntegerValue())
			}
		}
		if chunkID == "" {
			chunkID = hit.Id.GetUuid()
		}
		meta := make(map[string]string)
		for k, v := range hit.Payload {
			if strings.HasPrefix(k, metadataPrefix) {
				meta[strings.TrimPrefix(k, metadataPrefix)] = v.GetStringValue()
			}
		}
		results = append(results, VectorResult{
			ChunkID:    chunkID,
			Text:       text,
			Score:      hit.Score,
			SourceFile: sourceFile,
			ChunkIndex: chunkIndex,
			Metadata:   meta,
		})
	}
	return results
}

func (q *qdrantVector) List(ctx context.Context, limit, offset int) ([]domain.Chunk, error) {
	if limit <= 0 {
		limit = 100
	}
	lim := uint32(limit)
	points, err := q.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: q.collection,
		Limit:          &lim,
		WithVectors:    qdrant.NewWithVectors(true),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, err
	}
	chunks := make([]domain.Chunk, 0, len(points))
	for i, p := range points {
		if i < offset {
			continue
		}
		vec := p.GetVectors().GetVector().GetData()
		chunks = append(chunks, payloadToChunk(p.Id.GetUuid(), vec, p.Payload))
	}
	return chunks, nil
}

func (q *qdrantVector) Stats(ctx context.Context) (Stats, error) {
	count, err := q.countMatching(ctx, nil)
	if err != nil {
		return Stats{}, err
	}
	return Stats{PointCount: count, CollectionName: q.collection, Dimension: q.dimension}, nil
}

func (q *qdrantVector) Clear(ctx context.Context) error {
	if err := q.client.DeleteCollection(ctx, q.collection); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	return q.ensureCollection(ctx)
}
