package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragcore/internal/config"
	"ragcore/internal/rag/factory"
)

func testConfig(t *testing.T, llmURL string) config.Config {
	t.Helper()
	dir := t.TempDir()
	return config.Config{
		Embedding: config.EmbeddingConfig{Dimension: 16},
		LLM: config.LLMConfig{
			Primary: config.LLMProviderConfig{Name: "local", BaseURL: llmURL},
			Timeout: 5 * time.Second,
		},
		VectorStore: config.VectorStoreConfig{CollectionName: "httpapi-test", Dimension: 16, MaxQueueSize: 100},
		Chunking: config.ChunkingConfig{
			MaxChunkChars: 1000, ChunkOverlap: 100, MinChunkChars: 10, MaxFileSize: 1 << 20, MaxChunksPerDoc: 100,
		},
		Health:               config.HealthConfig{IntervalSeconds: 60, AlertThreshold: 3, AutoRecovery: false},
		Streaming:            config.StreamingConfig{IdleTimeoutMinutes: 30},
		Paths:                config.PathsConfig{UploadDir: dir + "/uploads", ProcessedDir: dir + "/processed", CacheDir: dir + "/cache"},
		MaxConcurrentIngests: 2,
	}
}

func newTestLLMServer(t *testing.T, answer string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.HandleFunc("/v1/completions", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Stream bool `json:"stream"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if req.Stream {
			w.Header().Set("Content-Type", "text/event-stream")
			chunk, _ := json.Marshal(map[string]any{"choices": []map[string]string{{"text": answer}}})
			w.Write([]byte("data: "))
			w.Write(chunk)
			w.Write([]byte("\n\ndata: [DONE]\n\n"))
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"choices": []map[string]string{{"text": answer}}})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestServer(t *testing.T, answer string) *Server {
	t.Helper()
	llm := newTestLLMServer(t, answer)
	f := factory.New(context.Background(), testConfig(t, llm.URL))
	t.Cleanup(f.Stop)
	return NewServer(f)
}

func multipartUpload(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestHealthzReturnsOK(t *testing.T) {
	s := newTestServer(t, "answer")
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestHealthEndpointReportsServices(t *testing.T) {
	s := newTestServer(t, "answer")
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "HEALTHY", body["overall"])
}

func TestIngestThenProgress(t *testing.T) {
	s := newTestServer(t, "answer")

	body, contentType := multipartUpload(t, "notes.txt", "Our refund policy allows returns within 30 days of purchase.")
	req := httptest.NewRequest(http.MethodPost, "/v1/ingest", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)
	require.Equal(t, http.StatusAccepted, rr.Code)

	var ingestResp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &ingestResp))
	documentID := ingestResp["documentId"]
	require.NotEmpty(t, documentID)

	var progress map[string]any
	for i := 0; i < 50; i++ {
		rr = httptest.NewRecorder()
		s.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/ingest/progress?documentId="+documentID, nil))
		require.Equal(t, http.StatusOK, rr.Code)
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &progress))
		if progress["currentStep"] == "COMPLETED" || progress["currentStep"] == "FAILED" {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, "COMPLETED", progress["currentStep"])
}

func TestProgressUnknownDocumentIsNotFound(t *testing.T) {
	s := newTestServer(t, "answer")
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/ingest/progress?documentId=does-not-exist", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestQueryReturnsNoResultsOnEmptyStore(t *testing.T) {
	s := newTestServer(t, "answer")
	payload, _ := json.Marshal(map[string]string{"query": "what is the refund policy"})
	req := httptest.NewRequest(http.MethodPost, "/v1/query", bytes.NewReader(payload))
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "NO_RESULTS", resp["status"])
}

func TestQueryStreamEmitsContentThenEnd(t *testing.T) {
	s := newTestServer(t, "streamed answer")

	body, contentType := multipartUpload(t, "notes.txt", "Our refund policy allows returns within 30 days of purchase.")
	req := httptest.NewRequest(http.MethodPost, "/v1/ingest", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)
	require.Equal(t, http.StatusAccepted, rr.Code)

	var ingestResp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &ingestResp))
	documentID := ingestResp["documentId"]

	var progress map[string]any
	for i := 0; i < 50; i++ {
		pr := httptest.NewRecorder()
		s.ServeHTTP(pr, httptest.NewRequest(http.MethodGet, "/v1/ingest/progress?documentId="+documentID, nil))
		json.Unmarshal(pr.Body.Bytes(), &progress)
		if progress["currentStep"] == "COMPLETED" {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.Equal(t, "COMPLETED", progress["currentStep"])

	streamRR := httptest.NewRecorder()
	streamReq := httptest.NewRequest(http.MethodGet, "/v1/query/stream?q=refund+policy", nil)
	s.ServeHTTP(streamRR, streamReq)

	out := streamRR.Body.String()
	assert.True(t, strings.Contains(out, `"type":"content"`) || strings.Contains(out, `"type":"end"`))
	assert.Contains(t, out, `"type":"end"`)
}
