// Package httpapi is the thin REST mapping over the core RAG service (spec
// §6: "the HTTP adapter's REST shape... is a straightforward mapping and
// not part of the core spec"). It translates HTTP requests into calls
// against C7's Coordinator and C6's Pipeline, and the streaming wire
// format into C9 registry lifecycle calls plus raw SSE writes.
package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"ragcore/internal/observability"
	"ragcore/internal/rag/factory"
	"ragcore/internal/rag/pipeline"
)

// Server wires one *factory.Factory into an http.Handler. Grounded on the
// teacher's cmd/agentd/cmd/webui pattern of a plain http.ServeMux with one
// handler func per route rather than a router framework — the spec treats
// the REST surface as a non-core concern, so this adapter stays as small as
// the teacher's own simplest HTTP entrypoints.
type Server struct {
	factory *factory.Factory
	mux     *http.ServeMux
}

func NewServer(f *factory.Factory) *Server {
	s := &Server{factory: f, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealthz)
	s.mux.HandleFunc("/v1/health", s.handleHealth)
	s.mux.HandleFunc("/v1/alerts", s.handleAlerts)
	s.mux.HandleFunc("/v1/ingest", s.handleIngest)
	s.mux.HandleFunc("/v1/ingest/progress", s.handleProgress)
	s.mux.HandleFunc("/v1/query", s.handleQuery)
	s.mux.HandleFunc("/v1/query/stream", s.handleQueryStream)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"overall":  s.factory.Overall(),
		"services": s.factory.Services(),
	})
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.factory.Alerts())
}

// handleIngest accepts a multipart upload under field "file" and hands the
// raw bytes to C7.StartIngest (spec §4.7 step 1-5).
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		http.Error(w, "invalid multipart upload", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "failed to read upload", http.StatusInternalServerError)
		return
	}

	documentID, err := s.factory.Coordinator.StartIngest(r.Context(), header.Filename, data)
	if err != nil {
		observability.LoggerWithTrace(r.Context()).Warn().Err(err).Str("filename", header.Filename).Msg("ingest_rejected")
		writeJSON(w, http.StatusBadRequest, map[string]any{"documentId": documentID, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"documentId": documentID})
}

// handleProgress returns the current UploadProgress snapshot for
// ?documentId=... (spec §6: "exactly the fields in §3 UploadProgress").
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	documentID := r.URL.Query().Get("documentId")
	if documentID == "" {
		http.Error(w, "documentId is required", http.StatusBadRequest)
		return
	}
	progress, err := s.factory.Coordinator.GetProgress(documentID)
	if err != nil {
		http.Error(w, "document not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

// handleQuery runs C6's unary Query and returns the full RAGResponse.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req pipeline.RAGQuery
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	resp, err := s.factory.Pipeline.Query(r.Context(), req)
	if err != nil {
		observability.LoggerWithTrace(r.Context()).Error().Err(err).Msg("query_failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
