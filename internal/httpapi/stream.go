package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"ragcore/internal/observability"
	"ragcore/internal/rag/pipeline"
)

// sseChunk mirrors spec §6's three wire shapes exactly: {"type":"content",
// "content":"…"}, {"type":"end"}, {"type":"error","message":"…"}.
type sseChunk struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Message string `json:"message,omitempty"`
}

// sseTokenWriter implements llm.StreamHandler, writing one JSON object per
// token and touching the connection registry so the idle sweeper sees
// activity (spec §4.9).
type sseTokenWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	touch   func()
}

func (h sseTokenWriter) OnToken(text string) {
	writeSSE(h.w, sseChunk{Type: "content", Content: text})
	h.flusher.Flush()
	if h.touch != nil {
		h.touch()
	}
}

// handleQueryStream opens a registry connection for the lifetime of the SSE
// response, forwards C6's streamed tokens verbatim, and closes/sweeps the
// connection on completion or client disconnect (spec §4.9, §6).
func (s *Server) handleQueryStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		http.Error(w, "q is required", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	connID, cctx := s.factory.Streams.Open(r.Context(), map[string]string{"query": query})
	defer s.factory.Streams.Close(connID)

	handler := sseTokenWriter{w: w, flusher: flusher, touch: func() { s.factory.Streams.Touch(connID) }}

	_, err := s.factory.Pipeline.QueryStream(cctx, pipeline.NewQuery(query), handler)
	if err != nil {
		observability.LoggerWithTrace(cctx).Warn().Err(err).Msg("query_stream_failed")
		writeSSE(w, sseChunk{Type: "error", Message: err.Error()})
		flusher.Flush()
		return
	}
	writeSSE(w, sseChunk{Type: "end"})
	flusher.Flush()
}

func writeSSE(w http.ResponseWriter, chunk sseChunk) {
	b, err := json.Marshal(chunk)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", b)
}
