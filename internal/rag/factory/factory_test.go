package factory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragcore/internal/config"
	"ragcore/internal/rag/domain"
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
		VectorStore: config.VectorStoreConfig{
			CollectionName: "factory-test",
			Dimension:      16,
			MaxQueueSize:   100,
		},
		Chunking: config.ChunkingConfig{
			MaxChunkChars:   1000,
			ChunkOverlap:    100,
			MinChunkChars:   50,
			MaxFileSize:     1024 * 1024,
			MaxChunksPerDoc: 100,
		},
		Health: config.HealthConfig{
			IntervalSeconds: 1,
			AlertThreshold:  2,
			AutoRecovery:    true,
		},
		Streaming: config.StreamingConfig{IdleTimeoutMinutes: 30},
		Paths: config.PathsConfig{
			UploadDir:    dir + "/uploads",
			ProcessedDir: dir + "/processed",
			CacheDir:     dir + "/cache",
		},
		MaxConcurrentIngests: 2,
	}
}

func newHealthyLLMServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.HandleFunc("/v1/completions", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []map[string]string{{"text": "ok"}}})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestFactoryNewInitializesAllComponentsHealthy(t *testing.T) {
	server := newHealthyLLMServer(t)
	f := New(context.Background(), testConfig(t, server.URL))
	t.Cleanup(f.Stop)

	services := f.Services()
	for _, name := range []string{"embedder", "llm", "docproc", "vectorstore", "pipeline", "coordinator", "streams"} {
		info, ok := services[name]
		require.True(t, ok, "missing service %q", name)
		assert.Equal(t, domain.StatusHealthy, info.Status, "service %q not healthy: %+v", name, info)
	}
	assert.Equal(t, OverallHealthy, f.Overall())

	require.NotNil(t, f.Pipeline)
	require.NotNil(t, f.Coordinator)
	require.NotNil(t, f.Streams)
}

func TestFactoryOverallDegradesOnUnhealthyComponent(t *testing.T) {
	server := newHealthyLLMServer(t)
	f := New(context.Background(), testConfig(t, server.URL))
	t.Cleanup(f.Stop)

	f.mu.Lock()
	info := f.services["llm"]
	info.Status = domain.StatusUnhealthy
	f.services["llm"] = info
	f.mu.Unlock()

	assert.Equal(t, OverallDegraded, f.Overall())
}

func TestFactoryHealthCheckRestartsAfterThreshold(t *testing.T) {
	f := New(context.Background(), testConfig(t, "http://127.0.0.1:1"))
	t.Cleanup(f.Stop)

	ctx := context.Background()
	f.runHealthCheck(ctx)
	f.runHealthCheck(ctx)

	services := f.Services()
	// llm's only provider is unreachable; after alertThreshold consecutive
	// failures with autoRecovery on, restart fires (a Probe retry, since the
	// endpoint is still unreachable), fails again, and leaves the service
	// marked ERROR rather than just UNHEALTHY.
	assert.Equal(t, domain.StatusError, services["llm"].Status)

	alerts := f.Alerts()
	assert.NotEmpty(t, alerts)
}

func TestFactoryAlertCallbackReceivesHealthAlerts(t *testing.T) {
	f := New(context.Background(), testConfig(t, "http://127.0.0.1:1"))
	t.Cleanup(f.Stop)

	received := make(chan domain.PerformanceAlert, 8)
	f.AddAlertCallback(func(a domain.PerformanceAlert) { received <- a })

	f.runHealthCheck(context.Background())

	select {
	case a := <-received:
		assert.Equal(t, "health_check_failed", a.Type)
	case <-time.After(time.Second):
		t.Fatal("expected an alert from the failed llm probe")
	}
}

func TestFactoryAlertCallbackPanicIsolated(t *testing.T) {
	f := New(context.Background(), testConfig(t, "http://127.0.0.1:1"))
	t.Cleanup(f.Stop)

	called := false
	f.AddAlertCallback(func(domain.PerformanceAlert) { panic("boom") })
	f.AddAlertCallback(func(domain.PerformanceAlert) { called = true })

	assert.NotPanics(t, func() { f.runHealthCheck(context.Background()) })
	assert.True(t, called)
}
