package config

import (
	"fmt"
	stdlog "log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// hardMaxFileSize is the absolute ceiling regardless of configuration (§6).
const hardMaxFileSize = 100 * 1024 * 1024

// Load reads configuration from a .env file (if present), environment
// variables, and an optional YAML overlay named by CONFIG_FILE, applying
// defaults for anything left unset and clamping values with hard invariants.
// Warnings about substituted defaults go through the standard log package so
// they are captured once observability.InitLogger redirects it.
func Load() (Config, error) {
	_ = godotenv.Overload()

	cfg := defaults()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := overlayYAML(&cfg, path); err != nil {
			return cfg, fmt.Errorf("config: load yaml overlay %q: %w", path, err)
		}
	}

	applyEnv(&cfg)
	validate(&cfg)

	return cfg, nil
}

func overlayYAML(cfg *Config, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(b, cfg)
}

func defaults() Config {
	return Config{
		LogLevel: "info",
		Obs: ObsConfig{
			ServiceName:    "rag-service",
			ServiceVersion: "dev",
			Environment:    "development",
		},
		Embedding: EmbeddingConfig{
			BaseURL:   "http://localhost:8080",
			Path:      "/v1/embeddings",
			Model:     "nomic-embed-text",
			APIHeader: "Authorization",
			Timeout:   30,
			Dimension: 384,
			CacheTTL:  1 * time.Hour,
			RedisAddr: "",
			RedisDB:   0,
		},
		LLM: LLMConfig{
			Primary: LLMProviderConfig{
				Name:    "http",
				BaseURL: "http://localhost:11434/v1",
				Model:   "llama3.1",
			},
			Secondary:   LLMProviderConfig{Name: "local"},
			Temperature: 0.7,
			MaxTokens:   1024,
			Timeout:     60 * time.Second,
		},
		VectorStore: VectorStoreConfig{
			DSN:            "http://localhost:6333",
			CollectionName: "rag_chunks",
			Dimension:      384,
			BatchChunkSize: 64,
			MaxQueueSize:   1000,
			SlowOpMs:       1000,
			MemHighMb:      1024,
			QueueHighN:     200,
			ErrRateHigh:    0.05,
		},
		Chunking: ChunkingConfig{
			MaxChunkChars:   1000,
			ChunkOverlap:    200,
			MinChunkChars:   250,
			MaxFileSize:     50 * 1024 * 1024,
			MaxChunksPerDoc: 5000,
		},
		Query: QueryConfig{
			TopK:            5,
			ScoreThreshold:  0.7,
			MaxContextChars: 4000,
		},
		Health: HealthConfig{
			IntervalSeconds: 30,
			AlertThreshold:  3,
			AutoRecovery:    true,
		},
		Streaming: StreamingConfig{
			IdleTimeoutMinutes: 30,
		},
		Paths: PathsConfig{
			UploadDir:    "./data/uploads",
			ProcessedDir: "./data/processed",
			CacheDir:     "./data/cache",
		},
		MaxConcurrentIngests: 4,
	}
}

func applyEnv(cfg *Config) {
	str(&cfg.LogLevel, "LOG_LEVEL")
	str(&cfg.LogPath, "LOG_PATH")
	str(&cfg.Obs.ServiceName, "OTEL_SERVICE_NAME")
	str(&cfg.Obs.ServiceVersion, "SERVICE_VERSION")
	str(&cfg.Obs.Environment, "ENVIRONMENT")
	str(&cfg.Obs.OTLP, "OTEL_EXPORTER_OTLP_ENDPOINT")

	str(&cfg.Embedding.BaseURL, "EMBEDDING_BASE_URL")
	str(&cfg.Embedding.Path, "EMBEDDING_PATH")
	str(&cfg.Embedding.Model, "EMBEDDING_MODEL")
	str(&cfg.Embedding.APIHeader, "EMBEDDING_API_HEADER")
	str(&cfg.Embedding.APIKey, "EMBEDDING_API_KEY")
	intv(&cfg.Embedding.Timeout, "EMBEDDING_TIMEOUT_SECONDS")
	intv(&cfg.Embedding.Dimension, "VECTOR_DIM")
	durv(&cfg.Embedding.CacheTTL, "EMBEDDING_CACHE_TTL")
	str(&cfg.Embedding.RedisAddr, "REDIS_ADDR")
	str(&cfg.Embedding.RedisPassword, "REDIS_PASSWORD")
	intv(&cfg.Embedding.RedisDB, "REDIS_DB")

	str(&cfg.LLM.Primary.Name, "LLM_PRIMARY_PROVIDER")
	str(&cfg.LLM.Primary.BaseURL, "LLM_BASE_URL")
	str(&cfg.LLM.Primary.APIKey, "LLM_API_KEY")
	str(&cfg.LLM.Primary.Model, "LLM_MODEL")
	str(&cfg.LLM.Secondary.Name, "LLM_SECONDARY_PROVIDER")
	str(&cfg.LLM.Secondary.ModelPath, "LLM_LOCAL_MODEL_PATH")
	f32(&cfg.LLM.Temperature, "TEMPERATURE")
	intv(&cfg.LLM.MaxTokens, "MAX_TOKENS")
	durv(&cfg.LLM.Timeout, "LLM_TIMEOUT")

	str(&cfg.VectorStore.DSN, "QDRANT_DSN")
	str(&cfg.VectorStore.CollectionName, "COLLECTION_NAME")
	intv(&cfg.VectorStore.Dimension, "VECTOR_DIM")
	intv(&cfg.VectorStore.BatchChunkSize, "BATCH_CHUNK_SIZE")
	intv(&cfg.VectorStore.MaxQueueSize, "MAX_QUEUE_SIZE")
	i64v(&cfg.VectorStore.SlowOpMs, "SLOW_OP_MS")
	i64v(&cfg.VectorStore.MemHighMb, "MEM_HIGH_MB")
	intv(&cfg.VectorStore.QueueHighN, "QUEUE_HIGH_N")
	f64v(&cfg.VectorStore.ErrRateHigh, "ERR_RATE_HIGH")

	intv(&cfg.Chunking.MaxChunkChars, "MAX_CHUNK_CHARS")
	intv(&cfg.Chunking.ChunkOverlap, "CHUNK_OVERLAP")
	intv(&cfg.Chunking.MinChunkChars, "MIN_CHUNK_CHARS")
	i64v(&cfg.Chunking.MaxFileSize, "MAX_FILE_SIZE")
	intv(&cfg.Chunking.MaxChunksPerDoc, "MAX_CHUNKS_PER_DOC")

	intv(&cfg.Query.TopK, "TOP_K")
	f32(&cfg.Query.ScoreThreshold, "SCORE_THRESHOLD")
	intv(&cfg.Query.MaxContextChars, "MAX_CONTEXT_CHARS")

	intv(&cfg.Health.IntervalSeconds, "HEALTH_INTERVAL_S")
	intv(&cfg.Health.AlertThreshold, "ALERT_THRESHOLD")
	boolv(&cfg.Health.AutoRecovery, "AUTO_RECOVERY")

	intv(&cfg.Streaming.IdleTimeoutMinutes, "IDLE_STREAM_TIMEOUT_MIN")

	str(&cfg.Paths.UploadDir, "UPLOAD_DIR")
	str(&cfg.Paths.ProcessedDir, "PROCESSED_DIR")
	str(&cfg.Paths.CacheDir, "CACHE_DIR")

	intv(&cfg.MaxConcurrentIngests, "MAX_CONCURRENT_INGESTS")
}

// validate clamps values with documented hard invariants, warning whenever a
// substitution is made.
func validate(cfg *Config) {
	if cfg.Chunking.MaxFileSize > hardMaxFileSize {
		stdlog.Printf("config: MAX_FILE_SIZE %d exceeds hard safety cap, clamping to %d", cfg.Chunking.MaxFileSize, hardMaxFileSize)
		cfg.Chunking.MaxFileSize = hardMaxFileSize
	}
	if cfg.Chunking.MaxFileSize <= 0 {
		stdlog.Printf("config: MAX_FILE_SIZE must be positive, defaulting to 50MB")
		cfg.Chunking.MaxFileSize = 50 * 1024 * 1024
	}
	if cfg.Chunking.ChunkOverlap < 0 || cfg.Chunking.ChunkOverlap >= cfg.Chunking.MaxChunkChars {
		stdlog.Printf("config: CHUNK_OVERLAP %d invalid for MAX_CHUNK_CHARS %d, defaulting overlap to 20%%", cfg.Chunking.ChunkOverlap, cfg.Chunking.MaxChunkChars)
		cfg.Chunking.ChunkOverlap = cfg.Chunking.MaxChunkChars / 5
	}
	if cfg.Chunking.MinChunkChars <= 0 {
		stdlog.Printf("config: MinChunkChars %d must be positive, defaulting to %d", cfg.Chunking.MinChunkChars, cfg.Chunking.MaxChunkChars/4)
		cfg.Chunking.MinChunkChars = cfg.Chunking.MaxChunkChars / 4
	}
	if cfg.Embedding.Dimension != cfg.VectorStore.Dimension {
		stdlog.Printf("config: VECTOR_DIM mismatch between embedder (%d) and vector store (%d), using embedder's value", cfg.Embedding.Dimension, cfg.VectorStore.Dimension)
		cfg.VectorStore.Dimension = cfg.Embedding.Dimension
	}
	if cfg.Query.ScoreThreshold < 0 || cfg.Query.ScoreThreshold > 1 {
		stdlog.Printf("config: SCORE_THRESHOLD %v out of [0,1], defaulting to 0.7", cfg.Query.ScoreThreshold)
		cfg.Query.ScoreThreshold = 0.7
	}
}

func str(dst *string, env string) {
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		*dst = v
	}
}

func intv(dst *int, env string) {
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func i64v(dst *int64, env string) {
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func f32(dst *float32, env string) {
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		if n, err := strconv.ParseFloat(v, 32); err == nil {
			*dst = float32(n)
		}
	}
}

func f64v(dst *float64, env string) {
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = n
		}
	}
}

func boolv(dst *bool, env string) {
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func durv(dst *time.Duration, env string) {
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
			return
		}
		if secs, err := strconv.Atoi(v); err == nil {
			*dst = time.Duration(secs) * time.Second
		}
	}
}
