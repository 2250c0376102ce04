// Package config loads the RAG service's configuration from the environment
// (with an optional .env file and YAML overlay), applying defaults and
// validating the knobs that have hard invariants.
package config

import "time"

// ObsConfig configures the OpenTelemetry exporters in internal/observability.
type ObsConfig struct {
	ServiceName    string `yaml:"serviceName"`
	ServiceVersion string `yaml:"serviceVersion"`
	Environment    string `yaml:"environment"`
	OTLP           string `yaml:"otlpEndpoint"`
}

// EmbeddingConfig describes the HTTP-served embedding endpoint.
type EmbeddingConfig struct {
	BaseURL   string `yaml:"baseUrl" env:"EMBEDDING_BASE_URL"`
	Path      string `yaml:"path" env:"EMBEDDING_PATH"`
	Model     string `yaml:"model" env:"EMBEDDING_MODEL"`
	APIHeader string `yaml:"apiHeader" env:"EMBEDDING_API_HEADER"`
	APIKey    string `yaml:"apiKey" env:"EMBEDDING_API_KEY"`
	Timeout   int    `yaml:"timeoutSeconds" env:"EMBEDDING_TIMEOUT_SECONDS"`

	Dimension int `yaml:"dimension" env:"VECTOR_DIM"`

	// CacheTTL, when > 0 and RedisAddr is set, enables the content-addressed
	// Redis cache for the HTTP embedder (§4.1).
	CacheTTL      time.Duration `yaml:"cacheTtl" env:"EMBEDDING_CACHE_TTL"`
	RedisAddr     string        `yaml:"redisAddr" env:"REDIS_ADDR"`
	RedisPassword string        `yaml:"redisPassword" env:"REDIS_PASSWORD"`
	RedisDB       int           `yaml:"redisDb" env:"REDIS_DB"`
}

// LLMProviderConfig describes one of the two C2 provider shapes.
type LLMProviderConfig struct {
	// Name identifies the provider for metrics/logs ("http" or "local").
	Name string `yaml:"name"`

	// HTTP provider fields (OpenAI/Ollama-compatible endpoint).
	BaseURL string `yaml:"baseUrl"`
	APIKey  string `yaml:"apiKey"`
	Model   string `yaml:"model"`

	// ExtraHeaders are sent on every request in addition to auth, for
	// gateways that require a header beyond the bearer token (e.g. an
	// org/tenant ID or a gateway API key).
	ExtraHeaders map[string]string `yaml:"extraHeaders"`

	// ModelPath is loaded but read by neither provider; both reach their
	// model through BaseURL.
	ModelPath string `yaml:"modelPath"`
}

// LLMConfig configures C2's primary/secondary providers and generation defaults.
type LLMConfig struct {
	Primary   LLMProviderConfig `yaml:"primary"`
	Secondary LLMProviderConfig `yaml:"secondary"`

	Temperature float32       `yaml:"temperature" env:"TEMPERATURE"`
	MaxTokens   int           `yaml:"maxTokens" env:"MAX_TOKENS"`
	Timeout     time.Duration `yaml:"timeout" env:"LLM_TIMEOUT"`
}

// VectorStoreConfig configures C4's collection, backend DSN, batching and op-queue.
type VectorStoreConfig struct {
	DSN            string `yaml:"dsn" env:"QDRANT_DSN"`
	CollectionName string `yaml:"collectionName" env:"COLLECTION_NAME"`
	Dimension      int    `yaml:"dimension" env:"VECTOR_DIM"`

	BatchChunkSize int `yaml:"batchChunkSize" env:"BATCH_CHUNK_SIZE"`
	MaxQueueSize   int `yaml:"maxQueueSize" env:"MAX_QUEUE_SIZE"`

	SlowOpMs    int64   `yaml:"slowOpMs" env:"SLOW_OP_MS"`
	MemHighMb   int64   `yaml:"memHighMb" env:"MEM_HIGH_MB"`
	QueueHighN  int     `yaml:"queueHighN" env:"QUEUE_HIGH_N"`
	ErrRateHigh float64 `yaml:"errRateHigh" env:"ERR_RATE_HIGH"`
}

// ChunkingConfig configures C3's chunk assembly knobs.
type ChunkingConfig struct {
	MaxChunkChars   int `yaml:"maxChunkChars" env:"MAX_CHUNK_CHARS"`
	ChunkOverlap    int `yaml:"chunkOverlap" env:"CHUNK_OVERLAP"`
	MinChunkChars   int `yaml:"minChunkChars" env:"MIN_CHUNK_CHARS"`
	MaxFileSize     int64 `yaml:"maxFileSize" env:"MAX_FILE_SIZE"`
	MaxChunksPerDoc int `yaml:"maxChunksPerDoc" env:"MAX_CHUNKS_PER_DOC"`
}

// QueryConfig configures C6's RAGQuery defaults.
type QueryConfig struct {
	TopK            int     `yaml:"topK" env:"TOP_K"`
	ScoreThreshold  float32 `yaml:"scoreThreshold" env:"SCORE_THRESHOLD"`
	MaxContextChars int     `yaml:"maxContextChars" env:"MAX_CONTEXT_CHARS"`
}

// HealthConfig configures C8's periodic health monitor.
type HealthConfig struct {
	IntervalSeconds int  `yaml:"intervalSeconds" env:"HEALTH_INTERVAL_S"`
	AlertThreshold  int  `yaml:"alertThreshold" env:"ALERT_THRESHOLD"`
	AutoRecovery    bool `yaml:"autoRecovery" env:"AUTO_RECOVERY"`
}

// StreamingConfig configures C9's idle sweeper.
type StreamingConfig struct {
	IdleTimeoutMinutes int `yaml:"idleTimeoutMinutes" env:"IDLE_STREAM_TIMEOUT_MIN"`
}

// PathsConfig names the filesystem roots the service creates on startup.
type PathsConfig struct {
	UploadDir    string `yaml:"uploadDir" env:"UPLOAD_DIR"`
	ProcessedDir string `yaml:"processedDir" env:"PROCESSED_DIR"`
	CacheDir     string `yaml:"cacheDir" env:"CACHE_DIR"`
}

// Config is the fully-resolved configuration for one process.
type Config struct {
	LogLevel string `yaml:"logLevel" env:"LOG_LEVEL"`
	LogPath  string `yaml:"logPath" env:"LOG_PATH"`
	Obs      ObsConfig

	Embedding   EmbeddingConfig
	LLM         LLMConfig
	VectorStore VectorStoreConfig
	Chunking    ChunkingConfig
	Query       QueryConfig
	Health      HealthConfig
	Streaming   StreamingConfig
	Paths       PathsConfig

	MaxConcurrentIngests int `yaml:"maxConcurrentIngests" env:"MAX_CONCURRENT_INGESTS"`
}
