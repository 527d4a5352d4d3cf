package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	APIPort  string
	LogLevel string

	RAGTopK            int
	RAGMaxTopK         int
	RAGContextMaxChars int
	RAGNoContextAnswer string

	EmbedProvider       string
	EmbedModel          string
	EmbedTimeout        time.Duration
	EmbedMaxConcurrency int
	EmbedBatchSize      int

	GenProvider       string
	GenModel          string
	GenTemperature    float64
	GenMaxTokens      int
	GenTimeout        time.Duration
	GenMaxConcurrency int

	OllamaURL        string
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	AnthropicAPIKey  string
	AnthropicBaseURL string
	GeminiAPIKey     string
	GeminiEndpoint   string

	RetryMaxAttempts        int
	RetryInitialBackoff     time.Duration
	RetryMaxBackoff         time.Duration
	RetryMultiplier         float64
	RetryJitter             float64
	BreakerEnabled          bool
	BreakerMinRequests      int
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls int

	VectorBackend          string
	QdrantURL              string
	QdrantCollectionPrefix string

	PostgresDSN string

	SnapshotStore string
	SnapshotPath  string
	S3Bucket      string
	S3Prefix      string
	S3Region      string
	S3Endpoint    string
	S3AccessKey   string
	S3SecretKey   string

	NATSURL     string
	NATSSubject string

	APIRateLimitRPS            float64
	APIRateLimitBurst          int
	APIBackpressureMaxInFlight int
	APIBackpressureWait        time.Duration

	MCPEnabled bool

	ChunkSize    int
	ChunkOverlap int
	SourceDir    string

	IndexerMetricsPort string
}

// Load reads settings from the environment. When CONFIG_FILE points at a YAML
// file its keys (same names as the env vars) fill in whatever the
// environment leaves unset.
func Load() (Config, error) {
	overlay, err := readOverlay(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return Config{}, err
	}
	return load(source{overlay: overlay}), nil
}

func load(src source) Config {
	return Config{
		APIPort:  src.mustEnv("API_PORT", "8080"),
		LogLevel: src.mustEnv("LOG_LEVEL", "info"),

		RAGTopK:            src.mustEnvInt("RAG_TOP_K", 5),
		RAGMaxTopK:         src.mustEnvInt("RAG_MAX_TOP_K", 50),
		RAGContextMaxChars: src.mustEnvInt("RAG_CONTEXT_MAX_CHARS", 12000),
		RAGNoContextAnswer: src.mustEnv("RAG_NO_CONTEXT_ANSWER", ""),

		EmbedProvider:       strings.ToLower(src.mustEnv("EMBED_PROVIDER", "ollama")),
		EmbedModel:          src.mustEnv("EMBED_MODEL", "nomic-embed-text"),
		EmbedTimeout:        src.mustEnvDuration("EMBED_TIMEOUT", 15*time.Second),
		EmbedMaxConcurrency: src.mustEnvInt("EMBED_MAX_CONCURRENCY", 8),
		EmbedBatchSize:      src.mustEnvInt("EMBED_BATCH_SIZE", 32),

		GenProvider:       strings.ToLower(src.mustEnv("GEN_PROVIDER", "ollama")),
		GenModel:          src.mustEnv("GEN_MODEL", "llama3.1:8b"),
		GenTemperature:    src.mustEnvFloat("GEN_TEMPERATURE", 0.2),
		GenMaxTokens:      src.mustEnvInt("GEN_MAX_TOKENS", 1000),
		GenTimeout:        src.mustEnvDuration("GEN_TIMEOUT", 60*time.Second),
		GenMaxConcurrency: src.mustEnvInt("GEN_MAX_CONCURRENCY", 4),

		OllamaURL:        src.mustEnv("OLLAMA_URL", "http://localhost:11434"),
		OpenAIAPIKey:     src.mustEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:    src.mustEnv("OPENAI_BASE_URL", ""),
		AnthropicAPIKey:  src.mustEnv("ANTHROPIC_API_KEY", ""),
		AnthropicBaseURL: src.mustEnv("ANTHROPIC_BASE_URL", ""),
		GeminiAPIKey:     src.mustEnv("GEMINI_API_KEY", ""),
		GeminiEndpoint:   src.mustEnv("GEMINI_ENDPOINT", ""),

		RetryMaxAttempts:        src.mustEnvInt("RETRY_MAX_ATTEMPTS", 3),
		RetryInitialBackoff:     src.mustEnvDuration("RETRY_INITIAL_BACKOFF", 500*time.Millisecond),
		RetryMaxBackoff:         src.mustEnvDuration("RETRY_MAX_BACKOFF", 8*time.Second),
		RetryMultiplier:         src.mustEnvFloat("RETRY_MULTIPLIER", 2),
		RetryJitter:             src.mustEnvFloat("RETRY_JITTER", 0.2),
		BreakerEnabled:          src.mustEnvBool("BREAKER_ENABLED", true),
		BreakerMinRequests:      src.mustEnvInt("BREAKER_MIN_REQUESTS", 10),
		BreakerFailureRatio:     src.mustEnvFloat("BREAKER_FAILURE_RATIO", 0.5),
		BreakerOpenTimeout:      src.mustEnvDuration("BREAKER_OPEN_TIMEOUT", 30*time.Second),
		BreakerHalfOpenMaxCalls: src.mustEnvInt("BREAKER_HALF_OPEN_MAX_CALLS", 2),

		VectorBackend:          strings.ToLower(src.mustEnv("VECTOR_BACKEND", "memory")),
		QdrantURL:              src.mustEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollectionPrefix: src.mustEnv("QDRANT_COLLECTION_PREFIX", "scc_cases"),

		PostgresDSN: src.mustEnv("POSTGRES_DSN", ""),

		SnapshotStore: strings.ToLower(src.mustEnv("SNAPSHOT_STORE", "local")),
		SnapshotPath:  src.mustEnv("SNAPSHOT_PATH", "./data/snapshots"),
		S3Bucket:      src.mustEnv("S3_BUCKET", ""),
		S3Prefix:      src.mustEnv("S3_PREFIX", "caselaw"),
		S3Region:      src.mustEnv("S3_REGION", "us-east-1"),
		S3Endpoint:    src.mustEnv("S3_ENDPOINT", ""),
		S3AccessKey:   src.mustEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:   src.mustEnv("S3_SECRET_KEY", ""),

		NATSURL:     src.mustEnv("NATS_URL", ""),
		NATSSubject: src.mustEnv("NATS_SUBJECT", "caselaw.snapshots"),

		APIRateLimitRPS:            src.mustEnvFloat("API_RATE_LIMIT_RPS", 0),
		APIRateLimitBurst:          src.mustEnvInt("API_RATE_LIMIT_BURST", 20),
		APIBackpressureMaxInFlight: src.mustEnvInt("API_BACKPRESSURE_MAX_IN_FLIGHT", 64),
		APIBackpressureWait:        src.mustEnvDuration("API_BACKPRESSURE_WAIT", 250*time.Millisecond),

		MCPEnabled: src.mustEnvBool("MCP_ENABLED", true),

		ChunkSize:    src.mustEnvInt("CHUNK_SIZE", 500),
		ChunkOverlap: src.mustEnvInt("CHUNK_OVERLAP", 50),
		SourceDir:    src.mustEnv("SOURCE_DIR", "./data/cases"),

		IndexerMetricsPort: src.mustEnv("INDEXER_METRICS_PORT", "9090"),
	}
}

func readOverlay(path string) (map[string]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return parseOverlay(raw)
}

func parseOverlay(raw []byte) (map[string]string, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode config file: %w", err)
	}
	out := make(map[string]string, len(doc))
	for key, value := range doc {
		if value == nil {
			continue
		}
		out[strings.ToUpper(strings.TrimSpace(key))] = fmt.Sprint(value)
	}
	return out, nil
}

type source struct {
	overlay map[string]string
}

func (s source) lookup(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return s.overlay[key]
}

func (s source) mustEnv(key, fallback string) string {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	return v
}

func (s source) mustEnvInt(key string, fallback int) int {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func (s source) mustEnvFloat(key string, fallback float64) float64 {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return n
}

func (s source) mustEnvBool(key string, fallback bool) bool {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

// mustEnvDuration accepts Go durations ("15s") or plain seconds ("15").
func (s source) mustEnvDuration(key string, fallback time.Duration) time.Duration {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(n * float64(time.Second))
	}
	return fallback
}
