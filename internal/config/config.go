package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Backend names accepted by the *_BACKEND and LLM_PROVIDER settings.
const (
	EmbeddingBackendHTTP  = "http"
	EmbeddingBackendHugot = "hugot"

	VectorBackendQdrant   = "qdrant"
	VectorBackendPgVector = "pgvector"

	StoreBackendSQLite   = "sqlite"
	StoreBackendPostgres = "postgres"

	LLMProviderOpenAI = "openai"
	LLMProviderGemini = "gemini"
)

// Config holds all configuration for the application.
type Config struct {
	APIPort       string
	CORSOrigins   []string
	LogLevel      slog.Level
	LogFormat     string
	AuthJWTSecret string

	EmbeddingBackend   string
	EmbeddingBaseURL   string
	EmbeddingAPIKey    string
	EmbeddingModelName string
	EmbeddingModelDir  string
	EmbeddingDimension int
	EmbeddingTimeout   time.Duration

	VectorBackend     string
	QdrantURL         string
	QdrantCollection  string
	IndexQueryTimeout time.Duration
	IndexQueryRetries int

	StoreBackend    string
	DBPath          string
	DatabaseURL     string
	RowFetchTimeout time.Duration

	LLMProvider      string
	LLMBaseURL       string
	LLMAPIKey        string
	LLMModelName     string
	GeminiAPIKey     string
	GeminiModel      string
	LLMTimeout       time.Duration
	LLMRatePerMinute int
	LLMTemperature   float32

	RedisURL          string
	EmbeddingCacheTTL time.Duration

	DefaultTopK         int
	MaxTopK             int
	MaxContextLength    int
	RecommendationLimit int
	HistoryLimit        int
	ImagePathPrefix     string

	OTLPEndpoint    string
	OTelServiceName string
}

// Load reads configuration from environment variables and returns a Config struct.
// A .env file in the working directory or one of its parents is loaded first;
// variables already set in the environment take precedence.
// Any invalid or missing required setting is returned as an error so the process fails fast.
func Load() (*Config, error) {
	loadDotEnv()

	cfg := &Config{
		APIPort:       getEnv("API_PORT", "8000"),
		CORSOrigins:   getEnvList("CORS_ORIGINS", []string{"http://localhost:8000"}),
		LogFormat:     strings.ToLower(getEnv("LOG_FORMAT", "text")),
		AuthJWTSecret: getEnv("AUTH_JWT_SECRET", ""),

		EmbeddingBackend:   strings.ToLower(getEnv("EMBEDDING_BACKEND", EmbeddingBackendHTTP)),
		EmbeddingBaseURL:   getEnv("EMBEDDING_BASE_URL", "http://localhost:8081"),
		EmbeddingAPIKey:    getEnv("EMBEDDING_API_KEY", getEnv("LLM_API_KEY", "dummy-key")),
		EmbeddingModelName: getEnv("EMBEDDING_MODEL_NAME", "sentence-transformers/all-MiniLM-L6-v2"),
		EmbeddingModelDir:  getEnv("EMBEDDING_MODEL_DIR", "./models"),

		VectorBackend:    strings.ToLower(getEnv("VECTOR_BACKEND", VectorBackendQdrant)),
		QdrantURL:        getEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection: getEnv("QDRANT_COLLECTION", "document_chunks"),

		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", StoreBackendSQLite)),
		DBPath:       getEnv("DB_PATH", "./data/docqa.db"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),

		LLMProvider:  strings.ToLower(getEnv("LLM_PROVIDER", LLMProviderOpenAI)),
		LLMBaseURL:   getEnv("LLM_BASE_URL", "https://api.openai.com"),
		LLMAPIKey:    getEnv("LLM_API_KEY", "dummy-key"),
		LLMModelName: getEnv("LLM_MODEL", "gpt-3.5-turbo"),
		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),

		RedisURL:        getEnv("REDIS_URL", ""),
		ImagePathPrefix: strings.Trim(getEnv("IMAGE_PATH_PREFIX", "docs"), "/"),

		OTLPEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTelServiceName: getEnv("OTEL_SERVICE_NAME", "docqa"),
	}

	level, err := parseLogLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level

	// The dimension must match the index collection; there is no safe default.
	dimStr := getEnv("EMBEDDING_DIMENSION", getEnv("QDRANT_VECTOR_SIZE", ""))
	if dimStr == "" {
		return nil, fmt.Errorf("EMBEDDING_DIMENSION is required")
	}
	dim, err := strconv.Atoi(dimStr)
	if err != nil {
		return nil, fmt.Errorf("EMBEDDING_DIMENSION must be a valid integer: %w", err)
	}
	if dim <= 0 {
		return nil, fmt.Errorf("EMBEDDING_DIMENSION must be greater than 0")
	}
	cfg.EmbeddingDimension = dim

	ints := []struct {
		key  string
		def  int
		min  int
		dest *int
	}{
		{"INDEX_QUERY_RETRIES", 2, 0, &cfg.IndexQueryRetries},
		{"LLM_RATE_PER_MINUTE", 60, 1, &cfg.LLMRatePerMinute},
		{"DEFAULT_TOP_K", 5, 1, &cfg.DefaultTopK},
		{"MAX_TOP_K", 20, 1, &cfg.MaxTopK},
		{"MAX_CONTEXT_LENGTH", 4000, 1, &cfg.MaxContextLength},
		{"RECOMMENDATION_LIMIT", 5, 1, &cfg.RecommendationLimit},
		{"HISTORY_LIMIT", 10, 0, &cfg.HistoryLimit},
	}
	for _, opt := range ints {
		v, err := getEnvInt(opt.key, opt.def)
		if err != nil {
			return nil, err
		}
		if v < opt.min {
			return nil, fmt.Errorf("%s must be at least %d", opt.key, opt.min)
		}
		*opt.dest = v
	}
	if cfg.DefaultTopK > cfg.MaxTopK {
		return nil, fmt.Errorf("DEFAULT_TOP_K (%d) must not exceed MAX_TOP_K (%d)", cfg.DefaultTopK, cfg.MaxTopK)
	}

	durations := []struct {
		key  string
		def  time.Duration
		dest *time.Duration
	}{
		{"EMBEDDING_TIMEOUT", 10 * time.Second, &cfg.EmbeddingTimeout},
		{"INDEX_QUERY_TIMEOUT", 5 * time.Second, &cfg.IndexQueryTimeout},
		{"ROW_FETCH_TIMEOUT", 3 * time.Second, &cfg.RowFetchTimeout},
		{"LLM_TIMEOUT", 60 * time.Second, &cfg.LLMTimeout},
		{"EMBEDDING_CACHE_TTL", 24 * time.Hour, &cfg.EmbeddingCacheTTL},
	}
	for _, opt := range durations {
		v, err := getEnvDuration(opt.key, opt.def)
		if err != nil {
			return nil, err
		}
		*opt.dest = v
	}

	temp, err := strconv.ParseFloat(getEnv("LLM_TEMPERATURE", "0.3"), 32)
	if err != nil {
		return nil, fmt.Errorf("LLM_TEMPERATURE must be a number: %w", err)
	}
	cfg.LLMTemperature = float32(temp)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.StoreBackend == StoreBackendSQLite {
		dataDir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	return cfg, nil
}

// validate checks backend selections and the credentials they require.
func (c *Config) validate() error {
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}

	switch c.EmbeddingBackend {
	case EmbeddingBackendHTTP:
		if c.EmbeddingBaseURL == "" {
			return fmt.Errorf("EMBEDDING_BASE_URL is required for the http embedding backend")
		}
	case EmbeddingBackendHugot:
	default:
		return fmt.Errorf("unknown EMBEDDING_BACKEND %q", c.EmbeddingBackend)
	}

	switch c.VectorBackend {
	case VectorBackendQdrant:
		if c.QdrantURL == "" {
			return fmt.Errorf("QDRANT_URL is required for the qdrant vector backend")
		}
	case VectorBackendPgVector:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the pgvector vector backend")
		}
	default:
		return fmt.Errorf("unknown VECTOR_BACKEND %q", c.VectorBackend)
	}

	switch c.StoreBackend {
	case StoreBackendSQLite:
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH is required for the sqlite store backend")
		}
	case StoreBackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store backend")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	switch c.LLMProvider {
	case LLMProviderOpenAI:
		if c.LLMBaseURL == "" {
			return fmt.Errorf("LLM_BASE_URL is required for the openai provider")
		}
	case LLMProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required for the gemini provider")
		}
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider)
	}

	if c.ImagePathPrefix == "" {
		return fmt.Errorf("IMAGE_PATH_PREFIX must not be empty")
	}
	return nil
}

// loadDotEnv loads .env from the working directory, then from the first parent that has one.
func loadDotEnv() {
	_ = godotenv.Load()

	wd, err := os.Getwd()
	if err != nil {
		return
	}
	dir := wd
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	return v, nil
}

// getEnvDuration accepts Go durations ("5s") and bare integers as seconds.
func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		if secs <= 0 {
			return 0, fmt.Errorf("%s must be positive", key)
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}

// getEnvList splits a comma-separated variable, dropping blanks.
func getEnvList(key string, defaultValue []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func parseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL is invalid: %w", err)
	}
	return level, nil
}
