// Package config loads the RAG core's configuration from environment
// variables (with optional .env support via github.com/joho/godotenv),
// mirroring the teacher's layered approach: a Config struct of typed
// sub-structs, defaults, then env overrides, then validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config aggregates every SPEC_FULL.md S6-enumerated setting.
type Config struct {
	VectorStore VectorStoreConfig
	Embedding   EmbeddingConfig
	LLM         LLMConfig
	CoT         CoTSettings
	Logging     LoggingConfig
}

// VectorStoreConfig selects and configures the C1 backend driver.
type VectorStoreConfig struct {
	Host           string // VECTOR_DB_HOST
	Port           int    // VECTOR_DB_PORT
	Kind           string // VECTOR_DB_KIND: "qdrant" | "memory"
	APIKey         string
	UseTLS         bool
	EmbeddingDim   int // EMBEDDING_DIM
	BatchSize      int
	PoolSize       int
	TimeoutSeconds int
}

// EmbeddingConfig configures C2.
type EmbeddingConfig struct {
	Provider      string
	APIKey        string
	BaseURL       string
	Model         string
	BatchSize     int
	RetryAttempts int
	CacheSize     int
}

// LLMConfig configures C3/C6: which provider is the default and the
// per-provider concurrency limit. ConcurrencyLimit is loaded from
// CONCURRENCY_LIMIT and validated; no LLM driver bounds its in-flight
// calls by it.
type LLMConfig struct {
	DefaultProvider  string // LLM_DEFAULT_PROVIDER
	ConcurrencyLimit int    // CONCURRENCY_LIMIT
	OpenAI           ProviderSettings
	Anthropic        ProviderSettings
	WatsonX          ProviderSettings
}

// ProviderSettings holds one LLM provider's connection details.
type ProviderSettings struct {
	Enabled   bool
	APIKey    string
	BaseURL   string
	Model     string
	ProjectID string // WatsonX-specific
}

// CoTSettings mirrors types.CoTConfig as environment-driven defaults.
type CoTSettings struct {
	MaxReasoningDepth int     // COT_MAX_REASONING_DEPTH
	QualityThreshold  float64 // COT_QUALITY_THRESHOLD
	MaxRetries        int     // COT_MAX_RETRIES
}

// LoggingConfig configures the ambient logger.
type LoggingConfig struct {
	Format string // LOG_FORMAT: json | text
	Level  string
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() *Config {
	return &Config{
		VectorStore: VectorStoreConfig{
			Host:           "localhost",
			Port:           6334,
			Kind:           "qdrant",
			EmbeddingDim:   1536,
			BatchSize:      100,
			PoolSize:       10,
			TimeoutSeconds: 30,
		},
		Embedding: EmbeddingConfig{
			Provider:      "openai",
			BaseURL:       "https://api.openai.com/v1",
			Model:         "text-embedding-ada-002",
			BatchSize:     100,
			RetryAttempts: 3,
			CacheSize:     10000,
		},
		LLM: LLMConfig{
			DefaultProvider:  "openai",
			ConcurrencyLimit: 10,
			OpenAI:           ProviderSettings{BaseURL: "https://api.openai.com/v1", Model: "gpt-4o-mini"},
			Anthropic:        ProviderSettings{BaseURL: "https://api.anthropic.com", Model: "claude-3-5-sonnet-latest"},
			WatsonX:          ProviderSettings{BaseURL: "https://us-south.ml.cloud.ibm.com", Model: "ibm/granite-13b-instruct-v2"},
		},
		CoT: CoTSettings{
			MaxReasoningDepth: 3,
			QualityThreshold:  0.6,
			MaxRetries:        3,
		},
		Logging: LoggingConfig{
			Format: "json",
			Level:  "info",
		},
	}
}

// Load builds a Config from optional .env contents plus the process
// environment, then validates it.
func Load(loadDotEnv func() error) (*Config, error) {
	if loadDotEnv != nil {
		if err := loadDotEnv(); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: loading .env: %w", err)
		}
	}

	cfg := DefaultConfig()
	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.VectorStore.Host = stringEnv("VECTOR_DB_HOST", cfg.VectorStore.Host)
	cfg.VectorStore.Port = intEnv("VECTOR_DB_PORT", cfg.VectorStore.Port)
	cfg.VectorStore.Kind = stringEnv("VECTOR_DB_KIND", cfg.VectorStore.Kind)
	cfg.VectorStore.APIKey = stringEnv("VECTOR_DB_API_KEY", cfg.VectorStore.APIKey)
	cfg.VectorStore.UseTLS = boolEnv("VECTOR_DB_USE_TLS", cfg.VectorStore.UseTLS)
	cfg.VectorStore.EmbeddingDim = intEnv("EMBEDDING_DIM", cfg.VectorStore.EmbeddingDim)
	cfg.VectorStore.BatchSize = intEnv("VECTOR_DB_BATCH_SIZE", cfg.VectorStore.BatchSize)
	cfg.VectorStore.PoolSize = intEnv("VECTOR_DB_POOL_SIZE", cfg.VectorStore.PoolSize)
	cfg.VectorStore.TimeoutSeconds = intEnv("VECTOR_DB_TIMEOUT_SECONDS", cfg.VectorStore.TimeoutSeconds)

	cfg.Embedding.Provider = stringEnv("EMBEDDING_PROVIDER", cfg.Embedding.Provider)
	cfg.Embedding.APIKey = stringEnv("EMBEDDING_API_KEY", cfg.Embedding.APIKey)
	cfg.Embedding.BaseURL = stringEnv("EMBEDDING_BASE_URL", cfg.Embedding.BaseURL)
	cfg.Embedding.Model = stringEnv("EMBEDDING_MODEL", cfg.Embedding.Model)
	cfg.Embedding.BatchSize = intEnv("EMBEDDING_BATCH_SIZE", cfg.Embedding.BatchSize)
	cfg.Embedding.RetryAttempts = intEnv("EMBEDDING_RETRY_ATTEMPTS", cfg.Embedding.RetryAttempts)
	cfg.Embedding.CacheSize = intEnv("EMBEDDING_CACHE_SIZE", cfg.Embedding.CacheSize)

	cfg.LLM.DefaultProvider = stringEnv("LLM_DEFAULT_PROVIDER", cfg.LLM.DefaultProvider)
	cfg.LLM.ConcurrencyLimit = intEnv("CONCURRENCY_LIMIT", cfg.LLM.ConcurrencyLimit)

	cfg.LLM.OpenAI.APIKey = stringEnv("OPENAI_API_KEY", cfg.LLM.OpenAI.APIKey)
	cfg.LLM.OpenAI.BaseURL = stringEnv("OPENAI_BASE_URL", cfg.LLM.OpenAI.BaseURL)
	cfg.LLM.OpenAI.Model = stringEnv("OPENAI_MODEL", cfg.LLM.OpenAI.Model)
	cfg.LLM.OpenAI.Enabled = cfg.LLM.OpenAI.APIKey != ""

	cfg.LLM.Anthropic.APIKey = stringEnv("ANTHROPIC_API_KEY", cfg.LLM.Anthropic.APIKey)
	cfg.LLM.Anthropic.BaseURL = stringEnv("ANTHROPIC_BASE_URL", cfg.LLM.Anthropic.BaseURL)
	cfg.LLM.Anthropic.Model = stringEnv("ANTHROPIC_MODEL", cfg.LLM.Anthropic.Model)
	cfg.LLM.Anthropic.Enabled = cfg.LLM.Anthropic.APIKey != ""

	cfg.LLM.WatsonX.APIKey = stringEnv("WATSONX_API_KEY", cfg.LLM.WatsonX.APIKey)
	cfg.LLM.WatsonX.BaseURL = stringEnv("WATSONX_BASE_URL", cfg.LLM.WatsonX.BaseURL)
	cfg.LLM.WatsonX.Model = stringEnv("WATSONX_MODEL", cfg.LLM.WatsonX.Model)
	cfg.LLM.WatsonX.ProjectID = stringEnv("WATSONX_PROJECT_ID", cfg.LLM.WatsonX.ProjectID)
	cfg.LLM.WatsonX.Enabled = cfg.LLM.WatsonX.APIKey != ""

	cfg.CoT.MaxReasoningDepth = intEnv("COT_MAX_REASONING_DEPTH", cfg.CoT.MaxReasoningDepth)
	cfg.CoT.QualityThreshold = floatEnv("COT_QUALITY_THRESHOLD", cfg.CoT.QualityThreshold)
	cfg.CoT.MaxRetries = intEnv("COT_MAX_RETRIES", cfg.CoT.MaxRetries)

	cfg.Logging.Format = stringEnv("LOG_FORMAT", cfg.Logging.Format)
	cfg.Logging.Level = stringEnv("LOG_LEVEL", cfg.Logging.Level)
}

// Validate rejects configuration that would otherwise surface as a
// ConfigurationError deep inside a component -- fail fast, at startup.
func (c *Config) Validate() error {
	if c.VectorStore.Kind != "qdrant" && c.VectorStore.Kind != "memory" {
		return fmt.Errorf("config: unknown VECTOR_DB_KIND %q", c.VectorStore.Kind)
	}
	if c.VectorStore.EmbeddingDim <= 0 {
		return fmt.Errorf("config: EMBEDDING_DIM must be positive, got %d", c.VectorStore.EmbeddingDim)
	}
	if c.LLM.ConcurrencyLimit <= 0 {
		return fmt.Errorf("config: CONCURRENCY_LIMIT must be positive, got %d", c.LLM.ConcurrencyLimit)
	}
	if c.CoT.QualityThreshold < 0 || c.CoT.QualityThreshold > 1 {
		return fmt.Errorf("config: COT_QUALITY_THRESHOLD must be in [0,1], got %f", c.CoT.QualityThreshold)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("config: LOG_FORMAT must be json or text, got %q", c.Logging.Format)
	}
	return nil
}

func stringEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func intEnv(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func floatEnv(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func boolEnv(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		return strings.EqualFold(v, "true") || v == "1"
	}
	return defaultValue
}
