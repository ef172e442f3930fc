// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.ragd/config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Main configuration categories:
//   - Provider: embedding/generation provider selection and models
//   - Storage: PostgreSQL connection (see storage.go)
//   - Pipeline: chunking, embedding concurrency, retry budget
//   - Query: top-K, prompt context budget, generation timeout
//
// Security: Sensitive data (passwords, API keys) are never logged; config directory
// uses 0750 permissions.
// Validation: Range checks in validation.go with clear error messages.
//
// Error Handling:
//   - Uses sentinel errors for Go-idiomatic error checking with errors.Is()
//   - Wrap with context using fmt.Errorf("%w: details", ErrXxx)
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidProvider indicates the provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidModelName indicates a model name is empty or malformed.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidChunking indicates chunk length/overlap values are out of range.
	ErrInvalidChunking = errors.New("invalid chunking configuration")

	// ErrInvalidConcurrency indicates the embedding concurrency is out of range.
	ErrInvalidConcurrency = errors.New("invalid embedding concurrency")

	// ErrInvalidRetryBudget indicates the retry budget is out of range.
	ErrInvalidRetryBudget = errors.New("invalid retry budget")

	// ErrInvalidTopK indicates the default top-K is out of range.
	ErrInvalidTopK = errors.New("invalid top-k")

	// ErrInvalidTimeout indicates a timeout value is out of range.
	ErrInvalidTimeout = errors.New("invalid timeout")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")
)

// Provider identifiers used in Config.Provider.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

const (
	// DefaultEmbedderModel is the default OpenAI embedding model.
	DefaultEmbedderModel = "text-embedding-3-small"

	// DefaultGeneratorModel is the default OpenAI generation model.
	DefaultGeneratorModel = "gpt-4o-mini"

	// DefaultGeminiEmbedderModel is the default Gemini embedding model.
	// gemini-embedding-001 supports truncation to 768 dimensions via
	// OutputDimensionality; our pgvector schema uses 768 (store.VectorDimension).
	DefaultGeminiEmbedderModel = "gemini-embedding-001"

	// DefaultGeminiGeneratorModel is the default Gemini generation model.
	DefaultGeminiGeneratorModel = "gemini-2.5-flash"
)

// Config stores application configuration.
type Config struct {
	// Provider selection ("openai" or "gemini") and model names
	Provider       string `mapstructure:"provider"`
	EmbedderModel  string `mapstructure:"embedder_model"`
	GeneratorModel string `mapstructure:"generator_model"`
	MaxTokens      int    `mapstructure:"max_tokens"`

	// Storage configuration (see storage.go for DSN builders)
	PostgresHost     string `mapstructure:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password"` // SENSITIVE: never logged
	PostgresDBName   string `mapstructure:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode"`

	// Ingestion pipeline configuration
	ChunkMaxLength   int `mapstructure:"chunk_max_length"`  // max chunk size in runes
	ChunkOverlap     int `mapstructure:"chunk_overlap"`     // overlap between chunks in runes
	EmbedConcurrency int `mapstructure:"embed_concurrency"` // concurrent embedding calls per document
	EmbedRatePerSec  int `mapstructure:"embed_rate_per_sec"`
	RetryBudget      int `mapstructure:"retry_budget"` // attempts for transient provider errors

	// Query configuration
	TopK              int           `mapstructure:"top_k"`
	ContextBudget     int           `mapstructure:"context_budget"` // prompt context budget in runes
	GenerationTimeout time.Duration `mapstructure:"generation_timeout"`
	QueryAudit        bool          `mapstructure:"query_audit"` // write query audit records

	// HTTP server address for serve mode
	ServeAddr string `mapstructure:"serve_addr"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	// Configuration directory: ~/.ragd/
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".ragd")

	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".") // Also support current directory

	setDefaults(v)
	bindEnvVariables(v)

	// Read configuration file (if exists)
	if err := v.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// Parse DATABASE_URL if set (highest priority for PostgreSQL config)
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	// Validate immediately (fail-fast)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	// Provider defaults
	v.SetDefault("provider", ProviderOpenAI)
	v.SetDefault("embedder_model", DefaultEmbedderModel)
	v.SetDefault("generator_model", DefaultGeneratorModel)
	v.SetDefault("max_tokens", 1024)

	// PostgreSQL defaults (matching docker-compose.yml)
	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "ragd")
	v.SetDefault("postgres_password", "ragd_dev_password")
	v.SetDefault("postgres_db_name", "ragd")
	v.SetDefault("postgres_ssl_mode", "disable")

	// Pipeline defaults
	v.SetDefault("chunk_max_length", 1000)
	v.SetDefault("chunk_overlap", 200)
	v.SetDefault("embed_concurrency", 4)
	v.SetDefault("embed_rate_per_sec", 10)
	v.SetDefault("retry_budget", 3)

	// Query defaults
	v.SetDefault("top_k", 5)
	v.SetDefault("context_budget", 6000)
	v.SetDefault("generation_timeout", 30*time.Second)
	v.SetDefault("query_audit", true)

	// Serve defaults
	v.SetDefault("serve_addr", "127.0.0.1:3500")
}

// bindEnvVariables binds environment variable overrides explicitly.
//
// NOTE: OPENAI_API_KEY and GEMINI_API_KEY are read directly by the provider
// clients, not via Viper. Validation checks their presence based on the
// selected provider in cfg.Validate().
func bindEnvVariables(v *viper.Viper) {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail).
	// If this panics, it's a BUG in our code, not a runtime error.
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "RAGD_PROVIDER")
	mustBind("embedder_model", "RAGD_EMBEDDER_MODEL")
	mustBind("generator_model", "RAGD_GENERATOR_MODEL")
	mustBind("serve_addr", "RAGD_SERVE_ADDR")
	mustBind("embed_concurrency", "RAGD_EMBED_CONCURRENCY")
	mustBind("postgres_host", "RAGD_POSTGRES_HOST")
	mustBind("postgres_port", "RAGD_POSTGRES_PORT")
	mustBind("postgres_user", "RAGD_POSTGRES_USER")
	mustBind("postgres_password", "RAGD_POSTGRES_PASSWORD")
	mustBind("postgres_db_name", "RAGD_POSTGRES_DB_NAME")
	mustBind("postgres_ssl_mode", "RAGD_POSTGRES_SSL_MODE")
}
