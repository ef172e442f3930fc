package config

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// 1. Provider validation
	switch c.Provider {
	case ProviderOpenAI:
		if os.Getenv("OPENAI_API_KEY") == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY environment variable is required for provider %q",
				ErrMissingAPIKey, c.Provider)
		}
	case ProviderGemini:
		if os.Getenv("GEMINI_API_KEY") == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required for provider %q",
				ErrMissingAPIKey, c.Provider)
		}
	default:
		return fmt.Errorf("%w: %q, must be one of: openai, gemini", ErrInvalidProvider, c.Provider)
	}

	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidModelName)
	}
	if c.GeneratorModel == "" {
		return fmt.Errorf("%w: generator_model cannot be empty", ErrInvalidModelName)
	}

	// MaxTokens: generation output cap, bounded to keep prompts and bills sane
	if c.MaxTokens < 1 || c.MaxTokens > 32768 {
		return fmt.Errorf("%w: max_tokens must be between 1 and 32,768, got %d", ErrInvalidModelName, c.MaxTokens)
	}

	// 2. Chunking validation
	if c.ChunkMaxLength < 1 {
		return fmt.Errorf("%w: chunk_max_length must be positive, got %d", ErrInvalidChunking, c.ChunkMaxLength)
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("%w: chunk_overlap cannot be negative, got %d", ErrInvalidChunking, c.ChunkOverlap)
	}
	if c.ChunkOverlap >= c.ChunkMaxLength {
		return fmt.Errorf("%w: chunk_overlap (%d) must be smaller than chunk_max_length (%d)",
			ErrInvalidChunking, c.ChunkOverlap, c.ChunkMaxLength)
	}

	// 3. Pipeline validation
	if c.EmbedConcurrency < 1 || c.EmbedConcurrency > 64 {
		return fmt.Errorf("%w: embed_concurrency must be between 1 and 64, got %d",
			ErrInvalidConcurrency, c.EmbedConcurrency)
	}
	if c.EmbedRatePerSec < 1 {
		return fmt.Errorf("%w: embed_rate_per_sec must be positive, got %d",
			ErrInvalidConcurrency, c.EmbedRatePerSec)
	}
	if c.RetryBudget < 1 || c.RetryBudget > 10 {
		return fmt.Errorf("%w: retry_budget must be between 1 and 10, got %d",
			ErrInvalidRetryBudget, c.RetryBudget)
	}

	// 4. Query validation
	if c.TopK < 1 || c.TopK > 100 {
		return fmt.Errorf("%w: top_k must be between 1 and 100, got %d", ErrInvalidTopK, c.TopK)
	}
	if c.ContextBudget < 1 {
		return fmt.Errorf("%w: context_budget must be positive, got %d", ErrInvalidTopK, c.ContextBudget)
	}
	if c.GenerationTimeout <= 0 {
		return fmt.Errorf("%w: generation_timeout must be positive, got %s", ErrInvalidTimeout, c.GenerationTimeout)
	}

	// 5. PostgreSQL validation
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}

	if c.PostgresPassword == "ragd_dev_password" {
		slog.Warn("Using default development password for PostgreSQL",
			"warning", "Change postgres_password in config.yaml for production deployments")
	}

	// Modern SSL modes only - exclude deprecated allow/prefer (MITM vulnerable)
	// Reference: https://www.postgresql.org/docs/current/libpq-ssl.html
	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v",
			ErrInvalidPostgresSSLMode, c.PostgresSSLMode, validSSLModes)
	}

	return nil
}
