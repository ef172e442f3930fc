package config

import (
	"errors"
	"testing"
	"time"
)

// validConfig returns a Config that passes Validate with OPENAI_API_KEY set.
func validConfig() *Config {
	return &Config{
		Provider:          ProviderOpenAI,
		EmbedderModel:     DefaultEmbedderModel,
		GeneratorModel:    DefaultGeneratorModel,
		MaxTokens:         1024,
		PostgresHost:      "localhost",
		PostgresPort:      5432,
		PostgresUser:      "ragd",
		PostgresPassword:  "secret_password",
		PostgresDBName:    "ragd",
		PostgresSSLMode:   "disable",
		ChunkMaxLength:    1000,
		ChunkOverlap:      200,
		EmbedConcurrency:  4,
		EmbedRatePerSec:   10,
		RetryBudget:       3,
		TopK:              5,
		ContextBudget:     6000,
		GenerationTimeout: 30 * time.Second,
	}
}

func TestValidate_OK(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")

	if err := validConfig().Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestValidate_NilConfig(t *testing.T) {
	var cfg *Config
	if err := cfg.Validate(); !errors.Is(err, ErrConfigNil) {
		t.Errorf("Validate() = %v, want ErrConfigNil", err)
	}
}

func TestValidate_MissingAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	err := validConfig().Validate()
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("Validate() = %v, want ErrMissingAPIKey", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.Provider = "anthropic" },
			wantErr: ErrInvalidProvider,
		},
		{
			name:    "empty embedder model",
			mutate:  func(c *Config) { c.EmbedderModel = "" },
			wantErr: ErrInvalidModelName,
		},
		{
			name:    "empty generator model",
			mutate:  func(c *Config) { c.GeneratorModel = "" },
			wantErr: ErrInvalidModelName,
		},
		{
			name:    "zero chunk length",
			mutate:  func(c *Config) { c.ChunkMaxLength = 0 },
			wantErr: ErrInvalidChunking,
		},
		{
			name:    "negative overlap",
			mutate:  func(c *Config) { c.ChunkOverlap = -1 },
			wantErr: ErrInvalidChunking,
		},
		{
			name:    "overlap not smaller than max length",
			mutate:  func(c *Config) { c.ChunkOverlap = 1000 },
			wantErr: ErrInvalidChunking,
		},
		{
			name:    "zero concurrency",
			mutate:  func(c *Config) { c.EmbedConcurrency = 0 },
			wantErr: ErrInvalidConcurrency,
		},
		{
			name:    "excessive retry budget",
			mutate:  func(c *Config) { c.RetryBudget = 11 },
			wantErr: ErrInvalidRetryBudget,
		},
		{
			name:    "zero top-k",
			mutate:  func(c *Config) { c.TopK = 0 },
			wantErr: ErrInvalidTopK,
		},
		{
			name:    "zero generation timeout",
			mutate:  func(c *Config) { c.GenerationTimeout = 0 },
			wantErr: ErrInvalidTimeout,
		},
		{
			name:    "empty postgres host",
			mutate:  func(c *Config) { c.PostgresHost = "" },
			wantErr: ErrInvalidPostgresHost,
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.PostgresPort = 70000 },
			wantErr: ErrInvalidPostgresPort,
		},
		{
			name:    "empty db name",
			mutate:  func(c *Config) { c.PostgresDBName = "" },
			wantErr: ErrInvalidPostgresDBName,
		},
		{
			name:    "deprecated ssl mode",
			mutate:  func(c *Config) { c.PostgresSSLMode = "prefer" },
			wantErr: ErrInvalidPostgresSSLMode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("OPENAI_API_KEY", "test-key")

			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_GeminiProvider(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")

	cfg := validConfig()
	cfg.Provider = ProviderGemini
	cfg.EmbedderModel = DefaultGeminiEmbedderModel
	cfg.GeneratorModel = DefaultGeminiGeneratorModel

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}
