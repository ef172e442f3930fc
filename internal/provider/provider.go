// Package provider defines the narrow capability interfaces for the external
// embedding and generation services, and their authoritative implementations.
//
// Each external dependency is one small interface with one production
// implementation per backend (OpenAI, Gemini) and one test double in
// internal/testutil. Cross-cutting behavior — retry budgets for transient
// failures and rate limiting toward the embedding backend — is layered on
// with wrappers so the implementations stay plain API adapters.
package provider

import (
	"context"
	"errors"
)

var (
	// ErrEmbeddingUnavailable indicates the embedding provider is down or
	// rejecting requests. Ingestion aborts and rolls back; queries fail fast.
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")

	// ErrGenerationTimeout indicates the generation provider did not answer
	// within the deadline. Query handling degrades to retrieved sources.
	ErrGenerationTimeout = errors.New("generation provider timeout")
)

// Embedding is one fixed-dimension vector with the model version that
// produced it, so stale vectors can be detected if the model changes.
type Embedding struct {
	Vector       []float32
	ModelVersion string
}

// Embedder maps text to a fixed-length numeric vector.
type Embedder interface {
	Embed(ctx context.Context, text string) (Embedding, error)
}

// Generator maps a prompt to a natural-language answer.
type Generator interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}
