package provider

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// GeminiEmbedder generates embeddings via the Gemini API.
//
// gemini-embedding-001 emits 3072 dimensions by default; OutputDimensionality
// truncates to the schema dimension (Matryoshka Representation Learning).
type GeminiEmbedder struct {
	client    *genai.Client
	model     string
	dimension int32
}

// NewGeminiEmbedder creates a Gemini embedder for the given model.
// The client reads GEMINI_API_KEY from the environment.
func NewGeminiEmbedder(ctx context.Context, model string, dimension int) (*GeminiEmbedder, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid embedding dimension %d", dimension)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}

	return &GeminiEmbedder{
		client:    client,
		model:     model,
		dimension: int32(dimension), // #nosec G115 -- validated positive, schema-sized
	}, nil
}

// Embed generates an embedding for a single text.
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) (Embedding, error) {
	if text == "" {
		return Embedding{}, errors.New("cannot embed empty text")
	}

	dim := e.dimension
	resp, err := e.client.Models.EmbedContent(ctx, e.model,
		genai.Text(text),
		&genai.EmbedContentConfig{OutputDimensionality: &dim})
	if err != nil {
		return Embedding{}, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return Embedding{}, fmt.Errorf("%w: empty embedding response", ErrEmbeddingUnavailable)
	}

	return Embedding{
		Vector:       resp.Embeddings[0].Values,
		ModelVersion: "gemini/" + e.model,
	}, nil
}

// GeminiGenerator generates answers via the Gemini API.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGeminiGenerator creates a Gemini generator for the given model.
func NewGeminiGenerator(ctx context.Context, model string) (*GeminiGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}

	return &GeminiGenerator{client: client, model: model}, nil
}

// Generate produces an answer for the prompt, bounded by maxTokens and the
// context deadline.
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			MaxOutputTokens: int32(maxTokens), // #nosec G115 -- config-validated range
		})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %v", ErrGenerationTimeout, err)
		}
		return "", fmt.Errorf("generation failed: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", errors.New("generation returned no text")
	}
	return text, nil
}
