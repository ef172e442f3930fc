package provider

import (
	"context"
	"errors"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIEmbedder generates embeddings via the OpenAI API.
type OpenAIEmbedder struct {
	client    *openai.Client
	model     string
	dimension int
}

// NewOpenAIEmbedder creates an OpenAI embedder for the given model.
// dimension is requested via the API's Dimensions parameter (supported by
// the text-embedding-3 family) so the output matches the pgvector schema.
func NewOpenAIEmbedder(model string, dimension int) (*OpenAIEmbedder, error) {
	key := os.Getenv("OPENAI_API_KEY")
	if key == "" {
		return nil, errors.New("OPENAI_API_KEY environment variable not set")
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid embedding dimension %d", dimension)
	}

	return &OpenAIEmbedder{
		client:    openai.NewClient(key),
		model:     model,
		dimension: dimension,
	}, nil
}

// Embed generates an embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) (Embedding, error) {
	if text == "" {
		return Embedding{}, errors.New("cannot embed empty text")
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model:      openai.EmbeddingModel(e.model),
		Input:      []string{text},
		Dimensions: e.dimension,
	})
	if err != nil {
		return Embedding{}, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return Embedding{}, fmt.Errorf("%w: empty embedding response", ErrEmbeddingUnavailable)
	}

	vec := resp.Data[0].Embedding
	if len(vec) != e.dimension {
		return Embedding{}, fmt.Errorf("embedding dimension %d, requested %d", len(vec), e.dimension)
	}

	return Embedding{Vector: vec, ModelVersion: "openai/" + e.model}, nil
}

// OpenAIGenerator generates answers via the OpenAI chat completions API.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
}

// NewOpenAIGenerator creates an OpenAI generator for the given model.
func NewOpenAIGenerator(model string) (*OpenAIGenerator, error) {
	key := os.Getenv("OPENAI_API_KEY")
	if key == "" {
		return nil, errors.New("OPENAI_API_KEY environment variable not set")
	}

	return &OpenAIGenerator{
		client: openai.NewClient(key),
		model:  model,
	}, nil
}

// Generate produces an answer for the prompt, bounded by maxTokens and the
// context deadline.
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens: maxTokens,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %v", ErrGenerationTimeout, err)
		}
		return "", fmt.Errorf("generation failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("generation returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}
