// Package retrieve ranks stored chunks against a query embedding.
package retrieve

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/koopa0/ragd/internal/log"
	"github.com/koopa0/ragd/internal/store"
)

// ErrInvalidTopK rejects a non-positive result limit.
var ErrInvalidTopK = errors.New("top-k must be positive")

// DefaultTopK is the number of chunks returned when the caller does not
// choose one.
const DefaultTopK = 5

// Searcher is the vector-search surface the engine needs. *store.Store
// satisfies it.
type Searcher interface {
	SearchChunks(ctx context.Context, arg store.SearchChunksParams) ([]store.SearchedChunk, error)
}

// ScoredChunk is one retrieved chunk with its cosine similarity in [0, 1]
// (1 means identical direction).
type ScoredChunk struct {
	ChunkID    uuid.UUID
	DocumentID string
	Position   int32
	Content    string
	Similarity float32
}

// Result is a ranked retrieval result, best match first.
type Result struct {
	Chunks []ScoredChunk
}

// Engine runs similarity search over the chunk corpus.
type Engine struct {
	searcher Searcher
	logger   log.Logger
}

// New creates an Engine over the given searcher.
func New(searcher Searcher, logger log.Logger) *Engine {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Engine{searcher: searcher, logger: logger}
}

type query struct {
	topK        int
	documentIDs []string
}

// Option configures one retrieval.
type Option func(*query)

// WithTopK sets how many chunks to return.
func WithTopK(n int) Option {
	return func(q *query) { q.topK = n }
}

// WithDocumentFilter restricts retrieval to the given document ids.
func WithDocumentFilter(ids ...string) Option {
	return func(q *query) { q.documentIDs = ids }
}

// Retrieve returns the chunks most similar to the query embedding, ranked
// by descending similarity. An empty corpus yields an empty result, not an
// error. Ranking is deterministic: equal similarity breaks by document
// recency, then document id.
func (e *Engine) Retrieve(ctx context.Context, queryEmbedding []float32, opts ...Option) (Result, error) {
	q := query{topK: DefaultTopK}
	for _, opt := range opts {
		opt(&q)
	}
	if q.topK <= 0 {
		return Result{}, fmt.Errorf("%w: got %d", ErrInvalidTopK, q.topK)
	}

	chunks, err := e.searcher.SearchChunks(ctx, store.SearchChunksParams{
		QueryEmbedding: queryEmbedding,
		Limit:          int32(q.topK), // #nosec G115 -- validated positive, small
		DocumentIDs:    q.documentIDs,
	})
	if err != nil {
		return Result{}, fmt.Errorf("searching chunks: %w", err)
	}

	scored := make([]ScoredChunk, len(chunks))
	for i, c := range chunks {
		scored[i] = ScoredChunk{
			ChunkID:    c.ID,
			DocumentID: c.DocumentID,
			Position:   c.Position,
			Content:    c.Content,
			Similarity: c.Similarity,
		}
	}

	e.logger.Debug("retrieval complete", "top_k", q.topK, "returned", len(scored))
	return Result{Chunks: scored}, nil
}
