// Package answer orchestrates a full question round: embed the query,
// retrieve supporting chunks, build a grounded prompt and generate the
// answer.
package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/koopa0/ragd/internal/log"
	"github.com/koopa0/ragd/internal/provider"
	"github.com/koopa0/ragd/internal/retrieve"
	"github.com/koopa0/ragd/internal/store"
)

// ErrEmptyQuery rejects a blank question before any provider call.
var ErrEmptyQuery = errors.New("empty query")

const (
	// DefaultContextBudget caps the total runes of chunk text in a prompt.
	DefaultContextBudget = 6000
	// DefaultGenerationTimeout bounds one generation call.
	DefaultGenerationTimeout = 30 * time.Second
	// DefaultMaxTokens caps generated answer length.
	DefaultMaxTokens = 1024
)

// Retriever is the ranked-search surface the orchestrator needs.
// *retrieve.Engine satisfies it.
type Retriever interface {
	Retrieve(ctx context.Context, queryEmbedding []float32, opts ...retrieve.Option) (retrieve.Result, error)
}

// Recorder persists one query audit row. *store.Store satisfies it.
type Recorder interface {
	InsertQueryRecord(ctx context.Context, arg store.InsertQueryRecordParams) error
}

// Source is one chunk the answer was grounded on.
type Source struct {
	ChunkID    uuid.UUID
	DocumentID string
	Position   int32
	Content    string
	Similarity float32
}

// Response is the outcome of one question. Partial marks a response whose
// generation step failed after retrieval succeeded: Sources are still
// valid, Answer is empty.
type Response struct {
	Answer  string
	Sources []Source
	Partial bool
}

// Orchestrator wires embedder, retriever and generator into the question
// path. Safe for concurrent use.
type Orchestrator struct {
	embedder  provider.Embedder
	retriever Retriever
	generator provider.Generator
	recorder  Recorder
	logger    log.Logger

	topK              int
	contextBudget     int
	generationTimeout time.Duration
	maxTokens         int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTopK sets how many chunks are retrieved per question.
func WithTopK(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.topK = n
		}
	}
}

// WithContextBudget caps the prompt's chunk text, in runes. Chunks beyond
// the budget are dropped lowest-similarity first.
func WithContextBudget(runes int) Option {
	return func(o *Orchestrator) {
		if runes > 0 {
			o.contextBudget = runes
		}
	}
}

// WithGenerationTimeout bounds the generation call.
func WithGenerationTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.generationTimeout = d
		}
	}
}

// WithMaxTokens caps the generated answer length.
func WithMaxTokens(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxTokens = n
		}
	}
}

// WithRecorder enables best-effort query auditing.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// New creates an Orchestrator.
func New(embedder provider.Embedder, retriever Retriever, generator provider.Generator,
	logger log.Logger, opts ...Option) *Orchestrator {

	if logger == nil {
		logger = log.NewNop()
	}
	o := &Orchestrator{
		embedder:          embedder,
		retriever:         retriever,
		generator:         generator,
		logger:            logger,
		topK:              retrieve.DefaultTopK,
		contextBudget:     DefaultContextBudget,
		generationTimeout: DefaultGenerationTimeout,
		maxTokens:         DefaultMaxTokens,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Answer runs the full question path. Per-call options override the
// orchestrator's defaults for this question only. Embedding failures abort
// before any retrieval. Generation failures after a successful retrieval
// degrade to a partial response carrying the sources, not an error.
func (o *Orchestrator) Answer(ctx context.Context, query string, opts ...Option) (Response, error) {
	if strings.TrimSpace(query) == "" {
		return Response{}, ErrEmptyQuery
	}

	// shallow copy; per-call options must not leak into other questions
	q := *o
	for _, opt := range opts {
		opt(&q)
	}

	queryEmb, err := q.embedder.Embed(ctx, query)
	if err != nil {
		return Response{}, fmt.Errorf("embedding query: %w", err)
	}

	result, err := q.retriever.Retrieve(ctx, queryEmb.Vector, retrieve.WithTopK(q.topK))
	if err != nil {
		return Response{}, fmt.Errorf("retrieving context: %w", err)
	}

	sources := q.selectSources(result.Chunks)
	prompt := buildPrompt(query, sources)

	genCtx, cancel := context.WithTimeout(ctx, q.generationTimeout)
	defer cancel()

	answer, err := q.generator.Generate(genCtx, prompt, q.maxTokens)
	if err != nil {
		q.logger.Warn("generation failed, returning sources only",
			"error", err, "sources", len(sources))
		resp := Response{Sources: sources, Partial: true}
		q.record(ctx, query, resp)
		return resp, nil
	}

	resp := Response{Answer: answer, Sources: sources}
	q.record(ctx, query, resp)
	return resp, nil
}

// selectSources keeps the highest-ranked chunks whose combined length fits
// the context budget. Chunks arrive best first, so dropping the tail drops
// the weakest matches.
func (o *Orchestrator) selectSources(chunks []retrieve.ScoredChunk) []Source {
	var sources []Source
	used := 0
	for _, c := range chunks {
		length := len([]rune(c.Content))
		if used+length > o.contextBudget && len(sources) > 0 {
			break
		}
		sources = append(sources, Source{
			ChunkID:    c.ChunkID,
			DocumentID: c.DocumentID,
			Position:   c.Position,
			Content:    c.Content,
			Similarity: c.Similarity,
		})
		used += length
	}
	return sources
}

func buildPrompt(query string, sources []Source) string {
	var b strings.Builder
	b.WriteString("Answer the question using only the context below. ")
	b.WriteString("If the context does not contain the answer, say so.\n\n")

	if len(sources) == 0 {
		b.WriteString("Context: (no relevant documents found)\n")
	} else {
		b.WriteString("Context:\n")
		for i, s := range sources {
			fmt.Fprintf(&b, "[%d] (%s) %s\n", i+1, s.DocumentID, s.Content)
		}
	}

	b.WriteString("\nQuestion: ")
	b.WriteString(query)
	b.WriteString("\nAnswer:")
	return b.String()
}

// record writes the audit row. Auditing never fails a query.
func (o *Orchestrator) record(ctx context.Context, query string, resp Response) {
	if o.recorder == nil {
		return
	}

	chunkIDs := make([]uuid.UUID, len(resp.Sources))
	for i, s := range resp.Sources {
		chunkIDs[i] = s.ChunkID
	}
	err := o.recorder.InsertQueryRecord(ctx, store.InsertQueryRecordParams{
		ID:       uuid.New(),
		Query:    query,
		ChunkIDs: chunkIDs,
		Answer:   resp.Answer,
	})
	if err != nil {
		o.logger.Warn("query audit failed", "error", err)
	}
}
