package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/koopa0/ragd/internal/chunk"
	"github.com/koopa0/ragd/internal/log"
	"github.com/koopa0/ragd/internal/provider"
	"github.com/koopa0/ragd/internal/store"
)

// ErrInvalidDocument rejects a submission before any work is done.
var ErrInvalidDocument = errors.New("invalid document")

// ErrJobNotFound is returned by Status for an unknown job id.
var ErrJobNotFound = errors.New("job not found")

// DefaultConcurrency bounds how many chunks embed in parallel per document.
const DefaultConcurrency = 4

// Status is the lifecycle stage of an ingestion job.
type Status string

const (
	StatusReceived   Status = "received"
	StatusChunked    Status = "chunked"
	StatusEmbedding  Status = "embedding"
	StatusPersisting Status = "persisting"
	StatusCommitted  Status = "committed"
	StatusFailed     Status = "failed"
)

// Document is one document submitted for ingestion.
type Document struct {
	ID      string
	Title   string
	Origin  string
	Version string
	Content string
}

// Job tracks one ingestion through its lifecycle. Failed jobs carry the
// error message and keep Stage at the stage that failed; Unchanged marks
// a committed job that was an idempotent no-op because the stored content
// hash already matched.
type Job struct {
	ID          uuid.UUID
	DocumentID  string
	Status      Status
	Stage       Status
	Chunks      int
	Unchanged   bool
	Error       string
	SubmittedAt time.Time
	FinishedAt  time.Time
}

func (j *Job) done() bool {
	return j.Status == StatusCommitted || j.Status == StatusFailed
}

// Pipeline turns documents into chunk and embedding rows, committed in a
// single transaction per document. Concurrent submissions for distinct
// documents run in parallel; submissions for the same document id are
// serialized.
type Pipeline struct {
	gateway     Gateway
	embedder    provider.Embedder
	logger      log.Logger
	concurrency int
	maxLength   int
	overlap     int

	// jobs are kept for the life of the process so finished jobs stay
	// pollable via Status.
	mu   sync.RWMutex
	jobs map[uuid.UUID]*Job

	lockMu   sync.Mutex
	docLocks map[string]*docLock

	wg sync.WaitGroup
}

// docLock serializes ingestion of one document id. Entries are
// reference-counted and evicted once no ingestion holds or waits on them,
// so the map does not grow with the number of distinct documents seen.
type docLock struct {
	mu   sync.Mutex
	refs int
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithConcurrency bounds parallel embedding calls per document.
func WithConcurrency(n int) PipelineOption {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithChunking overrides the chunk size and overlap, in runes.
func WithChunking(maxLength, overlap int) PipelineOption {
	return func(p *Pipeline) {
		p.maxLength = maxLength
		p.overlap = overlap
	}
}

// NewPipeline creates a Pipeline over the given gateway and embedder.
func NewPipeline(gateway Gateway, embedder provider.Embedder, logger log.Logger, opts ...PipelineOption) *Pipeline {
	if logger == nil {
		logger = log.NewNop()
	}
	p := &Pipeline{
		gateway:     gateway,
		embedder:    embedder,
		logger:      logger,
		concurrency: DefaultConcurrency,
		maxLength:   chunk.DefaultMaxLength,
		overlap:     chunk.DefaultOverlap,
		jobs:        make(map[uuid.UUID]*Job),
		docLocks:    make(map[string]*docLock),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run ingests one document synchronously and returns its finished job.
// The returned error is non-nil exactly when the job failed.
func (p *Pipeline) Run(ctx context.Context, doc Document) (Job, error) {
	job, err := p.register(doc)
	if err != nil {
		return Job{}, err
	}
	runErr := p.run(ctx, job.ID, doc)
	final, _ := p.Status(job.ID)
	return final, runErr
}

// Submit starts an asynchronous ingestion and returns the job id for
// polling via Status. Validation errors are reported synchronously.
func (p *Pipeline) Submit(ctx context.Context, doc Document) (uuid.UUID, error) {
	job, err := p.register(doc)
	if err != nil {
		return uuid.Nil, err
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.run(ctx, job.ID, doc); err != nil {
			p.logger.Error("ingestion failed",
				"job_id", job.ID, "document_id", doc.ID, "error", err)
		}
	}()
	return job.ID, nil
}

// Status returns a snapshot of the job with the given id.
func (p *Pipeline) Status(id uuid.UUID) (Job, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	job, ok := p.jobs[id]
	if !ok {
		return Job{}, ErrJobNotFound
	}
	return *job, nil
}

// Wait blocks until all submitted jobs have finished.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

func (p *Pipeline) register(doc Document) (*Job, error) {
	if doc.ID == "" {
		return nil, fmt.Errorf("%w: empty document id", ErrInvalidDocument)
	}

	job := &Job{
		ID:          uuid.New(),
		DocumentID:  doc.ID,
		Status:      StatusReceived,
		Stage:       StatusReceived,
		SubmittedAt: time.Now(),
	}
	p.mu.Lock()
	p.jobs[job.ID] = job
	p.mu.Unlock()
	return job, nil
}

func (p *Pipeline) setStatus(id uuid.UUID, status Status, mutate func(*Job)) {
	p.mu.Lock()
	defer p.mu.Unlock()

	job, ok := p.jobs[id]
	if !ok {
		return
	}
	job.Status = status
	if status != StatusFailed {
		job.Stage = status
	}
	if mutate != nil {
		mutate(job)
	}
	if job.done() {
		job.FinishedAt = time.Now()
	}
}

func (p *Pipeline) fail(id uuid.UUID, err error) error {
	p.setStatus(id, StatusFailed, func(j *Job) { j.Error = err.Error() })
	return err
}

// failAt marks the job failed at a stage it never reached, for errors that
// abort a stage before its own status transition happened.
func (p *Pipeline) failAt(id uuid.UUID, stage Status, err error) error {
	p.setStatus(id, StatusFailed, func(j *Job) {
		j.Stage = stage
		j.Error = err.Error()
	})
	return err
}

// lockDocument serializes ingestion per document id and returns the unlock.
func (p *Pipeline) lockDocument(id string) func() {
	p.lockMu.Lock()
	l, ok := p.docLocks[id]
	if !ok {
		l = &docLock{}
		p.docLocks[id] = l
	}
	l.refs++
	p.lockMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		p.lockMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(p.docLocks, id)
		}
		p.lockMu.Unlock()
	}
}

func (p *Pipeline) run(ctx context.Context, jobID uuid.UUID, doc Document) error {
	unlock := p.lockDocument(doc.ID)
	defer unlock()

	hash := contentHash(doc.Content)

	existing, err := p.gateway.GetDocument(ctx, doc.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return p.fail(jobID, fmt.Errorf("looking up document %s: %w", doc.ID, err))
	}
	if existing != nil && existing.ContentHash == hash {
		p.logger.Info("document unchanged, skipping",
			"document_id", doc.ID, "content_hash", hash)
		p.setStatus(jobID, StatusCommitted, func(j *Job) { j.Unchanged = true })
		return nil
	}

	pieces, err := chunk.Split(doc.Content,
		chunk.WithMaxLength(p.maxLength), chunk.WithOverlap(p.overlap))
	if err != nil {
		return p.failAt(jobID, StatusChunked, fmt.Errorf("%w: %v", ErrInvalidDocument, err))
	}
	p.setStatus(jobID, StatusChunked, func(j *Job) { j.Chunks = len(pieces) })

	p.setStatus(jobID, StatusEmbedding, nil)
	embeddings, err := p.embedAll(ctx, pieces)
	if err != nil {
		return p.fail(jobID, err)
	}

	p.setStatus(jobID, StatusPersisting, nil)
	if err := p.persist(ctx, doc, hash, existing != nil, pieces, embeddings); err != nil {
		return p.fail(jobID, err)
	}

	p.setStatus(jobID, StatusCommitted, nil)
	p.logger.Info("document ingested",
		"document_id", doc.ID, "chunks", len(pieces), "superseded", existing != nil)
	return nil
}

// embedAll embeds every piece with bounded concurrency. Results come back
// indexed by piece position so persistence stays ordered.
func (p *Pipeline) embedAll(ctx context.Context, pieces []chunk.Piece) ([]provider.Embedding, error) {
	embeddings := make([]provider.Embedding, len(pieces))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, piece := range pieces {
		g.Go(func() error {
			emb, err := p.embedder.Embed(gctx, piece.Content)
			if err != nil {
				return fmt.Errorf("embedding chunk %d: %w", piece.Position, err)
			}
			embeddings[i] = emb
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return embeddings, nil
}

// persist writes the document, its chunks and their embeddings in one
// transaction. Supersession deletes the previous version inside the same
// transaction, so readers never observe a partially replaced document.
func (p *Pipeline) persist(ctx context.Context, doc Document, hash string, supersede bool,
	pieces []chunk.Piece, embeddings []provider.Embedding) error {

	tx, err := p.gateway.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // deferred finish, error discarded

	if supersede {
		if _, err := tx.DeleteDocument(ctx, doc.ID); err != nil {
			return fmt.Errorf("superseding document %s: %w", doc.ID, err)
		}
	}

	modelVersion := ""
	if len(embeddings) > 0 {
		modelVersion = embeddings[0].ModelVersion
	}
	if err := tx.InsertDocument(ctx, store.InsertDocumentParams{
		ID:           doc.ID,
		ContentHash:  hash,
		Title:        doc.Title,
		Origin:       doc.Origin,
		Version:      doc.Version,
		ModelVersion: modelVersion,
	}); err != nil {
		return fmt.Errorf("inserting document %s: %w", doc.ID, err)
	}

	for i, piece := range pieces {
		chunkID := uuid.New()
		if err := tx.InsertChunk(ctx, store.InsertChunkParams{
			ID:         chunkID,
			DocumentID: doc.ID,
			Position:   int32(piece.Position), // #nosec G115 -- bounded by chunk count
			Content:    piece.Content,
		}); err != nil {
			return fmt.Errorf("inserting chunk %d: %w", piece.Position, err)
		}
		if err := tx.InsertEmbedding(ctx, store.InsertEmbeddingParams{
			ChunkID:      chunkID,
			Embedding:    embeddings[i].Vector,
			ModelVersion: embeddings[i].ModelVersion,
		}); err != nil {
			return fmt.Errorf("inserting embedding %d: %w", piece.Position, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing ingestion: %w", err)
	}
	return nil
}

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
