package store

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvector "github.com/pgvector/pgvector-go/pgx"

	"github.com/koopa0/ragd/internal/log"
)

// VectorDimension is the embedding dimension of the pgvector schema.
// Must match VECTOR(768) in db/migrations and the embedder's output
// dimensionality.
const VectorDimension = 768

// DefaultAcquireTimeout bounds how long Begin waits for a pooled connection.
const DefaultAcquireTimeout = 5 * time.Second

// Document is a stored document row. Content itself lives in chunks;
// the document row carries identity, hash and provenance.
type Document struct {
	ID           string
	ContentHash  string
	Title        string
	Origin       string
	Version      string
	ModelVersion string
	IngestedAt   time.Time
}

// Chunk is a stored chunk row.
type Chunk struct {
	ID         uuid.UUID
	DocumentID string
	Position   int32
	Content    string
}

// SearchedChunk is one vector-search candidate with its similarity score.
type SearchedChunk struct {
	ID         uuid.UUID
	DocumentID string
	Position   int32
	Content    string
	IngestedAt time.Time
	Similarity float32
}

// Store is the persistence gateway. Safe for concurrent use.
type Store struct {
	pool           *pgxpool.Pool
	logger         log.Logger
	acquireTimeout time.Duration
	open           atomic.Int64
}

// Option configures a Store.
type Option func(*Store)

// WithAcquireTimeout sets how long Begin waits for a pooled connection
// before failing with ErrConnection.
func WithAcquireTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.acquireTimeout = d
		}
	}
}

// New creates a Store on the given pool.
func New(pool *pgxpool.Pool, logger log.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	s := &Store{
		pool:           pool,
		logger:         logger,
		acquireTimeout: DefaultAcquireTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewPool creates a pgx connection pool with pgvector types registered.
func NewPool(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvector.RegisterTypes(ctx, conn)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	return pool, nil
}

// Begin opens a new transaction, holding one pooled connection until the
// returned Tx is finished. Fails with ErrConnection when no connection can
// be acquired within the configured timeout.
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	acquireCtx, cancel := context.WithTimeout(ctx, s.acquireTimeout)
	defer cancel()

	pgxTx, err := s.pool.Begin(acquireCtx)
	if err != nil {
		return nil, mapError("begin", err)
	}

	s.open.Add(1)
	return &Tx{tx: pgxTx, onFinish: func() { s.open.Add(-1) }}, nil
}

// OpenTransactions returns the number of unfinished Tx values. A nonzero
// value after all operations completed indicates a leaked transaction.
func (s *Store) OpenTransactions() int64 {
	return s.open.Load()
}

// InsertDocumentParams are the parameters for InsertDocument.
type InsertDocumentParams struct {
	ID           string
	ContentHash  string
	Title        string
	Origin       string
	Version      string
	ModelVersion string
}

// InsertDocument inserts a document row inside tx.
func (s *Store) InsertDocument(ctx context.Context, tx *Tx, arg InsertDocumentParams) error {
	const procedure = "insert_document"
	pgxTx, err := tx.active(procedure)
	if err != nil {
		return err
	}

	_, err = pgxTx.Exec(ctx,
		`INSERT INTO documents (id, content_hash, title, origin, version, model_version)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		arg.ID, arg.ContentHash, arg.Title, arg.Origin, arg.Version, arg.ModelVersion)
	return mapError(procedure, err)
}

// DeleteDocument deletes a document row inside tx; chunks and embeddings
// cascade. Returns the number of document rows removed (0 or 1).
func (s *Store) DeleteDocument(ctx context.Context, tx *Tx, id string) (int64, error) {
	const procedure = "delete_document"
	pgxTx, err := tx.active(procedure)
	if err != nil {
		return 0, err
	}

	tag, err := pgxTx.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return 0, mapError(procedure, err)
	}
	return tag.RowsAffected(), nil
}

// InsertChunkParams are the parameters for InsertChunk.
type InsertChunkParams struct {
	ID         uuid.UUID
	DocumentID string
	Position   int32
	Content    string
}

// InsertChunk inserts a chunk row inside tx.
func (s *Store) InsertChunk(ctx context.Context, tx *Tx, arg InsertChunkParams) error {
	const procedure = "insert_chunk"
	pgxTx, err := tx.active(procedure)
	if err != nil {
		return err
	}

	_, err = pgxTx.Exec(ctx,
		`INSERT INTO chunks (id, document_id, position, content)
		 VALUES ($1, $2, $3, $4)`,
		arg.ID, arg.DocumentID, arg.Position, arg.Content)
	return mapError(procedure, err)
}

// InsertEmbeddingParams are the parameters for InsertEmbedding.
type InsertEmbeddingParams struct {
	ChunkID      uuid.UUID
	Embedding    []float32
	ModelVersion string
}

// InsertEmbedding inserts an embedding row inside tx. The vector dimension
// is checked before dispatch so a model/schema mismatch fails with a clear
// error instead of a database rejection.
func (s *Store) InsertEmbedding(ctx context.Context, tx *Tx, arg InsertEmbeddingParams) error {
	const procedure = "insert_embedding"
	if len(arg.Embedding) != VectorDimension {
		return fmt.Errorf("%s: embedding dimension %d, schema requires %d",
			procedure, len(arg.Embedding), VectorDimension)
	}
	pgxTx, err := tx.active(procedure)
	if err != nil {
		return err
	}

	vec := pgvector.NewVector(arg.Embedding)
	_, err = pgxTx.Exec(ctx,
		`INSERT INTO embeddings (chunk_id, embedding, model_version)
		 VALUES ($1, $2, $3)`,
		arg.ChunkID, vec, arg.ModelVersion)
	return mapError(procedure, err)
}

// GetDocument returns the document row with the given id, or ErrNotFound.
// Read-only: runs outside any transaction.
func (s *Store) GetDocument(ctx context.Context, id string) (*Document, error) {
	const procedure = "get_document"

	var doc Document
	err := s.pool.QueryRow(ctx,
		`SELECT id, content_hash, title, origin, version, model_version, ingested_at
		 FROM documents WHERE id = $1`, id).
		Scan(&doc.ID, &doc.ContentHash, &doc.Title, &doc.Origin, &doc.Version,
			&doc.ModelVersion, &doc.IngestedAt)
	if err != nil {
		return nil, mapError(procedure, err)
	}
	return &doc, nil
}

// SearchChunksParams are the parameters for SearchChunks.
type SearchChunksParams struct {
	QueryEmbedding []float32
	Limit          int32
	DocumentIDs    []string // optional; empty means no filter
}

// SearchChunks returns up to Limit chunks ordered by cosine similarity to
// the query embedding. Ties are broken by document recency (most recently
// ingested first), then document id, then chunk position, so repeated calls
// over a fixed corpus return the same sequence even when one document holds
// equidistant chunks.
func (s *Store) SearchChunks(ctx context.Context, arg SearchChunksParams) ([]SearchedChunk, error) {
	const procedure = "search_chunks"
	if len(arg.QueryEmbedding) != VectorDimension {
		return nil, fmt.Errorf("%s: query embedding dimension %d, schema requires %d",
			procedure, len(arg.QueryEmbedding), VectorDimension)
	}

	vec := pgvector.NewVector(arg.QueryEmbedding)

	var rows pgx.Rows
	var err error
	if len(arg.DocumentIDs) > 0 {
		rows, err = s.pool.Query(ctx,
			`SELECT c.id, c.document_id, c.position, c.content, d.ingested_at,
			        1 - (e.embedding <=> $1) AS similarity
			 FROM embeddings e
			 JOIN chunks c ON c.id = e.chunk_id
			 JOIN documents d ON d.id = c.document_id
			 WHERE c.document_id = ANY($2)
			 ORDER BY e.embedding <=> $1, d.ingested_at DESC, d.id, c.position
			 LIMIT $3`,
			vec, arg.DocumentIDs, arg.Limit)
	} else {
		rows, err = s.pool.Query(ctx,
			`SELECT c.id, c.document_id, c.position, c.content, d.ingested_at,
			        1 - (e.embedding <=> $1) AS similarity
			 FROM embeddings e
			 JOIN chunks c ON c.id = e.chunk_id
			 JOIN documents d ON d.id = c.document_id
			 ORDER BY e.embedding <=> $1, d.ingested_at DESC, d.id, c.position
			 LIMIT $2`,
			vec, arg.Limit)
	}
	if err != nil {
		return nil, mapError(procedure, err)
	}
	defer rows.Close()

	results := make([]SearchedChunk, 0, arg.Limit)
	for rows.Next() {
		var sc SearchedChunk
		if err := rows.Scan(&sc.ID, &sc.DocumentID, &sc.Position, &sc.Content,
			&sc.IngestedAt, &sc.Similarity); err != nil {
			return nil, mapError(procedure, err)
		}
		results = append(results, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(procedure, err)
	}
	return results, nil
}

// CountChunks returns the total number of stored chunks.
func (s *Store) CountChunks(ctx context.Context) (int64, error) {
	const procedure = "count_chunks"

	var count int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count); err != nil {
		return 0, mapError(procedure, err)
	}
	return count, nil
}

// ListChunks returns all chunks of a document in position order.
func (s *Store) ListChunks(ctx context.Context, documentID string) ([]Chunk, error) {
	const procedure = "list_chunks"

	rows, err := s.pool.Query(ctx,
		`SELECT id, document_id, position, content
		 FROM chunks WHERE document_id = $1 ORDER BY position`, documentID)
	if err != nil {
		return nil, mapError(procedure, err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Position, &c.Content); err != nil {
			return nil, mapError(procedure, err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(procedure, err)
	}
	return chunks, nil
}

// InsertQueryRecordParams are the parameters for InsertQueryRecord.
type InsertQueryRecordParams struct {
	ID       uuid.UUID
	Query    string
	ChunkIDs []uuid.UUID
	Answer   string
}

// InsertQueryRecord writes one query audit row. Write-once, observability
// only; single statement, so no caller transaction is required.
func (s *Store) InsertQueryRecord(ctx context.Context, arg InsertQueryRecordParams) error {
	const procedure = "insert_query_record"

	_, err := s.pool.Exec(ctx,
		`INSERT INTO query_records (id, query, chunk_ids, answer)
		 VALUES ($1, $2, $3, $4)`,
		arg.ID, arg.Query, arg.ChunkIDs, arg.Answer)
	return mapError(procedure, err)
}
