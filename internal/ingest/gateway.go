package ingest

import (
	"context"

	"github.com/koopa0/ragd/internal/store"
)

// Gateway is the persistence surface the pipeline needs. *store.Store
// satisfies it through NewGateway; tests substitute an in-memory fake.
type Gateway interface {
	Begin(ctx context.Context) (GatewayTx, error)
	GetDocument(ctx context.Context, id string) (*store.Document, error)
}

// GatewayTx is one open ingestion transaction. Exactly one of Commit or
// Rollback must be called; a second finish errors without reaching the
// database, so the deferred-rollback pattern stays safe as long as the
// deferred call discards the error.
type GatewayTx interface {
	InsertDocument(ctx context.Context, arg store.InsertDocumentParams) error
	DeleteDocument(ctx context.Context, id string) (int64, error)
	InsertChunk(ctx context.Context, arg store.InsertChunkParams) error
	InsertEmbedding(ctx context.Context, arg store.InsertEmbeddingParams) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type storeGateway struct {
	s *store.Store
}

// NewGateway adapts a Store to the pipeline's Gateway interface.
func NewGateway(s *store.Store) Gateway {
	return &storeGateway{s: s}
}

func (g *storeGateway) Begin(ctx context.Context) (GatewayTx, error) {
	tx, err := g.s.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &storeTx{s: g.s, tx: tx}, nil
}

func (g *storeGateway) GetDocument(ctx context.Context, id string) (*store.Document, error) {
	return g.s.GetDocument(ctx, id)
}

type storeTx struct {
	s  *store.Store
	tx *store.Tx
}

func (t *storeTx) InsertDocument(ctx context.Context, arg store.InsertDocumentParams) error {
	return t.s.InsertDocument(ctx, t.tx, arg)
}

func (t *storeTx) DeleteDocument(ctx context.Context, id string) (int64, error) {
	return t.s.DeleteDocument(ctx, t.tx, id)
}

func (t *storeTx) InsertChunk(ctx context.Context, arg store.InsertChunkParams) error {
	return t.s.InsertChunk(ctx, t.tx, arg)
}

func (t *storeTx) InsertEmbedding(ctx context.Context, arg store.InsertEmbeddingParams) error {
	return t.s.InsertEmbedding(ctx, t.tx, arg)
}

func (t *storeTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *storeTx) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}
