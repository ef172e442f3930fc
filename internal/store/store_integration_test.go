package store_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/ragd/internal/provider"
	"github.com/koopa0/ragd/internal/store"
	"github.com/koopa0/ragd/internal/testutil"
)

func embedText(t *testing.T, text string) provider.Embedding {
	t.Helper()
	emb, err := testutil.DeterministicEmbedder{}.Embed(context.Background(), text)
	require.NoError(t, err)
	return emb
}

// ingestDoc writes one document with the given chunk texts in a single
// committed transaction.
func ingestDoc(t *testing.T, s *store.Store, docID string, texts ...string) {
	t.Helper()
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx) //nolint:errcheck

	require.NoError(t, s.InsertDocument(ctx, tx, store.InsertDocumentParams{
		ID:           docID,
		ContentHash:  "hash-" + docID,
		Title:        docID,
		ModelVersion: "test/deterministic",
	}))
	for i, text := range texts {
		chunkID := uuid.New()
		require.NoError(t, s.InsertChunk(ctx, tx, store.InsertChunkParams{
			ID:         chunkID,
			DocumentID: docID,
			Position:   int32(i),
			Content:    text,
		}))
		require.NoError(t, s.InsertEmbedding(ctx, tx, store.InsertEmbeddingParams{
			ChunkID:      chunkID,
			Embedding:    embedText(t, text).Vector,
			ModelVersion: "test/deterministic",
		}))
	}
	require.NoError(t, tx.Commit(ctx))
}

func TestStore_CommitPersists_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	testDB, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	s := store.New(testDB.Pool, nil)
	ingestDoc(t, s, "doc-1", "The sky is blue.", "Water boils at 100C.")

	doc, err := s.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "hash-doc-1", doc.ContentHash)
	assert.False(t, doc.IngestedAt.IsZero())

	chunks, err := s.ListChunks(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.EqualValues(t, 0, chunks[0].Position)
	assert.EqualValues(t, 1, chunks[1].Position)

	assert.Zero(t, s.OpenTransactions())
}

func TestStore_RollbackLeavesNothing_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	testDB, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	s := store.New(testDB.Pool, nil)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, s.InsertDocument(ctx, tx, store.InsertDocumentParams{
		ID: "doc-1", ContentHash: "h",
	}))
	require.NoError(t, tx.Rollback(ctx))

	_, err = s.GetDocument(ctx, "doc-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Zero(t, s.OpenTransactions())
}

func TestStore_GetDocumentNotFound_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	testDB, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	s := store.New(testDB.Pool, nil)
	_, err := s.GetDocument(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_SearchChunksRanking_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	testDB, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	s := store.New(testDB.Pool, nil)
	ingestDoc(t, s, "doc-sky", "The sky is blue.")
	ingestDoc(t, s, "doc-water", "Water boils at 100C.")
	ingestDoc(t, s, "doc-light", "Light travels fast.")

	// Query with the exact embedding of one chunk: it must rank first with
	// similarity near 1.
	query := embedText(t, "Water boils at 100C.")
	results, err := s.SearchChunks(ctx, store.SearchChunksParams{
		QueryEmbedding: query.Vector,
		Limit:          3,
	})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "doc-water", results[0].DocumentID)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-3)
	assert.GreaterOrEqual(t, results[0].Similarity, results[1].Similarity)
	assert.GreaterOrEqual(t, results[1].Similarity, results[2].Similarity)

	// same query twice returns the same order
	again, err := s.SearchChunks(ctx, store.SearchChunksParams{
		QueryEmbedding: query.Vector,
		Limit:          3,
	})
	require.NoError(t, err)
	for i := range results {
		assert.Equal(t, results[i].ID, again[i].ID)
	}
}

func TestStore_SearchChunksEquidistantChunks_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	testDB, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	s := store.New(testDB.Pool, nil)
	// Repeated sentences in one document embed identically, so every ranking
	// key except chunk position ties.
	ingestDoc(t, s, "doc-1",
		"The sky is blue.", "The sky is blue.", "The sky is blue.")

	query := embedText(t, "What color is the sky?")
	params := store.SearchChunksParams{QueryEmbedding: query.Vector, Limit: 3}

	first, err := s.SearchChunks(ctx, params)
	require.NoError(t, err)
	require.Len(t, first, 3)
	for i, sc := range first {
		assert.EqualValues(t, i, sc.Position, "equidistant chunks come back in position order")
	}

	for range 3 {
		again, err := s.SearchChunks(ctx, params)
		require.NoError(t, err)
		require.Len(t, again, 3)
		for i := range first {
			assert.Equal(t, first[i].ID, again[i].ID)
		}
	}
}

func TestStore_SearchChunksDocumentFilter_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	testDB, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	s := store.New(testDB.Pool, nil)
	ingestDoc(t, s, "doc-a", "Alpha content here.")
	ingestDoc(t, s, "doc-b", "Beta content here.")

	results, err := s.SearchChunks(ctx, store.SearchChunksParams{
		QueryEmbedding: embedText(t, "Alpha content here.").Vector,
		Limit:          10,
		DocumentIDs:    []string{"doc-b"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc-b", results[0].DocumentID)
}

func TestStore_DuplicateChunkPositionRejected_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	testDB, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	s := store.New(testDB.Pool, nil)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx) //nolint:errcheck

	require.NoError(t, s.InsertDocument(ctx, tx, store.InsertDocumentParams{
		ID: "doc-1", ContentHash: "h",
	}))
	require.NoError(t, s.InsertChunk(ctx, tx, store.InsertChunkParams{
		ID: uuid.New(), DocumentID: "doc-1", Position: 0, Content: "first",
	}))

	err = s.InsertChunk(ctx, tx, store.InsertChunkParams{
		ID: uuid.New(), DocumentID: "doc-1", Position: 0, Content: "duplicate",
	})
	require.Error(t, err)

	var procErr *store.ProcedureError
	assert.ErrorAs(t, err, &procErr)
}

func TestStore_DeleteDocumentCascades_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	testDB, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	s := store.New(testDB.Pool, nil)
	ingestDoc(t, s, "doc-1", "Chunk one.", "Chunk two.")

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	n, err := s.DeleteDocument(ctx, tx, "doc-1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	require.NoError(t, tx.Commit(ctx))

	chunks, err := s.ListChunks(ctx, "doc-1")
	require.NoError(t, err)
	assert.Empty(t, chunks)

	count, err := s.CountChunks(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestStore_InsertQueryRecord_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	testDB, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	s := store.New(testDB.Pool, nil)
	err := s.InsertQueryRecord(ctx, store.InsertQueryRecordParams{
		ID:       uuid.New(),
		Query:    "What color is the sky?",
		ChunkIDs: []uuid.UUID{uuid.New()},
		Answer:   "Blue.",
	})
	require.NoError(t, err)

	var count int
	err = testDB.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM query_records`).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
