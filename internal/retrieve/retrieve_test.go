package retrieve

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/ragd/internal/store"
)

type fakeSearcher struct {
	lastParams store.SearchChunksParams
	chunks     []store.SearchedChunk
	err        error
}

func (f *fakeSearcher) SearchChunks(_ context.Context, arg store.SearchChunksParams) ([]store.SearchedChunk, error) {
	f.lastParams = arg
	if f.err != nil {
		return nil, f.err
	}
	if int32(len(f.chunks)) > arg.Limit {
		return f.chunks[:arg.Limit], nil
	}
	return f.chunks, nil
}

func searchedChunk(docID string, pos int32, sim float32) store.SearchedChunk {
	return store.SearchedChunk{
		ID:         uuid.New(),
		DocumentID: docID,
		Position:   pos,
		Content:    "chunk content",
		Similarity: sim,
	}
}

func TestEngine_RetrieveRanked(t *testing.T) {
	searcher := &fakeSearcher{chunks: []store.SearchedChunk{
		searchedChunk("doc-a", 0, 0.95),
		searchedChunk("doc-b", 2, 0.81),
		searchedChunk("doc-a", 1, 0.60),
	}}
	engine := New(searcher, nil)

	result, err := engine.Retrieve(context.Background(), make([]float32, store.VectorDimension))
	require.NoError(t, err)
	require.Len(t, result.Chunks, 3)
	assert.InDelta(t, 0.95, result.Chunks[0].Similarity, 1e-6)
	assert.Equal(t, "doc-a", result.Chunks[0].DocumentID)
	assert.EqualValues(t, DefaultTopK, searcher.lastParams.Limit)
}

func TestEngine_TopKLimitsResults(t *testing.T) {
	searcher := &fakeSearcher{chunks: []store.SearchedChunk{
		searchedChunk("doc-a", 0, 0.9),
		searchedChunk("doc-a", 1, 0.8),
		searchedChunk("doc-a", 2, 0.7),
	}}
	engine := New(searcher, nil)

	result, err := engine.Retrieve(context.Background(),
		make([]float32, store.VectorDimension), WithTopK(2))
	require.NoError(t, err)
	assert.Len(t, result.Chunks, 2)
	assert.EqualValues(t, 2, searcher.lastParams.Limit)
}

func TestEngine_DocumentFilterForwarded(t *testing.T) {
	searcher := &fakeSearcher{}
	engine := New(searcher, nil)

	_, err := engine.Retrieve(context.Background(),
		make([]float32, store.VectorDimension), WithDocumentFilter("doc-a", "doc-b"))
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-a", "doc-b"}, searcher.lastParams.DocumentIDs)
}

func TestEngine_EmptyCorpus(t *testing.T) {
	engine := New(&fakeSearcher{}, nil)

	result, err := engine.Retrieve(context.Background(), make([]float32, store.VectorDimension))
	require.NoError(t, err)
	assert.Empty(t, result.Chunks)
}

func TestEngine_InvalidTopK(t *testing.T) {
	engine := New(&fakeSearcher{}, nil)

	for _, k := range []int{0, -1} {
		_, err := engine.Retrieve(context.Background(),
			make([]float32, store.VectorDimension), WithTopK(k))
		assert.ErrorIs(t, err, ErrInvalidTopK)
	}
}

func TestEngine_SearcherErrorPropagates(t *testing.T) {
	wantErr := errors.New("connection reset")
	engine := New(&fakeSearcher{err: wantErr}, nil)

	_, err := engine.Retrieve(context.Background(), make([]float32, store.VectorDimension))
	assert.ErrorIs(t, err, wantErr)
}
