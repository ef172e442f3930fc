package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/koopa0/ragd/internal/answer"
	"github.com/koopa0/ragd/internal/log"
	"github.com/koopa0/ragd/internal/provider"
)

// Query validation constants.
const (
	MaxQueryLength = 10000
	MaxTopK        = 100
)

// QueryHandler handles the question endpoint.
type QueryHandler struct {
	orchestrator *answer.Orchestrator
	logger       log.Logger
}

// NewQueryHandler creates a new query handler.
func NewQueryHandler(orchestrator *answer.Orchestrator, logger log.Logger) *QueryHandler {
	return &QueryHandler{orchestrator: orchestrator, logger: logger}
}

// RegisterRoutes registers query routes on the given mux.
func (h *QueryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/query", h.query)
}

// QueryRequest is the request body for a question. TopK overrides the
// configured default when positive.
type QueryRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

// QuerySource is one chunk the answer was grounded on.
type QuerySource struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Position   int32   `json:"position"`
	Content    string  `json:"content"`
	Similarity float32 `json:"similarity"`
}

// QueryResponse is the answer with its sources. Partial marks a response
// whose generation step failed; sources are still usable.
type QueryResponse struct {
	Answer  string        `json:"answer"`
	Sources []QuerySource `json:"sources"`
	Partial bool          `json:"partial,omitempty"`
}

// query answers a question over the ingested corpus.
func (h *QueryHandler) query(w http.ResponseWriter, r *http.Request) {
	if h.orchestrator == nil {
		h.logger.Error("query orchestrator is nil")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if len(req.Query) > MaxQueryLength {
		writeError(w, http.StatusBadRequest, "invalid_request", "query too long (max 10000 characters)")
		return
	}
	if req.TopK < 0 || req.TopK > MaxTopK {
		writeError(w, http.StatusBadRequest, "invalid_request", "top_k out of range")
		return
	}

	var opts []answer.Option
	if req.TopK > 0 {
		opts = append(opts, answer.WithTopK(req.TopK))
	}

	resp, err := h.orchestrator.Answer(r.Context(), req.Query, opts...)
	if err != nil {
		switch {
		case errors.Is(err, answer.ErrEmptyQuery):
			writeError(w, http.StatusBadRequest, "invalid_request", "query is required")
		case errors.Is(err, provider.ErrEmbeddingUnavailable):
			h.logger.Error("embedding provider unavailable", "error", err)
			writeError(w, http.StatusServiceUnavailable, "embedding_unavailable",
				"embedding provider unavailable, try again later")
		default:
			h.logger.Error("query failed", "error", err)
			http.Error(w, "query failed", http.StatusInternalServerError)
		}
		return
	}

	sources := make([]QuerySource, len(resp.Sources))
	for i, s := range resp.Sources {
		sources[i] = QuerySource{
			ChunkID:    s.ChunkID.String(),
			DocumentID: s.DocumentID,
			Position:   s.Position,
			Content:    s.Content,
			Similarity: s.Similarity,
		}
	}
	writeJSON(w, http.StatusOK, QueryResponse{
		Answer:  resp.Answer,
		Sources: sources,
		Partial: resp.Partial,
	})
}
