package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/koopa0/ragd/internal/ingest"
	"github.com/koopa0/ragd/internal/log"
)

// Document validation constants.
const (
	MaxDocumentIDLength = 256
	MaxTitleLength      = 500
	MaxContentLength    = 10 << 20 // 10 MiB of text per document
)

// DocumentHandler handles ingestion endpoints.
type DocumentHandler struct {
	pipeline *ingest.Pipeline
	logger   log.Logger
}

// NewDocumentHandler creates a new document handler.
func NewDocumentHandler(pipeline *ingest.Pipeline, logger log.Logger) *DocumentHandler {
	return &DocumentHandler{pipeline: pipeline, logger: logger}
}

// RegisterRoutes registers document routes on the given mux.
func (h *DocumentHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/documents", h.submit)
	mux.HandleFunc("GET /api/jobs/{id}", h.job)
}

// SubmitDocumentRequest is the request body for submitting a document.
type SubmitDocumentRequest struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Origin  string `json:"origin"`
	Version string `json:"version"`
	Content string `json:"content"`
}

// SubmitDocumentResponse carries the job id for polling.
type SubmitDocumentResponse struct {
	JobID      string `json:"job_id"`
	DocumentID string `json:"document_id"`
}

// submit accepts a document and starts an asynchronous ingestion.
// Responds 202 Accepted with the job id.
func (h *DocumentHandler) submit(w http.ResponseWriter, r *http.Request) {
	if h.pipeline == nil {
		h.logger.Error("ingestion pipeline is nil")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var req SubmitDocumentRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxContentLength+4096)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "id is required")
		return
	}
	if len(req.ID) > MaxDocumentIDLength {
		writeError(w, http.StatusBadRequest, "invalid_request", "id too long (max 256 characters)")
		return
	}
	if len(req.Title) > MaxTitleLength {
		writeError(w, http.StatusBadRequest, "invalid_request", "title too long (max 500 characters)")
		return
	}
	if len(req.Content) > MaxContentLength {
		writeError(w, http.StatusBadRequest, "invalid_request", "content too large")
		return
	}

	// The job outlives this request; its context must not be the request's.
	jobID, err := h.pipeline.Submit(context.WithoutCancel(r.Context()), ingest.Document{
		ID:      req.ID,
		Title:   req.Title,
		Origin:  req.Origin,
		Version: req.Version,
		Content: req.Content,
	})
	if err != nil {
		if errors.Is(err, ingest.ErrInvalidDocument) {
			writeError(w, http.StatusBadRequest, "invalid_document", err.Error())
			return
		}
		h.logger.Error("failed to submit document", "document_id", req.ID, "error", err)
		http.Error(w, "failed to submit document", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusAccepted, SubmitDocumentResponse{
		JobID:      jobID.String(),
		DocumentID: req.ID,
	})
}

// JobResponse is the polling view of an ingestion job.
type JobResponse struct {
	JobID      string `json:"job_id"`
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
	Stage      string `json:"stage"`
	Chunks     int    `json:"chunks"`
	Unchanged  bool   `json:"unchanged,omitempty"`
	Error      string `json:"error,omitempty"`
}

// job returns the current state of an ingestion job.
func (h *DocumentHandler) job(w http.ResponseWriter, r *http.Request) {
	if h.pipeline == nil {
		h.logger.Error("ingestion pipeline is nil")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed job id")
		return
	}

	job, err := h.pipeline.Status(id)
	if err != nil {
		if errors.Is(err, ingest.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "no such job")
			return
		}
		h.logger.Error("failed to look up job", "job_id", id, "error", err)
		http.Error(w, "failed to look up job", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, JobResponse{
		JobID:      job.ID.String(),
		DocumentID: job.DocumentID,
		Status:     string(job.Status),
		Stage:      string(job.Stage),
		Chunks:     job.Chunks,
		Unchanged:  job.Unchanged,
		Error:      job.Error,
	})
}
