package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/benchdash/internal/models"
	"github.com/ternarybob/benchdash/internal/services/results"
)

// ResultsService defines the methods needed from the results service
type ResultsService interface {
	Upload(ctx context.Context, req results.UploadRequest) (*models.Run, error)
	Get(ctx context.Context, id string) (*models.Run, error)
	List(ctx context.Context, limit, offset int) ([]models.RunSummary, int, error)
	Delete(ctx context.Context, id string) error
}

// ResultsHandler handles benchmark run uploads and browsing
type ResultsHandler struct {
	service      ResultsService
	logger       arbor.ILogger
	maxBodyBytes int64
}

// NewResultsHandler creates a new results handler
func NewResultsHandler(service ResultsService, logger arbor.ILogger, maxBodyBytes int64) *ResultsHandler {
	return &ResultsHandler{
		service:      service,
		logger:       logger,
		maxBodyBytes: maxBodyBytes,
	}
}

// ListRunsHandler handles GET /api/results
func (h *ResultsHandler) ListRunsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	page, pageSize := GetPaginationParams(r)
	runs, total, err := h.service.List(r.Context(), pageSize, page*pageSize)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list runs")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"runs":       runs,
		"pagination": NewPagination(page, pageSize, total),
	})
}

// UploadRunHandler handles POST /api/results.
// The body is either an upload request or a bare metadata file, in which case
// the run name and environment come from the query string.
func (h *ResultsHandler) UploadRunHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	body, ok := readBody(w, r, h.maxBodyBytes)
	if !ok {
		return
	}

	var req results.UploadRequest
	if err := json.Unmarshal(body, &req); err != nil || len(req.TestMetadata) == 0 {
		tests, parseErr := results.ParseMetadata(body)
		if parseErr != nil {
			WriteServiceError(w, parseErr)
			return
		}
		req = results.UploadRequest{
			Name:         r.URL.Query().Get("name"),
			Environment:  r.URL.Query().Get("environment"),
			TestMetadata: tests,
		}
	}

	run, err := h.service.Upload(r.Context(), req)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Run upload rejected")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, run.Summary())
}

// GetRunHandler handles GET /api/results/{id}
func (h *ResultsHandler) GetRunHandler(w http.ResponseWriter, r *http.Request) {
	id := pathID(r.URL.Path, "/api/results/")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "Run ID is required")
		return
	}

	run, err := h.service.Get(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, run)
}

// DeleteRunHandler handles DELETE /api/results/{id}
func (h *ResultsHandler) DeleteRunHandler(w http.ResponseWriter, r *http.Request) {
	id := pathID(r.URL.Path, "/api/results/")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "Run ID is required")
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteSuccess(w, "Run deleted")
}
