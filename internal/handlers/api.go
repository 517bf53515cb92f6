package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/benchdash/internal/common"
	"github.com/ternarybob/benchdash/internal/interfaces"
)

// APIHandler serves health, version and fallback endpoints
type APIHandler struct {
	storage interfaces.StorageManager
	logger  arbor.ILogger
}

func NewAPIHandler(storage interfaces.StorageManager, logger arbor.ILogger) *APIHandler {
	return &APIHandler{
		storage: storage,
		logger:  logger,
	}
}

// VersionHandler returns version information
func (h *APIHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"version":    common.GetVersion(),
		"build":      common.Build,
		"git_commit": common.GitCommit,
	})
}

// HealthHandler reports whether storage answers and a lookup is present.
// A missing lookup is "degraded": the service runs but cannot reconcile.
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	ctx := r.Context()
	runs, err := h.storage.RunStorage().CountRuns(ctx)
	if err != nil {
		h.logger.Error().Err(err).Msg("Health check: run storage unavailable")
		WriteJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}

	status := "ok"
	hasLookup, err := h.storage.LookupStorage().Exists(ctx)
	if err != nil || !hasLookup {
		status = "degraded"
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": status,
		"runs":   runs,
		"lookup": hasLookup,
	})
}

// NotFoundHandler handles 404 errors with JSON response
func (h *APIHandler) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusNotFound, map[string]interface{}{
		"error":   "Not Found",
		"path":    r.URL.Path,
		"message": "The requested endpoint does not exist",
	})
}
