package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/benchdash/internal/models"
	"github.com/ternarybob/benchdash/internal/services/attributes"
	"gopkg.in/yaml.v3"
)

// AttributesService defines the methods needed from the attribute service
type AttributesService interface {
	Current(ctx context.Context) (models.AttributeLookup, error)
	Preview(ctx context.Context, runID string) (*attributes.Result, error)
	Apply(ctx context.Context, runID string) (*attributes.Result, error)
	ReplaceLookup(ctx context.Context, raw []byte) (models.AttributeLookup, error)
	TestsView(ctx context.Context, runID string) (*attributes.TestsView, error)
}

// AttributesHandler serves the attribute lookup and its reconciliation
type AttributesHandler struct {
	service      AttributesService
	logger       arbor.ILogger
	maxBodyBytes int64
}

// NewAttributesHandler creates a new attributes handler
func NewAttributesHandler(service AttributesService, logger arbor.ILogger, maxBodyBytes int64) *AttributesHandler {
	return &AttributesHandler{
		service:      service,
		logger:       logger,
		maxBodyBytes: maxBodyBytes,
	}
}

// GetLookupHandler handles GET /api/attributes - the stored lookup, JSON or ?format=yaml
func (h *AttributesHandler) GetLookupHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	lookup, err := h.service.Current(r.Context())
	if err != nil {
		h.logger.Warn().Err(err).Msg("Failed to load attribute lookup")
		WriteServiceError(w, err)
		return
	}

	if r.URL.Query().Get("format") == "yaml" {
		data, err := toYAML(lookup)
		if err != nil {
			h.logger.Error().Err(err).Msg("Failed to render attribute lookup as YAML")
			WriteError(w, http.StatusInternalServerError, "Failed to render YAML")
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		w.Write(data)
		return
	}

	WriteJSON(w, http.StatusOK, lookup)
}

// ReplaceLookupHandler handles PUT /api/attributes - store a hand-edited lookup
func (h *AttributesHandler) ReplaceLookupHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPut) {
		return
	}

	body, ok := readBody(w, r, h.maxBodyBytes)
	if !ok {
		return
	}

	lookup, err := h.service.ReplaceLookup(r.Context(), body)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Failed to replace attribute lookup")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, lookup)
}

// PreviewHandler handles GET /api/attributes/reconcile?run={id}.
// The reconciled lookup is returned without being stored.
func (h *AttributesHandler) PreviewHandler(w http.ResponseWriter, r *http.Request) {
	h.reconcile(w, r, h.service.Preview)
}

// ApplyHandler handles POST /api/attributes/reconcile?run={id}
func (h *AttributesHandler) ApplyHandler(w http.ResponseWriter, r *http.Request) {
	h.reconcile(w, r, h.service.Apply)
}

func (h *AttributesHandler) reconcile(w http.ResponseWriter, r *http.Request, run func(context.Context, string) (*attributes.Result, error)) {
	runID := r.URL.Query().Get("run")

	result, err := run(r.Context(), runID)
	if err != nil {
		h.logger.Warn().Err(err).Str("run_id", runID).Str("method", r.Method).Msg("Attribute reconciliation failed")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, result)
}

// TestsViewHandler handles GET /api/attributes/tests[?run={id}]
func (h *AttributesHandler) TestsViewHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	view, err := h.service.TestsView(r.Context(), r.URL.Query().Get("run"))
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, view)
}

// toYAML renders v as block-style YAML, keeping the key order of its JSON form
func toYAML(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode JSON: %w", err)
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("failed to parse JSON as YAML: %w", err)
	}
	clearStyle(&node)

	return yaml.Marshal(&node)
}

func clearStyle(node *yaml.Node) {
	node.Style = 0
	for _, child := range node.Content {
		clearStyle(child)
	}
}
