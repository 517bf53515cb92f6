package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/benchdash/internal/common"
	"github.com/ternarybob/benchdash/internal/models"
	"github.com/ternarybob/benchdash/internal/storage/badger"
)

func newTestStorage(t *testing.T) *badger.Manager {
	t.Helper()
	manager, err := badger.NewManager(arbor.NewLogger(), &common.BadgerConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })
	return manager
}

func getHealth(t *testing.T, handler *APIHandler) map[string]interface{} {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestAPIHandler_HealthDegradedUntilLookupStored(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)
	handler := NewAPIHandler(storage, arbor.NewLogger())

	body := getHealth(t, handler)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, false, body["lookup"])
	assert.Equal(t, float64(0), body["runs"])

	require.NoError(t, storage.LookupStorage().Save(ctx, []byte(`{"attributes":{},"tests":{}}`)))
	require.NoError(t, storage.RunStorage().SaveRun(ctx, &models.Run{
		ID:           "run_1",
		Name:         "nightly",
		TestMetadata: []models.TestDefinition{{Name: "gin"}},
	}))

	body = getHealth(t, handler)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["lookup"])
	assert.Equal(t, float64(1), body["runs"])
}

func TestAPIHandler_Version(t *testing.T) {
	handler := NewAPIHandler(newTestStorage(t), arbor.NewLogger())

	rec := httptest.NewRecorder()
	handler.VersionHandler(rec, httptest.NewRequest(http.MethodGet, "/api/version", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, common.GetVersion(), body["version"])

	rec = httptest.NewRecorder()
	handler.VersionHandler(rec, httptest.NewRequest(http.MethodPost, "/api/version", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestAPIHandler_NotFound(t *testing.T) {
	handler := NewAPIHandler(newTestStorage(t), arbor.NewLogger())

	rec := httptest.NewRecorder()
	handler.NotFoundHandler(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"path":"/nope"`)
}
