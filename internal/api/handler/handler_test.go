package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/calderhq/sidechat/internal/api/handler"
	"github.com/calderhq/sidechat/internal/api/response"
	"github.com/calderhq/sidechat/internal/llm"
	"github.com/calderhq/sidechat/internal/service"
	"github.com/calderhq/sidechat/internal/tools"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthCheck(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()

	handler.HealthCheck(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp response.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Success)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ok", data["status"])
}

func newToolRouter() http.Handler {
	h := handler.NewToolHandler(tools.NewDispatcher())
	r := chi.NewRouter()
	r.Get("/tools", h.List)
	r.Post("/tools/{toolName}", h.Execute)
	return r
}

func TestToolHandler_List(t *testing.T) {
	r := newToolRouter()

	t.Run("devops tools", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/tools?session_type=devops", nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var resp response.Response
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		data := resp.Data.(map[string]any)
		assert.Len(t, data["tools"], 2)
	})

	t.Run("unknown session type", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/tools?session_type=gardening", nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)

		var resp response.Response
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.False(t, resp.Success)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "validation_error", resp.Error.Code)
	})
}

func TestToolHandler_Execute(t *testing.T) {
	r := newToolRouter()

	t.Run("tool failure stays in envelope", func(t *testing.T) {
		body := bytes.NewBufferString(`{"content": "", "type": "auto"}`)
		req := httptest.NewRequest(http.MethodPost, "/tools/analyze_config", body)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		// The HTTP call succeeds; the tool envelope carries the failure.
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp response.Response
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.True(t, resp.Success)

		envelope := resp.Data.(map[string]any)
		assert.Equal(t, false, envelope["success"])
		assert.Contains(t, envelope["error"], "content is empty")
	})

	t.Run("unknown tool", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/tools/nope", bytes.NewBufferString(`{}`))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var resp response.Response
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		envelope := resp.Data.(map[string]any)
		assert.Equal(t, false, envelope["success"])
	})

	t.Run("empty body means no params", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/tools/text_stats", nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestModelHandler(t *testing.T) {
	// An empty router resolves the hardcoded fallback catalog.
	registry := llm.NewRegistry(llm.NewRouter("openai"), "", nil)
	h := handler.NewModelHandler(registry)
	r := chi.NewRouter()
	r.Get("/models", h.List)
	r.Get("/models/{modelID}", h.Get)

	t.Run("list falls back to single default", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/models", nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var resp response.Response
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		data := resp.Data.(map[string]any)
		models := data["models"].([]any)
		require.Len(t, models, 1)

		model := models[0].(map[string]any)
		assert.Equal(t, llm.FallbackModel.ID, model["id"])
		assert.Equal(t, true, model["is_default"])
		assert.Equal(t, llm.FallbackModel.ID, data["default"])
	})

	t.Run("get unknown model", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/models/unknown", nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)

		var resp response.Response
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		require.NotNil(t, resp.Error)
		assert.Equal(t, "not_found", resp.Error.Code)
	})
}

func TestSessionHandler_CreateValidation(t *testing.T) {
	// Validation failures never reach the repository, so none is needed.
	svc := service.NewSessionService(nil, llm.NewRegistry(llm.NewRouter("openai"), "", nil))
	h := handler.NewSessionHandler(svc)
	r := chi.NewRouter()
	r.Post("/sessions", h.Create)

	t.Run("missing name", func(t *testing.T) {
		body := bytes.NewBufferString(`{"type": "devops"}`)
		req := httptest.NewRequest(http.MethodPost, "/sessions", body)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)

		var resp response.Response
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.False(t, resp.Success)
		assert.Equal(t, "validation_error", resp.Error.Code)
	})

	t.Run("unknown session type", func(t *testing.T) {
		body := bytes.NewBufferString(`{"name": "x", "type": "gardening"}`)
		req := httptest.NewRequest(http.MethodPost, "/sessions", body)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/sessions", bytes.NewBufferString("{"))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
