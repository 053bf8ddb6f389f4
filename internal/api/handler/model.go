package handler

import (
	"net/http"

	"github.com/calderhq/sidechat/internal/api/response"
	"github.com/calderhq/sidechat/internal/llm"
	"github.com/go-chi/chi/v5"
)

type ModelHandler struct {
	registry *llm.Registry
}

func NewModelHandler(registry *llm.Registry) *ModelHandler {
	return &ModelHandler{registry: registry}
}

// List returns the selectable model catalog
func (h *ModelHandler) List(w http.ResponseWriter, r *http.Request) {
	response.OK(w, h.registry.List(r.Context()))
}

// Get returns a single model by id
func (h *ModelHandler) Get(w http.ResponseWriter, r *http.Request) {
	model, err := h.registry.Get(r.Context(), chi.URLParam(r, "modelID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.OK(w, model)
}
