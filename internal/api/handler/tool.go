package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/calderhq/sidechat/internal/api/response"
	"github.com/calderhq/sidechat/internal/domain"
	"github.com/calderhq/sidechat/internal/tools"
	"github.com/go-chi/chi/v5"
)

type ToolHandler struct {
	dispatcher *tools.Dispatcher
}

func NewToolHandler(dispatcher *tools.Dispatcher) *ToolHandler {
	return &ToolHandler{dispatcher: dispatcher}
}

// List returns the tool descriptors visible to a session type
func (h *ToolHandler) List(w http.ResponseWriter, r *http.Request) {
	sessionType := domain.SessionType(r.URL.Query().Get("session_type"))
	if sessionType == "" {
		sessionType = domain.SessionTypeGeneral
	}
	if !domain.ValidSessionType(sessionType) {
		response.BadRequest(w, "validation_error", "unknown session type")
		return
	}

	response.OK(w, map[string]any{"tools": h.dispatcher.ListTools(sessionType)})
}

// Execute runs a tool synchronously. The execution envelope itself never
// fails the HTTP call; unknown tools and tool errors land in it as
// success=false.
func (h *ToolHandler) Execute(w http.ResponseWriter, r *http.Request) {
	toolName := chi.URLParam(r, "toolName")

	// An empty body means no parameters.
	params := map[string]any{}
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(w, "invalid_body", "invalid request body")
		return
	}

	response.OK(w, h.dispatcher.Execute(r.Context(), toolName, params))
}
