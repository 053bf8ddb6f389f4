package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/calderhq/sidechat/internal/api/response"
	"github.com/calderhq/sidechat/internal/domain"
	"github.com/calderhq/sidechat/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type SessionHandler struct {
	sessionService *service.SessionService
}

func NewSessionHandler(sessionService *service.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

// Create opens a new session
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.SessionCreate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid_body", "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		response.BadRequest(w, "validation_error", validationMessage(err))
		return
	}

	session, err := h.sessionService.Create(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.Created(w, session)
}

// List returns sessions ordered by most recent activity
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	offset := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 {
			limit = v
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if v, err := strconv.Atoi(o); err == nil && v >= 0 {
			offset = v
		}
	}

	sessions, err := h.sessionService.List(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.OK(w, map[string]any{"sessions": sessions})
}

// Get returns a single session
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseSessionID(w, r)
	if !ok {
		return
	}

	session, err := h.sessionService.Get(r.Context(), sessionID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.OK(w, session)
}

// Update applies a partial session update
func (h *SessionHandler) Update(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseSessionID(w, r)
	if !ok {
		return
	}

	var req domain.SessionUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid_body", "invalid request body")
		return
	}

	session, err := h.sessionService.Update(r.Context(), sessionID, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.OK(w, session)
}

// Delete removes a session and everything it owns
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseSessionID(w, r)
	if !ok {
		return
	}

	if err := h.sessionService.Delete(r.Context(), sessionID); err != nil {
		writeServiceError(w, err)
		return
	}

	response.NoContent(w)
}

func parseSessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		response.BadRequest(w, "invalid_id", "invalid session ID")
		return uuid.Nil, false
	}
	return sessionID, true
}
