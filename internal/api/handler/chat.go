package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/calderhq/sidechat/internal/api/response"
	"github.com/calderhq/sidechat/internal/service"
	"github.com/rs/zerolog/log"
)

type ChatHandler struct {
	chatService *service.ChatService
}

func NewChatHandler(chatService *service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// Send starts a streaming chat turn and relays its events over SSE.
// Synchronous failures keep the plain JSON envelope; once streaming has
// begun, failures arrive as error events inside the stream.
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseSessionID(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		response.InternalError(w, "streaming unsupported by connection")
		return
	}

	var req service.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid_body", "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		response.BadRequest(w, "validation_error", validationMessage(err))
		return
	}

	events, err := h.chatService.StartTurn(r.Context(), sessionID, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	clientGone := r.Context().Done()
	disconnected := false

	// The channel must be drained to completion even after the client
	// goes away, or the turn goroutine blocks mid-stream.
	for event := range events {
		if disconnected {
			continue
		}
		select {
		case <-clientGone:
			disconnected = true
			if err := h.chatService.Abort(sessionID); err != nil {
				log.Debug().Err(err).Msg("abort after client disconnect")
			}
			continue
		default:
		}

		data, err := json.Marshal(event)
		if err != nil {
			log.Error().Err(err).Msg("failed to encode stream event")
			continue
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
		flusher.Flush()
	}
}

// Abort cancels the session's in-flight turn
func (h *ChatHandler) Abort(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseSessionID(w, r)
	if !ok {
		return
	}

	if err := h.chatService.Abort(sessionID); err != nil {
		writeServiceError(w, err)
		return
	}

	response.OK(w, map[string]bool{"aborted": true})
}

// Messages lists a session's messages in chronological order
func (h *ChatHandler) Messages(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseSessionID(w, r)
	if !ok {
		return
	}

	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 {
			limit = v
		}
	}
	offset := 0
	if o := r.URL.Query().Get("offset"); o != "" {
		if v, err := strconv.Atoi(o); err == nil && v > 0 {
			offset = v
		}
	}

	messages, err := h.chatService.ListMessages(r.Context(), sessionID, limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.OK(w, map[string]any{"messages": messages})
}
