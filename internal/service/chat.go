package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/calderhq/sidechat/internal/config"
	"github.com/calderhq/sidechat/internal/domain"
	"github.com/calderhq/sidechat/internal/llm"
	"github.com/calderhq/sidechat/internal/pagectx"
	"github.com/calderhq/sidechat/internal/tools"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Turn event types, emitted in the order the stream contract defines:
// message_start, then any interleaving of message_delta and
// tool_start/tool_complete pairs, then exactly one of message_complete
// or error, then done.
const (
	EventMessageStart    = "message_start"
	EventMessageDelta    = "message_delta"
	EventToolStart       = "tool_start"
	EventToolComplete    = "tool_complete"
	EventMessageComplete = "message_complete"
	EventError           = "error"
	EventDone            = "done"
)

// Machine-readable reasons carried by error events
const (
	ReasonAborted       = "aborted"
	ReasonIdleTimeout   = "idle_timeout"
	ReasonTimeout       = "timeout"
	ReasonProviderError = "provider_error"
	ReasonInternalError = "internal_error"
)

// TurnEvent is one element of a turn's ordered event sequence
type TurnEvent struct {
	Type      string                 `json:"type"`
	MessageID uuid.UUID              `json:"message_id,omitzero"`
	Delta     string                 `json:"delta,omitempty"`
	ToolCall  *domain.ToolCallRecord `json:"tool_call,omitempty"`
	Message   *domain.Message        `json:"message,omitempty"`
	Reason    string                 `json:"reason,omitempty"`
	Error     string                 `json:"error,omitempty"`
}

// ChatRequest is one caller-initiated chat turn
type ChatRequest struct {
	Content     string              `json:"content" validate:"required"`
	Model       string              `json:"model"`
	PageContext *pagectx.RawPayload `json:"page_context"`
	Images      []ImageInput        `json:"images"`
}

// ImageInput is an inline image attached to a chat request
type ImageInput struct {
	MimeType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

var errTurnAborted = errors.New("turn aborted by caller")

// errIdleTimeout marks a stream that went silent for longer than the
// configured idle window.
var errIdleTimeout = errors.New("stream idle timeout")

type turn struct {
	cancel context.CancelCauseFunc
}

// ChatService drives streaming chat turns. It enforces one in-flight
// turn per session via an in-memory busy marker, independent of the
// session's persisted status.
type ChatService struct {
	sessionRepo domain.SessionRepository
	messageRepo domain.MessageRepository
	router      *llm.Router
	registry    *llm.Registry
	dispatcher  *tools.Dispatcher
	cfg         config.ChatConfig

	mu     sync.Mutex
	active map[uuid.UUID]*turn
}

// NewChatService creates a new chat service
func NewChatService(
	sessionRepo domain.SessionRepository,
	messageRepo domain.MessageRepository,
	router *llm.Router,
	registry *llm.Registry,
	dispatcher *tools.Dispatcher,
	cfg config.ChatConfig,
) *ChatService {
	return &ChatService{
		sessionRepo: sessionRepo,
		messageRepo: messageRepo,
		router:      router,
		registry:    registry,
		dispatcher:  dispatcher,
		cfg:         cfg,
		active:      make(map[uuid.UUID]*turn),
	}
}

// StartTurn begins one streaming turn for a session and returns its event
// sequence. Synchronous failures (closed session, unknown model, a turn
// already in flight) are returned as errors before any event is emitted.
// The returned channel is closed after the terminal done event.
//
// Callers must drain the channel to completion; the turn produces events
// until done regardless of whether the caller is still interested.
func (s *ChatService) StartTurn(ctx context.Context, sessionID uuid.UUID, req ChatRequest) (<-chan TurnEvent, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, domain.NewValidationError("content", "must not be empty")
	}

	session, err := s.sessionRepo.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status == domain.SessionClosed {
		return nil, domain.ErrSessionClosed
	}

	model := req.Model
	if model == "" {
		model = session.Model
	}
	if model == "" {
		model = s.registry.DefaultModelID(ctx)
	}
	provider, err := s.router.ProviderForModel(model)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", model, domain.ErrNotFound)
	}

	history, err := s.messageRepo.Recent(ctx, sessionID, s.cfg.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	var payload *pagectx.Payload
	if req.PageContext != nil {
		bounded := pagectx.Bound(*req.PageContext)
		payload = &bounded
	}
	system := pagectx.MergePrompt(session, payload, history, s.cfg.HistoryLimit)

	s.mu.Lock()
	if _, inFlight := s.active[sessionID]; inFlight {
		s.mu.Unlock()
		return nil, domain.ErrTurnInFlight
	}

	// The turn deliberately detaches from the request context: its
	// lifetime is bounded by the absolute timeout and the abort signal,
	// not by the HTTP request that started it.
	base, cancel := context.WithCancelCause(context.WithoutCancel(ctx))
	s.active[sessionID] = &turn{cancel: cancel}
	s.mu.Unlock()

	turnCtx, timeoutCancel := context.WithTimeout(base, s.cfg.TurnTimeout)

	events := make(chan TurnEvent, 16)
	go func() {
		defer func() {
			timeoutCancel()
			cancel(nil)
			s.mu.Lock()
			delete(s.active, sessionID)
			s.mu.Unlock()
			close(events)
		}()
		s.run(turnCtx, events, session, provider, model, system, req)
	}()

	return events, nil
}

// Abort cancels a session's in-flight turn. Returns NotFound when no turn
// is in flight; the turn itself still emits error{aborted} then done.
func (s *ChatService) Abort(sessionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.active[sessionID]
	if !ok {
		return domain.ErrNotFound
	}
	t.cancel(errTurnAborted)
	return nil
}

func (s *ChatService) run(
	ctx context.Context,
	events chan<- TurnEvent,
	session *domain.Session,
	provider llm.Provider,
	model string,
	system string,
	req ChatRequest,
) {
	messageID := uuid.New()
	events <- TurnEvent{Type: EventMessageStart, MessageID: messageID}

	var full strings.Builder
	var records []domain.ToolCallRecord

	convo := []llm.ChatMessage{{Role: llm.ChatRoleUser, Content: req.Content}}
	toolDefs := s.toolDefs(session.Type)

	for round := 0; ; round++ {
		defs := toolDefs
		if round >= s.cfg.MaxToolRounds {
			// Last round answers with whatever it has; no further tools.
			defs = nil
		}

		stream, err := provider.StreamChat(ctx, llm.ChatRequest{
			Model:     model,
			System:    system,
			Messages:  convo,
			Tools:     defs,
			MaxTokens: s.cfg.MaxTokens,
		})
		if err != nil {
			s.fail(ctx, events, session, messageID, model, &full, records, err)
			return
		}

		calls, err := s.relay(ctx, stream, events, messageID, &full)
		stream.Close()
		if err != nil {
			s.fail(ctx, events, session, messageID, model, &full, records, err)
			return
		}
		if len(calls) == 0 {
			break
		}

		convo = append(convo, llm.ChatMessage{Role: llm.ChatRoleAssistant, ToolCalls: calls})
		for _, call := range calls {
			record := s.executeToolCall(ctx, events, session.Type, call)
			records = append(records, record)

			content := record.Result
			if record.Status == domain.ToolCallError {
				content = fmt.Sprintf(`{"success":false,"error":%q}`, record.Error)
			}
			convo = append(convo, llm.ChatMessage{
				Role:       llm.ChatRoleTool,
				Content:    content,
				ToolCallID: call.ID,
				ToolName:   call.Name,
			})
		}
	}

	message, err := s.persist(ctx, session, messageID, model, full.String(), records, req, true)
	if err != nil {
		events <- TurnEvent{Type: EventError, MessageID: messageID, Reason: ReasonInternalError, Error: err.Error()}
		events <- TurnEvent{Type: EventDone, MessageID: messageID}
		return
	}

	events <- TurnEvent{Type: EventMessageComplete, MessageID: messageID, Message: message}
	events <- TurnEvent{Type: EventDone, MessageID: messageID}
}

type recvResult struct {
	chunk *llm.Chunk
	err   error
}

// relay forwards one provider round to the event channel, accumulating
// text into full and collecting tool-call requests. It enforces the idle
// timeout between chunks.
func (s *ChatService) relay(
	ctx context.Context,
	stream llm.Stream,
	events chan<- TurnEvent,
	messageID uuid.UUID,
	full *strings.Builder,
) ([]llm.ToolCallRequest, error) {
	results := make(chan recvResult)
	go func() {
		for {
			chunk, err := stream.Recv()
			select {
			case results <- recvResult{chunk: chunk, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	idle := time.NewTimer(s.cfg.IdleTimeout)
	defer idle.Stop()

	var calls []llm.ToolCallRequest
	for {
		select {
		case r := <-results:
			if r.err != nil {
				if errors.Is(r.err, io.EOF) {
					return calls, nil
				}
				return calls, r.err
			}
			if r.chunk.Text != "" {
				full.WriteString(r.chunk.Text)
				events <- TurnEvent{Type: EventMessageDelta, MessageID: messageID, Delta: r.chunk.Text}
			}
			if len(r.chunk.ToolCalls) > 0 {
				calls = append(calls, r.chunk.ToolCalls...)
			}
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(s.cfg.IdleTimeout)
		case <-idle.C:
			return calls, errIdleTimeout
		case <-ctx.Done():
			return calls, ctx.Err()
		}
	}
}

// executeToolCall runs one tool invocation, emitting its tool_start and
// tool_complete events. Tool failures terminate the call, not the turn.
func (s *ChatService) executeToolCall(
	ctx context.Context,
	events chan<- TurnEvent,
	sessionType domain.SessionType,
	call llm.ToolCallRequest,
) domain.ToolCallRecord {
	record := domain.ToolCallRecord{
		ToolCallID: call.ID,
		ToolName:   call.Name,
		Status:     domain.ToolCallPending,
	}
	started := record
	events <- TurnEvent{Type: EventToolStart, ToolCall: &started}
	record.Status = domain.ToolCallRunning

	params := map[string]any{}
	var result tools.Result
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &params); err != nil {
			result = tools.Result{Success: false, Error: fmt.Sprintf("invalid tool arguments: %v", err)}
		}
	}
	if result.Error == "" {
		result = s.dispatcher.Execute(ctx, call.Name, params)
	}

	if result.Success {
		record.Status = domain.ToolCallCompleted
		if encoded, err := json.Marshal(result.Result); err == nil {
			record.Result = string(encoded)
		}
	} else {
		record.Status = domain.ToolCallError
		record.Error = result.Error
	}

	completed := record
	events <- TurnEvent{Type: EventToolComplete, ToolCall: &completed}
	return record
}

// fail terminates the turn on the error path: partial content already
// streamed is persisted with streamComplete=false, then the mandatory
// error and done events close out the sequence.
func (s *ChatService) fail(
	ctx context.Context,
	events chan<- TurnEvent,
	session *domain.Session,
	messageID uuid.UUID,
	model string,
	full *strings.Builder,
	records []domain.ToolCallRecord,
	cause error,
) {
	reason := classifyReason(ctx, cause)

	if full.Len() > 0 {
		if _, err := s.persist(ctx, session, messageID, model, full.String(), records, ChatRequest{}, false); err != nil {
			log.Error().
				Str("session_id", session.ID.String()).
				Err(err).
				Msg("failed to persist partial assistant message")
		}
	}

	log.Warn().
		Str("session_id", session.ID.String()).
		Str("reason", reason).
		Err(cause).
		Msg("chat turn failed")

	events <- TurnEvent{Type: EventError, MessageID: messageID, Reason: reason, Error: cause.Error()}
	events <- TurnEvent{Type: EventDone, MessageID: messageID}
}

// persist writes the turn's assistant message through the transactional
// repository call so the session's message count stays in step. Image
// attachments are stored afterwards; metadata only ever references
// attachment rows that were actually written.
func (s *ChatService) persist(
	ctx context.Context,
	session *domain.Session,
	messageID uuid.UUID,
	model string,
	content string,
	records []domain.ToolCallRecord,
	req ChatRequest,
	complete bool,
) (*domain.Message, error) {
	// The turn context may already be cancelled on the error path; the
	// write still has to happen so streamed content is not lost.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	streamComplete := complete
	message := &domain.Message{
		ID:        messageID,
		SessionID: session.ID,
		Role:      domain.RoleAssistant,
		Content:   content,
		Metadata: &domain.MessageMetadata{
			ToolCalls:      records,
			ContextAware:   req.PageContext != nil,
			StreamComplete: &streamComplete,
			Model:          model,
		},
		CreatedAt: time.Now(),
	}

	if err := s.messageRepo.Create(writeCtx, message); err != nil {
		return nil, fmt.Errorf("failed to persist assistant message: %w", err)
	}

	if len(req.Images) == 0 {
		return message, nil
	}

	var attachmentIDs []uuid.UUID
	for _, img := range req.Images {
		attachment := &domain.Attachment{
			ID:        uuid.New(),
			MessageID: messageID,
			MimeType:  img.MimeType,
			Data:      img.Data,
			CreatedAt: message.CreatedAt,
		}
		if err := s.messageRepo.CreateAttachment(writeCtx, attachment); err != nil {
			log.Error().
				Str("message_id", messageID.String()).
				Err(err).
				Msg("failed to persist attachment")
			continue
		}
		attachmentIDs = append(attachmentIDs, attachment.ID)
	}

	if len(attachmentIDs) > 0 {
		message.Metadata.AttachmentIDs = attachmentIDs
		if err := s.messageRepo.UpdateMetadata(writeCtx, messageID, message.Metadata); err != nil {
			log.Error().
				Str("message_id", messageID.String()).
				Err(err).
				Msg("failed to record attachment ids in metadata")
			message.Metadata.AttachmentIDs = nil
		}
	}

	return message, nil
}

// ListMessages returns one chronological page of a session's messages.
// The session must exist even when it has no messages yet; paging with
// limit and offset reaches arbitrarily far back with stable order.
func (s *ChatService) ListMessages(ctx context.Context, sessionID uuid.UUID, limit, offset int) ([]domain.Message, error) {
	if _, err := s.sessionRepo.Get(ctx, sessionID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	messages, err := s.messageRepo.ListBySession(ctx, sessionID, limit, offset)
	if err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	return messages, nil
}

func (s *ChatService) toolDefs(sessionType domain.SessionType) []llm.ToolDef {
	descriptors := s.dispatcher.ListTools(sessionType)
	defs := make([]llm.ToolDef, 0, len(descriptors))
	for _, d := range descriptors {
		defs = append(defs, llm.ToolDef{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  d.Parameters,
		})
	}
	return defs
}

// classifyReason maps a turn failure to its machine-readable reason code
func classifyReason(ctx context.Context, cause error) string {
	if errors.Is(cause, errIdleTimeout) {
		return ReasonIdleTimeout
	}
	if errors.Is(context.Cause(ctx), errTurnAborted) || errors.Is(cause, errTurnAborted) {
		return ReasonAborted
	}
	if errors.Is(cause, context.DeadlineExceeded) || errors.Is(context.Cause(ctx), context.DeadlineExceeded) {
		return ReasonTimeout
	}
	return ReasonProviderError
}
