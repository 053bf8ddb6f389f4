package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// MessageRole represents the sender of a message
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// ToolCallStatus is the lifecycle state of a single tool invocation.
// pending -> running -> completed|error; terminal states never change.
type ToolCallStatus string

const (
	ToolCallPending   ToolCallStatus = "pending"
	ToolCallRunning   ToolCallStatus = "running"
	ToolCallCompleted ToolCallStatus = "completed"
	ToolCallError     ToolCallStatus = "error"
)

// Terminal reports whether s is a terminal tool-call status
func (s ToolCallStatus) Terminal() bool {
	return s == ToolCallCompleted || s == ToolCallError
}

// ToolCallRecord captures one tool invocation made during a turn
type ToolCallRecord struct {
	ToolCallID string         `json:"tool_call_id"`
	ToolName   string         `json:"tool_name"`
	Status     ToolCallStatus `json:"status"`
	Result     string         `json:"result,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// MessageMetadata is the closed set of metadata a message can carry.
// StreamComplete is nil for messages that were never streamed.
type MessageMetadata struct {
	ToolCalls      []ToolCallRecord `json:"tool_calls,omitempty"`
	AttachmentIDs  []uuid.UUID      `json:"attachment_ids,omitempty"`
	ContextAware   bool             `json:"context_aware,omitempty"`
	StreamComplete *bool            `json:"stream_complete,omitempty"`
	Model          string           `json:"model,omitempty"`
}

// Message represents one turn-unit of conversation within a session.
// Content, role and timestamp are immutable once persisted; only metadata
// may be patched afterwards to record terminal tool-call state.
type Message struct {
	ID        uuid.UUID        `json:"id"`
	SessionID uuid.UUID        `json:"session_id"`
	Role      MessageRole      `json:"role"`
	Content   string           `json:"content"`
	Metadata  *MessageMetadata `json:"metadata,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// Attachment is an image stored alongside a message, cascade-deleted with it
type Attachment struct {
	ID        uuid.UUID `json:"id"`
	MessageID uuid.UUID `json:"message_id"`
	MimeType  string    `json:"mime_type"`
	Data      []byte    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// MessageRepository defines the interface for message storage.
// Create must atomically insert the message and advance the owning
// session's message count and updated_at. ListBySession pages the full
// chronological sequence with an order that is stable across pages;
// Recent returns only the latest N, still oldest first.
type MessageRepository interface {
	Create(ctx context.Context, message *Message) error
	ListBySession(ctx context.Context, sessionID uuid.UUID, limit, offset int) ([]Message, error)
	Recent(ctx context.Context, sessionID uuid.UUID, limit int) ([]Message, error)
	UpdateMetadata(ctx context.Context, messageID uuid.UUID, metadata *MessageMetadata) error
	CreateAttachment(ctx context.Context, attachment *Attachment) error
}
