package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SessionType classifies a conversation scope and decides which tools it exposes
type SessionType string

const (
	SessionTypeDevops      SessionType = "devops"
	SessionTypeWriting     SessionType = "writing"
	SessionTypeDevelopment SessionType = "development"
	SessionTypeGeneral     SessionType = "general"
)

// ValidSessionType reports whether t is a recognized session type
func ValidSessionType(t SessionType) bool {
	switch t {
	case SessionTypeDevops, SessionTypeWriting, SessionTypeDevelopment, SessionTypeGeneral:
		return true
	}
	return false
}

// SessionStatus is the lifecycle state of a session
type SessionStatus string

const (
	SessionActive SessionStatus = "active"
	SessionPaused SessionStatus = "paused"
	SessionClosed SessionStatus = "closed"
)

// ValidSessionStatus reports whether s is a recognized session status
func ValidSessionStatus(s SessionStatus) bool {
	switch s {
	case SessionActive, SessionPaused, SessionClosed:
		return true
	}
	return false
}

// Session represents a conversation thread with its own configuration.
// MessageCount always equals the number of persisted messages for the
// session; the repository keeps the two in step inside one transaction.
type Session struct {
	ID           uuid.UUID     `json:"id"`
	Name         string        `json:"name"`
	Type         SessionType   `json:"type"`
	Status       SessionStatus `json:"status"`
	Model        string        `json:"model"`
	SystemPrompt string        `json:"system_prompt,omitempty"`
	CustomAgent  string        `json:"custom_agent,omitempty"`
	MessageCount int           `json:"message_count"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// SessionUpdate carries the mutable session fields for partial updates
type SessionUpdate struct {
	Name   *string        `json:"name,omitempty"`
	Status *SessionStatus `json:"status,omitempty"`
}

// SessionRepository defines the interface for session storage
type SessionRepository interface {
	Create(ctx context.Context, session *Session) error
	Get(ctx context.Context, id uuid.UUID) (*Session, error)
	List(ctx context.Context, limit int, offset int) ([]Session, error)
	Update(ctx context.Context, session *Session) error
	Delete(ctx context.Context, id uuid.UUID) error
}
