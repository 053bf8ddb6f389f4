package service

import (
	"context"
	"fmt"
	"time"

	"github.com/calderhq/sidechat/internal/domain"
	"github.com/calderhq/sidechat/internal/llm"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	defaultListLimit = 50
	maxListLimit     = 100
)

// SessionService handles session lifecycle operations
type SessionService struct {
	sessionRepo domain.SessionRepository
	registry    *llm.Registry
}

// NewSessionService creates a new session service
func NewSessionService(sessionRepo domain.SessionRepository, registry *llm.Registry) *SessionService {
	return &SessionService{
		sessionRepo: sessionRepo,
		registry:    registry,
	}
}

// SessionCreate carries the fields accepted when opening a session
type SessionCreate struct {
	Name         string             `json:"name" validate:"required,max=200"`
	Type         domain.SessionType `json:"type" validate:"required"`
	Model        string             `json:"model"`
	SystemPrompt string             `json:"system_prompt"`
	CustomAgent  string             `json:"custom_agent"`
}

// Create opens a new session. Sessions start active with zero messages;
// an omitted model resolves to the catalog default at creation time.
func (s *SessionService) Create(ctx context.Context, input SessionCreate) (*domain.Session, error) {
	if !domain.ValidSessionType(input.Type) {
		return nil, domain.NewValidationError("type", fmt.Sprintf("unknown session type %q", input.Type))
	}

	model := input.Model
	if model == "" {
		model = s.registry.DefaultModelID(ctx)
	}

	now := time.Now()
	session := &domain.Session{
		ID:           uuid.New(),
		Name:         input.Name,
		Type:         input.Type,
		Status:       domain.SessionActive,
		Model:        model,
		SystemPrompt: input.SystemPrompt,
		CustomAgent:  input.CustomAgent,
		MessageCount: 0,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	log.Info().
		Str("session_id", session.ID.String()).
		Str("type", string(session.Type)).
		Str("model", session.Model).
		Msg("session created")

	return session, nil
}

// Get retrieves a session by ID
func (s *SessionService) Get(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	return s.sessionRepo.Get(ctx, id)
}

// List retrieves sessions ordered by most recent activity
func (s *SessionService) List(ctx context.Context, limit, offset int) ([]domain.Session, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	sessions, err := s.sessionRepo.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	if sessions == nil {
		sessions = []domain.Session{}
	}
	return sessions, nil
}

// Update applies a partial update. Closing an already closed session is a
// no-op success; reopening a closed session is allowed by setting it back
// to active.
func (s *SessionService) Update(ctx context.Context, id uuid.UUID, update domain.SessionUpdate) (*domain.Session, error) {
	session, err := s.sessionRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	changed := false
	if update.Name != nil && *update.Name != session.Name {
		if *update.Name == "" {
			return nil, domain.NewValidationError("name", "must not be empty")
		}
		session.Name = *update.Name
		changed = true
	}
	if update.Status != nil && *update.Status != session.Status {
		if !domain.ValidSessionStatus(*update.Status) {
			return nil, domain.NewValidationError("status", fmt.Sprintf("unknown status %q", *update.Status))
		}
		session.Status = *update.Status
		changed = true
	}

	if !changed {
		return session, nil
	}

	session.UpdatedAt = time.Now()
	if err := s.sessionRepo.Update(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Delete removes a session and all of its messages. Deleting a session
// that does not exist is not an error.
func (s *SessionService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.sessionRepo.Delete(ctx, id)
}
