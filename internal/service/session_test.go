package service

import (
	"context"
	"testing"

	"github.com/calderhq/sidechat/internal/domain"
	"github.com/calderhq/sidechat/internal/llm"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newSessionService(repo *MockSessionRepository) *SessionService {
	// A registry over an empty router resolves the hardcoded fallback model.
	registry := llm.NewRegistry(llm.NewRouter("openai"), "", nil)
	return NewSessionService(repo, registry)
}

func TestSessionService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("success with defaults", func(t *testing.T) {
		repo := new(MockSessionRepository)
		repo.On("Create", ctx, mock.AnythingOfType("*domain.Session")).Return(nil)
		svc := newSessionService(repo)

		session, err := svc.Create(ctx, SessionCreate{Name: "infra debug", Type: domain.SessionTypeDevops})

		assert.NoError(t, err)
		assert.Equal(t, domain.SessionActive, session.Status)
		assert.Equal(t, 0, session.MessageCount)
		assert.Equal(t, llm.FallbackModel.ID, session.Model)
		assert.NotEqual(t, uuid.Nil, session.ID)
		repo.AssertExpectations(t)
	})

	t.Run("explicit model kept", func(t *testing.T) {
		repo := new(MockSessionRepository)
		repo.On("Create", ctx, mock.AnythingOfType("*domain.Session")).Return(nil)
		svc := newSessionService(repo)

		session, err := svc.Create(ctx, SessionCreate{
			Name:  "draft blog post",
			Type:  domain.SessionTypeWriting,
			Model: "claude-3-5-sonnet",
		})

		assert.NoError(t, err)
		assert.Equal(t, "claude-3-5-sonnet", session.Model)
	})

	t.Run("unknown type rejected", func(t *testing.T) {
		repo := new(MockSessionRepository)
		svc := newSessionService(repo)

		_, err := svc.Create(ctx, SessionCreate{Name: "x", Type: "gardening"})

		assert.Error(t, err)
		assert.True(t, domain.IsValidation(err))
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestSessionService_Update(t *testing.T) {
	ctx := context.Background()
	sessionID := uuid.New()

	t.Run("close is idempotent", func(t *testing.T) {
		repo := new(MockSessionRepository)
		repo.On("Get", ctx, sessionID).Return(&domain.Session{
			ID:     sessionID,
			Name:   "done",
			Type:   domain.SessionTypeGeneral,
			Status: domain.SessionClosed,
		}, nil)
		svc := newSessionService(repo)

		closed := domain.SessionClosed
		session, err := svc.Update(ctx, sessionID, domain.SessionUpdate{Status: &closed})

		assert.NoError(t, err)
		assert.Equal(t, domain.SessionClosed, session.Status)
		repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("status transition persists", func(t *testing.T) {
		repo := new(MockSessionRepository)
		repo.On("Get", ctx, sessionID).Return(&domain.Session{
			ID:     sessionID,
			Status: domain.SessionActive,
		}, nil)
		repo.On("Update", ctx, mock.AnythingOfType("*domain.Session")).Return(nil)
		svc := newSessionService(repo)

		paused := domain.SessionPaused
		session, err := svc.Update(ctx, sessionID, domain.SessionUpdate{Status: &paused})

		assert.NoError(t, err)
		assert.Equal(t, domain.SessionPaused, session.Status)
		repo.AssertExpectations(t)
	})

	t.Run("invalid status rejected", func(t *testing.T) {
		repo := new(MockSessionRepository)
		repo.On("Get", ctx, sessionID).Return(&domain.Session{
			ID:     sessionID,
			Status: domain.SessionActive,
		}, nil)
		svc := newSessionService(repo)

		bad := domain.SessionStatus("hibernating")
		_, err := svc.Update(ctx, sessionID, domain.SessionUpdate{Status: &bad})

		assert.True(t, domain.IsValidation(err))
	})

	t.Run("unknown session", func(t *testing.T) {
		repo := new(MockSessionRepository)
		repo.On("Get", ctx, sessionID).Return(nil, domain.ErrNotFound)
		svc := newSessionService(repo)

		name := "renamed"
		_, err := svc.Update(ctx, sessionID, domain.SessionUpdate{Name: &name})

		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestSessionService_List(t *testing.T) {
	ctx := context.Background()
	repo := new(MockSessionRepository)
	repo.On("List", ctx, defaultListLimit, 0).Return([]domain.Session(nil), nil)
	svc := newSessionService(repo)

	sessions, err := svc.List(ctx, 0, -3)

	assert.NoError(t, err)
	assert.NotNil(t, sessions)
	assert.Empty(t, sessions)
	repo.AssertExpectations(t)
}

func TestSessionService_Delete(t *testing.T) {
	ctx := context.Background()
	sessionID := uuid.New()
	repo := new(MockSessionRepository)
	repo.On("Delete", ctx, sessionID).Return(nil)
	svc := newSessionService(repo)

	assert.NoError(t, svc.Delete(ctx, sessionID))
	repo.AssertExpectations(t)
}
