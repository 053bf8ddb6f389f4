package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/calderhq/sidechat/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SessionRepository implements domain.SessionRepository
type SessionRepository struct {
	db *DB
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, session *domain.Session) error {
	query := `
		INSERT INTO sessions (id, name, type, status, model, system_prompt, custom_agent, message_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.Pool.Exec(ctx, query,
		session.ID,
		session.Name,
		session.Type,
		session.Status,
		session.Model,
		session.SystemPrompt,
		session.CustomAgent,
		session.MessageCount,
		session.CreatedAt,
		session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	query := `
		SELECT id, name, type, status, model, system_prompt, custom_agent, message_count, created_at, updated_at
		FROM sessions
		WHERE id = $1
	`
	var s domain.Session
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&s.ID,
		&s.Name,
		&s.Type,
		&s.Status,
		&s.Model,
		&s.SystemPrompt,
		&s.CustomAgent,
		&s.MessageCount,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &s, nil
}

func (r *SessionRepository) List(ctx context.Context, limit int, offset int) ([]domain.Session, error) {
	query := `
		SELECT id, name, type, status, model, system_prompt, custom_agent, message_count, created_at, updated_at
		FROM sessions
		ORDER BY updated_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.Pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		var s domain.Session
		if err := rows.Scan(
			&s.ID,
			&s.Name,
			&s.Type,
			&s.Status,
			&s.Model,
			&s.SystemPrompt,
			&s.CustomAgent,
			&s.MessageCount,
			&s.CreatedAt,
			&s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (r *SessionRepository) Update(ctx context.Context, session *domain.Session) error {
	query := `
		UPDATE sessions
		SET name = $1, status = $2, model = $3, system_prompt = $4, custom_agent = $5, updated_at = $6
		WHERE id = $7
	`
	tag, err := r.db.Pool.Exec(ctx, query,
		session.Name,
		session.Status,
		session.Model,
		session.SystemPrompt,
		session.CustomAgent,
		session.UpdatedAt,
		session.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete removes a session; messages and attachments go with it via
// ON DELETE CASCADE. Deleting a missing id is not an error.
func (r *SessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM sessions WHERE id = $1`
	_, err := r.db.Pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
