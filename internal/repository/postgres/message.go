package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/calderhq/sidechat/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// MessageRepository implements domain.MessageRepository
type MessageRepository struct {
	db *DB
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db *DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create inserts a message and advances the owning session's message count
// and updated_at in the same transaction, so no observer can see one
// without the other. User messages are rejected on closed sessions;
// system bookkeeping writes are still allowed there.
func (r *MessageRepository) Create(ctx context.Context, message *domain.Message) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var status domain.SessionStatus
	err = tx.QueryRow(ctx,
		`SELECT status FROM sessions WHERE id = $1 FOR UPDATE`,
		message.SessionID,
	).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("failed to lock session: %w", err)
	}
	if status == domain.SessionClosed && message.Role == domain.RoleUser {
		return domain.ErrSessionClosed
	}

	var metadataJSON []byte
	if message.Metadata != nil {
		metadataJSON, err = json.Marshal(message.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO messages (id, session_id, role, content, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		message.ID,
		message.SessionID,
		message.Role,
		message.Content,
		metadataJSON,
		message.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE sessions
		SET message_count = message_count + 1, updated_at = $2
		WHERE id = $1
	`, message.SessionID, message.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to advance message count: %w", err)
	}

	return tx.Commit(ctx)
}

// ListBySession retrieves one chronological page of a session's messages.
// Ordering by the identity column keeps the sequence stable across pages,
// so every message stays reachable however far back it is.
func (r *MessageRepository) ListBySession(ctx context.Context, sessionID uuid.UUID, limit, offset int) ([]domain.Message, error) {
	query := `
		SELECT id, session_id, role, content, metadata, created_at
		FROM messages
		WHERE session_id = $1
		ORDER BY created_at ASC, seq ASC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Pool.Query(ctx, query, sessionID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// Recent retrieves the latest N messages for a session in chronological
// order, ties broken by insertion order.
func (r *MessageRepository) Recent(ctx context.Context, sessionID uuid.UUID, limit int) ([]domain.Message, error) {
	query := `
		SELECT id, session_id, role, content, metadata, created_at
		FROM messages
		WHERE session_id = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT $2
	`
	rows, err := r.db.Pool.Query(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent messages: %w", err)
	}
	defer rows.Close()

	messages, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}

	// Reverse to return chronological order (oldest first) because we
	// ordered by DESC to get the latest N messages.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

func scanMessages(rows pgx.Rows) ([]domain.Message, error) {
	var messages []domain.Message
	for rows.Next() {
		var m domain.Message
		var metadataJSON []byte
		if err := rows.Scan(
			&m.ID,
			&m.SessionID,
			&m.Role,
			&m.Content,
			&metadataJSON,
			&m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		if len(metadataJSON) > 0 {
			m.Metadata = &domain.MessageMetadata{}
			if err := json.Unmarshal(metadataJSON, m.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return messages, nil
}

// UpdateMetadata replaces a message's metadata without touching content,
// role or timestamp.
func (r *MessageRepository) UpdateMetadata(ctx context.Context, messageID uuid.UUID, metadata *domain.MessageMetadata) error {
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE messages SET metadata = $2 WHERE id = $1`,
		messageID, metadataJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to update metadata: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CreateAttachment stores an image attachment row for a message
func (r *MessageRepository) CreateAttachment(ctx context.Context, attachment *domain.Attachment) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO message_attachments (id, message_id, mime_type, data, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`,
		attachment.ID,
		attachment.MessageID,
		attachment.MimeType,
		attachment.Data,
		attachment.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create attachment: %w", err)
	}
	return nil
}
