package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/vedaai/veda-backend/models"
	"github.com/vedaai/veda-backend/repositories"
	"go.uber.org/zap"
)

const messageColumns = `id, chat_id, role, content, model_used, tokens_used, created_at`

// MessageRepository implements the repositories.MessageRepository interface
type MessageRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db *DB, logger *zap.Logger) repositories.MessageRepository {
	return &MessageRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a message
func (r *MessageRepository) Create(ctx context.Context, msg *models.Message) error {
	query := `
		INSERT INTO messages (id, chat_id, role, content, model_used, tokens_used, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		msg.ID,
		msg.ChatID,
		msg.Role,
		msg.Content,
		msg.ModelUsed,
		msg.TokensUsed,
		msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", translateError(err))
	}

	r.logger.Debug("message created",
		zap.String("id", msg.ID.String()),
		zap.String("chat_id", msg.ChatID.String()),
		zap.String("role", string(msg.Role)))
	return nil
}

// ListByChat returns a page of messages, oldest first
func (r *MessageRepository) ListByChat(ctx context.Context, chatID uuid.UUID, limit, offset int) ([]*models.Message, error) {
	limit, offset = clampPage(limit, offset)
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE chat_id = $1
		ORDER BY created_at ASC
		LIMIT $2 OFFSET $3
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, chatID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// ListRecent returns the newest limit messages, oldest first
func (r *MessageRepository) ListRecent(ctx context.Context, chatID uuid.UUID, limit int) ([]*models.Message, error) {
	if limit <= 0 {
		return []*models.Message{}, nil
	}
	query := `
		SELECT ` + messageColumns + ` FROM (
			SELECT ` + messageColumns + `
			FROM messages
			WHERE chat_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// CountByChat returns the number of messages in a chat
func (r *MessageRepository) CountByChat(ctx context.Context, chatID uuid.UUID) (int, error) {
	executor := GetExecutor(ctx, r.db)
	var count int
	if err := executor.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE chat_id = $1`, chatID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return count, nil
}

func scanMessages(rows *sql.Rows) ([]*models.Message, error) {
	messages := make([]*models.Message, 0)
	for rows.Next() {
		msg := &models.Message{}
		if err := rows.Scan(
			&msg.ID,
			&msg.ChatID,
			&msg.Role,
			&msg.Content,
			&msg.ModelUsed,
			&msg.TokensUsed,
			&msg.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating message rows: %w", err)
	}

	return messages, nil
}
