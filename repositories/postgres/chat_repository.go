package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/vedaai/veda-backend/models"
	"github.com/vedaai/veda-backend/repositories"
	"go.uber.org/zap"
)

const chatColumns = `id, user_id, title, is_archived, created_at, updated_at`

// ChatRepository implements the repositories.ChatRepository interface
type ChatRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewChatRepository creates a new chat repository
func NewChatRepository(db *DB, logger *zap.Logger) repositories.ChatRepository {
	return &ChatRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new chat
func (r *ChatRepository) Create(ctx context.Context, chat *models.Chat) error {
	query := `
		INSERT INTO chats (id, user_id, title, is_archived, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		chat.ID,
		chat.UserID,
		chat.Title,
		chat.IsArchived,
		chat.CreatedAt,
		chat.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create chat: %w", translateError(err))
	}

	r.logger.Debug("chat created",
		zap.String("id", chat.ID.String()),
		zap.String("user_id", chat.UserID.String()))
	return nil
}

// GetByID retrieves a chat by ID
func (r *ChatRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Chat, error) {
	query := `SELECT ` + chatColumns + ` FROM chats WHERE id = $1`

	executor := GetExecutor(ctx, r.db)
	chat := &models.Chat{}

	err := executor.QueryRowContext(ctx, query, id).Scan(
		&chat.ID,
		&chat.UserID,
		&chat.Title,
		&chat.IsArchived,
		&chat.CreatedAt,
		&chat.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get chat: %w", translateError(err))
	}

	return chat, nil
}

// ListByUser retrieves a user's chats ordered by last activity
func (r *ChatRepository) ListByUser(ctx context.Context, userID uuid.UUID, includeArchived bool, limit, offset int) ([]*models.Chat, error) {
	limit, offset = clampPage(limit, offset)
	query := `
		SELECT ` + chatColumns + `
		FROM chats
		WHERE user_id = $1 AND ($2 OR NOT is_archived)
		ORDER BY updated_at DESC
		LIMIT $3 OFFSET $4
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, userID, includeArchived, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query chats: %w", err)
	}
	defer rows.Close()

	chats := make([]*models.Chat, 0)
	for rows.Next() {
		chat := &models.Chat{}
		if err := rows.Scan(
			&chat.ID,
			&chat.UserID,
			&chat.Title,
			&chat.IsArchived,
			&chat.CreatedAt,
			&chat.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan chat: %w", err)
		}
		chats = append(chats, chat)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chat rows: %w", err)
	}

	return chats, nil
}

// Update updates the chat title and archive flag
func (r *ChatRepository) Update(ctx context.Context, chat *models.Chat) error {
	query := `
		UPDATE chats
		SET title = $2,
		    is_archived = $3,
		    updated_at = $4
		WHERE id = $1
	`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query,
		chat.ID,
		chat.Title,
		chat.IsArchived,
		chat.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update chat: %w", err)
	}

	if err := requireRow(result); err != nil {
		return fmt.Errorf("failed to update chat %s: %w", chat.ID, err)
	}

	r.logger.Debug("chat updated", zap.String("id", chat.ID.String()))
	return nil
}

// SetTitleIfDefault renames a chat that still carries the default title.
// Only the title column is written, so a concurrent archive is not undone.
func (r *ChatRepository) SetTitleIfDefault(ctx context.Context, id uuid.UUID, title string) (bool, error) {
	query := `
		UPDATE chats
		SET title = $2,
		    updated_at = now()
		WHERE id = $1 AND title = $3
	`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, id, title, models.DefaultChatTitle)
	if err != nil {
		return false, fmt.Errorf("failed to set chat title: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

// Touch bumps the chat's updated_at to now
func (r *ChatRepository) Touch(ctx context.Context, id uuid.UUID) error {
	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, `UPDATE chats SET updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to touch chat: %w", err)
	}
	return requireRow(result)
}

// Delete deletes a chat and, through the foreign key, its messages
func (r *ChatRepository) Delete(ctx context.Context, id uuid.UUID) error {
	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, `DELETE FROM chats WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete chat: %w", err)
	}

	if err := requireRow(result); err != nil {
		return fmt.Errorf("failed to delete chat %s: %w", id, err)
	}

	r.logger.Debug("chat deleted", zap.String("id", id.String()))
	return nil
}
