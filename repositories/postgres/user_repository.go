package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/vedaai/veda-backend/models"
	"github.com/vedaai/veda-backend/repositories"
	"go.uber.org/zap"
)

const userColumns = `id, email, name, avatar_url, auth_provider, is_guest, created_at, updated_at`

// UserRepository implements the repositories.UserRepository interface
type UserRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB, logger *zap.Logger) repositories.UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

// CreateIfAbsent inserts a user unless a row with the same id exists.
// A conflicting insert from a concurrent transaction is waited for, so a
// false result means the row is readable once the statement returns.
func (r *UserRepository) CreateIfAbsent(ctx context.Context, user *models.User) (bool, error) {
	query := `
		INSERT INTO users (id, email, name, avatar_url, auth_provider, is_guest, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.Name,
		user.AvatarURL,
		user.AuthProvider,
		user.IsGuest,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to create user: %w", translateError(err))
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	r.logger.Debug("user created", zap.String("id", user.ID.String()))
	return true, nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.getOne(ctx, query, email)
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg interface{}) (*models.User, error) {
	executor := GetExecutor(ctx, r.db)
	user := &models.User{}

	err := executor.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.AvatarURL,
		&user.AuthProvider,
		&user.IsGuest,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", translateError(err))
	}

	return user, nil
}

// Update writes the profile and identity fields
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users
		SET email = $2,
		    name = $3,
		    avatar_url = $4,
		    auth_provider = $5,
		    is_guest = $6,
		    updated_at = $7
		WHERE id = $1
	`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.Name,
		user.AvatarURL,
		user.AuthProvider,
		user.IsGuest,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", translateError(err))
	}

	if err := requireRow(result); err != nil {
		return fmt.Errorf("failed to update user %s: %w", user.ID, err)
	}

	r.logger.Debug("user updated", zap.String("id", user.ID.String()))
	return nil
}

// Delete deletes a user. Chats, messages and settings go with it via ON DELETE CASCADE.
func (r *UserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM users WHERE id = $1`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	if err := requireRow(result); err != nil {
		return fmt.Errorf("failed to delete user %s: %w", id, err)
	}

	r.logger.Debug("user deleted", zap.String("id", id.String()))
	return nil
}
