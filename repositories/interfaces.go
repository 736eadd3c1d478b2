package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/vedaai/veda-backend/models"
)

var (
	// ErrNotFound is returned when a row does not exist or is hidden by row-level security
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned when a write violates a unique constraint
	ErrConflict = errors.New("record already exists")
)

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction
	// Automatically commits if function succeeds, rolls back on error
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error

	// InUserTransaction is InTransaction with row-level security active for userID.
	// Every statement inside fn only sees rows owned by that identity.
	InUserTransaction(ctx context.Context, userID uuid.UUID, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns the transaction context
	Context() context.Context
}

// UserRepository handles user data operations
type UserRepository interface {
	// CreateIfAbsent inserts a user and reports false when the id already
	// exists. The signup trigger creates the settings row. An email held by
	// another account is still ErrConflict.
	CreateIfAbsent(ctx context.Context, user *models.User) (bool, error)

	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)

	// GetByEmail retrieves a user by email
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// Update updates the mutable profile fields
	Update(ctx context.Context, user *models.User) error

	// Delete deletes a user along with their chats, messages and settings
	Delete(ctx context.Context, id uuid.UUID) error
}

// ChatRepository handles chat data operations
type ChatRepository interface {
	Create(ctx context.Context, chat *models.Chat) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Chat, error)

	// ListByUser returns the user's chats, most recently updated first
	ListByUser(ctx context.Context, userID uuid.UUID, includeArchived bool, limit, offset int) ([]*models.Chat, error)

	Update(ctx context.Context, chat *models.Chat) error

	// SetTitleIfDefault writes only the title, and only while the chat still
	// has the default one. It reports whether a row changed.
	SetTitleIfDefault(ctx context.Context, id uuid.UUID, title string) (bool, error)

	// Touch bumps updated_at so the chat sorts to the top of the list
	Touch(ctx context.Context, id uuid.UUID) error

	Delete(ctx context.Context, id uuid.UUID) error
}

// MessageRepository handles message data operations. Messages are never updated.
type MessageRepository interface {
	Create(ctx context.Context, msg *models.Message) error

	// ListByChat returns messages in chronological order
	ListByChat(ctx context.Context, chatID uuid.UUID, limit, offset int) ([]*models.Message, error)

	// ListRecent returns the newest limit messages, in chronological order
	ListRecent(ctx context.Context, chatID uuid.UUID, limit int) ([]*models.Message, error)

	CountByChat(ctx context.Context, chatID uuid.UUID) (int, error)
}

// SettingsRepository handles user_settings data operations
type SettingsRepository interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.UserSettings, error)

	// GetForUpdate reads the row with a row lock held until the transaction ends
	GetForUpdate(ctx context.Context, userID uuid.UUID) (*models.UserSettings, error)

	// SetUsage stores the counter and the day it applies to
	SetUsage(ctx context.Context, userID uuid.UUID, used int, day time.Time) error

	UpdatePreferences(ctx context.Context, userID uuid.UUID, prefs json.RawMessage) error
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Users    UserRepository
	Chats    ChatRepository
	Messages MessageRepository
	Settings SettingsRepository
}
