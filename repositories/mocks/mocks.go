// Package mocks provides testify mocks of the repository interfaces for
// service and handler tests.
package mocks

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/vedaai/veda-backend/models"
	"github.com/vedaai/veda-backend/repositories"
)

// TxManager runs fn directly with no database and records the identities
// transactions were opened for. Set Err to make Begin and friends fail.
type TxManager struct {
	Err error

	mu         sync.Mutex
	UserScope  []uuid.UUID
	Service    int
	RolledBack int
}

type tx struct{ ctx context.Context }

func (t *tx) Commit() error            { return nil }
func (t *tx) Rollback() error          { return nil }
func (t *tx) Context() context.Context { return t.ctx }

func (m *TxManager) Begin(ctx context.Context) (repositories.Transaction, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return &tx{ctx: ctx}, nil
}

func (m *TxManager) InTransaction(ctx context.Context, fn func(ctx context.Context, tx repositories.Transaction) error) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	m.Service++
	m.mu.Unlock()
	return m.finish(fn(ctx, &tx{ctx: ctx}))
}

func (m *TxManager) InUserTransaction(ctx context.Context, userID uuid.UUID, fn func(ctx context.Context, tx repositories.Transaction) error) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	m.UserScope = append(m.UserScope, userID)
	m.mu.Unlock()
	return m.finish(fn(ctx, &tx{ctx: ctx}))
}

func (m *TxManager) finish(err error) error {
	if err != nil {
		m.mu.Lock()
		m.RolledBack++
		m.mu.Unlock()
	}
	return err
}

// UserRepository mocks repositories.UserRepository
type UserRepository struct{ mock.Mock }

func (m *UserRepository) CreateIfAbsent(ctx context.Context, user *models.User) (bool, error) {
	args := m.Called(ctx, user)
	return args.Bool(0), args.Error(1)
}

func (m *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if u := args.Get(0); u != nil {
		return u.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if u := args.Get(0); u != nil {
		return u.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *UserRepository) Update(ctx context.Context, user *models.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *UserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

// ChatRepository mocks repositories.ChatRepository
type ChatRepository struct{ mock.Mock }

func (m *ChatRepository) Create(ctx context.Context, chat *models.Chat) error {
	return m.Called(ctx, chat).Error(0)
}

func (m *ChatRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Chat, error) {
	args := m.Called(ctx, id)
	if c := args.Get(0); c != nil {
		return c.(*models.Chat), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ChatRepository) ListByUser(ctx context.Context, userID uuid.UUID, includeArchived bool, limit, offset int) ([]*models.Chat, error) {
	args := m.Called(ctx, userID, includeArchived, limit, offset)
	if c := args.Get(0); c != nil {
		return c.([]*models.Chat), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ChatRepository) Update(ctx context.Context, chat *models.Chat) error {
	return m.Called(ctx, chat).Error(0)
}

func (m *ChatRepository) SetTitleIfDefault(ctx context.Context, id uuid.UUID, title string) (bool, error) {
	args := m.Called(ctx, id, title)
	return args.Bool(0), args.Error(1)
}

func (m *ChatRepository) Touch(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *ChatRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

// MessageRepository mocks repositories.MessageRepository
type MessageRepository struct{ mock.Mock }

func (m *MessageRepository) Create(ctx context.Context, msg *models.Message) error {
	return m.Called(ctx, msg).Error(0)
}

func (m *MessageRepository) ListByChat(ctx context.Context, chatID uuid.UUID, limit, offset int) ([]*models.Message, error) {
	args := m.Called(ctx, chatID, limit, offset)
	if msgs := args.Get(0); msgs != nil {
		return msgs.([]*models.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MessageRepository) ListRecent(ctx context.Context, chatID uuid.UUID, limit int) ([]*models.Message, error) {
	args := m.Called(ctx, chatID, limit)
	if fn, ok := args.Get(0).(func(context.Context, uuid.UUID, int) []*models.Message); ok {
		return fn(ctx, chatID, limit), args.Error(1)
	}
	if msgs := args.Get(0); msgs != nil {
		return msgs.([]*models.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MessageRepository) CountByChat(ctx context.Context, chatID uuid.UUID) (int, error) {
	args := m.Called(ctx, chatID)
	return args.Int(0), args.Error(1)
}

// SettingsRepository mocks repositories.SettingsRepository
type SettingsRepository struct{ mock.Mock }

func (m *SettingsRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.UserSettings, error) {
	args := m.Called(ctx, userID)
	if s := args.Get(0); s != nil {
		return s.(*models.UserSettings), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *SettingsRepository) GetForUpdate(ctx context.Context, userID uuid.UUID) (*models.UserSettings, error) {
	args := m.Called(ctx, userID)
	if s := args.Get(0); s != nil {
		return s.(*models.UserSettings), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *SettingsRepository) SetUsage(ctx context.Context, userID uuid.UUID, used int, day time.Time) error {
	return m.Called(ctx, userID, used, day).Error(0)
}

func (m *SettingsRepository) UpdatePreferences(ctx context.Context, userID uuid.UUID, prefs json.RawMessage) error {
	return m.Called(ctx, userID, prefs).Error(0)
}

// Repositories bundles fresh mocks and a passthrough transaction manager
type Repositories struct {
	Users    *UserRepository
	Chats    *ChatRepository
	Messages *MessageRepository
	Settings *SettingsRepository
	Tx       *TxManager
}

// New returns a full set of mocks
func New() *Repositories {
	return &Repositories{
		Users:    &UserRepository{},
		Chats:    &ChatRepository{},
		Messages: &MessageRepository{},
		Settings: &SettingsRepository{},
		Tx:       &TxManager{},
	}
}

// Repos adapts the mocks to repositories.Repositories
func (r *Repositories) Repos() *repositories.Repositories {
	return &repositories.Repositories{
		Users:    r.Users,
		Chats:    r.Chats,
		Messages: r.Messages,
		Settings: r.Settings,
	}
}

// AssertExpectations checks every mock
func (r *Repositories) AssertExpectations(t mock.TestingT) {
	r.Users.AssertExpectations(t)
	r.Chats.AssertExpectations(t)
	r.Messages.AssertExpectations(t)
	r.Settings.AssertExpectations(t)
}
