package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultChatTitle is used when a chat is created without a title
const DefaultChatTitle = "New Chat"

// MaxChatTitleLength bounds stored chat titles
const MaxChatTitleLength = 200

// Chat is a conversation owned by a single user
type Chat struct {
	ID         uuid.UUID `json:"id" db:"id"`
	UserID     uuid.UUID `json:"user_id" db:"user_id"`
	Title      string    `json:"title" db:"title"`
	IsArchived bool      `json:"is_archived" db:"is_archived"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the Chat model
func (Chat) TableName() string {
	return "chats"
}

// NewChat creates a new Chat for the user. An empty title becomes DefaultChatTitle.
func NewChat(userID uuid.UUID, title string) *Chat {
	now := time.Now().UTC()
	return &Chat{
		ID:        uuid.New(),
		UserID:    userID,
		Title:     NormalizeChatTitle(title),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NormalizeChatTitle trims whitespace, truncates long titles and applies the default
func NormalizeChatTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return DefaultChatTitle
	}
	runes := []rune(title)
	if len(runes) > MaxChatTitleLength {
		title = string(runes[:MaxChatTitleLength])
	}
	return title
}

// IsOwnedBy reports whether the chat belongs to userID
func (c *Chat) IsOwnedBy(userID uuid.UUID) bool {
	return c.UserID == userID
}
