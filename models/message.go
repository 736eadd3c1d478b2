package models

import (
	"time"

	"github.com/google/uuid"
)

// MessageRole identifies the author of a message
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// Message is a single immutable turn within a chat
type Message struct {
	ID         uuid.UUID   `json:"id" db:"id"`
	ChatID     uuid.UUID   `json:"chat_id" db:"chat_id"`
	Role       MessageRole `json:"role" db:"role"`
	Content    string      `json:"content" db:"content"`
	ModelUsed  *string     `json:"model_used,omitempty" db:"model_used"`
	TokensUsed *int        `json:"tokens_used,omitempty" db:"tokens_used"`
	CreatedAt  time.Time   `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the Message model
func (Message) TableName() string {
	return "messages"
}

// NewUserMessage creates a message authored by the user
func NewUserMessage(chatID uuid.UUID, content string) *Message {
	return &Message{
		ID:        uuid.New(),
		ChatID:    chatID,
		Role:      MessageRoleUser,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

// NewAssistantMessage creates a model reply. modelUsed is recorded as "provider/model".
func NewAssistantMessage(chatID uuid.UUID, content, modelUsed string, tokensUsed int) *Message {
	msg := &Message{
		ID:        uuid.New(),
		ChatID:    chatID,
		Role:      MessageRoleAssistant,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if modelUsed != "" {
		msg.ModelUsed = &modelUsed
	}
	if tokensUsed > 0 {
		msg.TokensUsed = &tokensUsed
	}
	return msg
}
