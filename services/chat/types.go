package chat

import (
	"github.com/vedaai/veda-backend/models"
	"github.com/vedaai/veda-backend/services/quota"
	"github.com/vedaai/veda-backend/services/routing"
)

// ListChatsInput filters and pages a chat listing
type ListChatsInput struct {
	IncludeArchived bool
	Limit           int
	Offset          int
}

// UpdateChatInput carries the fields a client may change. Nil leaves a field as is.
type UpdateChatInput struct {
	Title    *string `json:"title,omitempty" validate:"omitempty,max=200"`
	Archived *bool   `json:"is_archived,omitempty"`
}

// SendMessageInput is a user turn
type SendMessageInput struct {
	Content string `json:"content" validate:"max=32000"`

	// TaskType overrides classification when set
	TaskType string `json:"task_type,omitempty"`

	// ImageURL is an https URL or a data: URL sent to the vision route
	ImageURL string `json:"image_url,omitempty"`
}

// RouteInfo describes which candidate answered
type RouteInfo struct {
	Task     routing.TaskType  `json:"task"`
	Provider string            `json:"provider"`
	Model    string            `json:"model"`
	Fallback bool              `json:"fallback"`
	Failed   []routing.Attempt `json:"failed,omitempty"`
}

// SendMessageResult is the outcome of a successful SendMessage
type SendMessageResult struct {
	UserMessage      *models.Message `json:"user_message"`
	AssistantMessage *models.Message `json:"assistant_message"`
	Route            RouteInfo       `json:"route"`
	Quota            *quota.Usage    `json:"quota"`
}
