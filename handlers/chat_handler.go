package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/vedaai/veda-backend/models"
	"github.com/vedaai/veda-backend/services/chat"
	"github.com/vedaai/veda-backend/utils"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// ChatService defines the chat operations the handler needs
type ChatService interface {
	CreateChat(ctx context.Context, userID uuid.UUID, title string) (*models.Chat, error)
	ListChats(ctx context.Context, userID uuid.UUID, in chat.ListChatsInput) ([]*models.Chat, error)
	GetChat(ctx context.Context, userID, chatID uuid.UUID) (*models.Chat, error)
	UpdateChat(ctx context.Context, userID, chatID uuid.UUID, in chat.UpdateChatInput) (*models.Chat, error)
	DeleteChat(ctx context.Context, userID, chatID uuid.UUID) error
	ListMessages(ctx context.Context, userID, chatID uuid.UUID, limit, offset int) ([]*models.Message, error)
	SendMessage(ctx context.Context, userID, chatID uuid.UUID, in chat.SendMessageInput) (*chat.SendMessageResult, error)
}

// CreateChatRequest is the body of POST /chats. Title is optional.
type CreateChatRequest struct {
	Title string `json:"title" validate:"max=200"`
}

// ChatHandler handles chat and message endpoints
type ChatHandler struct {
	service ChatService
	logger  *zap.Logger
}

// NewChatHandler creates a new ChatHandler
func NewChatHandler(service ChatService, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		service: service,
		logger:  logger,
	}
}

// HandleCreateChat handles POST /api/v1/chats
func (h *ChatHandler) HandleCreateChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req CreateChatRequest
	if r.ContentLength != 0 {
		if err := utils.DecodeJSON(w, r, &req); err != nil {
			HandleValidationError(w, err, h.logger)
			return
		}
	}
	if err := utils.ValidateStruct(req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	c, err := h.service.CreateChat(r.Context(), userID, req.Title)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteCreated(w, c)
}

// HandleListChats handles GET /api/v1/chats
func (h *ChatHandler) HandleListChats(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	limit, offset, err := pageParams(r)
	if err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	chats, err := h.service.ListChats(r.Context(), userID, chat.ListChatsInput{
		IncludeArchived: r.URL.Query().Get("include_archived") == "true",
		Limit:           limit,
		Offset:          offset,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	if chats == nil {
		chats = []*models.Chat{}
	}
	_ = utils.WriteOK(w, chats)
}

// HandleGetChat handles GET /api/v1/chats/{id}
func (h *ChatHandler) HandleGetChat(w http.ResponseWriter, r *http.Request) {
	userID, chatID, ok := h.chatParams(w, r)
	if !ok {
		return
	}

	c, err := h.service.GetChat(r.Context(), userID, chatID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, c)
}

// HandleUpdateChat handles PATCH /api/v1/chats/{id}
func (h *ChatHandler) HandleUpdateChat(w http.ResponseWriter, r *http.Request) {
	userID, chatID, ok := h.chatParams(w, r)
	if !ok {
		return
	}

	var req chat.UpdateChatInput
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	c, err := h.service.UpdateChat(r.Context(), userID, chatID, req)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, c)
}

// HandleDeleteChat handles DELETE /api/v1/chats/{id}
func (h *ChatHandler) HandleDeleteChat(w http.ResponseWriter, r *http.Request) {
	userID, chatID, ok := h.chatParams(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteChat(r.Context(), userID, chatID); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	utils.WriteNoContent(w)
}

// HandleListMessages handles GET /api/v1/chats/{id}/messages
func (h *ChatHandler) HandleListMessages(w http.ResponseWriter, r *http.Request) {
	userID, chatID, ok := h.chatParams(w, r)
	if !ok {
		return
	}

	limit, offset, err := pageParams(r)
	if err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	msgs, err := h.service.ListMessages(r.Context(), userID, chatID, limit, offset)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	if msgs == nil {
		msgs = []*models.Message{}
	}
	_ = utils.WriteOK(w, msgs)
}

// HandleSendMessage handles POST /api/v1/chats/{id}/messages
func (h *ChatHandler) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	userID, chatID, ok := h.chatParams(w, r)
	if !ok {
		return
	}

	var req chat.SendMessageInput
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	result, err := h.service.SendMessage(r.Context(), userID, chatID, req)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteCreated(w, result)
}

func (h *ChatHandler) chatParams(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := requireUser(w, r)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	chatID, err := utils.ParseUUID(chi.URLParam(r, "id"), "id")
	if err != nil {
		HandleValidationError(w, err, h.logger)
		return uuid.Nil, uuid.Nil, false
	}
	return userID, chatID, true
}

// pageParams reads limit and offset, clamping limit to maxPageSize
func pageParams(r *http.Request) (int, int, error) {
	limit, err := utils.QueryInt(r, "limit", defaultPageSize)
	if err != nil {
		return 0, 0, err
	}
	offset, err := utils.QueryInt(r, "offset", 0)
	if err != nil {
		return 0, 0, err
	}
	if limit == 0 {
		return 0, 0, &utils.ValidationError{
			Message: "Validation failed",
			Fields:  map[string]string{"limit": "limit must be positive"},
		}
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return limit, offset, nil
}
