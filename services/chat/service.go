package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/vedaai/veda-backend/models"
	"github.com/vedaai/veda-backend/repositories"
	"github.com/vedaai/veda-backend/services"
	"github.com/vedaai/veda-backend/services/providers"
	"github.com/vedaai/veda-backend/services/quota"
	"github.com/vedaai/veda-backend/services/routing"
	"go.uber.org/zap"
)

// imagePlaceholder is stored as the content of a user turn that only carried an image
const imagePlaceholder = "[image]"

// autoTitleRunes bounds a title derived from the first message
const autoTitleRunes = 60

// Router picks a model for a task and returns its answer
type Router interface {
	Route(ctx context.Context, task routing.TaskType, req *providers.ChatRequest) (*routing.Result, error)
}

// QuotaEnforcer consumes and refunds daily message allowance
type QuotaEnforcer interface {
	Consume(ctx context.Context, userID uuid.UUID) (*quota.Usage, error)
	Refund(ctx context.Context, userID uuid.UUID) error
}

// Config holds chat pipeline settings
type Config struct {
	// HistoryLimit is how many recent messages are sent with each turn, the new one included
	HistoryLimit int
	SystemPrompt string
}

// ChatService owns chats and runs the message pipeline
type ChatService struct {
	txMgr    repositories.TransactionManager
	chats    repositories.ChatRepository
	messages repositories.MessageRepository
	quota    QuotaEnforcer
	router   Router
	config   Config
	logger   *zap.Logger
}

// NewChatService creates a new ChatService instance
func NewChatService(
	txMgr repositories.TransactionManager,
	repos *repositories.Repositories,
	quota QuotaEnforcer,
	router Router,
	config Config,
	logger *zap.Logger,
) *ChatService {
	if config.HistoryLimit <= 0 {
		config.HistoryLimit = 20
	}
	return &ChatService{
		txMgr:    txMgr,
		chats:    repos.Chats,
		messages: repos.Messages,
		quota:    quota,
		router:   router,
		config:   config,
		logger:   logger,
	}
}

// CreateChat starts a new conversation
func (s *ChatService) CreateChat(ctx context.Context, userID uuid.UUID, title string) (*models.Chat, error) {
	chat := models.NewChat(userID, title)

	err := services.AsUser(ctx, s.txMgr, userID, func(ctx context.Context) error {
		return s.chats.Create(ctx, chat)
	})
	if err != nil {
		return nil, services.FromRepository(err, nil, nil, "failed to create chat")
	}

	s.logger.Info("chat created",
		zap.String("chat_id", chat.ID.String()),
		zap.String("user_id", userID.String()))
	return chat, nil
}

// ListChats returns the user's chats, most recently active first
func (s *ChatService) ListChats(ctx context.Context, userID uuid.UUID, in ListChatsInput) ([]*models.Chat, error) {
	chats, err := services.AsUserResult(ctx, s.txMgr, userID, func(ctx context.Context) ([]*models.Chat, error) {
		return s.chats.ListByUser(ctx, userID, in.IncludeArchived, in.Limit, in.Offset)
	})
	if err != nil {
		return nil, services.FromRepository(err, nil, nil, "failed to list chats")
	}
	return chats, nil
}

// GetChat returns a chat the user owns
func (s *ChatService) GetChat(ctx context.Context, userID, chatID uuid.UUID) (*models.Chat, error) {
	return services.AsUserResult(ctx, s.txMgr, userID, func(ctx context.Context) (*models.Chat, error) {
		return s.loadChat(ctx, userID, chatID)
	})
}

// UpdateChat renames or archives a chat
func (s *ChatService) UpdateChat(ctx context.Context, userID, chatID uuid.UUID, in UpdateChatInput) (*models.Chat, error) {
	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		return nil, services.ErrInvalidChatTitle.Wrap(nil).WithDetail("reason", "title cannot be blank")
	}

	return services.AsUserResult(ctx, s.txMgr, userID, func(ctx context.Context) (*models.Chat, error) {
		chat, err := s.loadChat(ctx, userID, chatID)
		if err != nil {
			return nil, err
		}
		if in.Title != nil {
			chat.Title = models.NormalizeChatTitle(*in.Title)
		}
		if in.Archived != nil {
			chat.IsArchived = *in.Archived
		}
		if err := s.chats.Update(ctx, chat); err != nil {
			return nil, services.FromRepository(err, services.ErrChatNotFound, nil, "failed to update chat")
		}
		return chat, nil
	})
}

// DeleteChat removes a chat and its messages
func (s *ChatService) DeleteChat(ctx context.Context, userID, chatID uuid.UUID) error {
	err := services.AsUser(ctx, s.txMgr, userID, func(ctx context.Context) error {
		if _, err := s.loadChat(ctx, userID, chatID); err != nil {
			return err
		}
		return s.chats.Delete(ctx, chatID)
	})
	if err != nil {
		return services.FromRepository(err, services.ErrChatNotFound, nil, "failed to delete chat")
	}

	s.logger.Info("chat deleted",
		zap.String("chat_id", chatID.String()),
		zap.String("user_id", userID.String()))
	return nil
}

// ListMessages returns a chat's messages in chronological order
func (s *ChatService) ListMessages(ctx context.Context, userID, chatID uuid.UUID, limit, offset int) ([]*models.Message, error) {
	return services.AsUserResult(ctx, s.txMgr, userID, func(ctx context.Context) ([]*models.Message, error) {
		if _, err := s.loadChat(ctx, userID, chatID); err != nil {
			return nil, err
		}
		msgs, err := s.messages.ListByChat(ctx, chatID, limit, offset)
		if err != nil {
			return nil, services.FromRepository(err, nil, nil, "failed to list messages")
		}
		return msgs, nil
	})
}

// turn is what the first transaction of SendMessage hands to routing
type turn struct {
	chat    *models.Chat
	message *models.Message
	history []*models.Message
	usage   *quota.Usage
}

// SendMessage stores the user's message, routes it to a model and stores the reply.
//
// Quota is taken before any provider is called and given back if routing fails
// terminally. The user message is kept either way. No transaction is open
// while providers are being called.
func (s *ChatService) SendMessage(ctx context.Context, userID, chatID uuid.UUID, in SendMessageInput) (*SendMessageResult, error) {
	content := strings.TrimSpace(in.Content)
	imageURL := strings.TrimSpace(in.ImageURL)
	if content == "" && imageURL == "" {
		return nil, services.ErrEmptyMessage
	}

	task := taskFor(in.TaskType, content, imageURL != "")

	t, err := services.AsUserResult(ctx, s.txMgr, userID, func(ctx context.Context) (*turn, error) {
		return s.beginTurn(ctx, userID, chatID, content, imageURL != "")
	})
	if err != nil {
		return nil, err
	}

	logger := s.logger.With(
		zap.String("chat_id", chatID.String()),
		zap.String("user_id", userID.String()),
		zap.String("task", string(task)),
	)

	req := s.buildRequest(userID, t.history, t.message.ID, imageURL)
	result, err := s.router.Route(ctx, task, req)
	if err != nil {
		s.refund(ctx, userID, logger)
		if errors.Is(err, routing.ErrAllProvidersFailed) {
			var exhausted *routing.ExhaustedError
			attempts := 0
			if errors.As(err, &exhausted) {
				attempts = len(exhausted.Attempts)
			}
			logger.Error("message could not be answered", zap.Int("attempts", attempts), zap.Error(err))
			return nil, services.ErrProvidersExhausted.Wrap(err).
				WithDetail("task", string(task)).
				WithDetail("attempts", attempts)
		}
		return nil, err
	}

	reply := models.NewAssistantMessage(chatID, result.Response.Content, result.Candidate.String(), result.Response.Usage.TotalTokens)

	err = services.AsUser(ctx, s.txMgr, userID, func(ctx context.Context) error {
		if err := s.messages.Create(ctx, reply); err != nil {
			return err
		}
		if t.chat.Title == models.DefaultChatTitle && content != "" {
			renamed, err := s.chats.SetTitleIfDefault(ctx, chatID, autoTitle(content))
			if err != nil {
				return err
			}
			if renamed {
				return nil
			}
		}
		return s.chats.Touch(ctx, chatID)
	})
	if err != nil {
		return nil, services.FromRepository(err, services.ErrChatNotFound, nil, "failed to store reply")
	}

	logger.Info("message answered",
		zap.String("candidate", result.Candidate.String()),
		zap.Bool("fallback", result.Fallback()),
		zap.Int("tokens", result.Response.Usage.TotalTokens))

	return &SendMessageResult{
		UserMessage:      t.message,
		AssistantMessage: reply,
		Route: RouteInfo{
			Task:     task,
			Provider: result.Candidate.Provider,
			Model:    result.Candidate.Model,
			Fallback: result.Fallback(),
			Failed:   result.Failed,
		},
		Quota: t.usage,
	}, nil
}

func (s *ChatService) beginTurn(ctx context.Context, userID, chatID uuid.UUID, content string, hasImage bool) (*turn, error) {
	chat, err := s.loadChat(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}

	usage, err := s.quota.Consume(ctx, userID)
	if err != nil {
		return nil, err
	}

	stored := content
	if stored == "" && hasImage {
		stored = imagePlaceholder
	}
	msg := models.NewUserMessage(chatID, stored)
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, services.FromRepository(err, services.ErrChatNotFound, nil, "failed to store message")
	}

	history, err := s.messages.ListRecent(ctx, chatID, s.config.HistoryLimit)
	if err != nil {
		return nil, services.FromRepository(err, nil, nil, "failed to load history")
	}

	return &turn{chat: chat, message: msg, history: history, usage: usage}, nil
}

// refund runs detached from ctx so a cancelled request still gets its quota back
func (s *ChatService) refund(ctx context.Context, userID uuid.UUID, logger *zap.Logger) {
	ctx = context.WithoutCancel(ctx)
	err := services.AsUser(ctx, s.txMgr, userID, func(ctx context.Context) error {
		return s.quota.Refund(ctx, userID)
	})
	if err != nil {
		logger.Error("failed to refund quota", zap.Error(err))
	}
}

// taskFor honours an explicit task type. Names the table does not know
// become TaskUnknown, which only the hard fallback serves.
func taskFor(explicit, content string, hasImage bool) routing.TaskType {
	if strings.TrimSpace(explicit) == "" {
		return routing.Classify(content, hasImage)
	}
	return routing.ParseTaskType(explicit)
}

func (s *ChatService) buildRequest(userID uuid.UUID, history []*models.Message, current uuid.UUID, imageURL string) *providers.ChatRequest {
	msgs := make([]providers.Message, 0, len(history)+1)
	if s.config.SystemPrompt != "" {
		msgs = append(msgs, providers.Message{Role: providers.RoleSystem, Content: s.config.SystemPrompt})
	}
	for _, m := range history {
		role := providers.RoleUser
		if m.Role == models.MessageRoleAssistant {
			role = providers.RoleAssistant
		}
		pm := providers.Message{Role: role, Content: m.Content}
		if m.ID == current && imageURL != "" {
			pm.ImageURL = imageURL
			if pm.Content == imagePlaceholder {
				pm.Content = ""
			}
		}
		msgs = append(msgs, pm)
	}
	return &providers.ChatRequest{Messages: msgs, User: userID.String()}
}

// loadChat returns the chat when userID owns it. Row-level security already
// hides other users' chats; the ownership check covers service-role callers.
func (s *ChatService) loadChat(ctx context.Context, userID, chatID uuid.UUID) (*models.Chat, error) {
	chat, err := s.chats.GetByID(ctx, chatID)
	if err != nil {
		return nil, services.FromRepository(err, services.ErrChatNotFound, nil, "failed to load chat")
	}
	if !chat.IsOwnedBy(userID) {
		return nil, services.ErrChatNotFound
	}
	return chat, nil
}

func autoTitle(content string) string {
	line := strings.TrimSpace(strings.SplitN(content, "\n", 2)[0])
	runes := []rune(line)
	if len(runes) > autoTitleRunes {
		line = strings.TrimSpace(string(runes[:autoTitleRunes])) + "..."
	}
	return models.NormalizeChatTitle(line)
}
