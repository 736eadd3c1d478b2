package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vedaai/veda-backend/models"
	"github.com/vedaai/veda-backend/services"
	"github.com/vedaai/veda-backend/services/chat"
	"github.com/vedaai/veda-backend/services/quota"
	"github.com/vedaai/veda-backend/services/routing"
	"go.uber.org/zap"
)

// MockChatService is a mock implementation of ChatService
type MockChatService struct {
	mock.Mock
}

func (m *MockChatService) CreateChat(ctx context.Context, userID uuid.UUID, title string) (*models.Chat, error) {
	args := m.Called(ctx, userID, title)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Chat), args.Error(1)
}

func (m *MockChatService) ListChats(ctx context.Context, userID uuid.UUID, in chat.ListChatsInput) ([]*models.Chat, error) {
	args := m.Called(ctx, userID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Chat), args.Error(1)
}

func (m *MockChatService) GetChat(ctx context.Context, userID, chatID uuid.UUID) (*models.Chat, error) {
	args := m.Called(ctx, userID, chatID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Chat), args.Error(1)
}

func (m *MockChatService) UpdateChat(ctx context.Context, userID, chatID uuid.UUID, in chat.UpdateChatInput) (*models.Chat, error) {
	args := m.Called(ctx, userID, chatID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Chat), args.Error(1)
}

func (m *MockChatService) DeleteChat(ctx context.Context, userID, chatID uuid.UUID) error {
	return m.Called(ctx, userID, chatID).Error(0)
}

func (m *MockChatService) ListMessages(ctx context.Context, userID, chatID uuid.UUID, limit, offset int) ([]*models.Message, error) {
	args := m.Called(ctx, userID, chatID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Message), args.Error(1)
}

func (m *MockChatService) SendMessage(ctx context.Context, userID, chatID uuid.UUID, in chat.SendMessageInput) (*chat.SendMessageResult, error) {
	args := m.Called(ctx, userID, chatID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chat.SendMessageResult), args.Error(1)
}

// withChatID sets the {id} route parameter the way chi would
func withChatID(req *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestHandleCreateChat(t *testing.T) {
	logger := zap.NewNop()

	t.Run("with title", func(t *testing.T) {
		svc := new(MockChatService)
		handler := NewChatHandler(svc, logger)
		identity := newIdentity()
		created := models.NewChat(identity.UserID, "Meal plan")

		svc.On("CreateChat", mock.Anything, identity.UserID, "Meal plan").Return(created, nil)

		rec := httptest.NewRecorder()
		handler.HandleCreateChat(rec, authedRequest(http.MethodPost, "/api/v1/chats", []byte(`{"title":"Meal plan"}`), identity))

		require.Equal(t, http.StatusCreated, rec.Code)
		data := decodeData(t, rec)
		assert.Equal(t, "Meal plan", data["title"])
		assert.Equal(t, false, data["is_archived"])
	})

	t.Run("without body", func(t *testing.T) {
		svc := new(MockChatService)
		handler := NewChatHandler(svc, logger)
		identity := newIdentity()

		svc.On("CreateChat", mock.Anything, identity.UserID, "").Return(models.NewChat(identity.UserID, ""), nil)

		rec := httptest.NewRecorder()
		handler.HandleCreateChat(rec, authedRequest(http.MethodPost, "/api/v1/chats", nil, identity))

		assert.Equal(t, http.StatusCreated, rec.Code)
		svc.AssertExpectations(t)
	})

	t.Run("malformed body", func(t *testing.T) {
		svc := new(MockChatService)
		handler := NewChatHandler(svc, logger)

		rec := httptest.NewRecorder()
		handler.HandleCreateChat(rec, authedRequest(http.MethodPost, "/api/v1/chats", []byte(`{"title":`), newIdentity()))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		svc.AssertNotCalled(t, "CreateChat", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestHandleListChats(t *testing.T) {
	logger := zap.NewNop()

	t.Run("defaults", func(t *testing.T) {
		svc := new(MockChatService)
		handler := NewChatHandler(svc, logger)
		identity := newIdentity()

		svc.On("ListChats", mock.Anything, identity.UserID, chat.ListChatsInput{Limit: defaultPageSize}).
			Return(nil, nil)

		rec := httptest.NewRecorder()
		handler.HandleListChats(rec, authedRequest(http.MethodGet, "/api/v1/chats", nil, identity))

		require.Equal(t, http.StatusOK, rec.Code)
		var response struct {
			Data []interface{} `json:"data"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		assert.NotNil(t, response.Data)
		assert.Empty(t, response.Data)
	})

	t.Run("query parameters", func(t *testing.T) {
		svc := new(MockChatService)
		handler := NewChatHandler(svc, logger)
		identity := newIdentity()

		svc.On("ListChats", mock.Anything, identity.UserID, chat.ListChatsInput{IncludeArchived: true, Limit: maxPageSize, Offset: 10}).
			Return([]*models.Chat{models.NewChat(identity.UserID, "a")}, nil)

		rec := httptest.NewRecorder()
		handler.HandleListChats(rec, authedRequest(http.MethodGet, "/api/v1/chats?include_archived=true&limit=1000&offset=10", nil, identity))

		assert.Equal(t, http.StatusOK, rec.Code)
		svc.AssertExpectations(t)
	})

	for _, query := range []string{"limit=abc", "limit=0", "offset=-1"} {
		t.Run("rejects "+query, func(t *testing.T) {
			svc := new(MockChatService)
			handler := NewChatHandler(svc, logger)

			rec := httptest.NewRecorder()
			handler.HandleListChats(rec, authedRequest(http.MethodGet, "/api/v1/chats?"+query, nil, newIdentity()))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHandleGetChat(t *testing.T) {
	logger := zap.NewNop()

	t.Run("found", func(t *testing.T) {
		svc := new(MockChatService)
		handler := NewChatHandler(svc, logger)
		identity := newIdentity()
		c := models.NewChat(identity.UserID, "Hello")

		svc.On("GetChat", mock.Anything, identity.UserID, c.ID).Return(c, nil)

		rec := httptest.NewRecorder()
		req := withChatID(authedRequest(http.MethodGet, "/api/v1/chats/"+c.ID.String(), nil, identity), c.ID.String())
		handler.HandleGetChat(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, c.ID.String(), decodeData(t, rec)["id"])
	})

	t.Run("other user's chat is not found", func(t *testing.T) {
		svc := new(MockChatService)
		handler := NewChatHandler(svc, logger)
		identity := newIdentity()
		chatID := uuid.New()

		svc.On("GetChat", mock.Anything, identity.UserID, chatID).Return(nil, services.ErrChatNotFound)

		rec := httptest.NewRecorder()
		handler.HandleGetChat(rec, withChatID(authedRequest(http.MethodGet, "/", nil, identity), chatID.String()))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("invalid id", func(t *testing.T) {
		svc := new(MockChatService)
		handler := NewChatHandler(svc, logger)

		rec := httptest.NewRecorder()
		handler.HandleGetChat(rec, withChatID(authedRequest(http.MethodGet, "/", nil, newIdentity()), "not-a-uuid"))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		svc.AssertNotCalled(t, "GetChat", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestHandleUpdateChat(t *testing.T) {
	svc := new(MockChatService)
	handler := NewChatHandler(svc, zap.NewNop())
	identity := newIdentity()
	c := models.NewChat(identity.UserID, "Renamed")
	c.IsArchived = true

	svc.On("UpdateChat", mock.Anything, identity.UserID, c.ID, mock.MatchedBy(func(in chat.UpdateChatInput) bool {
		return in.Title != nil && *in.Title == "Renamed" && in.Archived != nil && *in.Archived
	})).Return(c, nil)

	rec := httptest.NewRecorder()
	body := []byte(`{"title":"Renamed","is_archived":true}`)
	handler.HandleUpdateChat(rec, withChatID(authedRequest(http.MethodPatch, "/", body, identity), c.ID.String()))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeData(t, rec)["is_archived"])
}

func TestHandleDeleteChat(t *testing.T) {
	svc := new(MockChatService)
	handler := NewChatHandler(svc, zap.NewNop())
	identity := newIdentity()
	chatID := uuid.New()

	svc.On("DeleteChat", mock.Anything, identity.UserID, chatID).Return(nil)

	rec := httptest.NewRecorder()
	handler.HandleDeleteChat(rec, withChatID(authedRequest(http.MethodDelete, "/", nil, identity), chatID.String()))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	svc.AssertExpectations(t)
}

func TestHandleListMessages(t *testing.T) {
	svc := new(MockChatService)
	handler := NewChatHandler(svc, zap.NewNop())
	identity := newIdentity()
	chatID := uuid.New()

	svc.On("ListMessages", mock.Anything, identity.UserID, chatID, 20, 40).
		Return([]*models.Message{models.NewUserMessage(chatID, "hi")}, nil)

	rec := httptest.NewRecorder()
	req := withChatID(authedRequest(http.MethodGet, "/?limit=20&offset=40", nil, identity), chatID.String())
	handler.HandleListMessages(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var response struct {
		Data []models.Message `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	require.Len(t, response.Data, 1)
	assert.Equal(t, models.MessageRoleUser, response.Data[0].Role)
}

func TestHandleSendMessage(t *testing.T) {
	logger := zap.NewNop()

	t.Run("returns both messages and route", func(t *testing.T) {
		svc := new(MockChatService)
		handler := NewChatHandler(svc, logger)
		identity := newIdentity()
		chatID := uuid.New()

		result := &chat.SendMessageResult{
			UserMessage:      models.NewUserMessage(chatID, "plan my meals"),
			AssistantMessage: models.NewAssistantMessage(chatID, "{}", "grok-2-1212", 42),
			Route: chat.RouteInfo{
				Task:     routing.TaskDietPlanning,
				Provider: "xai",
				Model:    "grok-2-1212",
			},
			Quota: &quota.Usage{Plan: models.PlanFree, Limit: 50, Used: 1, Remaining: 49},
		}
		svc.On("SendMessage", mock.Anything, identity.UserID, chatID, chat.SendMessageInput{Content: "plan my meals"}).
			Return(result, nil)

		rec := httptest.NewRecorder()
		body := []byte(`{"content":"plan my meals"}`)
		handler.HandleSendMessage(rec, withChatID(authedRequest(http.MethodPost, "/", body, identity), chatID.String()))

		require.Equal(t, http.StatusCreated, rec.Code)
		data := decodeData(t, rec)
		route := data["route"].(map[string]interface{})
		assert.Equal(t, "diet_planning", route["task"])
		assert.Equal(t, "xai", route["provider"])
		assert.Equal(t, "grok-2-1212", data["assistant_message"].(map[string]interface{})["model_used"])
	})

	t.Run("quota exceeded", func(t *testing.T) {
		svc := new(MockChatService)
		handler := NewChatHandler(svc, logger)
		identity := newIdentity()
		chatID := uuid.New()

		svc.On("SendMessage", mock.Anything, identity.UserID, chatID, mock.Anything).
			Return(nil, services.ErrQuotaExceeded.Wrap(nil).WithDetail("limit", 50))

		rec := httptest.NewRecorder()
		handler.HandleSendMessage(rec, withChatID(authedRequest(http.MethodPost, "/", []byte(`{"content":"hi"}`), identity), chatID.String()))

		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	})

	t.Run("providers exhausted", func(t *testing.T) {
		svc := new(MockChatService)
		handler := NewChatHandler(svc, logger)
		identity := newIdentity()
		chatID := uuid.New()

		svc.On("SendMessage", mock.Anything, identity.UserID, chatID, mock.Anything).
			Return(nil, services.ErrProvidersExhausted)

		rec := httptest.NewRecorder()
		handler.HandleSendMessage(rec, withChatID(authedRequest(http.MethodPost, "/", []byte(`{"content":"hi"}`), identity), chatID.String()))

		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		svc := new(MockChatService)
		handler := NewChatHandler(svc, logger)

		rec := httptest.NewRecorder()
		handler.HandleSendMessage(rec, withChatID(authedRequest(http.MethodPost, "/", []byte(`{"content":"hi"}`), nil), uuid.NewString()))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
