package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/vedaai/veda-backend/auth"
	"github.com/vedaai/veda-backend/middleware"
	"github.com/vedaai/veda-backend/models"
	"github.com/vedaai/veda-backend/services"
	"github.com/vedaai/veda-backend/services/users"
	"github.com/vedaai/veda-backend/utils"
	"go.uber.org/zap"
)

// UserService defines the user operations the handler needs
type UserService interface {
	Provision(ctx context.Context, identity *auth.Identity) (*models.User, bool, error)
	GetProfile(ctx context.Context, userID uuid.UUID) (*models.User, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, in users.UpdateProfileInput) (*models.User, error)
	DeleteAccount(ctx context.Context, userID uuid.UUID) error
	GetSettings(ctx context.Context, userID uuid.UUID) (*users.Settings, error)
	UpdatePreferences(ctx context.Context, userID uuid.UUID, prefs map[string]json.RawMessage) (*users.Settings, error)
}

// UpdatePreferencesRequest is the body of PATCH /users/me/settings
type UpdatePreferencesRequest struct {
	Preferences json.RawMessage `json:"preferences"`
}

// UserHandler handles the caller's own profile and settings
type UserHandler struct {
	service   UserService
	onDeleted func(uuid.UUID)
	logger    *zap.Logger
}

// NewUserHandler creates a new UserHandler. onDeleted, if set, is called
// after an account is removed.
func NewUserHandler(service UserService, onDeleted func(uuid.UUID), logger *zap.Logger) *UserHandler {
	return &UserHandler{
		service:   service,
		onDeleted: onDeleted,
		logger:    logger,
	}
}

// HandleProvision handles POST /api/v1/users/me
func (h *UserHandler) HandleProvision(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentityFromContext(r.Context())
	if identity == nil {
		_ = utils.WriteUnauthorized(w, "")
		return
	}

	user, created, err := h.service.Provision(r.Context(), identity)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	if created {
		_ = utils.WriteCreated(w, user)
		return
	}
	_ = utils.WriteOK(w, user)
}

// HandleGetMe handles GET /api/v1/users/me
func (h *UserHandler) HandleGetMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	user, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, user)
}

// HandleUpdateMe handles PATCH /api/v1/users/me
func (h *UserHandler) HandleUpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req users.UpdateProfileInput
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	user, err := h.service.UpdateProfile(r.Context(), userID, req)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, user)
}

// HandleDeleteMe handles DELETE /api/v1/users/me
func (h *UserHandler) HandleDeleteMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteAccount(r.Context(), userID); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	if h.onDeleted != nil {
		h.onDeleted(userID)
	}
	utils.WriteNoContent(w)
}

// HandleGetSettings handles GET /api/v1/users/me/settings
func (h *UserHandler) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	settings, err := h.service.GetSettings(r.Context(), userID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, settings)
}

// HandleUpdateSettings handles PATCH /api/v1/users/me/settings
func (h *UserHandler) HandleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req UpdatePreferencesRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	var prefs map[string]json.RawMessage
	if err := json.Unmarshal(req.Preferences, &prefs); err != nil || prefs == nil {
		HandleServiceError(w, services.ErrInvalidPreferences, h.logger)
		return
	}

	settings, err := h.service.UpdatePreferences(r.Context(), userID, prefs)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, settings)
}

// requireUser reads the authenticated user ID, writing a 401 when absent
func requireUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID := middleware.GetUserIDFromContext(r.Context())
	if userID == uuid.Nil {
		_ = utils.WriteUnauthorized(w, "")
		return uuid.Nil, false
	}
	return userID, true
}
