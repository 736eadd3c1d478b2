package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vedaai/veda-backend/auth"
	"github.com/vedaai/veda-backend/models"
	"github.com/vedaai/veda-backend/repositories"
	"github.com/vedaai/veda-backend/services"
	"github.com/vedaai/veda-backend/services/quota"
	"go.uber.org/zap"
)

// guestEmailDomain is used for anonymous identities, which carry no email
const guestEmailDomain = "guest.veda.local"

// UpdateProfileInput carries profile changes. Nil leaves a field as is, an
// empty string clears it.
type UpdateProfileInput struct {
	Name      *string `json:"name,omitempty" validate:"omitempty,max=120"`
	AvatarURL *string `json:"avatar_url,omitempty" validate:"omitempty,max=2048"`
}

// Settings is the settings row with its effective quota
type Settings struct {
	Preferences json.RawMessage `json:"preferences"`
	Quota       *quota.Usage    `json:"quota"`
}

// UserService manages the application profile of authenticated identities
type UserService struct {
	txMgr    repositories.TransactionManager
	users    repositories.UserRepository
	settings repositories.SettingsRepository
	quota    *quota.QuotaService
	logger   *zap.Logger
}

// NewUserService creates a new UserService instance
func NewUserService(txMgr repositories.TransactionManager, repos *repositories.Repositories, quota *quota.QuotaService, logger *zap.Logger) *UserService {
	return &UserService{
		txMgr:    txMgr,
		users:    repos.Users,
		settings: repos.Settings,
		quota:    quota,
		logger:   logger,
	}
}

// Provision creates the user row for a verified identity, or refreshes the
// identity fields of an existing one. The settings row is created by the
// database in the same transaction. Reports whether the user was created.
func (s *UserService) Provision(ctx context.Context, id *auth.Identity) (*models.User, bool, error) {
	if id == nil || id.UserID == uuid.Nil {
		return nil, false, services.ErrUnauthorized
	}

	var created bool
	user, err := services.AsUserResult(ctx, s.txMgr, id.UserID, func(ctx context.Context) (*models.User, error) {
		existing, err := s.users.GetByID(ctx, id.UserID)
		if err == nil {
			return s.refresh(ctx, existing, id)
		}
		if !errors.Is(err, repositories.ErrNotFound) {
			return nil, err
		}

		user := models.NewUser(id.UserID, emailFor(id), id.Provider)
		user.IsGuest = id.IsGuest
		if id.Name != "" {
			user.Name = &id.Name
		}
		if id.AvatarURL != "" {
			user.AvatarURL = &id.AvatarURL
		}
		inserted, err := s.users.CreateIfAbsent(ctx, user)
		if err != nil {
			return nil, err
		}
		if !inserted {
			// a concurrent first request created the row
			existing, err := s.users.GetByID(ctx, id.UserID)
			if err != nil {
				return nil, err
			}
			return s.refresh(ctx, existing, id)
		}
		created = true
		return user, nil
	})
	if err != nil {
		return nil, false, services.FromRepository(err, services.ErrUserNotFound, services.ErrDuplicateEmail, "failed to provision user")
	}

	if created {
		s.logger.Info("user provisioned",
			zap.String("user_id", user.ID.String()),
			zap.String("auth_provider", string(user.AuthProvider)),
			zap.Bool("is_guest", user.IsGuest))
	}
	return user, created, nil
}

func (s *UserService) refresh(ctx context.Context, existing *models.User, id *auth.Identity) (*models.User, error) {
	if !syncIdentity(existing, id) {
		return existing, nil
	}
	existing.UpdatedAt = time.Now().UTC()
	if err := s.users.Update(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

// GetProfile returns the caller's user row
func (s *UserService) GetProfile(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := services.AsUserResult(ctx, s.txMgr, userID, func(ctx context.Context) (*models.User, error) {
		return s.users.GetByID(ctx, userID)
	})
	if err != nil {
		return nil, services.FromRepository(err, services.ErrNotProvisioned, nil, "failed to load user")
	}
	return user, nil
}

// UpdateProfile changes the caller's display name or avatar
func (s *UserService) UpdateProfile(ctx context.Context, userID uuid.UUID, in UpdateProfileInput) (*models.User, error) {
	user, err := services.AsUserResult(ctx, s.txMgr, userID, func(ctx context.Context) (*models.User, error) {
		user, err := s.users.GetByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		if in.Name != nil {
			user.Name = optional(*in.Name)
		}
		if in.AvatarURL != nil {
			user.AvatarURL = optional(*in.AvatarURL)
		}
		user.UpdatedAt = time.Now().UTC()
		if err := s.users.Update(ctx, user); err != nil {
			return nil, err
		}
		return user, nil
	})
	if err != nil {
		return nil, services.FromRepository(err, services.ErrNotProvisioned, nil, "failed to update user")
	}
	return user, nil
}

// DeleteAccount removes the caller and, through cascading foreign keys,
// their chats, messages and settings
func (s *UserService) DeleteAccount(ctx context.Context, userID uuid.UUID) error {
	err := services.AsUser(ctx, s.txMgr, userID, func(ctx context.Context) error {
		return s.users.Delete(ctx, userID)
	})
	if err != nil {
		return services.FromRepository(err, services.ErrNotProvisioned, nil, "failed to delete user")
	}

	s.logger.Info("user deleted", zap.String("user_id", userID.String()))
	return nil
}

// GetSettings returns preferences and the effective quota
func (s *UserService) GetSettings(ctx context.Context, userID uuid.UUID) (*Settings, error) {
	settings, err := services.AsUserResult(ctx, s.txMgr, userID, func(ctx context.Context) (*models.UserSettings, error) {
		return s.settings.GetByUserID(ctx, userID)
	})
	if err != nil {
		return nil, services.FromRepository(err, services.ErrSettingsNotFound, nil, "failed to load settings")
	}
	return &Settings{Preferences: settings.Preferences, Quota: s.quota.UsageOf(settings)}, nil
}

// UpdatePreferences merges prefs into the stored preferences document.
// A null value removes the key.
func (s *UserService) UpdatePreferences(ctx context.Context, userID uuid.UUID, prefs map[string]json.RawMessage) (*Settings, error) {
	if prefs == nil {
		return nil, services.ErrInvalidPreferences
	}

	settings, err := services.AsUserResult(ctx, s.txMgr, userID, func(ctx context.Context) (*models.UserSettings, error) {
		current, err := s.settings.GetForUpdate(ctx, userID)
		if err != nil {
			return nil, err
		}

		merged, err := mergePreferences(current.Preferences, prefs)
		if err != nil {
			return nil, err
		}
		if err := s.settings.UpdatePreferences(ctx, userID, merged); err != nil {
			return nil, err
		}
		current.Preferences = merged
		return current, nil
	})
	if err != nil {
		return nil, services.FromRepository(err, services.ErrSettingsNotFound, nil, "failed to update preferences")
	}
	return &Settings{Preferences: settings.Preferences, Quota: s.quota.UsageOf(settings)}, nil
}

func mergePreferences(stored json.RawMessage, patch map[string]json.RawMessage) (json.RawMessage, error) {
	doc := map[string]json.RawMessage{}
	if len(stored) > 0 {
		if err := json.Unmarshal(stored, &doc); err != nil {
			return nil, fmt.Errorf("stored preferences are not an object: %w", err)
		}
	}
	for k, v := range patch {
		if strings.TrimSpace(string(v)) == "null" {
			delete(doc, k)
			continue
		}
		doc[k] = v
	}
	return json.Marshal(doc)
}

// syncIdentity copies identity fields that can change at the provider, for
// example when a guest links a Google account. Profile fields the user edits
// are left alone.
func syncIdentity(user *models.User, id *auth.Identity) bool {
	changed := false
	if email := emailFor(id); email != user.Email && !id.IsGuest {
		user.Email = email
		changed = true
	}
	if user.AuthProvider != id.Provider && id.Provider.Valid() {
		user.AuthProvider = id.Provider
		changed = true
	}
	if user.IsGuest != id.IsGuest {
		user.IsGuest = id.IsGuest
		changed = true
	}
	if user.AvatarURL == nil && id.AvatarURL != "" {
		user.AvatarURL = &id.AvatarURL
		changed = true
	}
	return changed
}

func emailFor(id *auth.Identity) string {
	if id.Email != "" {
		return id.Email
	}
	return fmt.Sprintf("%s@%s", id.UserID, guestEmailDomain)
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
