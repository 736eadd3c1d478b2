package users

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vedaai/veda-backend/auth"
	"github.com/vedaai/veda-backend/models"
	"github.com/vedaai/veda-backend/repositories"
	"github.com/vedaai/veda-backend/repositories/mocks"
	"github.com/vedaai/veda-backend/services"
	"github.com/vedaai/veda-backend/services/quota"
	"go.uber.org/zap"
)

var fixedNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func newTestService(m *mocks.Repositories) *UserService {
	q := quota.NewQuotaService(m.Settings, zap.NewNop()).WithClock(func() time.Time { return fixedNow })
	return NewUserService(m.Tx, m.Repos(), q, zap.NewNop())
}

func googleIdentity() *auth.Identity {
	return &auth.Identity{
		UserID:    uuid.New(),
		Email:     "asha@example.com",
		Provider:  models.AuthProviderGoogle,
		Name:      "Asha",
		AvatarURL: "https://example.com/asha.png",
	}
}

func TestProvision_CreatesNewUser(t *testing.T) {
	m := mocks.New()
	svc := newTestService(m)
	id := googleIdentity()

	m.Users.On("GetByID", mock.Anything, id.UserID).Return(nil, repositories.ErrNotFound)
	m.Users.On("CreateIfAbsent", mock.Anything, mock.MatchedBy(func(u *models.User) bool {
		return u.ID == id.UserID &&
			u.Email == "asha@example.com" &&
			u.AuthProvider == models.AuthProviderGoogle &&
			u.Name != nil && *u.Name == "Asha" &&
			u.AvatarURL != nil && !u.IsGuest
	})).Return(true, nil)

	user, created, err := svc.Provision(context.Background(), id)

	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, id.UserID, user.ID)
	assert.Equal(t, []uuid.UUID{id.UserID}, m.Tx.UserScope)
	m.AssertExpectations(t)
}

func TestProvision_GuestGetsSyntheticEmail(t *testing.T) {
	m := mocks.New()
	svc := newTestService(m)
	id := &auth.Identity{UserID: uuid.New(), Provider: models.AuthProviderGuest, IsGuest: true}

	m.Users.On("GetByID", mock.Anything, id.UserID).Return(nil, repositories.ErrNotFound)
	m.Users.On("CreateIfAbsent", mock.Anything, mock.Anything).Return(true, nil)

	user, created, err := svc.Provision(context.Background(), id)

	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, user.IsGuest)
	assert.Equal(t, id.UserID.String()+"@"+guestEmailDomain, user.Email)
	assert.Nil(t, user.Name)
}

func TestProvision_ExistingUnchanged(t *testing.T) {
	m := mocks.New()
	svc := newTestService(m)
	id := googleIdentity()

	existing := models.NewUser(id.UserID, id.Email, models.AuthProviderGoogle)
	existing.AvatarURL = &id.AvatarURL
	m.Users.On("GetByID", mock.Anything, id.UserID).Return(existing, nil)

	user, created, err := svc.Provision(context.Background(), id)

	require.NoError(t, err)
	assert.False(t, created)
	assert.Same(t, existing, user)
	m.Users.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	m.Users.AssertNotCalled(t, "CreateIfAbsent", mock.Anything, mock.Anything)
}

func TestProvision_GuestUpgradedToGoogle(t *testing.T) {
	m := mocks.New()
	svc := newTestService(m)
	id := googleIdentity()

	existing := models.NewUser(id.UserID, id.UserID.String()+"@"+guestEmailDomain, models.AuthProviderGuest)
	custom := "Custom name"
	existing.Name = &custom
	m.Users.On("GetByID", mock.Anything, id.UserID).Return(existing, nil)
	m.Users.On("Update", mock.Anything, mock.MatchedBy(func(u *models.User) bool {
		return u.Email == "asha@example.com" &&
			u.AuthProvider == models.AuthProviderGoogle &&
			!u.IsGuest &&
			*u.Name == "Custom name"
	})).Return(nil)

	user, created, err := svc.Provision(context.Background(), id)

	require.NoError(t, err)
	assert.False(t, created)
	assert.False(t, user.IsGuest)
	m.AssertExpectations(t)
}

func TestProvision_ConcurrentFirstRequests(t *testing.T) {
	m := mocks.New()
	svc := newTestService(m)
	id := googleIdentity()

	// the other request commits its insert between our read and our insert
	winner := models.NewUser(id.UserID, id.Email, models.AuthProviderGoogle)
	winner.Name = &id.Name
	winner.AvatarURL = &id.AvatarURL
	m.Users.On("GetByID", mock.Anything, id.UserID).Return(nil, repositories.ErrNotFound).Once()
	m.Users.On("CreateIfAbsent", mock.Anything, mock.Anything).Return(false, nil)
	m.Users.On("GetByID", mock.Anything, id.UserID).Return(winner, nil).Once()

	user, created, err := svc.Provision(context.Background(), id)

	require.NoError(t, err)
	assert.False(t, created)
	assert.Same(t, winner, user)
	assert.Zero(t, m.Tx.RolledBack)
	m.Users.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	m.AssertExpectations(t)
}

func TestProvision_Errors(t *testing.T) {
	t.Run("missing identity", func(t *testing.T) {
		svc := newTestService(mocks.New())
		_, _, err := svc.Provision(context.Background(), nil)
		assert.ErrorIs(t, err, services.ErrUnauthorized)
	})

	t.Run("email taken by another account", func(t *testing.T) {
		m := mocks.New()
		svc := newTestService(m)
		id := googleIdentity()
		m.Users.On("GetByID", mock.Anything, id.UserID).Return(nil, repositories.ErrNotFound)
		m.Users.On("CreateIfAbsent", mock.Anything, mock.Anything).Return(false, repositories.ErrConflict)

		_, _, err := svc.Provision(context.Background(), id)
		assert.ErrorIs(t, err, services.ErrDuplicateEmail)
		assert.True(t, services.IsConflictError(err))
		assert.Equal(t, 1, m.Tx.RolledBack)
	})

	t.Run("database failure", func(t *testing.T) {
		m := mocks.New()
		svc := newTestService(m)
		id := googleIdentity()
		m.Users.On("GetByID", mock.Anything, id.UserID).Return(nil, errors.New("connection reset"))

		_, _, err := svc.Provision(context.Background(), id)
		assert.True(t, services.IsInternalError(err))
	})
}

func TestGetProfile(t *testing.T) {
	m := mocks.New()
	svc := newTestService(m)
	userID := uuid.New()

	m.Users.On("GetByID", mock.Anything, userID).Return(nil, repositories.ErrNotFound).Once()
	_, err := svc.GetProfile(context.Background(), userID)
	assert.ErrorIs(t, err, services.ErrNotProvisioned)

	want := models.NewUser(userID, "a@example.com", models.AuthProviderEmail)
	m.Users.On("GetByID", mock.Anything, userID).Return(want, nil).Once()
	got, err := svc.GetProfile(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestUpdateProfile(t *testing.T) {
	m := mocks.New()
	svc := newTestService(m)
	userID := uuid.New()

	user := models.NewUser(userID, "a@example.com", models.AuthProviderEmail)
	avatar := "https://example.com/old.png"
	user.AvatarURL = &avatar
	m.Users.On("GetByID", mock.Anything, userID).Return(user, nil)
	m.Users.On("Update", mock.Anything, user).Return(nil)

	name := "  Asha  "
	clear := ""
	got, err := svc.UpdateProfile(context.Background(), userID, UpdateProfileInput{Name: &name, AvatarURL: &clear})

	require.NoError(t, err)
	require.NotNil(t, got.Name)
	assert.Equal(t, "Asha", *got.Name)
	assert.Nil(t, got.AvatarURL)
	m.AssertExpectations(t)
}

func TestDeleteAccount(t *testing.T) {
	m := mocks.New()
	svc := newTestService(m)
	userID := uuid.New()

	m.Users.On("Delete", mock.Anything, userID).Return(nil).Once()
	require.NoError(t, svc.DeleteAccount(context.Background(), userID))

	m.Users.On("Delete", mock.Anything, userID).Return(repositories.ErrNotFound).Once()
	assert.ErrorIs(t, svc.DeleteAccount(context.Background(), userID), services.ErrNotProvisioned)
}

func TestGetSettings(t *testing.T) {
	m := mocks.New()
	svc := newTestService(m)
	userID := uuid.New()

	m.Settings.On("GetByUserID", mock.Anything, userID).Return(&models.UserSettings{
		UserID:            userID,
		DailyMessageLimit: 50,
		MessagesUsedToday: 20,
		UsageDate:         models.UsageDay(fixedNow).AddDate(0, 0, -1),
		Plan:              models.PlanFree,
		Preferences:       json.RawMessage(`{"theme":"dark"}`),
	}, nil)

	got, err := svc.GetSettings(context.Background(), userID)

	require.NoError(t, err)
	assert.JSONEq(t, `{"theme":"dark"}`, string(got.Preferences))
	assert.Equal(t, 0, got.Quota.Used)
	assert.Equal(t, 50, got.Quota.Remaining)
}

func TestUpdatePreferences(t *testing.T) {
	userID := uuid.New()

	t.Run("merges and deletes keys", func(t *testing.T) {
		m := mocks.New()
		svc := newTestService(m)
		m.Settings.On("GetForUpdate", mock.Anything, userID).Return(&models.UserSettings{
			UserID:      userID,
			Plan:        models.PlanFree,
			Preferences: json.RawMessage(`{"theme":"dark","language":"en"}`),
		}, nil)
		m.Settings.On("UpdatePreferences", mock.Anything, userID, mock.MatchedBy(func(p json.RawMessage) bool {
			var doc map[string]any
			return json.Unmarshal(p, &doc) == nil && doc["theme"] == "light" && doc["language"] == nil && doc["model"] == "fast"
		})).Return(nil)

		got, err := svc.UpdatePreferences(context.Background(), userID, map[string]json.RawMessage{
			"theme":    json.RawMessage(`"light"`),
			"language": json.RawMessage(`null`),
			"model":    json.RawMessage(`"fast"`),
		})

		require.NoError(t, err)
		assert.JSONEq(t, `{"theme":"light","model":"fast"}`, string(got.Preferences))
		m.AssertExpectations(t)
	})

	t.Run("nil document rejected", func(t *testing.T) {
		svc := newTestService(mocks.New())
		_, err := svc.UpdatePreferences(context.Background(), userID, nil)
		assert.ErrorIs(t, err, services.ErrInvalidPreferences)
	})

	t.Run("missing settings row", func(t *testing.T) {
		m := mocks.New()
		svc := newTestService(m)
		m.Settings.On("GetForUpdate", mock.Anything, userID).Return(nil, repositories.ErrNotFound)

		_, err := svc.UpdatePreferences(context.Background(), userID, map[string]json.RawMessage{})
		assert.ErrorIs(t, err, services.ErrSettingsNotFound)
	})
}

func TestMergePreferences_EmptyStored(t *testing.T) {
	merged, err := mergePreferences(nil, map[string]json.RawMessage{"a": json.RawMessage(`1`)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(merged))

	_, err = mergePreferences(json.RawMessage(`[1,2]`), nil)
	assert.Error(t, err)
}
