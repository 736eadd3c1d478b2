package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vedaai/veda-backend/models"
)

const testSecret = "super-secret-jwt-token-with-at-least-32-characters"

func signToken(t *testing.T, secret string, method jwt.SigningMethod, mutate func(*Claims)) string {
	t.Helper()
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "https://project.supabase.co/auth/v1",
			Subject:   uuid.New().String(),
			Audience:  jwt.ClaimStrings{"authenticated"},
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Email:       "Test@Example.com",
		Role:        "authenticated",
		AppMetadata: AppMetadata{Provider: "google", Providers: []string{"google"}},
		UserMetadata: UserMetadata{
			FullName:  "Test User",
			AvatarURL: "https://example.com/a.png",
		},
	}
	if mutate != nil {
		mutate(claims)
	}
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func newTestValidator() *Validator {
	return NewValidator(Config{
		Secret:   testSecret,
		Issuer:   "https://project.supabase.co/auth/v1",
		Audience: "authenticated",
	})
}

func TestValidateToken_Valid(t *testing.T) {
	sub := uuid.New()
	token := signToken(t, testSecret, jwt.SigningMethodHS256, func(c *Claims) {
		c.Subject = sub.String()
	})

	identity, err := newTestValidator().ValidateToken(context.Background(), token)

	require.NoError(t, err)
	assert.Equal(t, sub, identity.UserID)
	assert.Equal(t, "test@example.com", identity.Email)
	assert.Equal(t, models.AuthProviderGoogle, identity.Provider)
	assert.False(t, identity.IsGuest)
	assert.Equal(t, "Test User", identity.Name)
	assert.Equal(t, "https://example.com/a.png", identity.AvatarURL)
	assert.WithinDuration(t, time.Now().Add(time.Hour), identity.ExpiresAt, 5*time.Second)
}

func TestValidateToken_Providers(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Claims)
		want   models.AuthProvider
		guest  bool
	}{
		{"email", func(c *Claims) { c.AppMetadata.Provider = "email" }, models.AuthProviderEmail, false},
		{"unknown provider falls back to email", func(c *Claims) { c.AppMetadata.Provider = "github" }, models.AuthProviderEmail, false},
		{"anonymous", func(c *Claims) {
			c.IsAnonymous = true
			c.Email = ""
			c.AppMetadata = AppMetadata{}
		}, models.AuthProviderGuest, true},
		{"picture fallback", func(c *Claims) {
			c.UserMetadata = UserMetadata{Name: "N", Picture: "https://p"}
		}, models.AuthProviderGoogle, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := signToken(t, testSecret, jwt.SigningMethodHS256, tt.mutate)
			identity, err := newTestValidator().ValidateToken(context.Background(), token)
			require.NoError(t, err)
			assert.Equal(t, tt.want, identity.Provider)
			assert.Equal(t, tt.guest, identity.IsGuest)
		})
	}
}

func TestValidateToken_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		token   func(t *testing.T) string
		wantErr error
	}{
		{
			name: "expired",
			token: func(t *testing.T) string {
				return signToken(t, testSecret, jwt.SigningMethodHS256, func(c *Claims) {
					c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
				})
			},
			wantErr: ErrTokenExpired,
		},
		{
			name: "missing expiry",
			token: func(t *testing.T) string {
				return signToken(t, testSecret, jwt.SigningMethodHS256, func(c *Claims) { c.ExpiresAt = nil })
			},
			wantErr: ErrInvalidToken,
		},
		{
			name: "wrong secret",
			token: func(t *testing.T) string {
				return signToken(t, "another-secret-another-secret-another", jwt.SigningMethodHS256, nil)
			},
			wantErr: ErrInvalidToken,
		},
		{
			name: "wrong algorithm",
			token: func(t *testing.T) string {
				return signToken(t, testSecret, jwt.SigningMethodHS512, nil)
			},
			wantErr: ErrInvalidToken,
		},
		{
			name: "wrong issuer",
			token: func(t *testing.T) string {
				return signToken(t, testSecret, jwt.SigningMethodHS256, func(c *Claims) { c.Issuer = "https://evil" })
			},
			wantErr: ErrInvalidIssuer,
		},
		{
			name: "wrong audience",
			token: func(t *testing.T) string {
				return signToken(t, testSecret, jwt.SigningMethodHS256, func(c *Claims) {
					c.Audience = jwt.ClaimStrings{"anon"}
				})
			},
			wantErr: ErrInvalidAudience,
		},
		{
			name: "subject is not a uuid",
			token: func(t *testing.T) string {
				return signToken(t, testSecret, jwt.SigningMethodHS256, func(c *Claims) { c.Subject = "user-1" })
			},
			wantErr: ErrInvalidToken,
		},
		{
			name:    "garbage",
			token:   func(t *testing.T) string { return "not.a.jwt" },
			wantErr: ErrInvalidToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestValidator().ValidateToken(context.Background(), tt.token(t))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidateToken_OptionalChecks(t *testing.T) {
	v := NewValidator(Config{Secret: testSecret})
	token := signToken(t, testSecret, jwt.SigningMethodHS256, func(c *Claims) {
		c.Issuer = "anything"
		c.Audience = nil
	})

	_, err := v.ValidateToken(context.Background(), token)
	assert.NoError(t, err)
}
