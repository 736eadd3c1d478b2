package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/vedaai/veda-backend/models"
)

var (
	// ErrInvalidToken is returned when the token is invalid
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned when the token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrInvalidIssuer is returned when the token issuer is invalid
	ErrInvalidIssuer = errors.New("invalid issuer")

	// ErrInvalidAudience is returned when the token audience is invalid
	ErrInvalidAudience = errors.New("invalid audience")
)

// AppMetadata is the provider-controlled part of the token
type AppMetadata struct {
	Provider  string   `json:"provider"`
	Providers []string `json:"providers"`
}

// UserMetadata is profile data copied from the social login
type UserMetadata struct {
	FullName  string `json:"full_name"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
	Picture   string `json:"picture"`
}

// Claims represents the claims in an identity provider access token
type Claims struct {
	jwt.RegisteredClaims
	Email        string       `json:"email"`
	Role         string       `json:"role"`
	IsAnonymous  bool         `json:"is_anonymous"`
	AppMetadata  AppMetadata  `json:"app_metadata"`
	UserMetadata UserMetadata `json:"user_metadata"`
}

// Identity is the verified caller extracted from a token
type Identity struct {
	UserID    uuid.UUID
	Email     string
	Provider  models.AuthProvider
	IsGuest   bool
	Name      string
	AvatarURL string
	ExpiresAt time.Time
}

// Config holds configuration for Validator
type Config struct {
	Secret   string
	Issuer   string // empty skips the check
	Audience string // empty skips the check
	Leeway   time.Duration
}

// Validator verifies HS256 tokens signed with the identity provider's shared secret
type Validator struct {
	secret   []byte
	issuer   string
	audience string
	parser   *jwt.Parser
}

// NewValidator creates a new token validator
func NewValidator(config Config) *Validator {
	if config.Leeway == 0 {
		config.Leeway = 30 * time.Second
	}
	return &Validator{
		secret:   []byte(config.Secret),
		issuer:   config.Issuer,
		audience: config.Audience,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithLeeway(config.Leeway),
			jwt.WithExpirationRequired(),
		),
	}
}

// ValidateToken verifies tokenString and returns the caller's identity
func (v *Validator) ValidateToken(ctx context.Context, tokenString string) (*Identity, error) {
	claims := &Claims{}
	token, err := v.parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	if v.issuer != "" && claims.Issuer != v.issuer {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrInvalidIssuer, v.issuer, claims.Issuer)
	}
	if v.audience != "" && !containsAudience(claims.Audience, v.audience) {
		return nil, ErrInvalidAudience
	}

	sub, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: sub is not a UUID", ErrInvalidToken)
	}

	identity := &Identity{
		UserID:    sub,
		Email:     strings.ToLower(strings.TrimSpace(claims.Email)),
		Provider:  providerOf(claims),
		IsGuest:   claims.IsAnonymous,
		Name:      firstNonEmpty(claims.UserMetadata.FullName, claims.UserMetadata.Name),
		AvatarURL: firstNonEmpty(claims.UserMetadata.AvatarURL, claims.UserMetadata.Picture),
	}
	if claims.ExpiresAt != nil {
		identity.ExpiresAt = claims.ExpiresAt.Time
	}
	if identity.IsGuest {
		identity.Provider = models.AuthProviderGuest
	}

	return identity, nil
}

// providerOf maps the token's sign-in method onto the users.auth_provider values
func providerOf(claims *Claims) models.AuthProvider {
	if claims.IsAnonymous {
		return models.AuthProviderGuest
	}
	p := models.AuthProvider(strings.ToLower(claims.AppMetadata.Provider))
	if p.Valid() {
		return p
	}
	return models.AuthProviderEmail
}

func containsAudience(audiences []string, target string) bool {
	for _, aud := range audiences {
		if aud == target {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
