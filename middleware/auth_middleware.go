package middleware

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/vedaai/veda-backend/auth"
	"github.com/vedaai/veda-backend/internal/observability"
	"github.com/vedaai/veda-backend/models"
	"github.com/vedaai/veda-backend/services"
	"github.com/vedaai/veda-backend/utils"
	"go.uber.org/zap"
)

// TokenValidator defines the interface for validating identity tokens
type TokenValidator interface {
	// ValidateToken verifies a token and returns the caller's identity
	ValidateToken(ctx context.Context, token string) (*auth.Identity, error)
}

// Provisioner creates the application user for a verified identity
type Provisioner interface {
	Provision(ctx context.Context, identity *auth.Identity) (*models.User, bool, error)
}

// AuthMiddleware provides authentication middleware functionality
type AuthMiddleware struct {
	validator   TokenValidator
	provisioner Provisioner
	logger      *zap.Logger

	// users already provisioned by this process
	known sync.Map
}

// NewAuthMiddleware creates a new AuthMiddleware. provisioner may be nil, in
// which case EnsureUser passes requests through unchanged.
func NewAuthMiddleware(validator TokenValidator, provisioner Provisioner, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		validator:   validator,
		provisioner: provisioner,
		logger:      logger,
	}
}

// accessTokenCookieName is read when no Authorization header is sent
const accessTokenCookieName = "access_token"

// RequireAuth is a middleware that requires a valid identity token
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		token := extractToken(r)
		if token == "" {
			m.logger.Warn("missing token",
				zap.String("request_id", requestID))
			_ = utils.WriteUnauthorized(w, "Missing or invalid authorization")
			return
		}

		identity, err := m.validator.ValidateToken(ctx, token)
		if err != nil {
			m.logger.Warn("token validation failed",
				zap.String("request_id", requestID),
				zap.Error(err))
			_ = utils.WriteUnauthorized(w, "Invalid or expired token")
			return
		}

		ctx = WithIdentity(ctx, identity)
		ctx = observability.WithFields(ctx, zap.String("user_id", identity.UserID.String()))

		m.logger.Debug("authentication successful",
			zap.String("request_id", requestID),
			zap.String("user_id", identity.UserID.String()),
			zap.String("auth_provider", string(identity.Provider)))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// EnsureUser makes sure the authenticated identity has a users row (and so a
// settings row) before the request reaches a handler. Must run after RequireAuth.
func (m *AuthMiddleware) EnsureUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		identity := GetIdentityFromContext(ctx)
		if identity == nil {
			m.logger.Error("identity not found in context",
				zap.String("request_id", GetRequestIDFromContext(ctx)))
			_ = utils.WriteUnauthorized(w, "Authentication required")
			return
		}

		if m.provisioner != nil && !m.isKnown(identity.UserID) {
			if _, _, err := m.provisioner.Provision(ctx, identity); err != nil {
				m.logger.Error("user provisioning failed",
					zap.String("request_id", GetRequestIDFromContext(ctx)),
					zap.String("user_id", identity.UserID.String()),
					zap.Error(err))
				if services.IsConflictError(err) {
					_ = utils.WriteConflict(w, "Email is already registered to another account", nil)
					return
				}
				_ = utils.WriteInternalServerError(w, "Failed to load user")
				return
			}
			m.known.Store(identity.UserID, struct{}{})
		}

		next.ServeHTTP(w, r)
	})
}

// Forget drops a user from the provisioned set, e.g. after account deletion
func (m *AuthMiddleware) Forget(userID uuid.UUID) {
	m.known.Delete(userID)
}

func (m *AuthMiddleware) isKnown(userID uuid.UUID) bool {
	_, ok := m.known.Load(userID)
	return ok
}

// extractToken extracts the token from the Authorization header ("Bearer TOKEN")
// or the access_token cookie. The header takes precedence.
func extractToken(r *http.Request) string {
	if token := extractBearerToken(r); token != "" {
		return token
	}
	if cookie, err := r.Cookie(accessTokenCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return ""
}

// extractBearerToken extracts the Bearer token from the Authorization header
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
