package middleware

import (
	"context"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/vedaai/veda-backend/auth"
)

// Context key type to avoid collisions
type contextKey string

const (
	// IdentityKey is the context key for the verified token identity
	IdentityKey contextKey = "identity"

	// UserIDKey is the context key for user ID
	UserIDKey contextKey = "user_id"
)

// GetRequestIDFromContext retrieves the request ID set by chi's RequestID middleware
func GetRequestIDFromContext(ctx context.Context) string {
	return chimw.GetReqID(ctx)
}

// GetIdentityFromContext retrieves the verified identity from context
func GetIdentityFromContext(ctx context.Context) *auth.Identity {
	if val := ctx.Value(IdentityKey); val != nil {
		if identity, ok := val.(*auth.Identity); ok {
			return identity
		}
	}
	return nil
}

// WithIdentity adds the verified identity to the context
func WithIdentity(ctx context.Context, identity *auth.Identity) context.Context {
	ctx = context.WithValue(ctx, IdentityKey, identity)
	return context.WithValue(ctx, UserIDKey, identity.UserID)
}

// GetUserIDFromContext retrieves the caller's user ID, or uuid.Nil when unauthenticated
func GetUserIDFromContext(ctx context.Context) uuid.UUID {
	if val := ctx.Value(UserIDKey); val != nil {
		if userID, ok := val.(uuid.UUID); ok {
			return userID
		}
	}
	return uuid.Nil
}
