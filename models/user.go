package models

import (
	"time"

	"github.com/google/uuid"
)

// AuthProvider identifies how a user signed in with the identity provider
type AuthProvider string

const (
	AuthProviderGoogle AuthProvider = "google"
	AuthProviderEmail  AuthProvider = "email"
	AuthProviderGuest  AuthProvider = "guest"
)

// Valid reports whether p is one of the providers accepted by the users table
func (p AuthProvider) Valid() bool {
	switch p {
	case AuthProviderGoogle, AuthProviderEmail, AuthProviderGuest:
		return true
	}
	return false
}

// User is the application profile of an externally authenticated identity.
// ID equals the identity provider's subject claim.
type User struct {
	ID           uuid.UUID    `json:"id" db:"id"`
	Email        string       `json:"email" db:"email"`
	Name         *string      `json:"name,omitempty" db:"name"`
	AvatarURL    *string      `json:"avatar_url,omitempty" db:"avatar_url"`
	AuthProvider AuthProvider `json:"auth_provider" db:"auth_provider"`
	IsGuest      bool         `json:"is_guest" db:"is_guest"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the User model
func (User) TableName() string {
	return "users"
}

// NewUser creates a new User for the given identity subject
func NewUser(id uuid.UUID, email string, provider AuthProvider) *User {
	if !provider.Valid() {
		provider = AuthProviderEmail
	}
	now := time.Now().UTC()
	return &User{
		ID:           id,
		Email:        email,
		AuthProvider: provider,
		IsGuest:      provider == AuthProviderGuest,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// DisplayName returns the user's name, falling back to the email address
func (u *User) DisplayName() string {
	if u.Name != nil && *u.Name != "" {
		return *u.Name
	}
	return u.Email
}
