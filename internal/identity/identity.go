// Package identity issues and verifies session tokens for local and Firebase accounts
// and tells listeners about every sign-in and sign-out.
package identity

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrEmailTaken          = errors.New("email already registered")
	ErrInvalidToken        = errors.New("invalid or expired token")
	ErrFirebaseUnavailable = errors.New("firebase login is not configured")
)

// Identity is the signed-in account behind one session token.
type Identity struct {
	UID       string    `json:"uid"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	SessionID string    `json:"sessionId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Grant is returned by every successful sign-in.
type Grant struct {
	Token    string   `json:"token"`
	Identity Identity `json:"identity"`
}

type EventKind string

const (
	SignedIn  EventKind = "signed_in"
	SignedOut EventKind = "signed_out"
)

// AuthEvent is delivered to OnAuthStateChanged listeners.
type AuthEvent struct {
	Kind     EventKind
	Identity Identity
}

// Provider is the identity contract the HTTP layer and the session manager use.
type Provider interface {
	Register(ctx context.Context, name, email, password string) (Grant, error)
	SignIn(ctx context.Context, email, password string) (Grant, error)
	FirebaseLogin(ctx context.Context, idToken string) (Grant, error)
	SignOut(ctx context.Context, id Identity) error
	Verify(token string) (Identity, error)
	UpdateDisplayName(ctx context.Context, id Identity, name string) error
	OnAuthStateChanged(listener func(AuthEvent)) (unsubscribe func())
}
