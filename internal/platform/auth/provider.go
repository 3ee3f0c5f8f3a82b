package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Error is an identity provider failure with a stable, client-facing code.
type Error struct {
	code string
	msg  string
}

func (e *Error) Error() string { return e.code + ": " + e.msg }

// Code returns the provider error code, e.g. "auth/wrong-password".
func (e *Error) Code() string { return e.code }

var (
	ErrUserNotFound  = &Error{code: "auth/user-not-found", msg: "no identity with this email"}
	ErrWrongPassword = &Error{code: "auth/wrong-password", msg: "password does not match"}
	ErrEmailInUse    = &Error{code: "auth/email-already-in-use", msg: "email already registered"}
	ErrWeakPassword  = &Error{code: "auth/weak-password", msg: "password must be at least 6 characters"}
	ErrInvalidEmail  = &Error{code: "auth/invalid-email", msg: "email address is malformed"}
	ErrUnavailable   = &Error{code: "auth/unavailable", msg: "identity provider is not available"}
)

// IsUnavailable reports whether err means the identity backend cannot serve
// the request at all, as opposed to rejecting the credentials.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// Grant is the result of a successful sign-in or sign-up.
type Grant struct {
	IdentityID uuid.UUID `json:"identity_id"`
	Email      string    `json:"email"`
	Token      string    `json:"token"`
	TokenID    string    `json:"-"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Provider is the identity provider boundary used by the session store.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (*Grant, error)
	SignUp(ctx context.Context, email, password string) (*Grant, error)
	// SignOut invalidates a token previously issued or accepted.
	SignOut(ctx context.Context, tokenID string, expiresAt time.Time) error
	// Ping reports whether the provider can currently serve sign-ins.
	Ping(ctx context.Context) error
}
