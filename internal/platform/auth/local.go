package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

// Credential is a stored email/password identity.
type Credential struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// CredentialStore persists identities for the built-in provider.
// GetByEmail returns ErrUserNotFound when no identity matches and Create
// returns ErrEmailInUse on a duplicate email.
type CredentialStore interface {
	GetByEmail(ctx context.Context, email string) (*Credential, error)
	Create(ctx context.Context, c *Credential) error
	Ping(ctx context.Context) error
}

// LocalProvider signs identities in against the identities table and issues
// HS256 tokens.
type LocalProvider struct {
	store       CredentialStore
	revocations RevocationStore
	signingKey  []byte
	issuer      string
	ttl         time.Duration
	cost        int
}

type LocalOption func(*LocalProvider)

// WithBcryptCost overrides bcrypt.DefaultCost. Tests use bcrypt.MinCost.
func WithBcryptCost(cost int) LocalOption {
	return func(p *LocalProvider) { p.cost = cost }
}

func NewLocalProvider(store CredentialStore, revocations RevocationStore, signingKey []byte, issuer string, ttl time.Duration, opts ...LocalOption) *LocalProvider {
	p := &LocalProvider{
		store:       store,
		revocations: revocations,
		signingKey:  signingKey,
		issuer:      issuer,
		ttl:         ttl,
		cost:        bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}

func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (*Grant, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	cred, err := p.store.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, ErrWrongPassword
		}
		return nil, fmt.Errorf("compare password: %w", err)
	}
	return IssueToken(p.signingKey, p.issuer, cred.ID, cred.Email, p.ttl)
}

func (p *LocalProvider) SignUp(ctx context.Context, email, password string) (*Grant, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if len(password) < minPasswordLength {
		return nil, ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	cred := &Credential{ID: uuid.New(), Email: email, PasswordHash: string(hash)}
	if err := p.store.Create(ctx, cred); err != nil {
		return nil, err
	}
	return IssueToken(p.signingKey, p.issuer, cred.ID, cred.Email, p.ttl)
}

func (p *LocalProvider) SignOut(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if p.revocations == nil {
		return nil
	}
	return p.revocations.Revoke(ctx, tokenID, expiresAt)
}

func (p *LocalProvider) Ping(ctx context.Context) error {
	if err := p.store.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// ExternalProvider is used when tokens are minted by an outside issuer. This
// service can verify and revoke those tokens but cannot sign anyone in.
type ExternalProvider struct {
	revocations RevocationStore
}

func NewExternalProvider(revocations RevocationStore) *ExternalProvider {
	return &ExternalProvider{revocations: revocations}
}

func (p *ExternalProvider) SignIn(context.Context, string, string) (*Grant, error) {
	return nil, ErrUnavailable
}

func (p *ExternalProvider) SignUp(context.Context, string, string) (*Grant, error) {
	return nil, ErrUnavailable
}

func (p *ExternalProvider) SignOut(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if p.revocations == nil {
		return nil
	}
	return p.revocations.Revoke(ctx, tokenID, expiresAt)
}

// Ping always fails: sign-in is not served here.
func (p *ExternalProvider) Ping(context.Context) error {
	return ErrUnavailable
}
