package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/surgicast/surgicast/internal/platform/db"
)

type credentialStorePG struct{ pool *pgxpool.Pool }

func NewCredentialStorePG(pool *pgxpool.Pool) CredentialStore {
	return &credentialStorePG{pool: pool}
}

func (s *credentialStorePG) GetByEmail(ctx context.Context, email string) (*Credential, error) {
	var c Credential
	err := db.Conn(ctx, s.pool).QueryRow(ctx,
		`SELECT id, email, password_hash, created_at FROM identities WHERE email = $1`, email).
		Scan(&c.ID, &c.Email, &c.PasswordHash, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get identity: %w", err)
	}
	return &c, nil
}

func (s *credentialStorePG) Create(ctx context.Context, c *Credential) error {
	err := db.Conn(ctx, s.pool).QueryRow(ctx,
		`INSERT INTO identities (id, email, password_hash) VALUES ($1, $2, $3) RETURNING created_at`,
		c.ID, c.Email, c.PasswordHash).Scan(&c.CreatedAt)
	if db.IsUniqueViolation(err) {
		return ErrEmailInUse
	}
	if err != nil {
		return fmt.Errorf("create identity: %w", err)
	}
	return nil
}

func (s *credentialStorePG) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
