package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

// IssueToken signs an HS256 bearer token for identityID.
func IssueToken(key []byte, issuer string, identityID uuid.UUID, email string, ttl time.Duration) (*Grant, error) {
	now := time.Now()
	jti := uuid.NewString()
	expiresAt := now.Add(ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   identityID.String(),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email: email,
	})

	signed, err := token.SignedString(key)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &Grant{
		IdentityID: identityID,
		Email:      email,
		Token:      signed,
		TokenID:    jti,
		ExpiresAt:  expiresAt,
	}, nil
}
