// Package token issues and verifies the signed credentials used as access
// and refresh tokens. Both are HS256 JWTs in compact serialization, so any
// standard JWT client can consume them.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/blogplatform/authd/internal/apperrors"
	"github.com/blogplatform/authd/internal/models"
)

const signingMethod = "HS256"

// Claims carried by every issued token
type Claims struct {
	jwt.RegisteredClaims
	UserID int64 `json:"uid"`
}

type Codec struct {
	// Process wide signing key, immutable after construction
	key []byte
	alg jwt.SigningMethod
}

// NewCodec creates a codec with the given symmetric signing key.
// The key is injected explicitly so tests may use a fixed one.
func NewCodec(secretKey string) (*Codec, error) {
	if secretKey == "" {
		return nil, errors.New("secret key must not be empty")
	}

	return &Codec{
		key: []byte(secretKey),
		alg: jwt.GetSigningMethod(signingMethod),
	}, nil
}

// Issue builds and signs a token for the subject.
// Expiry is always issuedAt + ttl; timestamps are second granularity
// cause that is what JWT NumericDate encodes.
func (c *Codec) Issue(subject string, userID int64, ttl time.Duration) (models.IssuedToken, error) {
	now := time.Now().Truncate(time.Second)
	expiresAt := now.Add(ttl)

	token := jwt.NewWithClaims(
		c.alg,
		Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        uuid.NewString(),
				Subject:   subject,
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(expiresAt),
			},
			UserID: userID,
		},
	)

	signed, err := token.SignedString(c.key)
	if err != nil {
		return models.IssuedToken{}, fmt.Errorf("error while signing token. Err: %w", err)
	}

	return models.IssuedToken{Value: signed, ExpiresAt: expiresAt}, nil
}

// Decode verifies the signature and returns the claims.
// It deliberately does not reject expired tokens: expiry is a separate
// check (IsExpired) so callers can tell "expired" apart from "forged".
func (c *Codec) Decode(tokenString string) (Claims, error) {
	claims := Claims{}

	_, err := jwt.ParseWithClaims(
		tokenString,
		&claims,
		func(t *jwt.Token) (any, error) { return c.key, nil },
		jwt.WithValidMethods([]string{c.alg.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenMalformed):
		return Claims{}, fmt.Errorf("%w: %v", apperrors.ErrTokenMalformed, err)
	default:
		return Claims{}, fmt.Errorf("%w: %v", apperrors.ErrInvalidSignature, err)
	}
}

// IsExpired compares the token expiry to current time.
// A token without expiry claim is treated as expired.
func (c *Codec) IsExpired(claims Claims) bool {
	if claims.ExpiresAt == nil {
		return true
	}
	return claims.ExpiresAt.Before(time.Now())
}
