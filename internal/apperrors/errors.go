package apperrors

import (
	"errors"
)

// Token errors surfaced to the request/handlers layer.
// Refresh failures are collapsed into ErrInvalidRefreshToken on purpose:
// the caller must not learn whether the token was unknown, revoked or expired.
var (
	ErrTokenMissing       = errors.New("token missing")
	ErrInvalidTokenFormat = errors.New("invalid token format")
	ErrInvalidSignature   = errors.New("token signature invalid")
	ErrTokenMalformed     = errors.New("token malformed")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenRevoked       = errors.New("token revoked")

	ErrInvalidRefreshToken = errors.New("invalid refresh token")

	// Covers both unknown username and wrong password
	ErrAuthenticationFailed = errors.New("authentication failed")

	// The only server side fault in the taxonomy
	ErrStorageUnavailable = errors.New("storage unavailable")
)

var (
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrUserNotFound      = errors.New("user not found")

	// Returned by the ledger when a refresh token row is absent, revoked or expired
	ErrRefreshTokenNotActive = errors.New("refresh token not active")
)
