package repository

import (
	"context"
	"time"

	"github.com/blogplatform/authd/internal/models"
)

// User repository interface
type UserRepo interface {
	// Create user
	// If user with username exists already has to return apperrors.ErrUserAlreadyExists
	CreateUser(ctx context.Context, username string, hashedPassword string) (models.User, error)

	// Get user by id or username
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID int64) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
}

// RefreshTokenRepo is the ledger: the single source of truth for which
// refresh tokens are currently usable. Rows are soft-revoked, never deleted.
type RefreshTokenRepo interface {
	// Store inserts a new active row
	Store(ctx context.Context, userID int64, token string, expiresAt time.Time) (models.RefreshToken, error)

	// FindActive returns the row only if it is not revoked and not expired.
	// Anything else is apperrors.ErrRefreshTokenNotActive, absence is not special.
	FindActive(ctx context.Context, token string) (models.RefreshToken, error)

	// HasActiveForUser reports whether at least one active row exists for the
	// user. This is the gate that ties access token validity to refresh
	// token liveness.
	HasActiveForUser(ctx context.Context, userID int64) (bool, error)

	// RevokeActive marks the row revoked only if it is still active and
	// returns it. Under concurrent calls with the same token exactly one
	// caller wins, the rest get apperrors.ErrRefreshTokenNotActive.
	// This is the compare-and-swap that makes rotation single-use.
	RevokeActive(ctx context.Context, token string) (models.RefreshToken, error)

	// Revoke marks the row revoked. Idempotent, absent row is not an error.
	Revoke(ctx context.Context, token string) error

	// RevokeAllForUser marks every row of the user revoked
	RevokeAllForUser(ctx context.Context, userID int64) error
}

// Storage aggregates the repositories over one connection or transaction
type Storage interface {
	User() UserRepo
	Refresh() RefreshTokenRepo

	InTx(ctx context.Context, fn func(Storage) error) error
}
