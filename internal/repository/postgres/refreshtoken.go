package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/blogplatform/authd/internal/apperrors"
	"github.com/blogplatform/authd/internal/models"
)

type RefreshTokenRepo struct {
	DB DBTX
}

const storeToken = `-- name: StoreRefreshToken
INSERT INTO refresh_tokens (id, user_id, token, created_at, updated_at, expires_at, revoked)
VALUES ($1, $2, $3, $4, $4, $5, false)
RETURNING id, user_id, token, created_at, updated_at, expires_at, revoked
`

func (r *RefreshTokenRepo) Store(ctx context.Context, userID int64, token string, expiresAt time.Time) (models.RefreshToken, error) {
	now := time.Now()
	rows, _ := r.DB.Query(ctx, storeToken, uuid.New(), userID, token, now, expiresAt)
	record, err := pgx.CollectOneRow(rows, rowToRefreshToken)
	if err != nil {
		return record, fmt.Errorf("db error: %w", err)
	}

	return record, nil
}

const findActiveToken = `-- name: FindActiveRefreshToken
SELECT id, user_id, token, created_at, updated_at, expires_at, revoked
FROM refresh_tokens
WHERE token = $1 AND NOT revoked AND expires_at > $2
`

// FindActive returns the row only if it is usable right now.
// Unknown, revoked and expired all collapse into ErrRefreshTokenNotActive.
func (r *RefreshTokenRepo) FindActive(ctx context.Context, token string) (models.RefreshToken, error) {
	rows, _ := r.DB.Query(ctx, findActiveToken, token, time.Now())
	return collectRefreshToken(rows)
}

const hasActiveForUser = `-- name: HasActiveRefreshTokenForUser
SELECT EXISTS (
	SELECT 1 FROM refresh_tokens
	WHERE user_id = $1 AND NOT revoked AND expires_at > $2
)
`

func (r *RefreshTokenRepo) HasActiveForUser(ctx context.Context, userID int64) (bool, error) {
	rows, _ := r.DB.Query(ctx, hasActiveForUser, userID, time.Now())
	exists, err := pgx.CollectOneRow(rows, pgx.RowTo[bool])
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	return exists, nil
}

const revokeActiveToken = `-- name: RevokeActiveRefreshToken
UPDATE refresh_tokens
SET revoked = true, updated_at = $2
WHERE token = $1 AND NOT revoked AND expires_at > $2
RETURNING id, user_id, token, created_at, updated_at, expires_at, revoked
`

// RevokeActive is the rotation guard: the WHERE clause only matches a row
// that is still active, so of N concurrent callers exactly one sees the
// row and the rest get ErrRefreshTokenNotActive.
func (r *RefreshTokenRepo) RevokeActive(ctx context.Context, token string) (models.RefreshToken, error) {
	rows, _ := r.DB.Query(ctx, revokeActiveToken, token, time.Now())
	return collectRefreshToken(rows)
}

const revokeToken = `-- name: RevokeRefreshToken
UPDATE refresh_tokens
SET revoked = true, updated_at = $2
WHERE token = $1 AND NOT revoked
`

// Revoke is idempotent: revoking an already revoked or unknown token is a no-op
func (r *RefreshTokenRepo) Revoke(ctx context.Context, token string) error {
	_, err := r.DB.Exec(ctx, revokeToken, token, time.Now())
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

const revokeAllForUser = `-- name: RevokeAllRefreshTokensForUser
UPDATE refresh_tokens
SET revoked = true, updated_at = $2
WHERE user_id = $1 AND NOT revoked
`

func (r *RefreshTokenRepo) RevokeAllForUser(ctx context.Context, userID int64) error {
	_, err := r.DB.Exec(ctx, revokeAllForUser, userID, time.Now())
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func collectRefreshToken(rows pgx.Rows) (models.RefreshToken, error) {
	record, err := pgx.CollectOneRow(rows, rowToRefreshToken)

	switch {
	case err == nil:
		return record, nil
	case errors.Is(err, pgx.ErrNoRows):
		return record, apperrors.ErrRefreshTokenNotActive
	default:
		return record, fmt.Errorf("db error: %w", err)
	}
}

func rowToRefreshToken(row pgx.CollectableRow) (models.RefreshToken, error) {
	var t models.RefreshToken
	err := row.Scan(&t.ID, &t.UserID, &t.Token, &t.CreatedAt, &t.UpdatedAt, &t.ExpiresAt, &t.Revoked)
	return t, err
}
