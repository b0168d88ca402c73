package models

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken is a ledger row. Rows are never deleted by the service,
// revocation flips the Revoked flag only.
type RefreshToken struct {
	ID        uuid.UUID
	UserID    int64
	Token     string
	CreatedAt time.Time
	UpdatedAt time.Time
	ExpiresAt time.Time
	Revoked   bool
}

// Active reports whether the row may still be redeemed at the given moment
func (t RefreshToken) Active(now time.Time) bool {
	return !t.Revoked && t.ExpiresAt.After(now)
}
