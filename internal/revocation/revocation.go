// Package revocation tracks access tokens that must never be accepted
// again, even while structurally valid and unexpired. Entries carry a TTL
// equal to the access token's own lifetime: a blacklist entry outliving
// the token it blocks is worthless, so the store self-prunes.
package revocation

import (
	"context"
	"time"
)

type Store interface {
	// Revoke adds the token to the blacklist. Idempotent.
	Revoke(ctx context.Context, token string, ttl time.Duration) error

	// IsRevoked reports blacklist membership
	IsRevoked(ctx context.Context, token string) (bool, error)
}
