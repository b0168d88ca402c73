package revocation

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the in-process blacklist. It does not survive restarts
// and does not scale across instances, use RedisStore for that.
type MemoryStore struct {
	mu      sync.RWMutex
	revoked map[string]time.Time // token -> entry expiry, zero time means no expiry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		revoked: make(map[string]time.Time),
	}
}

func (s *MemoryStore) Revoke(_ context.Context, token string, ttl time.Duration) error {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Sweep stale entries while holding the write lock anyway.
	// No background timer needed: writes are rare (logout only).
	now := time.Now()
	for t, exp := range s.revoked {
		if !exp.IsZero() && exp.Before(now) {
			delete(s.revoked, t)
		}
	}

	s.revoked[token] = expiresAt
	return nil
}

func (s *MemoryStore) IsRevoked(_ context.Context, token string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expiresAt, ok := s.revoked[token]
	if !ok {
		return false, nil
	}
	if !expiresAt.IsZero() && expiresAt.Before(time.Now()) {
		return false, nil
	}

	return true, nil
}
