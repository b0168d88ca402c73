package revocation

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_MemoryStore(t *testing.T) {
	t.Parallel()

	t.Run("unknown token not revoked", func(t *testing.T) {
		s := NewMemoryStore()

		revoked, err := s.IsRevoked(t.Context(), "unknown")

		require.NoError(t, err)
		assert.False(t, revoked)
	})

	t.Run("revocation is sticky", func(t *testing.T) {
		s := NewMemoryStore()

		require.NoError(t, s.Revoke(t.Context(), "some-token", time.Hour))

		for range 3 {
			revoked, err := s.IsRevoked(t.Context(), "some-token")
			require.NoError(t, err)
			assert.True(t, revoked, "revoked token must stay revoked")
		}
	})

	t.Run("revoke is idempotent", func(t *testing.T) {
		s := NewMemoryStore()

		require.NoError(t, s.Revoke(t.Context(), "some-token", time.Hour))
		require.NoError(t, s.Revoke(t.Context(), "some-token", time.Hour))

		revoked, err := s.IsRevoked(t.Context(), "some-token")
		require.NoError(t, err)
		assert.True(t, revoked)
	})

	t.Run("entry lapses with its ttl", func(t *testing.T) {
		s := NewMemoryStore()

		require.NoError(t, s.Revoke(t.Context(), "short-lived", 10*time.Millisecond))

		revoked, err := s.IsRevoked(t.Context(), "short-lived")
		require.NoError(t, err)
		require.True(t, revoked)

		time.Sleep(20 * time.Millisecond)

		revoked, err = s.IsRevoked(t.Context(), "short-lived")
		require.NoError(t, err)
		assert.False(t, revoked, "entry older than the token's own expiry is worthless")
	})

	t.Run("zero ttl keeps entry forever", func(t *testing.T) {
		s := NewMemoryStore()

		require.NoError(t, s.Revoke(t.Context(), "no-ttl", 0))

		revoked, err := s.IsRevoked(t.Context(), "no-ttl")
		require.NoError(t, err)
		assert.True(t, revoked)
	})

	t.Run("safe under concurrent use", func(t *testing.T) {
		s := NewMemoryStore()

		var wg sync.WaitGroup
		for i := range 50 {
			wg.Add(2)
			token := fmt.Sprintf("token-%d", i)

			go func() {
				defer wg.Done()
				require.NoError(t, s.Revoke(t.Context(), token, time.Hour))
			}()
			go func() {
				defer wg.Done()
				_, err := s.IsRevoked(t.Context(), token)
				require.NoError(t, err)
			}()
		}
		wg.Wait()

		for i := range 50 {
			revoked, err := s.IsRevoked(t.Context(), fmt.Sprintf("token-%d", i))
			require.NoError(t, err)
			assert.True(t, revoked)
		}
	})
}
