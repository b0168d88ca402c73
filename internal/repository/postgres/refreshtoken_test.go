package postgres

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blogplatform/authd/internal/apperrors"
	"github.com/blogplatform/authd/internal/models"
	"github.com/blogplatform/authd/internal/repository"
	"github.com/blogplatform/authd/internal/testutil"
)

func createTestUser(t *testing.T, db DBTX, username string) models.User {
	t.Helper()

	repo := UserRepo{DB: db}
	user, err := repo.CreateUser(t.Context(), username, "hash")
	require.NoError(t, err, "user should be created for refresh token tests")
	return user
}

func Test_RefreshTokenRepo(t *testing.T) {
	t.Parallel() // It's ok to run in parallel with other tests, but not with subtests

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	farFuture := time.Now().Add(100 * 365 * 24 * time.Hour)

	t.Run("store token ok", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			user := createTestUser(t, tx, "alice")
			repo := RefreshTokenRepo{DB: tx}

			got, err := repo.Store(t.Context(), user.ID, "secret-token", farFuture)

			require.NoError(t, err)
			require.Equal(t, user.ID, got.UserID)
			require.Equal(t, "secret-token", got.Token)
			require.False(t, got.Revoked, "fresh row must not be revoked")
			require.WithinDuration(t, farFuture, got.ExpiresAt, time.Microsecond)
			require.WithinDuration(t, time.Now(), got.CreatedAt, time.Minute)
		})
	})

	t.Run("find active", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			user := createTestUser(t, tx, "alice")
			repo := RefreshTokenRepo{DB: tx}
			_, err := repo.Store(t.Context(), user.ID, "secret-token", farFuture)
			require.NoError(t, err)

			got, err := repo.FindActive(t.Context(), "secret-token")

			require.NoError(t, err)
			require.Equal(t, "secret-token", got.Token)
			require.Equal(t, user.ID, got.UserID)
		})
	})

	t.Run("find active misses unknown token", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := RefreshTokenRepo{DB: tx}

			_, err := repo.FindActive(t.Context(), "never-stored")

			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrRefreshTokenNotActive)
		})
	})

	t.Run("find active misses expired token", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			user := createTestUser(t, tx, "alice")
			repo := RefreshTokenRepo{DB: tx}
			_, err := repo.Store(t.Context(), user.ID, "expired-token", time.Now().Add(-time.Second))
			require.NoError(t, err)

			_, err = repo.FindActive(t.Context(), "expired-token")

			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrRefreshTokenNotActive)
		})
	})

	t.Run("has active for user", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			user := createTestUser(t, tx, "alice")
			repo := RefreshTokenRepo{DB: tx}

			ok, err := repo.HasActiveForUser(t.Context(), user.ID)
			require.NoError(t, err)
			require.False(t, ok, "no rows stored yet")

			_, err = repo.Store(t.Context(), user.ID, "secret-token", farFuture)
			require.NoError(t, err)

			ok, err = repo.HasActiveForUser(t.Context(), user.ID)
			require.NoError(t, err)
			require.True(t, ok)

			require.NoError(t, repo.Revoke(t.Context(), "secret-token"))

			ok, err = repo.HasActiveForUser(t.Context(), user.ID)
			require.NoError(t, err)
			require.False(t, ok, "revoked row must not count as active")
		})
	})

	t.Run("multiple active tokens per user allowed", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			user := createTestUser(t, tx, "alice")
			repo := RefreshTokenRepo{DB: tx}

			_, err := repo.Store(t.Context(), user.ID, "token-device-1", farFuture)
			require.NoError(t, err)
			_, err = repo.Store(t.Context(), user.ID, "token-device-2", farFuture)
			require.NoError(t, err)

			require.NoError(t, repo.Revoke(t.Context(), "token-device-1"))

			ok, err := repo.HasActiveForUser(t.Context(), user.ID)
			require.NoError(t, err)
			require.True(t, ok, "the other device's token is still active")
		})
	})

	t.Run("revoke active wins only once", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			user := createTestUser(t, tx, "alice")
			repo := RefreshTokenRepo{DB: tx}
			_, err := repo.Store(t.Context(), user.ID, "secret-token", farFuture)
			require.NoError(t, err)

			got, err := repo.RevokeActive(t.Context(), "secret-token")
			require.NoError(t, err)
			require.True(t, got.Revoked)
			require.Equal(t, user.ID, got.UserID)

			_, err = repo.RevokeActive(t.Context(), "secret-token")
			require.Error(t, err, "second revoke-active must lose")
			assert.ErrorIs(t, err, apperrors.ErrRefreshTokenNotActive)
		})
	})

	t.Run("revoke is idempotent and tolerates absent rows", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			user := createTestUser(t, tx, "alice")
			repo := RefreshTokenRepo{DB: tx}
			_, err := repo.Store(t.Context(), user.ID, "secret-token", farFuture)
			require.NoError(t, err)

			require.NoError(t, repo.Revoke(t.Context(), "secret-token"))
			require.NoError(t, repo.Revoke(t.Context(), "secret-token"))
			require.NoError(t, repo.Revoke(t.Context(), "never-stored"))
		})
	})

	t.Run("revoke all for user", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			alice := createTestUser(t, tx, "alice")
			bob := createTestUser(t, tx, "bob")
			repo := RefreshTokenRepo{DB: tx}

			_, err := repo.Store(t.Context(), alice.ID, "alice-1", farFuture)
			require.NoError(t, err)
			_, err = repo.Store(t.Context(), alice.ID, "alice-2", farFuture)
			require.NoError(t, err)
			_, err = repo.Store(t.Context(), bob.ID, "bob-1", farFuture)
			require.NoError(t, err)

			require.NoError(t, repo.RevokeAllForUser(t.Context(), alice.ID))

			ok, err := repo.HasActiveForUser(t.Context(), alice.ID)
			require.NoError(t, err)
			require.False(t, ok)

			ok, err = repo.HasActiveForUser(t.Context(), bob.ID)
			require.NoError(t, err)
			require.True(t, ok, "other users must not be touched")
		})
	})

	// Runs on the pool directly: InTx begins its own transaction
	t.Run("in tx rolls back the rotation on error", func(t *testing.T) {
		storage := NewStorage(pg.Pool)
		user := createTestUser(t, pg.Pool, "tx-user")

		_, err := storage.Refresh().Store(t.Context(), user.ID, "tx-old-token", farFuture)
		require.NoError(t, err)

		errInsertBroke := errors.New("insert broke")
		err = storage.InTx(t.Context(), func(st repository.Storage) error {
			_, err := st.Refresh().RevokeActive(t.Context(), "tx-old-token")
			require.NoError(t, err, "revoke must succeed inside the transaction")
			return errInsertBroke
		})
		require.ErrorIs(t, err, errInsertBroke)

		got, err := storage.Refresh().FindActive(t.Context(), "tx-old-token")
		require.NoError(t, err, "failed transaction must not leave the token revoked")
		require.False(t, got.Revoked)
	})

	t.Run("in tx commits on success", func(t *testing.T) {
		storage := NewStorage(pg.Pool)
		user := createTestUser(t, pg.Pool, "tx-commit-user")

		_, err := storage.Refresh().Store(t.Context(), user.ID, "tx-rotated-token", farFuture)
		require.NoError(t, err)

		err = storage.InTx(t.Context(), func(st repository.Storage) error {
			if _, err := st.Refresh().RevokeActive(t.Context(), "tx-rotated-token"); err != nil {
				return err
			}
			_, err := st.Refresh().Store(t.Context(), user.ID, "tx-new-token", farFuture)
			return err
		})
		require.NoError(t, err)

		_, err = storage.Refresh().FindActive(t.Context(), "tx-rotated-token")
		assert.ErrorIs(t, err, apperrors.ErrRefreshTokenNotActive, "old token must stay revoked after commit")

		got, err := storage.Refresh().FindActive(t.Context(), "tx-new-token")
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.UserID)
	})

	// Runs on the pool directly: concurrent writers cannot share one tx
	t.Run("concurrent revoke active has exactly one winner", func(t *testing.T) {
		repo := RefreshTokenRepo{DB: pg.Pool}
		user := createTestUser(t, pg.Pool, "concurrent-user")
		_, err := repo.Store(t.Context(), user.ID, "contested-token", farFuture)
		require.NoError(t, err)

		const workers = 8
		errs := make([]error, workers)

		var wg sync.WaitGroup
		for i := range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = repo.RevokeActive(t.Context(), "contested-token")
			}()
		}
		wg.Wait()

		winners := 0
		for _, err := range errs {
			if err == nil {
				winners++
				continue
			}
			assert.ErrorIs(t, err, apperrors.ErrRefreshTokenNotActive)
		}
		assert.Equal(t, 1, winners, "exactly one concurrent caller may rotate the token")
	})
}
