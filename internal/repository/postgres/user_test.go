package postgres

import (
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blogplatform/authd/internal/apperrors"
	"github.com/blogplatform/authd/internal/testutil"
)

func Test_UserRepo(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	t.Run("create user ok", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := UserRepo{DB: tx}

			user, err := repo.CreateUser(t.Context(), "alice", "hash")

			require.NoError(t, err)
			require.NotZero(t, user.ID)
			require.Equal(t, "alice", user.Username)
			require.Equal(t, "hash", user.HashedPassword)
		})
	})

	t.Run("duplicate username rejected", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := UserRepo{DB: tx}
			_, err := repo.CreateUser(t.Context(), "alice", "hash")
			require.NoError(t, err)

			_, err = repo.CreateUser(t.Context(), "alice", "other-hash")

			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrUserAlreadyExists)
		})
	})

	t.Run("get by username and id", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := UserRepo{DB: tx}
			created, err := repo.CreateUser(t.Context(), "alice", "hash")
			require.NoError(t, err)

			byName, err := repo.GetUserByUsername(t.Context(), "alice")
			require.NoError(t, err)
			require.Equal(t, created.ID, byName.ID)

			byID, err := repo.GetUserByID(t.Context(), created.ID)
			require.NoError(t, err)
			require.Equal(t, "alice", byID.Username)
		})
	})

	t.Run("unknown user not found", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := UserRepo{DB: tx}

			_, err := repo.GetUserByUsername(t.Context(), "nobody")
			assert.ErrorIs(t, err, apperrors.ErrUserNotFound)

			_, err = repo.GetUserByID(t.Context(), 424242)
			assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
		})
	})
}
