// Package auth orchestrates the token lifecycles: it issues access/refresh
// pairs on login, validates presented access tokens, rotates refresh
// tokens and revokes everything on logout.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/blogplatform/authd/internal/apperrors"
	"github.com/blogplatform/authd/internal/models"
	"github.com/blogplatform/authd/internal/repository"
	"github.com/blogplatform/authd/internal/revocation"
	"github.com/blogplatform/authd/internal/token"
)

const (
	defaultAccessTokenTTL  = 15 * time.Minute
	defaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// CredentialVerifier is the user directory capability the auth core calls
// on login. It owns password hashing, this package never sees a hash.
type CredentialVerifier interface {
	// Must return apperrors.ErrAuthenticationFailed on bad credentials
	// without revealing whether the username or the password was wrong
	VerifyCredentials(ctx context.Context, username string, password string) (models.User, error)
}

type Config struct {
	// Access and refresh token lifetimes
	// If not set then defaults are used (15 min and 7 days)
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

type Service struct {
	codec   *token.Codec
	revoked revocation.Store
	storage repository.Storage
	users   CredentialVerifier

	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewService(cfg Config, codec *token.Codec, revoked revocation.Store, storage repository.Storage, users CredentialVerifier) (*Service, error) {
	if codec == nil || revoked == nil || storage == nil || users == nil {
		return nil, errors.New("codec, revocation store, storage and verifier must not be nil")
	}

	setDefaultDuration := func(field *time.Duration, def time.Duration) {
		if *field == 0 {
			*field = def
		}
	}
	setDefaultDuration(&cfg.AccessTokenTTL, defaultAccessTokenTTL)
	setDefaultDuration(&cfg.RefreshTokenTTL, defaultRefreshTokenTTL)

	return &Service{
		codec:      codec,
		revoked:    revoked,
		storage:    storage,
		users:      users,
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
	}, nil
}

// Login verifies credentials via the user directory and issues a fresh
// token pair. The refresh token is persisted in the ledger before the pair
// is returned.
func (s *Service) Login(ctx context.Context, username string, password string) (models.TokenPair, models.Principal, error) {
	if username == "" || password == "" {
		return models.TokenPair{}, models.Principal{}, apperrors.ErrAuthenticationFailed
	}

	user, err := s.users.VerifyCredentials(ctx, username, password)
	if err != nil {
		return models.TokenPair{}, models.Principal{}, err
	}

	pair, err := s.issuePair(ctx, s.storage.Refresh(), user.Username, user.ID)
	if err != nil {
		return models.TokenPair{}, models.Principal{}, err
	}

	return pair, models.Principal{UserID: user.ID, Username: user.Username}, nil
}

// ValidateAccessToken resolves the principal behind an access token.
// The token is good only if all four hold: the signature verifies, it is
// not expired, it is not blacklisted, and the user still owns at least one
// active refresh token. The last check makes revoking a user's refresh
// tokens kill every outstanding access token at once, at the price of one
// ledger lookup per request.
func (s *Service) ValidateAccessToken(ctx context.Context, accessToken string) (models.Principal, error) {
	if accessToken == "" {
		return models.Principal{}, apperrors.ErrTokenMissing
	}

	claims, err := s.codec.Decode(accessToken)
	if err != nil {
		return models.Principal{}, err
	}

	if s.codec.IsExpired(claims) {
		return models.Principal{}, apperrors.ErrTokenExpired
	}

	revoked, err := s.revoked.IsRevoked(ctx, accessToken)
	if err != nil {
		return models.Principal{}, storageError(err)
	}
	if revoked {
		return models.Principal{}, apperrors.ErrTokenRevoked
	}

	active, err := s.storage.Refresh().HasActiveForUser(ctx, claims.UserID)
	if err != nil {
		return models.Principal{}, storageError(err)
	}
	if !active {
		return models.Principal{}, apperrors.ErrTokenRevoked
	}

	return models.Principal{UserID: claims.UserID, Username: claims.Subject}, nil
}

// Refresh redeems a refresh token for a new pair and rotates it: the old
// token is revoked and the replacement stored in one transaction, so the
// token can never be redeemed twice and a storage fault can never leave
// the user with the old token revoked and no replacement persisted. Under
// concurrent calls with the same token exactly one caller gets a pair,
// the rest get ErrInvalidRefreshToken.
//
// The old access token is deliberately not revoked here: it stays valid
// until its own short expiry or until a logout revokes the user's ledger
// rows. Access tokens are short-lived by design.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error) {
	if refreshToken == "" {
		return models.TokenPair{}, apperrors.ErrTokenMissing
	}

	claims, err := s.codec.Decode(refreshToken)
	if err != nil {
		// Forged or garbled, reject without touching storage
		return models.TokenPair{}, fmt.Errorf("%w: %v", apperrors.ErrInvalidRefreshToken, err)
	}
	if s.codec.IsExpired(claims) {
		return models.TokenPair{}, apperrors.ErrInvalidRefreshToken
	}

	var pair models.TokenPair
	txErr := s.storage.InTx(ctx, func(st repository.Storage) error {
		record, err := st.Refresh().RevokeActive(ctx, refreshToken)
		switch {
		case errors.Is(err, apperrors.ErrRefreshTokenNotActive):
			return apperrors.ErrInvalidRefreshToken
		case err != nil:
			return storageError(err)
		}

		// The ledger row is authoritative for ownership
		if record.UserID != claims.UserID {
			return apperrors.ErrInvalidRefreshToken
		}

		pair, err = s.issuePair(ctx, st.Refresh(), claims.Subject, claims.UserID)
		return err
	})

	switch {
	case errors.Is(txErr, apperrors.ErrInvalidRefreshToken),
		errors.Is(txErr, apperrors.ErrStorageUnavailable):
		return models.TokenPair{}, txErr
	case txErr != nil:
		// Begin or commit faults
		return models.TokenPair{}, storageError(txErr)
	}

	return pair, nil
}

// Logout revokes the access token via the blacklist and every refresh
// token of its user. A refresh token may be supplied explicitly to cover
// the case the access token no longer decodes. Repeated logouts are fine.
func (s *Service) Logout(ctx context.Context, accessToken string, refreshToken string) error {
	if accessToken == "" {
		return apperrors.ErrTokenMissing
	}

	// Blacklist entries older than the access token's own expiry are
	// worthless, so they share its ttl
	if err := s.revoked.Revoke(ctx, accessToken, s.accessTTL); err != nil {
		return storageError(err)
	}

	claims, err := s.codec.Decode(accessToken)
	if err == nil {
		if err := s.storage.Refresh().RevokeAllForUser(ctx, claims.UserID); err != nil {
			return storageError(err)
		}
	}

	if refreshToken != "" {
		if err := s.storage.Refresh().Revoke(ctx, refreshToken); err != nil {
			return storageError(err)
		}
	}

	return nil
}

// issuePair mints both tokens and persists the refresh one in the given
// ledger, which may be transaction scoped
func (s *Service) issuePair(ctx context.Context, ledger repository.RefreshTokenRepo, subject string, userID int64) (models.TokenPair, error) {
	access, err := s.codec.Issue(subject, userID, s.accessTTL)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("error while issuing access token. Err: %w", err)
	}

	refresh, err := s.codec.Issue(subject, userID, s.refreshTTL)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("error while issuing refresh token. Err: %w", err)
	}

	if _, err := ledger.Store(ctx, userID, refresh.Value, refresh.ExpiresAt); err != nil {
		return models.TokenPair{}, storageError(err)
	}

	return models.TokenPair{Access: access, Refresh: refresh}, nil
}

// storageError folds storage faults into the one server side category of
// the taxonomy. Raw driver errors never cross this boundary.
func storageError(err error) error {
	return fmt.Errorf("%w: %v", apperrors.ErrStorageUnavailable, err)
}
