// Package user is the user directory: it owns password hashing and user
// lookup. The auth core only ever sees it through the CredentialVerifier
// interface.
package user

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/blogplatform/authd/internal/apperrors"
	"github.com/blogplatform/authd/internal/models"
	"github.com/blogplatform/authd/internal/repository"
)

// Interface to create or compare user password hashes
type Hasher interface {
	// Generate Hash from password
	Hash(password string) (string, error)

	// Compare known hashedPassword and user provided password
	// Must be protected against timing attacks
	Compare(hashedPassword string, password string) error
}

// Bcrypt password hasher, the default one.
// Passwords are pre-hashed with sha256 to sidestep bcrypt's 72 byte limit.
type BcryptHasher struct{}

func (h BcryptHasher) Hash(password string) (string, error) {
	sum := sha256.Sum256([]byte(password))
	hash, err := bcrypt.GenerateFromPassword(sum[:], bcrypt.DefaultCost)
	return string(hash), err
}

func (h BcryptHasher) Compare(hashedPassword string, password string) error {
	sum := sha256.Sum256([]byte(password))
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), sum[:])
}

// Burned when the username is unknown, so lookup misses cost about as much
// as a wrong password
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

type Service struct {
	hasher Hasher
	users  repository.UserRepo
}

func NewService(hasher Hasher, users repository.UserRepo) (*Service, error) {
	if users == nil {
		return nil, errors.New("user repo must not be nil")
	}
	if hasher == nil {
		hasher = BcryptHasher{}
	}

	return &Service{
		hasher: hasher,
		users:  users,
	}, nil
}

func (s *Service) Register(ctx context.Context, username string, password string) (models.User, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return models.User{}, fmt.Errorf("can't use this as password, error=%w", err)
	}

	user, err := s.users.CreateUser(ctx, username, hash)
	if err != nil {
		return models.User{}, err
	}

	return user, nil
}

// GetByID resolves a user by id, ErrUserNotFound passes through untouched
// so callers can treat a vanished user as an authorization failure.
func (s *Service) GetByID(ctx context.Context, userID int64) (models.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)

	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return models.User{}, err
	case err != nil:
		return models.User{}, fmt.Errorf("%w: %v", apperrors.ErrStorageUnavailable, err)
	}

	return user, nil
}

// VerifyCredentials resolves the user only if username and password match.
// Unknown username and wrong password are indistinguishable to the caller.
func (s *Service) VerifyCredentials(ctx context.Context, username string, password string) (models.User, error) {
	user, err := s.users.GetUserByUsername(ctx, username)

	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		_ = s.hasher.Compare(dummyHash, password)
		return models.User{}, apperrors.ErrAuthenticationFailed
	case err != nil:
		return models.User{}, fmt.Errorf("%w: %v", apperrors.ErrStorageUnavailable, err)
	}

	if err := s.hasher.Compare(user.HashedPassword, password); err != nil {
		return models.User{}, apperrors.ErrAuthenticationFailed
	}

	return user, nil
}
