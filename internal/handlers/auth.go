package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/blogplatform/authd/internal/apperrors"
	"github.com/blogplatform/authd/internal/handlers/middleware"
	"github.com/blogplatform/authd/internal/handlers/render"
	"github.com/blogplatform/authd/internal/handlers/userctx"
	"github.com/blogplatform/authd/internal/logger"
	"github.com/blogplatform/authd/internal/models"
)

// Refresh tokens travel in an explicit header on logout, never in a cookie
const refreshTokenHeader = "Refresh-Token"

type authService interface {
	// Authenticate user and issue a token pair
	// Has to return apperrors.ErrAuthenticationFailed on bad credentials
	Login(ctx context.Context, username string, password string) (models.TokenPair, models.Principal, error)

	// Rotate the refresh token and issue a fresh pair
	// Has to return apperrors.ErrInvalidRefreshToken for unknown, revoked or expired tokens
	Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error)

	// Revoke the access token and the user's refresh tokens. Idempotent
	Logout(ctx context.Context, accessToken string, refreshToken string) error

	// Resolve the principal behind a valid access token
	ValidateAccessToken(ctx context.Context, accessToken string) (models.Principal, error)
}

type userService interface {
	// Register new user
	// Has to return apperrors.ErrUserAlreadyExists if username is taken
	Register(ctx context.Context, username string, password string) (models.User, error)

	// Has to return apperrors.ErrUserNotFound if the user no longer exists
	GetByID(ctx context.Context, userID int64) (models.User, error)
}

type tokenPairResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	Username     string `json:"username,omitempty"`
	UserID       int64  `json:"userId,omitempty"`
}

func handleRegister(users userService, log logger.Logger) http.Handler {
	type registerRequest struct {
		Username string `json:"username" validate:"required,min=2,max=50"`
		Password string `json:"password" validate:"required,min=8"`
	}
	type registerResponse struct {
		Message  string `json:"message"`
		Username string `json:"username"`
		UserID   int64  `json:"userId"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[registerRequest](w, r)
		if err != nil {
			return
		}

		user, err := users.Register(r.Context(), data.Username, data.Password)
		if err != nil {
			serviceError(w, err, log)
			return
		}

		render.JSONWithStatus(w, registerResponse{
			Message:  "User registered successfully",
			Username: user.Username,
			UserID:   user.ID,
		}, http.StatusCreated)
	})
}

func handleLogin(auth authService, log logger.Logger) http.Handler {
	type loginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[loginRequest](w, r)
		if err != nil {
			return
		}

		pair, principal, err := auth.Login(r.Context(), data.Username, data.Password)
		if err != nil {
			serviceError(w, err, log)
			return
		}

		render.JSON(w, tokenPairResponse{
			AccessToken:  pair.Access.Value,
			RefreshToken: pair.Refresh.Value,
			Username:     principal.Username,
			UserID:       principal.UserID,
		})
	})
}

func handleRefresh(auth authService, log logger.Logger) http.Handler {
	type refreshRequest struct {
		RefreshToken string `json:"refreshToken" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[refreshRequest](w, r)
		if err != nil {
			return
		}

		pair, err := auth.Refresh(r.Context(), data.RefreshToken)
		if err != nil {
			serviceError(w, err, log)
			return
		}

		render.JSON(w, tokenPairResponse{
			AccessToken:  pair.Access.Value,
			RefreshToken: pair.Refresh.Value,
		})
	})
}

func handleLogout(auth authService, log logger.Logger) http.Handler {
	type logoutResponse struct {
		Message string `json:"message"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accessToken, err := middleware.BearerToken(r)
		if err != nil {
			serviceError(w, err, log)
			return
		}

		err = auth.Logout(r.Context(), accessToken, r.Header.Get(refreshTokenHeader))
		if err != nil {
			serviceError(w, err, log)
			return
		}

		render.JSON(w, logoutResponse{Message: "Logged out successfully"})
	})
}

func handleMe(users userService, log logger.Logger) http.Handler {
	type meResponse struct {
		Username  string    `json:"username"`
		UserID    int64     `json:"userId"`
		CreatedAt time.Time `json:"createdAt"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := userctx.FromContext(r.Context())
		if !ok {
			// RequireUser guards this route, should not happen
			render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		// Re-resolve against the directory: a token may outlive its user
		user, err := users.GetByID(r.Context(), principal.UserID)
		switch {
		case errors.Is(err, apperrors.ErrUserNotFound):
			render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
			return
		case err != nil:
			serviceError(w, err, log)
			return
		}

		render.JSON(w, meResponse{
			Username:  user.Username,
			UserID:    user.ID,
			CreatedAt: user.CreatedAt,
		})
	})
}

// serviceError maps the error taxonomy to status codes. Login and refresh
// failures each get a single generic message so responses never disclose
// which validation step failed.
func serviceError(w http.ResponseWriter, err error, log logger.Logger) {
	switch {
	case errors.Is(err, apperrors.ErrAuthenticationFailed):
		render.ServiceError(w, "Invalid username or password", http.StatusUnauthorized)
	case errors.Is(err, apperrors.ErrInvalidRefreshToken):
		render.ServiceError(w, "Invalid refresh token", http.StatusUnauthorized)
	case errors.Is(err, apperrors.ErrTokenMissing):
		render.ServiceError(w, "Token missing", http.StatusBadRequest)
	case errors.Is(err, apperrors.ErrInvalidTokenFormat):
		render.ServiceError(w, "Invalid token format", http.StatusBadRequest)
	case errors.Is(err, apperrors.ErrTokenExpired),
		errors.Is(err, apperrors.ErrTokenRevoked),
		errors.Is(err, apperrors.ErrInvalidSignature),
		errors.Is(err, apperrors.ErrTokenMalformed):
		render.ServiceError(w, "Token rejected", http.StatusUnauthorized)
	case errors.Is(err, apperrors.ErrUserAlreadyExists):
		render.ServiceError(w, "User already exists", http.StatusConflict)
	case errors.Is(err, apperrors.ErrStorageUnavailable):
		log.Error("storage unavailable", "error", err.Error())
		render.ServiceError(w, "Service temporarily unavailable", http.StatusServiceUnavailable)
	default:
		log.Error("unhandled service error", "error", err.Error())
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
	}
}
