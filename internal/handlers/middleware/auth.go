package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/blogplatform/authd/internal/apperrors"
	"github.com/blogplatform/authd/internal/handlers/render"
	"github.com/blogplatform/authd/internal/handlers/userctx"
	"github.com/blogplatform/authd/internal/models"
)

const bearerScheme = "Bearer "

type accessTokenValidator interface {
	ValidateAccessToken(ctx context.Context, accessToken string) (models.Principal, error)
}

// BearerToken pulls the access token out of the Authorization header.
// A missing header and a header without the Bearer scheme are distinct
// errors, that distinction carries no credential enumeration risk.
func BearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", apperrors.ErrTokenMissing
	}
	if !strings.HasPrefix(header, bearerScheme) {
		return "", apperrors.ErrInvalidTokenFormat
	}

	return strings.TrimPrefix(header, bearerScheme), nil
}

// Authenticate resolves the bearer token into a principal and attaches it
// to the request context. It never rejects: a request without a usable
// token simply proceeds unauthenticated, the authorization gate for
// protected routes is RequireUser.
func Authenticate(auth accessTokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := BearerToken(r)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			principal, err := auth.ValidateAccessToken(r.Context(), tokenString)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := userctx.New(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUser rejects requests that carry no authenticated principal
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := userctx.FromContext(r.Context()); !ok {
			render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}
