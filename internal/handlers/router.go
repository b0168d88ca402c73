package handlers

import (
	"net/http"

	"golang.org/x/time/rate"

	"github.com/blogplatform/authd/internal/handlers/middleware"
	"github.com/blogplatform/authd/internal/logger"
)

// Credential endpoints default to 5 requests per minute per client IP
const (
	defaultCredentialRateLimit = rate.Limit(5.0 / 60.0)
	defaultCredentialRateBurst = 5
)

type routerOptions struct {
	rateLimit rate.Limit
	rateBurst int
}

type RouterOption func(*routerOptions)

// WithCredentialRateLimit overrides the per-IP limit on register, login
// and refresh. Zero limit disables rate limiting.
func WithCredentialRateLimit(limit rate.Limit, burst int) RouterOption {
	return func(o *routerOptions) {
		o.rateLimit = limit
		o.rateBurst = burst
	}
}

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(auth authService, users userService, l logger.Logger, opts ...RouterOption) http.Handler {
	options := routerOptions{
		rateLimit: defaultCredentialRateLimit,
		rateBurst: defaultCredentialRateBurst,
	}
	for _, opt := range opts {
		opt(&options)
	}

	limited := func(h http.Handler) http.Handler { return h }
	if options.rateLimit > 0 {
		limited = middleware.RateLimit(options.rateLimit, options.rateBurst)
	}

	api := http.NewServeMux()
	api.Handle("POST /register", limited(handleRegister(users, l)))
	api.Handle("POST /login", limited(handleLogin(auth, l)))
	api.Handle("POST /refresh", limited(handleRefresh(auth, l)))
	api.Handle("POST /logout", handleLogout(auth, l))
	api.Handle("GET /me", middleware.RequireUser(handleMe(users, l)))

	root := http.NewServeMux()
	root.Handle("/api/", http.StripPrefix("/api", api))

	return chain(root,
		middleware.LoggerMiddleware(l),
		middleware.Authenticate(auth),
	)
}
