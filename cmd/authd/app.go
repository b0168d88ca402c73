package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/blogplatform/authd/internal/handlers"
	"github.com/blogplatform/authd/internal/logger"
	"github.com/blogplatform/authd/internal/repository"
	"github.com/blogplatform/authd/internal/repository/postgres"
	"github.com/blogplatform/authd/internal/revocation"
	"github.com/blogplatform/authd/internal/service/auth"
	"github.com/blogplatform/authd/internal/service/user"
	"github.com/blogplatform/authd/internal/token"
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	logger, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := repository.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	// Initialize repositories
	storage := postgres.NewStorage(pool)

	// Blacklist lives in redis if an address is configured, otherwise in
	// process memory. Single instance deployments do not need redis
	var revoked revocation.Store
	if c.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("error while connecting to redis. Err: %w", err)
		}
		revoked = revocation.NewRedisStore(client)
	} else {
		revoked = revocation.NewMemoryStore()
	}

	// Initialize services
	codec, err := token.NewCodec(c.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("error while creating token codec. Err: %w", err)
	}
	userService, err := user.NewService(nil, storage.User())
	if err != nil {
		return nil, fmt.Errorf("error while creating user service. Err: %w", err)
	}
	authService, err := auth.NewService(
		auth.Config{
			AccessTokenTTL:  c.AccessTokenTTL,
			RefreshTokenTTL: c.RefreshTokenTTL,
		},
		codec,
		revoked,
		storage,
		userService,
	)
	if err != nil {
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}

	mux := handlers.NewRouter(authService, userService, logger)

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    mux,
	}, nil
}

// Run starts http server and closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); err == context.DeadlineExceeded {
			slog.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		slog.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	slog.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed

	return err
}
