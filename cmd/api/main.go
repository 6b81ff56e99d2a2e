package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-user-auth/internal/config"
	"github.com/go-user-auth/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-user-auth/internal/infrastructure/jwt"
	"github.com/go-user-auth/internal/infrastructure/postgres"
	"github.com/go-user-auth/internal/infrastructure/rabbitmq"
	redisinfra "github.com/go-user-auth/internal/infrastructure/redis"
	"github.com/go-user-auth/internal/pkg/password"
	transporthttp "github.com/go-user-auth/internal/transport/http"
	"github.com/go-user-auth/internal/transport/http/handler"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, reading from environment")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	if err := run(cfg); err != nil {
		slog.Error("server stopped with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	checks := map[string]handler.Pinger{}

	accounts, closeStore, err := openAccountStore(ctx, cfg, checks)
	if err != nil {
		return err
	}
	defer closeStore()

	rdb := redisinfra.NewClient(cfg.Redis)
	defer rdb.Close()
	cache := redisinfra.NewCache(rdb)
	if err := cache.Ping(ctx); err != nil {
		// limiter fails open and registration reports 503 until the cache returns
		slog.Warn("redis not reachable at startup", "addr", cfg.Redis.Addr, "err", err)
	}
	checks["redis"] = cache

	publisher := rabbitmq.NewPublisher(cfg.Dispatch.URL, rabbitmq.Topology{
		Queue:         cfg.Dispatch.Queue,
		MaxDeliveries: cfg.Dispatch.MaxDeliveries,
	})
	defer publisher.Close()

	router := transporthttp.NewRouter(cfg, &transporthttp.Deps{
		Accounts:  accounts,
		Cache:     cache,
		Publisher: publisher,
		Tokens:    jwtinfra.NewProvider(cfg),
		Hasher:    password.NewHasher(cfg.BcryptCost, cfg.PasswordCompareTimeout),
		Checks:    checks,
	})
	defer router.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 65 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv, "backend", cfg.AccountBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

func openAccountStore(ctx context.Context, cfg *config.Config, checks map[string]handler.Pinger) (transporthttp.AccountStore, func(), error) {
	switch cfg.AccountBackend {
	case config.BackendDynamo:
		client, err := dynamo.NewClient(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		dynamo.Bootstrap(ctx, client, cfg.DynamoTables)
		return dynamo.NewUserStore(client, cfg.DynamoTables.Users), func() {}, nil
	default:
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		checks["postgres"] = handler.PingFunc(db.PingContext)
		return postgres.NewUserStore(db), closer(db), nil
	}
}

func closer(c io.Closer) func() {
	return func() {
		if err := c.Close(); err != nil {
			slog.Warn("close failed", "err", err)
		}
	}
}
