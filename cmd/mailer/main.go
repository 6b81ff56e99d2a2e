package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-chi/chi/v5"
	"github.com/go-user-auth/internal/application/dispatch"
	"github.com/go-user-auth/internal/config"
	"github.com/go-user-auth/internal/infrastructure/rabbitmq"
	"github.com/go-user-auth/internal/infrastructure/smtp"
	"github.com/go-user-auth/internal/transport/http/handler"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

// a consumer run that lasted this long is considered healthy and resets the backoff
const stableRun = time.Minute

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, reading from environment")
	}

	cfg, err := config.LoadMailer()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	if err := run(cfg); err != nil {
		slog.Error("mailer stopped with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Mailer) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sender := smtp.NewVerificationSender(smtp.NewMailer(cfg.SMTP), cfg.SMTP.VerifyLinkBaseURL)
	h := dispatch.NewHandler(dispatch.HandlerDeps{
		Sender:        sender,
		MaxDeliveries: cfg.Dispatch.MaxDeliveries,
		RetryDelay:    cfg.Dispatch.RetryDelay,
	})
	consumer := rabbitmq.NewConsumer(cfg.Dispatch.URL, rabbitmq.Topology{
		Queue:         cfg.Dispatch.Queue,
		MaxDeliveries: cfg.Dispatch.MaxDeliveries,
	}, cfg.Dispatch.Prefetch)

	r := chi.NewRouter()
	r.Get("/health", handler.NewHealthHandler(nil).Health)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Dispatch.HealthPort),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return supervise(gctx, consumer, h.Handle)
	})
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	slog.Info("mailer starting", "queue", cfg.Dispatch.Queue, "max_deliveries", cfg.Dispatch.MaxDeliveries)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info("mailer stopped")
	return nil
}

// supervise keeps the consumer running, reconnecting with exponential
// backoff whenever the broker connection or channel is lost.
func supervise(ctx context.Context, c *rabbitmq.Consumer, h rabbitmq.Handler) error {
	b := backoff.NewExponentialBackOff()
	for {
		started := time.Now()
		err := c.Run(ctx, h)
		if ctx.Err() != nil {
			return nil
		}
		if time.Since(started) > stableRun {
			b.Reset()
		}
		wait := b.NextBackOff()
		slog.Warn("consumer stopped, reconnecting", "err", err, "retry_in", wait)

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}
