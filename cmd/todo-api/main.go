package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/duetrack/service/internal/app/identity"
	"github.com/duetrack/service/internal/app/todo"
	"github.com/duetrack/service/internal/platform/dbpool"
	"github.com/duetrack/service/internal/platform/env"
	"github.com/duetrack/service/internal/platform/metrics"
	"github.com/duetrack/service/internal/platform/natsutil"
)

func main() {
	env.Load()
	configureLogging()

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	apiAddr := env.String("TODO_API_ADDR", env.DefaultAPIAddr)
	uiOrigin := env.String("UI_ORIGIN", "http://localhost:3000")
	pgURL := env.String("DATABASE_URL", env.DefaultDatabaseURL)
	jwtSecret := env.String("JWT_SECRET", "dev-insecure-change-me")
	shutdownTimeout := env.Duration("SHUTDOWN_TIMEOUT", 10*time.Second)

	pool, err := dbpool.New(runCtx, pgURL)
	if err != nil {
		logrus.Fatal(err)
	}
	defer pool.Close()

	identityRepo := identity.NewPostgresRepository(pool)
	store := todo.NewPostgresStore(pool)
	if err := waitForSchema(runCtx, identityRepo, store, 30*time.Second); err != nil {
		logrus.Fatal(err)
	}

	identitySvc := identity.NewService(identityRepo, identity.NewTokenManager(jwtSecret))
	todoSvc := todo.NewService(store)

	// The activity feed is best-effort: without a broker the API still
	// serves, it just publishes nothing.
	natsClient, err := natsutil.ConnectJetStreamWithRetry(env.String("NATS_URL", env.DefaultNATSURL), 10*time.Second)
	if err != nil {
		logrus.WithError(err).Warn("activity feed disabled: no jetstream connection")
	} else {
		defer natsClient.Close()
		todoSvc.Publish = natsutil.JetStreamPublisher{JS: natsClient.JS}.Publish
	}

	handler := todo.NewHandler(todoSvc, identitySvc, uiOrigin)
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := checkReadiness(r.Context(), pool); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", metrics.DefaultHandler())
	mux.Handle("/", handler.Router())

	server := &http.Server{
		Addr:              apiAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logrus.WithField("addr", apiAddr).Info("todo api listening")
	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		logrus.Fatal(err)
	case <-runCtx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("todo api graceful shutdown failed")
	}
}

func configureLogging() {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	level, err := logrus.ParseLevel(env.String("LOG_LEVEL", "info"))
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}

func waitForSchema(ctx context.Context, identityRepo *identity.PostgresRepository, store *todo.PostgresStore, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		attemptCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		lastErr = identityRepo.EnsureSchema(attemptCtx)
		if lastErr == nil {
			lastErr = store.EnsureSchema(attemptCtx)
		}
		cancel()
		if lastErr == nil {
			return nil
		}
		logrus.WithError(lastErr).Info("waiting for schema readiness")
		time.Sleep(500 * time.Millisecond)
	}
	return lastErr
}

func checkReadiness(ctx context.Context, pool *pgxpool.Pool) error {
	checkCtx, cancel := context.WithTimeout(ctx, 1500*time.Millisecond)
	defer cancel()
	if err := pool.Ping(checkCtx); err != nil {
		return fmt.Errorf("postgres ping failed: %w", err)
	}
	return nil
}
