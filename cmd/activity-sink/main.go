package main

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/duetrack/service/internal/app/activity"
	"github.com/duetrack/service/internal/messaging"
	"github.com/duetrack/service/internal/platform/dbpool"
	"github.com/duetrack/service/internal/platform/env"
	"github.com/duetrack/service/internal/platform/natsutil"
)

func main() {
	env.Load()
	logrus.SetFormatter(&logrus.JSONFormatter{})

	ctx := context.Background()

	natsURL := env.String("NATS_URL", env.DefaultNATSURL)
	pgURL := env.String("DATABASE_URL", env.DefaultDatabaseURL)

	pool, err := dbpool.New(ctx, pgURL)
	if err != nil {
		logrus.Fatal(err)
	}
	defer pool.Close()

	repository := activity.NewEventRepository(pool)
	if err := waitForPostgres(ctx, pool, repository, 30*time.Second); err != nil {
		logrus.Fatal(err)
	}
	service := activity.NewService(repository)

	client, err := natsutil.ConnectJetStreamWithRetry(natsURL, 20*time.Second)
	if err != nil {
		logrus.Fatal(err)
	}
	defer client.Close()

	sub, err := client.JS.QueueSubscribe(messaging.EventSubjects, "activity-sink", func(msg *nats.Msg) {
		var eventSeq uint64
		if meta, metaErr := msg.Metadata(); metaErr == nil {
			eventSeq = meta.Sequence.Stream
		}

		insertCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := service.Handle(insertCtx, msg.Data, eventSeq); err != nil {
			if errors.Is(err, activity.ErrInvalidEventPayload) {
				logrus.WithError(err).Warn("discarding invalid event payload")
				_ = msg.Term()
				return
			}
			logrus.WithError(err).Error("event persistence failed")
			_ = msg.Nak()
			return
		}

		_ = msg.Ack()
	}, nats.ManualAck())
	if err != nil {
		logrus.Fatal(err)
	}

	logrus.WithField("subject", sub.Subject).Info("activity sink listening")

	// Keep alive
	select {}
}

func waitForPostgres(
	ctx context.Context,
	pool *pgxpool.Pool,
	repository *activity.EventRepository,
	timeout time.Duration,
) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		attemptCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		lastErr = pool.Ping(attemptCtx)
		if lastErr == nil {
			lastErr = repository.EnsureSchema(attemptCtx)
		}
		cancel()

		if lastErr == nil {
			return nil
		}
		logrus.WithError(lastErr).Info("waiting for postgres readiness")
		time.Sleep(500 * time.Millisecond)
	}
	return lastErr
}
