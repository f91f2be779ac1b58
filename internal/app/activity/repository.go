package activity

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duetrack/service/internal/contracts"
)

const createActivityTableSQL = `
CREATE TABLE IF NOT EXISTS todo_activity (
  event_id text PRIMARY KEY,
  todo_id text NOT NULL,
  owner_id text NOT NULL,
  event_type text NOT NULL,
  title text NOT NULL,
  due_date timestamptz NOT NULL,
  shard_id integer NOT NULL,
  event_seq bigint NOT NULL,
  occurred_at timestamptz NOT NULL,
  inserted_at timestamptz NOT NULL DEFAULT now()
)`

const createActivityOwnerIndexSQL = `
CREATE INDEX IF NOT EXISTS todo_activity_owner_occurred_idx
ON todo_activity (owner_id, occurred_at DESC)`

const insertActivitySQL = `
INSERT INTO todo_activity (
  event_id, todo_id, owner_id, event_type, title, due_date, shard_id, event_seq, occurred_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (event_id) DO NOTHING
`

type EventRepository struct {
	Pool *pgxpool.Pool
}

func NewEventRepository(pool *pgxpool.Pool) *EventRepository {
	return &EventRepository{Pool: pool}
}

func (r *EventRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.Pool.Exec(ctx, createActivityTableSQL); err != nil {
		return err
	}
	if _, err := r.Pool.Exec(ctx, createActivityOwnerIndexSQL); err != nil {
		return err
	}
	return nil
}

func (r *EventRepository) InsertEvent(ctx context.Context, event contracts.TodoEvent, eventSeq uint64) error {
	_, err := r.Pool.Exec(ctx, insertActivitySQL,
		event.EventID,
		event.TodoID,
		event.OwnerID,
		event.EventType,
		event.Title,
		event.DueDate,
		event.ShardID,
		int64(eventSeq),
		event.OccurredAt,
	)
	return err
}
