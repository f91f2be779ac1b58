package todo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("todo not found")

// Store is pure persistence. Ownership and validation rules live in
// the Service; the store only answers by id or by owner.
type Store interface {
	Insert(ctx context.Context, t Todo) error
	FindByID(ctx context.Context, id string) (Todo, error)
	FindByOwner(ctx context.Context, ownerID string) ([]Todo, error)
	Save(ctx context.Context, t Todo) error
	DeleteByID(ctx context.Context, id string) error
}

type PostgresStore struct {
	Pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{Pool: pool}
}

const createTodosTableSQL = `
CREATE TABLE IF NOT EXISTS todos (
  id text PRIMARY KEY,
  owner_id text NOT NULL,
  title text NOT NULL,
  description text NOT NULL DEFAULT '',
  due_date timestamptz NOT NULL,
  status text NOT NULL DEFAULT 'incomplete',
  completed_at timestamptz,
  created_at timestamptz NOT NULL,
  updated_at timestamptz NOT NULL
)`

const createTodosOwnerIndexSQL = `
CREATE INDEX IF NOT EXISTS todos_owner_created_idx
ON todos (owner_id, created_at DESC)`

const insertTodoSQL = `
INSERT INTO todos (id, owner_id, title, description, due_date, status, completed_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

const selectTodoSQL = `
SELECT id, owner_id, title, description, due_date, status, completed_at, created_at, updated_at
FROM todos`

const saveTodoSQL = `
UPDATE todos
SET title = $2,
    description = $3,
    due_date = $4,
    status = $5,
    completed_at = $6,
    updated_at = $7
WHERE id = $1`

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.Pool.Exec(ctx, createTodosTableSQL); err != nil {
		return err
	}
	if _, err := s.Pool.Exec(ctx, createTodosOwnerIndexSQL); err != nil {
		return err
	}
	return nil
}

func (s *PostgresStore) Insert(ctx context.Context, t Todo) error {
	_, err := s.Pool.Exec(ctx, insertTodoSQL,
		t.ID, t.OwnerID, t.Title, t.Description, t.DueDate,
		string(t.Status), t.CompletedAt, t.CreatedAt, t.UpdatedAt,
	)
	return err
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (Todo, error) {
	row := s.Pool.QueryRow(ctx, selectTodoSQL+` WHERE id = $1`, id)
	t, err := scanTodo(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Todo{}, ErrNotFound
		}
		return Todo{}, err
	}
	return t, nil
}

func (s *PostgresStore) FindByOwner(ctx context.Context, ownerID string) ([]Todo, error) {
	rows, err := s.Pool.Query(ctx,
		selectTodoSQL+` WHERE owner_id = $1 ORDER BY created_at DESC, id DESC`,
		ownerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	todos := make([]Todo, 0)
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, err
		}
		todos = append(todos, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return todos, nil
}

// Save overwrites a previously read record in one statement, so a
// read-modify-write cycle is last-writer-wins per record.
func (s *PostgresStore) Save(ctx context.Context, t Todo) error {
	res, err := s.Pool.Exec(ctx, saveTodoSQL,
		t.ID, t.Title, t.Description, t.DueDate,
		string(t.Status), t.CompletedAt, t.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteByID(ctx context.Context, id string) error {
	res, err := s.Pool.Exec(ctx, `DELETE FROM todos WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanTodo(row pgx.Row) (Todo, error) {
	var t Todo
	var status string
	if err := row.Scan(
		&t.ID, &t.OwnerID, &t.Title, &t.Description, &t.DueDate,
		&status, &t.CompletedAt, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return Todo{}, err
	}
	t.Status = Status(status)
	return t, nil
}
