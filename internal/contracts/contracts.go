package contracts

import "time"

// TodoEvent is published by the todo service after each successful
// mutation and consumed by the activity sink.
type TodoEvent struct {
	EventID    string    `json:"event_id"`
	TodoID     string    `json:"todo_id"`
	OwnerID    string    `json:"owner_id"`
	EventType  string    `json:"event_type"`
	Title      string    `json:"title"`
	DueDate    time.Time `json:"due_date"`
	OccurredAt time.Time `json:"occurred_at"`
	ShardID    int       `json:"shard_id"`
}

const (
	EventTodoCreated   = "todo.created"
	EventTodoUpdated   = "todo.updated"
	EventTodoCompleted = "todo.completed"
	EventTodoReopened  = "todo.reopened"
	EventTodoDeleted   = "todo.deleted"
)
