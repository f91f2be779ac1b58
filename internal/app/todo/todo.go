package todo

import "time"

type Status string

const (
	StatusIncomplete Status = "incomplete"
	StatusComplete   Status = "complete"
)

const (
	MaxTitleLen       = 100
	MaxDescriptionLen = 500
)

// Todo is the owned record. CompletedAt is non-nil exactly when
// Status is complete; the service maintains that on every mutation.
type Todo struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"owner_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	DueDate     time.Time  `json:"due_date"`
	Status      Status     `json:"status"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// View is what read operations return: the stored record plus the
// derived label, computed at read time and never persisted.
type View struct {
	Todo
	Label Label `json:"label,omitempty"`
}
