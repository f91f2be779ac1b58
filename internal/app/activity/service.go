package activity

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/duetrack/service/internal/contracts"
)

var ErrInvalidEventPayload = errors.New("invalid event payload")

type Repository interface {
	InsertEvent(ctx context.Context, event contracts.TodoEvent, eventSeq uint64) error
}

// Service appends todo events to the activity feed. Insertion is
// idempotent on event_id, so JetStream redeliveries are harmless.
type Service struct {
	Repository Repository
}

func NewService(repository Repository) *Service {
	return &Service{Repository: repository}
}

func (s *Service) Handle(ctx context.Context, payload []byte, eventSeq uint64) error {
	var event contracts.TodoEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return ErrInvalidEventPayload
	}
	if event.EventID == "" || event.TodoID == "" {
		return ErrInvalidEventPayload
	}
	return s.Repository.InsertEvent(ctx, event, eventSeq)
}
