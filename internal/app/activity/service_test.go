package activity

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/duetrack/service/internal/contracts"
)

type fakeRepository struct {
	gotEvent contracts.TodoEvent
	gotSeq   uint64
	err      error
}

func (f *fakeRepository) InsertEvent(_ context.Context, event contracts.TodoEvent, eventSeq uint64) error {
	f.gotEvent = event
	f.gotSeq = eventSeq
	return f.err
}

func TestHandle_ValidEvent(t *testing.T) {
	repo := &fakeRepository{}
	svc := NewService(repo)

	event := contracts.TodoEvent{
		EventID:    "evt-1",
		TodoID:     "todo-1",
		OwnerID:    "user-1",
		EventType:  contracts.EventTodoCompleted,
		Title:      "Buy milk",
		DueDate:    time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		OccurredAt: time.Now().UTC(),
		ShardID:    20,
	}
	payload, _ := json.Marshal(event)

	if err := svc.Handle(context.Background(), payload, 42); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if repo.gotEvent.EventID != "evt-1" || repo.gotEvent.EventType != contracts.EventTodoCompleted {
		t.Fatalf("unexpected event in repository: %+v", repo.gotEvent)
	}
	if repo.gotSeq != 42 {
		t.Fatalf("expected event sequence 42, got %d", repo.gotSeq)
	}
}

func TestHandle_InvalidPayload(t *testing.T) {
	repo := &fakeRepository{}
	svc := NewService(repo)
	err := svc.Handle(context.Background(), []byte("{invalid"), 1)
	if !errors.Is(err, ErrInvalidEventPayload) {
		t.Fatalf("expected ErrInvalidEventPayload, got %v", err)
	}
}

func TestHandle_MissingIdentifiers(t *testing.T) {
	repo := &fakeRepository{}
	svc := NewService(repo)
	payload, _ := json.Marshal(contracts.TodoEvent{EventType: contracts.EventTodoCreated})
	if err := svc.Handle(context.Background(), payload, 1); !errors.Is(err, ErrInvalidEventPayload) {
		t.Fatalf("expected ErrInvalidEventPayload, got %v", err)
	}
}
