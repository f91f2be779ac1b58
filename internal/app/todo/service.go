package todo

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/nats-io/nuid"
	"github.com/sirupsen/logrus"

	"github.com/duetrack/service/internal/contracts"
	"github.com/duetrack/service/internal/sharding"
)

var (
	ErrTitleRequired      = errors.New("title is required")
	ErrTitleTooLong       = errors.New("title cannot exceed 100 characters")
	ErrDescriptionTooLong = errors.New("description cannot exceed 500 characters")
	ErrDueDateRequired    = errors.New("due date is required")
	ErrInvalidStatus      = errors.New("status must be incomplete or complete")
	ErrForbidden          = errors.New("todo belongs to a different owner")
)

// IsValidationError reports whether err is one of the field-level
// validation sentinels, so the transport can map it to a client error.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrTitleRequired) ||
		errors.Is(err, ErrTitleTooLong) ||
		errors.Is(err, ErrDescriptionTooLong) ||
		errors.Is(err, ErrDueDateRequired) ||
		errors.Is(err, ErrInvalidStatus)
}

type PublishFunc func(subject string, payload []byte) error

// Service is the only component that mutates todos. It wraps the
// Store with field validation and per-record ownership enforcement.
// Publish is optional; when set, every successful mutation emits a
// TodoEvent best-effort.
type Service struct {
	Store   Store
	Publish PublishFunc
	Now     func() time.Time
	NewID   func() string
}

func NewService(store Store) *Service {
	return &Service{
		Store: store,
		Now:   func() time.Time { return time.Now().UTC() },
		NewID: nuid.Next,
	}
}

type CreateParams struct {
	Title       string
	Description string
	DueDate     time.Time
}

// UpdateParams is a partial update: nil fields keep their prior value.
type UpdateParams struct {
	Title       *string
	Description *string
	DueDate     *time.Time
	Status      *Status
}

func validateTitle(title string) error {
	if title == "" {
		return ErrTitleRequired
	}
	if len([]rune(title)) > MaxTitleLen {
		return ErrTitleTooLong
	}
	return nil
}

func validateDescription(desc string) error {
	if len([]rune(desc)) > MaxDescriptionLen {
		return ErrDescriptionTooLong
	}
	return nil
}

func (s *Service) Create(ctx context.Context, ownerID string, params CreateParams) (View, error) {
	title := strings.TrimSpace(params.Title)
	desc := strings.TrimSpace(params.Description)

	if err := validateTitle(title); err != nil {
		return View{}, err
	}
	if err := validateDescription(desc); err != nil {
		return View{}, err
	}
	if params.DueDate.IsZero() {
		return View{}, ErrDueDateRequired
	}

	now := s.Now()
	t := Todo{
		ID:          s.NewID(),
		OwnerID:     ownerID,
		Title:       title,
		Description: desc,
		DueDate:     params.DueDate,
		Status:      StatusIncomplete,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.Store.Insert(ctx, t); err != nil {
		return View{}, err
	}
	s.publishEvent(contracts.EventTodoCreated, t)
	return View{Todo: t, Label: Classify(t, now)}, nil
}

func (s *Service) Get(ctx context.Context, ownerID, id string) (View, error) {
	t, err := s.owned(ctx, ownerID, id)
	if err != nil {
		return View{}, err
	}
	return View{Todo: t, Label: Classify(t, s.Now())}, nil
}

// List returns the caller's todos, most recently created first.
func (s *Service) List(ctx context.Context, ownerID string) ([]View, error) {
	todos, err := s.Store.FindByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	now := s.Now()
	views := make([]View, 0, len(todos))
	for _, t := range todos {
		views = append(views, View{Todo: t, Label: Classify(t, now)})
	}
	return views, nil
}

func (s *Service) Update(ctx context.Context, ownerID, id string, params UpdateParams) (View, error) {
	t, err := s.owned(ctx, ownerID, id)
	if err != nil {
		return View{}, err
	}

	if params.Title != nil {
		title := strings.TrimSpace(*params.Title)
		if err := validateTitle(title); err != nil {
			return View{}, err
		}
		t.Title = title
	}
	if params.Description != nil {
		desc := strings.TrimSpace(*params.Description)
		if err := validateDescription(desc); err != nil {
			return View{}, err
		}
		t.Description = desc
	}
	if params.DueDate != nil {
		if params.DueDate.IsZero() {
			return View{}, ErrDueDateRequired
		}
		t.DueDate = *params.DueDate
	}

	now := s.Now()
	if params.Status != nil {
		switch *params.Status {
		case StatusIncomplete, StatusComplete:
		default:
			return View{}, ErrInvalidStatus
		}
		// Status set through update manages CompletedAt the same way
		// a toggle does, so CompletedAt stays non-nil exactly when the
		// record is complete.
		if *params.Status != t.Status {
			t.Status = *params.Status
			if t.Status == StatusComplete {
				completed := now
				t.CompletedAt = &completed
			} else {
				t.CompletedAt = nil
			}
		}
	}

	t.UpdatedAt = now
	if err := s.Store.Save(ctx, t); err != nil {
		return View{}, err
	}
	s.publishEvent(contracts.EventTodoUpdated, t)
	return View{Todo: t, Label: Classify(t, now)}, nil
}

// ToggleStatus flips between incomplete and complete. Moving to
// complete stamps CompletedAt with the current time; moving back
// clears it.
func (s *Service) ToggleStatus(ctx context.Context, ownerID, id string) (View, error) {
	t, err := s.owned(ctx, ownerID, id)
	if err != nil {
		return View{}, err
	}

	now := s.Now()
	eventType := contracts.EventTodoCompleted
	if t.Status == StatusComplete {
		t.Status = StatusIncomplete
		t.CompletedAt = nil
		eventType = contracts.EventTodoReopened
	} else {
		t.Status = StatusComplete
		completed := now
		t.CompletedAt = &completed
	}
	t.UpdatedAt = now

	if err := s.Store.Save(ctx, t); err != nil {
		return View{}, err
	}
	s.publishEvent(eventType, t)
	return View{Todo: t, Label: Classify(t, now)}, nil
}

func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	t, err := s.owned(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if err := s.Store.DeleteByID(ctx, id); err != nil {
		return err
	}
	s.publishEvent(contracts.EventTodoDeleted, t)
	return nil
}

// owned resolves a todo for a caller: existence is checked first, so
// a missing id is always reported as not found, then ownership.
func (s *Service) owned(ctx context.Context, ownerID, id string) (Todo, error) {
	t, err := s.Store.FindByID(ctx, id)
	if err != nil {
		return Todo{}, err
	}
	if t.OwnerID != ownerID {
		return Todo{}, ErrForbidden
	}
	return t, nil
}

func (s *Service) publishEvent(eventType string, t Todo) {
	if s.Publish == nil {
		return
	}
	event := contracts.TodoEvent{
		EventID:    s.NewID(),
		TodoID:     t.ID,
		OwnerID:    t.OwnerID,
		EventType:  eventType,
		Title:      t.Title,
		DueDate:    t.DueDate,
		OccurredAt: s.Now(),
		ShardID:    sharding.GetShardID(t.OwnerID),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		logrus.WithError(err).Warn("marshal todo event")
		return
	}
	if err := s.Publish(sharding.OwnerSubject(t.OwnerID), payload); err != nil {
		logrus.WithError(err).WithField("todo_id", t.ID).Warn("publish todo event")
	}
}
