package todo

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/duetrack/service/internal/contracts"
)

type fakeStore struct {
	todos   map[string]Todo
	inserts int
}

func newFakeStore() *fakeStore {
	return &fakeStore{todos: map[string]Todo{}}
}

func (f *fakeStore) Insert(_ context.Context, t Todo) error {
	f.inserts++
	f.todos[t.ID] = t
	return nil
}

func (f *fakeStore) FindByID(_ context.Context, id string) (Todo, error) {
	t, ok := f.todos[id]
	if !ok {
		return Todo{}, ErrNotFound
	}
	return t, nil
}

func (f *fakeStore) FindByOwner(_ context.Context, ownerID string) ([]Todo, error) {
	out := make([]Todo, 0)
	for _, t := range f.todos {
		if t.OwnerID == ownerID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (f *fakeStore) Save(_ context.Context, t Todo) error {
	if _, ok := f.todos[t.ID]; !ok {
		return ErrNotFound
	}
	f.todos[t.ID] = t
	return nil
}

func (f *fakeStore) DeleteByID(_ context.Context, id string) error {
	if _, ok := f.todos[id]; !ok {
		return ErrNotFound
	}
	delete(f.todos, id)
	return nil
}

func newServiceForTests(store *fakeStore) *Service {
	svc := NewService(store)
	clock := time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)
	svc.Now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	seq := 0
	svc.NewID = func() string {
		seq++
		return "id-" + strconv.Itoa(seq)
	}
	return svc
}

func TestCreate_SetsDefaults(t *testing.T) {
	store := newFakeStore()
	svc := newServiceForTests(store)

	view, err := svc.Create(context.Background(), "owner-a", CreateParams{
		Title:   "  Buy milk  ",
		DueDate: date(2024, 1, 10),
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if view.Title != "Buy milk" {
		t.Fatalf("title not trimmed: %q", view.Title)
	}
	if view.Status != StatusIncomplete || view.CompletedAt != nil {
		t.Fatalf("unexpected initial state: %+v", view.Todo)
	}
	if view.OwnerID != "owner-a" {
		t.Fatalf("unexpected owner: %q", view.OwnerID)
	}
	if view.CreatedAt.IsZero() || !view.CreatedAt.Equal(view.UpdatedAt) {
		t.Fatalf("timestamps not set: %+v", view.Todo)
	}
}

func TestCreate_ValidationPerformsNoStoreWrite(t *testing.T) {
	store := newFakeStore()
	svc := newServiceForTests(store)
	ctx := context.Background()

	cases := []struct {
		params CreateParams
		want   error
	}{
		{CreateParams{Title: "", DueDate: date(2024, 1, 10)}, ErrTitleRequired},
		{CreateParams{Title: "   ", DueDate: date(2024, 1, 10)}, ErrTitleRequired},
		{CreateParams{Title: strings.Repeat("x", 101), DueDate: date(2024, 1, 10)}, ErrTitleTooLong},
		{CreateParams{Title: "ok", Description: strings.Repeat("y", 501), DueDate: date(2024, 1, 10)}, ErrDescriptionTooLong},
		{CreateParams{Title: "ok"}, ErrDueDateRequired},
	}
	for _, tc := range cases {
		if _, err := svc.Create(ctx, "owner-a", tc.params); !errors.Is(err, tc.want) {
			t.Fatalf("params %+v: expected %v, got %v", tc.params, tc.want, err)
		}
	}
	if store.inserts != 0 {
		t.Fatalf("expected no store writes, got %d", store.inserts)
	}
}

func TestGet_MissingAndForeign(t *testing.T) {
	store := newFakeStore()
	svc := newServiceForTests(store)
	ctx := context.Background()

	created, err := svc.Create(ctx, "owner-b", CreateParams{Title: "b's todo", DueDate: date(2024, 1, 10)})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if _, err := svc.Get(ctx, "owner-a", "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.Get(ctx, "owner-a", created.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := svc.Get(ctx, "owner-b", created.ID); err != nil {
		t.Fatalf("owner read failed: %v", err)
	}
}

func TestList_IsolatedAndNewestFirst(t *testing.T) {
	store := newFakeStore()
	svc := newServiceForTests(store)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.Create(ctx, "owner-a", CreateParams{Title: "a" + strconv.Itoa(i), DueDate: date(2024, 2, 1)}); err != nil {
			t.Fatalf("Create returned error: %v", err)
		}
	}
	if _, err := svc.Create(ctx, "owner-b", CreateParams{Title: "b0", DueDate: date(2024, 2, 1)}); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	views, err := svc.List(ctx, "owner-a")
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(views) != 3 {
		t.Fatalf("expected 3 todos, got %d", len(views))
	}
	for i, v := range views {
		if v.OwnerID != "owner-a" {
			t.Fatalf("foreign todo in list: %+v", v.Todo)
		}
		if i > 0 && views[i-1].CreatedAt.Before(v.CreatedAt) {
			t.Fatalf("list not ordered newest first")
		}
	}
	if views[0].Title != "a2" {
		t.Fatalf("expected most recent first, got %q", views[0].Title)
	}
}

func TestUpdate_PartialFieldsKeepPriorValues(t *testing.T) {
	store := newFakeStore()
	svc := newServiceForTests(store)
	ctx := context.Background()

	created, err := svc.Create(ctx, "owner-a", CreateParams{
		Title:       "original",
		Description: "desc",
		DueDate:     date(2024, 1, 10),
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	newTitle := "renamed"
	view, err := svc.Update(ctx, "owner-a", created.ID, UpdateParams{Title: &newTitle})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if view.Title != "renamed" || view.Description != "desc" || !view.DueDate.Equal(date(2024, 1, 10)) {
		t.Fatalf("partial update touched absent fields: %+v", view.Todo)
	}
	if view.UpdatedAt.Equal(created.UpdatedAt) {
		t.Fatalf("UpdatedAt not advanced")
	}
	if !view.CreatedAt.Equal(created.CreatedAt) {
		t.Fatalf("CreatedAt changed on update")
	}
}

func TestUpdate_StatusManagesCompletedAt(t *testing.T) {
	store := newFakeStore()
	svc := newServiceForTests(store)
	ctx := context.Background()

	created, err := svc.Create(ctx, "owner-a", CreateParams{Title: "t", DueDate: date(2024, 1, 10)})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	complete := StatusComplete
	view, err := svc.Update(ctx, "owner-a", created.ID, UpdateParams{Status: &complete})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if view.Status != StatusComplete || view.CompletedAt == nil {
		t.Fatalf("completion not stamped: %+v", view.Todo)
	}

	incomplete := StatusIncomplete
	view, err = svc.Update(ctx, "owner-a", created.ID, UpdateParams{Status: &incomplete})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if view.Status != StatusIncomplete || view.CompletedAt != nil {
		t.Fatalf("completion not cleared: %+v", view.Todo)
	}

	bogus := Status("archived")
	if _, err := svc.Update(ctx, "owner-a", created.ID, UpdateParams{Status: &bogus}); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestUpdate_SameStatusKeepsCompletedAt(t *testing.T) {
	store := newFakeStore()
	svc := newServiceForTests(store)
	ctx := context.Background()

	created, err := svc.Create(ctx, "owner-a", CreateParams{Title: "t", DueDate: date(2024, 1, 10)})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	toggled, err := svc.ToggleStatus(ctx, "owner-a", created.ID)
	if err != nil {
		t.Fatalf("ToggleStatus returned error: %v", err)
	}

	complete := StatusComplete
	view, err := svc.Update(ctx, "owner-a", created.ID, UpdateParams{Status: &complete})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if view.CompletedAt == nil || !view.CompletedAt.Equal(*toggled.CompletedAt) {
		t.Fatalf("re-setting same status restamped CompletedAt: %+v vs %+v", view.CompletedAt, toggled.CompletedAt)
	}
}

func TestToggleStatus_RoundTrip(t *testing.T) {
	store := newFakeStore()
	svc := newServiceForTests(store)
	ctx := context.Background()

	created, err := svc.Create(ctx, "owner-a", CreateParams{Title: "t", DueDate: date(2024, 1, 10)})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	view, err := svc.ToggleStatus(ctx, "owner-a", created.ID)
	if err != nil {
		t.Fatalf("ToggleStatus returned error: %v", err)
	}
	if view.Status != StatusComplete || view.CompletedAt == nil {
		t.Fatalf("first toggle: %+v", view.Todo)
	}
	if !view.CompletedAt.Equal(view.UpdatedAt) {
		t.Fatalf("CompletedAt should be the toggle time: %+v", view.Todo)
	}

	view, err = svc.ToggleStatus(ctx, "owner-a", created.ID)
	if err != nil {
		t.Fatalf("ToggleStatus returned error: %v", err)
	}
	if view.Status != StatusIncomplete || view.CompletedAt != nil {
		t.Fatalf("second toggle: %+v", view.Todo)
	}
}

func TestMutationsRejectForeignOwner(t *testing.T) {
	store := newFakeStore()
	svc := newServiceForTests(store)
	ctx := context.Background()

	created, err := svc.Create(ctx, "owner-b", CreateParams{Title: "b's todo", DueDate: date(2024, 1, 10)})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	title := "stolen"
	if _, err := svc.Update(ctx, "owner-a", created.ID, UpdateParams{Title: &title}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("update: expected ErrForbidden, got %v", err)
	}
	if _, err := svc.ToggleStatus(ctx, "owner-a", created.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("toggle: expected ErrForbidden, got %v", err)
	}
	if err := svc.Delete(ctx, "owner-a", created.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("delete: expected ErrForbidden, got %v", err)
	}
	if _, ok := store.todos[created.ID]; !ok {
		t.Fatalf("foreign delete removed the record")
	}
}

func TestDelete_SecondDeleteIsNotFound(t *testing.T) {
	store := newFakeStore()
	svc := newServiceForTests(store)
	ctx := context.Background()

	created, err := svc.Create(ctx, "owner-a", CreateParams{Title: "t", DueDate: date(2024, 1, 10)})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if err := svc.Delete(ctx, "owner-a", created.ID); err != nil {
		t.Fatalf("first delete failed: %v", err)
	}
	if err := svc.Delete(ctx, "owner-a", created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestCompletedAtInvariantHoldsAfterEveryOperation(t *testing.T) {
	store := newFakeStore()
	svc := newServiceForTests(store)
	ctx := context.Background()

	checkInvariant := func(step string) {
		t.Helper()
		for _, td := range store.todos {
			completeWithStamp := td.Status == StatusComplete && td.CompletedAt != nil
			incompleteWithout := td.Status == StatusIncomplete && td.CompletedAt == nil
			if !completeWithStamp && !incompleteWithout {
				t.Fatalf("%s: invariant violated: %+v", step, td)
			}
		}
	}

	created, err := svc.Create(ctx, "owner-a", CreateParams{Title: "t", DueDate: date(2024, 1, 10)})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	checkInvariant("create")

	if _, err := svc.ToggleStatus(ctx, "owner-a", created.ID); err != nil {
		t.Fatalf("toggle failed: %v", err)
	}
	checkInvariant("toggle complete")

	incomplete := StatusIncomplete
	title := "renamed"
	if _, err := svc.Update(ctx, "owner-a", created.ID, UpdateParams{Title: &title, Status: &incomplete}); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	checkInvariant("update incomplete")

	complete := StatusComplete
	if _, err := svc.Update(ctx, "owner-a", created.ID, UpdateParams{Status: &complete}); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	checkInvariant("update complete")
}

func TestMutationsPublishEvents(t *testing.T) {
	store := newFakeStore()
	svc := newServiceForTests(store)
	ctx := context.Background()

	var subjects []string
	var types []string
	svc.Publish = func(subject string, payload []byte) error {
		var event contracts.TodoEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			t.Fatalf("payload is not a TodoEvent: %v", err)
		}
		subjects = append(subjects, subject)
		types = append(types, event.EventType)
		return nil
	}

	created, err := svc.Create(ctx, "owner-a", CreateParams{Title: "t", DueDate: date(2024, 1, 10)})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if _, err := svc.ToggleStatus(ctx, "owner-a", created.ID); err != nil {
		t.Fatalf("toggle failed: %v", err)
	}
	if _, err := svc.ToggleStatus(ctx, "owner-a", created.ID); err != nil {
		t.Fatalf("toggle failed: %v", err)
	}
	if err := svc.Delete(ctx, "owner-a", created.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	want := []string{
		contracts.EventTodoCreated,
		contracts.EventTodoCompleted,
		contracts.EventTodoReopened,
		contracts.EventTodoDeleted,
	}
	if len(types) != len(want) {
		t.Fatalf("expected %d events, got %d (%v)", len(want), len(types), types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("event %d: expected %q, got %q", i, want[i], types[i])
		}
	}
	for _, subject := range subjects {
		if !strings.HasSuffix(subject, ".owner.owner-a") {
			t.Fatalf("unexpected subject: %q", subject)
		}
	}
}

func TestPublishFailureDoesNotFailOperation(t *testing.T) {
	store := newFakeStore()
	svc := newServiceForTests(store)
	svc.Publish = func(_ string, _ []byte) error { return errors.New("broker down") }

	view, err := svc.Create(context.Background(), "owner-a", CreateParams{Title: "t", DueDate: date(2024, 1, 10)})
	if err != nil {
		t.Fatalf("Create should succeed when publish fails: %v", err)
	}
	if _, ok := store.todos[view.ID]; !ok {
		t.Fatalf("record not stored")
	}
}
