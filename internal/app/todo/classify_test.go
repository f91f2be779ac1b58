package todo

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestClassify_IncompleteOnDueDayIsFailed(t *testing.T) {
	td := Todo{Status: StatusIncomplete, DueDate: date(2024, 1, 10)}
	// Same-day cutoff: failed as soon as "now" reaches the due day.
	if got := Classify(td, date(2024, 1, 10)); got != LabelFailed {
		t.Fatalf("expected failed, got %q", got)
	}
	if got := Classify(td, time.Date(2024, 1, 10, 23, 59, 0, 0, time.UTC)); got != LabelFailed {
		t.Fatalf("expected failed late in the day, got %q", got)
	}
}

func TestClassify_IncompleteBeforeDueDayHasNoLabel(t *testing.T) {
	td := Todo{Status: StatusIncomplete, DueDate: date(2024, 1, 10)}
	if got := Classify(td, time.Date(2024, 1, 9, 23, 59, 0, 0, time.UTC)); got != LabelNone {
		t.Fatalf("expected no label, got %q", got)
	}
}

func TestClassify_CompletedBeforeDueDateIsSuccess(t *testing.T) {
	completed := date(2024, 1, 9)
	td := Todo{Status: StatusComplete, DueDate: date(2024, 1, 10), CompletedAt: &completed}
	if got := Classify(td, date(2024, 1, 15)); got != LabelSuccess {
		t.Fatalf("expected success, got %q", got)
	}
}

func TestClassify_CompletedOnDueDateIsSuccess(t *testing.T) {
	completed := time.Date(2024, 1, 10, 18, 30, 0, 0, time.UTC)
	td := Todo{Status: StatusComplete, DueDate: date(2024, 1, 10), CompletedAt: &completed}
	if got := Classify(td, date(2024, 1, 15)); got != LabelSuccess {
		t.Fatalf("expected success on inclusive boundary, got %q", got)
	}
}

func TestClassify_CompletedLateHasNoLabel(t *testing.T) {
	completed := date(2024, 1, 12)
	td := Todo{Status: StatusComplete, DueDate: date(2024, 1, 10), CompletedAt: &completed}
	if got := Classify(td, date(2024, 1, 15)); got != LabelNone {
		t.Fatalf("expected no label for late completion, got %q", got)
	}
}

func TestClassify_CompleteWithoutTimestampHasNoLabel(t *testing.T) {
	td := Todo{Status: StatusComplete, DueDate: date(2024, 1, 10)}
	if got := Classify(td, date(2024, 1, 1)); got != LabelNone {
		t.Fatalf("expected no label, got %q", got)
	}
}

func TestClassify_IsDeterministic(t *testing.T) {
	completed := date(2024, 1, 9)
	td := Todo{Status: StatusComplete, DueDate: date(2024, 1, 10), CompletedAt: &completed}
	now := date(2024, 1, 15)
	first := Classify(td, now)
	for i := 0; i < 10; i++ {
		if got := Classify(td, now); got != first {
			t.Fatalf("classification changed between calls: %q vs %q", first, got)
		}
	}
}
