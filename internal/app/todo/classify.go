package todo

import "time"

// Label is the derived success/failure marker shown next to a todo.
// It is presentation-only: recomputed on every read, never stored.
type Label string

const (
	LabelSuccess Label = "success"
	LabelFailed  Label = "failed"
	LabelNone    Label = ""
)

// Classify derives the label from the record's timestamps at day
// granularity. An incomplete todo is failed from the start of its due
// day, not only once the day has passed. A todo completed on its due
// day still counts as success.
func Classify(t Todo, now time.Time) Label {
	due := startOfDay(t.DueDate)

	if t.Status == StatusIncomplete {
		if !startOfDay(now).Before(due) {
			return LabelFailed
		}
		return LabelNone
	}

	if t.CompletedAt != nil && !startOfDay(*t.CompletedAt).After(due) {
		return LabelSuccess
	}
	return LabelNone
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
