package messaging

import (
	"errors"

	"github.com/nats-io/nats.go"
)

const eventsStream = "TODO_EVENTS"

// EventSubjects covers every owner shard.
const EventSubjects = "todo.event.>"

// EnsureStream creates (or validates) the stream backing the todo
// activity feed.
func EnsureStream(js nats.JetStreamContext) error {
	if _, err := js.StreamInfo(eventsStream); err != nil {
		if errors.Is(err, nats.ErrStreamNotFound) {
			_, addErr := js.AddStream(&nats.StreamConfig{
				Name:      eventsStream,
				Subjects:  []string{EventSubjects},
				Retention: nats.LimitsPolicy,
				Storage:   nats.FileStorage,
				Replicas:  1,
			})
			return addErr
		}
		return err
	}
	return nil
}
