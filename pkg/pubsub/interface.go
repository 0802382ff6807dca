package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrClosed is returned when publishing on a closed bus.
var ErrClosed = errors.New("pubsub: closed")

// Event represents a message published to the event bus.
type Event struct {
	Type      string          `json:"type"`
	Key       string          `json:"key"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEvent creates a new event with the current timestamp. key is used for
// partitioning where the driver supports it.
func NewEvent(eventType, key string, payload interface{}) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		Type:      eventType,
		Key:       key,
		Payload:   data,
		Timestamp: time.Now().UTC(),
	}, nil
}

// UnmarshalPayload unmarshals the event payload into the given struct.
func (e *Event) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// Publisher publishes events to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *Event) error
}

// Subscriber consumes events from a topic. The returned channel is closed when
// ctx is cancelled or the bus is closed. Events are never dropped on a slow reader;
// the driver waits for the reader instead.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string) (<-chan *Event, error)
}

// PubSub combines Publisher and Subscriber interfaces.
type PubSub interface {
	Publisher
	Subscriber
	Close() error
}
