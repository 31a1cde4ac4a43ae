package plugin

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrBusClosed = errors.New("event bus is closed")
	// ErrPublishTimeout means the buffer stayed full until ctx was done.
	ErrPublishTimeout = errors.New("event publish timeout: buffer full")
)

// Event is a named notification, e.g. "icon.generated".
type Event struct {
	Name      string
	Data      any
	Source    string // publishing plugin
	Timestamp time.Time
}

// Payload returns e.Data as T, or an error naming the event and the actual type.
func Payload[T any](e Event) (T, error) {
	v, ok := e.Data.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("event %q: payload is %T, want %T", e.Name, e.Data, zero)
	}
	return v, nil
}

type EventHandler func(ctx context.Context, event Event) error

type Subscription interface {
	Unsubscribe()
}

// EventBus delivers events asynchronously. Handlers receive a context that
// keeps the publisher's values but is never canceled.
type EventBus interface {
	// Publish blocks while the buffer is full until ctx is done.
	Publish(ctx context.Context, event Event) error
	Subscribe(topic string, handler EventHandler) Subscription
	// Close delivers queued events and waits for running handlers.
	Close() error
}
