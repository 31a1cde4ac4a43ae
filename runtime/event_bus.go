package runtime

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/leeforge/icons/logging"
	"github.com/leeforge/icons/plugin"
	"go.uber.org/zap"
)

// eventBus implements plugin.EventBus with a buffered channel and backpressure.
// Handlers run on their own goroutines; Close waits for all of them.
type eventBus struct {
	subscribers map[string][]subscriberEntry
	mu          sync.RWMutex
	ch          chan eventEnvelope
	wg          sync.WaitGroup
	closed      atomic.Bool
	logger      logging.Logger
	nextID      atomic.Uint64
	done        chan struct{}
	stopped     chan struct{}
}

type eventEnvelope struct {
	ctx   context.Context
	event plugin.Event
}

type subscriberEntry struct {
	id      uint64
	handler plugin.EventHandler
}

type subscription struct {
	bus   *eventBus
	topic string
	id    uint64
}

func (s *subscription) Unsubscribe() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	subs := s.bus.subscribers[s.topic]
	for i, entry := range subs {
		if entry.id == s.id {
			s.bus.subscribers[s.topic] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

func NewEventBus(bufferSize int, logger logging.Logger) *eventBus {
	if logger == nil {
		logger = logging.Nop()
	}
	bus := &eventBus{
		subscribers: make(map[string][]subscriberEntry),
		ch:          make(chan eventEnvelope, bufferSize),
		logger:      logger,
		done:        make(chan struct{}),
		stopped:     make(chan struct{}),
	}

	go bus.dispatch()
	return bus
}

func (b *eventBus) dispatch() {
	defer close(b.stopped)
	for {
		select {
		case env := <-b.ch:
			b.fanOut(env)
		case <-b.done:
			for {
				select {
				case env := <-b.ch:
					b.fanOut(env)
				default:
					return
				}
			}
		}
	}
}

func (b *eventBus) fanOut(env eventEnvelope) {
	b.mu.RLock()
	subs := append([]subscriberEntry{}, b.subscribers[env.event.Name]...)
	b.mu.RUnlock()

	for _, entry := range subs {
		b.wg.Add(1)
		go func(h plugin.EventHandler) {
			defer b.wg.Done()
			if err := h(env.ctx, env.event); err != nil {
				logging.WithContext(b.logger, env.ctx).Warn("event handler error",
					zap.String("event", env.event.Name),
					zap.Error(err))
			}
		}(entry.handler)
	}
}

// Publish queues an event. Blocks while the buffer is full until ctx expires.
func (b *eventBus) Publish(ctx context.Context, event plugin.Event) error {
	if b.closed.Load() {
		return plugin.ErrBusClosed
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	env := eventEnvelope{ctx: context.WithoutCancel(ctx), event: event}

	select {
	case b.ch <- env:
		return nil
	default:
	}

	select {
	case b.ch <- env:
		return nil
	case <-ctx.Done():
		return plugin.ErrPublishTimeout
	}
}

func (b *eventBus) Subscribe(topic string, handler plugin.EventHandler) plugin.Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID.Add(1)
	b.subscribers[topic] = append(b.subscribers[topic], subscriberEntry{
		id:      id,
		handler: handler,
	})

	return &subscription{bus: b, topic: topic, id: id}
}

// Close stops accepting events, dispatches what is queued and waits for
// in-flight handlers.
func (b *eventBus) Close() error {
	if b.closed.Swap(true) {
		return nil
	}

	close(b.done)
	<-b.stopped
	b.wg.Wait()
	return nil
}
