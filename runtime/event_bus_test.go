package runtime

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leeforge/icons/logging"
	"github.com/leeforge/icons/plugin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus_PublishAndSubscribe(t *testing.T) {
	bus := NewEventBus(16, logging.Nop())

	var count atomic.Int32
	bus.Subscribe("icon.generated", func(ctx context.Context, e plugin.Event) error {
		count.Add(1)
		return nil
	})
	bus.Subscribe("icon.generated", func(ctx context.Context, e plugin.Event) error {
		count.Add(1)
		assert.False(t, e.Timestamp.IsZero())
		return nil
	})

	require.NoError(t, bus.Publish(context.Background(), plugin.Event{Name: "icon.generated", Data: 42}))
	require.NoError(t, bus.Close())

	assert.Equal(t, int32(2), count.Load())
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := NewEventBus(16, logging.Nop())

	var count atomic.Int32
	sub := bus.Subscribe("evt", func(ctx context.Context, e plugin.Event) error {
		count.Add(1)
		return nil
	})
	sub.Unsubscribe()

	require.NoError(t, bus.Publish(context.Background(), plugin.Event{Name: "evt"}))
	require.NoError(t, bus.Close())
	assert.Equal(t, int32(0), count.Load())
}

func TestEventBus_PublishAfterClose(t *testing.T) {
	bus := NewEventBus(16, logging.Nop())
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close(), "second close is a no-op")

	err := bus.Publish(context.Background(), plugin.Event{Name: "evt"})
	assert.ErrorIs(t, err, plugin.ErrBusClosed)
}

func TestEventBus_CloseWaitsForInFlight(t *testing.T) {
	bus := NewEventBus(16, logging.Nop())

	var finished atomic.Bool
	bus.Subscribe("slow", func(ctx context.Context, e plugin.Event) error {
		time.Sleep(100 * time.Millisecond)
		finished.Store(true)
		return nil
	})

	require.NoError(t, bus.Publish(context.Background(), plugin.Event{Name: "slow"}))
	require.NoError(t, bus.Close())
	assert.True(t, finished.Load())
}

func TestEventBus_HandlerContextOutlivesPublisher(t *testing.T) {
	bus := NewEventBus(16, logging.Nop())

	ctx, cancel := context.WithCancel(logging.SetTraceID(context.Background(), "t-1"))
	var sawErr error
	var sawTrace string
	bus.Subscribe("evt", func(ctx context.Context, e plugin.Event) error {
		sawErr = ctx.Err()
		sawTrace = logging.GetTraceID(ctx)
		return nil
	})

	require.NoError(t, bus.Publish(ctx, plugin.Event{Name: "evt"}))
	cancel()
	require.NoError(t, bus.Close())

	assert.NoError(t, sawErr)
	assert.Equal(t, "t-1", sawTrace)
}
