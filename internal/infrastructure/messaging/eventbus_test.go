package messaging

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/curriculum-progress/internal/domain/shared"
	"github.com/alem-hub/curriculum-progress/internal/metrics"
	"github.com/alem-hub/curriculum-progress/pkg/logger"
)

func newBus(async bool) *InMemoryEventBus {
	return NewInMemoryEventBus(InMemoryEventBusConfig{
		AsyncMode:      async,
		WorkerPoolSize: 2,
		Logger:         logger.Nop(),
	})
}

func recorded() shared.Event {
	return shared.NewProgressRecordedEvent("u1", 1, 2, "completed", 30, time.Now())
}

func TestInMemoryEventBus_SyncDelivery(t *testing.T) {
	bus := newBus(false)
	defer bus.Close()

	var typed, all int32
	require.NoError(t, bus.Subscribe(shared.EventProgressRecorded, func(shared.Event) error {
		atomic.AddInt32(&typed, 1)
		return nil
	}))
	require.NoError(t, bus.Subscribe(shared.EventLessonCompleted, func(shared.Event) error {
		t.Fatal("wrong event type delivered")
		return nil
	}))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		atomic.AddInt32(&all, 1)
		return nil
	}))

	require.NoError(t, bus.Publish(recorded()))
	assert.EqualValues(t, 1, typed)
	assert.EqualValues(t, 1, all)
}

func TestInMemoryEventBus_AsyncDrainsOnClose(t *testing.T) {
	bus := newBus(true)

	var calls int32
	require.NoError(t, bus.Subscribe(shared.EventProgressRecorded, func(shared.Event) error {
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&calls, 1)
		return nil
	}))

	for i := 0; i < 10; i++ {
		require.NoError(t, bus.Publish(recorded()))
	}
	require.NoError(t, bus.Close())

	assert.EqualValues(t, 10, atomic.LoadInt32(&calls))
	assert.ErrorIs(t, bus.Publish(recorded()), ErrEventBusClosed)
	assert.ErrorIs(t, bus.SubscribeAll(func(shared.Event) error { return nil }), ErrEventBusClosed)
}

func TestInMemoryEventBus_HandlerFailuresAreContained(t *testing.T) {
	bus := newBus(false)
	defer bus.Close()

	before := testutil.ToFloat64(metrics.EventHandlerErrors.WithLabelValues(string(shared.EventProgressRecorded)))

	require.NoError(t, bus.Subscribe(shared.EventProgressRecorded, func(shared.Event) error {
		return errors.New("boom")
	}))
	require.NoError(t, bus.Subscribe(shared.EventProgressRecorded, func(shared.Event) error {
		panic("kaboom")
	}))

	assert.NoError(t, bus.Publish(recorded()))
	after := testutil.ToFloat64(metrics.EventHandlerErrors.WithLabelValues(string(shared.EventProgressRecorded)))
	assert.Equal(t, before+2, after)
}

func TestInMemoryEventBus_RejectsNil(t *testing.T) {
	bus := newBus(false)
	defer bus.Close()

	assert.Error(t, bus.Publish(nil))
	assert.Error(t, bus.Subscribe(shared.EventProgressRecorded, nil))
}

func TestRegisterProgressSubscribers(t *testing.T) {
	bus := newBus(false)
	defer bus.Close()
	require.NoError(t, RegisterProgressSubscribers(bus, logger.Nop()))

	updates := metrics.ProgressUpdates.WithLabelValues("completed")
	lessons := metrics.LessonsCompleted.WithLabelValues("7")
	beforeUpdates := testutil.ToFloat64(updates)
	beforeLessons := testutil.ToFloat64(lessons)

	require.NoError(t, bus.Publish(recorded()))
	require.NoError(t, bus.Publish(shared.NewLessonCompletedEvent("u1", 7, 8, time.Now())))

	assert.Equal(t, beforeUpdates+1, testutil.ToFloat64(updates))
	assert.Equal(t, beforeLessons+1, testutil.ToFloat64(lessons))
}
