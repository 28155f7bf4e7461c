package messaging

import (
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentor-hub/learning-mentor/internal/domain/shared"
	"github.com/mentor-hub/learning-mentor/pkg/logger"
)

func newSyncBus() *InMemoryEventBus {
	return NewInMemoryEventBus(InMemoryEventBusConfig{
		AsyncMode: false,
		Logger:    logger.New(logger.Options{Level: logger.LevelFatal, Output: io.Discard}),
	})
}

func TestPublishToTypedSubscriber(t *testing.T) {
	bus := newSyncBus()
	defer bus.Close()

	var got []shared.Event
	require.NoError(t, bus.Subscribe(shared.EventLevelUp, func(e shared.Event) error {
		got = append(got, e)
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewLevelUpEvent("123", "alice", 0, 1, "Intermediate", 600)))
	require.NoError(t, bus.Publish(shared.NewStreakBrokenEvent("123", "alice", 5, 2)))

	require.Len(t, got, 1, "only the subscribed type is delivered")
	assert.Equal(t, shared.EventLevelUp, got[0].EventType())
	assert.Equal(t, "123", got[0].AggregateID())
}

func TestSubscribeAllReceivesEverything(t *testing.T) {
	bus := newSyncBus()
	defer bus.Close()

	var count int
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		count++
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewLevelUpEvent("1", "a", 0, 1, "Intermediate", 600)))
	require.NoError(t, bus.Publish(shared.NewBadgeUnlockedEvent("1", "a", "first_log", "First Log", "📝")))
	assert.Equal(t, 2, count)
}

func TestHandlerErrorDoesNotStopOthers(t *testing.T) {
	bus := newSyncBus()
	defer bus.Close()

	var secondRan bool
	require.NoError(t, bus.Subscribe(shared.EventLevelUp, func(e shared.Event) error {
		return errors.New("boom")
	}))
	require.NoError(t, bus.Subscribe(shared.EventLevelUp, func(e shared.Event) error {
		secondRan = true
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewLevelUpEvent("1", "a", 0, 1, "Intermediate", 600)))
	assert.True(t, secondRan)

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(2), snap.TotalHandlerExecs)
	assert.Equal(t, 0.5, snap.HandlerSuccessRate)
}

func TestAsyncDelivery(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{
		AsyncMode:      true,
		WorkerPoolSize: 2,
		Logger:         logger.New(logger.Options{Level: logger.LevelFatal, Output: io.Discard}),
	})

	var mu sync.Mutex
	var count int
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	}))

	for i := 0; i < 10; i++ {
		require.NoError(t, bus.Publish(shared.NewPointsAwardedEvent("1", "a", 10, 10*(i+1), 3)))
	}

	// Close waits for pending handlers.
	require.NoError(t, bus.Close())
	assert.Equal(t, 10, count)
}

func TestClosedBusRejectsPublish(t *testing.T) {
	bus := newSyncBus()
	require.NoError(t, bus.Close())

	err := bus.Publish(shared.NewLevelUpEvent("1", "a", 0, 1, "Intermediate", 600))
	assert.ErrorIs(t, err, ErrEventBusClosed)

	err = bus.Subscribe(shared.EventLevelUp, func(e shared.Event) error { return nil })
	assert.ErrorIs(t, err, ErrEventBusClosed)
}
