package discord

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentor-hub/learning-mentor/internal/domain/shared"
	"github.com/mentor-hub/learning-mentor/internal/infrastructure/messaging"
	"github.com/mentor-hub/learning-mentor/pkg/logger"
)

// Synchronous bus so assertions can run right after Publish.
func newAnnouncerFixture(t *testing.T) (*fakeClient, *messaging.InMemoryEventBus) {
	t.Helper()

	log := logger.New(logger.Options{Level: logger.LevelFatal, Output: io.Discard})
	client := newFakeClient()
	bus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{
		AsyncMode: false,
		Logger:    log,
	})

	announcer := NewAnnouncer(testConfig(), client, log)
	require.NoError(t, announcer.Subscribe(bus))
	return client, bus
}

func TestAnnouncerLevelUp(t *testing.T) {
	client, bus := newAnnouncerFixture(t)

	require.NoError(t, bus.Publish(shared.NewLevelUpEvent("123", "alice", 0, 1, "Intermediate", 520)))

	sent := client.lastSent(t)
	assert.Equal(t, "chan-learn", sent.channelID)
	assert.Contains(t, sent.content, "Level up!")
	assert.Contains(t, sent.content, "<@123>")
	assert.Contains(t, sent.content, "Intermediate")
}

func TestAnnouncerBadgeUnlocked(t *testing.T) {
	client, bus := newAnnouncerFixture(t)

	require.NoError(t, bus.Publish(shared.NewBadgeUnlockedEvent("123", "alice", "streak_7", "Week Warrior", "🔥")))

	assert.Contains(t, client.lastSent(t).content, "Week Warrior")
}

func TestAnnouncerStreakMilestonesOnly(t *testing.T) {
	client, bus := newAnnouncerFixture(t)

	require.NoError(t, bus.Publish(shared.NewStreakExtendedEvent("123", "alice", 6)))
	assert.Empty(t, client.sent, "ordinary extensions stay quiet")

	require.NoError(t, bus.Publish(shared.NewStreakExtendedEvent("123", "alice", 7)))
	assert.Contains(t, client.lastSent(t).content, "7-day streak")
}

func TestAnnouncerStreakBroken(t *testing.T) {
	client, bus := newAnnouncerFixture(t)

	require.NoError(t, bus.Publish(shared.NewStreakBrokenEvent("123", "alice", 2, 1)))
	assert.Empty(t, client.sent, "short streaks break silently")

	require.NoError(t, bus.Publish(shared.NewStreakBrokenEvent("123", "alice", 12, 2)))
	assert.Contains(t, client.lastSent(t).content, "12-day streak ended")
}

func TestAnnouncerWeeklySummaryReady(t *testing.T) {
	client, bus := newAnnouncerFixture(t)

	require.NoError(t, bus.Publish(shared.NewWeeklySummaryReadyEvent("123", "alice", "great", true)))

	sent := client.lastSent(t)
	assert.Contains(t, sent.content, "Weekly summary")
	assert.Contains(t, sent.content, "!weekly")
}
