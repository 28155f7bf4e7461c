package presenter

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentor-hub/learning-mentor/config"
	"github.com/mentor-hub/learning-mentor/internal/domain/state"
	"github.com/mentor-hub/learning-mentor/internal/infrastructure/external/discord"
	"github.com/mentor-hub/learning-mentor/internal/store"
	"github.com/mentor-hub/learning-mentor/pkg/logger"
	"github.com/mentor-hub/learning-mentor/pkg/timeutil"
)

type memPersister struct{ blob string }

func (p *memPersister) Load(ctx context.Context) (string, error)     { return p.blob, nil }
func (p *memPersister) Write(ctx context.Context, blob string) error { p.blob = blob; return nil }
func (p *memPersister) WriteBackup(ctx context.Context, blob, reason string) error {
	return nil
}

type fakeDashTransport struct {
	pinned  []discord.Message
	created []discord.CreateMessageRequest
	edited  map[string]discord.EditMessageRequest
	pinsSet []string
	editErr error
	nextID  int
}

func newFakeDashTransport() *fakeDashTransport {
	return &fakeDashTransport{edited: make(map[string]discord.EditMessageRequest)}
}

func (f *fakeDashTransport) CreateMessage(ctx context.Context, channelID string, req discord.CreateMessageRequest) (*discord.Message, error) {
	f.created = append(f.created, req)
	f.nextID++
	return &discord.Message{ID: "m-" + string(rune('0'+f.nextID)), ChannelID: channelID}, nil
}

func (f *fakeDashTransport) EditMessage(ctx context.Context, channelID, messageID string, req discord.EditMessageRequest) (*discord.Message, error) {
	if f.editErr != nil {
		return nil, f.editErr
	}
	f.edited[messageID] = req
	return &discord.Message{ID: messageID, ChannelID: channelID}, nil
}

func (f *fakeDashTransport) GetPinnedMessages(ctx context.Context, channelID string) ([]discord.Message, error) {
	return f.pinned, nil
}

func (f *fakeDashTransport) PinMessage(ctx context.Context, channelID, messageID string) error {
	f.pinsSet = append(f.pinsSet, messageID)
	return nil
}

func newDashboardFixture(t *testing.T) (*Dashboard, *store.Store, *fakeDashTransport) {
	t.Helper()

	ts, err := time.Parse(time.RFC3339, "2026-08-29T15:00:00Z")
	require.NoError(t, err)
	zone := timeutil.NewZone("UTC", 3).WithClock(timeutil.FixedClock{T: ts})
	log := logger.New(logger.Options{Level: logger.LevelFatal, Output: io.Discard})

	cfg := &config.Config{
		Discord:  config.DiscordConfig{DashboardChannelID: "chan-dash"},
		Tracking: config.TrackingConfig{UserIDs: []string{"123", "456"}},
	}

	st := store.New(&memPersister{}, zone, log)
	require.NoError(t, st.Load(context.Background(), "test"))

	disc := newFakeDashTransport()
	return NewDashboard(cfg, st, disc, zone, log), st, disc
}

func seedDashboardUsers(t *testing.T, st *store.Store) {
	t.Helper()
	require.NoError(t, st.Mutate(context.Background(), func(d *state.Document) error {
		a := d.EnsureUser("123", "alice", "")
		a.Points = 300
		a.Streak = 4
		a.MaxStreak = 4
		a.LastLogDate = "2026-08-29"
		b := d.EnsureUser("456", "bob", "")
		b.Points = 700
		b.Streak = 2
		b.MaxStreak = 2
		return nil
	}))
}

func TestRefreshCreatesAndPinsOnFirstRun(t *testing.T) {
	dash, st, disc := newDashboardFixture(t)
	seedDashboardUsers(t, st)

	require.NoError(t, dash.Refresh(context.Background()))

	require.Len(t, disc.created, 1)
	require.Len(t, disc.pinsSet, 1)

	embed := disc.created[0].Embeds[0]
	assert.Equal(t, dashboardTitle, embed.Title)
	assert.Contains(t, embed.Description, "🥇")
	assert.Contains(t, embed.Description, "bob", "bob leads on points")
	assert.Contains(t, embed.Description, "✅", "alice logged today")
}

func TestRefreshEditsExistingMessage(t *testing.T) {
	dash, st, disc := newDashboardFixture(t)
	seedDashboardUsers(t, st)
	ctx := context.Background()

	require.NoError(t, dash.Refresh(ctx))
	require.NoError(t, dash.Refresh(ctx))

	assert.Len(t, disc.created, 1, "second refresh edits in place")
	assert.Len(t, disc.edited, 1)
}

func TestRefreshFindsPinnedDashboard(t *testing.T) {
	dash, st, disc := newDashboardFixture(t)
	seedDashboardUsers(t, st)

	disc.pinned = []discord.Message{
		{ID: "pin-7", Embeds: []discord.Embed{{Title: dashboardTitle}}},
		{ID: "pin-1", Embeds: []discord.Embed{{Title: "something else"}}},
	}

	require.NoError(t, dash.Refresh(context.Background()))

	assert.Empty(t, disc.created, "existing pinned message is reused")
	_, ok := disc.edited["pin-7"]
	assert.True(t, ok)
}

func TestRefreshWithNoUsers(t *testing.T) {
	dash, _, disc := newDashboardFixture(t)

	require.NoError(t, dash.Refresh(context.Background()))

	require.Len(t, disc.created, 1)
	assert.Contains(t, disc.created[0].Embeds[0].Description, "No learners tracked yet")
}
