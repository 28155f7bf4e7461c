package discordstate

import (
	"context"
	"errors"
	"io"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentor-hub/learning-mentor/internal/infrastructure/external/discord"
	"github.com/mentor-hub/learning-mentor/pkg/logger"
	"github.com/mentor-hub/learning-mentor/pkg/timeutil"
)

// fakeAPI records calls and simulates the state channel.
type fakeAPI struct {
	pins     []discord.Message
	messages map[string]*discord.Message
	threads  []discord.Channel
	nextID   int

	editFails bool
	pinned    []string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{messages: make(map[string]*discord.Message), nextID: 100}
}

func (f *fakeAPI) GetPinnedMessages(ctx context.Context, channelID string) ([]discord.Message, error) {
	return f.pins, nil
}

func (f *fakeAPI) CreateMessage(ctx context.Context, channelID string, req discord.CreateMessageRequest) (*discord.Message, error) {
	f.nextID++
	msg := &discord.Message{ID: strconv.Itoa(f.nextID), ChannelID: channelID, Embeds: req.Embeds}
	f.messages[msg.ID] = msg
	return msg, nil
}

func (f *fakeAPI) EditMessage(ctx context.Context, channelID, messageID string, req discord.EditMessageRequest) (*discord.Message, error) {
	if f.editFails {
		return nil, errors.New("unknown message")
	}
	msg, ok := f.messages[messageID]
	if !ok {
		msg = &discord.Message{ID: messageID, ChannelID: channelID}
		f.messages[messageID] = msg
	}
	msg.Embeds = req.Embeds
	return msg, nil
}

func (f *fakeAPI) PinMessage(ctx context.Context, channelID, messageID string) error {
	f.pinned = append(f.pinned, messageID)
	return nil
}

func (f *fakeAPI) StartThread(ctx context.Context, channelID, name string) (*discord.Channel, error) {
	f.nextID++
	th := discord.Channel{ID: strconv.Itoa(f.nextID), Type: discord.ChannelTypePublicThread, Name: name, ParentID: channelID}
	f.threads = append(f.threads, th)
	return &th, nil
}

func (f *fakeAPI) ListActiveThreads(ctx context.Context, guildID string) ([]discord.Channel, error) {
	return f.threads, nil
}

func newTestPersister(t *testing.T, api *fakeAPI) *Persister {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, "2026-08-29T12:00:00Z")
	require.NoError(t, err)
	zone := timeutil.NewZone("UTC", 3).WithClock(timeutil.FixedClock{T: ts})
	log := logger.New(logger.Options{Level: logger.LevelFatal, Output: io.Discard})
	return New(api, "guild-1", "chan-1", zone, log)
}

func TestLoadNoState(t *testing.T) {
	p := newTestPersister(t, newFakeAPI())

	blob, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, blob)
}

func TestLoadFindsPinnedState(t *testing.T) {
	api := newFakeAPI()
	api.pins = []discord.Message{
		{ID: "1", Embeds: []discord.Embed{{Title: "something else"}}},
		{ID: "2", Embeds: []discord.Embed{{Title: "🔒 Bot State [DO NOT MODIFY]", Description: "LMS2:abc:payload"}}},
	}
	p := newTestPersister(t, api)

	blob, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "LMS2:abc:payload", blob)
}

func TestWriteCreatesAndPins(t *testing.T) {
	api := newFakeAPI()
	p := newTestPersister(t, api)

	require.NoError(t, p.Write(context.Background(), "LMS2:abc:v1"))
	require.Len(t, api.pinned, 1)

	msg := api.messages[api.pinned[0]]
	require.Len(t, msg.Embeds, 1)
	assert.Equal(t, "🔒 Bot State [DO NOT MODIFY]", msg.Embeds[0].Title)
	assert.Equal(t, "LMS2:abc:v1", msg.Embeds[0].Description)
	assert.Contains(t, msg.Embeds[0].Footer.Text, "Last updated")
}

func TestWriteEditsExisting(t *testing.T) {
	api := newFakeAPI()
	p := newTestPersister(t, api)

	require.NoError(t, p.Write(context.Background(), "LMS2:abc:v1"))
	firstID := api.pinned[0]

	require.NoError(t, p.Write(context.Background(), "LMS2:abc:v2"))
	assert.Len(t, api.pinned, 1, "no second pin on edit")
	assert.Equal(t, "LMS2:abc:v2", api.messages[firstID].Embeds[0].Description)
}

func TestWriteRecreatesWhenEditFails(t *testing.T) {
	api := newFakeAPI()
	p := newTestPersister(t, api)

	require.NoError(t, p.Write(context.Background(), "LMS2:abc:v1"))
	api.editFails = true

	require.NoError(t, p.Write(context.Background(), "LMS2:abc:v2"))
	assert.Len(t, api.pinned, 2, "replacement message pinned")
}

func TestWriteBackupCreatesThreadOnce(t *testing.T) {
	api := newFakeAPI()
	p := newTestPersister(t, api)

	require.NoError(t, p.WriteBackup(context.Background(), "LMS2:abc:v1", "nightly"))
	require.NoError(t, p.WriteBackup(context.Background(), "LMS2:abc:v2", "manual"))

	assert.Len(t, api.threads, 1)
	assert.Equal(t, "🔐 State Backup [LOCKED]", api.threads[0].Name)

	backups := 0
	for _, msg := range api.messages {
		if msg.ChannelID == api.threads[0].ID {
			backups++
			assert.Contains(t, msg.Embeds[0].Title, "📦 Backup")
			assert.Contains(t, msg.Embeds[0].Footer.Text, "snapshot ")
		}
	}
	assert.Equal(t, 2, backups)
}

func TestWriteBackupReusesExistingThread(t *testing.T) {
	api := newFakeAPI()
	api.threads = []discord.Channel{
		{ID: "55", Type: discord.ChannelTypePublicThread, Name: "🔐 State Backup [LOCKED]", ParentID: "chan-1"},
	}
	p := newTestPersister(t, api)

	require.NoError(t, p.WriteBackup(context.Background(), "LMS2:abc:v1", "startup"))
	assert.Len(t, api.threads, 1, "existing thread reused")
}
