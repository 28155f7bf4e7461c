package discord

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentor-hub/learning-mentor/internal/application/mentor"
	"github.com/mentor-hub/learning-mentor/internal/application/tracker"
	"github.com/mentor-hub/learning-mentor/internal/domain/state"
	api "github.com/mentor-hub/learning-mentor/internal/infrastructure/external/discord"
	"github.com/mentor-hub/learning-mentor/internal/store"
	"github.com/mentor-hub/learning-mentor/pkg/logger"
	"github.com/mentor-hub/learning-mentor/pkg/timeutil"
)

// The tracker slice of the client, shared by the fixtures in this file.

func (f *fakeClient) CreateReaction(ctx context.Context, channelID, messageID, emoji string) error {
	return nil
}

func (f *fakeClient) GetChannel(ctx context.Context, channelID string) (*api.Channel, error) {
	return &api.Channel{ID: channelID, Type: api.ChannelTypeGuildText}, nil
}

func (f *fakeClient) StartThread(ctx context.Context, channelID, name string) (*api.Channel, error) {
	return &api.Channel{ID: "th-new", Type: api.ChannelTypePublicThread, Name: name, ParentID: channelID}, nil
}

const deepLog = "Today I studied the transformer architecture and attention mechanism, then implemented backpropagation with gradient descent for a neural network classifier."

func newBotFixture(t *testing.T) (*Bot, *store.Store, *fakeClient) {
	t.Helper()

	ts, err := time.Parse(time.RFC3339, "2026-08-29T15:00:00Z")
	require.NoError(t, err)
	zone := timeutil.NewZone("UTC", 3).WithClock(timeutil.FixedClock{T: ts})
	log := logger.New(logger.Options{Level: logger.LevelFatal, Output: io.Discard})

	cfg := testConfig()
	cfg.Discord.PollingInterval = 50 * time.Millisecond
	cfg.Discord.PollingLimit = 50

	st := store.New(&memPersister{}, zone, log)
	require.NoError(t, st.Load(context.Background(), "test"))

	client := newFakeClient()
	router := NewRouter(cfg, client, log)
	mentorSvc := mentor.New(cfg, st, client, &fakeAI{}, zone, nil, log)
	NewUserCommands(cfg, st, mentorSvc, zone, log).Register(router)
	trackerSvc := tracker.New(cfg, st, client, zone, nil, log)

	bot := NewBot(cfg, st, client, router, mentorSvc, trackerSvc, log)
	bot.botUserID = "bot-1"
	return bot, st, client
}

func message(id, channelID, userID, content string) api.Message {
	return api.Message{
		ID:        id,
		ChannelID: channelID,
		Author:    api.User{ID: userID, Username: "user-" + userID},
		Content:   content,
		Timestamp: "2026-08-29T15:00:00+00:00",
	}
}

func TestDispatchCommandBeforeTracking(t *testing.T) {
	bot, st, client := newBotFixture(t)

	bot.dispatch(context.Background(), message("10", "chan-learn", "123", "!help"))

	assert.Contains(t, client.lastSent(t).content, "Available commands")
	_, err := st.User("123")
	assert.Error(t, err, "commands never count as learning logs")
}

func TestDispatchQuestionGoesToMentor(t *testing.T) {
	bot, st, client := newBotFixture(t)

	require.NoError(t, st.Mutate(context.Background(), func(d *state.Document) error {
		u := d.EnsureUser("123", "alice", "")
		u.DailyThreadID = "th-1"
		return nil
	}))

	bot.dispatch(context.Background(), message("10", "th-1", "123", "How do transformers handle long sequences?"))

	assert.Contains(t, client.lastSent(t).content, "Mentor says")

	u, err := st.User("123")
	require.NoError(t, err)
	assert.Zero(t, u.Points, "questions earn no points")
}

func TestDispatchLearningLogGoesToTracker(t *testing.T) {
	bot, st, _ := newBotFixture(t)

	bot.dispatch(context.Background(), message("10", "chan-learn", "123", deepLog))

	u, err := st.User("123")
	require.NoError(t, err)
	assert.Equal(t, 15, u.Points)
	assert.Equal(t, 1, u.Streak)
}

func TestDispatchIgnoresBots(t *testing.T) {
	bot, st, client := newBotFixture(t)

	msg := message("10", "chan-learn", "123", deepLog)
	msg.Author.Bot = true
	bot.handle(context.Background(), msg)
	bot.wg.Wait()

	assert.Empty(t, client.sent)
	_, err := st.User("123")
	assert.Error(t, err)
}

func TestPollOnceAdvancesCursor(t *testing.T) {
	bot, st, client := newBotFixture(t)
	ctx := context.Background()

	client.history["chan-learn"] = []api.Message{
		message("20", "chan-learn", "123", deepLog),
	}

	bot.pollOnce(ctx)
	bot.wg.Wait()

	u, err := st.User("123")
	require.NoError(t, err)
	assert.Equal(t, 15, u.Points)
	assert.Equal(t, "20", bot.cursors["chan-learn"])

	// Same history again: nothing new past the cursor.
	bot.pollOnce(ctx)
	bot.wg.Wait()

	u, err = st.User("123")
	require.NoError(t, err)
	assert.Equal(t, 15, u.Points, "no double processing")

	stats := bot.GetStats()
	assert.Equal(t, int64(2), stats.PollCycles)
	assert.Equal(t, int64(1), stats.MessagesSeen)
}

func TestPollChannelsIncludeDailyThreads(t *testing.T) {
	bot, st, _ := newBotFixture(t)

	require.NoError(t, st.Mutate(context.Background(), func(d *state.Document) error {
		u := d.EnsureUser("123", "alice", "")
		u.DailyThreadID = "th-1"
		return nil
	}))

	assert.ElementsMatch(t, []string{"chan-learn", "th-1"}, bot.pollChannels())
}

func TestStartAndStop(t *testing.T) {
	bot, _, client := newBotFixture(t)
	ctx := context.Background()

	client.history["chan-learn"] = []api.Message{
		message("30", "chan-learn", "123", deepLog),
	}

	require.NoError(t, bot.Start(ctx))
	assert.Equal(t, "bot-1", bot.botUserID)
	assert.Equal(t, "30", bot.cursors["chan-learn"], "startup seeds cursors, history is not replayed")

	bot.Stop(time.Second)
	assert.Empty(t, client.sent)
}
