package mentor

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentor-hub/learning-mentor/config"
	"github.com/mentor-hub/learning-mentor/internal/domain/shared"
	"github.com/mentor-hub/learning-mentor/internal/domain/state"
	"github.com/mentor-hub/learning-mentor/internal/infrastructure/external/discord"
	"github.com/mentor-hub/learning-mentor/internal/infrastructure/external/gemini"
	"github.com/mentor-hub/learning-mentor/internal/store"
	"github.com/mentor-hub/learning-mentor/pkg/logger"
	"github.com/mentor-hub/learning-mentor/pkg/timeutil"
)

type memPersister struct {
	blob string
}

func (p *memPersister) Load(ctx context.Context) (string, error) { return p.blob, nil }
func (p *memPersister) Write(ctx context.Context, blob string) error {
	p.blob = blob
	return nil
}
func (p *memPersister) WriteBackup(ctx context.Context, blob, reason string) error { return nil }

type fakeTransport struct {
	messages []discord.CreateMessageRequest
	sentTo   []string
}

func (f *fakeTransport) CreateMessage(ctx context.Context, channelID string, req discord.CreateMessageRequest) (*discord.Message, error) {
	f.messages = append(f.messages, req)
	f.sentTo = append(f.sentTo, channelID)
	return &discord.Message{ID: "m-1", ChannelID: channelID}, nil
}

type fakeAI struct {
	answer    string
	questions []string
	summary   *gemini.WeeklySummary
}

func (f *fakeAI) AskMentor(ctx context.Context, profile, levelName string, u *state.UserRecord, pathwayInfo, recentActivity, question string) string {
	f.questions = append(f.questions, question)
	return f.answer
}

func (f *fakeAI) GenerateWeeklySummary(ctx context.Context, userID string, evals []*state.Evaluation, u *state.UserRecord) (*gemini.WeeklySummary, bool) {
	return f.summary, true
}

func testConfig() *config.Config {
	return &config.Config{
		Discord: config.DiscordConfig{
			LearningChannelID: "chan-learn",
			CommandPrefix:     "!",
		},
		Tracking: config.TrackingConfig{
			UserIDs: []string{"123"},
		},
	}
}

func newTestService(t *testing.T, ai *fakeAI) (*Service, *store.Store, *fakeTransport) {
	t.Helper()

	ts, err := time.Parse(time.RFC3339, "2026-08-29T15:00:00Z")
	require.NoError(t, err)
	zone := timeutil.NewZone("UTC", 3).WithClock(timeutil.FixedClock{T: ts})
	log := logger.New(logger.Options{Level: logger.LevelFatal, Output: io.Discard})

	st := store.New(&memPersister{}, zone, log)
	require.NoError(t, st.Load(context.Background(), "test"))

	disc := &fakeTransport{}
	svc := New(testConfig(), st, disc, ai, zone, nil, log)
	return svc, st, disc
}

func seedUserWithThread(t *testing.T, st *store.Store) {
	t.Helper()
	require.NoError(t, st.Mutate(context.Background(), func(d *state.Document) error {
		u := d.EnsureUser("123", "alice", "")
		u.DailyThreadID = "th-1"
		u.Points = 600
		u.Streak = 5
		u.MaxStreak = 5
		return nil
	}))
}

func TestIsQuestion(t *testing.T) {
	assert.True(t, IsQuestion("How do transformers handle long sequences?"))
	assert.True(t, IsQuestion("should i learn PyTorch before TensorFlow"))
	assert.True(t, IsQuestion("explain gradient descent to me please"))

	assert.False(t, IsQuestion("ok?"), "too short")
	assert.False(t, IsQuestion("Today I studied convolutional networks."))
	assert.False(t, IsQuestion("whatever happens, happens"), "starter must be a full word")
}

func TestHandleMessageAnswersInThread(t *testing.T) {
	ai := &fakeAI{answer: "Start with attention, then scale up."}
	svc, st, disc := newTestService(t, ai)
	seedUserWithThread(t, st)

	msg := discord.Message{
		ID:        "q-1",
		ChannelID: "th-1",
		Author:    discord.User{ID: "123", Username: "alice"},
		Content:   "How should I approach learning transformers?",
	}

	handled, err := svc.HandleMessage(context.Background(), msg)
	require.NoError(t, err)
	assert.True(t, handled)

	require.Len(t, disc.messages, 1)
	assert.Equal(t, "th-1", disc.sentTo[0])
	assert.Equal(t, ai.answer, disc.messages[0].Content)
	require.Len(t, ai.questions, 1)
	assert.Equal(t, "How should I approach learning transformers?", ai.questions[0])
}

func TestHandleMessageIgnoresOutsideThread(t *testing.T) {
	ai := &fakeAI{answer: "answer"}
	svc, st, disc := newTestService(t, ai)
	seedUserWithThread(t, st)

	msg := discord.Message{
		ChannelID: "chan-learn",
		Author:    discord.User{ID: "123"},
		Content:   "How should I approach learning transformers?",
	}

	handled, err := svc.HandleMessage(context.Background(), msg)
	require.NoError(t, err)
	assert.False(t, handled)
	assert.Empty(t, disc.messages)
}

func TestHandleMessageIgnoresNonQuestions(t *testing.T) {
	ai := &fakeAI{answer: "answer"}
	svc, st, disc := newTestService(t, ai)
	seedUserWithThread(t, st)
	ctx := context.Background()

	// A learning log in the thread is not a question.
	handled, err := svc.HandleMessage(ctx, discord.Message{
		ChannelID: "th-1",
		Author:    discord.User{ID: "123"},
		Content:   "Today I implemented a CNN from scratch in PyTorch.",
	})
	require.NoError(t, err)
	assert.False(t, handled)

	// Untracked users are never answered.
	handled, err = svc.HandleMessage(ctx, discord.Message{
		ChannelID: "th-1",
		Author:    discord.User{ID: "999"},
		Content:   "What is backpropagation exactly?",
	})
	require.NoError(t, err)
	assert.False(t, handled)
	assert.Empty(t, disc.messages)
}

func TestWeeklySummary(t *testing.T) {
	ai := &fakeAI{summary: &gemini.WeeklySummary{
		WeekRating:     "strong",
		StrongestArea:  "DL",
		WeeklyFeedback: "Great depth this week.",
	}}
	svc, st, _ := newTestService(t, ai)
	seedUserWithThread(t, st)
	ctx := context.Background()

	require.NoError(t, st.Mutate(ctx, func(d *state.Document) error {
		d.CacheEvaluation("123", &state.Evaluation{
			UserID:   "123",
			Date:     "2026-08-28",
			Analysis: state.Analysis{PrimaryFocus: "DL", DepthScore: 8},
		})
		return nil
	}))

	summary, err := svc.WeeklySummary(ctx, "123")
	require.NoError(t, err)
	assert.Equal(t, "strong", summary.WeekRating)
	assert.Equal(t, "Great depth this week.", summary.WeeklyFeedback)
}

func TestWeeklySummaryWithoutEvaluations(t *testing.T) {
	ai := &fakeAI{summary: &gemini.WeeklySummary{}}
	svc, st, _ := newTestService(t, ai)
	seedUserWithThread(t, st)

	_, err := svc.WeeklySummary(context.Background(), "123")
	require.Error(t, err)
	assert.True(t, shared.IsNotFound(err))
}

func TestBuildProfileTopicShares(t *testing.T) {
	u := state.NewUserRecord("123", "alice", "")
	u.TopicCoverage = map[string]float64{"AI": 3, "ML": 1, "DL": 0, "DS": 0}

	profile := buildProfile(u)
	assert.Contains(t, profile, "AI 75%")
	assert.Contains(t, profile, "ML 25%")
	assert.NotContains(t, profile, "300%")
}
