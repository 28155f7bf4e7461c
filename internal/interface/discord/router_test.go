package discord

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentor-hub/learning-mentor/config"
	"github.com/mentor-hub/learning-mentor/internal/application/admin"
	"github.com/mentor-hub/learning-mentor/internal/application/mentor"
	"github.com/mentor-hub/learning-mentor/internal/domain/scoring"
	"github.com/mentor-hub/learning-mentor/internal/domain/state"
	api "github.com/mentor-hub/learning-mentor/internal/infrastructure/external/discord"
	"github.com/mentor-hub/learning-mentor/internal/infrastructure/external/gemini"
	"github.com/mentor-hub/learning-mentor/internal/store"
	"github.com/mentor-hub/learning-mentor/pkg/logger"
	"github.com/mentor-hub/learning-mentor/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// FIXTURES
// ══════════════════════════════════════════════════════════════════════════════

type memPersister struct{ blob string }

func (p *memPersister) Load(ctx context.Context) (string, error)     { return p.blob, nil }
func (p *memPersister) Write(ctx context.Context, blob string) error { p.blob = blob; return nil }
func (p *memPersister) WriteBackup(ctx context.Context, blob, reason string) error {
	return nil
}

type sentMessage struct {
	channelID string
	content   string
	embeds    []api.Embed
}

type fakeClient struct {
	sent    []sentMessage
	history map[string][]api.Message
}

func newFakeClient() *fakeClient {
	return &fakeClient{history: make(map[string][]api.Message)}
}

func (f *fakeClient) CreateMessage(ctx context.Context, channelID string, req api.CreateMessageRequest) (*api.Message, error) {
	f.sent = append(f.sent, sentMessage{channelID: channelID, content: req.Content, embeds: req.Embeds})
	return &api.Message{ID: "m-1", ChannelID: channelID}, nil
}

// GetMessages serves single-page fixtures, newest first, honoring the
// After cursor (IDs in fixtures are fixed-width and compare as strings).
func (f *fakeClient) GetMessages(ctx context.Context, channelID string, opts api.ListMessagesOptions) ([]api.Message, error) {
	if opts.Before != "" {
		return nil, nil
	}
	var out []api.Message
	for _, msg := range f.history[channelID] {
		if opts.After != "" && msg.ID <= opts.After {
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

func (f *fakeClient) CurrentUser(ctx context.Context) (*api.User, error) {
	return &api.User{ID: "bot-1", Username: "mentor", Bot: true}, nil
}

func (f *fakeClient) lastSent(t *testing.T) sentMessage {
	t.Helper()
	require.NotEmpty(t, f.sent)
	return f.sent[len(f.sent)-1]
}

type fakeAI struct{}

func (f *fakeAI) AskMentor(ctx context.Context, profile, levelName string, u *state.UserRecord, pathwayInfo, recentActivity, question string) string {
	return "Mentor says: focus on fundamentals."
}

func (f *fakeAI) GenerateWeeklySummary(ctx context.Context, userID string, evals []*state.Evaluation, u *state.UserRecord) (*gemini.WeeklySummary, bool) {
	return &gemini.WeeklySummary{WeekRating: "great", WeeklyFeedback: "Strong week."}, true
}

func testConfig() *config.Config {
	return &config.Config{
		Discord: config.DiscordConfig{
			LearningChannelID:  "chan-learn",
			DashboardChannelID: "chan-dash",
			CommandPrefix:      "!",
			AdminIDs:           []string{"900"},
		},
		Tracking: config.TrackingConfig{
			UserIDs:                []string{"123"},
			MinMessageLength:       30,
			BasePoints:             10,
			DepthBonus:             5,
			StreakGraceHour:        3,
			DailyFlagRetentionDays: 7,
		},
	}
}

type fixture struct {
	cfg    *config.Config
	store  *store.Store
	client *fakeClient
	router *Router
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	ts, err := time.Parse(time.RFC3339, "2026-08-29T15:00:00Z")
	require.NoError(t, err)
	zone := timeutil.NewZone("UTC", 3).WithClock(timeutil.FixedClock{T: ts})
	log := logger.New(logger.Options{Level: logger.LevelFatal, Output: io.Discard})

	cfg := testConfig()
	st := store.New(&memPersister{}, zone, log)
	require.NoError(t, st.Load(context.Background(), "test"))

	client := newFakeClient()
	router := NewRouter(cfg, client, log)

	mentorSvc := mentor.New(cfg, st, client, &fakeAI{}, zone, nil, log)
	NewUserCommands(cfg, st, mentorSvc, zone, log).Register(router)

	adminSvc := admin.New(cfg, st, client, nil, zone, log)
	NewAdminCommands(adminSvc, log).Register(router)

	return &fixture{cfg: cfg, store: st, client: client, router: router}
}

func (f *fixture) seedUser(t *testing.T, userID string, points, streak int) {
	t.Helper()
	require.NoError(t, f.store.Mutate(context.Background(), func(d *state.Document) error {
		u := d.EnsureUser(userID, "user-"+userID, "2026-01-01")
		u.Points = points
		u.Streak = streak
		u.MaxStreak = streak
		u.LastLogDate = "2026-08-29"
		scoring.UpdateSkillLevel(u)
		return nil
	}))
}

func command(userID, content string) api.Message {
	return api.Message{
		ID:        "msg-1",
		ChannelID: "chan-learn",
		Author:    api.User{ID: userID, Username: "user-" + userID},
		Content:   content,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ROUTER
// ══════════════════════════════════════════════════════════════════════════════

func TestDispatchIgnoresNonCommands(t *testing.T) {
	f := newFixture(t)

	handled, err := f.router.Dispatch(context.Background(), command("123", "today I studied transformers"))
	require.NoError(t, err)
	assert.False(t, handled)
	assert.Empty(t, f.client.sent)
}

func TestDispatchUnknownCommand(t *testing.T) {
	f := newFixture(t)

	handled, err := f.router.Dispatch(context.Background(), command("123", "!nosuchthing"))
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Contains(t, f.client.lastSent(t).content, "Unknown command `!nosuchthing`")
}

func TestDispatchAdminGate(t *testing.T) {
	f := newFixture(t)

	handled, err := f.router.Dispatch(context.Background(), command("123", "!admin health"))
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Contains(t, f.client.lastSent(t).content, "admins only")
}

func TestHelpHidesAdminCommands(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.router.Dispatch(ctx, command("123", "!help"))
	require.NoError(t, err)
	help := f.client.lastSent(t).content
	assert.Contains(t, help, "!status")
	assert.NotContains(t, help, "!admin")

	_, err = f.router.Dispatch(ctx, command("900", "!help"))
	require.NoError(t, err)
	assert.Contains(t, f.client.lastSent(t).content, "!admin")
}

// ══════════════════════════════════════════════════════════════════════════════
// USER COMMANDS
// ══════════════════════════════════════════════════════════════════════════════

func TestStatusCommand(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "123", 600, 5)

	handled, err := f.router.Dispatch(context.Background(), command("123", "!status"))
	require.NoError(t, err)
	assert.True(t, handled)

	sent := f.client.lastSent(t)
	require.Len(t, sent.embeds, 1)
	assert.Contains(t, sent.embeds[0].Title, "user-123")
	assert.Contains(t, sent.embeds[0].Title, "Intermediate")
}

func TestStatusCommandWithoutRecord(t *testing.T) {
	f := newFixture(t)

	handled, err := f.router.Dispatch(context.Background(), command("123", "!status"))
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Contains(t, f.client.lastSent(t).content, "No progress recorded yet")
}

func TestStatusCommandUntrackedUser(t *testing.T) {
	f := newFixture(t)

	_, err := f.router.Dispatch(context.Background(), command("555", "!status"))
	require.NoError(t, err)
	assert.Contains(t, f.client.lastSent(t).content, "not on the tracked learners list")
}

func TestPathwayCommand(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "123", 600, 5)

	_, err := f.router.Dispatch(context.Background(), command("123", "!pathway"))
	require.NoError(t, err)

	sent := f.client.lastSent(t)
	require.Len(t, sent.embeds, 1)
	assert.Equal(t, "🗺️ Career Pathway", sent.embeds[0].Title)
}

func TestAskCommand(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "123", 100, 2)
	ctx := context.Background()

	_, err := f.router.Dispatch(ctx, command("123", "!ask how do I improve?"))
	require.NoError(t, err)
	assert.Contains(t, f.client.lastSent(t).content, "Mentor says")

	_, err = f.router.Dispatch(ctx, command("123", "!ask"))
	require.NoError(t, err)
	assert.Contains(t, f.client.lastSent(t).content, "Ask me something")
}

func TestWeeklyCommand(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "123", 100, 2)
	ctx := context.Background()

	// No evaluations cached yet.
	_, err := f.router.Dispatch(ctx, command("123", "!weekly"))
	require.NoError(t, err)
	assert.Contains(t, f.client.lastSent(t).content, "No evaluations this week")

	require.NoError(t, f.store.Mutate(ctx, func(d *state.Document) error {
		d.CacheEvaluation("123", &state.Evaluation{UserID: "123", Date: "2026-08-28"})
		return nil
	}))

	_, err = f.router.Dispatch(ctx, command("123", "!weekly"))
	require.NoError(t, err)
	sent := f.client.lastSent(t)
	require.Len(t, sent.embeds, 1)
	assert.Contains(t, sent.embeds[0].Title, "Weekly Summary")
	assert.Equal(t, "great", sent.embeds[0].Fields[0].Value)
}

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN COMMANDS
// ══════════════════════════════════════════════════════════════════════════════

func TestAdminSetPoints(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "123", 0, 0)

	_, err := f.router.Dispatch(context.Background(), command("900", "!admin set_points 123 600"))
	require.NoError(t, err)
	assert.Contains(t, f.client.lastSent(t).content, "set to 600")

	u, err := f.store.User("123")
	require.NoError(t, err)
	assert.Equal(t, 600, u.Points)
}

func TestAdminResetDayValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.router.Dispatch(context.Background(), command("900", "!admin reset_day 29-08-2026"))
	require.NoError(t, err)
	assert.Contains(t, f.client.lastSent(t).content, "⚠️")
}

func TestAdminHealth(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "123", 50, 1)

	_, err := f.router.Dispatch(context.Background(), command("900", "!admin health"))
	require.NoError(t, err)

	sent := f.client.lastSent(t)
	require.Len(t, sent.embeds, 1)
	assert.Equal(t, "🩺 State Health", sent.embeds[0].Title)
}

func TestAdminUsage(t *testing.T) {
	f := newFixture(t)

	_, err := f.router.Dispatch(context.Background(), command("900", "!admin"))
	require.NoError(t, err)
	assert.Contains(t, f.client.lastSent(t).content, "Admin subcommands")

	_, err = f.router.Dispatch(context.Background(), command("900", "!admin bogus"))
	require.NoError(t, err)
	assert.Contains(t, f.client.lastSent(t).content, "Unknown subcommand")
}
