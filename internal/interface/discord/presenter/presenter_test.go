package presenter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mentor-hub/learning-mentor/config"
	"github.com/mentor-hub/learning-mentor/internal/domain/state"
	"github.com/mentor-hub/learning-mentor/internal/infrastructure/external/gemini"
)

func sampleUser() *state.UserRecord {
	u := state.NewUserRecord("123", "alice", "2026-01-01")
	u.Points = 620
	u.SkillLevel = 1
	u.Streak = 9
	u.MaxStreak = 12
	u.TotalLogs = 40
	u.DaysActive = 35
	u.StreakHealth = state.HealthSafe
	u.Badges = []string{config.BadgeFirstLog, config.BadgeStreak7}
	u.TopicCoverage = map[string]float64{"AI": 0.5, "ML": 0.25, "DL": 0.1, "DS": 0}
	return u
}

func TestStatusCard(t *testing.T) {
	embed := StatusCard(sampleUser())

	assert.Contains(t, embed.Title, "alice")
	assert.Contains(t, embed.Title, "Intermediate")
	assert.Equal(t, "620", embed.Fields[0].Value)
	assert.Contains(t, embed.Fields[3].Value, "2000", "progress toward Advanced")
	assert.Contains(t, embed.Footer.Text, "member since 2026-01-01")
}

func TestStatusCardTopLevel(t *testing.T) {
	u := sampleUser()
	u.Points = 9000
	u.SkillLevel = 3

	embed := StatusCard(u)
	assert.Contains(t, embed.Fields[3].Value, "Top level reached")
}

func TestBadgesCard(t *testing.T) {
	embed := BadgesCard(sampleUser())
	assert.Contains(t, embed.Description, "First Steps")
	assert.Contains(t, embed.Description, "Week Warrior")
	assert.Contains(t, embed.Footer.Text, "2 earned")

	empty := BadgesCard(state.NewUserRecord("1", "bob", ""))
	assert.Contains(t, empty.Description, "No badges yet")
}

func TestPathwayCard(t *testing.T) {
	embed := PathwayCard(sampleUser(), config.PathMLEngineer)

	assert.Equal(t, "🗺️ Career Pathway", embed.Title)
	assert.Contains(t, embed.Fields[0].Value, config.MilestoneForPoints(620).Name)
}

func TestWeeklyCard(t *testing.T) {
	embed := WeeklyCard("alice", &gemini.WeeklySummary{
		WeekRating:           "great",
		TotalConceptsLearned: 11,
		StrongestArea:        "DL",
		WeeklyFeedback:       "Solid depth all week.",
		Celebration:          "New badge earned!",
		GoalsForNextWeek:     []string{"Finish the CNN project"},
	})

	assert.Contains(t, embed.Title, "alice")
	assert.Contains(t, embed.Description, "Solid depth all week.")
	assert.Contains(t, embed.Description, "New badge earned!")
	assert.Equal(t, "great", embed.Fields[0].Value)
	assert.Contains(t, embed.Fields[6].Value, "CNN project")
}

func TestTopicCoverageLine(t *testing.T) {
	// Values are credit counts; the line shows each topic's share, never
	// a raw count dressed up as a percentage.
	line := topicCoverageLine(map[string]float64{"AI": 3, "ML": 1, "DL": 0, "DS": 0})
	assert.Equal(t, "AI 75% · ML 25% · DL 0% · DS 0%", line)

	assert.Empty(t, topicCoverageLine(map[string]float64{"AI": 0, "ML": 0, "DL": 0, "DS": 0}))
	assert.Empty(t, topicCoverageLine(nil))
}

func TestProgressBar(t *testing.T) {
	assert.Equal(t, "▰▰▰▰▰▱▱▱▱▱", progressBar(5, 10))
	assert.Equal(t, "▱▱▱▱▱▱▱▱▱▱", progressBar(0, 10))
	assert.Equal(t, "▰▰▰▰▰▰▰▰▰▰", progressBar(15, 10), "clamped at full")
	assert.Equal(t, "▰▰▰▰▰▰▰▰▰▰", progressBar(3, 0), "no span means done")
}

func TestRankUsers(t *testing.T) {
	a := state.NewUserRecord("1", "alice", "")
	a.Points = 100
	b := state.NewUserRecord("2", "bob", "")
	b.Points = 300
	c := state.NewUserRecord("3", "carol", "")
	c.Points = 100

	ranked := rankUsers(map[string]*state.UserRecord{"1": a, "2": b, "3": c})
	assert.Equal(t, []string{"bob", "alice", "carol"}, []string{
		ranked[0].Username, ranked[1].Username, ranked[2].Username,
	})
}
