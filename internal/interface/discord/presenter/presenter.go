// Package presenter renders the bot's Discord embeds: the dashboard,
// status cards, pathway progress and weekly summaries. Pure rendering,
// no I/O except the dashboard refresher.
package presenter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mentor-hub/learning-mentor/config"
	"github.com/mentor-hub/learning-mentor/internal/domain/state"
	"github.com/mentor-hub/learning-mentor/internal/infrastructure/external/discord"
	"github.com/mentor-hub/learning-mentor/internal/infrastructure/external/gemini"
	"github.com/mentor-hub/learning-mentor/pkg/timeutil"
)

// Embed colors.
const (
	ColorPrimary = 0x5865F2 // blurple
	ColorSuccess = 0x57F287
	ColorWarning = 0xFEE75C
	ColorDanger  = 0xED4245
)

const progressBarWidth = 10

// StatusCard renders a user's full progress card.
func StatusCard(u *state.UserRecord) discord.Embed {
	level := config.SkillLevelByIndex(u.SkillLevel)
	progress := config.PathwayProgress(u.Points)

	nextLine := "Top level reached 🎉"
	if next := config.NextSkillLevel(u.SkillLevel); next != nil {
		nextLine = fmt.Sprintf("%s %d / %d to %s %s",
			progressBar(u.Points-level.MinPoints, next.MinPoints-level.MinPoints),
			u.Points, next.MinPoints, next.Emoji, next.Name)
	}

	fields := []discord.EmbedField{
		{Name: "⭐ Points", Value: fmt.Sprintf("%d", u.Points), Inline: true},
		{Name: "🔥 Streak", Value: fmt.Sprintf("%s %d days", timeutil.StreakEmoji(u.Streak), u.Streak), Inline: true},
		{Name: "📝 Logs", Value: fmt.Sprintf("%d", u.TotalLogs), Inline: true},
		{Name: "📈 Next level", Value: nextLine},
		{Name: "🗺️ Pathway", Value: fmt.Sprintf("%s (%.0f%%)", progress.Current.Name, progress.ProgressPercent), Inline: true},
		{Name: "🏅 Badges", Value: fmt.Sprintf("%d", len(u.Badges)), Inline: true},
	}

	if coverage := topicCoverageLine(u.TopicCoverage); coverage != "" {
		fields = append(fields, discord.EmbedField{Name: "📚 Topics", Value: coverage})
	}

	return discord.Embed{
		Title:  fmt.Sprintf("%s %s — %s", level.Emoji, u.Username, level.Name),
		Color:  ColorPrimary,
		Fields: fields,
		Footer: &discord.EmbedFooter{Text: fmt.Sprintf("Active %d days · member since %s", u.DaysActive, u.CreatedAt)},
	}
}

// StreakCard renders the streak detail view.
func StreakCard(u *state.UserRecord, zone *timeutil.Zone) discord.Embed {
	color := ColorSuccess
	switch u.StreakHealth {
	case state.HealthAtRisk:
		color = ColorWarning
	case state.HealthBroken:
		color = ColorDanger
	}

	description := fmt.Sprintf("%s **%d days** (best: %d)",
		timeutil.StreakEmoji(u.Streak), u.Streak, u.MaxStreak)

	fields := []discord.EmbedField{
		{Name: "Last log", Value: orDash(u.LastLogDate), Inline: true},
		{Name: "Health", Value: u.StreakHealth, Inline: true},
	}
	if u.LastLogDate != zone.EffectiveDate() {
		fields = append(fields, discord.EmbedField{
			Name:  "⏰ Deadline",
			Value: timeutil.FormatTimeRemaining(zone.TimeUntilDeadline()) + " left to keep the streak",
		})
	}

	return discord.Embed{
		Title:       "🔥 Streak",
		Description: description,
		Color:       color,
		Fields:      fields,
	}
}

// BadgesCard renders the user's badge collection.
func BadgesCard(u *state.UserRecord) discord.Embed {
	if len(u.Badges) == 0 {
		return discord.Embed{
			Title:       "🏅 Badges",
			Description: "No badges yet. Log something you learned today!",
			Color:       ColorPrimary,
		}
	}

	var lines []string
	for _, id := range u.Badges {
		badge, ok := config.Badges[id]
		if !ok {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s **%s** — %s", badge.Emoji, badge.Name, badge.Description))
	}

	locked := len(config.Badges) - len(u.Badges)
	footer := &discord.EmbedFooter{Text: fmt.Sprintf("%d earned · %d to go", len(u.Badges), locked)}

	return discord.Embed{
		Title:       "🏅 Badges",
		Description: strings.Join(lines, "\n"),
		Color:       ColorPrimary,
		Footer:      footer,
	}
}

// PathwayCard renders career-pathway progress and recommendations.
func PathwayCard(u *state.UserRecord, careerPath string) discord.Embed {
	progress := config.PathwayProgress(u.Points)

	fields := []discord.EmbedField{
		{Name: "📍 Current milestone", Value: fmt.Sprintf("%s (level %d)", progress.Current.Name, progress.Current.Level)},
		{Name: "🎯 Focus areas", Value: strings.Join(progress.FocusAreas, ", ")},
	}

	if progress.Next != nil {
		fields = append(fields, discord.EmbedField{
			Name: "⏭️ Next milestone",
			Value: fmt.Sprintf("%s %s at %d points",
				progressBar(u.Points-progress.Current.MinPoints, progress.Next.MinPoints-progress.Current.MinPoints),
				progress.Next.Name, progress.Next.MinPoints),
		})
	}

	if len(progress.RecommendedProjects) > 0 {
		fields = append(fields, discord.EmbedField{
			Name:  "🛠️ Suggested projects",
			Value: "• " + strings.Join(progress.RecommendedProjects, "\n• "),
		})
	}

	if recs := config.Recommendations(u.SkillLevel, u.TopicCoverage, careerPath); len(recs) > 0 {
		limit := 5
		if len(recs) < limit {
			limit = len(recs)
		}
		fields = append(fields, discord.EmbedField{
			Name:  "💡 Recommendations",
			Value: "• " + strings.Join(recs[:limit], "\n• "),
		})
	}

	return discord.Embed{
		Title:  "🗺️ Career Pathway",
		Color:  ColorPrimary,
		Fields: fields,
	}
}

// WeeklyCard renders a weekly summary.
func WeeklyCard(username string, summary *gemini.WeeklySummary) discord.Embed {
	fields := []discord.EmbedField{
		{Name: "Rating", Value: summary.WeekRating, Inline: true},
		{Name: "Strongest", Value: orDash(summary.StrongestArea), Inline: true},
		{Name: "To improve", Value: orDash(summary.WeakestArea), Inline: true},
		{Name: "Consistency", Value: orDash(summary.ConsistencyTrend), Inline: true},
		{Name: "Depth trend", Value: orDash(summary.DepthTrend), Inline: true},
		{Name: "Concepts learned", Value: fmt.Sprintf("%d", summary.TotalConceptsLearned), Inline: true},
	}

	if len(summary.GoalsForNextWeek) > 0 {
		fields = append(fields, discord.EmbedField{
			Name:  "🎯 Goals for next week",
			Value: "• " + strings.Join(summary.GoalsForNextWeek, "\n• "),
		})
	}

	description := summary.WeeklyFeedback
	if summary.Celebration != "" {
		description += "\n\n🎉 " + summary.Celebration
	}

	return discord.Embed{
		Title:       fmt.Sprintf("📊 Weekly Summary — %s", username),
		Description: description,
		Color:       ColorSuccess,
		Fields:      fields,
	}
}

// HealthCard renders the admin state-health report.
func HealthCard(version, users, flagDates int, oldestFlag, lastUpdated string, totalEvaluations int) discord.Embed {
	return discord.Embed{
		Title: "🩺 State Health",
		Color: ColorPrimary,
		Fields: []discord.EmbedField{
			{Name: "Schema version", Value: fmt.Sprintf("%d", version), Inline: true},
			{Name: "Users", Value: fmt.Sprintf("%d", users), Inline: true},
			{Name: "Evaluations", Value: fmt.Sprintf("%d", totalEvaluations), Inline: true},
			{Name: "Flag dates", Value: fmt.Sprintf("%d", flagDates), Inline: true},
			{Name: "Oldest flag", Value: orDash(oldestFlag), Inline: true},
			{Name: "Last updated", Value: orDash(lastUpdated), Inline: true},
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// progressBar renders a filled/empty bar like ▰▰▰▱▱▱▱▱▱▱.
func progressBar(have, span int) string {
	if span <= 0 {
		return strings.Repeat("▰", progressBarWidth)
	}
	filled := have * progressBarWidth / span
	if filled < 0 {
		filled = 0
	}
	if filled > progressBarWidth {
		filled = progressBarWidth
	}
	return strings.Repeat("▰", filled) + strings.Repeat("▱", progressBarWidth-filled)
}

// topicCoverageLine renders each topic's share of the user's evaluation
// credits, in a fixed topic order. Coverage values are credit counts, so
// they are normalized before the percent rendering.
func topicCoverageLine(coverage map[string]float64) string {
	var total float64
	for _, v := range coverage {
		total += v
	}
	if total == 0 {
		return ""
	}

	parts := make([]string, 0, len(config.Topics))
	for _, topic := range config.Topics {
		parts = append(parts, fmt.Sprintf("%s %.0f%%", topic, coverage[topic]/total*100))
	}
	return strings.Join(parts, " · ")
}

// rankUsers orders users for the dashboard: points descending, then
// username for a stable display.
func rankUsers(users map[string]*state.UserRecord) []*state.UserRecord {
	ranked := make([]*state.UserRecord, 0, len(users))
	for _, u := range users {
		ranked = append(ranked, u)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Points != ranked[j].Points {
			return ranked[i].Points > ranked[j].Points
		}
		return ranked[i].Username < ranked[j].Username
	})
	return ranked
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}
