package scoring

import (
	"github.com/mentor-hub/learning-mentor/config"
	"github.com/mentor-hub/learning-mentor/internal/domain/state"
	"github.com/mentor-hub/learning-mentor/pkg/timeutil"
)

// StreakMilestones are the streak lengths that trigger a celebration
// reaction and, for 7/30/100, a badge.
var StreakMilestones = []int{7, 14, 30, 50, 100}

// IsStreakMilestone reports whether a streak length is a milestone.
func IsStreakMilestone(streak int) bool {
	for _, m := range StreakMilestones {
		if streak == m {
			return true
		}
	}
	return false
}

// StreakUpdate describes the outcome of applying a log date to a streak.
type StreakUpdate struct {
	Streak    int
	MaxStreak int
	Health    string
	Extended  bool
	Broken    bool
	Previous  int
}

// UpdateStreak applies a log on logDate to the user's streak. Same-day
// logs leave the streak unchanged; a log on the day after the last log
// (or when the last log was yesterday relative to the zone) extends it;
// anything else resets to one.
func UpdateStreak(u *state.UserRecord, logDate string, zone *timeutil.Zone) StreakUpdate {
	prev := u.Streak

	switch {
	case u.LastLogDate == "":
		u.Streak = 1
		u.StreakHealth = state.HealthSafe

	case u.LastLogDate == logDate:
		u.StreakHealth = state.HealthSafe

	case timeutil.IsConsecutiveDay(u.LastLogDate, logDate) || u.LastLogDate == zone.Yesterday():
		u.Streak++
		u.StreakHealth = state.HealthSafe

	default:
		u.Streak = 1
		u.StreakHealth = state.HealthBroken
	}

	if u.Streak > u.MaxStreak {
		u.MaxStreak = u.Streak
	}
	u.LastLogDate = logDate

	return StreakUpdate{
		Streak:    u.Streak,
		MaxStreak: u.MaxStreak,
		Health:    u.StreakHealth,
		Extended:  u.Streak > prev,
		Broken:    u.StreakHealth == state.HealthBroken && prev > 1,
		Previous:  prev,
	}
}

// MessagePoints computes points for a single tracked message: base points
// plus a depth bonus when the local depth score is high.
func MessagePoints(depthScore, basePoints, depthBonus int) int {
	points := basePoints
	if depthScore >= 3 {
		points += depthBonus
	}
	return points
}

// EvaluationPoints computes the nightly evaluation award. Base points per
// qualified log, a depth bonus per log when combined depth is strong, all
// scaled by the repetition penalty.
func EvaluationPoints(qualified int, combinedDepth float64, penalty float64, basePoints, depthBonus int) int {
	base := basePoints * qualified
	bonus := 0
	if combinedDepth >= 7 {
		bonus = depthBonus * qualified
	}
	return int(float64(base+bonus) * penalty)
}

// UpdateSkillLevel recalculates the user's skill level from their point
// total. Returns the old and new levels and whether it changed.
func UpdateSkillLevel(u *state.UserRecord) (oldLevel, newLevel int, changed bool) {
	oldLevel = u.SkillLevel
	newLevel = config.SkillLevelForPoints(u.Points).Level
	if newLevel != oldLevel {
		u.SkillLevel = newLevel
		return oldLevel, newLevel, true
	}
	return oldLevel, oldLevel, false
}

// AddConcepts merges concepts into the user's frequency map.
func AddConcepts(u *state.UserRecord, concepts []string) {
	if u.ConceptFrequency == nil {
		u.ConceptFrequency = make(map[string]int)
	}
	for _, c := range concepts {
		u.ConceptFrequency[c]++
	}
}

// AddTopicCoverage credits the primary topic of an evaluation. A Mixed
// classification spreads a quarter point across every topic.
func AddTopicCoverage(u *state.UserRecord, primaryTopic string) {
	if u.TopicCoverage == nil {
		u.TopicCoverage = make(map[string]float64)
	}
	if primaryTopic == TopicMixed {
		for _, t := range config.Topics {
			u.TopicCoverage[t] += 0.25
		}
		return
	}
	u.TopicCoverage[primaryTopic]++
}

// hasBadge reports whether the user already holds a badge.
func hasBadge(u *state.UserRecord, id string) bool {
	for _, b := range u.Badges {
		if b == id {
			return true
		}
	}
	return false
}

// AwardBadge grants a badge if not already held. Returns true when newly
// awarded.
func AwardBadge(u *state.UserRecord, id string) bool {
	if _, known := config.Badges[id]; !known {
		return false
	}
	if hasBadge(u, id) {
		return false
	}
	u.Badges = append(u.Badges, id)
	return true
}

// CheckBadges evaluates all badge conditions after an evaluation and
// returns any newly earned badge IDs. combinedDepth is the blended depth
// score for the evaluated day.
func CheckBadges(u *state.UserRecord, combinedDepth float64) []string {
	var earned []string

	award := func(id string, condition bool) {
		if condition && !hasBadge(u, id) {
			u.Badges = append(u.Badges, id)
			earned = append(earned, id)
		}
	}

	award(config.BadgeFirstLog, u.TotalLogs >= 1)
	award(config.BadgeStreak7, u.Streak >= 7)
	award(config.BadgeStreak30, u.Streak >= 30)
	award(config.BadgeStreak100, u.Streak >= 100)
	award(config.BadgeDepthMaster, combinedDepth >= 9)

	allCovered := len(config.Topics) > 0
	for _, t := range config.Topics {
		if u.TopicCoverage[t] < 1 {
			allCovered = false
			break
		}
	}
	award(config.BadgeAllTopics, allCovered)

	return earned
}

// RecordActivity updates days_active and total_logs for a log on today's
// wall-clock date. Must run before UpdateStreak, which overwrites
// last_log_date.
func RecordActivity(u *state.UserRecord, today string) {
	if u.LastLogDate != today {
		u.DaysActive++
	}
	u.TotalLogs++
}
