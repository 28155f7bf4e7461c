package config

// Skill levels, badges and topic domains are fixed tables rather than
// environment settings: changing them would invalidate persisted state.

// SkillLevel describes one rung of the skill ladder.
type SkillLevel struct {
	Level     int
	Name      string
	Emoji     string
	MinPoints int
}

// SkillLevels is ordered by level ascending.
var SkillLevels = []SkillLevel{
	{Level: 0, Name: "Foundation", Emoji: "🌱", MinPoints: 0},
	{Level: 1, Name: "Intermediate", Emoji: "📚", MinPoints: 500},
	{Level: 2, Name: "Advanced", Emoji: "🚀", MinPoints: 2000},
	{Level: 3, Name: "Research Expert", Emoji: "🎓", MinPoints: 5000},
}

// SkillLevelForPoints returns the highest level whose threshold the given
// point total meets.
func SkillLevelForPoints(points int) SkillLevel {
	current := SkillLevels[0]
	for _, lvl := range SkillLevels {
		if points >= lvl.MinPoints {
			current = lvl
		}
	}
	return current
}

// SkillLevelByIndex returns the level with the given index, clamped to the
// table bounds.
func SkillLevelByIndex(level int) SkillLevel {
	if level < 0 {
		return SkillLevels[0]
	}
	if level >= len(SkillLevels) {
		return SkillLevels[len(SkillLevels)-1]
	}
	return SkillLevels[level]
}

// NextSkillLevel returns the level above the given index, or nil at the
// top of the ladder.
func NextSkillLevel(level int) *SkillLevel {
	if level < 0 {
		level = 0
	}
	if level+1 >= len(SkillLevels) {
		return nil
	}
	next := SkillLevels[level+1]
	return &next
}

// Badge describes an earnable badge.
type Badge struct {
	ID          string
	Name        string
	Emoji       string
	Description string
}

// Badge IDs.
const (
	BadgeFirstLog    = "first_log"
	BadgeStreak7     = "streak_7"
	BadgeStreak30    = "streak_30"
	BadgeStreak100   = "streak_100"
	BadgeDepthMaster = "depth_master"
	BadgeAllTopics   = "all_topics"
	BadgeConsistent  = "consistent"
)

// Badges maps badge ID to its definition.
var Badges = map[string]Badge{
	BadgeFirstLog:    {BadgeFirstLog, "First Steps", "👶", "Logged first learning entry"},
	BadgeStreak7:     {BadgeStreak7, "Week Warrior", "🔥", "7-day streak"},
	BadgeStreak30:    {BadgeStreak30, "Month Master", "💎", "30-day streak"},
	BadgeStreak100:   {BadgeStreak100, "Century Scholar", "👑", "100-day streak"},
	BadgeDepthMaster: {BadgeDepthMaster, "Deep Diver", "🧠", "Achieved depth score 9+"},
	BadgeAllTopics:   {BadgeAllTopics, "Renaissance Mind", "🌟", "Covered all 4 domains"},
	BadgeConsistent:  {BadgeConsistent, "Consistency King", "⚡", "10 consecutive high-quality days"},
}

// Topics are the four tracked learning domains.
var Topics = []string{"AI", "ML", "DL", "DS"}
