// Package state defines the persisted state document: the single JSON
// aggregate holding every tracked user's progress, the daily idempotency
// flags and the evaluation cache. The document is what gets compressed
// into the pinned Discord message, so every field here is part of the
// storage format.
package state

import (
	"fmt"
	"sort"
)

// CurrentVersion is the schema version written by this build.
// Version 2 added concept_frequency, streak_health, evaluation_count and
// the top-level evaluation_cache.
const CurrentVersion = 2

// Streak health values.
const (
	HealthSafe   = "safe"
	HealthAtRisk = "at-risk"
	HealthBroken = "broken"
)

// Daily flag names. Flags key on the wall-clock date and make scheduled
// jobs idempotent: a job that finds its flag set skips the user.
const (
	FlagEvaluated     = "evaluated"
	FlagThreadCreated = "thread_created"
	FlagReminderSent  = "reminder_sent"
)

// EvaluationCacheLimit caps cached evaluations per user.
const EvaluationCacheLimit = 7

// Document is the root state aggregate.
type Document struct {
	Version         int                                   `json:"state_version"`
	LastUpdated     string                                `json:"last_updated,omitempty"`
	BotMetadata     Metadata                              `json:"bot_metadata"`
	Users           map[string]*UserRecord                `json:"users"`
	DailyFlags      map[string]map[string]map[string]bool `json:"daily_flags"`
	EvaluationCache map[string]map[string]*Evaluation     `json:"evaluation_cache"`
}

// Metadata holds bot-level bookkeeping.
type Metadata struct {
	Version          string `json:"version"`
	StartedAt        string `json:"started_at,omitempty"`
	TotalEvaluations int    `json:"total_evaluations"`
}

// UserRecord holds one tracked user's complete progress.
type UserRecord struct {
	UserID           string             `json:"user_id"`
	Username         string             `json:"username"`
	Points           int                `json:"points"`
	Streak           int                `json:"streak"`
	MaxStreak        int                `json:"max_streak"`
	LastLogDate      string             `json:"last_log_date,omitempty"`
	StreakHealth     string             `json:"streak_health"`
	SkillLevel       int                `json:"skill_level"`
	DaysActive       int                `json:"days_active"`
	TotalLogs        int                `json:"total_logs"`
	Badges           []string           `json:"badges,omitempty"`
	ConceptFrequency map[string]int     `json:"concept_frequency,omitempty"`
	TopicCoverage    map[string]float64 `json:"topic_coverage"`
	WeeklyScores     []WeeklyScore      `json:"weekly_scores,omitempty"`
	LastEvaluation   *Evaluation        `json:"last_evaluation,omitempty"`
	EvaluationCount  int                `json:"evaluation_count"`
	CreatedAt        string             `json:"created_at,omitempty"`
	DailyThreadID    string             `json:"daily_thread_id,omitempty"`
}

// WeeklyScore is one day's aggregate kept for trend display.
type WeeklyScore struct {
	Date     string  `json:"date"`
	AvgDepth float64 `json:"avg_depth"`
	Points   int     `json:"points"`
}

// Evaluation is a cached daily evaluation result.
type Evaluation struct {
	UserID            string         `json:"user_id"`
	Date              string         `json:"date"`
	Analysis          Analysis       `json:"analysis"`
	MentorFeedback    MentorFeedback `json:"mentor_feedback"`
	PointsEarned      int            `json:"points_earned"`
	NewConcepts       []string       `json:"new_concepts,omitempty"`
	RepeatedConcepts  []string       `json:"repeated_concepts,omitempty"`
	RepetitionPenalty float64        `json:"repetition_penalty"`
	Timestamp         string         `json:"timestamp"`
}

// Analysis is the analyzer output (AI or fallback).
type Analysis struct {
	PrimaryFocus        string   `json:"primary_focus"`
	ConceptsDetected    []string `json:"concepts_detected,omitempty"`
	NewConcepts         []string `json:"new_concepts,omitempty"`
	RepeatedConcepts    []string `json:"repeated_concepts,omitempty"`
	DepthScore          float64  `json:"depth_score"`
	TechnicalIndicators []string `json:"technical_indicators,omitempty"`
	Confidence          float64  `json:"confidence"`
}

// MentorFeedback is the mentor output (AI or fallback).
type MentorFeedback struct {
	ConsistencyScore       int      `json:"consistency_score"`
	MasteryProgressPercent int      `json:"mastery_progress_percent"`
	MentorFeedback         string   `json:"mentor_feedback"`
	NextDayFocus           string   `json:"next_day_focus,omitempty"`
	StreakHealth           string   `json:"streak_health"`
	MotivationalNote       string   `json:"motivational_note,omitempty"`
	AreasForImprovement    []string `json:"areas_for_improvement,omitempty"`
	Confidence             float64  `json:"confidence"`
}

// CombinedDepth blends the AI depth score with the local heuristic score
// (0-5, scaled to 0-10). High-confidence AI results are used as-is.
func (e *Evaluation) CombinedDepth(localDepth float64) float64 {
	if e.Analysis.Confidence >= 0.7 {
		return e.Analysis.DepthScore
	}
	return e.Analysis.DepthScore*e.Analysis.Confidence + localDepth*2*(1-e.Analysis.Confidence)
}

// NewDocument creates an empty document at the current schema version.
func NewDocument(botVersion string) *Document {
	return &Document{
		Version: CurrentVersion,
		BotMetadata: Metadata{
			Version: botVersion,
		},
		Users:           make(map[string]*UserRecord),
		DailyFlags:      make(map[string]map[string]map[string]bool),
		EvaluationCache: make(map[string]map[string]*Evaluation),
	}
}

// NewUserRecord creates a fresh user record with zeroed progress.
func NewUserRecord(userID, username, createdAt string) *UserRecord {
	return &UserRecord{
		UserID:           userID,
		Username:         username,
		StreakHealth:     HealthSafe,
		ConceptFrequency: make(map[string]int),
		TopicCoverage:    map[string]float64{"AI": 0, "ML": 0, "DL": 0, "DS": 0},
		CreatedAt:        createdAt,
	}
}

// GetUser returns the record for userID, or nil.
func (d *Document) GetUser(userID string) *UserRecord {
	if d.Users == nil {
		return nil
	}
	return d.Users[userID]
}

// EnsureUser returns the record for userID, creating it if missing.
func (d *Document) EnsureUser(userID, username, createdAt string) *UserRecord {
	if d.Users == nil {
		d.Users = make(map[string]*UserRecord)
	}
	if u, ok := d.Users[userID]; ok {
		return u
	}
	u := NewUserRecord(userID, username, createdAt)
	d.Users[userID] = u
	return u
}

// SetDailyFlag sets a flag for a user on a date.
func (d *Document) SetDailyFlag(date, userID, flag string) {
	if d.DailyFlags == nil {
		d.DailyFlags = make(map[string]map[string]map[string]bool)
	}
	if d.DailyFlags[date] == nil {
		d.DailyFlags[date] = make(map[string]map[string]bool)
	}
	if d.DailyFlags[date][userID] == nil {
		d.DailyFlags[date][userID] = make(map[string]bool)
	}
	d.DailyFlags[date][userID][flag] = true
}

// GetDailyFlag reports whether a flag is set for a user on a date.
func (d *Document) GetDailyFlag(date, userID, flag string) bool {
	return d.DailyFlags[date] != nil &&
		d.DailyFlags[date][userID] != nil &&
		d.DailyFlags[date][userID][flag]
}

// CacheEvaluation stores an evaluation for a user, evicting the oldest
// entry when the per-user cache is full. The user's last_evaluation is
// updated as well.
func (d *Document) CacheEvaluation(userID string, eval *Evaluation) {
	if d.EvaluationCache == nil {
		d.EvaluationCache = make(map[string]map[string]*Evaluation)
	}
	if d.EvaluationCache[userID] == nil {
		d.EvaluationCache[userID] = make(map[string]*Evaluation)
	}

	cache := d.EvaluationCache[userID]
	for len(cache) >= EvaluationCacheLimit {
		oldest := ""
		for date := range cache {
			if oldest == "" || date < oldest {
				oldest = date
			}
		}
		delete(cache, oldest)
	}
	cache[eval.Date] = eval

	if u := d.GetUser(userID); u != nil {
		u.LastEvaluation = eval
	}
}

// CachedEvaluations returns a user's cached evaluations for the given
// dates, ordered oldest first.
func (d *Document) CachedEvaluations(userID string, dates []string) []*Evaluation {
	cache := d.EvaluationCache[userID]
	if cache == nil {
		return nil
	}

	found := make([]*Evaluation, 0, len(dates))
	sorted := append([]string(nil), dates...)
	sort.Strings(sorted)
	for _, date := range sorted {
		if eval, ok := cache[date]; ok {
			found = append(found, eval)
		}
	}
	return found
}

// PruneFlags removes daily flag entries for dates not in keep.
// Returns the number of dates dropped.
func (d *Document) PruneFlags(keep map[string]bool) int {
	dropped := 0
	for date := range d.DailyFlags {
		if !keep[date] {
			delete(d.DailyFlags, date)
			dropped++
		}
	}
	return dropped
}

// OldestFlagDate returns the oldest daily-flag date, or "".
func (d *Document) OldestFlagDate() string {
	oldest := ""
	for date := range d.DailyFlags {
		if oldest == "" || date < oldest {
			oldest = date
		}
	}
	return oldest
}

// OldestCacheEntry returns the user and date of the oldest cached
// evaluation, or empty strings when the cache is empty.
func (d *Document) OldestCacheEntry() (userID, date string) {
	for uid, cache := range d.EvaluationCache {
		for dt := range cache {
			if date == "" || dt < date {
				userID, date = uid, dt
			}
		}
	}
	return userID, date
}

// Validate enforces the document invariants. Called before every persist.
func (d *Document) Validate() error {
	if d.Version < 1 || d.Version > CurrentVersion {
		return fmt.Errorf("state_version %d out of range [1, %d]", d.Version, CurrentVersion)
	}
	for id, u := range d.Users {
		if u == nil {
			return fmt.Errorf("user %s: nil record", id)
		}
		if u.UserID != "" && u.UserID != id {
			return fmt.Errorf("user %s: user_id field mismatch (%s)", id, u.UserID)
		}
		if u.Points < 0 {
			return fmt.Errorf("user %s: negative points", id)
		}
		if u.Streak < 0 || u.MaxStreak < 0 {
			return fmt.Errorf("user %s: negative streak", id)
		}
		if u.Streak > u.MaxStreak {
			return fmt.Errorf("user %s: streak %d exceeds max_streak %d", id, u.Streak, u.MaxStreak)
		}
		if u.DaysActive < 0 || u.TotalLogs < 0 || u.EvaluationCount < 0 {
			return fmt.Errorf("user %s: negative counter", id)
		}
		if u.SkillLevel < 0 || u.SkillLevel > 3 {
			return fmt.Errorf("user %s: skill_level %d out of range", id, u.SkillLevel)
		}
		switch u.StreakHealth {
		case HealthSafe, HealthAtRisk, HealthBroken:
		default:
			return fmt.Errorf("user %s: unknown streak_health %q", id, u.StreakHealth)
		}
	}
	if d.BotMetadata.TotalEvaluations < 0 {
		return fmt.Errorf("bot_metadata: negative total_evaluations")
	}
	return nil
}

// Clone returns a deep copy of the document. Readers get clones so the
// store's single-writer discipline cannot be bypassed through shared maps.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := &Document{
		Version:     d.Version,
		LastUpdated: d.LastUpdated,
		BotMetadata: d.BotMetadata,
	}

	if d.Users != nil {
		out.Users = make(map[string]*UserRecord, len(d.Users))
		for id, u := range d.Users {
			out.Users[id] = u.Clone()
		}
	}
	if d.DailyFlags != nil {
		out.DailyFlags = make(map[string]map[string]map[string]bool, len(d.DailyFlags))
		for date, users := range d.DailyFlags {
			cu := make(map[string]map[string]bool, len(users))
			for uid, flags := range users {
				cf := make(map[string]bool, len(flags))
				for f, v := range flags {
					cf[f] = v
				}
				cu[uid] = cf
			}
			out.DailyFlags[date] = cu
		}
	}
	if d.EvaluationCache != nil {
		out.EvaluationCache = make(map[string]map[string]*Evaluation, len(d.EvaluationCache))
		for uid, cache := range d.EvaluationCache {
			cc := make(map[string]*Evaluation, len(cache))
			for date, eval := range cache {
				cc[date] = eval.Clone()
			}
			out.EvaluationCache[uid] = cc
		}
	}
	return out
}

// Clone returns a deep copy of the user record.
func (u *UserRecord) Clone() *UserRecord {
	if u == nil {
		return nil
	}
	out := *u
	out.Badges = append([]string(nil), u.Badges...)
	if u.ConceptFrequency != nil {
		out.ConceptFrequency = make(map[string]int, len(u.ConceptFrequency))
		for k, v := range u.ConceptFrequency {
			out.ConceptFrequency[k] = v
		}
	}
	if u.TopicCoverage != nil {
		out.TopicCoverage = make(map[string]float64, len(u.TopicCoverage))
		for k, v := range u.TopicCoverage {
			out.TopicCoverage[k] = v
		}
	}
	out.WeeklyScores = append([]WeeklyScore(nil), u.WeeklyScores...)
	out.LastEvaluation = u.LastEvaluation.Clone()
	return &out
}

// Clone returns a deep copy of the evaluation.
func (e *Evaluation) Clone() *Evaluation {
	if e == nil {
		return nil
	}
	out := *e
	out.NewConcepts = append([]string(nil), e.NewConcepts...)
	out.RepeatedConcepts = append([]string(nil), e.RepeatedConcepts...)
	out.Analysis.ConceptsDetected = append([]string(nil), e.Analysis.ConceptsDetected...)
	out.Analysis.NewConcepts = append([]string(nil), e.Analysis.NewConcepts...)
	out.Analysis.RepeatedConcepts = append([]string(nil), e.Analysis.RepeatedConcepts...)
	out.Analysis.TechnicalIndicators = append([]string(nil), e.Analysis.TechnicalIndicators...)
	out.MentorFeedback.AreasForImprovement = append([]string(nil), e.MentorFeedback.AreasForImprovement...)
	return &out
}
