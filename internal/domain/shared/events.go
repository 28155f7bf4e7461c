// Package shared contains common domain types, errors and events
// that are used across all domain packages.
package shared

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Each event represents something significant that
// happened while tracking a student's learning.
const (
	// Progress events
	EventPointsAwarded  EventType = "progress.points_awarded"
	EventLevelUp        EventType = "progress.level_up"
	EventBadgeUnlocked  EventType = "progress.badge_unlocked"
	EventStreakExtended EventType = "progress.streak_extended"
	EventStreakBroken   EventType = "progress.streak_broken"
	EventStreakAtRisk   EventType = "progress.streak_at_risk"

	// Evaluation events
	EventEvaluationCompleted EventType = "evaluation.completed"
	EventWeeklySummaryReady  EventType = "evaluation.weekly_summary_ready"

	// State events
	EventStateMigrated EventType = "state.migrated"
	EventStatePruned   EventType = "state.pruned"
	EventBackupCreated EventType = "state.backup_created"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	ID            string    `json:"id"`
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventID returns the unique identifier of the event.
func (e BaseEvent) EventID() string {
	return e.ID
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		ID:          uuid.NewString(),
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress Events
// ═══════════════════════════════════════════════════════════════════════════

// PointsAwardedEvent is emitted when a learning log earns points.
type PointsAwardedEvent struct {
	BaseEvent
	UserID     string `json:"user_id"`
	Username   string `json:"username"`
	Amount     int    `json:"amount"`
	NewTotal   int    `json:"new_total"`
	DepthScore int    `json:"depth_score"`
}

// Payload implements Event interface.
func (e PointsAwardedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":     e.UserID,
		"username":    e.Username,
		"amount":      e.Amount,
		"new_total":   e.NewTotal,
		"depth_score": e.DepthScore,
	}
}

// NewPointsAwardedEvent creates a new PointsAwardedEvent.
func NewPointsAwardedEvent(userID, username string, amount, newTotal, depthScore int) PointsAwardedEvent {
	return PointsAwardedEvent{
		BaseEvent:  NewBaseEvent(EventPointsAwarded, userID),
		UserID:     userID,
		Username:   username,
		Amount:     amount,
		NewTotal:   newTotal,
		DepthScore: depthScore,
	}
}

// LevelUpEvent is emitted when a student reaches a new skill level.
type LevelUpEvent struct {
	BaseEvent
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	OldLevel  int    `json:"old_level"`
	NewLevel  int    `json:"new_level"`
	LevelName string `json:"level_name"`
	Points    int    `json:"points"`
}

// Payload implements Event interface.
func (e LevelUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":    e.UserID,
		"username":   e.Username,
		"old_level":  e.OldLevel,
		"new_level":  e.NewLevel,
		"level_name": e.LevelName,
		"points":     e.Points,
	}
}

// NewLevelUpEvent creates a new LevelUpEvent.
func NewLevelUpEvent(userID, username string, oldLevel, newLevel int, levelName string, points int) LevelUpEvent {
	return LevelUpEvent{
		BaseEvent: NewBaseEvent(EventLevelUp, userID),
		UserID:    userID,
		Username:  username,
		OldLevel:  oldLevel,
		NewLevel:  newLevel,
		LevelName: levelName,
		Points:    points,
	}
}

// BadgeUnlockedEvent is emitted when a student earns a badge.
type BadgeUnlockedEvent struct {
	BaseEvent
	UserID     string `json:"user_id"`
	Username   string `json:"username"`
	BadgeID    string `json:"badge_id"`
	BadgeName  string `json:"badge_name"`
	BadgeEmoji string `json:"badge_emoji"`
}

// Payload implements Event interface.
func (e BadgeUnlockedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":     e.UserID,
		"username":    e.Username,
		"badge_id":    e.BadgeID,
		"badge_name":  e.BadgeName,
		"badge_emoji": e.BadgeEmoji,
	}
}

// NewBadgeUnlockedEvent creates a new BadgeUnlockedEvent.
func NewBadgeUnlockedEvent(userID, username, badgeID, badgeName, badgeEmoji string) BadgeUnlockedEvent {
	return BadgeUnlockedEvent{
		BaseEvent:  NewBaseEvent(EventBadgeUnlocked, userID),
		UserID:     userID,
		Username:   username,
		BadgeID:    badgeID,
		BadgeName:  badgeName,
		BadgeEmoji: badgeEmoji,
	}
}

// StreakExtendedEvent is emitted when a streak grows.
type StreakExtendedEvent struct {
	BaseEvent
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	Streak    int    `json:"streak"`
	Milestone bool   `json:"milestone"` // 7, 30 or 100 days
}

// Payload implements Event interface.
func (e StreakExtendedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"username":  e.Username,
		"streak":    e.Streak,
		"milestone": e.Milestone,
	}
}

// NewStreakExtendedEvent creates a new StreakExtendedEvent.
func NewStreakExtendedEvent(userID, username string, streak int) StreakExtendedEvent {
	milestone := streak == 7 || streak == 30 || streak == 100
	return StreakExtendedEvent{
		BaseEvent: NewBaseEvent(EventStreakExtended, userID),
		UserID:    userID,
		Username:  username,
		Streak:    streak,
		Milestone: milestone,
	}
}

// StreakBrokenEvent is emitted when a streak resets.
type StreakBrokenEvent struct {
	BaseEvent
	UserID         string `json:"user_id"`
	Username       string `json:"username"`
	PreviousStreak int    `json:"previous_streak"`
	DaysMissed     int    `json:"days_missed"`
}

// Payload implements Event interface.
func (e StreakBrokenEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":         e.UserID,
		"username":        e.Username,
		"previous_streak": e.PreviousStreak,
		"days_missed":     e.DaysMissed,
	}
}

// NewStreakBrokenEvent creates a new StreakBrokenEvent.
func NewStreakBrokenEvent(userID, username string, previousStreak, daysMissed int) StreakBrokenEvent {
	return StreakBrokenEvent{
		BaseEvent:      NewBaseEvent(EventStreakBroken, userID),
		UserID:         userID,
		Username:       username,
		PreviousStreak: previousStreak,
		DaysMissed:     daysMissed,
	}
}

// StreakAtRiskEvent is emitted when a user has not logged today and the
// deadline approaches.
type StreakAtRiskEvent struct {
	BaseEvent
	UserID        string        `json:"user_id"`
	Username      string        `json:"username"`
	Streak        int           `json:"streak"`
	TimeRemaining time.Duration `json:"time_remaining"`
}

// Payload implements Event interface.
func (e StreakAtRiskEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":        e.UserID,
		"username":       e.Username,
		"streak":         e.Streak,
		"time_remaining": e.TimeRemaining.String(),
	}
}

// NewStreakAtRiskEvent creates a new StreakAtRiskEvent.
func NewStreakAtRiskEvent(userID, username string, streak int, remaining time.Duration) StreakAtRiskEvent {
	return StreakAtRiskEvent{
		BaseEvent:     NewBaseEvent(EventStreakAtRisk, userID),
		UserID:        userID,
		Username:      username,
		Streak:        streak,
		TimeRemaining: remaining,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Evaluation Events
// ═══════════════════════════════════════════════════════════════════════════

// EvaluationCompletedEvent is emitted after a nightly evaluation finishes.
type EvaluationCompletedEvent struct {
	BaseEvent
	UserID       string `json:"user_id"`
	Username     string `json:"username"`
	Date         string `json:"date"`
	DepthScore   int    `json:"depth_score"`
	PointsEarned int    `json:"points_earned"`
	UsedAI       bool   `json:"used_ai"`
}

// Payload implements Event interface.
func (e EvaluationCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":       e.UserID,
		"username":      e.Username,
		"date":          e.Date,
		"depth_score":   e.DepthScore,
		"points_earned": e.PointsEarned,
		"used_ai":       e.UsedAI,
	}
}

// NewEvaluationCompletedEvent creates a new EvaluationCompletedEvent.
func NewEvaluationCompletedEvent(userID, username, date string, depthScore, pointsEarned int, usedAI bool) EvaluationCompletedEvent {
	return EvaluationCompletedEvent{
		BaseEvent:    NewBaseEvent(EventEvaluationCompleted, userID),
		UserID:       userID,
		Username:     username,
		Date:         date,
		DepthScore:   depthScore,
		PointsEarned: pointsEarned,
		UsedAI:       usedAI,
	}
}

// WeeklySummaryReadyEvent is emitted when a weekly summary has been
// generated for a user.
type WeeklySummaryReadyEvent struct {
	BaseEvent
	UserID     string `json:"user_id"`
	Username   string `json:"username"`
	WeekRating string `json:"week_rating"`
	UsedAI     bool   `json:"used_ai"`
}

// Payload implements Event interface.
func (e WeeklySummaryReadyEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":     e.UserID,
		"username":    e.Username,
		"week_rating": e.WeekRating,
		"used_ai":     e.UsedAI,
	}
}

// NewWeeklySummaryReadyEvent creates a new WeeklySummaryReadyEvent.
func NewWeeklySummaryReadyEvent(userID, username, weekRating string, usedAI bool) WeeklySummaryReadyEvent {
	return WeeklySummaryReadyEvent{
		BaseEvent:  NewBaseEvent(EventWeeklySummaryReady, userID),
		UserID:     userID,
		Username:   username,
		WeekRating: weekRating,
		UsedAI:     usedAI,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// State Events
// ═══════════════════════════════════════════════════════════════════════════

// StateMigratedEvent is emitted when the state document is migrated.
type StateMigratedEvent struct {
	BaseEvent
	FromVersion int `json:"from_version"`
	ToVersion   int `json:"to_version"`
}

// Payload implements Event interface.
func (e StateMigratedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"from_version": e.FromVersion,
		"to_version":   e.ToVersion,
	}
}

// NewStateMigratedEvent creates a new StateMigratedEvent.
func NewStateMigratedEvent(fromVersion, toVersion int) StateMigratedEvent {
	return StateMigratedEvent{
		BaseEvent:   NewBaseEvent(EventStateMigrated, "state"),
		FromVersion: fromVersion,
		ToVersion:   toVersion,
	}
}

// StatePrunedEvent is emitted when old data is pruned to fit the size limit.
type StatePrunedEvent struct {
	BaseEvent
	FlagDatesDropped    int `json:"flag_dates_dropped"`
	CacheEntriesDropped int `json:"cache_entries_dropped"`
}

// Payload implements Event interface.
func (e StatePrunedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"flag_dates_dropped":    e.FlagDatesDropped,
		"cache_entries_dropped": e.CacheEntriesDropped,
	}
}

// NewStatePrunedEvent creates a new StatePrunedEvent.
func NewStatePrunedEvent(flagDates, cacheEntries int) StatePrunedEvent {
	return StatePrunedEvent{
		BaseEvent:           NewBaseEvent(EventStatePruned, "state"),
		FlagDatesDropped:    flagDates,
		CacheEntriesDropped: cacheEntries,
	}
}

// BackupCreatedEvent is emitted when a state snapshot is written.
type BackupCreatedEvent struct {
	BaseEvent
	SnapshotID string `json:"snapshot_id"`
	Reason     string `json:"reason"`
}

// Payload implements Event interface.
func (e BackupCreatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"snapshot_id": e.SnapshotID,
		"reason":      e.Reason,
	}
}

// NewBackupCreatedEvent creates a new BackupCreatedEvent.
func NewBackupCreatedEvent(snapshotID, reason string) BackupCreatedEvent {
	return BackupCreatedEvent{
		BaseEvent:  NewBaseEvent(EventBackupCreated, "state"),
		SnapshotID: snapshotID,
		Reason:     reason,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
