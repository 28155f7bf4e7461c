// Package admin implements the operator commands: state recalculation
// from raw channel history, manual point/streak/badge adjustments, day
// resets, backups, forced evaluations and state health reporting.
package admin

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mentor-hub/learning-mentor/config"
	"github.com/mentor-hub/learning-mentor/internal/domain/scoring"
	"github.com/mentor-hub/learning-mentor/internal/domain/shared"
	"github.com/mentor-hub/learning-mentor/internal/domain/state"
	"github.com/mentor-hub/learning-mentor/internal/infrastructure/external/discord"
	"github.com/mentor-hub/learning-mentor/internal/store"
	"github.com/mentor-hub/learning-mentor/pkg/logger"
	"github.com/mentor-hub/learning-mentor/pkg/timeutil"
)

// recalcMessageLimit caps how much channel history a recalculation reads.
const recalcMessageLimit = 1000

// pageSize is the Discord API maximum per GetMessages call.
const pageSize = 100

// transport is the slice of the Discord client the admin service needs.
type transport interface {
	GetMessages(ctx context.Context, channelID string, opts discord.ListMessagesOptions) ([]discord.Message, error)
}

// evaluationRunner runs a single user evaluation on demand.
type evaluationRunner interface {
	EvaluateUser(ctx context.Context, userID, date string) (*state.Evaluation, error)
}

// Service implements the admin operations.
type Service struct {
	cfg       *config.Config
	store     *store.Store
	disc      transport
	evaluator evaluationRunner
	zone      *timeutil.Zone
	log       *logger.Logger
}

// New creates the admin service. evaluator may be nil when forced
// evaluations are not wired.
func New(cfg *config.Config, st *store.Store, disc transport, evaluator evaluationRunner, zone *timeutil.Zone, log *logger.Logger) *Service {
	return &Service{
		cfg:       cfg,
		store:     st,
		disc:      disc,
		evaluator: evaluator,
		zone:      zone,
		log:       log.With(logger.Component("admin")),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// RECALCULATION
// ══════════════════════════════════════════════════════════════════════════════

// RecalcResult summarizes a recalculation.
type RecalcResult struct {
	MessagesScanned int
	QualifiedLogs   int
	Points          int
	Streak          int
	MaxStreak       int
	DaysActive      int

	lastLogDate      string
	conceptFrequency map[string]int
}

// Recalculate rebuilds a user's derived progress from raw learning
// channel history. Points, streaks, logs, concepts and skill level are
// recomputed from scratch; evaluation history and earned badges are
// preserved (badges are monotonic).
func (s *Service) Recalculate(ctx context.Context, userID string) (*RecalcResult, error) {
	if !s.cfg.IsTrackedUser(userID) {
		return nil, shared.ErrNotTrackedUser
	}

	msgs, err := s.fetchHistory(ctx, s.cfg.Discord.LearningChannelID)
	if err != nil {
		return nil, err
	}

	rebuilt := s.replayHistory(userID, msgs)
	rebuilt.MessagesScanned = len(msgs)

	err = s.store.Mutate(ctx, func(doc *state.Document) error {
		u := doc.EnsureUser(userID, userID, s.zone.Now().Format(timeutil.FormatDateTime))

		u.Points = rebuilt.Points
		u.Streak = rebuilt.Streak
		u.MaxStreak = rebuilt.MaxStreak
		u.TotalLogs = rebuilt.QualifiedLogs
		u.DaysActive = rebuilt.DaysActive
		u.LastLogDate = rebuilt.lastLogDate
		u.ConceptFrequency = rebuilt.conceptFrequency

		scoring.UpdateSkillLevel(u)
		scoring.CheckBadges(u, 0)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("apply recalculation: %w", err)
	}

	s.log.Info("user recalculated",
		logger.UserID(userID),
		logger.Int("messages_scanned", rebuilt.MessagesScanned),
		logger.Int("qualified_logs", rebuilt.QualifiedLogs),
		logger.Int("points", rebuilt.Points))
	return rebuilt, nil
}

// fetchHistory pages backwards through a channel up to the recalculation
// limit.
func (s *Service) fetchHistory(ctx context.Context, channelID string) ([]discord.Message, error) {
	var all []discord.Message
	before := ""

	for len(all) < recalcMessageLimit {
		page, err := s.disc.GetMessages(ctx, channelID, discord.ListMessagesOptions{
			Limit:  pageSize,
			Before: before,
		})
		if err != nil {
			return nil, fmt.Errorf("fetch history: %w", err)
		}
		if len(page) == 0 {
			break
		}

		all = append(all, page...)
		before = page[len(page)-1].ID
		if len(page) < pageSize {
			break
		}
	}

	if len(all) > recalcMessageLimit {
		all = all[:recalcMessageLimit]
	}
	return all, nil
}

// replayHistory runs the qualification pipeline over history in
// chronological order.
func (s *Service) replayHistory(userID string, msgs []discord.Message) *RecalcResult {
	type datedMessage struct {
		content string
		date    string
	}

	var timeline []datedMessage
	for _, msg := range msgs {
		if msg.Author.ID != userID || msg.Author.Bot {
			continue
		}
		if strings.HasPrefix(msg.Content, s.cfg.Discord.CommandPrefix) {
			continue
		}
		ts, err := msg.CreatedAt()
		if err != nil {
			continue
		}
		timeline = append(timeline, datedMessage{
			content: msg.Content,
			date:    s.zone.EffectiveDateAt(ts),
		})
	}
	sort.SliceStable(timeline, func(i, j int) bool { return timeline[i].date < timeline[j].date })

	result := &RecalcResult{}
	frequency := make(map[string]int)
	days := make(map[string]bool)
	var recent []string

	for _, entry := range timeline {
		analysis := scoring.Analyze(entry.content, recent, s.cfg.Tracking.MinMessageLength)
		if !analysis.Qualifies {
			continue
		}

		recent = append(recent, scoring.CleanContent(entry.content))
		if len(recent) > 10 {
			recent = recent[len(recent)-10:]
		}

		result.QualifiedLogs++
		result.Points += scoring.MessagePoints(analysis.DepthScore, s.cfg.Tracking.BasePoints, s.cfg.Tracking.DepthBonus)
		for _, c := range analysis.Concepts {
			frequency[c]++
		}
		days[entry.date] = true
		result.lastLogDate = entry.date
	}

	result.conceptFrequency = frequency
	result.DaysActive = len(days)
	result.Streak, result.MaxStreak = streaksFromDays(days)

	// A run that ended more than a day ago is no longer a live streak.
	if result.lastLogDate != "" && timeutil.DaysBetween(result.lastLogDate, s.zone.EffectiveDate()) > 1 {
		result.Streak = 0
	}
	return result
}

// streaksFromDays derives the current and longest consecutive-day runs.
// The current streak is the run ending at the most recent log day.
func streaksFromDays(days map[string]bool) (current, longest int) {
	if len(days) == 0 {
		return 0, 0
	}

	sorted := make([]string, 0, len(days))
	for d := range days {
		sorted = append(sorted, d)
	}
	sort.Strings(sorted)

	run := 1
	longest = 1
	for i := 1; i < len(sorted); i++ {
		if timeutil.IsConsecutiveDay(sorted[i-1], sorted[i]) {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}
	return run, longest
}

// ══════════════════════════════════════════════════════════════════════════════
// MANUAL ADJUSTMENTS
// ══════════════════════════════════════════════════════════════════════════════

// SetPoints overrides a user's point total and recomputes their level.
func (s *Service) SetPoints(ctx context.Context, userID string, points int) error {
	if points < 0 {
		return shared.ErrNegativeValue
	}

	return s.store.Mutate(ctx, func(doc *state.Document) error {
		u := doc.GetUser(userID)
		if u == nil {
			return shared.ErrUserNotFound
		}
		u.Points = points
		scoring.UpdateSkillLevel(u)
		return nil
	})
}

// SetStreak overrides a user's streak. MaxStreak never shrinks.
func (s *Service) SetStreak(ctx context.Context, userID string, streak int) error {
	if streak < 0 {
		return shared.ErrNegativeValue
	}

	return s.store.Mutate(ctx, func(doc *state.Document) error {
		u := doc.GetUser(userID)
		if u == nil {
			return shared.ErrUserNotFound
		}
		u.Streak = streak
		if streak > u.MaxStreak {
			u.MaxStreak = streak
		}
		return nil
	})
}

// AwardBadge grants a badge by ID. Unknown badge IDs are rejected;
// re-awarding an earned badge is a no-op.
func (s *Service) AwardBadge(ctx context.Context, userID, badgeID string) error {
	if _, ok := config.Badges[badgeID]; !ok {
		return shared.NewDomainError("admin", "AwardBadge", shared.ErrInvalidInput,
			fmt.Sprintf("unknown badge %q", badgeID))
	}

	return s.store.Mutate(ctx, func(doc *state.Document) error {
		u := doc.GetUser(userID)
		if u == nil {
			return shared.ErrUserNotFound
		}
		scoring.AwardBadge(u, badgeID)
		return nil
	})
}

// ResetDay clears every daily flag for a date, letting the scheduled
// jobs run again for it.
func (s *Service) ResetDay(ctx context.Context, date string) error {
	if _, err := s.zone.ParseDate(date); err != nil {
		return shared.NewDomainError("admin", "ResetDay", shared.ErrInvalidFormat,
			fmt.Sprintf("bad date %q, want YYYY-MM-DD", date))
	}

	return s.store.Mutate(ctx, func(doc *state.Document) error {
		delete(doc.DailyFlags, date)
		return nil
	})
}

// Backup writes an on-demand state snapshot.
func (s *Service) Backup(ctx context.Context) error {
	return s.store.Backup(ctx, "admin")
}

// ForceEvaluate runs today's evaluation for one user immediately,
// regardless of the evaluated flag.
func (s *Service) ForceEvaluate(ctx context.Context, userID string) (*state.Evaluation, error) {
	if s.evaluator == nil {
		return nil, shared.NewDomainError("admin", "ForceEvaluate", shared.ErrServiceUnavailable,
			"evaluator is not wired")
	}
	return s.evaluator.EvaluateUser(ctx, userID, s.zone.Today())
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH AND CLEANUP
// ══════════════════════════════════════════════════════════════════════════════

// HealthReport is a point-in-time view of the state document.
type HealthReport struct {
	StateVersion     int
	Users            int
	FlagDates        int
	OldestFlagDate   string
	CachedUsers      int
	TotalEvaluations int
	LastUpdated      string
}

// Health assembles the state health report.
func (s *Service) Health(ctx context.Context) (*HealthReport, error) {
	doc, err := s.store.Snapshot()
	if err != nil {
		return nil, err
	}

	return &HealthReport{
		StateVersion:     doc.Version,
		Users:            len(doc.Users),
		FlagDates:        len(doc.DailyFlags),
		OldestFlagDate:   doc.OldestFlagDate(),
		CachedUsers:      len(doc.EvaluationCache),
		TotalEvaluations: doc.BotMetadata.TotalEvaluations,
		LastUpdated:      doc.LastUpdated,
	}, nil
}

// CleanupResult summarizes a cleanup pass.
type CleanupResult struct {
	FlagDatesPruned int
	UsersRemoved    int
}

// Cleanup prunes aged flags and drops records of users no longer
// tracked.
func (s *Service) Cleanup(ctx context.Context) (*CleanupResult, error) {
	keep := make(map[string]bool)
	for _, date := range s.zone.LastNDays(s.cfg.Tracking.DailyFlagRetentionDays) {
		keep[date] = true
	}

	result := &CleanupResult{}
	err := s.store.Mutate(ctx, func(doc *state.Document) error {
		result.FlagDatesPruned = doc.PruneFlags(keep)

		for userID := range doc.Users {
			if !s.cfg.IsTrackedUser(userID) {
				delete(doc.Users, userID)
				delete(doc.EvaluationCache, userID)
				removeUserFlags(doc, userID)
				result.UsersRemoved++
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cleanup: %w", err)
	}

	s.log.Info("cleanup complete",
		logger.Int("flag_dates_pruned", result.FlagDatesPruned),
		logger.Int("users_removed", result.UsersRemoved))
	return result, nil
}

// removeUserFlags drops the user's daily-flag entries under every date so
// flags never outlive the record they describe.
func removeUserFlags(doc *state.Document, userID string) {
	for date, byUser := range doc.DailyFlags {
		delete(byUser, userID)
		if len(byUser) == 0 {
			delete(doc.DailyFlags, date)
		}
	}
}
