// Package maintenance keeps the state document healthy: pruning expired
// daily flags, taking scheduled backups, and sending streak reminders to
// users about to lose their streak.
package maintenance

import (
	"context"
	"fmt"

	"github.com/mentor-hub/learning-mentor/config"
	"github.com/mentor-hub/learning-mentor/internal/domain/shared"
	"github.com/mentor-hub/learning-mentor/internal/domain/state"
	"github.com/mentor-hub/learning-mentor/internal/infrastructure/external/discord"
	"github.com/mentor-hub/learning-mentor/internal/store"
	"github.com/mentor-hub/learning-mentor/pkg/logger"
	"github.com/mentor-hub/learning-mentor/pkg/timeutil"
)

// transport is the slice of the Discord client maintenance needs.
type transport interface {
	CreateMessage(ctx context.Context, channelID string, req discord.CreateMessageRequest) (*discord.Message, error)
	CreateDM(ctx context.Context, userID string) (*discord.Channel, error)
}

// Service implements the state maintenance and streak reminder jobs.
type Service struct {
	cfg   *config.Config
	store *store.Store
	disc  transport
	zone  *timeutil.Zone
	bus   shared.EventPublisher
	log   *logger.Logger
}

// New creates the maintenance service.
func New(cfg *config.Config, st *store.Store, disc transport, zone *timeutil.Zone, bus shared.EventPublisher, log *logger.Logger) *Service {
	return &Service{
		cfg:   cfg,
		store: st,
		disc:  disc,
		zone:  zone,
		bus:   bus,
		log:   log.With(logger.Component("maintenance")),
	}
}

// PruneFlags drops daily-flag dates older than retainDays. Returns the
// number of dates dropped.
func (s *Service) PruneFlags(ctx context.Context, retainDays int) (int, error) {
	keep := make(map[string]bool, retainDays)
	for _, date := range s.zone.LastNDays(retainDays) {
		keep[date] = true
	}

	pruned := 0
	err := s.store.Mutate(ctx, func(doc *state.Document) error {
		pruned = doc.PruneFlags(keep)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("prune flags: %w", err)
	}

	if pruned > 0 {
		if s.bus != nil {
			_ = s.bus.Publish(shared.NewStatePrunedEvent(pruned, 0))
		}
		s.log.Info("daily flags pruned", logger.Int("dates_dropped", pruned))
	}
	return pruned, nil
}

// Backup writes a state snapshot.
func (s *Service) Backup(ctx context.Context, reason string) error {
	return s.store.Backup(ctx, reason)
}

// SendStreakReminders pings every tracked user whose streak is in danger
// tonight. Each user gets at most one reminder per day; the ping goes to
// their daily thread, falling back to a DM. Returns the number sent.
func (s *Service) SendStreakReminders(ctx context.Context) (int, error) {
	doc, err := s.store.Snapshot()
	if err != nil {
		return 0, err
	}

	today := s.zone.Today()
	sent := 0

	for _, userID := range s.cfg.Tracking.UserIDs {
		u := doc.GetUser(userID)
		if u == nil || u.Streak == 0 {
			continue
		}

		due, warning := s.zone.ShouldSendReminder(u.LastLogDate)
		if !due {
			continue
		}
		if doc.GetDailyFlag(today, userID, state.FlagReminderSent) {
			continue
		}

		if err := s.deliver(ctx, u, warning); err != nil {
			s.log.Warn("streak reminder failed", logger.UserID(userID), logger.Err(err))
			continue
		}

		err := s.store.Mutate(ctx, func(d *state.Document) error {
			d.SetDailyFlag(today, userID, state.FlagReminderSent)
			if rec := d.GetUser(userID); rec != nil {
				rec.StreakHealth = state.HealthAtRisk
			}
			return nil
		})
		if err != nil {
			return sent, fmt.Errorf("record reminder: %w", err)
		}

		if s.bus != nil {
			_ = s.bus.Publish(shared.NewStreakAtRiskEvent(userID, u.Username, u.Streak, s.zone.TimeUntilDeadline()))
		}
		sent++
	}

	if sent > 0 {
		s.log.Info("streak reminders sent", logger.Int("count", sent))
	}
	return sent, nil
}

// RefreshStreakHealth re-derives every tracked user's streak health from
// their last log date. A streak observed as broken is zeroed on the spot
// (max_streak stays), so the dashboard never shows a live-looking count
// the user has already lost. Run after the reminder sweep.
func (s *Service) RefreshStreakHealth(ctx context.Context) error {
	effective := s.zone.EffectiveDate()

	type brokenStreak struct {
		userID, username string
		previous, missed int
	}
	var broken []brokenStreak

	err := s.store.Mutate(ctx, func(doc *state.Document) error {
		broken = broken[:0]
		for _, userID := range s.cfg.Tracking.UserIDs {
			u := doc.GetUser(userID)
			if u == nil || u.Streak == 0 {
				continue
			}

			gap := timeutil.DaysBetween(u.LastLogDate, effective)
			switch {
			case u.LastLogDate == effective:
				u.StreakHealth = state.HealthSafe
			case gap == 1:
				u.StreakHealth = state.HealthAtRisk
			default:
				broken = append(broken, brokenStreak{userID, u.Username, u.Streak, gap - 1})
				u.StreakHealth = state.HealthBroken
				u.Streak = 0
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.bus != nil {
		for _, b := range broken {
			_ = s.bus.Publish(shared.NewStreakBrokenEvent(b.userID, b.username, b.previous, b.missed))
		}
	}
	return nil
}

// deliver sends the reminder to the user's daily thread, or a DM when no
// thread exists.
func (s *Service) deliver(ctx context.Context, u *state.UserRecord, warning string) error {
	channelID := u.DailyThreadID
	if channelID == "" {
		dm, err := s.disc.CreateDM(ctx, u.UserID)
		if err != nil {
			return fmt.Errorf("open dm: %w", err)
		}
		channelID = dm.ID
	}

	content := fmt.Sprintf("<@%s> %s Your %s %d-day streak is on the line.",
		u.UserID, warning, timeutil.StreakEmoji(u.Streak), u.Streak)
	_, err := s.disc.CreateMessage(ctx, channelID, discord.CreateMessageRequest{Content: content})
	return err
}
