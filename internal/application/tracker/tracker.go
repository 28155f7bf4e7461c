// Package tracker processes incoming learning-log messages: it qualifies
// them, awards points and streaks, reacts to the message, and opens the
// per-user daily threads.
package tracker

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/mentor-hub/learning-mentor/config"
	"github.com/mentor-hub/learning-mentor/internal/domain/scoring"
	"github.com/mentor-hub/learning-mentor/internal/domain/shared"
	"github.com/mentor-hub/learning-mentor/internal/domain/state"
	"github.com/mentor-hub/learning-mentor/internal/infrastructure/external/discord"
	"github.com/mentor-hub/learning-mentor/internal/store"
	"github.com/mentor-hub/learning-mentor/pkg/logger"
	"github.com/mentor-hub/learning-mentor/pkg/timeutil"
)

// recentLogLimit is how many recent logs per user are kept for duplicate
// detection.
const recentLogLimit = 10

// transport is the slice of the Discord client the tracker needs.
type transport interface {
	CreateMessage(ctx context.Context, channelID string, req discord.CreateMessageRequest) (*discord.Message, error)
	CreateReaction(ctx context.Context, channelID, messageID, emoji string) error
	GetChannel(ctx context.Context, channelID string) (*discord.Channel, error)
	StartThread(ctx context.Context, channelID, name string) (*discord.Channel, error)
}

// Service tracks learning logs for the configured users.
type Service struct {
	cfg   *config.Config
	store *store.Store
	disc  transport
	zone  *timeutil.Zone
	bus   shared.EventPublisher
	log   *logger.Logger

	mu         sync.Mutex
	recentLogs map[string][]string

	// channel-type lookups are cached so each poll does not re-fetch
	channelCache map[string]*discord.Channel
}

// New creates the tracker service.
func New(cfg *config.Config, st *store.Store, disc transport, zone *timeutil.Zone, bus shared.EventPublisher, log *logger.Logger) *Service {
	return &Service{
		cfg:          cfg,
		store:        st,
		disc:         disc,
		zone:         zone,
		bus:          bus,
		log:          log.With(logger.Component("tracker")),
		recentLogs:   make(map[string][]string),
		channelCache: make(map[string]*discord.Channel),
	}
}

// HandleMessage processes one polled message. Non-log messages (untracked
// authors, commands, wrong channel, unqualified content) are skipped
// without error.
func (s *Service) HandleMessage(ctx context.Context, msg discord.Message) error {
	if msg.Author.Bot || !s.cfg.IsTrackedUser(msg.Author.ID) {
		return nil
	}
	if strings.HasPrefix(msg.Content, s.cfg.Discord.CommandPrefix) {
		return nil
	}

	ok, err := s.isLearningChannel(ctx, msg.ChannelID, msg.Author.ID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	analysis := scoring.Analyze(msg.Content, s.recentFor(msg.Author.ID), s.cfg.Tracking.MinMessageLength)
	if !analysis.Qualifies {
		s.log.Debug("message does not qualify",
			logger.UserID(msg.Author.ID),
			logger.String("reason", analysis.Reason))
		return nil
	}

	s.rememberLog(msg.Author.ID, scoring.CleanContent(msg.Content))

	points := scoring.MessagePoints(analysis.DepthScore, s.cfg.Tracking.BasePoints, s.cfg.Tracking.DepthBonus)
	effectiveDate := s.zone.EffectiveDate()
	if ts, terr := msg.CreatedAt(); terr == nil {
		effectiveDate = s.zone.EffectiveDateAt(ts)
	}
	today := s.zone.Today()

	var outcome logOutcome
	err = s.store.Mutate(ctx, func(doc *state.Document) error {
		u := doc.EnsureUser(msg.Author.ID, msg.Author.Username, s.zone.Now().Format(timeutil.FormatDateTime))

		daysMissed := 0
		if u.LastLogDate != "" {
			if gap := timeutil.DaysBetween(u.LastLogDate, effectiveDate); gap > 1 {
				daysMissed = gap - 1
			}
		}

		// RecordActivity reads last_log_date, so it must run before the
		// streak update overwrites it.
		scoring.RecordActivity(u, today)
		streak := scoring.UpdateStreak(u, effectiveDate, s.zone)

		u.Points += points
		scoring.AddConcepts(u, analysis.Concepts)

		oldLevel, newLevel, leveled := scoring.UpdateSkillLevel(u)
		badges := scoring.CheckBadges(u, float64(analysis.DepthScore)*2)

		outcome = logOutcome{
			username:   u.Username,
			points:     points,
			total:      u.Points,
			totalLogs:  u.TotalLogs,
			streak:     streak,
			daysMissed: daysMissed,
			oldLevel:   oldLevel,
			newLevel:   newLevel,
			leveledUp:  leveled,
			badges:     badges,
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("apply learning log: %w", err)
	}

	s.publishOutcome(msg.Author.ID, outcome, analysis.DepthScore)
	s.react(ctx, msg, outcome)

	s.log.Info("learning log recorded",
		logger.UserID(msg.Author.ID),
		logger.Int("points", points),
		logger.Int("depth", analysis.DepthScore),
		logger.Int("streak", outcome.streak.Streak))
	return nil
}

// logOutcome captures everything the reaction/announce step needs from
// the mutation.
type logOutcome struct {
	username   string
	points     int
	total      int
	totalLogs  int
	streak     scoring.StreakUpdate
	daysMissed int
	oldLevel   int
	newLevel   int
	leveledUp  bool
	badges     []string
}

func (s *Service) publishOutcome(userID string, o logOutcome, depth int) {
	if s.bus == nil {
		return
	}

	_ = s.bus.Publish(shared.NewPointsAwardedEvent(userID, o.username, o.points, o.total, depth))

	if o.streak.Extended {
		_ = s.bus.Publish(shared.NewStreakExtendedEvent(userID, o.username, o.streak.Streak))
	}
	if o.streak.Broken {
		_ = s.bus.Publish(shared.NewStreakBrokenEvent(userID, o.username, o.streak.Previous, o.daysMissed))
	}
	if o.leveledUp && o.newLevel > o.oldLevel {
		level := config.SkillLevelByIndex(o.newLevel)
		_ = s.bus.Publish(shared.NewLevelUpEvent(userID, o.username, o.oldLevel, o.newLevel, level.Name, o.total))
	}
	for _, id := range o.badges {
		badge := config.Badges[id]
		_ = s.bus.Publish(shared.NewBadgeUnlockedEvent(userID, o.username, id, badge.Name, badge.Emoji))
	}
}

// react acknowledges the log. Reaction failures are logged, never fatal:
// the points are already persisted.
func (s *Service) react(ctx context.Context, msg discord.Message, o logOutcome) {
	emojis := []string{"✅"}
	if o.totalLogs == 1 {
		emojis = append(emojis, "🎉")
	}
	if o.total%50 == 0 {
		emojis = append(emojis, "💯")
	}
	if scoring.IsStreakMilestone(o.streak.Streak) && o.streak.Extended {
		emojis = append(emojis, "🔥")
	}

	for _, e := range emojis {
		if err := s.disc.CreateReaction(ctx, msg.ChannelID, msg.ID, e); err != nil {
			s.log.Warn("reaction failed", logger.MessageID(msg.ID), logger.Err(err))
			return
		}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CHANNEL ROUTING
// ══════════════════════════════════════════════════════════════════════════════

// isLearningChannel reports whether messages in channelID count as
// learning logs for the given user: the learning channel itself, the
// user's own daily thread, or any thread under the daily-threads channel.
func (s *Service) isLearningChannel(ctx context.Context, channelID, userID string) (bool, error) {
	if channelID == s.cfg.Discord.LearningChannelID {
		return true, nil
	}

	if u, err := s.store.User(userID); err == nil && u.DailyThreadID == channelID {
		return true, nil
	}

	ch, err := s.channel(ctx, channelID)
	if err != nil {
		return false, err
	}
	return ch.IsThread() && ch.ParentID == s.cfg.Discord.DailyThreadsChannelID, nil
}

func (s *Service) channel(ctx context.Context, channelID string) (*discord.Channel, error) {
	s.mu.Lock()
	cached, ok := s.channelCache[channelID]
	s.mu.Unlock()
	if ok {
		return cached, nil
	}

	ch, err := s.disc.GetChannel(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("resolve channel %s: %w", channelID, err)
	}

	s.mu.Lock()
	s.channelCache[channelID] = ch
	s.mu.Unlock()
	return ch, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DAILY THREADS
// ══════════════════════════════════════════════════════════════════════════════

// OpenDailyThreads opens today's thread for every tracked user that does
// not have one yet. Implements the daily thread job.
func (s *Service) OpenDailyThreads(ctx context.Context) (int, error) {
	doc, err := s.store.Snapshot()
	if err != nil {
		return 0, err
	}

	today := s.zone.Today()
	created := 0

	for _, userID := range s.cfg.Tracking.UserIDs {
		if doc.GetDailyFlag(today, userID, state.FlagThreadCreated) {
			continue
		}

		u := doc.GetUser(userID)
		username := userID
		if u != nil {
			username = u.Username
		}

		name := fmt.Sprintf("%s (%s)", s.zone.DailyThreadName(), username)
		th, err := s.disc.StartThread(ctx, s.cfg.Discord.DailyThreadsChannelID, name)
		if err != nil {
			s.log.Error("daily thread creation failed", logger.UserID(userID), logger.Err(err))
			continue
		}

		greeting := fmt.Sprintf("Good morning <@%s>! 🌅 Log what you learn today here. Ask me anything with a question.", userID)
		if _, err := s.disc.CreateMessage(ctx, th.ID, discord.CreateMessageRequest{Content: greeting}); err != nil {
			s.log.Warn("daily thread greeting failed", logger.ChannelID(th.ID), logger.Err(err))
		}

		err = s.store.Mutate(ctx, func(d *state.Document) error {
			rec := d.EnsureUser(userID, username, s.zone.Now().Format(timeutil.FormatDateTime))
			rec.DailyThreadID = th.ID
			d.SetDailyFlag(today, userID, state.FlagThreadCreated)
			return nil
		})
		if err != nil {
			return created, fmt.Errorf("record daily thread: %w", err)
		}
		created++
	}

	return created, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// RECENT LOG CACHE
// ══════════════════════════════════════════════════════════════════════════════

func (s *Service) recentFor(userID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.recentLogs[userID]...)
}

func (s *Service) rememberLog(userID, cleaned string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	logs := append(s.recentLogs[userID], cleaned)
	if len(logs) > recentLogLimit {
		logs = logs[len(logs)-recentLogLimit:]
	}
	s.recentLogs[userID] = logs
}
