package discord

import (
	"context"
	"fmt"

	"github.com/mentor-hub/learning-mentor/config"
	"github.com/mentor-hub/learning-mentor/internal/domain/shared"
	"github.com/mentor-hub/learning-mentor/internal/infrastructure/external/discord"
	"github.com/mentor-hub/learning-mentor/pkg/logger"
	"github.com/mentor-hub/learning-mentor/pkg/timeutil"
)

// Announcer listens on the event bus and posts celebration messages to
// the learning channel so milestones are visible to everyone.
type Announcer struct {
	cfg  *config.Config
	disc replyTransport
	log  *logger.Logger
}

// NewAnnouncer builds an announcer.
func NewAnnouncer(cfg *config.Config, disc replyTransport, log *logger.Logger) *Announcer {
	return &Announcer{
		cfg:  cfg,
		disc: disc,
		log:  log.With(logger.Component("announcer")),
	}
}

// Subscribe registers the announcer's handlers on the bus.
func (a *Announcer) Subscribe(bus shared.EventSubscriber) error {
	subscriptions := map[shared.EventType]shared.EventHandler{
		shared.EventLevelUp:            a.onLevelUp,
		shared.EventBadgeUnlocked:      a.onBadgeUnlocked,
		shared.EventStreakExtended:     a.onStreakExtended,
		shared.EventStreakBroken:       a.onStreakBroken,
		shared.EventWeeklySummaryReady: a.onWeeklySummaryReady,
	}
	for eventType, handler := range subscriptions {
		if err := bus.Subscribe(eventType, handler); err != nil {
			return err
		}
	}
	return nil
}

func (a *Announcer) onLevelUp(event shared.Event) error {
	e, ok := event.(shared.LevelUpEvent)
	if !ok {
		return nil
	}
	level := config.SkillLevelByIndex(e.NewLevel)
	return a.announce(fmt.Sprintf(
		"%s **Level up!** <@%s> is now **%s** with %d points. Keep going!",
		level.Emoji, e.UserID, e.LevelName, e.Points))
}

func (a *Announcer) onBadgeUnlocked(event shared.Event) error {
	e, ok := event.(shared.BadgeUnlockedEvent)
	if !ok {
		return nil
	}
	return a.announce(fmt.Sprintf(
		"%s <@%s> unlocked the **%s** badge!",
		e.BadgeEmoji, e.UserID, e.BadgeName))
}

// onStreakExtended only announces milestone streaks. Day-to-day
// extensions would be noise.
func (a *Announcer) onStreakExtended(event shared.Event) error {
	e, ok := event.(shared.StreakExtendedEvent)
	if !ok || !e.Milestone {
		return nil
	}
	return a.announce(fmt.Sprintf(
		"%s <@%s> hit a **%d-day streak**! 🎉",
		timeutil.StreakEmoji(e.Streak), e.UserID, e.Streak))
}

func (a *Announcer) onStreakBroken(event shared.Event) error {
	e, ok := event.(shared.StreakBrokenEvent)
	if !ok || e.PreviousStreak < 3 {
		return nil
	}
	return a.announce(fmt.Sprintf(
		"💔 <@%s>'s %d-day streak ended. Today is a fresh start!",
		e.UserID, e.PreviousStreak))
}

func (a *Announcer) onWeeklySummaryReady(event shared.Event) error {
	e, ok := event.(shared.WeeklySummaryReadyEvent)
	if !ok {
		return nil
	}
	return a.announce(fmt.Sprintf(
		"📊 Weekly summary for <@%s> is ready (week rated **%s**). See it with `%sweekly`.",
		e.UserID, e.WeekRating, a.cfg.Discord.CommandPrefix))
}

func (a *Announcer) announce(content string) error {
	_, err := a.disc.CreateMessage(context.Background(), a.cfg.Discord.LearningChannelID,
		discord.CreateMessageRequest{Content: content})
	if err != nil {
		a.log.Warn("announcement failed", logger.Err(err))
	}
	return err
}
