package presenter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mentor-hub/learning-mentor/config"
	"github.com/mentor-hub/learning-mentor/internal/domain/state"
	"github.com/mentor-hub/learning-mentor/internal/infrastructure/external/discord"
	"github.com/mentor-hub/learning-mentor/internal/store"
	"github.com/mentor-hub/learning-mentor/pkg/logger"
	"github.com/mentor-hub/learning-mentor/pkg/timeutil"
)

const dashboardTitle = "📋 Learning Dashboard"

// dashboardTransport is the slice of the Discord client the dashboard needs.
type dashboardTransport interface {
	CreateMessage(ctx context.Context, channelID string, req discord.CreateMessageRequest) (*discord.Message, error)
	EditMessage(ctx context.Context, channelID, messageID string, req discord.EditMessageRequest) (*discord.Message, error)
	GetPinnedMessages(ctx context.Context, channelID string) ([]discord.Message, error)
	PinMessage(ctx context.Context, channelID, messageID string) error
}

// Dashboard keeps one pinned leaderboard message in the dashboard channel
// up to date. The message is located by its embed title, so restarts pick
// up the existing message instead of posting a new one.
type Dashboard struct {
	cfg   *config.Config
	store *store.Store
	disc  dashboardTransport
	zone  *timeutil.Zone
	log   *logger.Logger

	messageID string
}

// NewDashboard builds a dashboard refresher.
func NewDashboard(cfg *config.Config, st *store.Store, disc dashboardTransport, zone *timeutil.Zone, log *logger.Logger) *Dashboard {
	return &Dashboard{
		cfg:   cfg,
		store: st,
		disc:  disc,
		zone:  zone,
		log:   log.With(logger.Component("dashboard")),
	}
}

// Refresh rebuilds the dashboard embed and edits it into the pinned
// dashboard message, creating and pinning one on first run.
func (d *Dashboard) Refresh(ctx context.Context) error {
	channelID := d.cfg.Discord.DashboardChannelID
	if channelID == "" {
		return nil
	}

	doc, err := d.store.Snapshot()
	if err != nil {
		return err
	}
	embed := d.render(doc)

	if d.messageID == "" {
		if err := d.locate(ctx, channelID); err != nil {
			return err
		}
	}

	if d.messageID != "" {
		if _, err := d.disc.EditMessage(ctx, channelID, d.messageID, discord.EditMessageRequest{
			Embeds: []discord.Embed{embed},
		}); err == nil {
			return nil
		} else {
			// The message may have been deleted by hand; fall through and
			// recreate it.
			d.log.Warn("dashboard edit failed, recreating", logger.F("message_id", d.messageID), logger.Err(err))
			d.messageID = ""
		}
	}

	msg, err := d.disc.CreateMessage(ctx, channelID, discord.CreateMessageRequest{
		Embeds: []discord.Embed{embed},
	})
	if err != nil {
		return err
	}
	d.messageID = msg.ID

	if err := d.disc.PinMessage(ctx, channelID, msg.ID); err != nil {
		d.log.Warn("failed to pin dashboard message", logger.Err(err))
	}
	return nil
}

// locate finds an existing dashboard message among the channel pins.
func (d *Dashboard) locate(ctx context.Context, channelID string) error {
	pinned, err := d.disc.GetPinnedMessages(ctx, channelID)
	if err != nil {
		return err
	}
	for _, msg := range pinned {
		for _, embed := range msg.Embeds {
			if embed.Title == dashboardTitle {
				d.messageID = msg.ID
				return nil
			}
		}
	}
	return nil
}

// render builds the leaderboard embed from the current state snapshot.
func (d *Dashboard) render(doc *state.Document) discord.Embed {
	tracked := make(map[string]*state.UserRecord, len(d.cfg.Tracking.UserIDs))
	for _, userID := range d.cfg.Tracking.UserIDs {
		if u := doc.GetUser(userID); u != nil {
			tracked[userID] = u
		}
	}

	ranked := rankUsers(tracked)
	today := d.zone.EffectiveDate()

	var b strings.Builder
	medals := []string{"🥇", "🥈", "🥉"}
	for i, u := range ranked {
		rank := fmt.Sprintf("%d.", i+1)
		if i < len(medals) {
			rank = medals[i]
		}
		level := config.SkillLevelByIndex(u.SkillLevel)

		loggedToday := "⬜"
		if u.LastLogDate == today {
			loggedToday = "✅"
		}

		fmt.Fprintf(&b, "%s %s **%s** — %d pts · %s %dd · %s lvl %d · today %s\n",
			rank, level.Emoji, u.Username, u.Points,
			timeutil.StreakEmoji(u.Streak), u.Streak,
			level.Name, level.Level, loggedToday)
	}
	if b.Len() == 0 {
		b.WriteString("No learners tracked yet.")
	}

	return discord.Embed{
		Title:       dashboardTitle,
		Description: b.String(),
		Color:       ColorPrimary,
		Footer:      &discord.EmbedFooter{Text: "Updated"},
		Timestamp:   d.zone.Now().UTC().Format(time.RFC3339),
	}
}
