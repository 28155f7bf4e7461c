// Package discordstate persists the encoded state blob inside Discord
// itself: a pinned message in the state channel holds the current blob,
// and a locked thread under the same channel collects backup snapshots.
package discordstate

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mentor-hub/learning-mentor/internal/domain/shared"
	"github.com/mentor-hub/learning-mentor/internal/infrastructure/external/discord"
	"github.com/mentor-hub/learning-mentor/pkg/logger"
	"github.com/mentor-hub/learning-mentor/pkg/timeutil"
)

// Display strings for the state message and backup thread. The title
// doubles as the lookup key, so it must stay stable across versions.
const (
	stateEmbedTitle   = "🔒 Bot State [DO NOT MODIFY]"
	backupThreadName  = "🔐 State Backup [LOCKED]"
	backupEmbedPrefix = "📦 Backup"

	stateEmbedColor  = 0x2B2D31
	backupEmbedColor = 0x5865F2
)

// api is the slice of the Discord client the persister needs.
type api interface {
	GetPinnedMessages(ctx context.Context, channelID string) ([]discord.Message, error)
	CreateMessage(ctx context.Context, channelID string, req discord.CreateMessageRequest) (*discord.Message, error)
	EditMessage(ctx context.Context, channelID, messageID string, req discord.EditMessageRequest) (*discord.Message, error)
	PinMessage(ctx context.Context, channelID, messageID string) error
	StartThread(ctx context.Context, channelID, name string) (*discord.Channel, error)
	ListActiveThreads(ctx context.Context, guildID string) ([]discord.Channel, error)
}

// Persister stores state blobs in the state channel.
type Persister struct {
	client    api
	guildID   string
	channelID string
	zone      *timeutil.Zone
	log       *logger.Logger

	stateMessageID string
	backupThreadID string
}

// New creates a Persister for the given state channel.
func New(client api, guildID, channelID string, zone *timeutil.Zone, log *logger.Logger) *Persister {
	return &Persister{
		client:    client,
		guildID:   guildID,
		channelID: channelID,
		zone:      zone,
		log:       log.With(logger.Component("discordstate")),
	}
}

// Load finds the pinned state message and returns its blob, or "" when
// no state message exists yet.
func (p *Persister) Load(ctx context.Context) (string, error) {
	pins, err := p.client.GetPinnedMessages(ctx, p.channelID)
	if err != nil {
		return "", fmt.Errorf("list pins: %w", err)
	}

	for _, msg := range pins {
		for _, embed := range msg.Embeds {
			if embed.Title == stateEmbedTitle {
				p.stateMessageID = msg.ID
				return embed.Description, nil
			}
		}
	}
	return "", nil
}

// Write replaces the state blob, creating and pinning the state message
// on first use.
func (p *Persister) Write(ctx context.Context, blob string) error {
	embed := p.stateEmbed(blob)

	if p.stateMessageID != "" {
		_, err := p.client.EditMessage(ctx, p.channelID, p.stateMessageID, discord.EditMessageRequest{
			Embeds: []discord.Embed{embed},
		})
		if err == nil {
			return nil
		}
		// The message may have been deleted out from under us, fall
		// through and recreate it.
		p.log.Warn("state message edit failed, recreating",
			logger.MessageID(p.stateMessageID), logger.Err(err))
		p.stateMessageID = ""
	}

	msg, err := p.client.CreateMessage(ctx, p.channelID, discord.CreateMessageRequest{
		Embeds: []discord.Embed{embed},
	})
	if err != nil {
		return fmt.Errorf("create state message: %w", err)
	}
	if err := p.client.PinMessage(ctx, p.channelID, msg.ID); err != nil {
		return fmt.Errorf("pin state message: %w", err)
	}

	p.stateMessageID = msg.ID
	p.log.Info("state message created", logger.MessageID(msg.ID))
	return nil
}

// WriteBackup appends a snapshot embed to the backup thread.
func (p *Persister) WriteBackup(ctx context.Context, blob, reason string) error {
	threadID, err := p.ensureBackupThread(ctx)
	if err != nil {
		return err
	}

	snapshotID := uuid.NewString()
	_, err = p.client.CreateMessage(ctx, threadID, discord.CreateMessageRequest{
		Embeds: []discord.Embed{{
			Title:       fmt.Sprintf("%s - %s", backupEmbedPrefix, p.zone.Now().Format(timeutil.FormatDateTime)),
			Description: blob,
			Color:       backupEmbedColor,
			Footer:      &discord.EmbedFooter{Text: fmt.Sprintf("snapshot %s | reason: %s", snapshotID, reason)},
		}},
	})
	if err != nil {
		return shared.WrapError("discordstate", "WriteBackup", shared.ErrPersist, "backup message failed", err)
	}

	p.log.Info("backup snapshot written",
		logger.String("snapshot_id", snapshotID),
		logger.String("reason", reason))
	return nil
}

// ensureBackupThread finds or creates the locked backup thread.
func (p *Persister) ensureBackupThread(ctx context.Context) (string, error) {
	if p.backupThreadID != "" {
		return p.backupThreadID, nil
	}

	threads, err := p.client.ListActiveThreads(ctx, p.guildID)
	if err != nil {
		return "", fmt.Errorf("list threads: %w", err)
	}
	for _, th := range threads {
		if th.Name == backupThreadName && th.ParentID == p.channelID {
			p.backupThreadID = th.ID
			return th.ID, nil
		}
	}

	th, err := p.client.StartThread(ctx, p.channelID, backupThreadName)
	if err != nil {
		return "", fmt.Errorf("create backup thread: %w", err)
	}
	p.backupThreadID = th.ID
	p.log.Info("backup thread created", logger.ChannelID(th.ID))
	return th.ID, nil
}

func (p *Persister) stateEmbed(blob string) discord.Embed {
	return discord.Embed{
		Title:       stateEmbedTitle,
		Description: blob,
		Color:       stateEmbedColor,
		Footer: &discord.EmbedFooter{
			Text: "v2 | Last updated: " + p.zone.Now().Format(timeutil.FormatDateTime),
		},
	}
}
