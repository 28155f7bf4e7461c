package discord

import (
	"context"
	"sync"
	"time"

	"github.com/mentor-hub/learning-mentor/config"
	"github.com/mentor-hub/learning-mentor/internal/application/mentor"
	"github.com/mentor-hub/learning-mentor/internal/application/tracker"
	"github.com/mentor-hub/learning-mentor/internal/infrastructure/external/discord"
	"github.com/mentor-hub/learning-mentor/internal/store"
	"github.com/mentor-hub/learning-mentor/pkg/logger"
)

// maxConcurrentHandlers bounds how many polled messages are processed at
// once so a burst cannot pile up goroutines against the rate limiter.
const maxConcurrentHandlers = 4

// pollTransport is the slice of the Discord client the poller needs.
type pollTransport interface {
	GetMessages(ctx context.Context, channelID string, opts discord.ListMessagesOptions) ([]discord.Message, error)
	CurrentUser(ctx context.Context) (*discord.User, error)
}

// BotStats tracks runtime counters, exposed via GetStats for the health
// endpoint.
type BotStats struct {
	StartedAt        time.Time
	PollCycles       int64
	MessagesSeen     int64
	MessagesHandled  int64
	CommandsHandled  int64
	QuestionsHandled int64
	ErrorsCount      int64
}

// Bot polls the learning channels over REST and routes new messages to
// the command router, the mentor and the tracker, in that order.
type Bot struct {
	cfg     *config.Config
	store   *store.Store
	disc    pollTransport
	router  *Router
	mentor  *mentor.Service
	tracker *tracker.Service
	log     *logger.Logger

	botUserID string
	cursors   map[string]string // channel ID -> last seen message ID

	running   bool
	runningMu sync.Mutex
	stopCh    chan struct{}
	wg        sync.WaitGroup
	sem       chan struct{}

	stats   BotStats
	statsMu sync.Mutex
}

// NewBot builds the polling bot.
func NewBot(cfg *config.Config, st *store.Store, disc pollTransport, router *Router, mentorSvc *mentor.Service, trackerSvc *tracker.Service, log *logger.Logger) *Bot {
	return &Bot{
		cfg:     cfg,
		store:   st,
		disc:    disc,
		router:  router,
		mentor:  mentorSvc,
		tracker: trackerSvc,
		log:     log.With(logger.Component("bot")),
		cursors: make(map[string]string),
		stopCh:  make(chan struct{}),
		sem:     make(chan struct{}, maxConcurrentHandlers),
	}
}

// Start begins polling. It returns once the poller goroutine is running.
func (b *Bot) Start(ctx context.Context) error {
	b.runningMu.Lock()
	defer b.runningMu.Unlock()
	if b.running {
		return nil
	}

	me, err := b.disc.CurrentUser(ctx)
	if err != nil {
		return err
	}
	b.botUserID = me.ID

	// Seed cursors at the newest message so a restart does not replay
	// channel history.
	for _, channelID := range b.pollChannels() {
		b.seedCursor(ctx, channelID)
	}

	b.running = true
	b.stats.StartedAt = time.Now()
	b.wg.Add(1)
	go b.pollLoop()

	b.log.Info("bot started",
		logger.F("bot_user_id", b.botUserID),
		logger.F("poll_interval", b.cfg.Discord.PollingInterval.String()))
	return nil
}

// Stop halts polling and waits for in-flight handlers, up to the timeout.
func (b *Bot) Stop(timeout time.Duration) {
	b.runningMu.Lock()
	if !b.running {
		b.runningMu.Unlock()
		return
	}
	b.running = false
	close(b.stopCh)
	b.runningMu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.log.Info("bot stopped")
	case <-time.After(timeout):
		b.log.Warn("bot stop timed out with handlers in flight")
	}
}

// GetStats returns a snapshot of the runtime counters.
func (b *Bot) GetStats() BotStats {
	b.statsMu.Lock()
	defer b.statsMu.Unlock()
	return b.stats
}

// ══════════════════════════════════════════════════════════════════════════════
// POLLING
// ══════════════════════════════════════════════════════════════════════════════

func (b *Bot) pollLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.cfg.Discord.PollingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), b.cfg.Discord.PollingInterval)
			b.pollOnce(ctx)
			cancel()
		}
	}
}

// pollOnce sweeps every watched channel for messages newer than its cursor.
func (b *Bot) pollOnce(ctx context.Context) {
	b.statsMu.Lock()
	b.stats.PollCycles++
	b.statsMu.Unlock()

	for _, channelID := range b.pollChannels() {
		select {
		case <-b.stopCh:
			return
		default:
		}

		msgs, err := b.disc.GetMessages(ctx, channelID, discord.ListMessagesOptions{
			Limit: b.cfg.Discord.PollingLimit,
			After: b.cursors[channelID],
		})
		if err != nil {
			b.countError()
			b.log.Warn("poll failed", logger.F("channel_id", channelID), logger.Err(err))
			continue
		}
		if len(msgs) == 0 {
			continue
		}

		// Discord returns newest first; process oldest first.
		for i := len(msgs) - 1; i >= 0; i-- {
			b.handle(ctx, msgs[i])
		}
		b.cursors[channelID] = msgs[0].ID
	}
}

// pollChannels is the learning channel plus every tracked user's current
// daily thread.
func (b *Bot) pollChannels() []string {
	channels := []string{b.cfg.Discord.LearningChannelID}

	doc, err := b.store.Snapshot()
	if err != nil {
		return channels
	}
	for _, userID := range b.cfg.Tracking.UserIDs {
		if u := doc.GetUser(userID); u != nil && u.DailyThreadID != "" {
			channels = append(channels, u.DailyThreadID)
		}
	}
	return channels
}

// seedCursor points a channel cursor at its newest message.
func (b *Bot) seedCursor(ctx context.Context, channelID string) {
	msgs, err := b.disc.GetMessages(ctx, channelID, discord.ListMessagesOptions{Limit: 1})
	if err != nil {
		b.log.Warn("failed to seed cursor", logger.F("channel_id", channelID), logger.Err(err))
		return
	}
	if len(msgs) > 0 {
		b.cursors[channelID] = msgs[0].ID
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// DISPATCH
// ══════════════════════════════════════════════════════════════════════════════

// handle routes one message: command, then mentor question, then
// learning-log tracking. Handlers run concurrently up to the semaphore
// limit; messages for the same user still arrive in poll order because
// acquisition happens before the goroutine starts.
func (b *Bot) handle(ctx context.Context, msg discord.Message) {
	if msg.Author.Bot || msg.Author.ID == b.botUserID {
		return
	}

	b.statsMu.Lock()
	b.stats.MessagesSeen++
	b.statsMu.Unlock()

	b.sem <- struct{}{}
	b.wg.Add(1)
	go func() {
		defer func() {
			<-b.sem
			b.wg.Done()
		}()
		// The poll context dies when the sweep ends; handlers get their
		// own deadline so an AI call cannot be cut off mid-flight.
		handleCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		b.dispatch(handleCtx, msg)
	}()
}

func (b *Bot) dispatch(ctx context.Context, msg discord.Message) {
	if handled, err := b.router.Dispatch(ctx, msg); handled {
		if err != nil {
			b.countError()
		}
		b.statsMu.Lock()
		b.stats.CommandsHandled++
		b.stats.MessagesHandled++
		b.statsMu.Unlock()
		return
	}

	if handled, err := b.mentor.HandleMessage(ctx, msg); handled || err != nil {
		if err != nil {
			b.countError()
			b.log.Warn("mentor handler failed", logger.F("message_id", msg.ID), logger.Err(err))
		}
		if handled {
			b.statsMu.Lock()
			b.stats.QuestionsHandled++
			b.stats.MessagesHandled++
			b.statsMu.Unlock()
			return
		}
	}

	if err := b.tracker.HandleMessage(ctx, msg); err != nil {
		b.countError()
		b.log.Warn("tracker handler failed", logger.F("message_id", msg.ID), logger.Err(err))
		return
	}
	b.statsMu.Lock()
	b.stats.MessagesHandled++
	b.statsMu.Unlock()
}

func (b *Bot) countError() {
	b.statsMu.Lock()
	b.stats.ErrorsCount++
	b.statsMu.Unlock()
}
