// Package discord is the Discord-facing surface of the bot: the polling
// loop, the prefix-command router and the event announcer. It sits on top
// of the REST client in infrastructure/external/discord.
package discord

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/mentor-hub/learning-mentor/config"
	"github.com/mentor-hub/learning-mentor/internal/infrastructure/external/discord"
	"github.com/mentor-hub/learning-mentor/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMMAND CONTEXT
// ══════════════════════════════════════════════════════════════════════════════

// replyTransport is the slice of the Discord client a command handler
// needs to respond.
type replyTransport interface {
	CreateMessage(ctx context.Context, channelID string, req discord.CreateMessageRequest) (*discord.Message, error)
}

// CommandContext carries everything a handler needs about one invocation.
type CommandContext struct {
	UserID    string
	Username  string
	ChannelID string
	MessageID string
	Args      []string

	disc replyTransport
}

// Reply posts a plain-text response in the invoking channel.
func (c *CommandContext) Reply(ctx context.Context, content string) error {
	_, err := c.disc.CreateMessage(ctx, c.ChannelID, discord.CreateMessageRequest{Content: content})
	return err
}

// ReplyEmbed posts an embed response in the invoking channel.
func (c *CommandContext) ReplyEmbed(ctx context.Context, embeds ...discord.Embed) error {
	_, err := c.disc.CreateMessage(ctx, c.ChannelID, discord.CreateMessageRequest{Embeds: embeds})
	return err
}

// HandlerFunc handles one command invocation.
type HandlerFunc func(ctx context.Context, cmd *CommandContext) error

// Command is a registered prefix command.
type Command struct {
	Name        string
	Description string
	AdminOnly   bool
	Handler     HandlerFunc
}

// ══════════════════════════════════════════════════════════════════════════════
// ROUTER
// ══════════════════════════════════════════════════════════════════════════════

// Router parses prefixed messages and dispatches them to registered
// command handlers.
type Router struct {
	cfg  *config.Config
	disc replyTransport
	log  *logger.Logger

	mu       sync.RWMutex
	commands map[string]Command
}

// NewRouter builds an empty command router.
func NewRouter(cfg *config.Config, disc replyTransport, log *logger.Logger) *Router {
	return &Router{
		cfg:      cfg,
		disc:     disc,
		log:      log.With(logger.Component("router")),
		commands: make(map[string]Command),
	}
}

// Register adds a command. Re-registering a name replaces the handler.
func (r *Router) Register(cmd Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[strings.ToLower(cmd.Name)] = cmd
}

// Dispatch routes a message if it is a prefixed command. It reports
// whether the message was consumed as a command.
func (r *Router) Dispatch(ctx context.Context, msg discord.Message) (bool, error) {
	prefix := r.cfg.Discord.CommandPrefix
	content := strings.TrimSpace(msg.Content)
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return false, nil
	}

	fields := strings.Fields(strings.TrimPrefix(content, prefix))
	if len(fields) == 0 {
		return false, nil
	}
	name := strings.ToLower(fields[0])

	cmdCtx := &CommandContext{
		UserID:    msg.Author.ID,
		Username:  msg.Author.Username,
		ChannelID: msg.ChannelID,
		MessageID: msg.ID,
		Args:      fields[1:],
		disc:      r.disc,
	}

	r.mu.RLock()
	cmd, ok := r.commands[name]
	r.mu.RUnlock()

	if !ok {
		return true, cmdCtx.Reply(ctx, r.unknownCommandText(name))
	}
	if cmd.AdminOnly && !r.cfg.IsAdmin(cmdCtx.UserID) {
		return true, cmdCtx.Reply(ctx, "🔒 That command is for admins only.")
	}

	r.log.Debug("dispatching command",
		logger.F("command", name),
		logger.F("user_id", cmdCtx.UserID))

	if err := cmd.Handler(ctx, cmdCtx); err != nil {
		r.log.Error("command failed",
			logger.F("command", name),
			logger.F("user_id", cmdCtx.UserID),
			logger.Err(err))
		return true, cmdCtx.Reply(ctx, "⚠️ Something went wrong running that command.")
	}
	return true, nil
}

// HelpText lists the registered commands, hiding admin-only ones unless
// the caller is an admin.
func (r *Router) HelpText(userID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)

	prefix := r.cfg.Discord.CommandPrefix
	var b strings.Builder
	b.WriteString("**Available commands**\n")
	for _, name := range names {
		cmd := r.commands[name]
		if cmd.AdminOnly && !r.cfg.IsAdmin(userID) {
			continue
		}
		fmt.Fprintf(&b, "`%s%s` — %s\n", prefix, cmd.Name, cmd.Description)
	}
	return b.String()
}

func (r *Router) unknownCommandText(name string) string {
	return fmt.Sprintf("Unknown command `%s%s`. Try `%shelp`.",
		r.cfg.Discord.CommandPrefix, name, r.cfg.Discord.CommandPrefix)
}
