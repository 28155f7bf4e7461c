package discord

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mentor-hub/learning-mentor/internal/application/admin"
	"github.com/mentor-hub/learning-mentor/internal/domain/shared"
	"github.com/mentor-hub/learning-mentor/internal/interface/discord/presenter"
	"github.com/mentor-hub/learning-mentor/pkg/logger"
)

// AdminCommands implements the !admin subcommand surface.
type AdminCommands struct {
	admin *admin.Service
	log   *logger.Logger
}

// NewAdminCommands builds the admin command set.
func NewAdminCommands(adminSvc *admin.Service, log *logger.Logger) *AdminCommands {
	return &AdminCommands{
		admin: adminSvc,
		log:   log.With(logger.Component("admin-commands")),
	}
}

// Register wires the admin command into the router.
func (c *AdminCommands) Register(r *Router) {
	r.Register(Command{
		Name:        "admin",
		Description: "Admin operations (reset_day, recalculate, set_points, set_streak, award_badge, backup, force_evaluate, health, cleanup)",
		AdminOnly:   true,
		Handler:     c.dispatch,
	})
}

func (c *AdminCommands) dispatch(ctx context.Context, cmd *CommandContext) error {
	if len(cmd.Args) == 0 {
		return cmd.Reply(ctx, c.usage())
	}
	sub := strings.ToLower(cmd.Args[0])
	args := cmd.Args[1:]

	c.log.Info("admin command",
		logger.F("subcommand", sub),
		logger.F("admin_id", cmd.UserID))

	switch sub {
	case "reset_day":
		return c.resetDay(ctx, cmd, args)
	case "recalculate":
		return c.recalculate(ctx, cmd, args)
	case "set_points":
		return c.setPoints(ctx, cmd, args)
	case "set_streak":
		return c.setStreak(ctx, cmd, args)
	case "award_badge":
		return c.awardBadge(ctx, cmd, args)
	case "backup":
		return c.backup(ctx, cmd)
	case "force_evaluate":
		return c.forceEvaluate(ctx, cmd, args)
	case "health":
		return c.health(ctx, cmd)
	case "cleanup":
		return c.cleanup(ctx, cmd)
	default:
		return cmd.Reply(ctx, "Unknown subcommand `"+sub+"`.\n"+c.usage())
	}
}

func (c *AdminCommands) resetDay(ctx context.Context, cmd *CommandContext, args []string) error {
	if len(args) != 1 {
		return cmd.Reply(ctx, "Usage: `admin reset_day YYYY-MM-DD`")
	}
	if err := c.admin.ResetDay(ctx, args[0]); err != nil {
		return c.replyError(ctx, cmd, err)
	}
	return cmd.Reply(ctx, "🧹 Daily flags cleared for "+args[0]+".")
}

func (c *AdminCommands) recalculate(ctx context.Context, cmd *CommandContext, args []string) error {
	if len(args) != 1 {
		return cmd.Reply(ctx, "Usage: `admin recalculate <user_id>`")
	}
	if err := cmd.Reply(ctx, "⏳ Recalculating from message history, this can take a moment..."); err != nil {
		return err
	}

	result, err := c.admin.Recalculate(ctx, args[0])
	if err != nil {
		return c.replyError(ctx, cmd, err)
	}
	return cmd.Reply(ctx, fmt.Sprintf(
		"✅ Recalculated <@%s>: scanned %d messages, %d qualified logs, %d points, streak %d (best %d), %d active days.",
		args[0], result.MessagesScanned, result.QualifiedLogs,
		result.Points, result.Streak, result.MaxStreak, result.DaysActive))
}

func (c *AdminCommands) setPoints(ctx context.Context, cmd *CommandContext, args []string) error {
	userID, n, ok := c.userAndNumber(args)
	if !ok {
		return cmd.Reply(ctx, "Usage: `admin set_points <user_id> <points>`")
	}
	if err := c.admin.SetPoints(ctx, userID, n); err != nil {
		return c.replyError(ctx, cmd, err)
	}
	return cmd.Reply(ctx, fmt.Sprintf("✅ Points for <@%s> set to %d.", userID, n))
}

func (c *AdminCommands) setStreak(ctx context.Context, cmd *CommandContext, args []string) error {
	userID, n, ok := c.userAndNumber(args)
	if !ok {
		return cmd.Reply(ctx, "Usage: `admin set_streak <user_id> <days>`")
	}
	if err := c.admin.SetStreak(ctx, userID, n); err != nil {
		return c.replyError(ctx, cmd, err)
	}
	return cmd.Reply(ctx, fmt.Sprintf("✅ Streak for <@%s> set to %d.", userID, n))
}

func (c *AdminCommands) awardBadge(ctx context.Context, cmd *CommandContext, args []string) error {
	if len(args) != 2 {
		return cmd.Reply(ctx, "Usage: `admin award_badge <user_id> <badge_id>`")
	}
	if err := c.admin.AwardBadge(ctx, args[0], args[1]); err != nil {
		return c.replyError(ctx, cmd, err)
	}
	return cmd.Reply(ctx, fmt.Sprintf("🏅 Badge `%s` awarded to <@%s>.", args[1], args[0]))
}

func (c *AdminCommands) backup(ctx context.Context, cmd *CommandContext) error {
	if err := c.admin.Backup(ctx); err != nil {
		return c.replyError(ctx, cmd, err)
	}
	return cmd.Reply(ctx, "💾 Backup written.")
}

func (c *AdminCommands) forceEvaluate(ctx context.Context, cmd *CommandContext, args []string) error {
	if len(args) != 1 {
		return cmd.Reply(ctx, "Usage: `admin force_evaluate <user_id>`")
	}
	eval, err := c.admin.ForceEvaluate(ctx, args[0])
	if err != nil {
		return c.replyError(ctx, cmd, err)
	}
	if eval == nil {
		return cmd.Reply(ctx, "No qualifying logs today for <@"+args[0]+">, nothing to evaluate.")
	}
	return cmd.Reply(ctx, fmt.Sprintf(
		"🌙 Evaluated <@%s> for %s: %d points, depth %.1f.",
		args[0], eval.Date, eval.PointsEarned, eval.Analysis.DepthScore))
}

func (c *AdminCommands) health(ctx context.Context, cmd *CommandContext) error {
	report, err := c.admin.Health(ctx)
	if err != nil {
		return c.replyError(ctx, cmd, err)
	}
	return cmd.ReplyEmbed(ctx, presenter.HealthCard(
		report.StateVersion, report.Users, report.FlagDates,
		report.OldestFlagDate, report.LastUpdated, report.TotalEvaluations))
}

func (c *AdminCommands) cleanup(ctx context.Context, cmd *CommandContext) error {
	result, err := c.admin.Cleanup(ctx)
	if err != nil {
		return c.replyError(ctx, cmd, err)
	}
	return cmd.Reply(ctx, fmt.Sprintf(
		"🧹 Cleanup done: %d stale flag dates pruned, %d untracked users removed.",
		result.FlagDatesPruned, result.UsersRemoved))
}

// replyError turns expected domain errors into user-facing messages and
// passes everything else up to the router's generic handler.
func (c *AdminCommands) replyError(ctx context.Context, cmd *CommandContext, err error) error {
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return cmd.Reply(ctx, "⚠️ "+err.Error())
	}
	return err
}

func (c *AdminCommands) userAndNumber(args []string) (string, int, bool) {
	if len(args) != 2 {
		return "", 0, false
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return "", 0, false
	}
	return args[0], n, true
}

func (c *AdminCommands) usage() string {
	return "**Admin subcommands**\n" +
		"`admin reset_day YYYY-MM-DD` — clear daily flags for a date\n" +
		"`admin recalculate <user_id>` — rebuild a user from message history\n" +
		"`admin set_points <user_id> <points>`\n" +
		"`admin set_streak <user_id> <days>`\n" +
		"`admin award_badge <user_id> <badge_id>`\n" +
		"`admin backup` — write a state backup now\n" +
		"`admin force_evaluate <user_id>` — run today's evaluation now\n" +
		"`admin health` — state document health report\n" +
		"`admin cleanup` — prune stale flags and untracked users"
}
