package discord

import (
	"context"
	"strings"

	"github.com/mentor-hub/learning-mentor/config"
	"github.com/mentor-hub/learning-mentor/internal/application/mentor"
	"github.com/mentor-hub/learning-mentor/internal/domain/shared"
	"github.com/mentor-hub/learning-mentor/internal/domain/state"
	"github.com/mentor-hub/learning-mentor/internal/interface/discord/presenter"
	"github.com/mentor-hub/learning-mentor/internal/store"
	"github.com/mentor-hub/learning-mentor/pkg/logger"
	"github.com/mentor-hub/learning-mentor/pkg/timeutil"
)

// UserCommands implements the learner-facing commands.
type UserCommands struct {
	cfg    *config.Config
	store  *store.Store
	mentor *mentor.Service
	zone   *timeutil.Zone
	log    *logger.Logger
}

// NewUserCommands builds the learner command set.
func NewUserCommands(cfg *config.Config, st *store.Store, mentorSvc *mentor.Service, zone *timeutil.Zone, log *logger.Logger) *UserCommands {
	return &UserCommands{
		cfg:    cfg,
		store:  st,
		mentor: mentorSvc,
		zone:   zone,
		log:    log.With(logger.Component("commands")),
	}
}

// Register wires the learner commands into the router.
func (c *UserCommands) Register(r *Router) {
	r.Register(Command{Name: "help", Description: "List available commands", Handler: func(ctx context.Context, cmd *CommandContext) error {
		return cmd.Reply(ctx, r.HelpText(cmd.UserID))
	}})
	r.Register(Command{Name: "status", Description: "Your points, level and progress", Handler: c.status})
	r.Register(Command{Name: "streak", Description: "Your current streak and deadline", Handler: c.streak})
	r.Register(Command{Name: "badges", Description: "Your badge collection", Handler: c.badges})
	r.Register(Command{Name: "pathway", Description: "Career pathway progress (optionally: researcher)", Handler: c.pathway})
	r.Register(Command{Name: "weekly", Description: "AI summary of your last week", Handler: c.weekly})
	r.Register(Command{Name: "ask", Description: "Ask the mentor a question", Handler: c.ask})
}

// user loads the invoking user's record, replying directly when there is
// nothing to show. A nil record with a nil error means the reply was sent.
func (c *UserCommands) user(ctx context.Context, cmd *CommandContext) (*state.UserRecord, error) {
	if !c.cfg.IsTrackedUser(cmd.UserID) {
		return nil, cmd.Reply(ctx, "You're not on the tracked learners list.")
	}
	u, err := c.store.User(cmd.UserID)
	if shared.IsNotFound(err) {
		return nil, cmd.Reply(ctx, "No progress recorded yet. Post your first learning log to get started! 🌱")
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (c *UserCommands) status(ctx context.Context, cmd *CommandContext) error {
	u, err := c.user(ctx, cmd)
	if u == nil || err != nil {
		return err
	}
	return cmd.ReplyEmbed(ctx, presenter.StatusCard(u))
}

func (c *UserCommands) streak(ctx context.Context, cmd *CommandContext) error {
	u, err := c.user(ctx, cmd)
	if u == nil || err != nil {
		return err
	}
	return cmd.ReplyEmbed(ctx, presenter.StreakCard(u, c.zone))
}

func (c *UserCommands) badges(ctx context.Context, cmd *CommandContext) error {
	u, err := c.user(ctx, cmd)
	if u == nil || err != nil {
		return err
	}
	return cmd.ReplyEmbed(ctx, presenter.BadgesCard(u))
}

func (c *UserCommands) pathway(ctx context.Context, cmd *CommandContext) error {
	u, err := c.user(ctx, cmd)
	if u == nil || err != nil {
		return err
	}

	path := config.PathMLEngineer
	if len(cmd.Args) > 0 && strings.EqualFold(cmd.Args[0], "researcher") {
		path = config.PathAIResearcher
	}
	return cmd.ReplyEmbed(ctx, presenter.PathwayCard(u, path))
}

func (c *UserCommands) weekly(ctx context.Context, cmd *CommandContext) error {
	u, err := c.user(ctx, cmd)
	if u == nil || err != nil {
		return err
	}

	summary, err := c.mentor.WeeklySummary(ctx, cmd.UserID)
	if shared.IsNotFound(err) {
		return cmd.Reply(ctx, "No evaluations this week yet. Check back after your first nightly evaluation.")
	}
	if err != nil {
		return err
	}
	return cmd.ReplyEmbed(ctx, presenter.WeeklyCard(u.Username, summary))
}

func (c *UserCommands) ask(ctx context.Context, cmd *CommandContext) error {
	u, err := c.user(ctx, cmd)
	if u == nil || err != nil {
		return err
	}
	question := strings.TrimSpace(strings.Join(cmd.Args, " "))
	if question == "" {
		return cmd.Reply(ctx, "Ask me something, e.g. `"+c.cfg.Discord.CommandPrefix+"ask how do I get better at backpropagation?`")
	}
	return cmd.Reply(ctx, c.mentor.Answer(ctx, u, question))
}
