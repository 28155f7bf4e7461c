// Package main is the entry point for the learning-mentor Discord bot.
//
// The bot watches a learning channel, scores study logs, keeps streaks
// and badges, runs a nightly AI evaluation, and persists all state in a
// pinned Discord message. Everything is wired here: configuration,
// state store, Discord and Gemini clients, application services, the
// scheduler and the polling loop.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mentor-hub/learning-mentor/config"
	"github.com/mentor-hub/learning-mentor/internal/application/admin"
	"github.com/mentor-hub/learning-mentor/internal/application/evaluator"
	"github.com/mentor-hub/learning-mentor/internal/application/maintenance"
	"github.com/mentor-hub/learning-mentor/internal/application/mentor"
	"github.com/mentor-hub/learning-mentor/internal/application/tracker"
	discordapi "github.com/mentor-hub/learning-mentor/internal/infrastructure/external/discord"
	"github.com/mentor-hub/learning-mentor/internal/infrastructure/external/gemini"
	"github.com/mentor-hub/learning-mentor/internal/infrastructure/messaging"
	"github.com/mentor-hub/learning-mentor/internal/infrastructure/persistence/discordstate"
	"github.com/mentor-hub/learning-mentor/internal/infrastructure/scheduler"
	"github.com/mentor-hub/learning-mentor/internal/infrastructure/scheduler/jobs"
	"github.com/mentor-hub/learning-mentor/internal/interface/discord"
	"github.com/mentor-hub/learning-mentor/internal/interface/discord/presenter"
	httpserver "github.com/mentor-hub/learning-mentor/internal/interface/http"
	"github.com/mentor-hub/learning-mentor/internal/store"
	"github.com/mentor-hub/learning-mentor/pkg/logger"
	"github.com/mentor-hub/learning-mentor/pkg/timeutil"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     logger.ParseLevel(cfg.Observability.LogLevel),
		AddCaller: cfg.App.Debug,
	})

	if err := run(cfg, log); err != nil {
		log.Error("bot exited with error", logger.Err(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx := context.Background()
	zone := timeutil.NewZone(cfg.App.Timezone, cfg.Tracking.StreakGraceHour)

	log.Info("starting learning mentor",
		logger.F("version", cfg.App.Version),
		logger.F("environment", string(cfg.App.Environment)),
		logger.F("timezone", cfg.App.Timezone),
		logger.F("tracked_users", len(cfg.Tracking.UserIDs)))

	// ── Infrastructure ──────────────────────────────────────────────────

	discordClient := discordapi.NewClient(discordapi.ClientConfig{
		Token:   cfg.Discord.Token,
		Timeout: cfg.Discord.RequestTimeout,
		Logger:  log,
	})

	persister := discordstate.New(discordClient, cfg.Discord.GuildID, cfg.Discord.StateChannelID, zone, log)
	st := store.New(persister, zone, log)
	if err := st.Load(ctx, cfg.App.Version); err != nil {
		return fmt.Errorf("load state: %w", err)
	}

	geminiClient := gemini.NewClient(gemini.ClientConfig{
		APIKey:            cfg.Gemini.APIKey,
		Model:             cfg.Gemini.Model,
		BaseURL:           cfg.Gemini.BaseURL,
		Temperature:       cfg.Gemini.Temperature,
		Timeout:           cfg.Gemini.RequestTimeout,
		DailyLimitPerUser: cfg.Gemini.DailyLimitPerUser,
		Zone:              zone,
		Logger:            log,
	})

	bus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{
		AsyncMode:      true,
		WorkerPoolSize: 4,
		Logger:         log,
	})
	defer bus.Close()

	// ── Application services ────────────────────────────────────────────

	trackerSvc := tracker.New(cfg, st, discordClient, zone, bus, log)
	evaluatorSvc := evaluator.New(cfg, st, discordClient, geminiClient, zone, bus, log)
	mentorSvc := mentor.New(cfg, st, discordClient, geminiClient, zone, bus, log)
	maintenanceSvc := maintenance.New(cfg, st, discordClient, zone, bus, log)
	adminSvc := admin.New(cfg, st, discordClient, evaluatorSvc, zone, log)

	// ── Discord surface ─────────────────────────────────────────────────

	router := discord.NewRouter(cfg, discordClient, log)
	discord.NewUserCommands(cfg, st, mentorSvc, zone, log).Register(router)
	discord.NewAdminCommands(adminSvc, log).Register(router)

	announcer := discord.NewAnnouncer(cfg, discordClient, log)
	if err := announcer.Subscribe(bus); err != nil {
		return fmt.Errorf("subscribe announcer: %w", err)
	}

	bot := discord.NewBot(cfg, st, discordClient, router, mentorSvc, trackerSvc, log)

	// ── Scheduler ───────────────────────────────────────────────────────

	sched := scheduler.New(scheduler.Config{
		Logger:   log,
		Timezone: cfg.App.Location,
	})

	dashboard := presenter.NewDashboard(cfg, st, discordClient, zone, log)

	if cfg.Scheduler.Enabled {
		if err := registerJobs(cfg, sched, dashboard, trackerSvc, evaluatorSvc, maintenanceSvc, log); err != nil {
			return fmt.Errorf("register jobs: %w", err)
		}
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		defer func() { _ = sched.Stop() }()
	}

	// ── Observability ───────────────────────────────────────────────────

	if cfg.Observability.HealthEnabled {
		httpCfg := httpserver.DefaultConfig()
		httpCfg.Port = cfg.Observability.HealthPort

		checker := httpserver.HealthCheckerFunc(func(ctx context.Context) error {
			_, err := st.Snapshot()
			return err
		})
		srv := httpserver.NewServer(httpCfg, checker, botStats{bot}, cfg.App.Version, log)
		go func() {
			if err := srv.Start(); err != nil {
				log.Error("http server failed", logger.Err(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	// ── Run until signalled ─────────────────────────────────────────────

	if err := bot.Start(ctx); err != nil {
		return fmt.Errorf("start bot: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("shutdown signal received", logger.F("signal", sig.String()))

	bot.Stop(cfg.App.ShutdownTimeout)

	if cfg.Features.IsEnabled(config.FeatureAutoBackup) {
		backupCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		if err := maintenanceSvc.Backup(backupCtx, "shutdown"); err != nil {
			log.Warn("shutdown backup failed", logger.Err(err))
		}
		cancel()
	}

	log.Info("shutdown complete")
	return nil
}

// registerJobs wires the four scheduled jobs, honoring feature flags.
func registerJobs(
	cfg *config.Config,
	sched *scheduler.Scheduler,
	dashboard *presenter.Dashboard,
	trackerSvc *tracker.Service,
	evaluatorSvc *evaluator.Service,
	maintenanceSvc *maintenance.Service,
	log *logger.Logger,
) error {
	loc := cfg.App.Location

	if cfg.Features.IsEnabled(config.FeatureDashboard) && cfg.Discord.DashboardChannelID != "" {
		job := jobs.NewDashboardRefreshJob(dashboard, log)
		if err := sched.Register(job, scheduler.NewIntervalSchedule(cfg.Scheduler.DashboardRefreshInterval)); err != nil {
			return err
		}
	}

	if cfg.Features.IsEnabled(config.FeatureDailyThreads) && cfg.Discord.DailyThreadsChannelID != "" {
		job := jobs.NewDailyThreadJob(trackerSvc, log)
		if err := sched.Register(job, scheduler.NewDailySchedule(cfg.Scheduler.DailyThreadHour, cfg.Scheduler.DailyThreadMinute, loc)); err != nil {
			return err
		}
	}

	evalJob := jobs.NewNightlyEvaluationJob(evaluatorSvc, log)
	if err := sched.Register(evalJob, scheduler.NewDailySchedule(cfg.Scheduler.EvaluationHour, cfg.Scheduler.EvaluationMinute, loc)); err != nil {
		return err
	}

	var reminder jobs.StreakReminder
	if cfg.Features.IsEnabled(config.FeatureStreakReminder) {
		reminder = maintenanceSvc
	}
	maintJob := jobs.NewStateMaintenanceJob(maintenanceSvc, reminder, jobs.StateMaintenanceConfig{
		FlagRetentionDays: cfg.Tracking.DailyFlagRetentionDays,
	}, log)
	return sched.Register(maintJob, scheduler.NewIntervalSchedule(cfg.Scheduler.MaintenanceInterval))
}

// botStats adapts the bot's counters to the stats endpoint.
type botStats struct{ bot *discord.Bot }

func (b botStats) Stats() map[string]any {
	s := b.bot.GetStats()
	return map[string]any{
		"started_at":        s.StartedAt,
		"poll_cycles":       s.PollCycles,
		"messages_seen":     s.MessagesSeen,
		"messages_handled":  s.MessagesHandled,
		"commands_handled":  s.CommandsHandled,
		"questions_handled": s.QuestionsHandled,
		"errors":            s.ErrorsCount,
	}
}
