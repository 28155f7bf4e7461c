package jobs

import (
	"context"
	"time"

	"github.com/mentor-hub/learning-mentor/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATE MAINTENANCE JOB
// ══════════════════════════════════════════════════════════════════════════════

// StateMaintainer prunes aged daily flags and writes backup snapshots.
type StateMaintainer interface {
	PruneFlags(ctx context.Context, retainDays int) (pruned int, err error)
	Backup(ctx context.Context, reason string) error
}

// StreakReminder nudges users whose streak is about to lapse. Returns the
// number of reminders sent; the reminder_sent flag keeps it to one per
// user per day.
type StreakReminder interface {
	SendStreakReminders(ctx context.Context) (sent int, err error)
	RefreshStreakHealth(ctx context.Context) error
}

// StateMaintenanceConfig tunes the maintenance job.
type StateMaintenanceConfig struct {
	// FlagRetentionDays controls how many days of daily flags survive.
	FlagRetentionDays int

	// BackupInterval is the minimum time between automatic snapshots.
	BackupInterval time.Duration
}

// DefaultStateMaintenanceConfig returns sensible defaults.
func DefaultStateMaintenanceConfig() StateMaintenanceConfig {
	return StateMaintenanceConfig{
		FlagRetentionDays: 7,
		BackupInterval:    24 * time.Hour,
	}
}

// StateMaintenanceJob keeps the state document lean and backed up, and
// sends streak-deadline reminders.
type StateMaintenanceJob struct {
	maintainer StateMaintainer
	reminder   StreakReminder
	config     StateMaintenanceConfig
	log        *logger.Logger

	lastBackup time.Time
}

// NewStateMaintenanceJob creates the maintenance job. reminder may be nil
// when reminders are disabled.
func NewStateMaintenanceJob(
	maintainer StateMaintainer,
	reminder StreakReminder,
	config StateMaintenanceConfig,
	log *logger.Logger,
) *StateMaintenanceJob {
	if config.FlagRetentionDays <= 0 {
		config.FlagRetentionDays = 7
	}
	if config.BackupInterval <= 0 {
		config.BackupInterval = 24 * time.Hour
	}

	return &StateMaintenanceJob{
		maintainer: maintainer,
		reminder:   reminder,
		config:     config,
		log:        log.With(logger.JobName("state_maintenance")),
	}
}

// Name returns the job name.
func (j *StateMaintenanceJob) Name() string { return "state_maintenance" }

// Description returns a human-readable description.
func (j *StateMaintenanceJob) Description() string {
	return "Prunes aged daily flags, snapshots state, and sends streak reminders"
}

// Run executes the job.
func (j *StateMaintenanceJob) Run(ctx context.Context) error {
	pruned, err := j.maintainer.PruneFlags(ctx, j.config.FlagRetentionDays)
	if err != nil {
		return err
	}
	if pruned > 0 {
		j.log.Info("aged flags pruned", logger.Int("dates", pruned))
	}

	if time.Since(j.lastBackup) >= j.config.BackupInterval {
		if err := j.maintainer.Backup(ctx, "scheduled"); err != nil {
			// A failed snapshot should not stop reminders.
			j.log.Warn("scheduled backup failed", logger.Err(err))
		} else {
			j.lastBackup = time.Now()
		}
	}

	if j.reminder != nil {
		sent, err := j.reminder.SendStreakReminders(ctx)
		if err != nil {
			return err
		}
		if sent > 0 {
			j.log.Info("streak reminders sent", logger.Int("sent", sent))
		}

		if err := j.reminder.RefreshStreakHealth(ctx); err != nil {
			return err
		}
	}

	return nil
}
