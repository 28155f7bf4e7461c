package jobs

import (
	"context"

	"github.com/mentor-hub/learning-mentor/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// DAILY THREAD JOB
// ══════════════════════════════════════════════════════════════════════════════

// ThreadOpener opens today's personal thread for every tracked user that
// does not have one yet. Idempotent: users whose thread_created flag is
// already set for today are skipped.
type ThreadOpener interface {
	OpenDailyThreads(ctx context.Context) (created int, err error)
}

// DailyThreadJob creates per-user daily study threads each morning.
type DailyThreadJob struct {
	opener ThreadOpener
	log    *logger.Logger
}

// NewDailyThreadJob creates the daily thread job.
func NewDailyThreadJob(opener ThreadOpener, log *logger.Logger) *DailyThreadJob {
	return &DailyThreadJob{
		opener: opener,
		log:    log.With(logger.JobName("daily_thread")),
	}
}

// Name returns the job name.
func (j *DailyThreadJob) Name() string { return "daily_thread" }

// Description returns a human-readable description.
func (j *DailyThreadJob) Description() string {
	return "Opens per-user daily study threads"
}

// Run executes the job.
func (j *DailyThreadJob) Run(ctx context.Context) error {
	created, err := j.opener.OpenDailyThreads(ctx)
	if err != nil {
		return err
	}
	if created > 0 {
		j.log.Info("daily threads opened", logger.Int("created", created))
	}
	return nil
}
