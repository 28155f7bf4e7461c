package jobs

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/mentor-hub/learning-mentor/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// NIGHTLY EVALUATION JOB
// ══════════════════════════════════════════════════════════════════════════════

// EvaluationRunner evaluates every user whose logs for the day have not
// been scored yet. Users with the evaluated flag set are skipped, so the
// run is safe to repeat after a crash.
type EvaluationRunner interface {
	EvaluateAll(ctx context.Context) (evaluated, skipped, failed int, err error)
}

// EvaluationStats records the outcome of an evaluation run.
type EvaluationStats struct {
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Evaluated   int
	Skipped     int
	Failed      int
}

// NightlyEvaluationJob runs the end-of-day evaluation for all users.
type NightlyEvaluationJob struct {
	runner EvaluationRunner
	log    *logger.Logger

	lastRunStats atomic.Value // *EvaluationStats
}

// NewNightlyEvaluationJob creates the nightly evaluation job.
func NewNightlyEvaluationJob(runner EvaluationRunner, log *logger.Logger) *NightlyEvaluationJob {
	return &NightlyEvaluationJob{
		runner: runner,
		log:    log.With(logger.JobName("nightly_evaluation")),
	}
}

// Name returns the job name.
func (j *NightlyEvaluationJob) Name() string { return "nightly_evaluation" }

// Description returns a human-readable description.
func (j *NightlyEvaluationJob) Description() string {
	return "Scores every user's logs for the day and delivers mentor feedback"
}

// Run executes the job.
func (j *NightlyEvaluationJob) Run(ctx context.Context) error {
	stats := &EvaluationStats{StartedAt: time.Now()}

	evaluated, skipped, failed, err := j.runner.EvaluateAll(ctx)
	stats.Evaluated = evaluated
	stats.Skipped = skipped
	stats.Failed = failed
	stats.CompletedAt = time.Now()
	stats.Duration = stats.CompletedAt.Sub(stats.StartedAt)
	j.lastRunStats.Store(stats)

	j.log.Info("evaluation run finished",
		logger.Int("evaluated", evaluated),
		logger.Int("skipped", skipped),
		logger.Int("failed", failed),
		logger.Duration("duration", stats.Duration))

	return err
}

// LastRunStats returns statistics from the most recent run, or nil.
func (j *NightlyEvaluationJob) LastRunStats() *EvaluationStats {
	stats := j.lastRunStats.Load()
	if stats == nil {
		return nil
	}
	return stats.(*EvaluationStats)
}
