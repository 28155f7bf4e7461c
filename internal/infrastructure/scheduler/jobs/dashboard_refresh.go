// Package jobs contains the scheduled jobs of the learning mentor bot.
package jobs

import (
	"context"

	"github.com/mentor-hub/learning-mentor/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// DASHBOARD REFRESH JOB
// ══════════════════════════════════════════════════════════════════════════════

// DashboardRenderer re-renders the live dashboard message from the current
// state snapshot. Read-only: it never mutates state.
type DashboardRenderer interface {
	Refresh(ctx context.Context) error
}

// DashboardRefreshJob keeps the dashboard message current.
type DashboardRefreshJob struct {
	renderer DashboardRenderer
	log      *logger.Logger
}

// NewDashboardRefreshJob creates the dashboard refresh job.
func NewDashboardRefreshJob(renderer DashboardRenderer, log *logger.Logger) *DashboardRefreshJob {
	return &DashboardRefreshJob{
		renderer: renderer,
		log:      log.With(logger.JobName("dashboard_refresh")),
	}
}

// Name returns the job name.
func (j *DashboardRefreshJob) Name() string { return "dashboard_refresh" }

// Description returns a human-readable description.
func (j *DashboardRefreshJob) Description() string {
	return "Re-renders the live dashboard message from the current state"
}

// Run executes the job.
func (j *DashboardRefreshJob) Run(ctx context.Context) error {
	return j.renderer.Refresh(ctx)
}
