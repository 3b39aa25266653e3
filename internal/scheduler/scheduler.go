// Package scheduler wraps robfig/cron for the daemon command: it runs the
// orchestrator's step loop on a fixed schedule.
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/marcus/crewd/internal/logging"
)

// Job is a scheduled unit of work.
type Job func(ctx context.Context)

// Scheduler runs jobs on cron schedules.
type Scheduler struct {
	cron   *cron.Cron
	logger *logging.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a stopped scheduler.
func New(logger *logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Component("scheduler")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// ScheduleCron registers a job under a standard 5-field cron expression.
func (s *Scheduler) ScheduleCron(expr string, job Job) (cron.EntryID, error) {
	id, err := s.cron.AddFunc(expr, func() {
		s.logger.DebugCtx("running scheduled job", map[string]any{"schedule": expr})
		job(s.ctx)
	})
	if err != nil {
		return 0, fmt.Errorf("schedule %q: %w", expr, err)
	}
	s.logger.InfoCtx("job scheduled", map[string]any{"schedule": expr})
	return id, nil
}

// Start begins running scheduled jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to finish.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}
