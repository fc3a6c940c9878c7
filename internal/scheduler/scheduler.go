package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/coverdeskhq/coverdesk/internal/models"
)

// Runner executes one scheduled report task end to end.
type Runner interface {
	Run(ctx context.Context, task *models.ReportTask) error
}

// ScheduleSource lists the tasks a pass considers.
type ScheduleSource interface {
	List(ctx context.Context) ([]*models.ReportTask, error)
}

// Due reports whether a task should run at now. A task that has never run
// is immediately due; otherwise it is due once a full period has elapsed
// since the last successful run.
func Due(now time.Time, lastRun *time.Time, period time.Duration) bool {
	if lastRun == nil {
		return true
	}
	return now.Sub(*lastRun) >= period
}

// PassResult summarizes one scheduler pass.
type PassResult struct {
	Considered int
	Ran        int
	Failed     int
}

// Scheduler runs due report tasks. Because last_run only advances on
// success, delivery is at-least-once: a crash after generation but before
// the mark lands reruns the task on the next pass.
type Scheduler struct {
	schedule ScheduleSource
	runner   Runner
	logger   *slog.Logger
	stopCh   chan struct{}
}

func New(schedule ScheduleSource, runner Runner, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		schedule: schedule,
		runner:   runner,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// RunPass evaluates every task once. Tasks fail independently; one task's
// error never prevents the rest of the pass from running.
func (s *Scheduler) RunPass(ctx context.Context) (PassResult, error) {
	tasks, err := s.schedule.List(ctx)
	if err != nil {
		s.logger.Error("failed to load report schedule", slog.Any("error", err))
		return PassResult{}, err
	}

	result := PassResult{Considered: len(tasks)}
	now := time.Now()

	for _, task := range tasks {
		if !Due(now, task.LastRun, task.Period()) {
			continue
		}

		if err := s.runTask(ctx, task); err != nil {
			result.Failed++
			s.logger.Error("report task failed",
				slog.String("task_type", task.TaskType),
				slog.Any("error", err))
			sentry.CaptureException(err)
			continue
		}

		result.Ran++
	}

	return result, nil
}

// runTask executes one task, converting a panic in a generator into an
// error so the pass survives it.
func (s *Scheduler) runTask(ctx context.Context, task *models.ReportTask) (err error) {
	defer func() {
		if r := recover(); r != nil {
			sentry.CurrentHub().Recover(r)
			err = models.ErrInternalServer
		}
	}()

	return s.runner.Run(ctx, task)
}

// Start runs passes on the given interval until Stop or context cancel.
// The first pass runs immediately.
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.pass(ctx)

	for {
		select {
		case <-ticker.C:
			s.pass(ctx)
		case <-s.stopCh:
			s.logger.Info("report scheduler stopped")
			return
		case <-ctx.Done():
			s.logger.Info("report scheduler context cancelled")
			return
		}
	}
}

func (s *Scheduler) pass(ctx context.Context) {
	passCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	result, err := s.RunPass(passCtx)
	if err != nil {
		return
	}

	if result.Ran > 0 || result.Failed > 0 {
		s.logger.Info("scheduler pass completed",
			slog.Int("considered", result.Considered),
			slog.Int("ran", result.Ran),
			slog.Int("failed", result.Failed))
	}
}

// Stop signals the scheduler loop to exit.
func (s *Scheduler) Stop() {
	close(s.stopCh)
}
