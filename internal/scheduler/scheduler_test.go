package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/coverdeskhq/coverdesk/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDue(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	day := 24 * time.Hour

	t.Run("never run is due", func(t *testing.T) {
		assert.True(t, Due(now, nil, day))
	})

	t.Run("period elapsed is due", func(t *testing.T) {
		last := now.Add(-day - time.Second)
		assert.True(t, Due(now, &last, day))
	})

	t.Run("exactly one period is due", func(t *testing.T) {
		last := now.Add(-day)
		assert.True(t, Due(now, &last, day))
	})

	t.Run("inside period is not due", func(t *testing.T) {
		last := now.Add(-day + time.Minute)
		assert.False(t, Due(now, &last, day))
	})
}

// fakeSchedule is an in-memory ScheduleSource that mimics the success-only
// last_run advance.
type fakeSchedule struct {
	mu    sync.Mutex
	tasks []*models.ReportTask
}

func (f *fakeSchedule) List(ctx context.Context) ([]*models.ReportTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]*models.ReportTask, len(f.tasks))
	for i, task := range f.tasks {
		copied := *task
		out[i] = &copied
	}
	return out, nil
}

func (f *fakeSchedule) markRun(taskType string, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, task := range f.tasks {
		if task.TaskType == taskType {
			ran := at
			task.LastRun = &ran
		}
	}
}

// fakeRunner records run counts and fails configured task types.
type fakeRunner struct {
	mu       sync.Mutex
	schedule *fakeSchedule
	failing  map[string]bool
	runs     map[string]int
}

func newFakeRunner(schedule *fakeSchedule) *fakeRunner {
	return &fakeRunner{
		schedule: schedule,
		failing:  make(map[string]bool),
		runs:     make(map[string]int),
	}
}

func (r *fakeRunner) Run(ctx context.Context, task *models.ReportTask) error {
	r.mu.Lock()
	r.runs[task.TaskType]++
	fail := r.failing[task.TaskType]
	r.mu.Unlock()

	if fail {
		return errors.New("generation failed")
	}

	r.schedule.markRun(task.TaskType, time.Now())
	return nil
}

func (r *fakeRunner) runCount(taskType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs[taskType]
}

func task(taskType string, interval int64, lastRun *time.Time) *models.ReportTask {
	return &models.ReportTask{
		TaskType:        taskType,
		IntervalSeconds: interval,
		LastRun:         lastRun,
	}
}

func TestScheduler_RunsDueTasksOnly(t *testing.T) {
	recent := time.Now().Add(-time.Minute)
	schedule := &fakeSchedule{tasks: []*models.ReportTask{
		task("daily", 86400, nil),      // never run, due
		task("weekly", 604800, &recent), // ran a minute ago, not due
	}}
	runner := newFakeRunner(schedule)
	s := New(schedule, runner, slog.Default())

	result, err := s.RunPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Considered)
	assert.Equal(t, 1, result.Ran)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 1, runner.runCount("daily"))
	assert.Equal(t, 0, runner.runCount("weekly"))
}

func TestScheduler_SecondPassDoesNotRerun(t *testing.T) {
	schedule := &fakeSchedule{tasks: []*models.ReportTask{
		task("daily", 86400, nil),
	}}
	runner := newFakeRunner(schedule)
	s := New(schedule, runner, slog.Default())
	ctx := context.Background()

	_, err := s.RunPass(ctx)
	require.NoError(t, err)

	// last_run advanced, so an immediate second pass skips the task.
	result, err := s.RunPass(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Ran)
	assert.Equal(t, 1, runner.runCount("daily"))
}

func TestScheduler_FailureDoesNotAdvance(t *testing.T) {
	schedule := &fakeSchedule{tasks: []*models.ReportTask{
		task("daily", 86400, nil),
	}}
	runner := newFakeRunner(schedule)
	runner.failing["daily"] = true
	s := New(schedule, runner, slog.Default())
	ctx := context.Background()

	result, err := s.RunPass(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)

	// The task stays due and is retried.
	result, err = s.RunPass(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 2, runner.runCount("daily"))
}

func TestScheduler_TasksFailIndependently(t *testing.T) {
	schedule := &fakeSchedule{tasks: []*models.ReportTask{
		task("daily", 86400, nil),
		task("weekly", 604800, nil),
		task("monthly", 2592000, nil),
	}}
	runner := newFakeRunner(schedule)
	runner.failing["weekly"] = true
	s := New(schedule, runner, slog.Default())

	result, err := s.RunPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Ran)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, runner.runCount("daily"))
	assert.Equal(t, 1, runner.runCount("monthly"))
}

type panickingRunner struct{}

func (panickingRunner) Run(ctx context.Context, task *models.ReportTask) error {
	panic("generator blew up")
}

func TestScheduler_PanicIsContained(t *testing.T) {
	schedule := &fakeSchedule{tasks: []*models.ReportTask{
		task("daily", 86400, nil),
	}}
	s := New(schedule, panickingRunner{}, slog.Default())

	result, err := s.RunPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
}
