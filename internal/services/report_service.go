package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/coverdeskhq/coverdesk/internal/models"
)

// ReportScheduleRepository defines the interface for the report schedule
type ReportScheduleRepository interface {
	List(ctx context.Context) ([]*models.ReportTask, error)
	Get(ctx context.Context, taskType string) (*models.ReportTask, error)
	Upsert(ctx context.Context, task *models.ReportTask) error
	MarkRun(ctx context.Context, taskType string, ranAt time.Time) error
	Delete(ctx context.Context, taskType string) error
}

// ClaimAggregator and PolicyAggregator define the queries reports are
// built from
type ClaimAggregator interface {
	StatusTotals(ctx context.Context, since time.Time) (map[string]models.ClaimStatusTotal, error)
}

type PolicyAggregator interface {
	ListExpiringBefore(ctx context.Context, cutoff time.Time) ([]*models.Policy, error)
	PremiumTotal(ctx context.Context) (float64, error)
}

// ReportService generates report artifacts, keeps the latest artifact per
// task for download, and delivers to the configured recipient.
type ReportService struct {
	schedule ReportScheduleRepository
	claims   ClaimAggregator
	policies PolicyAggregator
	email    EmailService
	activity *ActivityService
	logger   *slog.Logger

	mu        sync.RWMutex
	artifacts map[string]*models.ReportArtifact
}

func NewReportService(schedule ReportScheduleRepository, claims ClaimAggregator, policies PolicyAggregator, email EmailService, activity *ActivityService, logger *slog.Logger) *ReportService {
	return &ReportService{
		schedule:  schedule,
		claims:    claims,
		policies:  policies,
		email:     email,
		activity:  activity,
		logger:    logger,
		artifacts: make(map[string]*models.ReportArtifact),
	}
}

// ReportTaskResponse represents a schedule entry in the HTTP response
type ReportTaskResponse struct {
	TaskType        string  `json:"task_type"`
	IntervalSeconds int64   `json:"interval_seconds"`
	Recipient       *string `json:"recipient,omitempty"`
	LastRun         *string `json:"last_run,omitempty"`
}

// ScheduleRequest is the payload for creating or updating a schedule entry
type ScheduleRequest struct {
	TaskType        string  `json:"task_type" validate:"required,min=1,max=60"`
	IntervalSeconds int64   `json:"interval_seconds" validate:"required,gt=0"`
	Recipient       *string `json:"recipient,omitempty" validate:"omitempty,email"`
}

// Schedule lists the configured report tasks.
func (s *ReportService) Schedule(ctx context.Context) ([]*ReportTaskResponse, error) {
	tasks, err := s.schedule.List(ctx)
	if err != nil {
		s.logger.Error("failed to list report schedule", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	responses := make([]*ReportTaskResponse, 0, len(tasks))
	for _, task := range tasks {
		responses = append(responses, taskModelToResponse(task))
	}
	return responses, nil
}

// ReportSummaryEntry pairs a schedule entry with the latest generated
// artifact's metadata, if any.
type ReportSummaryEntry struct {
	ReportTaskResponse
	GeneratedAt *string `json:"generated_at,omitempty"`
	SizeBytes   int     `json:"size_bytes,omitempty"`
}

// Summary lists every configured task alongside its latest artifact.
func (s *ReportService) Summary(ctx context.Context) ([]*ReportSummaryEntry, error) {
	tasks, err := s.schedule.List(ctx)
	if err != nil {
		s.logger.Error("failed to list report schedule", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]*ReportSummaryEntry, 0, len(tasks))
	for _, task := range tasks {
		entry := &ReportSummaryEntry{ReportTaskResponse: *taskModelToResponse(task)}
		if artifact, ok := s.artifacts[task.TaskType]; ok {
			generatedAt := artifact.GeneratedAt.Format(time.RFC3339)
			entry.GeneratedAt = &generatedAt
			entry.SizeBytes = len(artifact.Body)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// UpsertSchedule creates or reconfigures a task. Existing last_run survives
// an update, so reconfiguring an interval never forces an immediate rerun.
func (s *ReportService) UpsertSchedule(ctx context.Context, actor *models.AuthUser, req *ScheduleRequest, ipAddress string) (*ReportTaskResponse, error) {
	task := &models.ReportTask{
		TaskType:        req.TaskType,
		IntervalSeconds: req.IntervalSeconds,
		Recipient:       req.Recipient,
	}

	if err := s.schedule.Upsert(ctx, task); err != nil {
		s.logger.Error("failed to upsert report schedule", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	stored, err := s.schedule.Get(ctx, req.TaskType)
	if err != nil {
		return nil, err
	}

	s.activity.Record(ctx, actor.UserID, models.ActivityReportRun, "configured schedule "+req.TaskType, ipAddress)

	return taskModelToResponse(stored), nil
}

// DeleteSchedule removes a task from the schedule.
func (s *ReportService) DeleteSchedule(ctx context.Context, taskType string) error {
	return s.schedule.Delete(ctx, taskType)
}

// Generate builds the artifact for a task type and retains it for download.
func (s *ReportService) Generate(ctx context.Context, taskType string) (*models.ReportArtifact, error) {
	task, err := s.schedule.Get(ctx, taskType)
	if err != nil {
		return nil, err
	}

	body, err := s.buildReport(ctx, task)
	if err != nil {
		return nil, err
	}

	artifact := &models.ReportArtifact{
		ID:          fmt.Sprintf("%s-%d", taskType, time.Now().Unix()),
		TaskType:    taskType,
		ContentType: "text/plain; charset=utf-8",
		Body:        []byte(body),
		GeneratedAt: time.Now(),
	}

	s.mu.Lock()
	s.artifacts[taskType] = artifact
	s.mu.Unlock()

	return artifact, nil
}

// Run executes one scheduled pass for the task: generate, deliver, and only
// then advance last_run. A failed run leaves last_run untouched so the task
// is retried on the next pass.
func (s *ReportService) Run(ctx context.Context, task *models.ReportTask) error {
	started := time.Now()

	artifact, err := s.Generate(ctx, task.TaskType)
	if err != nil {
		return fmt.Errorf("report generation failed for %s: %w", task.TaskType, err)
	}

	if task.Recipient != nil && *task.Recipient != "" {
		subject := fmt.Sprintf("CoverDesk %s report", task.TaskType)
		if err := s.email.SendReport(ctx, *task.Recipient, subject, string(artifact.Body)); err != nil {
			return fmt.Errorf("report delivery failed for %s: %w", task.TaskType, err)
		}
	}

	if err := s.schedule.MarkRun(ctx, task.TaskType, started); err != nil {
		return fmt.Errorf("failed to mark run for %s: %w", task.TaskType, err)
	}

	s.logger.Info("report task completed",
		slog.String("task_type", task.TaskType),
		slog.Duration("elapsed", time.Since(started)))

	return nil
}

// LatestArtifact returns the most recently generated artifact for the task.
func (s *ReportService) LatestArtifact(taskType string) (*models.ReportArtifact, error) {
	s.mu.RLock()
	artifact, ok := s.artifacts[taskType]
	s.mu.RUnlock()

	if !ok {
		return nil, models.ErrNotFound
	}
	return artifact, nil
}

// buildReport renders a plain text summary covering the task's interval:
// claim totals by status, active premium volume, and policies expiring
// within the next 30 days.
func (s *ReportService) buildReport(ctx context.Context, task *models.ReportTask) (string, error) {
	now := time.Now()
	since := now.Add(-task.Period())

	totals, err := s.claims.StatusTotals(ctx, since)
	if err != nil {
		return "", err
	}

	premium, err := s.policies.PremiumTotal(ctx)
	if err != nil {
		return "", err
	}

	expiring, err := s.policies.ListExpiringBefore(ctx, now.AddDate(0, 0, 30))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CoverDesk %s report\n", task.TaskType)
	fmt.Fprintf(&b, "Generated: %s\n", now.Format(time.RFC3339))
	fmt.Fprintf(&b, "Covering:  %s to %s\n\n", since.Format(time.RFC3339), now.Format(time.RFC3339))

	fmt.Fprintf(&b, "Claims filed in period\n")
	for _, status := range []string{
		models.ClaimStatusSubmitted, models.ClaimStatusInReview,
		models.ClaimStatusApproved, models.ClaimStatusRejected, models.ClaimStatusPaid,
	} {
		total := totals[status]
		fmt.Fprintf(&b, "  %-10s %5d claims  $%.2f\n", status, total.Count, total.Amount)
	}

	fmt.Fprintf(&b, "\nActive premium volume: $%.2f\n", premium)

	fmt.Fprintf(&b, "\nPolicies expiring within 30 days: %d\n", len(expiring))
	for _, policy := range expiring {
		fmt.Fprintf(&b, "  %s (%s) ends %s\n", policy.PolicyNumber, policy.Type, policy.EndDate.Format("2006-01-02"))
	}

	return b.String(), nil
}

func taskModelToResponse(task *models.ReportTask) *ReportTaskResponse {
	resp := &ReportTaskResponse{
		TaskType:        task.TaskType,
		IntervalSeconds: task.IntervalSeconds,
		Recipient:       task.Recipient,
	}
	if task.LastRun != nil {
		lastRun := task.LastRun.Format(time.RFC3339)
		resp.LastRun = &lastRun
	}
	return resp
}
