package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/coverdeskhq/coverdesk/internal/database"
	"github.com/coverdeskhq/coverdesk/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ReportScheduleRepository struct {
	pool *pgxpool.Pool
}

func NewReportScheduleRepository(db *database.DB) *ReportScheduleRepository {
	return &ReportScheduleRepository{pool: db.Pool}
}

func (r *ReportScheduleRepository) List(ctx context.Context) ([]*models.ReportTask, error) {
	query := `
		SELECT task_type, interval_seconds, recipient, last_run, created_at
		FROM report_schedule ORDER BY task_type
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query report schedule: %w", err)
	}
	defer rows.Close()

	tasks := make([]*models.ReportTask, 0)
	for rows.Next() {
		var task models.ReportTask
		err := rows.Scan(&task.TaskType, &task.IntervalSeconds, &task.Recipient, &task.LastRun, &task.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report task: %w", err)
		}
		tasks = append(tasks, &task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return tasks, nil
}

func (r *ReportScheduleRepository) Get(ctx context.Context, taskType string) (*models.ReportTask, error) {
	query := `
		SELECT task_type, interval_seconds, recipient, last_run, created_at
		FROM report_schedule WHERE task_type = $1
	`

	var task models.ReportTask
	err := r.pool.QueryRow(ctx, query, taskType).Scan(
		&task.TaskType, &task.IntervalSeconds, &task.Recipient, &task.LastRun, &task.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &task, nil
}

// Upsert creates or updates a schedule entry, preserving last_run on update.
func (r *ReportScheduleRepository) Upsert(ctx context.Context, task *models.ReportTask) error {
	query := `
		INSERT INTO report_schedule (task_type, interval_seconds, recipient, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (task_type) DO UPDATE
		SET interval_seconds = EXCLUDED.interval_seconds, recipient = EXCLUDED.recipient
	`

	_, err := r.pool.Exec(ctx, query, task.TaskType, task.IntervalSeconds, task.Recipient)
	if err != nil {
		return database.MapPostgresError(err)
	}

	return nil
}

// MarkRun records a successful run. Failed runs never advance last_run, so
// the task stays due and is retried on the next pass.
func (r *ReportScheduleRepository) MarkRun(ctx context.Context, taskType string, ranAt time.Time) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE report_schedule SET last_run = $1 WHERE task_type = $2`,
		ranAt, taskType,
	)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

func (r *ReportScheduleRepository) Delete(ctx context.Context, taskType string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM report_schedule WHERE task_type = $1`, taskType)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}
