package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/coverdeskhq/coverdesk/internal/database"
	"github.com/coverdeskhq/coverdesk/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ActivityLogRepository struct {
	pool *pgxpool.Pool
}

func NewActivityLogRepository(db *database.DB) *ActivityLogRepository {
	return &ActivityLogRepository{pool: db.Pool}
}

func (r *ActivityLogRepository) Create(ctx context.Context, entry *models.ActivityLog) error {
	entry.ID = uuid.New().String()
	entry.CreatedAt = time.Now()

	query := `
		INSERT INTO activity_logs (id, user_id, action, details, ip_address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query,
		entry.ID, entry.UserID, entry.Action, entry.Details, entry.IPAddress, entry.CreatedAt,
	)
	if err != nil {
		return database.MapPostgresError(err)
	}

	return nil
}

func (r *ActivityLogRepository) ListRecent(ctx context.Context, limit int) ([]*models.ActivityLog, error) {
	query := `
		SELECT id, user_id, action, details, ip_address, created_at
		FROM activity_logs ORDER BY created_at DESC LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity logs: %w", err)
	}
	defer rows.Close()

	entries := make([]*models.ActivityLog, 0)
	for rows.Next() {
		var entry models.ActivityLog
		err := rows.Scan(&entry.ID, &entry.UserID, &entry.Action, &entry.Details, &entry.IPAddress, &entry.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity log: %w", err)
		}
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return entries, nil
}

func (r *ActivityLogRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.ActivityLog, error) {
	query := `
		SELECT id, user_id, action, details, ip_address, created_at
		FROM activity_logs WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity logs: %w", err)
	}
	defer rows.Close()

	entries := make([]*models.ActivityLog, 0)
	for rows.Next() {
		var entry models.ActivityLog
		err := rows.Scan(&entry.ID, &entry.UserID, &entry.Action, &entry.Details, &entry.IPAddress, &entry.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity log: %w", err)
		}
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return entries, nil
}

// DeleteOlderThan purges audit entries past the retention horizon.
func (r *ActivityLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM activity_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return result.RowsAffected(), nil
}
