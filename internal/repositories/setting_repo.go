package repositories

import (
	"context"
	"fmt"

	"github.com/coverdeskhq/coverdesk/internal/database"
	"github.com/coverdeskhq/coverdesk/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SettingRepository struct {
	pool *pgxpool.Pool
}

func NewSettingRepository(db *database.DB) *SettingRepository {
	return &SettingRepository{pool: db.Pool}
}

func (r *SettingRepository) Get(ctx context.Context, key string) (*models.Setting, error) {
	query := `SELECT key, value, updated_by, updated_at FROM settings WHERE key = $1`

	var setting models.Setting
	var updatedBy *string
	err := r.pool.QueryRow(ctx, query, key).Scan(&setting.Key, &setting.Value, &updatedBy, &setting.UpdatedAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	if updatedBy != nil {
		setting.UpdatedBy = *updatedBy
	}

	return &setting, nil
}

func (r *SettingRepository) List(ctx context.Context) ([]*models.Setting, error) {
	query := `SELECT key, value, updated_by, updated_at FROM settings ORDER BY key`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	settings := make([]*models.Setting, 0)
	for rows.Next() {
		var setting models.Setting
		var updatedBy *string
		if err := rows.Scan(&setting.Key, &setting.Value, &updatedBy, &setting.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		if updatedBy != nil {
			setting.UpdatedBy = *updatedBy
		}
		settings = append(settings, &setting)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return settings, nil
}

func (r *SettingRepository) Upsert(ctx context.Context, setting *models.Setting) error {
	query := `
		INSERT INTO settings (key, value, updated_by, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, updated_by = EXCLUDED.updated_by, updated_at = NOW()
	`

	_, err := r.pool.Exec(ctx, query, setting.Key, setting.Value, setting.UpdatedBy)
	if err != nil {
		return database.MapPostgresError(err)
	}

	return nil
}
