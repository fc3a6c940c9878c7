package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/coverdeskhq/coverdesk/internal/database"
	"github.com/coverdeskhq/coverdesk/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const claimColumns = "id, claim_number, policy_id, amount, status, description, filed_by, filed_at, resolved_at"

type ClaimRepository struct {
	pool *pgxpool.Pool
}

func NewClaimRepository(db *database.DB) *ClaimRepository {
	return &ClaimRepository{pool: db.Pool}
}

func scanClaimRow(scanner rowScanner) (*models.Claim, error) {
	var claim models.Claim
	var filedBy *string

	err := scanner.Scan(
		&claim.ID, &claim.ClaimNumber, &claim.PolicyID, &claim.Amount,
		&claim.Status, &claim.Description, &filedBy,
		&claim.FiledAt, &claim.ResolvedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if filedBy != nil {
		claim.FiledBy = *filedBy
	}

	return &claim, nil
}

func scanClaimRows(rows pgx.Rows) ([]*models.Claim, error) {
	defer rows.Close()

	claims := make([]*models.Claim, 0)

	for rows.Next() {
		claim, err := scanClaimRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan claim: %w", err)
		}
		claims = append(claims, claim)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return claims, nil
}

func (r *ClaimRepository) GetByID(ctx context.Context, id string) (*models.Claim, error) {
	query := `SELECT ` + claimColumns + ` FROM claims WHERE id = $1`

	return scanClaimRow(r.pool.QueryRow(ctx, query, id))
}

func (r *ClaimRepository) List(ctx context.Context, limit, offset int) ([]*models.Claim, error) {
	query := `SELECT ` + claimColumns + ` FROM claims ORDER BY filed_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query claims: %w", err)
	}

	return scanClaimRows(rows)
}

func (r *ClaimRepository) ListByPolicy(ctx context.Context, policyID string, limit, offset int) ([]*models.Claim, error) {
	query := `SELECT ` + claimColumns + ` FROM claims WHERE policy_id = $1 ORDER BY filed_at DESC LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, policyID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query claims: %w", err)
	}

	return scanClaimRows(rows)
}

func (r *ClaimRepository) ListByStatus(ctx context.Context, status string, limit, offset int) ([]*models.Claim, error) {
	query := `SELECT ` + claimColumns + ` FROM claims WHERE status = $1 ORDER BY filed_at DESC LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query claims: %w", err)
	}

	return scanClaimRows(rows)
}

func (r *ClaimRepository) Create(ctx context.Context, claim *models.Claim) (*models.Claim, error) {
	claim.ID = uuid.New().String()
	claim.FiledAt = time.Now()

	if claim.Status == "" {
		claim.Status = models.ClaimStatusSubmitted
	}

	query := `
		INSERT INTO claims (id, claim_number, policy_id, amount, status, description, filed_by, filed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + claimColumns

	return scanClaimRow(r.pool.QueryRow(ctx, query,
		claim.ID, claim.ClaimNumber, claim.PolicyID, claim.Amount,
		claim.Status, claim.Description, claim.FiledBy, claim.FiledAt,
	))
}

// UpdateStatus transitions a claim and stamps resolved_at when the new
// status is terminal.
func (r *ClaimRepository) UpdateStatus(ctx context.Context, id, status string) (*models.Claim, error) {
	var resolvedAt *time.Time
	switch status {
	case models.ClaimStatusApproved, models.ClaimStatusRejected, models.ClaimStatusPaid:
		now := time.Now()
		resolvedAt = &now
	}

	query := `
		UPDATE claims SET status = $1, resolved_at = $2
		WHERE id = $3
		RETURNING ` + claimColumns

	return scanClaimRow(r.pool.QueryRow(ctx, query, status, resolvedAt, id))
}

func (r *ClaimRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM claims WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

func (r *ClaimRepository) CountByStatus(ctx context.Context, status string) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM claims WHERE status = $1`, status).Scan(&count)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return count, nil
}

// StatusTotals returns claim counts and amounts grouped by status, used by
// scheduled reports and the dashboard.
func (r *ClaimRepository) StatusTotals(ctx context.Context, since time.Time) (map[string]models.ClaimStatusTotal, error) {
	query := `
		SELECT status, COUNT(*), COALESCE(SUM(amount), 0)
		FROM claims WHERE filed_at >= $1
		GROUP BY status
	`

	rows, err := r.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query claim totals: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]models.ClaimStatusTotal)
	for rows.Next() {
		var status string
		var total models.ClaimStatusTotal
		if err := rows.Scan(&status, &total.Count, &total.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan claim totals: %w", err)
		}
		totals[status] = total
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return totals, nil
}
