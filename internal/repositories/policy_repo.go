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

const policyColumns = "id, policy_number, client_id, agent_id, type, premium, status, start_date, end_date, created_at, updated_at"

type PolicyRepository struct {
	pool *pgxpool.Pool
}

func NewPolicyRepository(db *database.DB) *PolicyRepository {
	return &PolicyRepository{pool: db.Pool}
}

func scanPolicyRow(scanner rowScanner) (*models.Policy, error) {
	var policy models.Policy
	var agentID *string

	err := scanner.Scan(
		&policy.ID, &policy.PolicyNumber, &policy.ClientID, &agentID,
		&policy.Type, &policy.Premium, &policy.Status,
		&policy.StartDate, &policy.EndDate,
		&policy.CreatedAt, &policy.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if agentID != nil {
		policy.AgentID = *agentID
	}

	return &policy, nil
}

func scanPolicyRows(rows pgx.Rows) ([]*models.Policy, error) {
	defer rows.Close()

	policies := make([]*models.Policy, 0)

	for rows.Next() {
		policy, err := scanPolicyRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan policy: %w", err)
		}
		policies = append(policies, policy)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return policies, nil
}

func (r *PolicyRepository) GetByID(ctx context.Context, id string) (*models.Policy, error) {
	query := `SELECT ` + policyColumns + ` FROM policies WHERE id = $1`

	return scanPolicyRow(r.pool.QueryRow(ctx, query, id))
}

func (r *PolicyRepository) List(ctx context.Context, limit, offset int) ([]*models.Policy, error) {
	query := `SELECT ` + policyColumns + ` FROM policies ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query policies: %w", err)
	}

	return scanPolicyRows(rows)
}

func (r *PolicyRepository) ListByClient(ctx context.Context, clientID string, limit, offset int) ([]*models.Policy, error) {
	query := `SELECT ` + policyColumns + ` FROM policies WHERE client_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, clientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query policies: %w", err)
	}

	return scanPolicyRows(rows)
}

// ListExpiringBefore returns active policies whose end date falls before the
// cutoff. The scheduled expiry report is built from this set.
func (r *PolicyRepository) ListExpiringBefore(ctx context.Context, cutoff time.Time) ([]*models.Policy, error) {
	query := `
		SELECT ` + policyColumns + ` FROM policies
		WHERE status = 'active' AND end_date < $1
		ORDER BY end_date ASC
	`

	rows, err := r.pool.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query expiring policies: %w", err)
	}

	return scanPolicyRows(rows)
}

func (r *PolicyRepository) Create(ctx context.Context, policy *models.Policy) (*models.Policy, error) {
	policy.ID = uuid.New().String()

	now := time.Now()
	policy.CreatedAt = now
	policy.UpdatedAt = now

	if policy.Status == "" {
		policy.Status = models.PolicyStatusActive
	}

	query := `
		INSERT INTO policies (id, policy_number, client_id, agent_id, type, premium, status, start_date, end_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + policyColumns

	return scanPolicyRow(r.pool.QueryRow(ctx, query,
		policy.ID, policy.PolicyNumber, policy.ClientID, policy.AgentID,
		policy.Type, policy.Premium, policy.Status,
		policy.StartDate, policy.EndDate,
		policy.CreatedAt, policy.UpdatedAt,
	))
}

func (r *PolicyRepository) Update(ctx context.Context, id string, policy *models.Policy) (*models.Policy, error) {
	policy.UpdatedAt = time.Now()

	query := `
		UPDATE policies SET type = $1, premium = $2, status = $3, start_date = $4, end_date = $5, updated_at = $6
		WHERE id = $7
		RETURNING ` + policyColumns

	return scanPolicyRow(r.pool.QueryRow(ctx, query,
		policy.Type, policy.Premium, policy.Status,
		policy.StartDate, policy.EndDate, policy.UpdatedAt, id,
	))
}

func (r *PolicyRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM policies WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

func (r *PolicyRepository) CountByStatus(ctx context.Context, status string) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM policies WHERE status = $1`, status).Scan(&count)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return count, nil
}

// PremiumTotal sums premiums across active policies.
func (r *PolicyRepository) PremiumTotal(ctx context.Context) (float64, error) {
	var total float64
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(premium), 0) FROM policies WHERE status = 'active'`,
	).Scan(&total)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return total, nil
}
