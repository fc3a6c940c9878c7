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

const clientColumns = "id, name, email, phone, address, created_by, created_at, updated_at"

type ClientRepository struct {
	pool *pgxpool.Pool
}

func NewClientRepository(db *database.DB) *ClientRepository {
	return &ClientRepository{pool: db.Pool}
}

func scanClientRow(scanner rowScanner) (*models.Client, error) {
	var client models.Client
	var createdBy *string

	err := scanner.Scan(
		&client.ID, &client.Name, &client.Email, &client.Phone,
		&client.Address, &createdBy, &client.CreatedAt, &client.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if createdBy != nil {
		client.CreatedBy = *createdBy
	}

	return &client, nil
}

func scanClientRows(rows pgx.Rows) ([]*models.Client, error) {
	defer rows.Close()

	clients := make([]*models.Client, 0)

	for rows.Next() {
		client, err := scanClientRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		clients = append(clients, client)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return clients, nil
}

func (r *ClientRepository) GetByID(ctx context.Context, id string) (*models.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE id = $1`

	return scanClientRow(r.pool.QueryRow(ctx, query, id))
}

func (r *ClientRepository) List(ctx context.Context, limit, offset int) ([]*models.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query clients: %w", err)
	}

	return scanClientRows(rows)
}

// Search matches clients by name or email, case-insensitively.
func (r *ClientRepository) Search(ctx context.Context, term string, limit, offset int) ([]*models.Client, error) {
	query := `
		SELECT ` + clientColumns + ` FROM clients
		WHERE name ILIKE '%' || $1 || '%' OR email ILIKE '%' || $1 || '%'
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, term, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to search clients: %w", err)
	}

	return scanClientRows(rows)
}

func (r *ClientRepository) Create(ctx context.Context, client *models.Client) (*models.Client, error) {
	client.ID = uuid.New().String()

	now := time.Now()
	client.CreatedAt = now
	client.UpdatedAt = now

	query := `
		INSERT INTO clients (id, name, email, phone, address, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + clientColumns

	return scanClientRow(r.pool.QueryRow(ctx, query,
		client.ID, client.Name, client.Email, client.Phone,
		client.Address, client.CreatedBy, client.CreatedAt, client.UpdatedAt,
	))
}

func (r *ClientRepository) Update(ctx context.Context, id string, client *models.Client) (*models.Client, error) {
	client.UpdatedAt = time.Now()

	query := `
		UPDATE clients SET name = $1, email = $2, phone = $3, address = $4, updated_at = $5
		WHERE id = $6
		RETURNING ` + clientColumns

	return scanClientRow(r.pool.QueryRow(ctx, query,
		client.Name, client.Email, client.Phone, client.Address, client.UpdatedAt, id,
	))
}

func (r *ClientRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM clients WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

func (r *ClientRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM clients`).Scan(&count)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return count, nil
}
