package integration

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/coverdeskhq/coverdesk/internal/database"
	"github.com/coverdeskhq/coverdesk/internal/models"
	pkgauth "github.com/coverdeskhq/coverdesk/pkg/auth"
)

// TestDB manages a PostgreSQL testcontainer and database operations
type TestDB struct {
	Container  testcontainers.Container
	ConnString string
	Pool       *pgxpool.Pool
	DB         *database.DB
}

// SetupTestDatabase creates a PostgreSQL testcontainer, runs migrations, returns TestDB
func SetupTestDatabase(ctx context.Context) (*TestDB, error) {
	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("coverdesk"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Goose needs a database/sql connection, so run migrations through the
	// stdlib adapter over the same pool config.
	sqlDB := stdlib.OpenDB(*pool.Config().ConnConfig)
	if err := database.Migrate(ctx, sqlDB); err != nil {
		sqlDB.Close()
		pool.Close()
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	sqlDB.Close()

	return &TestDB{
		Container:  container,
		ConnString: connStr,
		Pool:       pool,
		DB:         &database.DB{Pool: pool},
	}, nil
}

// Teardown stops the container and closes the connection pool
func (db *TestDB) Teardown(ctx context.Context) error {
	if db.Pool != nil {
		db.Pool.Close()
	}
	if db.Container != nil {
		return db.Container.Terminate(ctx)
	}
	return nil
}

// CleanupTables truncates all tables for test isolation
func (db *TestDB) CleanupTables(ctx context.Context) error {
	tables := []string{
		"claims",
		"policies",
		"clients",
		"rate_limits",
		"activity_logs",
		"settings",
		"report_schedule",
		"users",
	}

	for _, table := range tables {
		if _, err := db.Pool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)); err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}

	return nil
}

// SeedUser inserts a user with a hashed password
func SeedUser(ctx context.Context, pool *pgxpool.Pool, email, password, role string) (*models.User, error) {
	hashedPassword, err := pkgauth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	query := `
		INSERT INTO users (id, email, password_hash, name, role, status)
		VALUES ($1, $2, $3, $4, $5, 'active')
		RETURNING id, email, password_hash, name, role, status, failed_attempts, created_at, updated_at
	`

	var user models.User
	err = pool.QueryRow(ctx, query, uuid.NewString(), email, hashedPassword, "Test "+role, role).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Name,
		&user.Role,
		&user.Status,
		&user.FailedAttempts,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	return &user, nil
}

// SeedClient inserts a client record
func SeedClient(ctx context.Context, pool *pgxpool.Pool, name, email string) (string, error) {
	id := uuid.NewString()

	query := `
		INSERT INTO clients (id, name, email)
		VALUES ($1, $2, $3)
	`
	if _, err := pool.Exec(ctx, query, id, name, email); err != nil {
		return "", fmt.Errorf("failed to insert client: %w", err)
	}

	return id, nil
}

// SeedPolicy inserts an active policy for a client
func SeedPolicy(ctx context.Context, pool *pgxpool.Pool, clientID, policyNumber string) (string, error) {
	id := uuid.NewString()

	query := `
		INSERT INTO policies (id, policy_number, client_id, type, premium, status, start_date, end_date)
		VALUES ($1, $2, $3, 'auto', 1200.00, 'active', NOW() - INTERVAL '30 days', NOW() + INTERVAL '335 days')
	`
	if _, err := pool.Exec(ctx, query, id, policyNumber, clientID); err != nil {
		return "", fmt.Errorf("failed to insert policy: %w", err)
	}

	return id, nil
}
