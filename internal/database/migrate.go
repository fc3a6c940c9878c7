package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"

	"github.com/coverdeskhq/coverdesk/internal/config"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrate applies pending goose migrations over an existing database/sql
// connection. Integration tests use this directly against a container.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrationFiles)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// RunMigrations applies pending goose migrations. It opens its own
// database/sql connection because goose does not speak pgx pools.
func RunMigrations(cfg *config.DatabaseConfig, logger *slog.Logger) error {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer db.Close()

	if err := Migrate(context.Background(), db); err != nil {
		return err
	}

	version, err := goose.GetDBVersion(db)
	if err != nil {
		return fmt.Errorf("read migration version: %w", err)
	}

	logger.Info("database migrations applied", slog.Int64("version", version))
	return nil
}
