package repositories

import (
	"context"
	"time"

	"github.com/coverdeskhq/coverdesk/internal/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// RateLimitRepository stores the append-only action log the sliding-window
// limiter counts against. A decision takes a transaction-scoped advisory
// lock on the (user, action) pair before counting, so two concurrent
// requests serialize and cannot both slip under the limit.
type RateLimitRepository struct {
	db *database.DB
}

func NewRateLimitRepository(db *database.DB) *RateLimitRepository {
	return &RateLimitRepository{db: db}
}

// CountAndRecord atomically counts entries for (userID, action) since the
// window start and, when the count is below limit, records the new attempt.
// It returns the pre-insert count and whether the attempt was recorded.
func (r *RateLimitRepository) CountAndRecord(ctx context.Context, userID, action string, windowStart time.Time, limit int) (int64, bool, error) {
	var count int64
	var recorded bool

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		// The lock releases at commit or rollback. Without it two
		// transactions under READ COMMITTED could both count limit-1 and
		// both insert.
		if _, err := tx.Exec(ctx,
			`SELECT pg_advisory_xact_lock(hashtext($1 || ':' || $2))`,
			userID, action,
		); err != nil {
			return database.MapPostgresError(err)
		}

		err := tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM rate_limits WHERE user_id = $1 AND action = $2 AND created_at >= $3`,
			userID, action, windowStart,
		).Scan(&count)
		if err != nil {
			return database.MapPostgresError(err)
		}

		if count >= int64(limit) {
			return nil
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO rate_limits (id, user_id, action, created_at) VALUES ($1, $2, $3, $4)`,
			uuid.New().String(), userID, action, time.Now(),
		)
		if err != nil {
			return database.MapPostgresError(err)
		}

		recorded = true
		return nil
	})
	if err != nil {
		return 0, false, err
	}

	return count, recorded, nil
}

// CountSince returns the number of entries for (userID, action) inside the
// current window without recording anything.
func (r *RateLimitRepository) CountSince(ctx context.Context, userID, action string, windowStart time.Time) (int64, error) {
	var count int64
	err := r.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM rate_limits WHERE user_id = $1 AND action = $2 AND created_at >= $3`,
		userID, action, windowStart,
	).Scan(&count)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return count, nil
}

// DeleteOlderThan purges entries no window can still see.
func (r *RateLimitRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM rate_limits WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return result.RowsAffected(), nil
}
