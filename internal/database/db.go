package database

import (
	"context"
	"errors"

	"github.com/coverdeskhq/coverdesk/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// MapPostgresError translates driver errors into the domain sentinels the
// HTTP boundary knows how to render. The constraint cases cover what the
// schema actually raises: duplicate user emails, client emails and policy
// numbers (23505), claims or policies referencing a deleted parent row
// (23503), and the status CHECK constraints on users, policies and claims
// (23514).
func MapPostgresError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}

	if pgErr, ok := err.(*pgconn.PgError); ok {
		switch pgErr.Code {
		case "23505": // unique_violation
			return models.ErrConflict
		case "23503": // foreign_key_violation
			return models.ErrBadRequest
		case "23502": // not_null_violation
			return models.ErrBadRequest
		case "23514": // check_violation, e.g. an unknown claim status
			return models.ErrBadRequest
		case "22P02": // invalid_text_representation, e.g. a malformed uuid
			return models.ErrBadRequest
		}
	}

	return err
}

// WithTransaction runs fn inside a transaction, committing on a nil
// return and rolling back on error or panic. The rate limiter relies on
// it to make its count-then-insert decision atomic.
func (db *DB) WithTransaction(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		} else if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	err = fn(tx)
	return err
}
