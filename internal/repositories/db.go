package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

const pgUniqueViolation = "23505"

// ConflictError is returned when an insert or update hits a unique constraint.
type ConflictError struct {
	Constraint string
	Err        error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("unique violation on %s", e.Constraint)
}

func (e *ConflictError) Unwrap() error { return e.Err }

// AsConflict reports the violated constraint name, if err is a ConflictError.
func AsConflict(err error) (string, bool) {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce.Constraint, true
	}
	return "", false
}

func mapConflict(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
		return &ConflictError{Constraint: pqErr.Constraint, Err: err}
	}
	return err
}

// withTx runs fn in a transaction, rolling back on any error.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
