package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const pgUniqueViolationCode = "23505"

var (
	// ErrConflict signals a uniqueness violation on write.
	ErrConflict = errors.New("conflicting entry exists")
	// ErrTimeout signals the datastore could not serve the call in time,
	// typically because the connection pool stayed exhausted.
	ErrTimeout = errors.New("datastore timeout")
)

// ValidationError reports a rejected input field on an administrative write.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidationError checks whether err is a rejected input.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ErrorIsNoRows validate if supplied error is because of record missing in DB.
func ErrorIsNoRows(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, sql.ErrNoRows)
}

// ErrorIsConflict validate if supplied error is a unique constraint violation.
func ErrorIsConflict(err error) bool {
	if errors.Is(err, ErrConflict) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode
	}
	return false
}

// ErrorIsTimeout validate if supplied error is a deadline or pool exhaustion signal.
func ErrorIsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}
