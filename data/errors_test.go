package data_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/huhn511/arche/data"
)

func TestErrorIsNoRows(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "gorm record not found", err: gorm.ErrRecordNotFound, expected: true},
		{name: "sql no rows", err: sql.ErrNoRows, expected: true},
		{name: "wrapped", err: fmt.Errorf("lookup: %w", gorm.ErrRecordNotFound), expected: true},
		{name: "other", err: errors.New("boom"), expected: false},
		{name: "nil", err: nil, expected: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, data.ErrorIsNoRows(tc.err))
		})
	}
}

func TestErrorIsConflict(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "sentinel", err: data.ErrConflict, expected: true},
		{name: "gorm duplicated key", err: gorm.ErrDuplicatedKey, expected: true},
		{name: "pg unique violation", err: &pgconn.PgError{Code: "23505"}, expected: true},
		{name: "pg other code", err: &pgconn.PgError{Code: "42P07"}, expected: false},
		{name: "other", err: errors.New("boom"), expected: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, data.ErrorIsConflict(tc.err))
		})
	}
}

func TestErrorIsTimeout(t *testing.T) {
	require.True(t, data.ErrorIsTimeout(data.ErrTimeout))
	require.True(t, data.ErrorIsTimeout(context.DeadlineExceeded))
	require.False(t, data.ErrorIsTimeout(context.Canceled))
}

func TestValidationError(t *testing.T) {
	err := &data.ValidationError{Field: "lang", Reason: "exceeds 8 characters"}
	require.EqualError(t, err, "invalid lang: exceeds 8 characters")
	require.True(t, data.IsValidationError(fmt.Errorf("put: %w", err)))
	require.False(t, data.IsValidationError(errors.New("boom")))
}
