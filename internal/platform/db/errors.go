package db

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/odyssey-erp/ledgercore/internal/shared"
)

// Postgres SQLSTATE codes that mean "another transaction holds what you need".
const (
	codeLockNotAvailable     = "55P03"
	codeQueryCanceled        = "57014"
	codeDeadlockDetected     = "40P01"
	codeSerializationFailure = "40001"
	codeUniqueViolation      = "23505"
)

// MapError wraps lock wait failures with shared.ErrContention and leaves other
// errors untouched.
func MapError(err error) error {
	if err == nil || errors.Is(err, shared.ErrContention) {
		return err
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeLockNotAvailable, codeQueryCanceled, codeDeadlockDetected, codeSerializationFailure:
		return fmt.Errorf("%w: %w", shared.ErrContention, err)
	}
	return err
}

// IsUniqueViolation reports whether err is a unique constraint violation,
// optionally restricted to the named constraint.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != codeUniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
