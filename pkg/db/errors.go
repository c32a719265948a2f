package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/stockhold/pkg/errors"
)

// Postgres SQLSTATE values the services react to.
const (
	sqlStateUniqueViolation      = "23505"
	sqlStateCheckViolation       = "23514"
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
)

// IsUniqueViolation reports whether err is a unique-constraint failure on
// Postgres or SQLite. A non-empty constraint narrows the match to that index.
func IsUniqueViolation(err error, constraint string) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == sqlStateUniqueViolation &&
			(constraint == "" || pgErr.ConstraintName == constraint)
	}
	msg := err.Error()
	if constraint != "" {
		return strings.Contains(msg, constraint)
	}
	return strings.Contains(msg, "duplicate key value") || strings.Contains(msg, "UNIQUE constraint failed")
}

func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// Classify maps driver failures that callers can act on to typed errors and
// returns everything else unchanged. Already-typed errors pass through.
func Classify(err error) error {
	if err == nil || pkgerrors.As(err) != nil {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlStateSerializationFailure, sqlStateDeadlockDetected:
			return pkgerrors.Wrap(pkgerrors.CodeConcurrentModification, err, "transaction conflicted with a concurrent update")
		case sqlStateUniqueViolation:
			return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "record already exists")
		case sqlStateCheckViolation:
			return pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "update would violate a stock constraint")
		}
		if strings.HasPrefix(pgErr.Code, "08") {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "database connection failed")
		}
		return err
	}
	if strings.Contains(err.Error(), "database is locked") {
		return pkgerrors.Wrap(pkgerrors.CodeConcurrentModification, err, "database is busy")
	}
	return err
}
