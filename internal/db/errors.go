package db

import (
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
	invalidTextRepr     = "22P02"
)

// IsUniqueViolation reports whether err is a PostgreSQL unique_violation.
func IsUniqueViolation(err error) bool {
	return hasCode(err, uniqueViolation)
}

// IsForeignKeyViolation reports whether err references a missing row.
func IsForeignKeyViolation(err error) bool {
	return hasCode(err, foreignKeyViolation)
}

// IsInvalidText reports whether PostgreSQL rejected a value's text form, for
// example a malformed uuid.
func IsInvalidText(err error) bool {
	return hasCode(err, invalidTextRepr)
}

// ValidID reports whether id can be bound to a uuid column. Repositories
// answer ErrNotFound for anything else without touching the database, so a
// bad id never aborts the surrounding transaction.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
