package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL error codes
const (
	uniqueViolationCode     = "23505"
	foreignKeyViolationCode = "23503"
	notNullViolationCode    = "23502"
)

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return pgErrorCode(err) == uniqueViolationCode
}

func isForeignKeyViolation(err error) bool {
	return pgErrorCode(err) == foreignKeyViolationCode
}

func isNotNullViolation(err error) bool {
	return pgErrorCode(err) == notNullViolationCode
}
