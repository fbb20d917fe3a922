package repository

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"learnhub/internal/domain"
)

var ErrDuplicateEmail = domain.ErrDuplicateEmail

const pgUniqueViolation = "23505"

// isUniqueViolation recognizes unique-constraint failures from PostgreSQL
// (pgconn), gorm's translated error, and SQLite's message text.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return true
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}
