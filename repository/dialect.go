package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// dayExpr renders column as a YYYY-MM-DD string in the active SQL dialect.
// Timestamps are stored in UTC so the rendered day is a UTC day.
func dayExpr(db *gorm.DB, column string) string {
	switch db.Dialector.Name() {
	case "postgres":
		return "to_char(" + column + ", 'YYYY-MM-DD')"
	case "mysql":
		return "DATE_FORMAT(" + column + ", '%Y-%m-%d')"
	default:
		return "substr(" + column + ", 1, 10)"
	}
}

// IsDuplicateKey reports whether err is a unique constraint violation on any supported driver
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}

	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
