package sqlstore

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

// Dialect определяет SQL-диалект и драйвер хранилища.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

var placeholderPattern = regexp.MustCompile(`\$(\d+)`)

// ParseDialect разбирает имя диалекта из конфигурации.
func ParseDialect(raw string) (Dialect, error) {
	switch Dialect(raw) {
	case DialectPostgres:
		return DialectPostgres, nil
	case DialectSQLite:
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("unsupported sql dialect %q", raw)
	}
}

// rebind переводит плейсхолдеры $N в ?N для SQLite; для postgres запрос не меняется.
func (d Dialect) rebind(query string) string {
	if d != DialectSQLite {
		return query
	}
	return placeholderPattern.ReplaceAllString(query, "?$1")
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
