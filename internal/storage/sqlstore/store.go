package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

const (
	defaultConnTimeout     = 5 * time.Second
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 25
	defaultConnMaxLifetime = 30 * time.Minute
	defaultConnMaxIdleTime = 5 * time.Minute

	opTimeout = 5 * time.Second
)

var errStoreNotInitialized = errors.New("sql store is not initialized")

// Store оборачивает SQL-подключение к PostgreSQL или SQLite.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// OpenPostgres открывает подключение к PostgreSQL через pgx и проверяет доступность базы.
func OpenPostgres(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}
	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)
	db.SetConnMaxIdleTime(defaultConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Store{db: db, dialect: DialectPostgres}, nil
}

// OpenSQLite открывает (или создаёт) файл SQLite и применяет pragmas.
// SQLite допускает одного писателя, поэтому пул ограничен одним соединением.
func OpenSQLite(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(pingCtx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	return &Store{db: db, dialect: DialectSQLite}, nil
}

// Open выбирает драйвер по диалекту.
func Open(ctx context.Context, dialect Dialect, dsn string) (*Store, error) {
	switch dialect {
	case DialectPostgres:
		return OpenPostgres(ctx, dsn)
	case DialectSQLite:
		return OpenSQLite(ctx, dsn)
	default:
		return nil, fmt.Errorf("unsupported sql dialect %q", dialect)
	}
}

// NewStore оборачивает уже открытое подключение (например, sqlmock в тестах).
func NewStore(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// DB возвращает raw SQL DB, когда нужен низкоуровневый доступ.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect возвращает диалект хранилища.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Ping проверяет доступность подключения.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errStoreNotInitialized
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	return s.db.PingContext(pingCtx)
}

// EnsureSchema применяет все up-миграции.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.MigrateUp(ctx, 0)
}

// Close закрывает подключение к БД.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// queryer — общее подмножество *sql.DB, *sql.Conn и *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// boundQueryer переписывает плейсхолдеры под диалект перед выполнением.
type boundQueryer struct {
	q       queryer
	dialect Dialect
}

func (b boundQueryer) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return b.q.ExecContext(ctx, b.dialect.rebind(query), args...)
}

func (b boundQueryer) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return b.q.QueryContext(ctx, b.dialect.rebind(query), args...)
}

func (b boundQueryer) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return b.q.QueryRowContext(ctx, b.dialect.rebind(query), args...)
}

func (s *Store) conn() queryer {
	return boundQueryer{q: s.db, dialect: s.dialect}
}

// withTx выполняет fn в транзакции; любая ошибка fn откатывает её.
func (s *Store) withTx(ctx context.Context, fn func(q queryer) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(boundQueryer{q: tx, dialect: s.dialect}); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// nextSequence увеличивает именованный счётчик catalog_sequences и возвращает новое значение.
func nextSequence(ctx context.Context, q queryer, name string) (uint64, error) {
	var value int64
	if err := q.QueryRowContext(ctx, `
		UPDATE catalog_sequences
		SET value = value + 1
		WHERE name = $1
		RETURNING value
	`, name).Scan(&value); err != nil {
		return 0, fmt.Errorf("advance %s sequence: %w", name, err)
	}
	return uint64(value), nil
}
