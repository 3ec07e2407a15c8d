package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/catalog/internal/storage/sqlstore"
)

const (
	defaultTimeout = 30 * time.Second
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.LookupEnv); err != nil {
		fail("%v", err)
	}
}

// run применяет миграции к postgres или sqlite. DSN берётся из флага или из окружения.
func run(ctx context.Context, args []string, out io.Writer, lookup func(string) (string, bool)) error {
	var (
		driver    string
		direction string
		steps     int
		dsn       string
	)

	flags := flag.NewFlagSet("migrate", flag.ContinueOnError)
	flags.SetOutput(io.Discard)
	flags.StringVar(&driver, "driver", "postgres", "storage driver: postgres|sqlite")
	flags.StringVar(&direction, "direction", "up", "migration direction: up|down|status")
	flags.IntVar(&steps, "steps", 0, "number of migrations to apply/rollback (0=all for up, 1 for down)")
	flags.StringVar(&dsn, "dsn", "", "PostgreSQL DSN or SQLite path (fallback: CATALOG_POSTGRES_DSN / CATALOG_SQLITE_PATH)")
	if err := flags.Parse(args); err != nil {
		return err
	}

	dialect, err := sqlstore.ParseDialect(strings.ToLower(strings.TrimSpace(driver)))
	if err != nil {
		return err
	}

	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		dsn = dsnFromEnv(dialect, lookup)
	}
	if dsn == "" {
		return errors.New("CATALOG_POSTGRES_DSN / CATALOG_SQLITE_PATH (or -dsn) is required")
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	store, err := sqlstore.Open(ctx, dialect, dsn)
	if err != nil {
		return fmt.Errorf("open %s store: %w", dialect, err)
	}
	defer store.Close()

	switch strings.ToLower(strings.TrimSpace(direction)) {
	case "up":
		if err := store.MigrateUp(ctx, steps); err != nil {
			return fmt.Errorf("migrate up failed: %w", err)
		}
		return printStatus(ctx, out, store, "migrate up ok")
	case "down":
		if steps <= 0 {
			steps = 1
		}
		if err := store.MigrateDown(ctx, steps); err != nil {
			return fmt.Errorf("migrate down failed: %w", err)
		}
		return printStatus(ctx, out, store, "migrate down ok")
	case "status":
		return printStatus(ctx, out, store, "migration status")
	default:
		return fmt.Errorf("unsupported direction: %s (use up|down|status)", direction)
	}
}

func dsnFromEnv(dialect sqlstore.Dialect, lookup func(string) (string, bool)) string {
	key := "CATALOG_POSTGRES_DSN"
	if dialect == sqlstore.DialectSQLite {
		key = "CATALOG_SQLITE_PATH"
	}
	if lookup == nil {
		return ""
	}
	v, _ := lookup(key)
	return strings.TrimSpace(v)
}

func printStatus(ctx context.Context, out io.Writer, store *sqlstore.Store, prefix string) error {
	version, count, err := store.MigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("migration status failed: %w", err)
	}
	_, err = fmt.Fprintf(out, "%s: version=%d applied=%d\n", prefix, version, count)
	return err
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
