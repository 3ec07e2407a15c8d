package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/catalog/internal/domain"
)

func TestInitRuntimeDependencies_Memory(t *testing.T) {
	t.Parallel()

	deps, err := initRuntimeDependencies(context.Background(), Config{
		StorageDriver: StorageDriverMemory,
		LedgerSeed:    map[string]string{"alice": "100"},
	}, log.WithField("test", "memory-storage"))
	if err != nil {
		t.Fatalf("initRuntimeDependencies(memory) failed: %v", err)
	}
	if deps.Catalog == nil || deps.Registry == nil || deps.Timeline == nil || deps.Outbox == nil || deps.Idempotency == nil {
		t.Fatalf("memory dependencies must be initialized: %+v", deps)
	}
	if deps.Store != nil {
		t.Fatal("memory storage must not open sql store")
	}
	if err := deps.Ping(context.Background()); err != nil {
		t.Fatalf("memory ping failed: %v", err)
	}

	balance, err := deps.Ledger.Balance(context.Background(), "alice")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.String() != "100" {
		t.Fatalf("expected seeded balance 100, got %s", balance)
	}
}

func TestInitRuntimeDependencies_DurableStorageRequiresMockFlag(t *testing.T) {
	t.Parallel()

	_, err := initRuntimeDependencies(context.Background(), Config{
		StorageDriver: StorageDriverSQLite,
		SQLitePath:    filepath.Join(t.TempDir(), "catalog.db"),
	}, log.WithField("test", "sqlite-no-mock"))
	if !errors.Is(err, errMockLedgerWithDurableStorage) {
		t.Fatalf("expected errMockLedgerWithDurableStorage, got %v", err)
	}
}

func TestInitRuntimeDependencies_SQLite(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "catalog.db")
	deps, err := initRuntimeDependencies(context.Background(), Config{
		StorageDriver:         StorageDriverSQLite,
		SQLitePath:            path,
		AutoMigrate:           true,
		AllowMockIntegrations: true,
	}, log.WithField("test", "sqlite-storage"))
	if err != nil {
		t.Fatalf("initRuntimeDependencies(sqlite) failed: %v", err)
	}
	defer func() { _ = deps.Close() }()

	if deps.Store == nil {
		t.Fatal("expected sql store for sqlite")
	}
	if err := deps.Ping(context.Background()); err != nil {
		t.Fatalf("sqlite ping failed: %v", err)
	}

	ctx := context.Background()
	if _, err := deps.Catalog.CreateShop(ctx, domain.Shop{Owner: "alice", Name: "Acme"}); err != nil {
		t.Fatalf("create shop on migrated schema: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("sqlite file must exist: %v", err)
	}
}

func TestInitRuntimeDependencies_Postgres(t *testing.T) {
	dsn := os.Getenv("CATALOG_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CATALOG_TEST_POSTGRES_DSN is not set")
	}

	deps, err := initRuntimeDependencies(context.Background(), Config{
		StorageDriver:         StorageDriverPostgres,
		PostgresDSN:           dsn,
		AutoMigrate:           true,
		AllowMockIntegrations: true,
	}, log.WithField("test", "postgres-storage"))
	if err != nil {
		t.Skipf("postgres is not available for app integration test: %v", err)
	}
	defer func() { _ = deps.Close() }()

	if err := deps.Ping(context.Background()); err != nil {
		t.Fatalf("postgres ping failed: %v", err)
	}
}

func TestInitRuntimeDependencies_Errors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		cfg  Config
	}{
		{name: "unsupported driver", cfg: Config{StorageDriver: "mongo"}},
		{name: "invalid escrow", cfg: Config{StorageDriver: StorageDriverMemory, EscrowAccount: strings.Repeat("x", 80)}},
		{name: "invalid seed amount", cfg: Config{StorageDriver: StorageDriverMemory, LedgerSeed: map[string]string{"alice": "-1"}}},
		{name: "invalid seed account", cfg: Config{StorageDriver: StorageDriverMemory, LedgerSeed: map[string]string{"": "1"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := initRuntimeDependencies(context.Background(), tc.cfg, nil); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
