package app

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/catalog/internal/domain"
	"github.com/vladislavdragonenkov/catalog/internal/service/transfer"
	"github.com/vladislavdragonenkov/catalog/internal/storage/memory"
	"github.com/vladislavdragonenkov/catalog/internal/storage/sqlstore"
)

var errMockLedgerWithDurableStorage = errors.New(
	"in-memory ledger with durable storage requires CATALOG_ALLOW_MOCK_INTEGRATIONS=true",
)

// Dependencies содержит хранилища и интеграции приложения.
type Dependencies struct {
	Catalog     domain.CatalogRepository
	Registry    domain.RegistryRepository
	Timeline    domain.TimelineRepository
	Outbox      domain.OutboxRepository
	Idempotency domain.IdempotencyRepository
	// Ledger обслуживает переводы и эскроу; других интеграций перевода пока нет.
	Ledger *transfer.Ledger
	// Store равен nil для драйвера memory.
	Store *sqlstore.Store
}

// Close освобождает подключение к БД, если оно было открыто.
func (d *Dependencies) Close() error {
	if d == nil || d.Store == nil {
		return nil
	}
	return d.Store.Close()
}

// Ping проверяет доступность хранилища для /healthz.
func (d *Dependencies) Ping(ctx context.Context) error {
	if d == nil || d.Store == nil {
		return nil
	}
	return d.Store.Ping(ctx)
}

// initRuntimeDependencies выбирает хранилище по cfg.StorageDriver и создаёт ledger.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	ledger, err := newLedger(cfg)
	if err != nil {
		return nil, err
	}

	switch cfg.StorageDriver {
	case "", StorageDriverMemory:
		logger.Info("используем in-memory хранилище")
		return &Dependencies{
			Catalog:     memory.NewCatalogRepository(),
			Registry:    memory.NewRegistryRepository(),
			Timeline:    memory.NewTimelineRepository(),
			Outbox:      memory.NewOutboxRepository(),
			Idempotency: memory.NewIdempotencyRepository(),
			Ledger:      ledger,
		}, nil
	case StorageDriverPostgres, StorageDriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}

	if !cfg.AllowMockIntegrations {
		return nil, errMockLedgerWithDurableStorage
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.AutoMigrate {
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
		logger.WithField("driver", cfg.StorageDriver).Info("миграции применены")
	}

	logger.WithField("driver", cfg.StorageDriver).Info("используем SQL хранилище")
	return &Dependencies{
		Catalog:     sqlstore.NewCatalogRepository(store),
		Registry:    sqlstore.NewRegistryRepository(store),
		Timeline:    sqlstore.NewTimelineRepository(store),
		Outbox:      sqlstore.NewOutboxRepository(store),
		Idempotency: sqlstore.NewIdempotencyRepository(store),
		Ledger:      ledger,
		Store:       store,
	}, nil
}

func openStore(ctx context.Context, cfg Config) (*sqlstore.Store, error) {
	switch cfg.StorageDriver {
	case StorageDriverPostgres:
		return sqlstore.OpenPostgres(ctx, cfg.PostgresDSN)
	default:
		return sqlstore.OpenSQLite(ctx, cfg.SQLitePath)
	}
}

func newLedger(cfg Config) (*transfer.Ledger, error) {
	rawEscrow := cfg.EscrowAccount
	if rawEscrow == "" {
		rawEscrow = DefaultConfig().EscrowAccount
	}
	escrow, err := domain.ParseAccount(rawEscrow)
	if err != nil {
		return nil, fmt.Errorf("escrow account: %w", err)
	}
	seed := make(map[domain.AccountRef]domain.Amount, len(cfg.LedgerSeed))
	for rawAccount, rawAmount := range cfg.LedgerSeed {
		account, err := domain.ParseAccount(rawAccount)
		if err != nil {
			return nil, fmt.Errorf("ledger seed account %q: %w", rawAccount, err)
		}
		amount, err := domain.ParseAmount(rawAmount)
		if err != nil {
			return nil, fmt.Errorf("ledger seed amount for %s: %w", account, err)
		}
		seed[account] = amount
	}
	return transfer.NewLedger(escrow, seed), nil
}
