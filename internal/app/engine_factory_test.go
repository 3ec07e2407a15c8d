package app

import (
	"context"
	"errors"
	"testing"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/catalog/internal/audit"
	"github.com/vladislavdragonenkov/catalog/internal/domain"
	"github.com/vladislavdragonenkov/catalog/internal/metrics"
	"github.com/vladislavdragonenkov/catalog/internal/service/settlement"
)

func newMemoryDeps(t *testing.T, seed map[string]string) *Dependencies {
	t.Helper()
	deps, err := initRuntimeDependencies(context.Background(), Config{
		StorageDriver: StorageDriverMemory,
		LedgerSeed:    seed,
	}, log.WithField("test", "engine-factory"))
	if err != nil {
		t.Fatalf("init deps: %v", err)
	}
	return deps
}

func TestNewAuditSink(t *testing.T) {
	deps := newMemoryDeps(t, nil)
	logger := log.WithField("test", "sink")

	if _, ok := newAuditSink(deps, false, logger).(*audit.LogSink); !ok {
		t.Fatal("without outbox sink must be LogSink")
	}
	multi, ok := newAuditSink(deps, true, logger).(audit.MultiSink)
	if !ok || len(multi) != 2 {
		t.Fatalf("with outbox sink must fan out to log and outbox, got %T", multi)
	}
}

func TestNewSettlementEngine_PurchaseThroughLedger(t *testing.T) {
	ctx := context.Background()
	deps := newMemoryDeps(t, map[string]string{"buyer": "250"})
	cfg := DefaultConfig()

	sink := newAuditSink(deps, true, log.WithField("test", "engine"))
	engine, err := newSettlementEngine(cfg, deps, sink, metrics.NewSettlementMetrics(), log.WithField("test", "engine"))
	if err != nil {
		t.Fatalf("newSettlementEngine failed: %v", err)
	}
	if engine.Mode() != settlement.ModeSync {
		t.Fatalf("expected sync mode, got %s", engine.Mode())
	}

	if _, err := deps.Catalog.CreateShop(ctx, domain.Shop{Owner: "alice", Name: "Acme"}); err != nil {
		t.Fatalf("create shop: %v", err)
	}
	if _, err := deps.Catalog.CreateProduct(ctx, domain.Product{
		ProductID: "sku-1", Name: "Widget", TotalSupply: 1, Price: domain.NewAmount(100), Owner: "alice",
	}); err != nil {
		t.Fatalf("create product: %v", err)
	}

	receipt, err := engine.Purchase(ctx, settlement.PurchaseRequest{
		Caller: "buyer", ProductID: "sku-1", Attached: domain.NewAmount(100),
	})
	if err != nil {
		t.Fatalf("purchase failed: %v", err)
	}
	if receipt.RemainingSupply != 0 {
		t.Fatalf("expected remaining supply 0, got %d", receipt.RemainingSupply)
	}

	platform, _ := deps.Ledger.Balance(ctx, domain.AccountRef(cfg.PlatformAccount))
	if platform.String() != "100" {
		t.Fatalf("platform must receive 100, got %s", platform)
	}
	stats, err := deps.Outbox.Stats(ctx)
	if err != nil {
		t.Fatalf("outbox stats: %v", err)
	}
	if stats.PendingCount != 1 {
		t.Fatalf("expected one audit event in outbox, got %d", stats.PendingCount)
	}
}

func TestNewSettlementEngine_InvalidConfig(t *testing.T) {
	deps := newMemoryDeps(t, nil)
	logger := log.WithField("test", "engine-invalid")

	cfg := DefaultConfig()
	cfg.SettlementMode = "later"
	if _, err := newSettlementEngine(cfg, deps, nil, nil, logger); err == nil {
		t.Fatal("expected error for unknown mode")
	}

	cfg = DefaultConfig()
	cfg.PlatformAccount = ""
	if _, err := newSettlementEngine(cfg, deps, nil, nil, logger); err == nil {
		t.Fatal("expected error for empty platform account")
	}
}

func TestNewSettlementEngine_BusinessErrorsDoNotTripBreaker(t *testing.T) {
	ctx := context.Background()
	deps := newMemoryDeps(t, nil)
	cfg := DefaultConfig()
	cfg.TransferBreakerFailures = 1

	engine, err := newSettlementEngine(cfg, deps, nil, nil, log.WithField("test", "breaker"))
	if err != nil {
		t.Fatalf("newSettlementEngine failed: %v", err)
	}
	if _, err := deps.Catalog.CreateShop(ctx, domain.Shop{Owner: "alice", Name: "Acme"}); err != nil {
		t.Fatalf("create shop: %v", err)
	}
	if _, err := deps.Catalog.CreateProduct(ctx, domain.Product{
		ProductID: "sku-1", Name: "Widget", TotalSupply: 1, Price: domain.NewAmount(100), Owner: "alice",
	}); err != nil {
		t.Fatalf("create product: %v", err)
	}

	// без средств: оба раза отказ ledger, а не разомкнутый breaker
	for i := 0; i < 2; i++ {
		_, err := engine.Purchase(ctx, settlement.PurchaseRequest{
			Caller: "broke", ProductID: "sku-1", Attached: domain.NewAmount(100),
		})
		if !errors.Is(err, domain.ErrInsufficientFunds) {
			t.Fatalf("attempt %d: expected insufficient funds, got %v", i, err)
		}
		if errors.Is(err, settlement.ErrCircuitOpen) {
			t.Fatalf("attempt %d: breaker must stay closed", i)
		}
	}

	product, err := deps.Catalog.GetProduct(ctx, "sku-1")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.TotalSupply != 1 {
		t.Fatalf("supply must be restored, got %d", product.TotalSupply)
	}
}
