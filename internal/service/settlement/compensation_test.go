package settlement

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/catalog/internal/domain"
	"github.com/vladislavdragonenkov/catalog/internal/service/transfer"
	"github.com/vladislavdragonenkov/catalog/internal/storage/sqlstore"
)

// cancellingTransfers имитирует клиента, отключившегося во время перевода:
// вызов отменяет контекст запроса и возвращает его ошибку.
type cancellingTransfers struct {
	domain.TransferService
	cancel    context.CancelFunc
	onConfirm bool
}

func (c *cancellingTransfers) Reserve(ctx context.Context, from, to domain.AccountRef, amount domain.Amount, reference string) (domain.TransferHold, error) {
	if c.onConfirm {
		return c.TransferService.Reserve(ctx, from, to, amount, reference)
	}
	c.cancel()
	return domain.TransferHold{}, ctx.Err()
}

func (c *cancellingTransfers) Confirm(ctx context.Context, _ string) error {
	c.cancel()
	return ctx.Err()
}

type sqliteFixture struct {
	catalog  domain.CatalogRepository
	registry domain.RegistryRepository
	ledger   *transfer.Ledger
}

func newSQLiteFixture(t *testing.T) sqliteFixture {
	t.Helper()
	ctx := context.Background()

	store, err := sqlstore.OpenSQLite(ctx, filepath.Join(t.TempDir(), "settlement.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.EnsureSchema(ctx))

	f := sqliteFixture{
		catalog:  sqlstore.NewCatalogRepository(store),
		registry: sqlstore.NewRegistryRepository(store),
		ledger: transfer.NewLedger(escrow, map[domain.AccountRef]domain.Amount{
			"buyer": domain.NewAmount(1_000),
			escrow:  domain.NewAmount(1_000),
		}),
	}
	_, err = f.catalog.CreateShop(ctx, domain.Shop{Owner: "alice", Name: "Acme"})
	require.NoError(t, err)
	_, err = f.catalog.CreateProduct(ctx, domain.Product{
		ProductID: "sku-1", Name: "Widget", TotalSupply: 1, Price: domain.NewAmount(100), Owner: "alice",
	})
	require.NoError(t, err)
	return f
}

func (f sqliteFixture) engine(t *testing.T, transfers domain.TransferService) *Engine {
	t.Helper()
	engine, err := NewEngine(Dependencies{
		Products:  f.catalog,
		Registry:  f.registry,
		Transfers: transfers,
		Escrow:    f.ledger,
	}, DefaultConfig(), testLogger())
	require.NoError(t, err)
	return engine
}

func TestPurchase_CancelledRequestStillRestoresSupply(t *testing.T) {
	for name, onConfirm := range map[string]bool{"reserve": false, "confirm": true} {
		t.Run(name, func(t *testing.T) {
			f := newSQLiteFixture(t)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			engine := f.engine(t, &cancellingTransfers{TransferService: f.ledger, cancel: cancel, onConfirm: onConfirm})
			_, err := engine.Purchase(ctx, PurchaseRequest{Caller: "buyer", ProductID: "sku-1", Attached: domain.NewAmount(100)})
			require.ErrorIs(t, err, domain.ErrTransferFailed)
			require.ErrorIs(t, err, context.Canceled)

			product, err := f.catalog.GetProduct(context.Background(), "sku-1")
			require.NoError(t, err)
			assert.Equal(t, uint64(1), product.TotalSupply)

			balance, err := f.ledger.Balance(context.Background(), "buyer")
			require.NoError(t, err)
			assert.Equal(t, "1000", balance.String())
			assert.Zero(t, f.ledger.PendingHolds())
		})
	}
}

func TestBuyListing_CancelledConfirmRevertsOwner(t *testing.T) {
	f := newSQLiteFixture(t)
	listing, err := f.registry.CreateListing(context.Background(), domain.Listing{Owner: "alice", Name: "item", Price: domain.NewAmount(10)})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	engine := f.engine(t, &cancellingTransfers{TransferService: f.ledger, cancel: cancel, onConfirm: true})

	_, err = engine.BuyListing(ctx, BuyListingRequest{Caller: "buyer", ListingID: listing.ID, Attached: domain.NewAmount(10)})
	require.ErrorIs(t, err, domain.ErrTransferFailed)

	got, err := f.registry.GetListing(context.Background(), listing.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AccountRef("alice"), got.Owner)

	owned, err := f.registry.ListListingsByOwner(context.Background(), "buyer")
	require.NoError(t, err)
	assert.Empty(t, owned)

	balance, err := f.ledger.Balance(context.Background(), "buyer")
	require.NoError(t, err)
	assert.Equal(t, "1000", balance.String())
	assert.Zero(t, f.ledger.PendingHolds())
}

func TestBuyListing_FailedRevertKeepsHold(t *testing.T) {
	f := newSQLiteFixture(t)
	listing, err := f.registry.CreateListing(context.Background(), domain.Listing{Owner: "alice", Name: "item", Price: domain.NewAmount(10)})
	require.NoError(t, err)

	mock := transfer.NewMockService()
	mock.Escrow = domain.NewAmount(100)
	mock.ConfirmErr = errBackendDown
	engine, err := NewEngine(Dependencies{
		Products:  f.catalog,
		Registry:  &resoldRegistry{RegistryRepository: f.registry},
		Transfers: mock,
		Escrow:    mock,
	}, DefaultConfig(), testLogger())
	require.NoError(t, err)

	_, err = engine.BuyListing(context.Background(), BuyListingRequest{Caller: "buyer", ListingID: listing.ID, Attached: domain.NewAmount(10)})
	require.ErrorIs(t, err, domain.ErrTransferFailed)

	_, _, release := mock.Calls()
	assert.Zero(t, release, "hold stays for reconciliation when owner cannot be reverted")
}

// resoldRegistry пропускает прямую передачу и отклоняет обратную.
type resoldRegistry struct {
	domain.RegistryRepository
}

func (r *resoldRegistry) TransferListing(ctx context.Context, id uint32, from, to domain.AccountRef, expectedPrice domain.Amount) (domain.Listing, error) {
	if to == "alice" {
		return domain.Listing{}, domain.ErrUnauthorized
	}
	return r.RegistryRepository.TransferListing(ctx, id, from, to, expectedPrice)
}
