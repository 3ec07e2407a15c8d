package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/catalog/internal/domain"
)

func seedShop(t *testing.T, repo *catalogRepositoryInMemory, owner domain.AccountRef) domain.Shop {
	t.Helper()
	shop, err := repo.CreateShop(context.Background(), domain.Shop{Owner: owner, Name: string(owner) + " shop"})
	require.NoError(t, err)
	return shop
}

func seedProduct(t *testing.T, repo *catalogRepositoryInMemory, owner domain.AccountRef, id string, supply uint64, price uint64) domain.Product {
	t.Helper()
	product, err := repo.CreateProduct(context.Background(), domain.Product{
		ProductID:   id,
		Name:        id,
		TotalSupply: supply,
		Price:       domain.NewAmount(price),
		Description: "about " + id,
		Owner:       owner,
	})
	require.NoError(t, err)
	return product
}

func TestCatalogRepository_ShopSequenceStartsAtOne(t *testing.T) {
	repo := NewCatalogRepository()

	acme := seedShop(t, repo, "acme")
	beta := seedShop(t, repo, "beta")

	assert.Equal(t, uint64(1), acme.Seq)
	assert.Equal(t, uint64(2), beta.Seq)

	shops, err := repo.ListShops(context.Background())
	require.NoError(t, err)
	require.Len(t, shops, 2)
	assert.Equal(t, domain.AccountRef("acme"), shops[0].Owner)
	assert.Equal(t, domain.AccountRef("beta"), shops[1].Owner)
	require.NoError(t, repo.checkConsistency())
}

func TestCatalogRepository_DuplicateShopLeavesOriginal(t *testing.T) {
	repo := NewCatalogRepository()
	original := seedShop(t, repo, "acme")

	_, err := repo.CreateShop(context.Background(), domain.Shop{Owner: "acme", Name: "other"})
	require.ErrorIs(t, err, domain.ErrShopAlreadyExists)
	require.True(t, domain.IsAlreadyExists(err))

	got, err := repo.GetShop(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, original, got)
	require.NoError(t, repo.checkConsistency())
}

func TestCatalogRepository_CreateProductUpdatesIndexes(t *testing.T) {
	ctx := context.Background()
	repo := NewCatalogRepository()
	seedShop(t, repo, "acme")
	seedShop(t, repo, "beta")

	first := seedProduct(t, repo, "acme", "sku-1", 5, 100)
	seedProduct(t, repo, "beta", "sku-2", 1, 7)
	third := seedProduct(t, repo, "acme", "sku-3", 2, 50)

	assert.Equal(t, uint64(1), first.Seq)
	assert.Equal(t, uint64(3), third.Seq)

	got, err := repo.GetProduct(ctx, "sku-1")
	require.NoError(t, err)
	assert.Equal(t, first, got)

	owned, err := repo.ListProductsByOwner(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, owned, 2)
	assert.Equal(t, "sku-1", owned[0].ProductID)
	assert.Equal(t, "sku-3", owned[1].ProductID)

	shop, err := repo.GetShop(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), shop.TotalProductCount)

	all, err := repo.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.NoError(t, repo.checkConsistency())
}

func TestCatalogRepository_CreateProductErrors(t *testing.T) {
	ctx := context.Background()
	repo := NewCatalogRepository()

	_, err := repo.CreateProduct(ctx, domain.Product{ProductID: "sku-1", Name: "x", Owner: "ghost"})
	require.ErrorIs(t, err, domain.ErrShopNotFound)

	seedShop(t, repo, "acme")
	seedShop(t, repo, "beta")
	seedProduct(t, repo, "acme", "sku-1", 1, 1)

	_, err = repo.CreateProduct(ctx, domain.Product{ProductID: "sku-1", Name: "dup", Owner: "beta"})
	require.ErrorIs(t, err, domain.ErrDuplicateProductID)

	beta, err := repo.GetShop(ctx, "beta")
	require.NoError(t, err)
	assert.Zero(t, beta.TotalProductCount)
	require.NoError(t, repo.checkConsistency())
}

func TestCatalogRepository_UpdatePriceRequiresOwner(t *testing.T) {
	ctx := context.Background()
	repo := NewCatalogRepository()
	seedShop(t, repo, "acme")
	seedProduct(t, repo, "acme", "sku-1", 1, 100)

	_, err := repo.UpdatePrice(ctx, "mallory", "sku-1", domain.NewAmount(1))
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = repo.UpdatePrice(ctx, "acme", "missing", domain.NewAmount(1))
	require.ErrorIs(t, err, domain.ErrProductNotFound)

	updated, err := repo.UpdatePrice(ctx, "acme", "sku-1", domain.NewAmount(250))
	require.NoError(t, err)
	assert.Equal(t, "250", updated.Price.String())
}

func TestCatalogRepository_DebitSupply(t *testing.T) {
	ctx := context.Background()
	repo := NewCatalogRepository()
	seedShop(t, repo, "acme")
	seedProduct(t, repo, "acme", "sku-1", 2, 100)

	_, err := repo.DebitSupply(ctx, "sku-1", domain.NewAmount(99))
	require.ErrorIs(t, err, domain.ErrPriceMismatch)

	for want := uint64(1); ; want-- {
		product, err := repo.DebitSupply(ctx, "sku-1", domain.NewAmount(100))
		require.NoError(t, err)
		require.Equal(t, want, product.TotalSupply)
		if want == 0 {
			break
		}
	}

	_, err = repo.DebitSupply(ctx, "sku-1", domain.NewAmount(100))
	require.ErrorIs(t, err, domain.ErrOutOfStock)

	restored, err := repo.RestoreSupply(ctx, "sku-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), restored.TotalSupply)

	_, err = repo.DebitSupply(ctx, "missing", domain.NewAmount(100))
	require.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestCatalogRepository_ConcurrentDebitNeverGoesNegative(t *testing.T) {
	ctx := context.Background()
	repo := NewCatalogRepository()
	seedShop(t, repo, "acme")
	seedProduct(t, repo, "acme", "sku-1", 10, 1)

	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		ok, soldOut int
	)
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.DebitSupply(ctx, "sku-1", domain.NewAmount(1))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, domain.ErrOutOfStock):
				soldOut++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, ok)
	assert.Equal(t, 15, soldOut)
	product, err := repo.GetProduct(ctx, "sku-1")
	require.NoError(t, err)
	assert.Zero(t, product.TotalSupply)
}
