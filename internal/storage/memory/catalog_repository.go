package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/catalog/internal/domain"
)

// catalogRepositoryInMemory хранит магазины и товары вместе со всеми индексами под одним мьютексом,
// поэтому каждая мутация видна всем представлениям одновременно.
type catalogRepositoryInMemory struct {
	mu sync.RWMutex

	shops   map[domain.AccountRef]domain.Shop
	shopSeq *sequenceIndex[domain.AccountRef]

	products        map[string]domain.Product
	productSeq      *sequenceIndex[string]
	productsByOwner *ownerIndex[string]

	now func() time.Time
}

// NewCatalogRepository возвращает in-memory каталог для локальной разработки и тестов.
func NewCatalogRepository() *catalogRepositoryInMemory {
	return &catalogRepositoryInMemory{
		shops:           make(map[domain.AccountRef]domain.Shop),
		shopSeq:         newSequenceIndex[domain.AccountRef](1),
		products:        make(map[string]domain.Product),
		productSeq:      newSequenceIndex[string](1),
		productsByOwner: newOwnerIndex[string](),
		now:             func() time.Time { return time.Now().UTC() },
	}
}

func (r *catalogRepositoryInMemory) CreateShop(_ context.Context, shop domain.Shop) (domain.Shop, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.shops[shop.Owner]; exists {
		return domain.Shop{}, domain.ErrShopAlreadyExists
	}

	now := r.now()
	shop.TotalProductCount = 0
	shop.Seq = r.shopSeq.assign(shop.Owner)
	shop.CreatedAt = now
	shop.UpdatedAt = now
	r.shops[shop.Owner] = shop

	return shop, nil
}

func (r *catalogRepositoryInMemory) GetShop(_ context.Context, owner domain.AccountRef) (domain.Shop, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	shop, ok := r.shops[owner]
	if !ok {
		return domain.Shop{}, domain.ErrShopNotFound
	}
	return shop, nil
}

func (r *catalogRepositoryInMemory) ListShops(_ context.Context) ([]domain.Shop, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Shop, 0, r.shopSeq.len())
	r.shopSeq.walk(func(_ uint64, owner domain.AccountRef) {
		if shop, ok := r.shops[owner]; ok {
			result = append(result, shop)
		}
	})
	return result, nil
}

func (r *catalogRepositoryInMemory) CreateProduct(_ context.Context, product domain.Product) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	shop, ok := r.shops[product.Owner]
	if !ok {
		return domain.Product{}, domain.ErrShopNotFound
	}
	if _, exists := r.products[product.ProductID]; exists {
		return domain.Product{}, domain.ErrDuplicateProductID
	}

	now := r.now()
	product.Seq = r.productSeq.assign(product.ProductID)
	product.CreatedAt = now
	product.UpdatedAt = now
	r.products[product.ProductID] = product
	r.productsByOwner.add(product.Owner, product.ProductID)

	shop.TotalProductCount++
	shop.UpdatedAt = now
	r.shops[shop.Owner] = shop

	return product, nil
}

func (r *catalogRepositoryInMemory) GetProduct(_ context.Context, productID string) (domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.products[productID]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return product, nil
}

func (r *catalogRepositoryInMemory) ListProducts(_ context.Context) ([]domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Product, 0, r.productSeq.len())
	r.productSeq.walk(func(_ uint64, id string) {
		if product, ok := r.products[id]; ok {
			result = append(result, product)
		}
	})
	return result, nil
}

func (r *catalogRepositoryInMemory) ListProductsByOwner(_ context.Context, owner domain.AccountRef) ([]domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.productsByOwner.keys(owner)
	result := make([]domain.Product, 0, len(ids))
	for _, id := range ids {
		if product, ok := r.products[id]; ok {
			result = append(result, product)
		}
	}
	return result, nil
}

func (r *catalogRepositoryInMemory) UpdatePrice(_ context.Context, caller domain.AccountRef, productID string, price domain.Amount) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.products[productID]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	if product.Owner != caller {
		return domain.Product{}, domain.ErrUnauthorized
	}

	product.Price = price
	product.UpdatedAt = r.now()
	r.products[productID] = product
	return product, nil
}

func (r *catalogRepositoryInMemory) DebitSupply(_ context.Context, productID string, expectedPrice domain.Amount) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.products[productID]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	if !product.Price.Equal(expectedPrice) {
		return domain.Product{}, domain.ErrPriceMismatch
	}
	if product.TotalSupply == 0 {
		return domain.Product{}, domain.ErrOutOfStock
	}

	product.TotalSupply--
	product.UpdatedAt = r.now()
	r.products[productID] = product
	return product, nil
}

func (r *catalogRepositoryInMemory) RestoreSupply(_ context.Context, productID string) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.products[productID]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}

	product.TotalSupply++
	product.UpdatedAt = r.now()
	r.products[productID] = product
	return product, nil
}

// checkConsistency сверяет все индексы с каноническими записями (используется в тестах).
func (r *catalogRepositoryInMemory) checkConsistency() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.shopSeq.len() != len(r.shops) {
		return fmt.Errorf("shop sequence holds %d slots for %d shops", r.shopSeq.len(), len(r.shops))
	}
	var err error
	r.shopSeq.walk(func(seq uint64, owner domain.AccountRef) {
		if shop, ok := r.shops[owner]; err == nil && (!ok || shop.Seq != seq) {
			err = fmt.Errorf("shop slot %d does not resolve to %s", seq, owner)
		}
	})
	if err != nil {
		return err
	}

	if r.productSeq.len() != len(r.products) {
		return fmt.Errorf("product sequence holds %d slots for %d products", r.productSeq.len(), len(r.products))
	}
	r.productSeq.walk(func(seq uint64, id string) {
		if product, ok := r.products[id]; err == nil && (!ok || product.Seq != seq) {
			err = fmt.Errorf("product slot %d does not resolve to %s", seq, id)
		}
	})
	if err != nil {
		return err
	}

	for owner, shop := range r.shops {
		if got := uint64(len(r.productsByOwner.keys(owner))); got != shop.TotalProductCount {
			return fmt.Errorf("shop %s counts %d products, index has %d", owner, shop.TotalProductCount, got)
		}
	}

	return checkOwnerIndex(r.productsByOwner, r.products, func(p domain.Product) domain.AccountRef { return p.Owner })
}

var _ domain.CatalogRepository = (*catalogRepositoryInMemory)(nil)
