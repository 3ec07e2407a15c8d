package domain

import "context"

// ShopRepository хранит магазины и их порядковый индекс.
type ShopRepository interface {
	// CreateShop назначает следующий Seq и сохраняет магазин. ErrShopAlreadyExists, если у владельца уже есть магазин.
	CreateShop(ctx context.Context, shop Shop) (Shop, error)
	// GetShop возвращает магазин владельца или ErrShopNotFound.
	GetShop(ctx context.Context, owner AccountRef) (Shop, error)
	// ListShops обходит порядковый индекс от первого ключа до текущего счётчика.
	ListShops(ctx context.Context) ([]Shop, error)
}

// ProductRepository хранит товары вместе с индексами по владельцу и порядковому номеру.
type ProductRepository interface {
	// CreateProduct атомарно проверяет магазин владельца и уникальность product_id,
	// увеличивает TotalProductCount магазина и назначает Seq.
	CreateProduct(ctx context.Context, product Product) (Product, error)
	GetProduct(ctx context.Context, productID string) (Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
	ListProductsByOwner(ctx context.Context, owner AccountRef) ([]Product, error)
	// UpdatePrice меняет цену только если caller владеет товаром.
	UpdatePrice(ctx context.Context, caller AccountRef, productID string, price Amount) (Product, error)
	// DebitSupply уменьшает запас на единицу при условии, что цена равна expectedPrice.
	// ErrOutOfStock при нулевом запасе, ErrPriceMismatch если цена успела измениться.
	DebitSupply(ctx context.Context, productID string, expectedPrice Amount) (Product, error)
	// RestoreSupply возвращает единицу запаса (компенсация неудавшегося перевода).
	RestoreSupply(ctx context.Context, productID string) (Product, error)
}

// CatalogRepository объединяет магазины и товары одного хранилища.
type CatalogRepository interface {
	ShopRepository
	ProductRepository
}

// RegistryRepository хранит плоский реестр с идентификаторами uint32.
type RegistryRepository interface {
	CreateListing(ctx context.Context, listing Listing) (Listing, error)
	GetListing(ctx context.Context, id uint32) (Listing, error)
	ListListings(ctx context.Context) ([]Listing, error)
	ListListingsByOwner(ctx context.Context, owner AccountRef) ([]Listing, error)
	UpdateListingPrice(ctx context.Context, caller AccountRef, id uint32, price Amount) (Listing, error)
	// DeleteListing удаляет запись и членство в индексах. ErrUnauthorized, если caller не владелец.
	DeleteListing(ctx context.Context, caller AccountRef, id uint32) error
	// TransferListing меняет владельца при условии owner == from и price == expectedPrice.
	TransferListing(ctx context.Context, id uint32, from, to AccountRef, expectedPrice Amount) (Listing, error)
}
