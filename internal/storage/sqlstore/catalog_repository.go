package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/catalog/internal/domain"
)

const (
	shopColumns    = `owner, name, description, total_product_count, seq, created_at, updated_at`
	productColumns = `product_id, owner, name, total_supply, price, description, seq, created_at, updated_at`
)

type catalogRepository struct {
	store *Store
	now   func() time.Time
}

// NewCatalogRepository создаёт SQL-реализацию CatalogRepository.
func NewCatalogRepository(store *Store) domain.CatalogRepository {
	return &catalogRepository{store: store, now: func() time.Time { return time.Now().UTC() }}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanShop(row rowScanner) (domain.Shop, error) {
	var (
		shop  domain.Shop
		count int64
		seq   int64
	)
	if err := row.Scan(&shop.Owner, &shop.Name, &shop.Description, &count, &seq, &shop.CreatedAt, &shop.UpdatedAt); err != nil {
		return domain.Shop{}, err
	}
	shop.TotalProductCount = uint64(count)
	shop.Seq = uint64(seq)
	shop.CreatedAt = shop.CreatedAt.UTC()
	shop.UpdatedAt = shop.UpdatedAt.UTC()
	return shop, nil
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var (
		product domain.Product
		supply  int64
		seq     int64
	)
	if err := row.Scan(
		&product.ProductID,
		&product.Owner,
		&product.Name,
		&supply,
		&product.Price,
		&product.Description,
		&seq,
		&product.CreatedAt,
		&product.UpdatedAt,
	); err != nil {
		return domain.Product{}, err
	}
	product.TotalSupply = uint64(supply)
	product.Seq = uint64(seq)
	product.CreatedAt = product.CreatedAt.UTC()
	product.UpdatedAt = product.UpdatedAt.UTC()
	return product, nil
}

func (r *catalogRepository) CreateShop(ctx context.Context, shop domain.Shop) (domain.Shop, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	now := r.now()
	shop.TotalProductCount = 0
	shop.CreatedAt = now
	shop.UpdatedAt = now

	err := r.store.withTx(ctx, func(q queryer) error {
		seq, err := nextSequence(ctx, q, "shop")
		if err != nil {
			return err
		}
		shop.Seq = seq

		_, err = q.ExecContext(ctx, `
			INSERT INTO shops (`+shopColumns+`)
			VALUES ($1,$2,$3,0,$4,$5,$6)
		`, shop.Owner, shop.Name, shop.Description, int64(shop.Seq), shop.CreatedAt, shop.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return domain.ErrShopAlreadyExists
			}
			return fmt.Errorf("insert shop: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Shop{}, err
	}

	return shop, nil
}

func (r *catalogRepository) GetShop(ctx context.Context, owner domain.AccountRef) (domain.Shop, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	shop, err := scanShop(r.store.conn().QueryRowContext(ctx, `
		SELECT `+shopColumns+`
		FROM shops
		WHERE owner = $1
	`, owner))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Shop{}, domain.ErrShopNotFound
		}
		return domain.Shop{}, fmt.Errorf("get shop: %w", err)
	}
	return shop, nil
}

func (r *catalogRepository) ListShops(ctx context.Context) ([]domain.Shop, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.store.conn().QueryContext(ctx, `
		SELECT `+shopColumns+`
		FROM shops
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list shops: %w", err)
	}
	defer rows.Close()

	shops := make([]domain.Shop, 0)
	for rows.Next() {
		shop, err := scanShop(rows)
		if err != nil {
			return nil, fmt.Errorf("scan shop: %w", err)
		}
		shops = append(shops, shop)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shops: %w", err)
	}
	return shops, nil
}

func (r *catalogRepository) CreateProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	now := r.now()
	product.CreatedAt = now
	product.UpdatedAt = now

	err := r.store.withTx(ctx, func(q queryer) error {
		res, err := q.ExecContext(ctx, `
			UPDATE shops
			SET total_product_count = total_product_count + 1,
			    updated_at = $1
			WHERE owner = $2
		`, now, product.Owner)
		if err != nil {
			return fmt.Errorf("bump shop product count: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected for shop: %w", err)
		}
		if affected == 0 {
			return domain.ErrShopNotFound
		}

		seq, err := nextSequence(ctx, q, "product")
		if err != nil {
			return err
		}
		product.Seq = seq

		_, err = q.ExecContext(ctx, `
			INSERT INTO products (`+productColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		`,
			product.ProductID, product.Owner, product.Name, int64(product.TotalSupply),
			product.Price, product.Description, int64(product.Seq), product.CreatedAt, product.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return domain.ErrDuplicateProductID
			}
			return fmt.Errorf("insert product: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Product{}, err
	}

	return product, nil
}

func (r *catalogRepository) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return r.getProduct(ctx, r.store.conn(), productID)
}

func (r *catalogRepository) getProduct(ctx context.Context, q queryer, productID string) (domain.Product, error) {
	product, err := scanProduct(q.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE product_id = $1
	`, productID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("get product: %w", err)
	}
	return product, nil
}

func (r *catalogRepository) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return r.listProducts(ctx, `
		SELECT `+productColumns+`
		FROM products
		ORDER BY seq ASC
	`)
}

func (r *catalogRepository) ListProductsByOwner(ctx context.Context, owner domain.AccountRef) ([]domain.Product, error) {
	return r.listProducts(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE owner = $1
		ORDER BY seq ASC
	`, owner)
}

func (r *catalogRepository) listProducts(ctx context.Context, query string, args ...any) ([]domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.store.conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

func (r *catalogRepository) UpdatePrice(ctx context.Context, caller domain.AccountRef, productID string, price domain.Amount) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	product, err := scanProduct(r.store.conn().QueryRowContext(ctx, `
		UPDATE products
		SET price = $1,
		    updated_at = $2
		WHERE product_id = $3 AND owner = $4
		RETURNING `+productColumns, price, r.now(), productID, caller))
	if err == nil {
		return product, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, fmt.Errorf("update product price: %w", err)
	}

	if _, err := r.GetProduct(ctx, productID); err != nil {
		return domain.Product{}, err
	}
	return domain.Product{}, domain.ErrUnauthorized
}

func (r *catalogRepository) DebitSupply(ctx context.Context, productID string, expectedPrice domain.Amount) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	product, err := scanProduct(r.store.conn().QueryRowContext(ctx, `
		UPDATE products
		SET total_supply = total_supply - 1,
		    updated_at = $1
		WHERE product_id = $2 AND price = $3 AND total_supply > 0
		RETURNING `+productColumns, r.now(), productID, expectedPrice))
	if err == nil {
		return product, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, fmt.Errorf("debit product supply: %w", err)
	}

	current, err := r.GetProduct(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}
	if !current.Price.Equal(expectedPrice) {
		return domain.Product{}, domain.ErrPriceMismatch
	}
	return domain.Product{}, domain.ErrOutOfStock
}

func (r *catalogRepository) RestoreSupply(ctx context.Context, productID string) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	product, err := scanProduct(r.store.conn().QueryRowContext(ctx, `
		UPDATE products
		SET total_supply = total_supply + 1,
		    updated_at = $1
		WHERE product_id = $2
		RETURNING `+productColumns, r.now(), productID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("restore product supply: %w", err)
	}
	return product, nil
}

var _ domain.CatalogRepository = (*catalogRepository)(nil)
