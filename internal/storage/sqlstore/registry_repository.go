package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/vladislavdragonenkov/catalog/internal/domain"
)

const listingColumns = `id, owner, name, price, description, image, created_at, updated_at`

type registryRepository struct {
	store *Store
	now   func() time.Time
}

// NewRegistryRepository создаёт SQL-реализацию RegistryRepository.
// Идентификаторы берутся из счётчика catalog_sequences и никогда не переиспользуются.
func NewRegistryRepository(store *Store) domain.RegistryRepository {
	return &registryRepository{store: store, now: func() time.Time { return time.Now().UTC() }}
}

func scanListing(row rowScanner) (domain.Listing, error) {
	var (
		listing domain.Listing
		id      int64
	)
	if err := row.Scan(
		&id,
		&listing.Owner,
		&listing.Name,
		&listing.Price,
		&listing.Description,
		&listing.Image,
		&listing.CreatedAt,
		&listing.UpdatedAt,
	); err != nil {
		return domain.Listing{}, err
	}
	listing.ID = uint32(id)
	listing.CreatedAt = listing.CreatedAt.UTC()
	listing.UpdatedAt = listing.UpdatedAt.UTC()
	return listing, nil
}

func (r *registryRepository) CreateListing(ctx context.Context, listing domain.Listing) (domain.Listing, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	now := r.now()
	listing.CreatedAt = now
	listing.UpdatedAt = now

	err := r.store.withTx(ctx, func(q queryer) error {
		value, err := nextSequence(ctx, q, "listing")
		if err != nil {
			return err
		}
		// счётчик хранит количество выданных id, первый id равен 0
		if value-1 > math.MaxUint32 {
			return domain.ErrRegistryExhausted
		}
		listing.ID = uint32(value - 1)

		rank, err := nextSequence(ctx, q, "listing_owner")
		if err != nil {
			return err
		}

		if _, err := q.ExecContext(ctx, `
			INSERT INTO listings (id, owner, owner_rank, name, price, description, image, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		`,
			int64(listing.ID), listing.Owner, int64(rank), listing.Name, listing.Price,
			listing.Description, listing.Image, listing.CreatedAt, listing.UpdatedAt,
		); err != nil {
			return fmt.Errorf("insert listing: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Listing{}, err
	}

	return listing, nil
}

func (r *registryRepository) GetListing(ctx context.Context, id uint32) (domain.Listing, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	listing, err := scanListing(r.store.conn().QueryRowContext(ctx, `
		SELECT `+listingColumns+`
		FROM listings
		WHERE id = $1
	`, int64(id)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Listing{}, domain.ErrListingNotFound
		}
		return domain.Listing{}, fmt.Errorf("get listing: %w", err)
	}
	return listing, nil
}

func (r *registryRepository) ListListings(ctx context.Context) ([]domain.Listing, error) {
	return r.listListings(ctx, `
		SELECT `+listingColumns+`
		FROM listings
		ORDER BY id ASC
	`)
}

// ListListingsByOwner возвращает записи в порядке получения владельцем.
func (r *registryRepository) ListListingsByOwner(ctx context.Context, owner domain.AccountRef) ([]domain.Listing, error) {
	return r.listListings(ctx, `
		SELECT `+listingColumns+`
		FROM listings
		WHERE owner = $1
		ORDER BY owner_rank ASC
	`, owner)
}

func (r *registryRepository) listListings(ctx context.Context, query string, args ...any) ([]domain.Listing, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.store.conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	defer rows.Close()

	listings := make([]domain.Listing, 0)
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		listings = append(listings, listing)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate listings: %w", err)
	}
	return listings, nil
}

func (r *registryRepository) UpdateListingPrice(ctx context.Context, caller domain.AccountRef, id uint32, price domain.Amount) (domain.Listing, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	listing, err := scanListing(r.store.conn().QueryRowContext(ctx, `
		UPDATE listings
		SET price = $1,
		    updated_at = $2
		WHERE id = $3 AND owner = $4
		RETURNING `+listingColumns, price, r.now(), int64(id), caller))
	if err == nil {
		return listing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.Listing{}, fmt.Errorf("update listing price: %w", err)
	}

	if _, err := r.GetListing(ctx, id); err != nil {
		return domain.Listing{}, err
	}
	return domain.Listing{}, domain.ErrUnauthorized
}

func (r *registryRepository) DeleteListing(ctx context.Context, caller domain.AccountRef, id uint32) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.store.conn().ExecContext(ctx, `
		DELETE FROM listings
		WHERE id = $1 AND owner = $2
	`, int64(id), caller)
	if err != nil {
		return fmt.Errorf("delete listing: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for listing delete: %w", err)
	}
	if affected > 0 {
		return nil
	}

	if _, err := r.GetListing(ctx, id); err != nil {
		return err
	}
	return domain.ErrUnauthorized
}

func (r *registryRepository) TransferListing(ctx context.Context, id uint32, from, to domain.AccountRef, expectedPrice domain.Amount) (domain.Listing, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var moved domain.Listing
	err := r.store.withTx(ctx, func(q queryer) error {
		rank, err := nextSequence(ctx, q, "listing_owner")
		if err != nil {
			return err
		}

		moved, err = scanListing(q.QueryRowContext(ctx, `
			UPDATE listings
			SET owner = $1,
			    owner_rank = $2,
			    updated_at = $3
			WHERE id = $4 AND owner = $5 AND price = $6
			RETURNING `+listingColumns, to, int64(rank), r.now(), int64(id), from, expectedPrice))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return err
			}
			return fmt.Errorf("transfer listing: %w", err)
		}
		return nil
	})
	if err == nil {
		return moved, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.Listing{}, err
	}

	current, err := r.GetListing(ctx, id)
	if err != nil {
		return domain.Listing{}, err
	}
	if current.Owner != from {
		return domain.Listing{}, domain.ErrUnauthorized
	}
	return domain.Listing{}, domain.ErrPriceMismatch
}

var _ domain.RegistryRepository = (*registryRepository)(nil)
