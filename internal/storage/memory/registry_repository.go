package memory

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/catalog/internal/domain"
)

type registryRepositoryInMemory struct {
	mu sync.RWMutex

	listings map[uint32]domain.Listing
	seq      *sequenceIndex[uint32]
	byOwner  *ownerIndex[uint32]

	now func() time.Time
}

// NewRegistryRepository возвращает in-memory реестр записей с идентификаторами от 0.
func NewRegistryRepository() *registryRepositoryInMemory {
	return &registryRepositoryInMemory{
		listings: make(map[uint32]domain.Listing),
		seq:      newSequenceIndex[uint32](0),
		byOwner:  newOwnerIndex[uint32](),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (r *registryRepositoryInMemory) CreateListing(_ context.Context, listing domain.Listing) (domain.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.seq.peek() > math.MaxUint32 {
		return domain.Listing{}, domain.ErrRegistryExhausted
	}

	id := uint32(r.seq.peek())
	r.seq.assign(id)

	now := r.now()
	listing.ID = id
	listing.CreatedAt = now
	listing.UpdatedAt = now
	r.listings[id] = listing
	r.byOwner.add(listing.Owner, id)

	return listing, nil
}

func (r *registryRepositoryInMemory) GetListing(_ context.Context, id uint32) (domain.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	listing, ok := r.listings[id]
	if !ok {
		return domain.Listing{}, domain.ErrListingNotFound
	}
	return listing, nil
}

func (r *registryRepositoryInMemory) ListListings(_ context.Context) ([]domain.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Listing, 0, r.seq.len())
	r.seq.walk(func(_ uint64, id uint32) {
		if listing, ok := r.listings[id]; ok {
			result = append(result, listing)
		}
	})
	return result, nil
}

func (r *registryRepositoryInMemory) ListListingsByOwner(_ context.Context, owner domain.AccountRef) ([]domain.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.byOwner.keys(owner)
	result := make([]domain.Listing, 0, len(ids))
	for _, id := range ids {
		if listing, ok := r.listings[id]; ok {
			result = append(result, listing)
		}
	}
	return result, nil
}

func (r *registryRepositoryInMemory) UpdateListingPrice(_ context.Context, caller domain.AccountRef, id uint32, price domain.Amount) (domain.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	listing, ok := r.listings[id]
	if !ok {
		return domain.Listing{}, domain.ErrListingNotFound
	}
	if listing.Owner != caller {
		return domain.Listing{}, domain.ErrUnauthorized
	}

	listing.Price = price
	listing.UpdatedAt = r.now()
	r.listings[id] = listing
	return listing, nil
}

func (r *registryRepositoryInMemory) DeleteListing(_ context.Context, caller domain.AccountRef, id uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	listing, ok := r.listings[id]
	if !ok {
		return domain.ErrListingNotFound
	}
	if listing.Owner != caller {
		return domain.ErrUnauthorized
	}

	delete(r.listings, id)
	r.seq.release(uint64(id))
	r.byOwner.remove(listing.Owner, id)
	return nil
}

func (r *registryRepositoryInMemory) TransferListing(_ context.Context, id uint32, from, to domain.AccountRef, expectedPrice domain.Amount) (domain.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	listing, ok := r.listings[id]
	if !ok {
		return domain.Listing{}, domain.ErrListingNotFound
	}
	if listing.Owner != from {
		return domain.Listing{}, domain.ErrUnauthorized
	}
	if !listing.Price.Equal(expectedPrice) {
		return domain.Listing{}, domain.ErrPriceMismatch
	}

	listing.Owner = to
	listing.UpdatedAt = r.now()
	r.listings[id] = listing
	r.byOwner.move(from, to, id)
	return listing, nil
}

func (r *registryRepositoryInMemory) checkConsistency() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.seq.len() != len(r.listings) {
		return fmt.Errorf("registry sequence holds %d slots for %d listings", r.seq.len(), len(r.listings))
	}
	var err error
	r.seq.walk(func(seq uint64, id uint32) {
		if _, ok := r.listings[id]; err == nil && (!ok || uint64(id) != seq) {
			err = fmt.Errorf("registry slot %d does not resolve to listing %d", seq, id)
		}
	})
	if err != nil {
		return err
	}

	return checkOwnerIndex(r.byOwner, r.listings, func(l domain.Listing) domain.AccountRef { return l.Owner })
}

var _ domain.RegistryRepository = (*registryRepositoryInMemory)(nil)
