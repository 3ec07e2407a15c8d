package memory

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/catalog/internal/domain"
)

func seedListing(t *testing.T, repo *registryRepositoryInMemory, owner domain.AccountRef, price uint64) domain.Listing {
	t.Helper()
	listing, err := repo.CreateListing(context.Background(), domain.Listing{
		Owner: owner,
		Name:  "item of " + string(owner),
		Price: domain.NewAmount(price),
	})
	require.NoError(t, err)
	return listing
}

func TestRegistryRepository_IDsStartAtZeroAndAreNotReused(t *testing.T) {
	ctx := context.Background()
	repo := NewRegistryRepository()

	first := seedListing(t, repo, "alice", 10)
	second := seedListing(t, repo, "bob", 20)
	assert.Equal(t, uint32(0), first.ID)
	assert.Equal(t, uint32(1), second.ID)

	require.NoError(t, repo.DeleteListing(ctx, "alice", first.ID))
	third := seedListing(t, repo, "alice", 30)
	assert.Equal(t, uint32(2), third.ID)

	all, err := repo.ListListings(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, uint32(1), all[0].ID)
	assert.Equal(t, uint32(2), all[1].ID)
	require.NoError(t, repo.checkConsistency())
}

func TestRegistryRepository_NonOwnerDeleteKeepsListing(t *testing.T) {
	ctx := context.Background()
	repo := NewRegistryRepository()
	listing := seedListing(t, repo, "alice", 10)

	err := repo.DeleteListing(ctx, "mallory", listing.ID)
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	got, err := repo.GetListing(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, listing, got)

	owned, err := repo.ListListingsByOwner(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, owned, 1)
	require.NoError(t, repo.checkConsistency())
}

func TestRegistryRepository_DeleteRemovesIndexMembership(t *testing.T) {
	ctx := context.Background()
	repo := NewRegistryRepository()
	listing := seedListing(t, repo, "alice", 10)

	require.NoError(t, repo.DeleteListing(ctx, "alice", listing.ID))

	_, err := repo.GetListing(ctx, listing.ID)
	require.ErrorIs(t, err, domain.ErrListingNotFound)
	require.ErrorIs(t, repo.DeleteListing(ctx, "alice", listing.ID), domain.ErrListingNotFound)

	owned, err := repo.ListListingsByOwner(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, owned)
	require.NoError(t, repo.checkConsistency())
}

func TestRegistryRepository_UpdateListingPrice(t *testing.T) {
	ctx := context.Background()
	repo := NewRegistryRepository()
	listing := seedListing(t, repo, "alice", 10)

	_, err := repo.UpdateListingPrice(ctx, "bob", listing.ID, domain.NewAmount(1))
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	updated, err := repo.UpdateListingPrice(ctx, "alice", listing.ID, domain.NewAmount(99))
	require.NoError(t, err)
	assert.Equal(t, "99", updated.Price.String())
}

func TestRegistryRepository_TransferListing(t *testing.T) {
	ctx := context.Background()
	repo := NewRegistryRepository()
	listing := seedListing(t, repo, "alice", 10)

	_, err := repo.TransferListing(ctx, listing.ID, "bob", "carol", domain.NewAmount(10))
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = repo.TransferListing(ctx, listing.ID, "alice", "bob", domain.NewAmount(11))
	require.ErrorIs(t, err, domain.ErrPriceMismatch)

	moved, err := repo.TransferListing(ctx, listing.ID, "alice", "bob", domain.NewAmount(10))
	require.NoError(t, err)
	assert.Equal(t, domain.AccountRef("bob"), moved.Owner)

	alice, _ := repo.ListListingsByOwner(ctx, "alice")
	bob, _ := repo.ListListingsByOwner(ctx, "bob")
	assert.Empty(t, alice)
	require.Len(t, bob, 1)
	require.NoError(t, repo.checkConsistency())
}

func TestRegistryRepository_Exhausted(t *testing.T) {
	repo := NewRegistryRepository()
	repo.seq.next = math.MaxUint32 + 1

	_, err := repo.CreateListing(context.Background(), domain.Listing{Owner: "alice", Name: "x"})
	require.ErrorIs(t, err, domain.ErrRegistryExhausted)
}
