package transfer

import (
	"context"
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/catalog/internal/domain"
)

func TestMockService(t *testing.T) {
	ctx := context.Background()
	mock := NewMockService()

	hold, err := mock.Reserve(ctx, "alice", "bob", domain.NewAmount(10), "ref")
	if err != nil {
		t.Fatalf("unexpected reserve error: %v", err)
	}
	if hold.ID == "" || hold.Amount.String() != "10" {
		t.Fatalf("unexpected hold: %+v", hold)
	}
	if err := mock.Confirm(ctx, hold.ID); err != nil {
		t.Fatalf("unexpected confirm error: %v", err)
	}

	mock.ReserveErr = errors.New("reserve failed")
	mock.ReleaseErr = errors.New("release failed")

	if _, err := mock.Reserve(ctx, "alice", "bob", domain.NewAmount(10), "ref"); err == nil {
		t.Fatal("expected reserve error")
	}
	if err := mock.Release(ctx, hold.ID); err == nil {
		t.Fatal("expected release error")
	}

	reserve, confirm, release := mock.Calls()
	if reserve != 2 || confirm != 1 || release != 1 {
		t.Fatalf("unexpected call counters: reserve=%d confirm=%d release=%d", reserve, confirm, release)
	}
	if len(mock.Holds()) != 1 {
		t.Fatalf("expected 1 recorded hold, got %d", len(mock.Holds()))
	}
}
