package grpcsvc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	catalogv1 "github.com/vladislavdragonenkov/catalog/api/catalogv1"
	"github.com/vladislavdragonenkov/catalog/internal/domain"
	"github.com/vladislavdragonenkov/catalog/internal/service/settlement"
)

func TestGRPCCode(t *testing.T) {
	cases := []struct {
		err  error
		want codes.Code
	}{
		{domain.ErrProductNotFound, codes.NotFound},
		{domain.ErrListingNotFound, codes.NotFound},
		{domain.ErrUnauthorized, codes.PermissionDenied},
		{fmt.Errorf("%w: caller has no shop", domain.ErrUnauthorized), codes.PermissionDenied},
		{domain.ErrShopAlreadyExists, codes.AlreadyExists},
		{domain.ErrDuplicateProductID, codes.AlreadyExists},
		{domain.ErrPriceMismatch, codes.FailedPrecondition},
		{domain.ErrOutOfStock, codes.FailedPrecondition},
		{domain.ErrInsufficientEscrow, codes.FailedPrecondition},
		{domain.ErrAlreadyOwner, codes.FailedPrecondition},
		{fmt.Errorf("%w: %w", domain.ErrTransferFailed, domain.ErrInsufficientFunds), codes.Aborted},
		{domain.NewValidationError([]error{domain.ErrNameRequired}), codes.InvalidArgument},
		{domain.ErrAmountInvalid, codes.InvalidArgument},
		{settlement.ErrShuttingDown, codes.Unavailable},
		{domain.ErrCallerRequired, codes.Unauthenticated},
		{errors.New("disk on fire"), codes.Internal},
	}

	for _, tc := range cases {
		if got := grpcCode(tc.err); got != tc.want {
			t.Errorf("grpcCode(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}

func TestMapDomainError_HidesInternalDetails(t *testing.T) {
	s := NewCatalogService(nil, nil, nil)

	err := s.mapDomainError(context.Background(), "Purchase", errors.New("pq: connection reset"))
	st, _ := status.FromError(err)
	if st.Code() != codes.Internal || st.Message() != "Purchase failed" {
		t.Fatalf("unexpected status %v", st)
	}

	original := status.Error(codes.Aborted, "already mapped")
	if got := s.mapDomainError(context.Background(), "Purchase", original); got != original {
		t.Fatalf("status errors must pass through, got %v", got)
	}
}

func TestBuildIdempotencyRequestHash(t *testing.T) {
	req := &catalogv1.PurchaseRequest{ProductID: "sku-1", Attached: "100"}

	a, err := buildIdempotencyRequestHash("m", "alice", req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _ := buildIdempotencyRequestHash("m", "alice", &catalogv1.PurchaseRequest{ProductID: "sku-1", Attached: "100"})
	if a != b {
		t.Fatal("hash must be deterministic")
	}
	c, _ := buildIdempotencyRequestHash("m", "bob", req)
	if a == c {
		t.Fatal("hash must depend on caller")
	}
	if _, err := buildIdempotencyRequestHash("m", "alice", nil); err == nil {
		t.Fatal("expected error for nil request")
	}
}

func TestDecodeIdempotencyFailure(t *testing.T) {
	body, _ := json.Marshal(idempotencyErrorPayload{Code: int32(codes.FailedPrecondition), Message: "product is out of stock"})
	err := decodeIdempotencyFailure(domain.IdempotencyRecord{ResponseBody: body})
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("unexpected code %v", err)
	}

	err = decodeIdempotencyFailure(domain.IdempotencyRecord{ResponseCode: int(codes.Aborted)})
	if status.Code(err) != codes.Aborted {
		t.Fatalf("expected fallback to response code, got %v", err)
	}

	err = decodeIdempotencyFailure(domain.IdempotencyRecord{ResponseCode: 999})
	if status.Code(err) != codes.Internal {
		t.Fatalf("expected Internal for out of range code, got %v", err)
	}
}

func TestCallerInterceptor(t *testing.T) {
	interceptor := CallerInterceptor()
	var seen domain.AccountRef
	handler := func(ctx context.Context, _ any) (any, error) {
		seen, _ = CallerFromContext(ctx)
		return nil, nil
	}
	read := &grpc.UnaryServerInfo{FullMethod: catalogv1.CatalogService_GetShop_FullMethodName}
	write := &grpc.UnaryServerInfo{FullMethod: catalogv1.CatalogService_CreateShop_FullMethodName}

	if _, err := interceptor(context.Background(), nil, read, handler); err != nil {
		t.Fatalf("anonymous read must pass: %v", err)
	}
	if _, err := interceptor(context.Background(), nil, write, handler); status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", err)
	}

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(CallerHeader, " alice "))
	if _, err := interceptor(ctx, nil, write, handler); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen != "alice" {
		t.Fatalf("expected caller alice, got %q", seen)
	}

	long := metadata.NewIncomingContext(context.Background(), metadata.Pairs(CallerHeader, strings.Repeat("a", 80)))
	if _, err := interceptor(long, nil, write, handler); status.Code(err) == codes.OK {
		t.Fatal("expected rejection for oversized caller id")
	}
}
