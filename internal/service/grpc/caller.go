package grpcsvc

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	catalogv1 "github.com/vladislavdragonenkov/catalog/api/catalogv1"
	"github.com/vladislavdragonenkov/catalog/internal/domain"
)

// CallerHeader — metadata с идентификатором вызывающего. Транспорт ему доверяет.
const CallerHeader = "x-caller-id"

type callerKey struct{}

// mutatingMethods требуют вызывающего и ограничиваются по частоте.
var mutatingMethods = map[string]bool{
	catalogv1.CatalogService_CreateShop_FullMethodName:         true,
	catalogv1.CatalogService_CreateProduct_FullMethodName:      true,
	catalogv1.CatalogService_UpdatePrice_FullMethodName:        true,
	catalogv1.CatalogService_CreateListing_FullMethodName:      true,
	catalogv1.CatalogService_UpdateListingPrice_FullMethodName: true,
	catalogv1.CatalogService_DeleteListing_FullMethodName:      true,
	catalogv1.CatalogService_Purchase_FullMethodName:           true,
	catalogv1.CatalogService_BuyListing_FullMethodName:         true,
	catalogv1.CatalogService_OnTokenTransfer_FullMethodName:    true,
	catalogv1.CatalogService_Deposit_FullMethodName:            true,
}

// MutatingMethods возвращает копию набора изменяющих методов.
func MutatingMethods() map[string]bool {
	out := make(map[string]bool, len(mutatingMethods))
	for k, v := range mutatingMethods {
		out[k] = v
	}
	return out
}

// WithCaller кладёт вызывающего в контекст.
func WithCaller(ctx context.Context, caller domain.AccountRef) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFromContext возвращает вызывающего, установленного CallerInterceptor.
func CallerFromContext(ctx context.Context) (domain.AccountRef, bool) {
	caller, ok := ctx.Value(callerKey{}).(domain.AccountRef)
	return caller, ok && caller != ""
}

// CallerKey — ключ для rate limiter: идентификатор вызывающего или пустая строка.
func CallerKey(ctx context.Context) string {
	caller, _ := CallerFromContext(ctx)
	return caller.String()
}

// CallerInterceptor разбирает x-caller-id. Изменяющие методы без него получают Unauthenticated,
// читающие проходят анонимно.
func CallerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		raw := readMetadata(ctx, CallerHeader)
		if raw == "" {
			if mutatingMethods[info.FullMethod] {
				return nil, status.Error(codes.Unauthenticated, "x-caller-id metadata is required")
			}
			return handler(ctx, req)
		}

		caller, err := domain.ParseAccount(raw)
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "x-caller-id: %v", err)
		}
		return handler(WithCaller(ctx, caller), req)
	}
}

func readMetadata(ctx context.Context, key string) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(key); len(values) > 0 && strings.TrimSpace(values[0]) != "" {
			return strings.TrimSpace(values[0])
		}
	}
	return ""
}
