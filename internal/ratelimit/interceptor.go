package ratelimit

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// KeyFunc извлекает ключ ограничения из контекста вызова.
type KeyFunc func(ctx context.Context) string

// RejectFunc вызывается при отказе; используется для метрик.
type RejectFunc func(method string)

// UnaryServerInterceptor ограничивает только методы из набора methods.
func UnaryServerInterceptor(limiter *MapLimiter, key KeyFunc, methods map[string]bool, onReject RejectFunc) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if limiter == nil || !methods[info.FullMethod] {
			return handler(ctx, req)
		}
		if !limiter.Allow(key(ctx), time.Now()) {
			if onReject != nil {
				onReject(info.FullMethod)
			}
			return nil, status.Error(codes.ResourceExhausted, "rate limit exceeded")
		}
		return handler(ctx, req)
	}
}
