package ratelimit

import (
	"context"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestNewDisabled(t *testing.T) {
	if New(0, 1, 0) != nil || New(1, 0, 0) != nil {
		t.Fatal("invalid args must disable limiter")
	}
	var l *MapLimiter
	if !l.Allow("alice", time.Now()) {
		t.Fatal("nil limiter must allow")
	}
}

func TestAllowPerKey(t *testing.T) {
	l := New(1, 2, time.Minute)
	now := time.Now()

	if !l.Allow("alice", now) || !l.Allow("alice", now) {
		t.Fatal("burst of 2 must be allowed")
	}
	if l.Allow("alice", now) {
		t.Fatal("third call in the same instant must be rejected")
	}
	if !l.Allow("bob", now) {
		t.Fatal("keys must not share buckets")
	}
	if !l.Allow("alice", now.Add(time.Second)) {
		t.Fatal("token must refill after one second")
	}
	if !l.Allow("  ", now) {
		t.Fatal("empty key is never limited")
	}
}

func TestEvictIdle(t *testing.T) {
	l := New(1, 1, time.Minute)
	now := time.Now()
	l.Allow("alice", now)
	l.Allow("bob", now.Add(2*time.Minute))

	l.Evict(now.Add(2 * time.Minute))
	if got := l.Len(); got != 1 {
		t.Fatalf("expected 1 tracked key after eviction, got %d", got)
	}
}

func TestUnaryServerInterceptor(t *testing.T) {
	l := New(1, 1, time.Minute)
	rejected := 0
	interceptor := UnaryServerInterceptor(l, func(context.Context) string { return "alice" },
		map[string]bool{"/catalog.v1.CatalogService/Purchase": true},
		func(string) { rejected++ })

	handler := func(context.Context, any) (any, error) { return "ok", nil }
	purchase := &grpc.UnaryServerInfo{FullMethod: "/catalog.v1.CatalogService/Purchase"}
	read := &grpc.UnaryServerInfo{FullMethod: "/catalog.v1.CatalogService/GetProduct"}

	if _, err := interceptor(context.Background(), nil, purchase, handler); err != nil {
		t.Fatalf("first call must pass: %v", err)
	}
	_, err := interceptor(context.Background(), nil, purchase, handler)
	if status.Code(err) != codes.ResourceExhausted {
		t.Fatalf("expected ResourceExhausted, got %v", err)
	}
	if rejected != 1 {
		t.Fatalf("expected 1 rejection callback, got %d", rejected)
	}
	for i := 0; i < 3; i++ {
		if _, err := interceptor(context.Background(), nil, read, handler); err != nil {
			t.Fatalf("read methods are not limited: %v", err)
		}
	}
}
