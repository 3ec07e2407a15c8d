package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/health/grpc_health_v1"

	catalogv1 "github.com/vladislavdragonenkov/catalog/api/catalogv1"
)

func testRuntimeConfig() Config {
	cfg := DefaultConfig()
	cfg.GRPCAddr = "127.0.0.1:0"
	cfg.MetricsAddr = "127.0.0.1:0"
	cfg.StorageDriver = StorageDriverMemory
	return cfg
}

func TestRun_MemoryGracefulShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(150 * time.Millisecond)
		cancel()
	}()

	err := Run(ctx, testRuntimeConfig())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRun_InvalidStorageDriver(t *testing.T) {
	cfg := testRuntimeConfig()
	cfg.StorageDriver = "invalid-driver"

	err := Run(context.Background(), cfg)
	if err == nil || !strings.Contains(err.Error(), "unsupported storage driver") {
		t.Fatalf("expected unsupported storage driver error, got %v", err)
	}
}

func TestRun_InvalidSettlementMode(t *testing.T) {
	cfg := testRuntimeConfig()
	cfg.SettlementMode = "sometimes"

	if err := Run(context.Background(), cfg); err == nil {
		t.Fatal("expected settlement mode error")
	}
}

func TestNewRuntime_HTTPSurface(t *testing.T) {
	rt, err := newRuntime(context.Background(), testRuntimeConfig(), log.WithField("test", "runtime"))
	if err != nil {
		t.Fatalf("newRuntime failed: %v", err)
	}
	defer rt.shutdown()

	if len(rt.workers) != 1 {
		t.Fatalf("without kafka only idempotency cleanup must run, got %d workers", len(rt.workers))
	}

	for _, path := range []string{"/livez", "/readyz", "/healthz", "/metrics", "/v1/shops", "/v1/listings"} {
		rec := httptest.NewRecorder()
		rt.httpHandler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s: expected 200, got %d: %s", path, rec.Code, rec.Body.String())
		}
	}

	rec := httptest.NewRecorder()
	rt.httpHandler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	var body struct {
		Status string                    `json:"status"`
		Checks map[string]map[string]any `json:"checks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if _, ok := body.Checks["storage"]; !ok {
		t.Fatalf("expected storage check, got %s", rec.Body.String())
	}
}

func TestNewRuntime_ShutdownMarksNotServing(t *testing.T) {
	rt, err := newRuntime(context.Background(), testRuntimeConfig(), log.WithField("test", "runtime-shutdown"))
	if err != nil {
		t.Fatalf("newRuntime failed: %v", err)
	}
	rt.shutdown()

	resp, err := rt.healthServer.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{Service: catalogv1.ServiceName})
	if err != nil {
		t.Fatalf("health check: %v", err)
	}
	if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("expected NOT_SERVING, got %s", resp.GetStatus())
	}
}

func TestRegisterGRPCMetrics_Reuses(t *testing.T) {
	logger := log.WithField("test", "grpc-metrics")
	first := registerGRPCMetrics(logger)
	second := registerGRPCMetrics(logger)
	if first != second {
		t.Fatal("expected already registered collector to be reused")
	}
}
