package grpcsvc

import (
	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	catalogv1 "github.com/vladislavdragonenkov/catalog/api/catalogv1"
	"github.com/vladislavdragonenkov/catalog/internal/metrics"
	"github.com/vladislavdragonenkov/catalog/internal/ratelimit"
)

// ServerOptions — необязательные части цепочки interceptors.
type ServerOptions struct {
	GRPCMetrics *promgrpc.ServerMetrics
	Limiter     *ratelimit.MapLimiter
	Metrics     *metrics.SettlementMetrics
}

// NewServer собирает gRPC-сервер: метрики, caller, rate limit, затем сервис и health.
func NewServer(svc *CatalogService, opts ServerOptions) (*grpc.Server, *health.Server) {
	interceptors := make([]grpc.UnaryServerInterceptor, 0, 3)
	if opts.GRPCMetrics != nil {
		interceptors = append(interceptors, opts.GRPCMetrics.UnaryServerInterceptor())
	}
	interceptors = append(interceptors, CallerInterceptor())
	if opts.Limiter != nil {
		var onReject ratelimit.RejectFunc
		if opts.Metrics != nil {
			onReject = opts.Metrics.RecordRateLimited
		}
		interceptors = append(interceptors, ratelimit.UnaryServerInterceptor(opts.Limiter, CallerKey, MutatingMethods(), onReject))
	}

	server := grpc.NewServer(grpc.ChainUnaryInterceptor(interceptors...))
	catalogv1.RegisterCatalogServiceServer(server, svc)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(catalogv1.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, healthServer)

	if opts.GRPCMetrics != nil {
		opts.GRPCMetrics.InitializeMetrics(server)
	}
	return server, healthServer
}
