package grpcserver

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// RegisterHealth registers the standard health service on s and marks the
// overall server and the fact-check service as serving.
func RegisterHealth(s grpc.ServiceRegistrar) *health.Server {
	h := health.NewServer()
	healthpb.RegisterHealthServer(s, h)
	h.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	h.SetServingStatus(FactCheckServiceName, healthpb.HealthCheckResponse_SERVING)
	return h
}
