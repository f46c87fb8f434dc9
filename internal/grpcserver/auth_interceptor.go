package grpcserver

import (
	"context"
	"strings"

	"github.com/snappy-loop/factcheck/internal/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const metadataKeyAuthorization = "authorization"

// healthServicePrefix is left open so health checks work without a key.
const healthServicePrefix = "/grpc.health.v1.Health/"

// AuthUnaryInterceptor returns a gRPC unary interceptor that validates the API key
// from the "authorization" metadata (Bearer <key>) using auth.Service.
func AuthUnaryInterceptor(authService *auth.Service) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if !authService.Enabled() || strings.HasPrefix(info.FullMethod, healthServicePrefix) {
			return handler(ctx, req)
		}
		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}
		vals := md.Get(metadataKeyAuthorization)
		if len(vals) == 0 {
			return nil, status.Error(codes.Unauthenticated, "missing authorization")
		}
		parts := strings.SplitN(vals[0], " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return nil, status.Error(codes.Unauthenticated, "invalid authorization format")
		}
		apiKey := strings.TrimSpace(parts[1])
		if apiKey == "" {
			return nil, status.Error(codes.Unauthenticated, "empty api key")
		}
		if err := authService.ValidateAPIKey(apiKey); err != nil {
			return nil, status.Error(codes.Unauthenticated, "invalid api key")
		}
		return handler(ctx, req)
	}
}
