package grpcserver

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/factcheck/internal/agents"
	"github.com/snappy-loop/factcheck/internal/models"
	"github.com/snappy-loop/factcheck/internal/services"
	"github.com/snappy-loop/factcheck/internal/upstream"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// FactCheckServiceName is the fully qualified gRPC service name.
const FactCheckServiceName = "factcheck.v1.FactCheckService"

// FactChecker runs the pipeline for one text.
type FactChecker interface {
	Check(ctx context.Context, text string) (*models.FactCheckResult, error)
	Extract(ctx context.Context, text string) (*models.Claim, error)
}

// FactCheckServer serves factcheck.v1.FactCheckService. Requests and responses are
// google.protobuf.Struct values so clients need no generated stubs:
//
//	Check:        {"text": "..."} -> {"claim": "...", "score": 7, "comments": "..."}
//	ExtractClaim: {"text": "..."} -> {"isClaim": true, "claim": "..."}
type FactCheckServer struct {
	checker FactChecker
}

// NewFactCheckServer returns a new FactCheckServer.
func NewFactCheckServer(checker FactChecker) *FactCheckServer {
	return &FactCheckServer{checker: checker}
}

// Check runs extraction and verification on the request text.
func (s *FactCheckServer) Check(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	text, err := textField(req)
	if err != nil {
		return nil, err
	}
	result, err := s.checker.Check(ctx, text)
	if err != nil {
		return nil, statusFromError(ctx, err)
	}
	return structpb.NewStruct(map[string]interface{}{
		"claim":    result.Claim.Claim,
		"score":    result.Verification.Verdict.Score,
		"comments": result.Verification.Verdict.Comments,
	})
}

// ExtractClaim returns the claim found in the request text without verifying it.
func (s *FactCheckServer) ExtractClaim(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	text, err := textField(req)
	if err != nil {
		return nil, err
	}
	claim, err := s.checker.Extract(ctx, text)
	if errors.Is(err, services.ErrNoClaim) {
		return structpb.NewStruct(map[string]interface{}{"isClaim": false, "claim": models.NoClaimsFound})
	}
	if err != nil {
		return nil, statusFromError(ctx, err)
	}
	return structpb.NewStruct(map[string]interface{}{
		"isClaim": claim.HasClaim(),
		"claim":   claim.Claim,
	})
}

func textField(req *structpb.Struct) (string, error) {
	v, ok := req.GetFields()["text"]
	if !ok {
		return "", status.Error(codes.InvalidArgument, "text parameter is required")
	}
	if _, isString := v.GetKind().(*structpb.Value_StringValue); !isString {
		return "", status.Error(codes.InvalidArgument, "text must be a string")
	}
	return v.GetStringValue(), nil
}

// statusFromError maps pipeline errors onto gRPC codes, mirroring the HTTP API.
func statusFromError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, services.ErrNoClaim):
		return status.Error(codes.NotFound, models.NoClaimsFound)
	case errors.Is(err, services.ErrTextTooLong):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, agents.ErrStepsExhausted), errors.Is(err, upstream.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "fact-check timed out")
	case errors.Is(err, upstream.ErrUnparseable):
		return status.Error(codes.Unavailable, "upstream provider returned an unexpected response")
	case errors.Is(err, upstream.ErrUnavailable):
		return status.Error(codes.Unavailable, "upstream provider unavailable")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request canceled")
	default:
		log.Ctx(ctx).Error().Err(err).Msg("gRPC fact-check failed")
		return status.Error(codes.Internal, "internal error")
	}
}

type factCheckHandler interface {
	Check(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ExtractClaim(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterFactCheckServer registers srv on s.
func RegisterFactCheckServer(s grpc.ServiceRegistrar, srv *FactCheckServer) {
	s.RegisterService(&factCheckServiceDesc, srv)
}

func unaryStructHandler(method string, call func(factCheckHandler, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	fullMethod := FullMethod(method)
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		h := srv.(factCheckHandler)
		if interceptor == nil {
			return call(h, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(h, ctx, req.(*structpb.Struct))
		})
	}
}

var factCheckServiceDesc = grpc.ServiceDesc{
	ServiceName: FactCheckServiceName,
	HandlerType: (*factCheckHandler)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Check",
			Handler: unaryStructHandler("Check", func(h factCheckHandler, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				return h.Check(ctx, in)
			}),
		},
		{
			MethodName: "ExtractClaim",
			Handler: unaryStructHandler("ExtractClaim", func(h factCheckHandler, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				return h.ExtractClaim(ctx, in)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "factcheck/v1/factcheck.proto",
}

// FullMethod returns the full gRPC method name of a FactCheckService method.
func FullMethod(method string) string {
	return "/" + FactCheckServiceName + "/" + method
}
