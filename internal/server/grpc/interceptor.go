package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/cerberus/internal/common"
	"github.com/dmitrijs2005/cerberus/internal/server/gate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func authorization(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(common.AuthorizationMetadataKey); len(values) > 0 {
			return values[0]
		}
	}
	return ""
}

// authenticate runs the gate for method and returns ctx carrying the claims.
func (s *GRPCServer) authenticate(ctx context.Context, method string) (context.Context, error) {
	claims, err := s.gate.Authenticate(ctx, method, authorization(ctx))
	if err != nil {
		if errors.Is(err, common.ErrStoreUnavailable) {
			s.logger.Error(ctx, "rpc rejected", "method", method, "error", err)
			return nil, status.Error(codes.Unavailable, "service unavailable")
		}
		s.logger.Warn(ctx, "rpc rejected", "method", method, "error", err)
		return nil, status.Error(codes.Unauthenticated, "authentication required")
	}
	if claims != nil {
		ctx = gate.WithClaims(ctx, claims)
	}
	return ctx, nil
}

func (s *GRPCServer) unaryAuthInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	ctx, err := s.authenticate(ctx, info.FullMethod)
	if err != nil {
		return nil, err
	}
	return handler(ctx, req)
}

type authedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (a *authedStream) Context() context.Context { return a.ctx }

func (s *GRPCServer) streamAuthInterceptor(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	ctx, err := s.authenticate(ss.Context(), info.FullMethod)
	if err != nil {
		return err
	}
	return handler(srv, &authedStream{ServerStream: ss, ctx: ctx})
}
