package grpc

import (
	"context"
	"errors"
	"strings"

	"github.com/dmitrijs2005/petauth/internal/common"
	"github.com/dmitrijs2005/petauth/internal/server/auth"
	"github.com/dmitrijs2005/petauth/internal/server/gate"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const requestIDKey = "x-request-id"

// Authenticator is the per-request gate.
type Authenticator interface {
	Authenticate(ctx context.Context, authorization, refreshToken string) (gate.Result, error)
}

type ctxKey struct{}

// RequestIDFrom returns the id assigned to the call by the server.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func firstMetadata(md metadata.MD, key string) string {
	if values := md.Get(key); len(values) > 0 {
		return values[0]
	}
	return ""
}

// requestIDInterceptor reuses a client supplied x-request-id or generates
// one, and returns it in the response header.
func (s *GRPCServer) requestIDInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	id := firstMetadata(md, requestIDKey)
	if id == "" {
		id = uuid.NewString()
	}

	ctx = context.WithValue(ctx, ctxKey{}, id)
	if err := grpc.SetHeader(ctx, metadata.Pairs(requestIDKey, id)); err != nil {
		s.logger.Debug(ctx, "cannot set request id header", "error", err)
	}

	resp, err := handler(ctx, req)
	s.logger.Info(ctx, "rpc", "request_id", id, "method", info.FullMethod, "code", status.Code(err).String())
	return resp, err
}

// authInterceptor runs the gate on the call metadata. A valid principal is
// attached to the context; reissued tokens go back in the response header.
// Anonymous calls proceed, and the handlers decide whether that is enough.
func (s *GRPCServer) authInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if strings.HasPrefix(info.FullMethod, "/grpc.health.v1.Health/") {
		return handler(ctx, req)
	}

	md, _ := metadata.FromIncomingContext(ctx)
	res, err := s.gate.Authenticate(ctx,
		firstMetadata(md, strings.ToLower(common.AuthorizationHeaderName)),
		firstMetadata(md, strings.ToLower(common.RefreshTokenHeaderName)),
	)
	if err != nil {
		s.logger.Error(ctx, "authentication gate failed", "method", info.FullMethod, "error", err)
		return nil, statusFromError(err)
	}

	if res.Reissued != nil {
		pairs := metadata.Pairs(
			strings.ToLower(common.AuthorizationHeaderName), res.Reissued.AccessToken,
			strings.ToLower(common.RefreshTokenHeaderName), res.Reissued.RefreshToken,
		)
		if err := grpc.SetHeader(ctx, pairs); err != nil {
			s.logger.Warn(ctx, "cannot echo reissued tokens", "error", err)
		}
	}
	if res.Principal != nil {
		ctx = auth.WithPrincipal(ctx, res.Principal)
	}

	return handler(ctx, req)
}

func statusFromError(err error) error {
	switch {
	case errors.Is(err, common.ErrStoreUnavailable):
		return status.Error(codes.Unavailable, "service temporarily unavailable")
	case errors.Is(err, common.ErrBadCredentials),
		errors.Is(err, common.ErrSessionExpired),
		errors.Is(err, common.ErrRefreshTokenMismatch),
		errors.Is(err, common.ErrSignatureInvalid),
		errors.Is(err, common.ErrTokenExpired),
		errors.Is(err, common.ErrorUnauthorized):
		return status.Error(codes.Unauthenticated, "unauthorized")
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, "not found")
	default:
		return status.Error(codes.Internal, "internal error")
	}
}
