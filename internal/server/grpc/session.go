package grpc

import (
	"context"

	"github.com/dmitrijs2005/petauth/internal/server/auth"
	"github.com/dmitrijs2005/petauth/internal/server/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// SessionServiceName is the gRPC service carrying authenticated calls.
const SessionServiceName = "petauth.v1.Session"

// MeMethod is the full name of Session.Me.
const MeMethod = "/" + SessionServiceName + "/Me"

// IdentityService resolves the caller's identity.
type IdentityService interface {
	Identity(ctx context.Context, id int64) (*models.Identity, error)
}

type sessionServer interface {
	Me(ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error)
}

var sessionServiceDesc = grpc.ServiceDesc{
	ServiceName: SessionServiceName,
	HandlerType: (*sessionServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Me", Handler: meHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "petauth/v1/session",
}

func meHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(sessionServer).Me(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MeMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(sessionServer).Me(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// Me returns the summary of the authenticated caller.
func (s *GRPCServer) Me(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	p, ok := auth.PrincipalFrom(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "unauthorized")
	}

	identity, err := s.identities.Identity(ctx, p.ID)
	if err != nil {
		return nil, statusFromError(err)
	}

	sum := identity.Summary()
	roles := make([]any, len(sum.Roles))
	for i, r := range sum.Roles {
		roles[i] = r
	}
	return structpb.NewStruct(map[string]any{
		"id":          sum.ID,
		"email":       sum.Email,
		"displayName": sum.DisplayName,
		"roles":       roles,
	})
}
