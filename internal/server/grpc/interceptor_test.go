package grpc

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dmitrijs2005/petauth/internal/common"
	"github.com/dmitrijs2005/petauth/internal/logging"
	"github.com/dmitrijs2005/petauth/internal/server/auth"
	"github.com/dmitrijs2005/petauth/internal/server/gate"
	"github.com/dmitrijs2005/petauth/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type fakeGate struct {
	res  gate.Result
	err  error
	auth string
	ref  string
	n    int
}

func (g *fakeGate) Authenticate(_ context.Context, authorization, refreshToken string) (gate.Result, error) {
	g.n++
	g.auth, g.ref = authorization, refreshToken
	return g.res, g.err
}

// headerStream captures headers set through grpc.SetHeader.
type headerStream struct {
	mu     sync.Mutex
	header metadata.MD
}

func (s *headerStream) Method() string { return "/test/Method" }
func (s *headerStream) SetHeader(md metadata.MD) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.header = metadata.Join(s.header, md)
	return nil
}
func (s *headerStream) SendHeader(md metadata.MD) error { return s.SetHeader(md) }
func (s *headerStream) SetTrailer(metadata.MD) error    { return nil }

func callCtx(pairs ...string) (context.Context, *headerStream) {
	stream := &headerStream{}
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(pairs...))
	return grpc.NewContextWithServerTransportStream(ctx, stream), stream
}

var testInfo = &grpc.UnaryServerInfo{FullMethod: "/petauth.Test/Call"}

func TestAuthInterceptor_AttachesPrincipal(t *testing.T) {
	g := &fakeGate{res: gate.Result{Principal: &models.Principal{ID: 4, Roles: []string{common.RoleUser}}}}
	s := NewGRPCServer("", g, nil, logging.Nop{})

	ctx, _ := callCtx("authorization", "Bearer abc", "x-refresh-token", "r1")

	var got *models.Principal
	resp, err := s.authInterceptor(ctx, nil, testInfo, func(ctx context.Context, _ any) (any, error) {
		got, _ = auth.PrincipalFrom(ctx)
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
	require.NotNil(t, got)
	assert.Equal(t, int64(4), got.ID)
	assert.Equal(t, "Bearer abc", g.auth)
	assert.Equal(t, "r1", g.ref)
}

func TestAuthInterceptor_AnonymousProceeds(t *testing.T) {
	s := NewGRPCServer("", &fakeGate{}, nil, logging.Nop{})

	called := false
	_, err := s.authInterceptor(context.Background(), nil, testInfo, func(ctx context.Context, _ any) (any, error) {
		called = true
		_, ok := auth.PrincipalFrom(ctx)
		assert.False(t, ok)
		return nil, nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestAuthInterceptor_EchoesReissuedTokens(t *testing.T) {
	g := &fakeGate{res: gate.Result{
		Principal: &models.Principal{ID: 4},
		Reissued:  &models.TokenPair{AccessToken: "Bearer fresh", RefreshToken: "r2"},
	}}
	s := NewGRPCServer("", g, nil, logging.Nop{})
	ctx, stream := callCtx("authorization", "Bearer stale", "x-refresh-token", "r1")

	_, err := s.authInterceptor(ctx, nil, testInfo, func(context.Context, any) (any, error) { return nil, nil })
	require.NoError(t, err)
	assert.Equal(t, []string{"Bearer fresh"}, stream.header.Get("authorization"))
	assert.Equal(t, []string{"r2"}, stream.header.Get("x-refresh-token"))
}

func TestAuthInterceptor_StoreOutageIsUnavailable(t *testing.T) {
	g := &fakeGate{err: common.Unavailable("get refresh token", errors.New("dial tcp: refused"))}
	s := NewGRPCServer("", g, nil, logging.Nop{})
	ctx, _ := callCtx("authorization", "Bearer stale", "x-refresh-token", "r1")

	_, err := s.authInterceptor(ctx, nil, testInfo, func(context.Context, any) (any, error) {
		t.Fatal("handler must not run")
		return nil, nil
	})
	assert.Equal(t, codes.Unavailable, status.Code(err))
}

func TestAuthInterceptor_SkipsHealth(t *testing.T) {
	g := &fakeGate{err: common.Unavailable("x", errors.New("down"))}
	s := NewGRPCServer("", g, nil, logging.Nop{})

	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}
	_, err := s.authInterceptor(context.Background(), nil, info, func(context.Context, any) (any, error) { return nil, nil })
	require.NoError(t, err)
	assert.Zero(t, g.n)
}

func TestRequestIDInterceptor(t *testing.T) {
	s := NewGRPCServer("", &fakeGate{}, nil, logging.Nop{})

	ctx, stream := callCtx()
	var seen string
	_, err := s.requestIDInterceptor(ctx, nil, testInfo, func(ctx context.Context, _ any) (any, error) {
		seen = RequestIDFrom(ctx)
		return nil, nil
	})
	require.NoError(t, err)
	assert.Len(t, seen, 36)
	assert.Equal(t, []string{seen}, stream.header.Get(requestIDKey))

	ctx, stream = callCtx(requestIDKey, "client-id")
	_, err = s.requestIDInterceptor(ctx, nil, testInfo, func(ctx context.Context, _ any) (any, error) {
		seen = RequestIDFrom(ctx)
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "client-id", seen)
	assert.Equal(t, []string{"client-id"}, stream.header.Get(requestIDKey))
}

func TestStatusFromError(t *testing.T) {
	tests := []struct {
		err  error
		want codes.Code
	}{
		{common.Unavailable("x", context.DeadlineExceeded), codes.Unavailable},
		{common.ErrSessionExpired, codes.Unauthenticated},
		{common.ErrRefreshTokenMismatch, codes.Unauthenticated},
		{common.ErrBadCredentials, codes.Unauthenticated},
		{errors.New("boom"), codes.Internal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, status.Code(statusFromError(tt.err)), tt.err.Error())
	}
}
