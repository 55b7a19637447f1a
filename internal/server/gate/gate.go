// Package gate authenticates inbound requests independently of transport.
// It never rejects a request itself: failures leave the request anonymous
// and authorization further down decides the status.
package gate

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/dmitrijs2005/petauth/internal/common"
	"github.com/dmitrijs2005/petauth/internal/logging"
	"github.com/dmitrijs2005/petauth/internal/server/auth"
	"github.com/dmitrijs2005/petauth/internal/server/models"
	"golang.org/x/sync/singleflight"
)

// Refresher renews a session from an expired access token and the refresh
// token presented with it.
type Refresher interface {
	Refresh(ctx context.Context, accessToken, refreshToken string) (*models.TokenPair, error)
}

// Result is the outcome of authenticating one request. Principal is nil
// for anonymous requests. Reissued is set when the gate refreshed an
// expired access token; transports echo it back to the client.
type Result struct {
	Principal *models.Principal
	Reissued  *models.TokenPair
}

// Authenticated reports whether the request carries a principal.
func (r Result) Authenticated() bool {
	return r.Principal != nil
}

// DefaultRefreshTimeout bounds a shared transparent refresh.
const DefaultRefreshTimeout = 10 * time.Second

type Authenticator struct {
	codec          *auth.TokenCodec
	refresher      Refresher
	logger         logging.Logger
	inflight       singleflight.Group
	refreshTimeout time.Duration
}

// Option customizes an Authenticator.
type Option func(*Authenticator)

// WithRefreshTimeout bounds the shared refresh call, which runs detached
// from the cancellation of any single request.
func WithRefreshTimeout(d time.Duration) Option {
	return func(a *Authenticator) {
		if d > 0 {
			a.refreshTimeout = d
		}
	}
}

func NewAuthenticator(codec *auth.TokenCodec, refresher Refresher, logger logging.Logger, opts ...Option) *Authenticator {
	a := &Authenticator{
		codec:          codec,
		refresher:      refresher,
		logger:         logger.With("module", "gate"),
		refreshTimeout: DefaultRefreshTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Authenticate evaluates the Authorization header value and the optional
// refresh token presented by the client.
//
// A valid token yields its principal. An invalid one, or a missing header,
// yields an anonymous result. An expired token is refreshed transparently
// when refreshToken matches the stored session; concurrent refreshes with
// the same tokens share one store round trip. The only error returned is
// one wrapping common.ErrStoreUnavailable, which must not be mistaken for
// an expired session.
func (a *Authenticator) Authenticate(ctx context.Context, authorization, refreshToken string) (Result, error) {
	if authorization == "" {
		return Result{}, nil
	}
	token, ok := auth.ParseBearer(authorization)
	if !ok {
		return Result{}, nil
	}

	v := a.codec.Verify(token)
	switch v.Status {
	case auth.StatusValid:
		return Result{Principal: principal(v)}, nil
	case auth.StatusExpired:
		return a.refresh(ctx, token, refreshToken, v)
	default:
		a.logger.Debug(ctx, "rejected access token")
		return Result{}, nil
	}
}

func (a *Authenticator) refresh(ctx context.Context, token, refreshToken string, v auth.Verification) (Result, error) {
	if refreshToken == "" || a.refresher == nil {
		return Result{}, nil
	}

	// The shared call is detached from each waiter's cancellation.
	key := strconv.FormatInt(v.UserID, 10) + ":" + refreshToken
	ch := a.inflight.DoChan(key, func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.refreshTimeout)
		defer cancel()
		return a.refresher.Refresh(callCtx, auth.FormatBearer(token), refreshToken)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return Result{}, common.Unavailable("transparent refresh", ctx.Err())
	}

	pair, err, shared := res.Val, res.Err, res.Shared
	if err != nil {
		if errors.Is(err, common.ErrStoreUnavailable) {
			return Result{}, err
		}
		a.logger.Debug(ctx, "transparent refresh refused", "user_id", v.UserID, "reason", err.Error())
		return Result{}, nil
	}

	a.logger.Debug(ctx, "transparent refresh", "user_id", v.UserID, "shared", shared)
	return Result{Principal: principal(v), Reissued: pair.(*models.TokenPair)}, nil
}

func principal(v auth.Verification) *models.Principal {
	return &models.Principal{ID: v.UserID, Roles: v.Claims.Roles}
}
