package services

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/petauth/internal/common"
	"github.com/sethvargo/go-retry"
)

// storePolicy bounds every store call with a timeout and retries it once
// after a short pause when the store reports itself unavailable.
type storePolicy struct {
	timeout time.Duration
	backoff time.Duration
}

func newStorePolicy(timeout, backoff time.Duration) storePolicy {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if backoff <= 0 {
		backoff = time.Millisecond
	}
	return storePolicy{timeout: timeout, backoff: backoff}
}

func storeCall[T any](ctx context.Context, p storePolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	b := retry.WithMaxRetries(1, retry.NewConstant(p.backoff))
	return retry.DoValue(ctx, b, func(ctx context.Context) (T, error) {
		callCtx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()

		v, err := fn(callCtx)
		if err != nil && errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, common.ErrStoreUnavailable) {
			err = common.Unavailable("store call", err)
		}
		if errors.Is(err, common.ErrStoreUnavailable) {
			return v, retry.RetryableError(err)
		}
		return v, err
	})
}

func storeExec(ctx context.Context, p storePolicy, fn func(ctx context.Context) error) error {
	_, err := storeCall(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

