// Package common defines shared constants and sentinel errors used across
// the repositories, services and transports of petauth. Callers should use
// errors.Is to match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// ErrStoreUnavailable marks a transient storage failure (timeout,
	// connection loss). Callers may retry; it must never be reported to a
	// client as an expired session.
	ErrStoreUnavailable = errors.New("store unavailable")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorValidation   = errors.New("validation error")

	// Credential errors.
	ErrBadCredentials = errors.New("bad credentials")
	ErrEmailTaken     = errors.New("email already taken")

	// Access token errors.
	ErrSignatureInvalid = errors.New("invalid token signature")
	ErrTokenExpired     = errors.New("token expired")

	// Session (refresh record) errors.
	ErrSessionExpired       = errors.New("session expired")
	ErrRefreshTokenMismatch = errors.New("refresh token mismatch")
)

// Unavailable wraps a driver error so that it matches both
// ErrStoreUnavailable and the original cause.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
