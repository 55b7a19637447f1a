package models

import "time"

// RefreshRecord is the single server-side session of an identity. UserID is
// the key; writing a new record replaces the previous one.
type RefreshRecord struct {
	UserID    int64
	Token     string
	ExpiresAt time.Time
}

// Active is true when the record holds a token that has not expired at now.
// A record without a token means "no active session".
func (r *RefreshRecord) Active(now time.Time) bool {
	return r != nil && r.Token != "" && now.Before(r.ExpiresAt)
}

// Remaining returns the validity left at now, never negative.
func (r *RefreshRecord) Remaining(now time.Time) time.Duration {
	if r == nil || !now.Before(r.ExpiresAt) {
		return 0
	}
	return r.ExpiresAt.Sub(now)
}
