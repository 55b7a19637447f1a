// Package refreshtokens persists the server-side refresh record of each
// identity. There is at most one record per identity; writing a new one
// replaces the previous token.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/petauth/internal/server/models"
)

// Store is keyed by identity id and never scans by token value.
//
// An absent record is reported as (nil, nil). Backend failures wrap
// common.ErrStoreUnavailable.
type Store interface {
	// Put upserts the record for userID, invalidating any earlier token.
	Put(ctx context.Context, userID int64, token string, expiresAt time.Time) error
	Get(ctx context.Context, userID int64) (*models.RefreshRecord, error)
	// Delete is idempotent.
	Delete(ctx context.Context, userID int64) error
}
