// Package identities declares the persistence contract for registered
// identities and its PostgreSQL implementation.
package identities

import (
	"context"

	"github.com/dmitrijs2005/petauth/internal/server/models"
)

// Repository stores identities. Lookups by email expect the normalized
// (trimmed, lower-cased) address.
type Repository interface {
	// Create inserts identity and fills its ID and CreatedAt. A duplicate
	// email yields common.ErrEmailTaken.
	Create(ctx context.Context, identity *models.Identity) (*models.Identity, error)

	// GetByEmail returns common.ErrorNotFound when no identity has email.
	GetByEmail(ctx context.Context, email string) (*models.Identity, error)

	// GetByID returns common.ErrorNotFound when id is unknown.
	GetByID(ctx context.Context, id int64) (*models.Identity, error)

	// ExistsByEmail reports whether email is already registered.
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}
