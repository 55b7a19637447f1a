package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dmitrijs2005/petauth/internal/common"
	"github.com/dmitrijs2005/petauth/internal/dbx"
	"github.com/dmitrijs2005/petauth/internal/server/models"
)

// PostgresStore keeps refresh records in the refresh_tokens table. Row-level
// locking of the upsert serializes writers of the same identity only.
type PostgresStore struct {
	db dbx.DBTX
}

// NewPostgresStore constructs a store bound to the given DBTX.
func NewPostgresStore(db dbx.DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Put(ctx context.Context, userID int64, token string, expiresAt time.Time) error {
	query := `
		INSERT INTO refresh_tokens (user_id, token, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET token = EXCLUDED.token, expires_at = EXCLUDED.expires_at, updated_at = now()
	`
	if _, err := s.db.ExecContext(ctx, query, userID, token, expiresAt.UTC()); err != nil {
		return common.Unavailable("put refresh token", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, userID int64) (*models.RefreshRecord, error) {
	query := `
		SELECT user_id, token, expires_at
		FROM refresh_tokens
		WHERE user_id = $1
	`
	rec := &models.RefreshRecord{}
	if err := s.db.QueryRowContext(ctx, query, userID).Scan(&rec.UserID, &rec.Token, &rec.ExpiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, common.Unavailable("get refresh token", err)
	}
	return rec, nil
}

func (s *PostgresStore) Delete(ctx context.Context, userID int64) error {
	query := `
		DELETE FROM refresh_tokens
		WHERE user_id = $1
	`
	if _, err := s.db.ExecContext(ctx, query, userID); err != nil {
		return common.Unavailable("delete refresh token", err)
	}
	return nil
}
