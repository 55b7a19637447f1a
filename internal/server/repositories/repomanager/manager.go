package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/petauth/internal/dbx"
	"github.com/dmitrijs2005/petauth/internal/server/repositories/identities"
	"github.com/dmitrijs2005/petauth/internal/server/repositories/refreshtokens"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Identities(db dbx.DBTX) identities.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Store
}
