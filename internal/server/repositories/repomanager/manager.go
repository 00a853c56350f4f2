// Package repomanager vends repositories bound to a *sql.DB or *sql.Tx and
// runs the schema migrations.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/possync/internal/dbx"
	"github.com/dmitrijs2005/possync/internal/server/repositories/records"
	"github.com/dmitrijs2005/possync/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/possync/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Records(db dbx.DBTX) records.Repository
}
