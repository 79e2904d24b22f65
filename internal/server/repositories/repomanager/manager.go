package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/cerberus/internal/dbx"
	"github.com/dmitrijs2005/cerberus/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/cerberus/internal/server/repositories/sessions"
)

// RepositoryManager vends repositories bound to a DBTX, so the same code
// path works against the pool or inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Accounts(db dbx.DBTX) accounts.Repository
	Sessions(db dbx.DBTX) sessions.Repository
}
