package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/davkeeper/internal/dbx"
	"github.com/dmitrijs2005/davkeeper/internal/server/repositories/appsessions"
	"github.com/dmitrijs2005/davkeeper/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to either the pool or a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	AppSessions(db dbx.DBTX) appsessions.Repository
}
