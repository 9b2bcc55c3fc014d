package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/bigdatakeeper/internal/dbx"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/repositories/analytics"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/repositories/files"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/repositories/folders"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/repositories/intents"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, so the same code
// runs against *sql.DB or inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Folders(db dbx.DBTX) folders.Repository
	Files(db dbx.DBTX) files.Repository
	Analytics(db dbx.DBTX) analytics.Repository
	Intents(db dbx.DBTX) intents.Repository
}
