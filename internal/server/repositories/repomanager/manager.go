package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/boardkeeper/internal/dbx"
	"github.com/dmitrijs2005/boardkeeper/internal/server/repositories/records"
	"github.com/dmitrijs2005/boardkeeper/internal/server/repositories/shares"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Records(db dbx.DBTX) records.Repository
	Shares(db dbx.DBTX) shares.Repository
}
