package repomanager

import (
	"context"
	"database/sql"

	"github.com/genovault/genovault/internal/dbx"
	"github.com/genovault/genovault/internal/server/repositories/audit"
	"github.com/genovault/genovault/internal/server/repositories/files"
	"github.com/genovault/genovault/internal/server/repositories/grants"
	"github.com/genovault/genovault/internal/server/repositories/profiles"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Profiles(db dbx.DBTX) profiles.Repository
	Files(db dbx.DBTX) files.Repository
	Grants(db dbx.DBTX) grants.Repository
	Audit(db dbx.DBTX) audit.Repository
}
