// Package repomanager wires repositories to database handles and owns
// schema migrations.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/arsansys/siva/internal/dbx"
	"github.com/arsansys/siva/internal/server/repositories/products"
	"github.com/arsansys/siva/internal/server/repositories/revokedtokens"
	"github.com/arsansys/siva/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RevokedTokens(db dbx.DBTX) revokedtokens.Repository
	Products(db dbx.DBTX) products.Repository
}
