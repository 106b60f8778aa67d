// Package repomanager vends repository implementations bound to a database
// handle. Services pass in either the pool (*sql.DB) or a transaction
// (*sql.Tx) via dbx.DBTX, so the same repositories serve locked,
// transactional reads and plain ones.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/ilyakharev/authd/internal/dbx"
	"github.com/ilyakharev/authd/internal/server/repositories/refreshtokens"
	"github.com/ilyakharev/authd/internal/server/repositories/users"
	"github.com/ilyakharev/authd/internal/server/repositories/verifications"
)

// RepositoryManager constructs repositories and owns schema migration.
type RepositoryManager interface {
	Users(db dbx.DBTX) users.Repository
	Verifications(db dbx.DBTX) verifications.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	RunMigrations(ctx context.Context, db *sql.DB) error
}
