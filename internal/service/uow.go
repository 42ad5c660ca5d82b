package service

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/helixir/paper-sharing-service/internal/database"
	"github.com/helixir/paper-sharing-service/internal/repository"
)

// Repositories bundles the repositories bound to one database handle.
type Repositories struct {
	Users     repository.UserRepository
	Papers    repository.PaperRepository
	Taxonomy  repository.TaxonomyRepository
	Bookmarks repository.BookmarkRepository
	Outbox    repository.OutboxRepository
}

// NewPgRepositories binds every PostgreSQL repository to db, which may be
// the pool or a transaction.
func NewPgRepositories(db repository.DBTX) Repositories {
	return Repositories{
		Users:     repository.NewPgUserRepository(db),
		Papers:    repository.NewPgPaperRepository(db),
		Taxonomy:  repository.NewPgTaxonomyRepository(db),
		Bookmarks: repository.NewPgBookmarkRepository(db),
		Outbox:    repository.NewPgOutboxRepository(db),
	}
}

// UnitOfWork runs fn with repositories bound to a single transaction.
// The transaction commits when fn returns nil and rolls back otherwise.
type UnitOfWork interface {
	Within(ctx context.Context, fn func(repos Repositories) error) error
}

// PgUnitOfWork implements UnitOfWork on a database transaction runner.
type PgUnitOfWork struct {
	db database.TxRunner
}

// NewPgUnitOfWork creates a UnitOfWork backed by db.
func NewPgUnitOfWork(db database.TxRunner) *PgUnitOfWork {
	return &PgUnitOfWork{db: db}
}

// Within implements UnitOfWork.
func (u *PgUnitOfWork) Within(ctx context.Context, fn func(repos Repositories) error) error {
	return u.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		return fn(NewPgRepositories(tx))
	})
}
