// Package repository provides data access interfaces and their PostgreSQL
// implementations for the paper sharing service.
//
// # Repository Interfaces
//
//   - UserRepository: accounts, credentials and profiles
//   - PaperRepository: papers, their taxonomy links and listings
//   - TaxonomyRepository: authors, categories and tags, upserted by name
//   - BookmarkRepository: user bookmarks
//   - OutboxRepository: transactional outbox storage and claiming
//
// # Error Handling
//
// Methods return domain errors, wrapped with context:
//
//   - domain.ErrNotFound: resource does not exist, or a referenced row is missing
//   - domain.ErrAlreadyExists: unique constraint violation
//   - domain.ErrInvalidInput: invalid parameters provided
//
// # Transactions
//
// Every Pg implementation takes a DBTX, so the same code runs on the pool or
// inside a transaction from database.DB.WithTransaction:
//
//	err := db.WithTransaction(ctx, func(tx pgx.Tx) error {
//	    papers := repository.NewPgPaperRepository(tx)
//	    return papers.LinkTags(ctx, paperID, tagIDs)
//	})
package repository

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/helixir/paper-sharing-service/internal/database"
)

// DBTX is the database interface supporting both pool and transaction contexts.
type DBTX = database.DBTX

// PostgreSQL error codes.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// isPgError reports whether err carries the given PostgreSQL error code.
func isPgError(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}

// isPgUniqueViolation checks if the error is a PostgreSQL unique constraint violation.
func isPgUniqueViolation(err error) bool {
	return isPgError(err, pgUniqueViolation)
}

// isPgForeignKeyViolation checks if the error is a PostgreSQL foreign key violation.
func isPgForeignKeyViolation(err error) bool {
	return isPgError(err, pgForeignKeyViolation)
}

// likeEscaper escapes LIKE metacharacters with the default backslash escape.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern returns an ILIKE pattern matching s anywhere in a value.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
