// Package service implements the paper sharing use cases on top of the
// repositories: uploads, listings, bookmarks and accounts.
//
// Writes run through a UnitOfWork so that the row changes and their outbox
// events commit together. Reads go straight to the pool-bound repositories.
package service
