package repository

import (
	"context"

	"github.com/google/uuid"
)

// BookmarkRepository handles user bookmarks.
type BookmarkRepository interface {
	// Add bookmarks a paper. The returned bool is false if it was already bookmarked.
	// Returns domain.ErrNotFound if the user or paper does not exist.
	Add(ctx context.Context, userID, paperID uuid.UUID) (bool, error)

	// Remove deletes a bookmark. The returned bool is false if none existed.
	Remove(ctx context.Context, userID, paperID uuid.UUID) (bool, error)

	// Exists reports whether userID has bookmarked paperID.
	Exists(ctx context.Context, userID, paperID uuid.UUID) (bool, error)

	// CountByUser returns the number of bookmarks held by userID.
	CountByUser(ctx context.Context, userID uuid.UUID) (int64, error)
}
