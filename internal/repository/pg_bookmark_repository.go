package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/helixir/paper-sharing-service/internal/domain"
)

// Compile-time interface verification.
var _ BookmarkRepository = (*PgBookmarkRepository)(nil)

// PgBookmarkRepository is a PostgreSQL implementation of BookmarkRepository.
type PgBookmarkRepository struct {
	db DBTX
}

// NewPgBookmarkRepository creates a new PostgreSQL bookmark repository.
func NewPgBookmarkRepository(db DBTX) *PgBookmarkRepository {
	return &PgBookmarkRepository{db: db}
}

// Add bookmarks a paper for a user.
func (r *PgBookmarkRepository) Add(ctx context.Context, userID, paperID uuid.UUID) (bool, error) {
	query := `
		INSERT INTO bookmarks (user_id, paper_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, paper_id) DO NOTHING`

	result, err := r.db.Exec(ctx, query, userID, paperID, time.Now().UTC())
	if err != nil {
		if isPgForeignKeyViolation(err) {
			return false, domain.NewNotFoundError("paper", paperID.String())
		}
		return false, fmt.Errorf("failed to add bookmark: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

// Remove deletes a bookmark.
func (r *PgBookmarkRepository) Remove(ctx context.Context, userID, paperID uuid.UUID) (bool, error) {
	result, err := r.db.Exec(ctx, `DELETE FROM bookmarks WHERE user_id = $1 AND paper_id = $2`, userID, paperID)
	if err != nil {
		return false, fmt.Errorf("failed to remove bookmark: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

// Exists reports whether a bookmark exists.
func (r *PgBookmarkRepository) Exists(ctx context.Context, userID, paperID uuid.UUID) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM bookmarks WHERE user_id = $1 AND paper_id = $2)`
	if err := r.db.QueryRow(ctx, query, userID, paperID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check bookmark: %w", err)
	}
	return exists, nil
}

// CountByUser returns the number of bookmarks held by userID.
func (r *PgBookmarkRepository) CountByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM bookmarks WHERE user_id = $1`, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count bookmarks: %w", err)
	}
	return count, nil
}
