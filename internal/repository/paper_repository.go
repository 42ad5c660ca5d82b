package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/helixir/paper-sharing-service/internal/domain"
)

// PaperRepository handles paper persistence, taxonomy links and catalog queries.
type PaperRepository interface {
	// Create inserts a paper row. Taxonomy links are added separately.
	// Returns domain.ErrNotFound if the uploading user does not exist.
	Create(ctx context.Context, in domain.NewPaper) (*domain.Paper, error)

	// GetByID retrieves a paper with its authors, categories, tags and uploader.
	// Returns domain.ErrNotFound if no matching paper exists.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Paper, error)

	// GetDetail retrieves a paper plus the users who bookmarked it.
	// Bookmarked is set when viewer is non-nil and has bookmarked the paper.
	GetDetail(ctx context.Context, id uuid.UUID, viewer *uuid.UUID) (*domain.PaperDetail, error)

	// List returns one page of papers matching the filter and the total match count.
	// The page and the count are queried concurrently, so db must be a pool.
	List(ctx context.Context, filter domain.PaperFilter) ([]domain.Paper, int64, error)

	// Recent returns the n most recently uploaded papers.
	Recent(ctx context.Context, n int) ([]domain.Paper, error)

	// SearchByTitles returns papers whose title or abstract contains query, or
	// whose title equals one of titles. At most limit rows are returned.
	SearchByTitles(ctx context.Context, query string, titles []string, limit int) ([]domain.Paper, error)

	// UpdateMedia replaces the PDF URL of a paper.
	// Returns domain.ErrNotFound if the paper does not exist.
	UpdateMedia(ctx context.Context, id uuid.UUID, pdfURL string) error

	// Delete removes a paper owned by ownerID and returns the deleted row.
	// Returns domain.ErrNotFound if the paper does not exist and
	// domain.ErrForbidden if it belongs to someone else.
	Delete(ctx context.Context, id, ownerID uuid.UUID) (*domain.Paper, error)

	// LinkAuthors attaches authors to a paper, keeping the given order.
	LinkAuthors(ctx context.Context, paperID uuid.UUID, authorIDs []uuid.UUID) error

	// LinkCategories attaches categories to a paper.
	LinkCategories(ctx context.Context, paperID uuid.UUID, categoryIDs []uuid.UUID) error

	// LinkTags attaches tags to a paper.
	LinkTags(ctx context.Context, paperID uuid.UUID, tagIDs []uuid.UUID) error

	// CountByUser returns the number of papers uploaded by userID.
	CountByUser(ctx context.Context, userID uuid.UUID) (int64, error)
}
