package repository

import (
	"context"

	"github.com/helixir/paper-sharing-service/internal/domain"
)

// TaxonomyRepository handles authors, categories and tags.
// Upserts are keyed by exact name and return rows in the order of names.
type TaxonomyRepository interface {
	UpsertAuthors(ctx context.Context, names []string) ([]domain.Author, error)
	UpsertCategories(ctx context.Context, names []string) ([]domain.Category, error)
	UpsertTags(ctx context.Context, names []string) ([]domain.Tag, error)

	// ListCategories returns every category ordered by name.
	ListCategories(ctx context.Context) ([]domain.Category, error)
	// ListTags returns every tag ordered by name.
	ListTags(ctx context.Context) ([]domain.Tag, error)
}
