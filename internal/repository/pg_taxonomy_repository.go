package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/helixir/paper-sharing-service/internal/domain"
)

// Compile-time interface verification.
var _ TaxonomyRepository = (*PgTaxonomyRepository)(nil)

// PgTaxonomyRepository is a PostgreSQL implementation of TaxonomyRepository.
type PgTaxonomyRepository struct {
	db DBTX
}

// NewPgTaxonomyRepository creates a new PostgreSQL taxonomy repository.
func NewPgTaxonomyRepository(db DBTX) *PgTaxonomyRepository {
	return &PgTaxonomyRepository{db: db}
}

// UpsertAuthors inserts missing authors and returns all of them in input order.
func (r *PgTaxonomyRepository) UpsertAuthors(ctx context.Context, names []string) ([]domain.Author, error) {
	rows, err := r.upsertNames(ctx, "authors", names)
	if err != nil {
		return nil, err
	}
	authors := make([]domain.Author, 0, len(names))
	for _, n := range names {
		if id, ok := rows[n]; ok {
			authors = append(authors, domain.Author{ID: id, Name: n})
		}
	}
	return authors, nil
}

// UpsertCategories inserts missing categories and returns all of them in input order.
func (r *PgTaxonomyRepository) UpsertCategories(ctx context.Context, names []string) ([]domain.Category, error) {
	rows, err := r.upsertNames(ctx, "categories", names)
	if err != nil {
		return nil, err
	}
	categories := make([]domain.Category, 0, len(names))
	for _, n := range names {
		if id, ok := rows[n]; ok {
			categories = append(categories, domain.Category{ID: id, Name: n})
		}
	}
	return categories, nil
}

// UpsertTags inserts missing tags and returns all of them in input order.
func (r *PgTaxonomyRepository) UpsertTags(ctx context.Context, names []string) ([]domain.Tag, error) {
	rows, err := r.upsertNames(ctx, "tags", names)
	if err != nil {
		return nil, err
	}
	tags := make([]domain.Tag, 0, len(names))
	for _, n := range names {
		if id, ok := rows[n]; ok {
			tags = append(tags, domain.Tag{ID: id, Name: n})
		}
	}
	return tags, nil
}

// upsertNames upserts names into table and maps each name to its id.
// Rows are inserted in name order so concurrent uploads lock in the same order.
// The no-op DO UPDATE makes RETURNING include rows that already existed.
func (r *PgTaxonomyRepository) upsertNames(ctx context.Context, table string, names []string) (map[string]uuid.UUID, error) {
	if len(names) == 0 {
		return map[string]uuid.UUID{}, nil
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (name)
		SELECT DISTINCT n FROM unnest($1::text[]) AS n ORDER BY n
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, name`, table)

	rows, err := r.db.Query(ctx, query, names)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert %s: %w", table, err)
	}
	defer rows.Close()

	ids := make(map[string]uuid.UUID, len(names))
	for rows.Next() {
		var (
			id   uuid.UUID
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
		}
		ids[name] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", table, err)
	}

	return ids, nil
}

// ListCategories returns every category ordered by name.
func (r *PgTaxonomyRepository) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, description FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	categories := []domain.Category{}
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}
	return categories, nil
}

// ListTags returns every tag ordered by name.
func (r *PgTaxonomyRepository) ListTags(ctx context.Context) ([]domain.Tag, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name FROM tags ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer rows.Close()

	tags := []domain.Tag{}
	for rows.Next() {
		var t domain.Tag
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tags: %w", err)
	}
	return tags, nil
}
