package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"

	"github.com/helixir/paper-sharing-service/internal/domain"
)

// Compile-time interface verification.
var _ PaperRepository = (*PgPaperRepository)(nil)

// paperColumns selects a paper row, its uploader and its taxonomy as JSON arrays.
const paperColumns = `
	p.id, p.title, p.abstract, p.pdf_url, p.published_at, p.uploaded_at, p.updated_at, p.user_id,
	u.name, u.email, u.image,
	COALESCE((
		SELECT json_agg(json_build_object('id', a.id, 'name', a.name) ORDER BY pa.position, a.name)
		FROM paper_authors pa JOIN authors a ON a.id = pa.author_id
		WHERE pa.paper_id = p.id), '[]'::json) AS authors,
	COALESCE((
		SELECT json_agg(json_build_object('id', c.id, 'name', c.name, 'description', c.description) ORDER BY c.name)
		FROM paper_categories pc JOIN categories c ON c.id = pc.category_id
		WHERE pc.paper_id = p.id), '[]'::json) AS categories,
	COALESCE((
		SELECT json_agg(json_build_object('id', t.id, 'name', t.name) ORDER BY t.name)
		FROM paper_tags pt JOIN tags t ON t.id = pt.tag_id
		WHERE pt.paper_id = p.id), '[]'::json) AS tags`

const paperFrom = `FROM papers p JOIN users u ON u.id = p.user_id`

// PgPaperRepository is a PostgreSQL implementation of PaperRepository.
type PgPaperRepository struct {
	db DBTX
}

// NewPgPaperRepository creates a new PostgreSQL paper repository.
func NewPgPaperRepository(db DBTX) *PgPaperRepository {
	return &PgPaperRepository{db: db}
}

// Create inserts a paper row.
func (r *PgPaperRepository) Create(ctx context.Context, in domain.NewPaper) (*domain.Paper, error) {
	if in.UserID == uuid.Nil {
		return nil, domain.NewValidationError("user_id", "uploader is required")
	}

	paper := &domain.Paper{
		ID:          uuid.New(),
		Title:       in.Title,
		Abstract:    in.Abstract,
		PDFURL:      in.PDFURL,
		PublishedAt: in.PublishedAt,
		UserID:      in.UserID,
	}
	now := time.Now().UTC()

	query := `
		INSERT INTO papers (id, title, abstract, pdf_url, published_at, user_id, uploaded_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING uploaded_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		paper.ID, paper.Title, paper.Abstract, paper.PDFURL, paper.PublishedAt, paper.UserID, now, now,
	).Scan(&paper.UploadedAt, &paper.UpdatedAt)
	if err != nil {
		if isPgForeignKeyViolation(err) {
			return nil, domain.NewNotFoundError("user", in.UserID.String())
		}
		return nil, fmt.Errorf("failed to create paper: %w", err)
	}

	return paper, nil
}

// GetByID retrieves a paper by its UUID.
func (r *PgPaperRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Paper, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE p.id = $1`, paperColumns, paperFrom)

	paper, err := scanPaper(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("paper", id.String())
		}
		return nil, fmt.Errorf("failed to get paper by ID: %w", err)
	}

	return paper, nil
}

// GetDetail retrieves a paper with the users who bookmarked it.
func (r *PgPaperRepository) GetDetail(ctx context.Context, id uuid.UUID, viewer *uuid.UUID) (*domain.PaperDetail, error) {
	paper, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT u.id, u.name, u.email, u.image
		FROM bookmarks b JOIN users u ON u.id = b.user_id
		WHERE b.paper_id = $1
		ORDER BY b.created_at`

	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookmarking users: %w", err)
	}
	defer rows.Close()

	detail := &domain.PaperDetail{Paper: *paper, BookmarkedBy: []domain.UserSummary{}}
	for rows.Next() {
		var u domain.UserSummary
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Image); err != nil {
			return nil, fmt.Errorf("failed to scan bookmarking user: %w", err)
		}
		if viewer != nil && u.ID == *viewer {
			detail.Bookmarked = true
		}
		detail.BookmarkedBy = append(detail.BookmarkedBy, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bookmarking users: %w", err)
	}

	return detail, nil
}

// List retrieves one page of papers matching the filter.
func (r *PgPaperRepository) List(ctx context.Context, filter domain.PaperFilter) ([]domain.Paper, int64, error) {
	if filter.Page.Limit <= 0 || filter.Page.Page <= 0 {
		return nil, 0, domain.NewValidationError("page", "page and limit must be positive")
	}

	from, where, args := buildPaperFilter(filter)
	argIndex := len(args) + 1

	var (
		papers []domain.Paper
		total  int64
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		countQuery := fmt.Sprintf("SELECT COUNT(*) %s %s", from, where)
		if err := r.db.QueryRow(gctx, countQuery, args...).Scan(&total); err != nil {
			return fmt.Errorf("failed to count papers: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		selectQuery := fmt.Sprintf(`SELECT %s %s %s ORDER BY %s LIMIT $%d OFFSET $%d`,
			paperColumns, from, where, orderClause(filter), argIndex, argIndex+1)
		pageArgs := append(append([]any{}, args...), filter.Page.Limit, filter.Page.Offset())

		var err error
		papers, err = r.queryPapers(gctx, selectQuery, filter.Page.Limit, pageArgs...)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	return papers, total, nil
}

// Recent returns the n most recently uploaded papers.
func (r *PgPaperRepository) Recent(ctx context.Context, n int) ([]domain.Paper, error) {
	if n <= 0 {
		return []domain.Paper{}, nil
	}
	query := fmt.Sprintf(`SELECT %s %s ORDER BY p.uploaded_at DESC, p.id DESC LIMIT $1`, paperColumns, paperFrom)
	return r.queryPapers(ctx, query, n, n)
}

// SearchByTitles matches papers by substring of title or abstract, or by exact title.
func (r *PgPaperRepository) SearchByTitles(ctx context.Context, query string, titles []string, limit int) ([]domain.Paper, error) {
	if limit <= 0 {
		return nil, domain.NewValidationError("limit", "must be positive")
	}

	conditions := []string{"p.title ILIKE $1", "p.abstract ILIKE $1"}
	args := []any{containsPattern(query)}
	if len(titles) > 0 {
		conditions = append(conditions, "p.title = ANY($2)")
		args = append(args, titles)
	}
	args = append(args, limit)

	sql := fmt.Sprintf(`SELECT %s %s WHERE %s ORDER BY p.uploaded_at DESC, p.id DESC LIMIT $%d`,
		paperColumns, paperFrom, strings.Join(conditions, " OR "), len(args))

	return r.queryPapers(ctx, sql, limit, args...)
}

// UpdateMedia replaces the PDF URL of a paper.
func (r *PgPaperRepository) UpdateMedia(ctx context.Context, id uuid.UUID, pdfURL string) error {
	query := `UPDATE papers SET pdf_url = $1, updated_at = $2 WHERE id = $3`

	result, err := r.db.Exec(ctx, query, pdfURL, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update paper media: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("paper", id.String())
	}
	return nil
}

// Delete removes a paper owned by ownerID.
func (r *PgPaperRepository) Delete(ctx context.Context, id, ownerID uuid.UUID) (*domain.Paper, error) {
	paper := &domain.Paper{ID: id, UserID: ownerID}

	query := `
		DELETE FROM papers WHERE id = $1 AND user_id = $2
		RETURNING title, abstract, pdf_url, published_at, uploaded_at, updated_at`

	err := r.db.QueryRow(ctx, query, id, ownerID).Scan(
		&paper.Title, &paper.Abstract, &paper.PDFURL, &paper.PublishedAt, &paper.UploadedAt, &paper.UpdatedAt)
	if err == nil {
		return paper, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to delete paper: %w", err)
	}

	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM papers WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check paper existence: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("paper %s is owned by another user: %w", id, domain.ErrForbidden)
	}
	return nil, domain.NewNotFoundError("paper", id.String())
}

// LinkAuthors attaches authors to a paper in order.
func (r *PgPaperRepository) LinkAuthors(ctx context.Context, paperID uuid.UUID, authorIDs []uuid.UUID) error {
	query := `
		INSERT INTO paper_authors (paper_id, author_id, position)
		SELECT $1, a.id, a.ord
		FROM unnest($2::uuid[]) WITH ORDINALITY AS a(id, ord)
		ON CONFLICT DO NOTHING`
	return r.link(ctx, "author", query, paperID, authorIDs)
}

// LinkCategories attaches categories to a paper.
func (r *PgPaperRepository) LinkCategories(ctx context.Context, paperID uuid.UUID, categoryIDs []uuid.UUID) error {
	query := `
		INSERT INTO paper_categories (paper_id, category_id)
		SELECT $1, unnest($2::uuid[])
		ON CONFLICT DO NOTHING`
	return r.link(ctx, "category", query, paperID, categoryIDs)
}

// LinkTags attaches tags to a paper.
func (r *PgPaperRepository) LinkTags(ctx context.Context, paperID uuid.UUID, tagIDs []uuid.UUID) error {
	query := `
		INSERT INTO paper_tags (paper_id, tag_id)
		SELECT $1, unnest($2::uuid[])
		ON CONFLICT DO NOTHING`
	return r.link(ctx, "tag", query, paperID, tagIDs)
}

func (r *PgPaperRepository) link(ctx context.Context, entity, query string, paperID uuid.UUID, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := r.db.Exec(ctx, query, paperID, ids); err != nil {
		if isPgForeignKeyViolation(err) {
			return fmt.Errorf("link %s to paper %s: %w", entity, paperID, domain.ErrNotFound)
		}
		return fmt.Errorf("failed to link %s: %w", entity, err)
	}
	return nil
}

// CountByUser returns the number of papers uploaded by userID.
func (r *PgPaperRepository) CountByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM papers WHERE user_id = $1`, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count user papers: %w", err)
	}
	return count, nil
}

func (r *PgPaperRepository) queryPapers(ctx context.Context, query string, capacity int, args ...any) ([]domain.Paper, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query papers: %w", err)
	}
	defer rows.Close()

	papers := make([]domain.Paper, 0, capacity)
	for rows.Next() {
		paper, err := scanPaper(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan paper: %w", err)
		}
		papers = append(papers, *paper)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating papers: %w", err)
	}

	return papers, nil
}

// buildPaperFilter returns the FROM clause, WHERE clause and positional args for filter.
func buildPaperFilter(filter domain.PaperFilter) (string, string, []any) {
	from := paperFrom
	var (
		conditions []string
		args       []any
	)
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.BookmarkedBy != nil {
		from += " JOIN bookmarks bm ON bm.paper_id = p.id AND bm.user_id = " + next(*filter.BookmarkedBy)
	}

	if s := strings.TrimSpace(filter.Search); s != "" {
		ph := next(containsPattern(s))
		conditions = append(conditions, fmt.Sprintf(`(
			p.title ILIKE %[1]s OR p.abstract ILIKE %[1]s
			OR EXISTS (SELECT 1 FROM paper_authors fa JOIN authors a ON a.id = fa.author_id WHERE fa.paper_id = p.id AND a.name ILIKE %[1]s)
			OR EXISTS (SELECT 1 FROM paper_categories fc JOIN categories c ON c.id = fc.category_id WHERE fc.paper_id = p.id AND c.name ILIKE %[1]s)
			OR EXISTS (SELECT 1 FROM paper_tags ft JOIN tags t ON t.id = ft.tag_id WHERE ft.paper_id = p.id AND t.name ILIKE %[1]s))`, ph))
	}

	if len(filter.Tags) > 0 {
		conditions = append(conditions, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM paper_tags ft JOIN tags t ON t.id = ft.tag_id WHERE ft.paper_id = p.id AND t.name = ANY(%s))",
			next(filter.Tags)))
	}

	if len(filter.Categories) > 0 {
		conditions = append(conditions, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM paper_categories fc JOIN categories c ON c.id = fc.category_id WHERE fc.paper_id = p.id AND c.name = ANY(%s))",
			next(filter.Categories)))
	}

	if len(filter.Authors) > 0 {
		conditions = append(conditions, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM paper_authors fa JOIN authors a ON a.id = fa.author_id WHERE fa.paper_id = p.id AND a.name = ANY(%s))",
			next(filter.Authors)))
	}

	if filter.UserID != nil {
		conditions = append(conditions, "p.user_id = "+next(*filter.UserID))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}
	return from, where, args
}

func orderClause(filter domain.PaperFilter) string {
	if filter.BookmarkedBy != nil {
		return "bm.created_at DESC, p.id DESC"
	}
	if filter.Sort == domain.SortTitle {
		return "p.title DESC, p.id DESC"
	}
	return "p.uploaded_at DESC, p.id DESC"
}

// paperScanDest holds the destination pointers for scanning a paper row.
type paperScanDest struct {
	paper          domain.Paper
	uploader       domain.UserSummary
	authorsJSON    []byte
	categoriesJSON []byte
	tagsJSON       []byte
}

func (d *paperScanDest) destinations() []any {
	return []any{
		&d.paper.ID, &d.paper.Title, &d.paper.Abstract, &d.paper.PDFURL, &d.paper.PublishedAt,
		&d.paper.UploadedAt, &d.paper.UpdatedAt, &d.paper.UserID,
		&d.uploader.Name, &d.uploader.Email, &d.uploader.Image,
		&d.authorsJSON, &d.categoriesJSON, &d.tagsJSON,
	}
}

// finalize unmarshals the taxonomy arrays and attaches the uploader.
func (d *paperScanDest) finalize() (*domain.Paper, error) {
	d.paper.Authors = []domain.Author{}
	d.paper.Categories = []domain.Category{}
	d.paper.Tags = []domain.Tag{}

	if err := unmarshalIfPresent(d.authorsJSON, &d.paper.Authors); err != nil {
		return nil, fmt.Errorf("failed to unmarshal authors: %w", err)
	}
	if err := unmarshalIfPresent(d.categoriesJSON, &d.paper.Categories); err != nil {
		return nil, fmt.Errorf("failed to unmarshal categories: %w", err)
	}
	if err := unmarshalIfPresent(d.tagsJSON, &d.paper.Tags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
	}

	d.uploader.ID = d.paper.UserID
	d.paper.UploadedBy = &d.uploader
	return &d.paper, nil
}

func unmarshalIfPresent(data []byte, dst any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dst)
}

// scanPaper scans a single row, from either pgx.Row or pgx.Rows, into a Paper.
func scanPaper(row pgx.Row) (*domain.Paper, error) {
	var dest paperScanDest
	if err := row.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}
