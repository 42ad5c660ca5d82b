package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/helixir/paper-sharing-service/internal/auth"
	"github.com/helixir/paper-sharing-service/internal/cache"
	"github.com/helixir/paper-sharing-service/internal/domain"
	"github.com/helixir/paper-sharing-service/internal/observability"
	"github.com/helixir/paper-sharing-service/internal/outbox"
	"github.com/helixir/paper-sharing-service/internal/storage"
)

// Defaults for PaperConfig.
const (
	DefaultRecentLimit    = 20
	DefaultDashboardLimit = 10
	DefaultMaxUploadSize  = 32 << 20
)

// Media byte origins recorded in metrics.
const (
	MediaOriginUpload = "upload"
	MediaOriginImport = "import"
)

// ErrMediaDisabled is returned by file uploads when no media store is configured.
var ErrMediaDisabled = fmt.Errorf("media store is not configured: %w", domain.ErrServiceUnavailable)

// MediaImporter copies an external PDF onto the media host in the background.
type MediaImporter interface {
	StartMediaImport(ctx context.Context, paperID, ownerID uuid.UUID, sourceURL string) error
}

// PaperConfig tunes the paper service. Zero values select defaults.
type PaperConfig struct {
	// RecentLimit is the size of the home feed.
	RecentLimit int
	// DashboardLimit is the number of recent uploads and bookmarks on the dashboard.
	DashboardLimit int
	// MaxUploadSize caps uploaded PDF files, in bytes.
	MaxUploadSize int64
}

// PaperOption configures optional collaborators of a PaperService.
type PaperOption func(*PaperService)

// WithMediaStore enables file uploads.
func WithMediaStore(store storage.MediaStore) PaperOption {
	return func(s *PaperService) { s.media = store }
}

// WithMediaImporter starts a media import for uploads whose PDF lives elsewhere.
func WithMediaImporter(importer MediaImporter) PaperOption {
	return func(s *PaperService) { s.importer = importer }
}

// WithFeedCache serves the home feed through c.
func WithFeedCache(c cache.FeedCache) PaperOption {
	return func(s *PaperService) { s.feed = c }
}

// WithMetrics records upload and cache metrics.
func WithMetrics(m *observability.Metrics) PaperOption {
	return func(s *PaperService) { s.metrics = m }
}

// PaperService implements uploads, listings and deletion of papers.
type PaperService struct {
	repos    Repositories
	uow      UnitOfWork
	emitter  *outbox.Emitter
	media    storage.MediaStore
	importer MediaImporter
	feed     cache.FeedCache
	validate *validator.Validate
	cfg      PaperConfig
	metrics  *observability.Metrics
	logger   zerolog.Logger
}

// NewPaperService creates a PaperService. repos must be bound to the pool.
func NewPaperService(repos Repositories, uow UnitOfWork, emitter *outbox.Emitter, cfg PaperConfig, logger zerolog.Logger, opts ...PaperOption) *PaperService {
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = DefaultRecentLimit
	}
	if cfg.DashboardLimit <= 0 {
		cfg.DashboardLimit = DefaultDashboardLimit
	}
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = DefaultMaxUploadSize
	}
	s := &PaperService{
		repos:    repos,
		uow:      uow,
		emitter:  emitter,
		feed:     cache.Nop{},
		validate: newValidator(),
		cfg:      cfg,
		logger:   observability.WithComponent(logger, "paper-service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PaperPage is one page of a paper listing.
type PaperPage struct {
	Papers     []domain.Paper  `json:"papers"`
	Pagination domain.PageInfo `json:"pagination"`
}

// FileUpload is a PDF file received from a client.
type FileUpload struct {
	Body        io.Reader
	Size        int64
	ContentType string
	Filename    string
}

// StoredFile is a PDF written to the media host.
type StoredFile struct {
	Key  string `json:"key"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
}

// Upload validates in and creates the paper with its taxonomy in one
// transaction. A PDF hosted elsewhere is imported in the background when an
// importer is configured.
func (s *PaperService) Upload(ctx context.Context, principal *auth.Principal, in domain.UploadInput) (*domain.Paper, error) {
	if principal == nil {
		return nil, domain.ErrUnauthorized
	}

	in.Normalize()
	hosted, err := s.checkHosted(ctx, principal, in.PDFURL)
	if err != nil {
		s.recordUpload(false)
		return nil, err
	}
	var skip []string
	if hosted {
		skip = []string{"pdfUrl"}
	}
	if err := validateStruct(s.validate, in, skip...); err != nil {
		s.recordUpload(false)
		return nil, err
	}

	paper, err := s.create(ctx, principal, in)
	if err != nil {
		s.recordUpload(false)
		return nil, err
	}
	s.recordUpload(true)

	log := observability.WithPaperContext(s.logger, paper.ID.String(), principal.UserID.String())
	log.Info().Str("title", paper.Title).Bool("hosted", hosted).Msg("paper uploaded")

	if !hosted && s.importer != nil && s.media != nil {
		if err := s.importer.StartMediaImport(ctx, paper.ID, principal.UserID, paper.PDFURL); err != nil {
			log.Warn().Err(err).Msg("failed to start media import")
		}
	}
	return paper, nil
}

func (s *PaperService) create(ctx context.Context, principal *auth.Principal, in domain.UploadInput) (*domain.Paper, error) {
	var paper *domain.Paper
	err := s.uow.Within(ctx, func(repos Repositories) error {
		authors, err := repos.Taxonomy.UpsertAuthors(ctx, in.Authors)
		if err != nil {
			return err
		}
		categories, err := repos.Taxonomy.UpsertCategories(ctx, in.Categories)
		if err != nil {
			return err
		}
		tags := []domain.Tag{}
		if len(in.Tags) > 0 {
			if tags, err = repos.Taxonomy.UpsertTags(ctx, in.Tags); err != nil {
				return err
			}
		}

		created, err := repos.Papers.Create(ctx, domain.NewPaper{
			Title:       in.Title,
			Abstract:    in.Abstract,
			PDFURL:      in.PDFURL,
			PublishedAt: in.PublishedAt,
			UserID:      principal.UserID,
		})
		if err != nil {
			return err
		}

		if err := repos.Papers.LinkAuthors(ctx, created.ID, authorIDs(authors)); err != nil {
			return err
		}
		if err := repos.Papers.LinkCategories(ctx, created.ID, categoryIDs(categories)); err != nil {
			return err
		}
		if err := repos.Papers.LinkTags(ctx, created.ID, tagIDs(tags)); err != nil {
			return err
		}

		created.Authors = authors
		created.Categories = categories
		created.Tags = tags
		created.UploadedBy = &domain.UserSummary{ID: principal.UserID, Name: principal.Name, Email: principal.Email}

		if err := s.emitter.PaperUploaded(ctx, repos.Outbox, domain.PaperUploadedPayload{
			PaperID:    created.ID,
			UserID:     principal.UserID,
			Title:      created.Title,
			PDFURL:     created.PDFURL,
			Authors:    in.Authors,
			Categories: in.Categories,
			Tags:       in.Tags,
		}); err != nil {
			return err
		}

		paper = created
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("upload paper: %w", err)
	}
	return paper, nil
}

// UploadFile stores a PDF on the media host and returns its location.
func (s *PaperService) UploadFile(ctx context.Context, principal *auth.Principal, file FileUpload) (*StoredFile, error) {
	if principal == nil {
		return nil, domain.ErrUnauthorized
	}
	if s.media == nil {
		return nil, ErrMediaDisabled
	}
	if !isPDF(file.ContentType) {
		return nil, domain.NewValidationError("file", "Only PDF files are accepted")
	}
	if file.Size > s.cfg.MaxUploadSize {
		return nil, domain.NewValidationError("file", fmt.Sprintf("File must be at most %d bytes", s.cfg.MaxUploadSize))
	}

	body := &cappedReader{r: file.Body, limit: s.cfg.MaxUploadSize}
	key := storage.NewPaperKey(principal.UserID)
	url, err := s.media.Put(ctx, key, storage.ContentTypePDF, body, file.Size)
	if err != nil {
		if errors.Is(err, errFileTooLarge) {
			return nil, domain.NewValidationError("file", fmt.Sprintf("File must be at most %d bytes", s.cfg.MaxUploadSize))
		}
		return nil, fmt.Errorf("store uploaded file: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordMediaStored(MediaOriginUpload, body.n)
	}
	s.logger.Info().
		Str("key", key).
		Int64("size", body.n).
		Str("filename", file.Filename).
		Msg("stored uploaded PDF")

	return &StoredFile{Key: key, URL: url, Size: body.n}, nil
}

// UploadWithFile stores file and creates the paper pointing at it. The stored
// object is removed again if the paper cannot be created.
func (s *PaperService) UploadWithFile(ctx context.Context, principal *auth.Principal, file FileUpload, in domain.UploadInput) (*domain.Paper, error) {
	if principal == nil {
		return nil, domain.ErrUnauthorized
	}

	in.Normalize()
	if err := validateStruct(s.validate, in, "pdfUrl"); err != nil {
		s.recordUpload(false)
		return nil, err
	}

	stored, err := s.UploadFile(ctx, principal, file)
	if err != nil {
		s.recordUpload(false)
		return nil, err
	}

	in.PDFURL = stored.URL
	paper, err := s.Upload(ctx, principal, in)
	if err != nil {
		if delErr := s.media.Delete(context.WithoutCancel(ctx), stored.Key); delErr != nil {
			s.logger.Error().Err(delErr).Str("key", stored.Key).Msg("failed to remove orphaned upload")
		}
		return nil, err
	}
	return paper, nil
}

// Get returns the detail view of a paper. Bookmarked is set for viewer.
func (s *PaperService) Get(ctx context.Context, id uuid.UUID, viewer *auth.Principal) (*domain.PaperDetail, error) {
	var viewerID *uuid.UUID
	if viewer != nil {
		viewerID = &viewer.UserID
	}
	return s.repos.Papers.GetDetail(ctx, id, viewerID)
}

// List returns one page of papers matching filter.
func (s *PaperService) List(ctx context.Context, filter domain.PaperFilter) (*PaperPage, error) {
	papers, total, err := s.repos.Papers.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if papers == nil {
		papers = []domain.Paper{}
	}
	return &PaperPage{Papers: papers, Pagination: domain.NewPageInfo(filter.Page, total)}, nil
}

// ByTags lists papers carrying any of tags. At least one tag is required.
func (s *PaperService) ByTags(ctx context.Context, tags []string, page domain.PageRequest) (*PaperPage, error) {
	names := domain.SplitNames(tags)
	if len(names) == 0 {
		return nil, domain.NewValidationError("tags", "At least one tag is required")
	}
	return s.List(ctx, domain.PaperFilter{Tags: names, Page: page})
}

// ByCategories lists papers in any of categories. At least one category is required.
func (s *PaperService) ByCategories(ctx context.Context, categories []string, page domain.PageRequest) (*PaperPage, error) {
	names := domain.SplitNames(categories)
	if len(names) == 0 {
		return nil, domain.NewValidationError("categories", "At least one category is required")
	}
	return s.List(ctx, domain.PaperFilter{Categories: names, Page: page})
}

// ByAuthors lists papers by any of authors. At least one author is required.
func (s *PaperService) ByAuthors(ctx context.Context, authors []string, page domain.PageRequest) (*PaperPage, error) {
	names := domain.SplitNames(authors)
	if len(names) == 0 {
		return nil, domain.NewValidationError("authors", "At least one author is required")
	}
	return s.List(ctx, domain.PaperFilter{Authors: names, Page: page})
}

// ByUser lists papers uploaded by userID.
func (s *PaperService) ByUser(ctx context.Context, userID uuid.UUID, page domain.PageRequest) (*PaperPage, error) {
	return s.List(ctx, domain.PaperFilter{UserID: &userID, Page: page})
}

// Mine lists the papers uploaded by the caller.
func (s *PaperService) Mine(ctx context.Context, principal *auth.Principal, page domain.PageRequest) (*PaperPage, error) {
	if principal == nil {
		return nil, domain.ErrUnauthorized
	}
	return s.ByUser(ctx, principal.UserID, page)
}

// Bookmarks lists the papers bookmarked by the caller, newest bookmark first.
func (s *PaperService) Bookmarks(ctx context.Context, principal *auth.Principal, page domain.PageRequest) (*PaperPage, error) {
	if principal == nil {
		return nil, domain.ErrUnauthorized
	}
	return s.List(ctx, domain.PaperFilter{BookmarkedBy: &principal.UserID, Page: page})
}

// Home returns the most recent papers, served from the feed cache when possible.
func (s *PaperService) Home(ctx context.Context) ([]domain.Paper, error) {
	papers, ok, err := s.feed.GetFeed(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("feed cache read failed")
	}
	if s.metrics != nil && err == nil {
		s.metrics.RecordCacheLookup("feed", ok)
	}
	if ok {
		return papers, nil
	}

	papers, err = s.repos.Papers.Recent(ctx, s.cfg.RecentLimit)
	if err != nil {
		return nil, err
	}
	if papers == nil {
		papers = []domain.Paper{}
	}
	if err := s.feed.SetFeed(ctx, papers); err != nil {
		s.logger.Warn().Err(err).Msg("feed cache write failed")
	}
	return papers, nil
}

// Delete removes a paper owned by the caller. A PDF on the media host is
// removed afterwards on a best-effort basis.
func (s *PaperService) Delete(ctx context.Context, principal *auth.Principal, id uuid.UUID) error {
	if principal == nil {
		return domain.ErrUnauthorized
	}

	var deleted *domain.Paper
	err := s.uow.Within(ctx, func(repos Repositories) error {
		p, err := repos.Papers.Delete(ctx, id, principal.UserID)
		if err != nil {
			return err
		}
		deleted = p
		return s.emitter.PaperDeleted(ctx, repos.Outbox, domain.PaperDeletedPayload{
			PaperID: p.ID,
			UserID:  principal.UserID,
		})
	})
	if err != nil {
		return fmt.Errorf("delete paper: %w", err)
	}

	log := observability.WithPaperContext(s.logger, id.String(), principal.UserID.String())
	log.Info().Msg("paper deleted")

	if s.media != nil {
		if key, ok := s.media.KeyFromURL(deleted.PDFURL); ok && storage.OwnedBy(key, principal.UserID) {
			if err := s.media.Delete(context.WithoutCancel(ctx), key); err != nil {
				log.Warn().Err(err).Str("key", key).Msg("failed to delete stored PDF")
			}
		}
	}
	return nil
}

// Dashboard summarizes the caller's uploads and bookmarks.
func (s *PaperService) Dashboard(ctx context.Context, principal *auth.Principal) (*domain.Dashboard, error) {
	if principal == nil {
		return nil, domain.ErrUnauthorized
	}

	userID := principal.UserID
	page := domain.PageRequest{Page: 1, Limit: s.cfg.DashboardLimit}
	var d domain.Dashboard

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.repos.Papers.CountByUser(gctx, userID)
		d.UploadCount = n
		return err
	})
	g.Go(func() error {
		n, err := s.repos.Bookmarks.CountByUser(gctx, userID)
		d.BookmarkCount = n
		return err
	})
	g.Go(func() error {
		papers, _, err := s.repos.Papers.List(gctx, domain.PaperFilter{UserID: &userID, Page: page})
		d.RecentUploads = papers
		return err
	})
	g.Go(func() error {
		papers, _, err := s.repos.Papers.List(gctx, domain.PaperFilter{BookmarkedBy: &userID, Page: page})
		d.RecentBookmarks = papers
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load dashboard: %w", err)
	}

	if d.RecentUploads == nil {
		d.RecentUploads = []domain.Paper{}
	}
	if d.RecentBookmarks == nil {
		d.RecentBookmarks = []domain.Paper{}
	}
	return &d, nil
}

// Categories lists every category.
func (s *PaperService) Categories(ctx context.Context) ([]domain.Category, error) {
	return s.repos.Taxonomy.ListCategories(ctx)
}

// Tags lists every tag.
func (s *PaperService) Tags(ctx context.Context) ([]domain.Tag, error) {
	return s.repos.Taxonomy.ListTags(ctx)
}

// checkHosted reports whether pdfURL points at the media host. A hosted URL
// must name an existing object under the caller's own upload prefix.
func (s *PaperService) checkHosted(ctx context.Context, principal *auth.Principal, pdfURL string) (bool, error) {
	if s.media == nil || pdfURL == "" {
		return false, nil
	}
	key, ok := s.media.KeyFromURL(pdfURL)
	if !ok {
		return false, nil
	}
	if !storage.OwnedBy(key, principal.UserID) {
		return false, domain.NewValidationError("pdfUrl", "must reference a file you uploaded")
	}
	if _, err := s.media.Stat(ctx, key); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, domain.NewValidationError("pdfUrl", "uploaded file not found")
		}
		return false, fmt.Errorf("check uploaded file: %w", err)
	}
	return true, nil
}

func (s *PaperService) recordUpload(ok bool) {
	if s.metrics != nil {
		s.metrics.RecordUpload(ok)
	}
}

func isPDF(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == storage.ContentTypePDF
}

var errFileTooLarge = errors.New("file too large")

// cappedReader counts bytes read and fails once more than limit bytes arrive.
type cappedReader struct {
	r     io.Reader
	limit int64
	n     int64
}

func (c *cappedReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	if c.n > c.limit {
		return n, errFileTooLarge
	}
	return n, err
}

func authorIDs(authors []domain.Author) []uuid.UUID {
	ids := make([]uuid.UUID, len(authors))
	for i, a := range authors {
		ids[i] = a.ID
	}
	return ids
}

func categoryIDs(categories []domain.Category) []uuid.UUID {
	ids := make([]uuid.UUID, len(categories))
	for i, c := range categories {
		ids[i] = c.ID
	}
	return ids
}

func tagIDs(tags []domain.Tag) []uuid.UUID {
	ids := make([]uuid.UUID, len(tags))
	for i, t := range tags {
		ids[i] = t.ID
	}
	return ids
}
