//go:build integration

package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/helixir/paper-sharing-service/internal/domain"
)

var integrationPool *pgxpool.Pool

func TestMain(m *testing.M) {
	os.Exit(runIntegration(m))
}

func runIntegration(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("papershare_test"),
		postgres.WithUsername("papershare"),
		postgres.WithPassword("testpassword"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start postgres container: %v\n", err)
		return 1
	}
	defer func() { _ = container.Terminate(context.Background()) }()

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read connection string: %v\n", err)
		return 1
	}

	migrator, err := migrate.New("file://../../migrations", dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create migrator: %v\n", err)
		return 1
	}
	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		return 1
	}
	_, _ = migrator.Close()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to test database: %v\n", err)
		return 1
	}
	defer pool.Close()
	integrationPool = pool

	return m.Run()
}

// cleanTables truncates every table touched by these tests.
func cleanTables(t *testing.T) {
	t.Helper()
	_, err := integrationPool.Exec(context.Background(),
		"TRUNCATE TABLE bookmarks, paper_tags, paper_categories, paper_authors, papers, tags, categories, authors, users CASCADE")
	require.NoError(t, err)
}

func createIntegrationUser(t *testing.T, email string) *domain.User {
	t.Helper()
	user := &domain.User{Name: "Ada", Email: email}
	require.NoError(t, NewPgUserRepository(integrationPool).Create(context.Background(), user))
	return user
}

func createIntegrationPaper(t *testing.T, owner uuid.UUID, title string, tags ...string) *domain.Paper {
	t.Helper()
	ctx := context.Background()
	papers := NewPgPaperRepository(integrationPool)
	taxonomy := NewPgTaxonomyRepository(integrationPool)

	paper, err := papers.Create(ctx, domain.NewPaper{
		Title:    title,
		Abstract: "About " + title,
		PDFURL:   "https://arxiv.org/pdf/1706.03762",
		UserID:   owner,
	})
	require.NoError(t, err)

	authors, err := taxonomy.UpsertAuthors(ctx, []string{"Vaswani", "Shazeer"})
	require.NoError(t, err)
	ids := make([]uuid.UUID, len(authors))
	for i, a := range authors {
		ids[i] = a.ID
	}
	require.NoError(t, papers.LinkAuthors(ctx, paper.ID, ids))

	if len(tags) > 0 {
		tagRows, err := taxonomy.UpsertTags(ctx, tags)
		require.NoError(t, err)
		tagIDs := make([]uuid.UUID, len(tagRows))
		for i, tag := range tagRows {
			tagIDs[i] = tag.ID
		}
		require.NoError(t, papers.LinkTags(ctx, paper.ID, tagIDs))
	}
	return paper
}

func TestIntegration_UserEmailUnique(t *testing.T) {
	cleanTables(t)
	createIntegrationUser(t, "ada@example.com")

	err := NewPgUserRepository(integrationPool).Create(context.Background(), &domain.User{Name: "Other", Email: "ada@example.com"})
	assert.True(t, errors.Is(err, domain.ErrAlreadyExists))
}

func TestIntegration_PaperLifecycle(t *testing.T) {
	cleanTables(t)
	ctx := context.Background()
	owner := createIntegrationUser(t, "owner@example.com")
	other := createIntegrationUser(t, "other@example.com")
	papers := NewPgPaperRepository(integrationPool)

	attention := createIntegrationPaper(t, owner.ID, "Attention Is All You Need", "nlp", "transformers")
	createIntegrationPaper(t, owner.ID, "Deep Residual Learning", "vision")

	t.Run("detail carries authors in order", func(t *testing.T) {
		detail, err := papers.GetDetail(ctx, attention.ID, nil)
		require.NoError(t, err)
		require.Len(t, detail.Authors, 2)
		assert.Equal(t, "Vaswani", detail.Authors[0].Name)
		assert.Equal(t, "Shazeer", detail.Authors[1].Name)
		assert.False(t, detail.Bookmarked)
	})

	t.Run("tag filter", func(t *testing.T) {
		page, err := domain.NewPageRequest(1, 10)
		require.NoError(t, err)
		got, total, err := papers.List(ctx, domain.PaperFilter{Tags: []string{"nlp"}, Page: page})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, got, 1)
		assert.Equal(t, attention.ID, got[0].ID)
	})

	t.Run("substring search", func(t *testing.T) {
		got, err := papers.SearchByTitles(ctx, "residual", nil, 10)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Deep Residual Learning", got[0].Title)
	})

	t.Run("bookmarks", func(t *testing.T) {
		bookmarks := NewPgBookmarkRepository(integrationPool)
		added, err := bookmarks.Add(ctx, other.ID, attention.ID)
		require.NoError(t, err)
		assert.True(t, added)

		added, err = bookmarks.Add(ctx, other.ID, attention.ID)
		require.NoError(t, err)
		assert.False(t, added)

		detail, err := papers.GetDetail(ctx, attention.ID, &other.ID)
		require.NoError(t, err)
		assert.True(t, detail.Bookmarked)
		require.Len(t, detail.BookmarkedBy, 1)
		assert.Equal(t, other.ID, detail.BookmarkedBy[0].ID)
	})

	t.Run("delete requires ownership", func(t *testing.T) {
		_, err := papers.Delete(ctx, attention.ID, other.ID)
		assert.True(t, errors.Is(err, domain.ErrForbidden))

		deleted, err := papers.Delete(ctx, attention.ID, owner.ID)
		require.NoError(t, err)
		assert.Equal(t, "Attention Is All You Need", deleted.Title)

		_, err = papers.GetByID(ctx, attention.ID)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})
}
