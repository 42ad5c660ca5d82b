package search

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/helixir/paper-sharing-service/internal/cache"
	"github.com/helixir/paper-sharing-service/internal/domain"
	"github.com/helixir/paper-sharing-service/internal/llm"
	"github.com/helixir/paper-sharing-service/internal/observability"
)

type mockPaperFinder struct {
	mock.Mock
}

func (m *mockPaperFinder) Recent(ctx context.Context, n int) ([]domain.Paper, error) {
	args := m.Called(ctx, n)
	papers, _ := args.Get(0).([]domain.Paper)
	return papers, args.Error(1)
}

func (m *mockPaperFinder) SearchByTitles(ctx context.Context, query string, titles []string, limit int) ([]domain.Paper, error) {
	args := m.Called(ctx, query, titles, limit)
	papers, _ := args.Get(0).([]domain.Paper)
	return papers, args.Error(1)
}

type stubSuggester struct {
	mu     sync.Mutex
	titles []string
	err    error
	calls  int
}

func (s *stubSuggester) SuggestTitles(context.Context, string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.titles, s.err
}

func (s *stubSuggester) Provider() string { return "stub" }
func (s *stubSuggester) Model() string    { return "stub-1" }

type memoryTitleCache struct {
	entries map[string][]string
	err     error
}

func newMemoryTitleCache() *memoryTitleCache {
	return &memoryTitleCache{entries: map[string][]string{}}
}

func (c *memoryTitleCache) GetTitles(_ context.Context, q string) ([]string, bool, error) {
	if c.err != nil {
		return nil, false, c.err
	}
	t, ok := c.entries[cache.NormalizeQuery(q)]
	return t, ok, nil
}

func (c *memoryTitleCache) SetTitles(_ context.Context, q string, titles []string) error {
	if c.err != nil {
		return c.err
	}
	c.entries[cache.NormalizeQuery(q)] = titles
	return nil
}

func samplePapers(titles ...string) []domain.Paper {
	papers := make([]domain.Paper, len(titles))
	for i, title := range titles {
		papers[i] = domain.Paper{ID: uuid.New(), Title: title}
	}
	return papers
}

func newTestService(t *testing.T, finder PaperFinder, suggester llm.TitleSuggester, titles cache.TitleCache, cfg Config) (*Service, *observability.Metrics) {
	t.Helper()
	metrics := observability.NewMetrics("test_search_" + uuid.NewString()[:8])
	return NewService(finder, suggester, titles, cfg, metrics, zerolog.Nop()), metrics
}

func TestService_EmptyQueryReturnsRecent(t *testing.T) {
	finder := new(mockPaperFinder)
	finder.On("Recent", mock.Anything, 20).Return(samplePapers("A", "B"), nil)
	suggester := &stubSuggester{titles: []string{"x"}}

	svc, metrics := newTestService(t, finder, suggester, nil, Config{SemanticEnabled: true})
	res, err := svc.Search(context.Background(), "   ")

	require.NoError(t, err)
	assert.Len(t, res.Papers, 2)
	assert.Equal(t, observability.SearchOutcomeEmpty, res.Outcome)
	assert.Equal(t, 0, suggester.calls)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.SearchesTotal.WithLabelValues(observability.SearchOutcomeEmpty)))
	finder.AssertExpectations(t)
}

func TestService_SemanticSearch(t *testing.T) {
	finder := new(mockPaperFinder)
	titles := []string{"Attention Is All You Need", "BERT"}
	finder.On("SearchByTitles", mock.Anything, "transformers", titles, 100).Return(samplePapers("BERT"), nil).Twice()
	suggester := &stubSuggester{titles: titles}
	titleCache := newMemoryTitleCache()

	svc, metrics := newTestService(t, finder, suggester, titleCache, Config{SemanticEnabled: true, RateLimitRPS: 100, RateLimitBurst: 10})

	res, err := svc.Search(context.Background(), " transformers ")
	require.NoError(t, err)
	assert.Equal(t, observability.SearchOutcomeSemantic, res.Outcome)
	assert.Equal(t, titles, res.Titles)
	assert.Len(t, res.Papers, 1)

	t.Run("second search is served from the cache", func(t *testing.T) {
		res, err := svc.Search(context.Background(), "transformers")
		require.NoError(t, err)
		assert.Equal(t, observability.SearchOutcomeSemantic, res.Outcome)
		assert.Equal(t, 1, suggester.calls)
		assert.Equal(t, float64(1), testutil.ToFloat64(metrics.CacheHits.WithLabelValues("titles")))
		assert.Equal(t, float64(1), testutil.ToFloat64(metrics.CacheMisses.WithLabelValues("titles")))
	})

	finder.AssertExpectations(t)
}

func TestService_FallsBackOnLLMFailure(t *testing.T) {
	finder := new(mockPaperFinder)
	finder.On("SearchByTitles", mock.Anything, "gnn", []string(nil), 100).Return(samplePapers("GNN survey"), nil)
	suggester := &stubSuggester{err: &llm.APIError{Provider: "stub", StatusCode: 500}}

	svc, metrics := newTestService(t, finder, suggester, newMemoryTitleCache(), Config{SemanticEnabled: true})
	res, err := svc.Search(context.Background(), "gnn")

	require.NoError(t, err)
	assert.Equal(t, observability.SearchOutcomeFallback, res.Outcome)
	assert.Nil(t, res.Titles)
	assert.Len(t, res.Papers, 1)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.SearchesTotal.WithLabelValues(observability.SearchOutcomeFallback)))
	finder.AssertExpectations(t)
}

func TestService_FallsBackWhenRateLimited(t *testing.T) {
	finder := new(mockPaperFinder)
	finder.On("SearchByTitles", mock.Anything, mock.Anything, mock.Anything, 100).Return(samplePapers("P"), nil)
	suggester := &stubSuggester{titles: []string{"P"}}

	svc, _ := newTestService(t, finder, suggester, nil, Config{
		SemanticEnabled: true,
		RateLimitRPS:    0.01,
		RateLimitBurst:  1,
		RateLimitWait:   time.Millisecond,
	})

	first, err := svc.Search(context.Background(), "one")
	require.NoError(t, err)
	assert.Equal(t, observability.SearchOutcomeSemantic, first.Outcome)

	second, err := svc.Search(context.Background(), "two")
	require.NoError(t, err)
	assert.Equal(t, observability.SearchOutcomeFallback, second.Outcome)
	assert.Equal(t, 1, suggester.calls)
}

func TestService_CacheErrorStillQueriesSuggester(t *testing.T) {
	finder := new(mockPaperFinder)
	finder.On("SearchByTitles", mock.Anything, "q", []string{"T"}, 100).Return(samplePapers("T"), nil)
	suggester := &stubSuggester{titles: []string{"T"}}
	broken := &memoryTitleCache{err: errors.New("redis down")}

	svc, _ := newTestService(t, finder, suggester, broken, Config{SemanticEnabled: true})
	res, err := svc.Search(context.Background(), "q")

	require.NoError(t, err)
	assert.Equal(t, observability.SearchOutcomeSemantic, res.Outcome)
	assert.Equal(t, 1, suggester.calls)
}

func TestService_NoTitlesIsSemanticWithEmptyList(t *testing.T) {
	finder := new(mockPaperFinder)
	finder.On("SearchByTitles", mock.Anything, "q", []string{}, 100).Return([]domain.Paper{}, nil)
	suggester := &stubSuggester{err: llm.ErrNoTitles}

	svc, _ := newTestService(t, finder, suggester, nil, Config{SemanticEnabled: true})
	res, err := svc.Search(context.Background(), "q")

	require.NoError(t, err)
	assert.Equal(t, observability.SearchOutcomeSemantic, res.Outcome)
	assert.Empty(t, res.Papers)
}

func TestService_SemanticDisabled(t *testing.T) {
	tests := []struct {
		name      string
		suggester llm.TitleSuggester
		enabled   bool
	}{
		{name: "no suggester", suggester: nil, enabled: true},
		{name: "disabled by config", suggester: &stubSuggester{titles: []string{"x"}}, enabled: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			finder := new(mockPaperFinder)
			finder.On("SearchByTitles", mock.Anything, "q", []string(nil), 100).Return(samplePapers("q paper"), nil)

			svc, _ := newTestService(t, finder, tt.suggester, nil, Config{SemanticEnabled: tt.enabled})
			assert.False(t, svc.SemanticEnabled())

			res, err := svc.Search(context.Background(), "q")
			require.NoError(t, err)
			assert.Equal(t, observability.SearchOutcomeFallback, res.Outcome)
			finder.AssertExpectations(t)
		})
	}
}

func TestService_DatabaseErrorsSurface(t *testing.T) {
	dbErr := errors.New("connection reset")

	t.Run("search", func(t *testing.T) {
		finder := new(mockPaperFinder)
		finder.On("SearchByTitles", mock.Anything, "q", []string(nil), 100).Return(nil, dbErr)
		svc, _ := newTestService(t, finder, nil, nil, Config{})

		_, err := svc.Search(context.Background(), "q")
		assert.ErrorIs(t, err, dbErr)
	})

	t.Run("recent", func(t *testing.T) {
		finder := new(mockPaperFinder)
		finder.On("Recent", mock.Anything, 5).Return(nil, dbErr)
		svc, _ := newTestService(t, finder, nil, nil, Config{RecentLimit: 5})

		_, err := svc.Search(context.Background(), "")
		assert.ErrorIs(t, err, dbErr)
	})
}

func TestService_CancelledContext(t *testing.T) {
	finder := new(mockPaperFinder)
	suggester := &stubSuggester{err: context.Canceled}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc, _ := newTestService(t, finder, suggester, nil, Config{SemanticEnabled: true})
	_, err := svc.Search(ctx, "q")

	assert.ErrorIs(t, err, context.Canceled)
	finder.AssertNotCalled(t, "SearchByTitles", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
