// Package search implements the catalog search with LLM title expansion.
//
// A query is sent to the title suggester, which returns titles of papers
// related to it. The catalog is then filtered to papers whose title or
// abstract contains the query, or whose title equals a suggested title. Any
// failure on the LLM path degrades to the substring match alone.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/paper-sharing-service/internal/cache"
	"github.com/helixir/paper-sharing-service/internal/domain"
	"github.com/helixir/paper-sharing-service/internal/llm"
	"github.com/helixir/paper-sharing-service/internal/observability"
)

const (
	defaultRecentLimit   = 20
	defaultResultLimit   = 100
	defaultRateLimitWait = 2 * time.Second
)

// PaperFinder is the catalog lookup used by the search service.
type PaperFinder interface {
	Recent(ctx context.Context, n int) ([]domain.Paper, error)
	SearchByTitles(ctx context.Context, query string, titles []string, limit int) ([]domain.Paper, error)
}

// Config tunes the search service. Zero values select defaults.
type Config struct {
	// SemanticEnabled turns on title expansion when a suggester is present.
	SemanticEnabled bool
	// RecentLimit is the number of papers returned for an empty query.
	RecentLimit int
	// ResultLimit caps the number of papers returned for a query.
	ResultLimit int
	// RateLimitRPS and RateLimitBurst shape calls to the suggester.
	RateLimitRPS   float64
	RateLimitBurst int
	// RateLimitWait is the longest a query waits for a rate limit token.
	RateLimitWait time.Duration
}

// Result is the outcome of one search.
type Result struct {
	Papers []domain.Paper `json:"papers"`
	// Outcome is one of the observability.SearchOutcome constants.
	Outcome string `json:"-"`
	// Titles are the suggested titles used in the filter, if any.
	Titles []string `json:"-"`
}

// Service runs catalog searches.
type Service struct {
	papers    PaperFinder
	suggester llm.TitleSuggester
	titles    cache.TitleCache
	limiter   *RateLimiter
	cfg       Config
	metrics   *observability.Metrics
	logger    zerolog.Logger
}

// NewService creates a search service. suggester may be nil, which disables
// title expansion. titles may be nil, which disables caching.
func NewService(
	papers PaperFinder,
	suggester llm.TitleSuggester,
	titles cache.TitleCache,
	cfg Config,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *Service {
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = defaultRecentLimit
	}
	if cfg.ResultLimit <= 0 {
		cfg.ResultLimit = defaultResultLimit
	}
	if cfg.RateLimitWait <= 0 {
		cfg.RateLimitWait = defaultRateLimitWait
	}
	if titles == nil {
		titles = cache.Nop{}
	}
	return &Service{
		papers:    papers,
		suggester: suggester,
		titles:    titles,
		limiter:   NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		cfg:       cfg,
		metrics:   metrics,
		logger:    observability.WithComponent(logger, "search"),
	}
}

// SemanticEnabled reports whether queries are expanded with suggested titles.
func (s *Service) SemanticEnabled() bool {
	return s.cfg.SemanticEnabled && s.suggester != nil
}

// Search returns the papers matching query. An empty query returns the most
// recent papers. Only catalog errors are returned.
func (s *Service) Search(ctx context.Context, query string) (*Result, error) {
	start := time.Now()
	query = strings.TrimSpace(query)

	if query == "" {
		papers, err := s.papers.Recent(ctx, s.cfg.RecentLimit)
		if err != nil {
			return nil, fmt.Errorf("list recent papers: %w", err)
		}
		s.record(observability.SearchOutcomeEmpty, len(papers), start)
		return &Result{Papers: papers, Outcome: observability.SearchOutcomeEmpty}, nil
	}

	outcome := observability.SearchOutcomeFallback
	var titles []string
	if s.SemanticEnabled() {
		suggested, err := s.suggest(ctx, query)
		switch {
		case err == nil:
			titles = suggested
			outcome = observability.SearchOutcomeSemantic
		case ctx.Err() != nil:
			return nil, fmt.Errorf("search cancelled: %w", ctx.Err())
		default:
			logger := observability.LoggerFromContext(ctx, s.logger)
			logger.Warn().
				Err(err).
				Str("query", query).
				Msg("semantic search unavailable, falling back to substring match")
		}
	}

	papers, err := s.papers.SearchByTitles(ctx, query, titles, s.cfg.ResultLimit)
	if err != nil {
		return nil, fmt.Errorf("search papers: %w", err)
	}

	s.record(outcome, len(papers), start)
	return &Result{Papers: papers, Outcome: outcome, Titles: titles}, nil
}

// suggest returns titles for query from the cache or the suggester.
func (s *Service) suggest(ctx context.Context, query string) ([]string, error) {
	log := observability.LoggerFromContext(ctx, s.logger)

	cached, ok, err := s.titles.GetTitles(ctx, query)
	if err != nil {
		log.Warn().Err(err).Msg("title cache lookup failed")
	}
	s.recordCache(ok)
	if ok {
		return cached, nil
	}

	if err := s.limiter.Acquire(ctx, s.cfg.RateLimitWait); err != nil {
		return nil, err
	}

	titles, err := s.suggester.SuggestTitles(ctx, query)
	if err != nil {
		if errors.Is(err, llm.ErrNoTitles) {
			titles = []string{}
		} else {
			return nil, err
		}
	}

	if err := s.titles.SetTitles(ctx, query, titles); err != nil {
		log.Warn().Err(err).Msg("title cache store failed")
	}
	return titles, nil
}

func (s *Service) record(outcome string, count int, start time.Time) {
	if s.metrics != nil {
		s.metrics.RecordSearch(outcome, count, time.Since(start).Seconds())
	}
}

func (s *Service) recordCache(hit bool) {
	if s.metrics != nil {
		s.metrics.RecordCacheLookup("titles", hit)
	}
}
