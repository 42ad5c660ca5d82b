package llm

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/paper-sharing-service/internal/observability"
)

// Instrumented wraps a TitleSuggester with request metrics and logging.
type Instrumented struct {
	next    TitleSuggester
	metrics *observability.Metrics
	logger  zerolog.Logger
}

// NewInstrumented wraps next. metrics may be nil.
func NewInstrumented(next TitleSuggester, metrics *observability.Metrics, logger zerolog.Logger) *Instrumented {
	return &Instrumented{
		next:    next,
		metrics: metrics,
		logger:  observability.WithComponent(logger, "llm"),
	}
}

// SuggestTitles delegates to the wrapped suggester and records the outcome.
func (s *Instrumented) SuggestTitles(ctx context.Context, query string) ([]string, error) {
	start := time.Now()
	titles, err := s.next.SuggestTitles(ctx, query)
	elapsed := time.Since(start)

	if s.metrics != nil {
		s.metrics.RecordLLMRequest(s.next.Provider(), s.next.Model(), elapsed.Seconds())
		if err != nil {
			s.metrics.RecordLLMRequestFailed(s.next.Provider(), s.next.Model(), ErrorType(err))
		}
	}

	log := observability.LoggerFromContext(ctx, s.logger)
	if err != nil {
		log.Warn().Err(err).
			Str("provider", s.next.Provider()).
			Str("error_type", ErrorType(err)).
			Dur("duration", elapsed).
			Msg("title suggestion failed")
		return nil, err
	}

	log.Debug().
		Str("provider", s.next.Provider()).
		Int("titles", len(titles)).
		Dur("duration", elapsed).
		Msg("title suggestion completed")
	return titles, nil
}

// Provider returns the wrapped provider name.
func (s *Instrumented) Provider() string { return s.next.Provider() }

// Model returns the wrapped model identifier.
func (s *Instrumented) Model() string { return s.next.Model() }
