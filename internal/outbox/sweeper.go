package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/paper-sharing-service/internal/domain"
	"github.com/helixir/paper-sharing-service/internal/observability"
	"github.com/helixir/paper-sharing-service/internal/repository"
)

const (
	defaultSweepInterval  = time.Hour
	defaultRetention      = 7 * 24 * time.Hour
	defaultSweepBatchSize = 1000
)

// SweeperConfig tunes the retention sweep. Zero values select defaults.
type SweeperConfig struct {
	Interval  time.Duration
	Retention time.Duration
	BatchSize int
	// IncludePending also removes events that were never published. Set it
	// when no relay drains the outbox.
	IncludePending bool
}

// Sweeper deletes outbox events older than the retention window.
type Sweeper struct {
	store    TxStore
	cfg      SweeperConfig
	statuses []domain.OutboxStatus
	logger   zerolog.Logger
	now      func() time.Time
}

// NewSweeper creates a sweeper removing old events through store.
func NewSweeper(store TxStore, cfg SweeperConfig, logger zerolog.Logger) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultSweepInterval
	}
	if cfg.Retention <= 0 {
		cfg.Retention = defaultRetention
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultSweepBatchSize
	}
	statuses := []domain.OutboxStatus{domain.OutboxStatusPublished, domain.OutboxStatusDead}
	if cfg.IncludePending {
		statuses = append(statuses, domain.OutboxStatusPending)
	}
	return &Sweeper{
		store:    store,
		cfg:      cfg,
		statuses: statuses,
		logger:   observability.WithComponent(logger, "outbox-sweeper"),
		now:      time.Now,
	}
}

// Run sweeps once at start and then every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	s.logger.Info().
		Dur("interval", s.cfg.Interval).
		Dur("retention", s.cfg.Retention).
		Bool("include_pending", s.cfg.IncludePending).
		Msg("starting outbox sweeper")

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("outbox sweeper stopped via context cancellation")
			return ctx.Err()
		case <-timer.C:
		}

		n, err := s.Sweep(ctx)
		switch {
		case err != nil && ctx.Err() == nil:
			s.logger.Error().Err(err).Int64("deleted", n).Msg("outbox sweep failed")
		case n > 0:
			s.logger.Info().Int64("deleted", n).Msg("purged old outbox events")
		}
		timer.Reset(s.cfg.Interval)
	}
}

// Sweep deletes every expired event, one batch per transaction, and
// returns the number removed.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	cutoff := s.now().UTC().Add(-s.cfg.Retention)
	var total int64
	for {
		var n int64
		err := s.store.InTx(ctx, func(repo repository.OutboxRepository) error {
			var err error
			n, err = repo.Purge(ctx, cutoff, s.statuses, s.cfg.BatchSize)
			return err
		})
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return total, err
			}
			return total, fmt.Errorf("purge outbox events: %w", err)
		}
		total += n
		if n < int64(s.cfg.BatchSize) {
			return total, nil
		}
	}
}
