package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/helixir/paper-sharing-service/internal/database"
	"github.com/helixir/paper-sharing-service/internal/observability"
	"github.com/helixir/paper-sharing-service/internal/repository"
)

const (
	defaultPollInterval = time.Second
	defaultBatchSize    = 100
	maxRetryBackoff     = 5 * time.Minute
)

// TxStore runs fn with an outbox repository bound to one transaction.
type TxStore interface {
	InTx(ctx context.Context, fn func(repo repository.OutboxRepository) error) error
}

// PgTxStore implements TxStore on a database transaction runner.
type PgTxStore struct {
	db database.TxRunner
}

// NewPgTxStore creates a TxStore backed by db.
func NewPgTxStore(db database.TxRunner) *PgTxStore {
	return &PgTxStore{db: db}
}

// InTx implements TxStore.
func (s *PgTxStore) InTx(ctx context.Context, fn func(repo repository.OutboxRepository) error) error {
	return s.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		return fn(repository.NewPgOutboxRepository(tx))
	})
}

// RelayConfig tunes the relay. Zero values select defaults.
type RelayConfig struct {
	PollInterval time.Duration
	BatchSize    int
}

// Relay moves pending outbox events to the message bus.
type Relay struct {
	store     TxStore
	publisher Publisher
	cfg       RelayConfig
	metrics   *observability.Metrics
	logger    zerolog.Logger
}

// NewRelay creates a relay publishing claimed events through publisher.
func NewRelay(store TxStore, publisher Publisher, cfg RelayConfig, metrics *observability.Metrics, logger zerolog.Logger) *Relay {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	return &Relay{
		store:     store,
		publisher: publisher,
		cfg:       cfg,
		metrics:   metrics,
		logger:    observability.WithComponent(logger, "outbox-relay"),
	}
}

// Run polls for pending events until ctx is cancelled. A full batch is
// followed immediately by another poll.
func (r *Relay) Run(ctx context.Context) error {
	r.logger.Info().
		Dur("poll_interval", r.cfg.PollInterval).
		Int("batch_size", r.cfg.BatchSize).
		Msg("starting outbox relay")

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("outbox relay stopped via context cancellation")
			return ctx.Err()
		case <-timer.C:
		}

		n, err := r.ProcessBatch(ctx)
		if err != nil && ctx.Err() == nil {
			r.logger.Error().Err(err).Msg("outbox relay batch failed")
		}

		next := r.cfg.PollInterval
		if err == nil && n == r.cfg.BatchSize {
			next = 0
		}
		timer.Reset(next)
	}
}

// ProcessBatch claims one batch of events, publishes each and records the
// outcome. It returns the number of events claimed.
func (r *Relay) ProcessBatch(ctx context.Context) (int, error) {
	var claimed int
	err := r.store.InTx(ctx, func(repo repository.OutboxRepository) error {
		events, err := repo.ClaimPending(ctx, r.cfg.BatchSize)
		if err != nil {
			return err
		}
		claimed = len(events)

		for _, event := range events {
			log := r.logger.With().
				Str("event_id", event.ID.String()).
				Str("event_type", event.EventType).
				Str("aggregate_id", event.AggregateID).
				Logger()

			if pubErr := r.publisher.Publish(ctx, event); pubErr != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				backoff := retryBackoff(r.cfg.PollInterval, event.Attempts)
				if err := repo.MarkFailed(ctx, event.ID, pubErr.Error(), backoff); err != nil {
					return fmt.Errorf("mark event %s failed: %w", event.ID, err)
				}
				if r.metrics != nil {
					r.metrics.RecordOutboxFailed(event.EventType)
				}
				log.Warn().Err(pubErr).
					Int("attempt", event.Attempts+1).
					Int("max_attempts", event.MaxAttempts).
					Dur("retry_in", backoff).
					Msg("failed to publish outbox event")
				continue
			}

			if err := repo.MarkPublished(ctx, event.ID); err != nil {
				return fmt.Errorf("mark event %s published: %w", event.ID, err)
			}
			if r.metrics != nil {
				r.metrics.RecordOutboxPublished(event.EventType)
			}
			log.Debug().Msg("published outbox event")
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return claimed, err
		}
		return claimed, fmt.Errorf("process outbox batch: %w", err)
	}
	return claimed, nil
}

// retryBackoff doubles base for every previous attempt, up to maxRetryBackoff.
func retryBackoff(base time.Duration, attempts int) time.Duration {
	backoff := base
	for i := 0; i < attempts && backoff < maxRetryBackoff; i++ {
		backoff *= 2
	}
	if backoff > maxRetryBackoff {
		backoff = maxRetryBackoff
	}
	return backoff
}
