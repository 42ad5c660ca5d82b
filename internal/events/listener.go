// Package events consumes paper events from Kafka and keeps read-side
// caches in step with the catalog.
package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/helixir/paper-sharing-service/internal/cache"
	"github.com/helixir/paper-sharing-service/internal/domain"
	"github.com/helixir/paper-sharing-service/internal/outbox"
)

const (
	defaultReadBackoff = time.Second
	maxReadBackoff     = 30 * time.Second
)

// MessageReader is the subset of *kafka.Reader the listener uses.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Config holds configuration for the listener.
type Config struct {
	// Brokers is the list of Kafka broker addresses.
	Brokers []string
	// Topic is the Kafka topic carrying outbox events.
	Topic string
	// GroupID is the consumer group ID.
	GroupID string
}

// NewKafkaReader creates a consumer-group reader for cfg.
func NewKafkaReader(cfg Config) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  3 * time.Second,
	})
}

// Listener invalidates the home feed when the set of papers changes.
type Listener struct {
	reader      MessageReader
	feed        cache.FeedCache
	logger      zerolog.Logger
	readBackoff time.Duration
}

// NewListener creates a listener reading from reader.
func NewListener(reader MessageReader, feed cache.FeedCache, logger zerolog.Logger) *Listener {
	if feed == nil {
		feed = cache.Nop{}
	}
	return &Listener{
		reader:      reader,
		feed:        feed,
		logger:      logger.With().Str("component", "feed_listener").Logger(),
		readBackoff: defaultReadBackoff,
	}
}

// Run consumes messages until ctx is cancelled. Read errors back off
// exponentially; handler errors are logged and the message is skipped.
func (l *Listener) Run(ctx context.Context) error {
	l.logger.Info().Msg("starting feed listener")

	backoff := l.readBackoff
	for {
		msg, err := l.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				l.logger.Info().Msg("feed listener stopped via context cancellation")
				return ctx.Err()
			}
			if errors.Is(err, kafka.ErrGroupClosed) {
				return fmt.Errorf("read message: %w", err)
			}
			l.logger.Error().Err(err).Dur("retry_in", backoff).Msg("failed to read message from Kafka")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, maxReadBackoff)
			continue
		}
		backoff = l.readBackoff

		l.logger.Debug().
			Int("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("received paper event")

		if err := l.Handle(ctx, msg); err != nil {
			l.logger.Error().Err(err).
				Str("event_id", outbox.HeaderValue(msg, outbox.HeaderEventID)).
				Str("key", string(msg.Key)).
				Msg("failed to handle paper event")
		}
	}
}

// Handle applies one message. Events that do not change the catalog
// listing are ignored.
func (l *Listener) Handle(ctx context.Context, msg kafka.Message) error {
	eventType := outbox.HeaderValue(msg, outbox.HeaderEventType)
	switch eventType {
	case domain.EventTypePaperUploaded, domain.EventTypePaperMediaImported, domain.EventTypePaperDeleted:
	case "":
		return errors.New("message has no event_type header")
	default:
		return nil
	}

	if err := l.feed.InvalidateFeed(ctx); err != nil {
		return fmt.Errorf("invalidate feed after %s: %w", eventType, err)
	}
	l.logger.Debug().
		Str("event_type", eventType).
		Str("paper_id", string(msg.Key)).
		Msg("home feed invalidated")
	return nil
}
