package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/helixir/paper-sharing-service/internal/domain"
)

// OutboxRepository stores outbox events and hands them to the relay.
type OutboxRepository interface {
	// Insert stores a pending event. Call it with the transaction that
	// changes the aggregate so both commit together.
	Insert(ctx context.Context, event *domain.OutboxEvent) error

	// ClaimPending locks up to batch due events with FOR UPDATE SKIP LOCKED,
	// so concurrent relays never claim the same row. Call it inside a transaction.
	ClaimPending(ctx context.Context, batch int) ([]*domain.OutboxEvent, error)

	// MarkPublished records a successful publish.
	MarkPublished(ctx context.Context, id uuid.UUID) error

	// MarkFailed records a failed attempt. The event is retried after backoff
	// until it reaches its max attempts, then marked dead.
	MarkFailed(ctx context.Context, id uuid.UUID, cause string, backoff time.Duration) error

	// Purge deletes up to limit events in one of statuses created before
	// cutoff, oldest first. It returns the number of rows removed.
	Purge(ctx context.Context, cutoff time.Time, statuses []domain.OutboxStatus, limit int) (int64, error)
}
