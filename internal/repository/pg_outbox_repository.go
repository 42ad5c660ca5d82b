package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/helixir/paper-sharing-service/internal/domain"
)

// Compile-time interface verification.
var _ OutboxRepository = (*PgOutboxRepository)(nil)

// maxOutboxErrorLength truncates stored failure messages.
const maxOutboxErrorLength = 1024

// PgOutboxRepository is a PostgreSQL implementation of OutboxRepository.
type PgOutboxRepository struct {
	db DBTX
}

// NewPgOutboxRepository creates a new PostgreSQL outbox repository.
func NewPgOutboxRepository(db DBTX) *PgOutboxRepository {
	return &PgOutboxRepository{db: db}
}

// Insert stores a pending event.
func (r *PgOutboxRepository) Insert(ctx context.Context, event *domain.OutboxEvent) error {
	if event == nil {
		return domain.NewValidationError("event", "event cannot be nil")
	}
	if event.EventType == "" || event.AggregateID == "" {
		return domain.NewValidationError("event", "event type and aggregate id are required")
	}

	metadata, err := json.Marshal(event.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal outbox metadata: %w", err)
	}

	maxAttempts := event.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}

	query := `
		INSERT INTO outbox_events (
			id, aggregate_type, aggregate_id, event_type, payload, metadata,
			status, attempts, max_attempts, created_at, next_attempt_at
		) VALUES ($1, $2, $3, $4, $5, $6, 'pending', 0, $7, $8, $8)`

	_, err = r.db.Exec(ctx, query,
		event.ID, event.AggregateType, event.AggregateID, event.EventType,
		[]byte(event.Payload), metadata, maxAttempts, event.CreatedAt,
	)
	if err != nil {
		if isPgUniqueViolation(err) {
			return domain.NewAlreadyExistsError("outbox_event", event.ID.String())
		}
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}
	return nil
}

// ClaimPending locks due pending events.
func (r *PgOutboxRepository) ClaimPending(ctx context.Context, batch int) ([]*domain.OutboxEvent, error) {
	if batch <= 0 {
		return nil, domain.NewValidationError("batch", "must be positive")
	}

	query := `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, metadata,
			status, attempts, max_attempts, COALESCE(last_error, ''), created_at
		FROM outbox_events
		WHERE status = 'pending' AND next_attempt_at <= NOW()
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED`

	rows, err := r.db.Query(ctx, query, batch)
	if err != nil {
		return nil, fmt.Errorf("failed to claim outbox events: %w", err)
	}
	defer rows.Close()

	events := make([]*domain.OutboxEvent, 0, batch)
	for rows.Next() {
		var (
			e        domain.OutboxEvent
			payload  []byte
			metadata []byte
			status   string
		)
		if err := rows.Scan(&e.ID, &e.AggregateType, &e.AggregateID, &e.EventType, &payload, &metadata,
			&status, &e.Attempts, &e.MaxAttempts, &e.LastError, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		e.Payload = payload
		e.Status = domain.OutboxStatus(status)
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal outbox metadata: %w", err)
			}
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outbox events: %w", err)
	}

	return events, nil
}

// MarkPublished records a successful publish.
func (r *PgOutboxRepository) MarkPublished(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE outbox_events SET status = 'published', published_at = $2, last_error = NULL WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to mark outbox event published: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("outbox_event", id.String())
	}
	return nil
}

// MarkFailed records a failed attempt and dead-letters exhausted events.
func (r *PgOutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, cause string, backoff time.Duration) error {
	cause = truncateUTF8(cause, maxOutboxErrorLength)

	query := `
		UPDATE outbox_events SET
			attempts = attempts + 1,
			last_error = $2,
			status = CASE WHEN attempts + 1 >= max_attempts THEN 'dead' ELSE 'pending' END,
			next_attempt_at = $3
		WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id, cause, time.Now().UTC().Add(backoff))
	if err != nil {
		return fmt.Errorf("failed to mark outbox event failed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("outbox_event", id.String())
	}
	return nil
}

// Purge deletes old events in the given statuses.
func (r *PgOutboxRepository) Purge(ctx context.Context, cutoff time.Time, statuses []domain.OutboxStatus, limit int) (int64, error) {
	if limit <= 0 {
		return 0, domain.NewValidationError("limit", "must be positive")
	}
	if len(statuses) == 0 {
		return 0, domain.NewValidationError("statuses", "at least one status is required")
	}
	names := make([]string, len(statuses))
	for i, status := range statuses {
		names[i] = string(status)
	}

	query := `
		DELETE FROM outbox_events
		WHERE id IN (
			SELECT id FROM outbox_events
			WHERE status = ANY($1) AND created_at < $2
			ORDER BY created_at
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)`

	result, err := r.db.Exec(ctx, query, names, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to purge outbox events: %w", err)
	}
	return result.RowsAffected(), nil
}

// truncateUTF8 cuts s to at most limit bytes without splitting a rune.
func truncateUTF8(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
