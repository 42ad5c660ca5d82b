package outbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/helixir/paper-sharing-service/internal/domain"
	"github.com/helixir/paper-sharing-service/internal/observability"
)

const (
	// defaultMaxAttempts is the default maximum number of delivery attempts for outbox events.
	defaultMaxAttempts = 5

	defaultSource = "paper-sharing-service"
)

// Metadata keys recorded on every event.
const (
	MetadataSource        = "source"
	MetadataCorrelationID = "correlation_id"
	MetadataRequestID     = "request_id"
	MetadataUserID        = "user_id"
)

// EmitterConfig configures the Emitter with service context.
type EmitterConfig struct {
	// ServiceName identifies the source service.
	ServiceName string
	// MaxAttempts is the number of publish attempts before an event is dead-lettered.
	MaxAttempts int
}

// EmitParams contains the parameters for emitting an event.
type EmitParams struct {
	// AggregateType is the kind of entity the event is about (e.g., "paper").
	AggregateType string
	// AggregateID is the entity id. It becomes the Kafka message key.
	AggregateID string
	// EventType is the type of event (e.g., "paper.uploaded").
	EventType string
	// Payload is the event payload that will be JSON-serialized.
	Payload any
}

// Inserter stores an outbox event. repository.OutboxRepository satisfies it.
type Inserter interface {
	Insert(ctx context.Context, event *domain.OutboxEvent) error
}

// Emitter creates outbox events enriched with request context.
type Emitter struct {
	config EmitterConfig
}

// NewEmitter creates a new Emitter with the given service configuration.
func NewEmitter(config EmitterConfig) *Emitter {
	if config.ServiceName == "" {
		config.ServiceName = defaultSource
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaultMaxAttempts
	}
	return &Emitter{config: config}
}

// Build creates an outbox event from params. Correlation, request and user
// ids are copied from ctx into the event metadata.
func (e *Emitter) Build(ctx context.Context, params EmitParams) (*domain.OutboxEvent, error) {
	if params.AggregateID == "" {
		return nil, errors.New("aggregate_id is required")
	}
	if params.EventType == "" {
		return nil, errors.New("event_type is required")
	}

	event, err := domain.NewOutboxEvent(params.EventType, params.AggregateType, params.AggregateID, params.Payload)
	if err != nil {
		return nil, err
	}
	event.MaxAttempts = e.config.MaxAttempts

	event.Metadata[MetadataSource] = e.config.ServiceName
	if id := observability.CorrelationIDFromContext(ctx); id != "" {
		event.Metadata[MetadataCorrelationID] = id
	}
	if id := observability.RequestIDFromContext(ctx); id != "" {
		event.Metadata[MetadataRequestID] = id
	}
	if id := observability.UserIDFromContext(ctx); id != "" {
		event.Metadata[MetadataUserID] = id
	}

	return event, nil
}

// Emit builds an event and stores it through repo. Pass a repository bound
// to the transaction that changes the aggregate.
func (e *Emitter) Emit(ctx context.Context, repo Inserter, params EmitParams) error {
	event, err := e.Build(ctx, params)
	if err != nil {
		return fmt.Errorf("emit %s: %w", params.EventType, err)
	}
	if err := repo.Insert(ctx, event); err != nil {
		return fmt.Errorf("store %s event: %w", params.EventType, err)
	}
	return nil
}

// PaperUploaded emits paper.uploaded.
func (e *Emitter) PaperUploaded(ctx context.Context, repo Inserter, payload domain.PaperUploadedPayload) error {
	return e.Emit(ctx, repo, EmitParams{
		AggregateType: domain.AggregateTypePaper,
		AggregateID:   payload.PaperID.String(),
		EventType:     domain.EventTypePaperUploaded,
		Payload:       payload,
	})
}

// PaperMediaImported emits paper.media_imported.
func (e *Emitter) PaperMediaImported(ctx context.Context, repo Inserter, payload domain.PaperMediaImportedPayload) error {
	return e.Emit(ctx, repo, EmitParams{
		AggregateType: domain.AggregateTypePaper,
		AggregateID:   payload.PaperID.String(),
		EventType:     domain.EventTypePaperMediaImported,
		Payload:       payload,
	})
}

// PaperDeleted emits paper.deleted.
func (e *Emitter) PaperDeleted(ctx context.Context, repo Inserter, payload domain.PaperDeletedPayload) error {
	return e.Emit(ctx, repo, EmitParams{
		AggregateType: domain.AggregateTypePaper,
		AggregateID:   payload.PaperID.String(),
		EventType:     domain.EventTypePaperDeleted,
		Payload:       payload,
	})
}

// BookmarkChanged emits bookmark.added when added is true and
// bookmark.removed otherwise.
func (e *Emitter) BookmarkChanged(ctx context.Context, repo Inserter, payload domain.BookmarkPayload, added bool) error {
	eventType := domain.EventTypeBookmarkRemoved
	if added {
		eventType = domain.EventTypeBookmarkAdded
	}
	return e.Emit(ctx, repo, EmitParams{
		AggregateType: domain.AggregateTypePaper,
		AggregateID:   payload.PaperID.String(),
		EventType:     eventType,
		Payload:       payload,
	})
}

// UserRegistered emits user.registered.
func (e *Emitter) UserRegistered(ctx context.Context, repo Inserter, payload domain.UserRegisteredPayload) error {
	return e.Emit(ctx, repo, EmitParams{
		AggregateType: domain.AggregateTypeUser,
		AggregateID:   payload.UserID.String(),
		EventType:     domain.EventTypeUserRegistered,
		Payload:       payload,
	})
}

// UserProfileUpdated emits user.profile_updated.
func (e *Emitter) UserProfileUpdated(ctx context.Context, repo Inserter, payload domain.UserProfileUpdatedPayload) error {
	return e.Emit(ctx, repo, EmitParams{
		AggregateType: domain.AggregateTypeUser,
		AggregateID:   payload.UserID.String(),
		EventType:     domain.EventTypeUserProfileUpdated,
		Payload:       payload,
	})
}
