package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event type constants for outbox events.
const (
	EventTypePaperUploaded      = "paper.uploaded"
	EventTypePaperMediaImported = "paper.media_imported"
	EventTypePaperDeleted       = "paper.deleted"
	EventTypeBookmarkAdded      = "bookmark.added"
	EventTypeBookmarkRemoved    = "bookmark.removed"
	EventTypeUserRegistered     = "user.registered"
	EventTypeUserProfileUpdated = "user.profile_updated"
)

// Aggregate type constants for outbox events.
const (
	AggregateTypePaper = "paper"
	AggregateTypeUser  = "user"
)

// OutboxStatus is the delivery state of an outbox event.
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusPublished OutboxStatus = "published"
	OutboxStatusDead      OutboxStatus = "dead"
)

// OutboxEvent represents an event to be published via the outbox pattern.
type OutboxEvent struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       json.RawMessage
	Metadata      map[string]string
	Status        OutboxStatus
	Attempts      int
	MaxAttempts   int
	LastError     string
	CreatedAt     time.Time
}

// CorrelationID returns the correlation id recorded in the metadata, if any.
func (e *OutboxEvent) CorrelationID() string {
	return e.Metadata["correlation_id"]
}

// NewOutboxEvent creates a pending event with a JSON-serialized payload.
func NewOutboxEvent(eventType, aggregateType, aggregateID string, payload any) (*OutboxEvent, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	return &OutboxEvent{
		ID:            uuid.New(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payloadBytes,
		Metadata:      map[string]string{},
		Status:        OutboxStatusPending,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// PaperUploadedPayload is the payload for paper.uploaded events.
type PaperUploadedPayload struct {
	PaperID    uuid.UUID `json:"paper_id"`
	UserID     uuid.UUID `json:"user_id"`
	Title      string    `json:"title"`
	PDFURL     string    `json:"pdf_url"`
	Authors    []string  `json:"authors"`
	Categories []string  `json:"categories"`
	Tags       []string  `json:"tags"`
}

// PaperMediaImportedPayload is the payload for paper.media_imported events.
type PaperMediaImportedPayload struct {
	PaperID   uuid.UUID `json:"paper_id"`
	SourceURL string    `json:"source_url"`
	PDFURL    string    `json:"pdf_url"`
	SizeBytes int64     `json:"size_bytes"`
}

// PaperDeletedPayload is the payload for paper.deleted events.
type PaperDeletedPayload struct {
	PaperID uuid.UUID `json:"paper_id"`
	UserID  uuid.UUID `json:"user_id"`
}

// BookmarkPayload is the payload for bookmark.added and bookmark.removed events.
type BookmarkPayload struct {
	PaperID uuid.UUID `json:"paper_id"`
	UserID  uuid.UUID `json:"user_id"`
}

// UserRegisteredPayload is the payload for user.registered events.
type UserRegisteredPayload struct {
	UserID   uuid.UUID `json:"user_id"`
	Email    string    `json:"email"`
	Provider string    `json:"provider"`
}

// UserProfileUpdatedPayload is the payload for user.profile_updated events.
type UserProfileUpdatedPayload struct {
	UserID uuid.UUID `json:"user_id"`
	Fields []string  `json:"fields"`
}
