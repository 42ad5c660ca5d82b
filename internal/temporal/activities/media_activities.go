// Package activities implements the Temporal activities of the media
// import workflow.
package activities

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/helixir/paper-sharing-service/internal/domain"
	"github.com/helixir/paper-sharing-service/internal/observability"
	"github.com/helixir/paper-sharing-service/internal/outbox"
	"github.com/helixir/paper-sharing-service/internal/pdf"
	"github.com/helixir/paper-sharing-service/internal/service"
	"github.com/helixir/paper-sharing-service/internal/storage"
)

// Application error types raised as non-retryable failures.
const (
	// ErrTypeFetchRejected marks a source that will never yield a PDF:
	// not a PDF, too large, or pointing at a private network.
	ErrTypeFetchRejected = "FetchRejected"
	// ErrTypePaperNotFound marks a paper deleted while its import ran.
	ErrTypePaperNotFound = "PaperNotFound"
	// ErrTypeInvalidInput marks malformed activity input.
	ErrTypeInvalidInput = "InvalidInput"
)

// PDFFetcher opens remote PDFs.
type PDFFetcher interface {
	OpenPDF(ctx context.Context, rawURL string) (*pdf.Stream, error)
}

// FetchToStoreInput is the input of FetchToStore.
type FetchToStoreInput struct {
	PaperID   uuid.UUID `json:"paper_id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	SourceURL string    `json:"source_url"`
}

// FetchToStoreOutput describes the stored copy.
type FetchToStoreOutput struct {
	Key       string `json:"key"`
	URL       string `json:"url"`
	SizeBytes int64  `json:"size_bytes"`
}

// UpdatePaperMediaInput is the input of UpdatePaperMedia.
type UpdatePaperMediaInput struct {
	PaperID   uuid.UUID `json:"paper_id"`
	SourceURL string    `json:"source_url"`
	PDFURL    string    `json:"pdf_url"`
	SizeBytes int64     `json:"size_bytes"`
}

// DeleteStoredObjectInput is the input of DeleteStoredObject.
type DeleteStoredObjectInput struct {
	Key string `json:"key"`
}

// MediaActivities copies paper PDFs onto the media host.
// Methods on this struct are registered as Temporal activities via the worker.
type MediaActivities struct {
	fetcher PDFFetcher
	media   storage.MediaStore
	uow     service.UnitOfWork
	emitter *outbox.Emitter
	metrics *observability.Metrics
}

// NewMediaActivities creates a new MediaActivities instance.
// The metrics parameter may be nil (metrics recording will be skipped).
func NewMediaActivities(fetcher PDFFetcher, media storage.MediaStore, uow service.UnitOfWork, emitter *outbox.Emitter, metrics *observability.Metrics) *MediaActivities {
	return &MediaActivities{
		fetcher: fetcher,
		media:   media,
		uow:     uow,
		emitter: emitter,
		metrics: metrics,
	}
}

// FetchToStore downloads the source PDF and puts it on the media host.
func (a *MediaActivities) FetchToStore(ctx context.Context, input FetchToStoreInput) (*FetchToStoreOutput, error) {
	logger := activity.GetLogger(ctx)
	if input.SourceURL == "" || input.OwnerID == uuid.Nil {
		return nil, temporal.NewNonRetryableApplicationError("source URL and owner are required", ErrTypeInvalidInput, nil)
	}

	activity.RecordHeartbeat(ctx, "downloading")
	stream, err := a.fetcher.OpenPDF(ctx, input.SourceURL)
	if err != nil {
		return nil, classifyFetchError(err)
	}
	defer func() { _ = stream.Body.Close() }()

	key := storage.NewPaperKey(input.OwnerID)
	body := &countingReader{
		r:     stream.Body,
		every: heartbeatEveryBytes,
		beat:  func(n int64) { activity.RecordHeartbeat(ctx, n) },
	}
	url, err := a.media.Put(ctx, key, storage.ContentTypePDF, body, stream.ContentLength)
	if err != nil {
		return nil, classifyFetchError(fmt.Errorf("store %s: %w", key, err))
	}

	if a.metrics != nil {
		a.metrics.RecordMediaStored("import", body.n)
	}
	logger.Info("stored imported PDF", "paperID", input.PaperID, "key", key, "bytes", body.n)

	return &FetchToStoreOutput{Key: key, URL: url, SizeBytes: body.n}, nil
}

// UpdatePaperMedia points the paper at its stored copy and records a
// paper.media_imported event in the same transaction.
func (a *MediaActivities) UpdatePaperMedia(ctx context.Context, input UpdatePaperMediaInput) error {
	err := a.uow.Within(ctx, func(repos service.Repositories) error {
		if err := repos.Papers.UpdateMedia(ctx, input.PaperID, input.PDFURL); err != nil {
			return err
		}
		return a.emitter.PaperMediaImported(ctx, repos.Outbox, domain.PaperMediaImportedPayload{
			PaperID:   input.PaperID,
			SourceURL: input.SourceURL,
			PDFURL:    input.PDFURL,
			SizeBytes: input.SizeBytes,
		})
	})
	if errors.Is(err, domain.ErrNotFound) {
		return temporal.NewNonRetryableApplicationError("paper no longer exists", ErrTypePaperNotFound, err)
	}
	if err != nil {
		return fmt.Errorf("update paper media: %w", err)
	}
	return nil
}

// DeleteStoredObject removes an object stored by FetchToStore. It runs as
// compensation when the paper could not be updated.
func (a *MediaActivities) DeleteStoredObject(ctx context.Context, input DeleteStoredObjectInput) error {
	if !storage.ValidKey(input.Key) {
		return temporal.NewNonRetryableApplicationError(fmt.Sprintf("invalid key %q", input.Key), ErrTypeInvalidInput, nil)
	}
	if err := a.media.Delete(ctx, input.Key); err != nil {
		return fmt.Errorf("delete %s: %w", input.Key, err)
	}
	activity.GetLogger(ctx).Info("deleted stored object", "key", input.Key)
	return nil
}

// classifyFetchError turns errors no retry can fix into non-retryable ones.
func classifyFetchError(err error) error {
	switch {
	case errors.Is(err, pdf.ErrNotPDF), errors.Is(err, pdf.ErrTooLarge), errors.Is(err, pdf.ErrSSRF):
		return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeFetchRejected, err)
	default:
		return err
	}
}

// heartbeatEveryBytes spaces out progress heartbeats while a PDF streams
// to the media host.
const heartbeatEveryBytes = 256 << 10

// countingReader counts bytes read and calls beat with the running total
// each time another every bytes have passed.
type countingReader struct {
	r     io.Reader
	n     int64
	every int64
	last  int64
	beat  func(n int64)
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	if c.beat != nil && c.every > 0 && c.n-c.last >= c.every {
		c.last = c.n
		c.beat(c.n)
	}
	return n, err
}
