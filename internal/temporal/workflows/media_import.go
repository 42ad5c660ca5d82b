// Package workflows defines the Temporal workflows of the paper sharing
// service.
package workflows

import (
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	pstemporal "github.com/helixir/paper-sharing-service/internal/temporal"
	"github.com/helixir/paper-sharing-service/internal/temporal/activities"
)

// Import outcomes reported in MediaImportResult.
const (
	OutcomeImported     = "imported"
	OutcomeFetchFailed  = "fetch_failed"
	OutcomePaperDeleted = "paper_deleted"
)

// Activity timeout constants.
const (
	fetchActivityTimeout  = 5 * time.Minute
	updateActivityTimeout = 30 * time.Second
)

// MediaImportResult is the result of MediaImportWorkflow.
type MediaImportResult struct {
	Outcome   string `json:"outcome"`
	PDFURL    string `json:"pdf_url,omitempty"`
	SizeBytes int64  `json:"size_bytes,omitempty"`
	// Reason explains a fetch_failed outcome.
	Reason string `json:"reason,omitempty"`
}

// MediaImportWorkflow copies a paper's external PDF onto the media host.
//
//  1. FetchToStore downloads the source and stores it.
//  2. UpdatePaperMedia points the paper at the stored copy.
//  3. If step 2 fails, DeleteStoredObject removes the copy again.
//
// A source that cannot be fetched is not a workflow failure: the paper
// keeps its original URL and the workflow completes with OutcomeFetchFailed.
func MediaImportWorkflow(ctx workflow.Context, input pstemporal.MediaImportInput) (*MediaImportResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("starting media import", "paperID", input.PaperID, "sourceURL", input.SourceURL)

	var act *activities.MediaActivities

	fetchCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: fetchActivityTimeout,
		HeartbeatTimeout:    2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    1 * time.Minute,
			MaximumAttempts:    3,
			NonRetryableErrorTypes: []string{
				activities.ErrTypeFetchRejected,
				activities.ErrTypeInvalidInput,
			},
		},
	})

	updateCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: updateActivityTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    500 * time.Millisecond,
			BackoffCoefficient: 2.0,
			MaximumInterval:    10 * time.Second,
			MaximumAttempts:    5,
			NonRetryableErrorTypes: []string{
				activities.ErrTypePaperNotFound,
				activities.ErrTypeInvalidInput,
			},
		},
	})

	var stored activities.FetchToStoreOutput
	err := workflow.ExecuteActivity(fetchCtx, act.FetchToStore, activities.FetchToStoreInput{
		PaperID:   input.PaperID,
		OwnerID:   input.OwnerID,
		SourceURL: input.SourceURL,
	}).Get(ctx, &stored)
	if err != nil {
		logger.Warn("media fetch failed, keeping source URL", "paperID", input.PaperID, "error", err)
		return &MediaImportResult{Outcome: OutcomeFetchFailed, Reason: rootMessage(err)}, nil
	}

	err = workflow.ExecuteActivity(updateCtx, act.UpdatePaperMedia, activities.UpdatePaperMediaInput{
		PaperID:   input.PaperID,
		SourceURL: input.SourceURL,
		PDFURL:    stored.URL,
		SizeBytes: stored.SizeBytes,
	}).Get(ctx, nil)
	if err != nil {
		logger.Warn("paper update failed, removing stored copy", "paperID", input.PaperID, "key", stored.Key, "error", err)

		// Compensation must run even if the workflow was cancelled.
		compCtx, _ := workflow.NewDisconnectedContext(updateCtx)
		if delErr := workflow.ExecuteActivity(compCtx, act.DeleteStoredObject, activities.DeleteStoredObjectInput{
			Key: stored.Key,
		}).Get(compCtx, nil); delErr != nil {
			logger.Error("compensation failed, stored object orphaned", "key", stored.Key, "error", delErr)
		}

		if isApplicationErrorType(err, activities.ErrTypePaperNotFound) {
			return &MediaImportResult{Outcome: OutcomePaperDeleted}, nil
		}
		return nil, fmt.Errorf("update paper media: %w", err)
	}

	logger.Info("media import complete", "paperID", input.PaperID, "pdfURL", stored.URL)
	return &MediaImportResult{
		Outcome:   OutcomeImported,
		PDFURL:    stored.URL,
		SizeBytes: stored.SizeBytes,
	}, nil
}

func isApplicationErrorType(err error, errType string) bool {
	var appErr *temporal.ApplicationError
	return errors.As(err, &appErr) && appErr.Type() == errType
}

// rootMessage returns the innermost error message of an activity failure.
func rootMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}
