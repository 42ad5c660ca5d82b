package temporal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"

	"github.com/helixir/paper-sharing-service/internal/observability"
)

// MediaImportWorkflowName is the registered name of the media import
// workflow. The client starts it by name so callers need not import the
// workflows package.
const MediaImportWorkflowName = "MediaImportWorkflow"

const (
	// DefaultWorkflowExecutionTimeout bounds a single media import.
	DefaultWorkflowExecutionTimeout = 30 * time.Minute

	// DefaultHealthCheckTimeout bounds a Temporal health check.
	DefaultHealthCheckTimeout = 5 * time.Second
)

var (
	// ErrWorkflowAlreadyStarted means an import for the paper is already running.
	ErrWorkflowAlreadyStarted = errors.New("workflow already started")

	// ErrClientClosed is returned after Close.
	ErrClientClosed = errors.New("client closed")

	// ErrConnectionFailed covers unavailable servers and unclassified failures.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrDeadlineExceeded means the call ran out of time.
	ErrDeadlineExceeded = errors.New("deadline exceeded")

	// ErrRejected means the server refused the request (bad namespace,
	// permissions or arguments). Retrying will not help.
	ErrRejected = errors.New("rejected by server")
)

// TemporalError records which client operation failed and how.
type TemporalError struct {
	Op         string
	Kind       error
	WorkflowID string
	Err        error
}

func (e *TemporalError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.WorkflowID != "" {
		msg += fmt.Sprintf(" [workflowID=%s]", e.WorkflowID)
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *TemporalError) Unwrap() error { return e.Err }

// Is matches on Kind so callers can use errors.Is with the sentinels above.
func (e *TemporalError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// classify maps an SDK error onto one of the sentinel kinds.
func classify(err error) error {
	var (
		alreadyStarted *serviceerror.WorkflowExecutionAlreadyStarted
		namespace      *serviceerror.NamespaceNotFound
		permission     *serviceerror.PermissionDenied
		invalid        *serviceerror.InvalidArgument
		deadline       *serviceerror.DeadlineExceeded
	)
	switch {
	case errors.As(err, &alreadyStarted):
		return ErrWorkflowAlreadyStarted
	case errors.As(err, &namespace), errors.As(err, &permission), errors.As(err, &invalid):
		return ErrRejected
	case errors.As(err, &deadline), errors.Is(err, context.DeadlineExceeded):
		return ErrDeadlineExceeded
	case errors.Is(err, context.Canceled):
		return ErrClientClosed
	default:
		return ErrConnectionFailed
	}
}

func wrapTemporalError(op string, err error, workflowID string) error {
	if err == nil {
		return nil
	}
	return &TemporalError{Op: op, Kind: classify(err), WorkflowID: workflowID, Err: err}
}

// ClientConfig contains configuration for the Temporal client.
type ClientConfig struct {
	// HostPort is the Temporal server address (e.g., "localhost:7233").
	HostPort string

	// Namespace is the Temporal namespace to use.
	Namespace string

	// TaskQueue is the task queue media imports are started on.
	TaskQueue string

	// HealthCheckTimeout defaults to DefaultHealthCheckTimeout.
	HealthCheckTimeout time.Duration
}

// NewClient dials the Temporal server. SDK logs go through logger.
func NewClient(cfg ClientConfig, logger zerolog.Logger) (client.Client, error) {
	options := client.Options{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
		Logger:    observability.NewTemporalLogger(logger),
	}

	c, err := client.Dial(options)
	if err != nil {
		return nil, fmt.Errorf("create Temporal client: %w", err)
	}

	return c, nil
}

// MediaImportInput is the input of the media import workflow. It lives here
// so the service layer can start imports without importing the workflows
// package.
type MediaImportInput struct {
	// PaperID is the paper whose PDF is copied.
	PaperID uuid.UUID `json:"paper_id"`
	// OwnerID is the uploader. Stored objects are keyed under it.
	OwnerID uuid.UUID `json:"owner_id"`
	// SourceURL is the external PDF URL given at upload time.
	SourceURL string `json:"source_url"`
}

// MediaImportWorkflowID returns the deterministic workflow id for a paper.
func MediaImportWorkflowID(paperID uuid.UUID) string {
	return fmt.Sprintf("media-import-%s", paperID)
}

// MediaImportClient starts media import workflows.
type MediaImportClient struct {
	mu                 sync.RWMutex
	client             client.Client
	taskQueue          string
	healthCheckTimeout time.Duration
	logger             zerolog.Logger
	closed             bool
}

// NewMediaImportClient creates a MediaImportClient on c.
func NewMediaImportClient(c client.Client, cfg ClientConfig, logger zerolog.Logger) *MediaImportClient {
	healthTimeout := cfg.HealthCheckTimeout
	if healthTimeout == 0 {
		healthTimeout = DefaultHealthCheckTimeout
	}

	return &MediaImportClient{
		client:             c,
		taskQueue:          cfg.TaskQueue,
		healthCheckTimeout: healthTimeout,
		logger:             observability.WithComponent(logger, "media-import-client"),
	}
}

// Close closes the underlying Temporal client connection.
func (c *MediaImportClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil && !c.closed {
		c.client.Close()
		c.closed = true
	}
}

func (c *MediaImportClient) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// Health checks the connection health to the Temporal server.
func (c *MediaImportClient) Health(ctx context.Context) error {
	if c.isClosed() {
		return &TemporalError{Op: "Health", Kind: ErrClientClosed}
	}

	checkCtx, cancel := context.WithTimeout(ctx, c.healthCheckTimeout)
	defer cancel()

	if _, err := c.client.CheckHealth(checkCtx, &client.CheckHealthRequest{}); err != nil {
		return wrapTemporalError("Health", err, "")
	}
	return nil
}

// StartMediaImport starts copying sourceURL onto the media host for
// paperID. A workflow already running for the paper counts as success.
func (c *MediaImportClient) StartMediaImport(ctx context.Context, paperID, ownerID uuid.UUID, sourceURL string) error {
	workflowID := MediaImportWorkflowID(paperID)
	if c.isClosed() {
		return &TemporalError{Op: "StartMediaImport", Kind: ErrClientClosed, WorkflowID: workflowID}
	}

	options := client.StartWorkflowOptions{
		ID:                       workflowID,
		TaskQueue:                c.taskQueue,
		WorkflowExecutionTimeout: DefaultWorkflowExecutionTimeout,
	}
	input := MediaImportInput{PaperID: paperID, OwnerID: ownerID, SourceURL: sourceURL}

	run, err := c.client.ExecuteWorkflow(ctx, options, MediaImportWorkflowName, input)
	if err != nil {
		wrapped := wrapTemporalError("StartMediaImport", err, workflowID)
		if errors.Is(wrapped, ErrWorkflowAlreadyStarted) {
			c.logger.Debug().Str("workflow_id", workflowID).Msg("media import already running")
			return nil
		}
		return wrapped
	}

	c.logger.Info().
		Str("workflow_id", workflowID).
		Str("run_id", run.GetRunID()).
		Str("paper_id", paperID.String()).
		Msg("media import started")
	return nil
}

// TaskQueue returns the configured task queue name.
func (c *MediaImportClient) TaskQueue() string {
	return c.taskQueue
}
