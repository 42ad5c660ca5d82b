package observability

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestRequestIDContext(t *testing.T) {
	t.Run("stores and retrieves request ID", func(t *testing.T) {
		ctx := WithRequestID(context.Background(), "req-123")
		assert.Equal(t, "req-123", RequestIDFromContext(ctx))
	})

	t.Run("returns empty string when not set", func(t *testing.T) {
		assert.Equal(t, "", RequestIDFromContext(context.Background()))
	})
}

func TestCorrelationIDContext(t *testing.T) {
	t.Run("explicit correlation id wins", func(t *testing.T) {
		ctx := WithRequestID(context.Background(), "req-1")
		ctx = WithCorrelationID(ctx, "corr-1")
		assert.Equal(t, "corr-1", CorrelationIDFromContext(ctx))
	})

	t.Run("falls back to request id", func(t *testing.T) {
		ctx := WithRequestID(context.Background(), "req-1")
		assert.Equal(t, "req-1", CorrelationIDFromContext(ctx))
	})
}

func TestUserIDContext(t *testing.T) {
	ctx := WithUserID(context.Background(), "user-9")
	assert.Equal(t, "user-9", UserIDFromContext(ctx))
	assert.Empty(t, UserIDFromContext(context.Background()))
}

func TestWorkflowContext(t *testing.T) {
	ctx := WithWorkflow(context.Background(), "wf-123", "run-456")

	workflowID, runID := WorkflowFromContext(ctx)
	assert.Equal(t, "wf-123", workflowID)
	assert.Equal(t, "run-456", runID)

	workflowID, runID = WorkflowFromContext(context.Background())
	assert.Empty(t, workflowID)
	assert.Empty(t, runID)
}

func TestContextWrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), requestIDKey, 123)
	assert.Equal(t, "", RequestIDFromContext(ctx))
}

func TestLoggerFromContext(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithCorrelationID(ctx, "corr-1")
	ctx = WithUserID(ctx, "user-1")

	logger := LoggerFromContext(ctx, base)
	logger.Info().Msg("handled")

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "corr-1", entry["correlation_id"])
	assert.Equal(t, "user-1", entry["user_id"])

	buf.Reset()
	bare := LoggerFromContext(context.Background(), base)
	bare.Info().Msg("bare")
	entry = decodeEntry(t, &buf)
	assert.NotContains(t, entry, "request_id")
}
