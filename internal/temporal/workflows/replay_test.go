package workflows

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	pstemporal "github.com/helixir/paper-sharing-service/internal/temporal"
)

// historyDir returns the absolute path to the workflow history JSON fixtures.
// It resolves relative to the source file so it works regardless of the working
// directory used to invoke `go test`.
func historyDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "..", "testdata", "workflow_histories")
}

// TestReplayWorkflowHistory replays every JSON history file found in
// testdata/workflow_histories/ through the current MediaImportWorkflow
// implementation. If the workflow code has changed in a non-deterministic way
// (e.g. reordered activities, removed a timer, changed a side-effect), the
// replay will fail with a non-determinism error.
//
// This test is the primary guard against breaking running workflow executions
// after a code change. It skips gracefully when no history files are present.
//
// To capture a history file from a running Temporal cluster:
//
//	temporal workflow show \
//	  --workflow-id <workflow_id> \
//	  --output json > testdata/workflow_histories/<descriptive_name>.json
func TestReplayWorkflowHistory(t *testing.T) {
	dir := historyDir()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Skipf("cannot read history directory %s: %v (skipping replay tests)", dir, err)
	}

	var jsonFiles []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if filepath.Ext(entry.Name()) == ".json" {
			jsonFiles = append(jsonFiles, filepath.Join(dir, entry.Name()))
		}
	}

	if len(jsonFiles) == 0 {
		t.Skip("no workflow history JSON files found in testdata/workflow_histories/, " +
			"skipping replay tests. Capture histories from a running Temporal cluster with: " +
			"temporal workflow show --workflow-id <id> --output json > testdata/workflow_histories/<name>.json")
	}

	for _, filePath := range jsonFiles {
		name := filepath.Base(filePath)
		t.Run(name, func(t *testing.T) {
			replayer := worker.NewWorkflowReplayer()
			replayer.RegisterWorkflowWithOptions(MediaImportWorkflow, workflow.RegisterOptions{Name: pstemporal.MediaImportWorkflowName})

			err := replayer.ReplayWorkflowHistoryFromJSONFile(nil, filePath)
			require.NoError(t, err, "replay failed for %s: this indicates a non-deterministic workflow change", name)
		})
	}
}
