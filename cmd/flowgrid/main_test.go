package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/flowgrid/internal/cli"
)

func TestRun_SummarizesRuns(t *testing.T) {
	// --- Arrange ---
	// A small event log with one successful run and one failed run.
	log := `{"event_type_value":"PIPELINE_START","run_id":"run-a","pipeline_name":"etl"}
{"event_type_value":"STEP_SUCCESS","run_id":"run-a","pipeline_name":"etl","solid_handle":"transform","event_specific_data":{"__class__":"StepSuccessData","duration_ms":10}}
{"event_type_value":"PIPELINE_SUCCESS","run_id":"run-a","pipeline_name":"etl"}
{"event_type_value":"PIPELINE_START","run_id":"run-b","pipeline_name":"etl"}
{"event_type_value":"PIPELINE_FAILURE","run_id":"run-b","pipeline_name":"etl","message":"step exploded","event_specific_data":{"__class__":"PipelineFailureData","error":{"message":"step exploded"}}}
`
	tempDir := t.TempDir()
	filePath := filepath.Join(tempDir, "events.jsonl")
	err := os.WriteFile(filePath, []byte(log), 0600)
	require.NoError(t, err, "failed to set up test log file")

	out := &bytes.Buffer{}

	// --- Act ---
	runErr := run(out, []string{filePath})

	// --- Assert ---
	require.NoError(t, runErr)
	got := out.String()
	require.Contains(t, got, "run run-a  job=etl  status=SUCCESS  events=3")
	require.Contains(t, got, "run run-b  job=etl  status=FAILURE  events=2")
	require.Contains(t, got, "RUN_FAILURE: step exploded", "failed runs should list their failure events")
}

func TestRun_MalformedLog(t *testing.T) {
	// --- Arrange ---
	tempDir := t.TempDir()
	filePath := filepath.Join(tempDir, "events.jsonl")
	err := os.WriteFile(filePath, []byte("{not json\n"), 0600)
	require.NoError(t, err, "failed to set up test log file")

	out := &bytes.Buffer{}

	// --- Act ---
	runErr := run(out, []string{filePath})

	// --- Assert ---
	require.Error(t, runErr, "run() should fail on a structurally malformed log line")
	require.Contains(t, runErr.Error(), "line 1")
}

func TestRun_MissingFile(t *testing.T) {
	// --- Arrange ---
	out := &bytes.Buffer{}

	// --- Act ---
	runErr := run(out, []string{filepath.Join(t.TempDir(), "no-such-file.jsonl")})

	// --- Assert ---
	require.Error(t, runErr)
	require.Contains(t, runErr.Error(), "reading event log")
}

func TestRun_ShouldExit(t *testing.T) {
	// --- Arrange ---
	// The "-h" (help) flag should cause cli.Parse to return `shouldExit=true`.
	args := []string{"-h"}
	out := &bytes.Buffer{}

	// --- Act ---
	err := run(out, args)

	// --- Assert ---
	require.NoError(t, err, "run() should return a nil error when shouldExit is true")
	require.Contains(t, out.String(), "Usage:", "Expected help text to be printed to the output buffer")
}

func TestRun_ParseError(t *testing.T) {
	// --- Arrange ---
	args := []string{"--this-is-not-a-valid-flag"}
	out := &bytes.Buffer{}

	// --- Act ---
	err := run(out, args)

	// --- Assert ---
	require.Error(t, err, "run() should return an error when argument parsing fails")

	exitErr, ok := err.(*cli.ExitError)
	require.True(t, ok, "parse failures should carry an exit code")
	require.Equal(t, 2, exitErr.Code)
}
