package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/formentry/internal/harness"
)

func runScenarioCommand(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewScenarioCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestScenarioPassing(t *testing.T) {
	out, err := runScenarioCommand(t, "text", "testdata/scenarios", "--filter", "name_*")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ name_answer")
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")
}

func TestScenarioSingleFile(t *testing.T) {
	out, err := runScenarioCommand(t, "text", "testdata/scenarios/name_answer.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "1 passed")
}

func TestScenarioFailureExitCode(t *testing.T) {
	out, err := runScenarioCommand(t, "text", "testdata/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	assert.Contains(t, out, "✓ name_answer")
	assert.Contains(t, out, "✗ failing")
	assert.Contains(t, out, "trace_count")
	assert.Contains(t, out, "1 passed, 1 failed, 2 total")
}

func TestScenarioJSON(t *testing.T) {
	out, err := runScenarioCommand(t, "json", "testdata/scenarios", "--parallel", "2")
	require.Error(t, err)

	var resp struct {
		Status string              `json:"status"`
		Data   harness.SuiteResult `json:"data"`
		Error  *CLIError           `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Failed)
	assert.Equal(t, "E_SCENARIO", resp.Error.Code)
}

func TestScenarioUpdateWritesGolden(t *testing.T) {
	dir := t.TempDir()
	src, err := os.ReadFile("testdata/scenarios/name_answer.yaml")
	require.NoError(t, err)
	path := filepath.Join(dir, "name_answer.yaml")
	require.NoError(t, os.WriteFile(path, src, 0o644))

	out, err := runScenarioCommand(t, "text", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "(golden updated)")
	assert.FileExists(t, harness.GoldenFilePath(path))

	out, err = runScenarioCommand(t, "text", dir)
	require.NoError(t, err)
	assert.NotContains(t, out, "golden updated")
}

func TestScenarioPathNotFound(t *testing.T) {
	_, err := runScenarioCommand(t, "text", "testdata/nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "path not found")
}

func TestScenarioNoFiles(t *testing.T) {
	_, err := runScenarioCommand(t, "text", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "no scenario files found")
}

func TestScenarioBadFilter(t *testing.T) {
	_, err := runScenarioCommand(t, "text", "testdata/scenarios", "--filter", "[")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
