package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/formentry/internal/tree"
)

func runValidateCommand(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestValidateValidPayload(t *testing.T) {
	out, err := runValidateCommand(t, "text", "testdata/visit.json")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ 1 payload(s) valid")
}

func TestValidateValidPayloadJSON(t *testing.T) {
	out, err := runValidateCommand(t, "json", "testdata/visit.json")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestValidateSchemaViolations(t *testing.T) {
	out, err := runValidateCommand(t, "text", "testdata/invalid.json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, "testdata/invalid.json")
	assert.Contains(t, out, ErrCodeSchema)
}

func TestValidateSchemaViolationsJSON(t *testing.T) {
	out, err := runValidateCommand(t, "json", "testdata/invalid.json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.NotEmpty(t, resp.Data.Errors)
	assert.Equal(t, ErrCodeSchema, resp.Error.Code)
}

func TestValidateDuplicateKey(t *testing.T) {
	out, err := runValidateCommand(t, "text", "testdata/duplicate.json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, string(tree.ErrCodeDuplicateKey))
}

func TestValidateMultipleFiles(t *testing.T) {
	out, err := runValidateCommand(t, "text", "testdata/visit.json", "testdata/invalid.json")
	require.Error(t, err)
	assert.Contains(t, out, "testdata/invalid.json")
	assert.NotContains(t, out, "testdata/visit.json")
}

func TestValidateNonExistentFile(t *testing.T) {
	out, err := runValidateCommand(t, "text", "testdata/missing.json")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeNotFound)
}

func TestValidateStdin(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetIn(strings.NewReader(`{"tree": [{"type": "question", "ix": "0", "datatype": "str"}]}`))
	cmd.SetArgs([]string{"-"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "valid")
}

func TestValidateVerboseOutput(t *testing.T) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text", Verbose: true})
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs([]string{"testdata/visit.json"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, errOut.String(), "Validating testdata/visit.json")
}

func TestValidatePayloadFile(t *testing.T) {
	errs, err := ValidatePayloadFile("testdata/visit.json")
	require.NoError(t, err)
	assert.Empty(t, errs)

	errs, err = ValidatePayloadFile("testdata/invalid.json")
	require.NoError(t, err)
	assert.NotEmpty(t, errs)

	_, err = ValidatePayloadFile("testdata/missing.json")
	assert.Error(t, err)
}
