package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/formentry/internal/tree"
)

func TestReplayMissingDatabaseFlag(t *testing.T) {
	buf := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewReplayCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(errBuf)
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestReplayEmptyDatabase(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewReplayCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", emptyJournal(t)})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "No sessions found")
}

func TestReplayWithSession(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewReplayCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", seedJournal(t)})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	assert.Contains(t, output, "Replay Summary: 1 session(s)")
	assert.Contains(t, output, "✓ Session: visit-1")
	assert.Contains(t, output, "Messages: 1 inbound, 4 outbound")
	assert.Contains(t, output, "Unanswered requests: 1")
	assert.Contains(t, output, "✓ All sessions verified deterministic")
}

func TestReplayVerboseShowsOutline(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewReplayCommand(&RootOptions{Format: "text", Verbose: true})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", seedJournal(t), "--session", "visit-1"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), `form "Visit"`)
	assert.Contains(t, buf.String(), `question 0 "Name" [str] = ann`)
}

func TestReplayWithSessionJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewReplayCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", seedJournal(t)})

	require.NoError(t, cmd.Execute())

	var resp struct {
		Status string       `json:"status"`
		Data   ReplayResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.AllDeterministic)
	require.Len(t, resp.Data.Sessions, 1)

	s := resp.Data.Sessions[0]
	assert.Equal(t, "visit-1", s.SessionID)
	assert.Equal(t, "Visit", s.Title)
	require.NotNil(t, s.Tree)
	name := findSnapshot(s.Tree, "0")
	require.NotNil(t, name)
	assert.Equal(t, "ann", name.Answer)
	age := findSnapshot(s.Tree, "1")
	require.NotNil(t, age)
	assert.Nil(t, age.Answer, "unanswered edits are not replayed")
}

func TestReplayUnknownSession(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewReplayCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", seedJournal(t), "--session", "nope"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `unknown session "nope"`)
}

func TestReplayNonExistentDatabase(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewReplayCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", filepath.Join(t.TempDir(), "missing.db")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "journal not found")
}

func TestReplayHelpText(t *testing.T) {
	cmd := NewReplayCommand(&RootOptions{Format: "text"})

	assert.Contains(t, cmd.Short, "journaled sessions")
	assert.Contains(t, cmd.Long, "Exit codes")
	assert.Contains(t, cmd.Long, "--session")
}

// findSnapshot returns the question snapshot with the given absolute index.
func findSnapshot(s *tree.Snapshot, abs string) *tree.Snapshot {
	if s.Kind == "question" && s.AbsIx == abs {
		return s
	}
	for i := range s.Children {
		if found := findSnapshot(&s.Children[i], abs); found != nil {
			return found
		}
	}
	return nil
}
