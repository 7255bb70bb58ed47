package journal

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// openTestJournal creates a journal in a temp dir, closed on cleanup.
func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func beginTestSession(t *testing.T, j *Journal, id string, created int64) {
	t.Helper()
	require.NoError(t, j.BeginSession(context.Background(), Session{
		ID:      id,
		Title:   "Visit",
		Payload: []byte(`{"tree":[]}`),
		Created: created,
	}))
}

func mustEntry(t *testing.T, session string, seq int64, dir Direction, topic, requestID string, payload any) Entry {
	t.Helper()
	e, err := NewEntry(session, seq, dir, topic, requestID, payload)
	require.NoError(t, err)
	return e
}
