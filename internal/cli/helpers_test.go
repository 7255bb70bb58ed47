package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/formentry/internal/bus"
	"github.com/roach88/formentry/internal/engine"
	"github.com/roach88/formentry/internal/journal"
	"github.com/roach88/formentry/internal/render"
	"github.com/roach88/formentry/internal/testutil"
	"github.com/roach88/formentry/internal/wire"
)

// seedJournal records a visit-1 session: one answer, echoed back by the
// server, and one unanswered answer to another question.
func seedJournal(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "sessions.db")

	j, err := journal.Open(dbPath)
	require.NoError(t, err)
	defer j.Close()

	data, err := os.ReadFile("testdata/visit.json")
	require.NoError(t, err)
	initial, err := wire.DecodeResponse(data)
	require.NoError(t, err)

	b := bus.New()
	e, err := engine.New(b, initial,
		engine.WithClock(testutil.NewManualClock(testutil.Epoch)),
		engine.WithIDGenerator(testutil.NewSequentialIDs("req")),
		engine.WithJournal(j),
		engine.WithCaptioner(render.Identity{}),
	)
	require.NoError(t, err)
	defer e.Stop()

	require.NoError(t, e.Answer("0", "ann"))
	require.NoError(t, e.Drain(ctx))

	echoed, err := wire.DecodeResponse(bytes.Replace(data,
		[]byte(`"caption": "Name", "datatype": "str", "answer": null`),
		[]byte(`"caption": "Name", "datatype": "str", "answer": "ann"`), 1))
	require.NoError(t, err)
	echoed.SeqID = 2
	b.Send(bus.TopicReconcile, wire.Reconcile{RequestID: "req-0001", Response: echoed})
	require.NoError(t, e.Drain(ctx))

	require.NoError(t, e.Answer("1", 42))
	require.NoError(t, e.Drain(ctx))

	return dbPath
}

// emptyJournal creates a journal file with no sessions.
func emptyJournal(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "empty.db")
	j, err := journal.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, j.Close())
	return dbPath
}
