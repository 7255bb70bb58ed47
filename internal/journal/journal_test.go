package journal

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/formentry/internal/wire"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := Open(path)
	require.NoError(t, err)
	defer j.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err, "database file was not created")
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	for i := 0; i < 3; i++ {
		j, err := Open(path)
		require.NoError(t, err, "Open() iteration %d", i)
		require.NoError(t, j.Close())
	}
}

func TestOpen_Pragmas(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	assert.NoError(t, j.verifyPragma(ctx, "journal_mode", "wal"))
	assert.NoError(t, j.verifyPragma(ctx, "foreign_keys", "1"))
	assert.NoError(t, j.verifyPragma(ctx, "user_version", "1"))
}

func TestSession_RoundTrip(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	beginTestSession(t, j, "s1", 1)

	s, err := j.Session(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, Session{ID: "s1", Title: "Visit", Payload: []byte(`{"tree":[]}`), Created: 1}, s)

	// A second begin keeps the original header.
	require.NoError(t, j.BeginSession(ctx, Session{ID: "s1", Title: "Other", Payload: []byte(`{}`), Created: 9}))
	s, err = j.Session(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Visit", s.Title)
}

func TestSession_NotFound(t *testing.T) {
	j := openTestJournal(t)

	_, err := j.Session(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessions_Ordered(t *testing.T) {
	j := openTestJournal(t)
	beginTestSession(t, j, "b", 2)
	beginTestSession(t, j, "a", 2)
	beginTestSession(t, j, "c", 1)

	sessions, err := j.Sessions(context.Background())
	require.NoError(t, err)

	var ids []string
	for _, s := range sessions {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)
}

func TestAppend_ReadInSeqOrder(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	beginTestSession(t, j, "s1", 1)

	entries := []Entry{
		mustEntry(t, "s1", 3, Inbound, "session.reconcile", "r1", wire.Reconcile{RequestID: "r1", Response: &wire.Response{}}),
		mustEntry(t, "s1", 1, Outbound, "formplayer.answer", "r1", wire.AnswerRequest{RequestID: "r1", Action: wire.ActionAnswer, Ix: "0", Answer: "x"}),
		mustEntry(t, "s1", 2, Outbound, "formplayer.dirty", "", wire.Dirty{Action: wire.ActionAnswer, Ix: "0"}),
	}
	for _, e := range entries {
		require.NoError(t, j.Append(ctx, e))
	}

	got, err := j.Read(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{got[0].Seq, got[1].Seq, got[2].Seq})
	assert.Equal(t, `{"action":"answer","answer":"x","ix":"0","request_id":"r1"}`, string(got[0].Payload))

	var req wire.AnswerRequest
	require.NoError(t, got[0].Decode(&req))
	assert.Equal(t, "x", req.Answer)

	in, err := j.ReadDirection(ctx, "s1", Inbound)
	require.NoError(t, err)
	require.Len(t, in, 1)
	assert.Equal(t, "session.reconcile", in[0].Topic)
}

func TestAppend_DuplicateSeqIgnored(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	beginTestSession(t, j, "s1", 1)

	require.NoError(t, j.Append(ctx, mustEntry(t, "s1", 1, Outbound, "formplayer.dirty", "", wire.Dirty{Action: "a"})))
	require.NoError(t, j.Append(ctx, mustEntry(t, "s1", 1, Outbound, "formplayer.dirty", "", wire.Dirty{Action: "b"})))

	got, err := j.Read(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Contains(t, string(got[0].Payload), `"a"`)
}

func TestAppend_RequiresSession(t *testing.T) {
	j := openTestJournal(t)

	err := j.Append(context.Background(), mustEntry(t, "nope", 1, Outbound, "formplayer.dirty", "", nil))
	assert.Error(t, err)
}

func TestRead_EmptySession(t *testing.T) {
	j := openTestJournal(t)

	got, err := j.Read(context.Background(), "none")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestPendingRequestsAndLastSeq(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	beginTestSession(t, j, "s1", 1)

	seq, err := j.LastSeq(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), seq)

	for _, e := range []Entry{
		mustEntry(t, "s1", 1, Outbound, "formplayer.answer", "r1", nil),
		mustEntry(t, "s1", 2, Outbound, "formplayer.dirty", "", nil),
		mustEntry(t, "s1", 3, Outbound, "formplayer.answer", "r2", nil),
		mustEntry(t, "s1", 4, Inbound, "session.reconcile", "r1", nil),
		mustEntry(t, "s1", 5, Inbound, "session.block", "", wire.Block{Level: 1}),
	} {
		require.NoError(t, j.Append(ctx, e))
	}

	pending, err := j.PendingRequests(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "r2", pending[0].RequestID)

	seq, err = j.LastSeq(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), seq)
}

func TestBeginSession_AssignsCreated(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	beginTestSession(t, j, "first", 5)
	require.NoError(t, j.BeginSession(ctx, Session{ID: "second", Payload: []byte(`{}`)}))

	s, err := j.Session(ctx, "second")
	require.NoError(t, err)
	assert.Equal(t, int64(6), s.Created)
}
