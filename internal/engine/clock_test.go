package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/formentry/internal/bus"
	"github.com/roach88/formentry/internal/journal"
)

func TestNewClock_FirstStampIsOne(t *testing.T) {
	c := NewClock()
	assert.Equal(t, int64(0), c.Current())
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(1), c.Current())
}

func TestNewClockAt_ContinuesAfterJournalGap(t *testing.T) {
	ctx := context.Background()
	j := openJournal(t)
	require.NoError(t, j.BeginSession(ctx, journal.Session{ID: "s", Payload: []byte(`{}`)}))
	for _, seq := range []int64{1, 2, 5} {
		e, err := journal.NewEntry("s", seq, journal.Inbound, bus.TopicBlock, "", nil)
		require.NoError(t, err)
		require.NoError(t, j.Append(ctx, e))
	}

	last, err := j.LastSeq(ctx, "s")
	require.NoError(t, err)
	c := NewClockAt(last)

	assert.Equal(t, int64(5), c.Current())
	assert.Equal(t, int64(6), c.Next(), "resumes after the highest row, not the row count")
}

func TestNewClockAt_EmptySession(t *testing.T) {
	j := openJournal(t)
	last, err := j.LastSeq(context.Background(), "missing")
	require.NoError(t, err)

	assert.Equal(t, int64(1), NewClockAt(last).Next())
	assert.Equal(t, int64(1), NewClockAt(-3).Next())
}

func TestRecord_StampsWithoutJournal(t *testing.T) {
	f := newFixture(t, visitPayload)

	require.NoError(t, f.e.Answer("0", "ann"))
	f.drain()

	// dirty, then the answer request
	assert.Len(t, f.out.Messages(), 2)
	assert.Equal(t, int64(2), f.e.Seq())
}

func TestRecord_JournalFailureStillAdvancesSeq(t *testing.T) {
	j := openJournal(t)
	f := newFixture(t, visitPayload, WithJournal(j))
	require.NoError(t, j.Close())

	require.NoError(t, f.e.Answer("0", "ann"))
	f.drain()

	assert.Equal(t, int64(2), f.e.Seq())
	assert.Equal(t, "ann", f.lastAnswer().Answer, "publishing goes on")
}

func TestRecord_InboundAndOutboundShareOneSequence(t *testing.T) {
	j := openJournal(t)
	f := newFixture(t, visitPayload, WithJournal(j))

	require.NoError(t, f.e.Answer("0", "ann"))
	f.drain()
	f.reply("req-0001", map[string]any{"0": "ann"})

	entries, err := j.Read(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for i, e := range entries {
		assert.Equal(t, int64(i+1), e.Seq)
	}
	assert.Equal(t, journal.Inbound, entries[2].Direction)
	assert.Equal(t, entries[2].Seq, f.e.Seq())
}
