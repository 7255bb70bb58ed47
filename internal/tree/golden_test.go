package tree

import (
	"bytes"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"
)

func newGoldie(t *testing.T) *goldie.Goldie {
	t.Helper()
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestDump_Golden(t *testing.T) {
	f := newForm(t, visitPayload)

	var buf bytes.Buffer
	require.NoError(t, Dump(&buf, f))

	newGoldie(t).Assert(t, "visit_dump", buf.Bytes())
}

func TestDump_GoldenAfterEdits(t *testing.T) {
	f := newForm(t, visitPayload)
	mustFind(t, f, "1").SetAnswer(30.0)
	mustFind(t, f, "1").MarkPending()
	mustFind(t, f, "2").SetServerError("pick one")
	f.SetOneQuestionPerScreen(true)

	var buf bytes.Buffer
	require.NoError(t, Dump(&buf, f))

	newGoldie(t).Assert(t, "visit_dump_edited", buf.Bytes())
}

func TestMarshalSnapshot_Golden(t *testing.T) {
	f := newForm(t, `{"tree": [{"type": "question", "ix": "0", "caption": "Name", "datatype": "str", "required": 1, "answer": "ann"}]}`)

	data, err := MarshalSnapshot(f)
	require.NoError(t, err)

	newGoldie(t).Assert(t, "single_question_snapshot", data)
}
