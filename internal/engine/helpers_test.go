package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/formentry/internal/bus"
	"github.com/roach88/formentry/internal/render"
	"github.com/roach88/formentry/internal/testutil"
	"github.com/roach88/formentry/internal/throttle"
	"github.com/roach88/formentry/internal/tree"
	"github.com/roach88/formentry/internal/wire"
)

var _ IDGenerator = (*testutil.SequentialIDs)(nil)

// visitPayload has two plain questions, an info label and a repeat with one
// instance.
const visitPayload = `{
  "title": "Visit",
  "session_id": "sess-1",
  "seq_id": 1,
  "tree": [
    {"type": "question", "ix": "0", "caption": "Name", "datatype": "str", "answer": null},
    {"type": "question", "ix": "1", "caption": "Age", "datatype": "int", "answer": null},
    {"type": "repeat", "ix": "2", "caption": "Child", "children": [
      {"type": "sub-group", "ix": "2:0", "uuid": "u0", "caption": "Child", "children": [
        {"type": "question", "ix": "2:0,0", "caption": "Child name", "datatype": "str", "answer": "ann"}
      ]}
    ]},
    {"type": "question", "ix": "3", "caption": "Check the ages", "datatype": "info"}
  ]
}`

// screenPayload is a one-question-per-screen form with a required question.
const screenPayload = `{
  "title": "Screens",
  "session_id": "sess-2",
  "displayOptions": {"oneQuestionPerScreen": true},
  "tree": [
    {"type": "question", "ix": "0", "caption": "Name", "datatype": "str", "required": 1, "answer": null}
  ]
}`

// fixture is an engine on an in-process bus with a manual wall clock and
// sequential request ids. Tests drive it with Drain.
type fixture struct {
	t     *testing.T
	ctx   context.Context
	bus   *bus.Bus
	out   *bus.Recorder
	clock *testutil.ManualClock
	e     *Engine
}

func newFixture(t *testing.T, payload string, opts ...EngineOption) *fixture {
	t.Helper()
	b := bus.New()
	clock := testutil.NewManualClock(testutil.Epoch)
	out := bus.Record(b, "")
	t.Cleanup(out.Close)

	opts = append([]EngineOption{
		WithClock(clock),
		WithIDGenerator(testutil.NewSequentialIDs("req")),
		WithCaptioner(render.Identity{}),
	}, opts...)
	e, err := New(b, decode(t, payload), opts...)
	require.NoError(t, err)

	return &fixture{t: t, ctx: context.Background(), bus: b, out: out, clock: clock, e: e}
}

func decode(t *testing.T, payload string) *wire.Response {
	t.Helper()
	resp, err := wire.DecodeResponse([]byte(payload))
	require.NoError(t, err)
	return resp
}

// drain processes everything queued so far.
func (f *fixture) drain() {
	f.t.Helper()
	require.NoError(f.t, f.e.Drain(f.ctx))
}

// advance drains, moves the wall clock past a throttle window and drains
// the flushes that fired.
func (f *fixture) advance() {
	f.t.Helper()
	f.drain()
	f.clock.Advance(throttle.DefaultWindow)
	f.drain()
}

func (f *fixture) question(index string) *tree.Question {
	f.t.Helper()
	q := tree.FindByIndex(f.e.Form(), index)
	require.NotNil(f.t, q, "question %s", index)
	return q
}

// answers returns the answer requests published so far.
func (f *fixture) answers() []wire.AnswerRequest {
	var out []wire.AnswerRequest
	for _, p := range f.out.On(bus.TopicAnswer) {
		out = append(out, p.(wire.AnswerRequest))
	}
	return out
}

// lastAnswer returns the most recent answer request.
func (f *fixture) lastAnswer() wire.AnswerRequest {
	f.t.Helper()
	all := f.answers()
	require.NotEmpty(f.t, all, "no answer request published")
	return all[len(all)-1]
}

// reply delivers a reconcile for requestID carrying the visit snapshot with
// the given answers.
func (f *fixture) reply(requestID string, answers map[string]any) {
	f.t.Helper()
	f.send(bus.TopicReconcile, wire.Reconcile{
		RequestID: requestID,
		Response:  snapshot(f.t, answers),
	})
}

// send delivers an inbound message and drains.
func (f *fixture) send(topic string, payload any) {
	f.t.Helper()
	f.bus.Send(topic, payload)
	f.drain()
}

// snapshot returns the visit payload with answers applied by index.
func snapshot(t *testing.T, answers map[string]any) *wire.Response {
	t.Helper()
	resp := decode(t, visitPayload)
	resp.SeqID = 0
	setAnswers(resp.Children, answers)
	return resp
}

func setAnswers(nodes []wire.Node, answers map[string]any) {
	for i := range nodes {
		if v, ok := answers[nodes[i].Ix]; ok {
			nodes[i].Answer = v
		}
		setAnswers(nodes[i].Children, answers)
	}
}

func validationError(typ, reason string) *wire.Response {
	return &wire.Response{Status: wire.StatusValidationError, Type: typ, Reason: reason}
}
