package tree

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/formentry/internal/render"
	"github.com/roach88/formentry/internal/wire"
)

// visitPayload is a small form: two rows of questions and a repeat with two
// instances.
const visitPayload = `{
  "title": "Visit",
  "session_id": "sess-1",
  "tree": [
    {"type": "question", "ix": "0", "caption": "Name", "datatype": "str", "required": 1, "answer": null},
    {"type": "question", "ix": "1", "caption": "Age", "datatype": "int", "answer": null, "style": {"raw": "2-per-row"}},
    {"type": "question", "ix": "2", "caption": "Sex", "datatype": "select", "choices": ["m", "f"], "answer": null, "style": {"raw": "2-per-row"}},
    {"type": "repeat", "ix": "3", "caption": "Child", "children": [
      {"type": "sub-group", "ix": "3:0", "uuid": "u0", "caption": "Child", "children": [
        {"type": "question", "ix": "3:0,0", "caption": "Child name", "datatype": "str", "answer": "ann"}
      ]},
      {"type": "sub-group", "ix": "3:1", "uuid": "u1", "caption": "Child", "children": [
        {"type": "question", "ix": "3:1,0", "caption": "Child name", "datatype": "str", "answer": "bob"}
      ]}
    ]}
  ]
}`

func decode(t *testing.T, payload string) *wire.Response {
	t.Helper()
	resp, err := wire.DecodeResponse([]byte(payload))
	require.NoError(t, err)
	return resp
}

// newForm builds a form with the identity captioner and no protocol errors.
func newForm(t *testing.T, payload string) *Form {
	t.Helper()
	f, errs := New(decode(t, payload), WithCaptioner(render.Identity{}))
	require.Empty(t, errs)
	return f
}

func mustFind(t *testing.T, f *Form, index string) *Question {
	t.Helper()
	q := FindByIndex(f, index)
	require.NotNil(t, q, "question %s", index)
	return q
}

func strp(s string) *string { return &s }

func question(index, datatype string, answer any) wire.Node {
	return wire.Node{Type: wire.TypeQuestion, Ix: index, Datatype: datatype, Answer: answer}
}

// responseOf wraps nodes as a reconcile response.
func responseOf(nodes ...wire.Node) *wire.Response {
	return &wire.Response{Children: nodes}
}

// oqps builds a one-question-per-screen form over nodes.
func oqps(t *testing.T, nodes ...wire.Node) *Form {
	t.Helper()
	resp := responseOf(nodes...)
	resp.DisplayOptions = &wire.DisplayOptions{OneQuestionPerScreen: true}
	f, errs := New(resp, WithCaptioner(render.Identity{}))
	require.Empty(t, errs)
	return f
}

// visitNodes returns a fresh copy of the visit payload's tree.
func visitNodes(t *testing.T) []wire.Node {
	t.Helper()
	return decode(t, visitPayload).Children
}

// withAnswer sets the answer of the snapshot node at index.
func withAnswer(nodes []wire.Node, index string, answer any) []wire.Node {
	for i := range nodes {
		if nodes[i].Ix == index {
			nodes[i].Answer = answer
		}
		withAnswer(nodes[i].Children, index, answer)
	}
	return nodes
}
