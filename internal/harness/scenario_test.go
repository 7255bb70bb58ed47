package harness

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/formentry/internal/bus"
)

// writeScenario writes YAML content to a temp file and returns its path.
func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validScenario = `
name: valid
description: "A valid scenario"
initial:
  tree:
    - { type: question, ix: "0", caption: Name, datatype: str }
steps:
  - answer: { ix: "0", value: ann }
  - wait: 250ms
  - block: 1
assertions:
  - type: trace_contains
    topic: answer
    payload: { ix: "0" }
`

func TestLoadScenario_ValidFile(t *testing.T) {
	scenario, err := LoadScenario(writeScenario(t, validScenario))
	require.NoError(t, err)

	assert.Equal(t, "valid", scenario.Name)
	require.Len(t, scenario.Steps, 3)
	assert.Equal(t, "0", scenario.Steps[0].Answer.Ix)
	assert.Equal(t, "ann", scenario.Steps[0].Answer.Value)
	assert.Equal(t, 250*time.Millisecond, scenario.Steps[1].Wait)
	require.NotNil(t, scenario.Steps[2].Block)
	assert.Equal(t, 1, *scenario.Steps[2].Block)
	require.Len(t, scenario.Assertions, 1)
	assert.Equal(t, AssertTraceContains, scenario.Assertions[0].Type)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_MalformedYAML(t *testing.T) {
	_, err := LoadScenario(writeScenario(t, "name: [unclosed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_UnknownFieldsRejected(t *testing.T) {
	content := validScenario + "\nassertion: []\n"
	_, err := LoadScenario(writeScenario(t, content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_Invalid(t *testing.T) {
	header := "name: x\ndescription: d\ninitial: { tree: [] }\n"
	okAssertions := "assertions:\n  - { type: trace_count, topic: dirty, count: 0 }\n"

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "missing name",
			content: "description: d\ninitial: {}\nsteps: [{submit: true}]\n" + okAssertions,
			want:    "name is required",
		},
		{
			name:    "missing description",
			content: "name: x\ninitial: {}\nsteps: [{submit: true}]\n" + okAssertions,
			want:    "description is required",
		},
		{
			name:    "no payload",
			content: "name: x\ndescription: d\nsteps: [{submit: true}]\n" + okAssertions,
			want:    "payload or initial is required",
		},
		{
			name:    "payload and initial",
			content: header + "payload: p.json\nsteps: [{submit: true}]\n" + okAssertions,
			want:    "mutually exclusive",
		},
		{
			name:    "missing payload file",
			content: "name: x\ndescription: d\npayload: nope.json\nsteps: [{submit: true}]\n" + okAssertions,
			want:    "payload file not found",
		},
		{
			name:    "no steps",
			content: header + "steps: []\n" + okAssertions,
			want:    "steps list is required",
		},
		{
			name:    "no assertions",
			content: header + "steps: [{submit: true}]\nassertions: []\n",
			want:    "assertions list is required",
		},
		{
			name:    "empty step",
			content: header + "steps: [{}]\n" + okAssertions,
			want:    "steps[0]: no action",
		},
		{
			name:    "two actions in one step",
			content: header + "steps: [{submit: true, next: true}]\n" + okAssertions,
			want:    "2 actions in one step",
		},
		{
			name:    "answer without ix",
			content: header + "steps: [{answer: {value: 1}}]\n" + okAssertions,
			want:    "ix is required",
		},
		{
			name:    "block out of range",
			content: header + "steps: [{block: 3}]\n" + okAssertions,
			want:    "block level",
		},
		{
			name:    "reconcile without response",
			content: header + "steps: [{reconcile: {request: last}}]\n" + okAssertions,
			want:    "response is required",
		},
		{
			name:    "submit result without status",
			content: header + "steps: [{submit_result: {}}]\n" + okAssertions,
			want:    "status is required",
		},
		{
			name:    "answer failed without address",
			content: header + "steps: [{answer_failed: {}}]\n" + okAssertions,
			want:    "request or ix is required",
		},
		{
			name:    "unknown assertion type",
			content: header + "steps: [{submit: true}]\nassertions: [{type: bogus}]\n",
			want:    `unknown assertion type "bogus"`,
		},
		{
			name:    "trace_contains without topic",
			content: header + "steps: [{submit: true}]\nassertions: [{type: trace_contains}]\n",
			want:    "topic is required",
		},
		{
			name:    "trace_order without topics",
			content: header + "steps: [{submit: true}]\nassertions: [{type: trace_order}]\n",
			want:    "topics list is required",
		},
		{
			name:    "negative count",
			content: header + "steps: [{submit: true}]\nassertions: [{type: trace_count, topic: dirty, count: -1}]\n",
			want:    "count must be non-negative",
		},
		{
			name:    "final_state without expect",
			content: header + "steps: [{submit: true}]\nassertions: [{type: final_state, ix: \"0\"}]\n",
			want:    "expect is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_TraceCountZeroAllowed(t *testing.T) {
	content := "name: x\ndescription: d\ninitial: { tree: [] }\nsteps: [{submit: true}]\n" +
		"assertions:\n  - { type: trace_count, topic: dirty, count: 0 }\n"
	_, err := LoadScenario(writeScenario(t, content))
	assert.NoError(t, err)
}

func TestLoadScenarioWithBasePath(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(base, "form.json"), []byte(`{"tree": []}`), 0o644))

	content := "name: x\ndescription: d\npayload: form.json\nsteps: [{submit: true}]\n" +
		"assertions:\n  - { type: trace_count, topic: submit-all, count: 1 }\n"
	scenario, err := LoadScenarioWithBasePath(writeScenario(t, content), base)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "form.json"), scenario.Payload)
}

func TestInitialResponse(t *testing.T) {
	t.Run("inline payload defaults the session id", func(t *testing.T) {
		scenario, err := LoadScenario(writeScenario(t, validScenario))
		require.NoError(t, err)

		resp, err := scenario.InitialResponse()
		require.NoError(t, err)
		assert.Equal(t, "valid", resp.SessionID)
		require.Len(t, resp.Children, 1)
		assert.Nil(t, resp.Tree)
	})

	t.Run("display option override", func(t *testing.T) {
		scenario, err := LoadScenario(writeScenario(t, validScenario))
		require.NoError(t, err)
		on := true
		scenario.OneQuestionPerScreen = &on

		resp, err := scenario.InitialResponse()
		require.NoError(t, err)
		require.NotNil(t, resp.DisplayOptions)
		assert.True(t, resp.DisplayOptions.OneQuestionPerScreen)
	})

	t.Run("payload file", func(t *testing.T) {
		scenario, err := LoadScenario("testdata/throttle_coalesce.yaml")
		require.NoError(t, err)

		resp, err := scenario.InitialResponse()
		require.NoError(t, err)
		assert.Equal(t, "Visit", resp.Title)
		assert.Equal(t, int64(1), resp.SeqID)
		assert.Len(t, resp.Children, 4)
	})
}

func TestResolveTopic(t *testing.T) {
	tests := map[string]string{
		"answer":                bus.TopicAnswer,
		"dirty":                 bus.TopicDirty,
		"submit-all":            bus.TopicSubmitAll,
		"reconcile":             bus.TopicReconcile,
		"navigated":             bus.TopicNavigated,
		"answer-failed":         bus.TopicAnswerFailed,
		bus.TopicBlock:          bus.TopicBlock,
		"formplayer.next-index": bus.TopicNextIndex,
	}
	for in, want := range tests {
		assert.Equal(t, want, resolveTopic(in), in)
	}
}

func TestAssertionConstants(t *testing.T) {
	assert.Equal(t, "trace_contains", AssertTraceContains)
	assert.Equal(t, "trace_order", AssertTraceOrder)
	assert.Equal(t, "trace_count", AssertTraceCount)
	assert.Equal(t, "final_state", AssertFinalState)
}

func TestLoadExampleScenarios(t *testing.T) {
	files, err := FindScenarioFiles("testdata", "")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, file := range files {
		t.Run(filepath.Base(file), func(t *testing.T) {
			_, err := LoadScenario(file)
			assert.NoError(t, err)
		})
	}
}
