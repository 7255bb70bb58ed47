package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "formentry", cmd.Use)
	assert.Contains(t, cmd.Long, "form tree")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"render", "validate", "scenario", "replay", "trace"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestRenderCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	renderCmd, _, err := cmd.Find([]string{"render"})
	require.NoError(t, err)

	for _, name := range []string{"one-question-per-screen", "outline", "width"} {
		assert.NotNil(t, renderCmd.Flags().Lookup(name), name)
	}
	assert.Equal(t, "80", renderCmd.Flags().Lookup("width").DefValue)
}

func TestScenarioCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	scenarioCmd, _, err := cmd.Find([]string{"scenario"})
	require.NoError(t, err)

	parallelFlag := scenarioCmd.Flags().Lookup("parallel")
	require.NotNil(t, parallelFlag)
	assert.Equal(t, "p", parallelFlag.Shorthand)

	updateFlag := scenarioCmd.Flags().Lookup("update")
	require.NotNil(t, updateFlag)
	assert.Equal(t, "false", updateFlag.DefValue)

	assert.NotNil(t, scenarioCmd.Flags().Lookup("filter"))
}

func TestReplayCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	replayCmd, _, err := cmd.Find([]string{"replay"})
	require.NoError(t, err)

	assert.NotNil(t, replayCmd.Flags().Lookup("db"))
	assert.NotNil(t, replayCmd.Flags().Lookup("session"))
}

func TestTraceCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	traceCmd, _, err := cmd.Find([]string{"trace"})
	require.NoError(t, err)

	assert.NotNil(t, traceCmd.Flags().Lookup("db"))
	assert.NotNil(t, traceCmd.Flags().Lookup("session"))
	assert.NotNil(t, traceCmd.Flags().Lookup("topic"))
}

func TestFormatValidation(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--format", "invalid", "render", "testdata/visit.json"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestRootCommand_RunsSubcommand(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"render", "--outline", "testdata/visit.json"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), `form "Visit"`)
}
