package cli

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/roach88/formentry/internal/harness"
)

// ScenarioOptions holds flags for the scenario command.
type ScenarioOptions struct {
	*RootOptions
	Parallel int
	Update   bool
	Filter   string
}

// NewScenarioCommand creates the scenario command.
func NewScenarioCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScenarioOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "scenario <path>...",
		Short: "Run scripted form session scenarios",
		Long: `Run YAML scenarios against the form engine and check their assertions.

Each path is a scenario file or a directory searched recursively for
*.yaml and *.yml files. When a scenario has a golden file
(golden/<name>.golden next to it), its message trace must match it.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (path not found, no scenarios, etc.)

Examples:
  formentry scenario ./scenarios
  formentry scenario ./scenarios --filter "repeat_*"
  formentry scenario ./scenarios --update`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(cmd.Context(), opts, args, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Parallel, "parallel", "p", runtime.NumCPU(), "number of scenarios to run at once")
	cmd.Flags().BoolVar(&opts.Update, "update", false, "rewrite golden files from the current traces")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "glob matched against scenario file names")

	return cmd
}

func runScenario(ctx context.Context, opts *ScenarioOptions, paths []string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	files, err := collectScenarioFiles(paths, opts.Filter)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return NewExitError(ExitCommandError, "no scenario files found")
	}
	formatter.VerboseLog("Found %d scenario file(s)", len(files))

	result, err := harness.RunFiles(ctx, files, harness.SuiteOptions{
		Parallel: opts.Parallel,
		Update:   opts.Update,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "scenario run interrupted", err)
	}

	if opts.Format == "json" {
		return outputScenarioJSON(formatter, result)
	}
	return outputScenarioText(formatter, result)
}

// collectScenarioFiles expands directories into the scenario files they hold.
func collectScenarioFiles(paths []string, filter string) ([]string, error) {
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if os.IsNotExist(err) {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("path not found: %s", path))
		}
		if err != nil {
			return nil, WrapExitError(ExitCommandError, fmt.Sprintf("error accessing %s", path), err)
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}
		found, err := harness.FindScenarioFiles(path, filter)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, fmt.Sprintf("failed to scan %s", path), err)
		}
		files = append(files, found...)
	}
	return files, nil
}

func outputScenarioJSON(formatter *OutputFormatter, result *harness.SuiteResult) error {
	response := CLIResponse{Status: "ok", Data: result}
	if result.Failed > 0 {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_SCENARIO",
			Message: fmt.Sprintf("%d of %d scenario(s) failed", result.Failed, result.Total),
		}
	}
	if err := formatter.JSON(response); err != nil {
		return err
	}
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

func outputScenarioText(formatter *OutputFormatter, result *harness.SuiteResult) error {
	w := formatter.Writer

	for _, s := range result.Scenarios {
		if s.Pass {
			fmt.Fprintf(w, "✓ %s", s.Name)
			if s.Golden == "updated" {
				fmt.Fprint(w, " (golden updated)")
			}
			fmt.Fprintln(w)
			formatter.VerboseLog("  %s", s.File)
			continue
		}
		fmt.Fprintf(w, "✗ %s (%s)\n", s.Name, s.File)
		for _, e := range s.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}
