package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/formentry/internal/render"
	"github.com/roach88/formentry/internal/schema"
	"github.com/roach88/formentry/internal/tree"
	"github.com/roach88/formentry/internal/wire"
)

// ValidationError is one problem found in a payload.
type ValidationError struct {
	File    string `json:"file"`
	Code    string `json:"code"`
	Path    string `json:"path,omitempty"`
	Line    int    `json:"line,omitempty"`
	Message string `json:"message"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Files  int               `json:"files"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <payload.json>...",
		Short: "Validate server payloads against the form schema",
		Long: `Validate form session payloads against the form schema, then build each
one as a form tree to catch structural problems such as duplicate sibling
keys or unknown node types.

Use "-" to read a payload from stdin.

Exit codes:
  0 - All payloads valid
  1 - One or more payloads failed validation
  2 - Command error (file not found, etc.)`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	s, err := schema.New()
	if err != nil {
		return outputValidateError(formatter, ErrCodeGeneric, err.Error(), nil)
	}

	var validationErrors []ValidationError
	for _, path := range paths {
		data, err := ReadPayload(path, cmd.InOrStdin())
		if err != nil {
			var loadErr *LoadError
			if errors.As(err, &loadErr) {
				return outputValidateError(formatter, loadErr.Code, loadErr.Message, nil)
			}
			return outputValidateError(formatter, ErrCodeGeneric, err.Error(), nil)
		}

		formatter.VerboseLog("Validating %s (%d bytes)", path, len(data))
		validationErrors = append(validationErrors, validatePayload(s, path, data)...)
	}

	if len(validationErrors) > 0 {
		return outputValidationErrors(formatter, len(paths), validationErrors)
	}
	return outputValidateSuccess(formatter, len(paths))
}

// validatePayload runs the schema and, when that passes, a tree build.
func validatePayload(s *schema.Schema, path string, data []byte) []ValidationError {
	var errs []ValidationError
	for _, v := range s.Validate(path, data) {
		line := 0
		if v.Pos.IsValid() {
			line = v.Pos.Line()
		}
		errs = append(errs, ValidationError{
			File:    path,
			Code:    ErrCodeSchema,
			Path:    v.Path,
			Line:    line,
			Message: v.Message,
		})
	}
	if len(errs) > 0 {
		return errs
	}

	resp, err := wire.DecodeResponse(data)
	if err != nil {
		return []ValidationError{{File: path, Code: ErrCodeDecodeFailed, Message: err.Error()}}
	}
	_, protoErrs := tree.New(resp, tree.WithCaptioner(render.Identity{}))
	for _, pe := range protoErrs {
		errs = append(errs, ValidationError{
			File:    path,
			Code:    string(pe.Code),
			Path:    pe.Ix,
			Message: pe.Message,
		})
	}
	return errs
}

// ValidatePayloadFile validates a single payload file.
// This is a helper function for external callers.
func ValidatePayloadFile(path string) ([]ValidationError, error) {
	s, err := schema.New()
	if err != nil {
		return nil, err
	}
	data, err := ReadPayload(path, os.Stdin)
	if err != nil {
		return nil, err
	}
	return validatePayload(s, path, data), nil
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, files int) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Files: files})
	}

	fmt.Fprintf(formatter.Writer, "✓ %d payload(s) valid\n", files)
	return nil
}

// outputValidateError outputs a single command-level error.
func outputValidateError(formatter *OutputFormatter, code, message string, details any) error {
	_ = formatter.Error(code, message, details)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, files int, errs []ValidationError) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Files: files, Errors: errs},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}
		if err := formatter.JSON(response); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		loc := err.File
		if err.Line > 0 {
			loc = fmt.Sprintf("%s:%d", loc, err.Line)
		}
		if err.Path != "" {
			loc += " " + err.Path
		}
		fmt.Fprintln(formatter.Writer, loc)
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", err.Code, err.Message)
	}

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
