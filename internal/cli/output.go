package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/goccy/go-json"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // command ran and everything checked out
	ExitFailure      = 1 // invalid payloads, failing scenarios, divergent replays
	ExitCommandError = 2 // unreadable payloads, missing journals, bad flags
)

// ExitError carries the process exit code of a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error // optional cause
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode maps a command error to the process exit code: 0 for nil,
// the carried code for an ExitError anywhere in the chain, 1 otherwise.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter writes command results as text or as a JSON envelope.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // diagnostics; falls back to Writer
	Verbose   bool
}

// CLIResponse is the JSON envelope of every command.
type CLIResponse struct {
	Status    string    `json:"status"` // "ok" or "error"
	Data      any       `json:"data,omitempty"`
	Error     *CLIError `json:"error,omitempty"`
	SessionID string    `json:"session_id,omitempty"` // set by journal commands
}

// CLIError is the error part of a CLIResponse.
type CLIError struct {
	Code    string `json:"code"` // one of the ErrCode constants
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{Status: "ok", Data: data})
	}

	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// LoadFailure reports a payload that could not be loaded and returns the
// command error for it. A LoadError keeps its code; anything else is E001.
func (f *OutputFormatter) LoadFailure(err error) error {
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		_ = f.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load payload", err)
	}
	var details any
	if loadErr.Err != nil {
		details = loadErr.Err.Error()
	}
	_ = f.Error(loadErr.Code, loadErr.Message, details)
	return WrapExitError(ExitCommandError, loadErr.Message, loadErr.Err)
}

// Session writes a successful JSON response tagged with a journal session.
func (f *OutputFormatter) Session(sessionID string, data any) error {
	return f.JSON(CLIResponse{Status: "ok", Data: data, SessionID: sessionID})
}

// JSON writes resp regardless of the configured format.
func (f *OutputFormatter) JSON(resp CLIResponse) error {
	return f.encode(resp)
}

func (f *OutputFormatter) encode(resp CLIResponse) error {
	encoder := json.NewEncoder(f.Writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(resp)
}

// VerboseLog writes a diagnostic line when verbose mode is on. It never
// writes to Writer when ErrWriter is set, so JSON output stays parseable.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns ErrWriter, or Writer when none is set.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
