package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/roach88/formentry/internal/wire"
)

// Error codes for CLI output.
const (
	ErrCodeGeneric      = "E001" // Generic/unknown error
	ErrCodeNotFound     = "E002" // Path not found
	ErrCodeReadFailed   = "E003" // File read error
	ErrCodeDecodeFailed = "E004" // Payload is not a server response
	ErrCodeSchema       = "E005" // Schema violation
	ErrCodeJournal      = "E006" // Journal open/read error
)

// LoadError represents an error that occurred while loading a payload.
type LoadError struct {
	Code    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Payload is a server payload read from disk.
type Payload struct {
	Path     string
	Raw      []byte
	Response *wire.Response
}

// ReadPayload reads raw payload bytes. "-" reads stdin.
func ReadPayload(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeReadFailed, Message: "failed to read stdin", Err: err}
		}
		return data, nil
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("payload not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeReadFailed, Message: fmt.Sprintf("error accessing payload: %s", path), Err: err}
	}
	if info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a file: %s", path)}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeReadFailed, Message: fmt.Sprintf("failed to read %s", path), Err: err}
	}
	return data, nil
}

// LoadPayload reads and decodes a server payload.
func LoadPayload(path string, stdin io.Reader) (*Payload, error) {
	data, err := ReadPayload(path, stdin)
	if err != nil {
		return nil, err
	}
	resp, err := wire.DecodeResponse(data)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeDecodeFailed, Message: fmt.Sprintf("invalid payload %s", path), Err: err}
	}
	return &Payload{Path: path, Raw: data, Response: resp}, nil
}
