package tree

import (
	"errors"
	"fmt"
)

// ProtocolError describes a malformed node in a server snapshot.
//
// Protocol errors never abort a reconcile: the offending node is skipped or
// rebuilt, the error is logged, and the pass continues with its siblings.
// Reconcile returns the collected errors so callers and tests can inspect them.
type ProtocolError struct {
	// Code identifies the error category.
	Code ProtocolErrorCode

	// Ix is the index of the offending snapshot node.
	Ix string

	// Type is the node type the snapshot declared.
	Type string

	// Message is a human-readable description.
	Message string
}

// ProtocolErrorCode categorizes protocol errors.
type ProtocolErrorCode string

const (
	// ErrCodeUnknownNodeType indicates a snapshot node with an unrecognized type.
	ErrCodeUnknownNodeType ProtocolErrorCode = "UNKNOWN_NODE_TYPE"

	// ErrCodeDuplicateKey indicates two sibling snapshots with the same identity key.
	ErrCodeDuplicateKey ProtocolErrorCode = "DUPLICATE_KEY"

	// ErrCodeKindMismatch indicates a known key whose node kind changed.
	ErrCodeKindMismatch ProtocolErrorCode = "KIND_MISMATCH"
)

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	if e.Ix != "" {
		return fmt.Sprintf("%s: %s (ix=%s, type=%q)", e.Code, e.Message, e.Ix, e.Type)
	}
	return fmt.Sprintf("%s: %s (type=%q)", e.Code, e.Message, e.Type)
}

// IsProtocolError returns true if err is or wraps a *ProtocolError.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// HasCode returns true if err is a *ProtocolError with the given code.
func HasCode(err error, code ProtocolErrorCode) bool {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe.Code == code
	}
	return false
}
