package engine

import (
	"errors"
	"fmt"
)

// ErrStopped is returned by user actions enqueued after Stop.
var ErrStopped = errors.New("engine stopped")

// RuntimeError represents a user action or server message the engine could
// not apply. Runtime errors are logged by the Run loop and never stop it.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Ix is the absolute index the action or message referred to.
	Ix string

	// Topic is the bus topic of the offending message, if any.
	Topic string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeNotFound indicates no node of the expected kind at an index.
	ErrCodeNotFound RuntimeErrorCode = "NOT_FOUND"

	// ErrCodeInputBlocked indicates a user edit while the session holds
	// the block-all lock.
	ErrCodeInputBlocked RuntimeErrorCode = "INPUT_BLOCKED"

	// ErrCodeNavigationDisabled indicates next/prev while the button is off.
	ErrCodeNavigationDisabled RuntimeErrorCode = "NAVIGATION_DISABLED"

	// ErrCodeBadPayload indicates an inbound payload of the wrong shape.
	ErrCodeBadPayload RuntimeErrorCode = "BAD_PAYLOAD"

	// ErrCodeUnknownTopic indicates an inbound message on an unknown topic.
	ErrCodeUnknownTopic RuntimeErrorCode = "UNKNOWN_TOPIC"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	switch {
	case e.Ix != "" && e.Topic != "":
		return fmt.Sprintf("%s: %s (ix=%s, topic=%s)", e.Code, e.Message, e.Ix, e.Topic)
	case e.Ix != "":
		return fmt.Sprintf("%s: %s (ix=%s)", e.Code, e.Message, e.Ix)
	case e.Topic != "":
		return fmt.Sprintf("%s: %s (topic=%s)", e.Code, e.Message, e.Topic)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsNotFound returns true if err is a NOT_FOUND runtime error.
// Uses errors.As to handle wrapped errors.
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeNotFound)
}

// IsBlocked returns true if err reports a user edit under the input lock.
func IsBlocked(err error) bool {
	return hasCode(err, ErrCodeInputBlocked)
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

func notFound(kind, ix string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("no %s at index", kind),
		Ix:      ix,
	}
}

func badPayload(topic string, payload any) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeBadPayload,
		Message: fmt.Sprintf("unexpected payload %T", payload),
		Topic:   topic,
	}
}
