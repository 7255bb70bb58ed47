package harness

import "github.com/roach88/formentry/internal/tree"

// TraceEvent is one journaled bus message.
type TraceEvent struct {
	Seq       int64  `json:"seq"`
	Direction string `json:"direction"` // "out" or "in"
	Topic     string `json:"topic"`
	RequestID string `json:"request_id,omitempty"`
	Payload   any    `json:"payload"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all assertions hold.
	Pass bool `json:"pass"`

	// Trace contains every message in journal order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion failures.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Form is the final form.
	Form *tree.Form `json:"-"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds an assertion failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// On returns the events on topic, in order.
func (r *Result) On(topic string) []TraceEvent {
	var out []TraceEvent
	for _, e := range r.Trace {
		if e.Topic == topic {
			out = append(out, e)
		}
	}
	return out
}
