package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/formentry/internal/tree"
	"github.com/roach88/formentry/internal/wire"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %-3s %s %v\n", event.Seq, event.Direction, event.Topic, event.Payload)
		}
	}

	return buf.String()
}

// assertTraceContains checks if the trace contains a message on the topic
// whose payload matches the expected fields (subset match).
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	topic := resolveTopic(assertion.Topic)
	for _, event := range trace {
		if event.Topic == topic && matchPayload(event.Payload, assertion.Payload) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("%s with payload %v", topic, assertion.Payload),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the first message on each topic appears in
// the listed order. Other messages may appear in between.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	positions := make(map[string]int)
	topics := make([]string, len(assertion.Topics))
	for i, t := range assertion.Topics {
		topics[i] = resolveTopic(t)
	}

	for i, event := range trace {
		if slices.Contains(topics, event.Topic) && positions[event.Topic] == 0 {
			positions[event.Topic] = i + 1 // 1-indexed for readability
		}
	}

	for _, topic := range topics {
		if positions[topic] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all topics present: %v", topics),
				Actual:   fmt.Sprintf("missing topic: %s", topic),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(topics); i++ {
		prev, curr := topics[i-1], topics[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("topics in order: %v", topics),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}

	return nil
}

// assertTraceCount checks the number of messages on a topic.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	topic := resolveTopic(assertion.Topic)
	count := 0
	for _, event := range trace {
		if event.Topic == topic {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d messages on %s", assertion.Count, topic),
			Actual:   fmt.Sprintf("%d messages", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState checks fields of the question at Ix, or of the form when
// Ix is empty. Only fields in Expect are checked.
func assertFinalState(form *tree.Form, assertion Assertion) error {
	if form == nil {
		return fmt.Errorf("final_state: no form")
	}

	var (
		fields map[string]any
		where  = "form"
	)
	if assertion.Ix != "" {
		where = "question " + assertion.Ix
		fields = questionFields(tree.FindByIndex(form, assertion.Ix))
	} else {
		fields = formFields(form)
	}

	keys := make([]string, 0, len(assertion.Expect))
	for k := range assertion.Expect {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, key := range keys {
		expected := assertion.Expect[key]
		actual, ok := fields[key]
		if !ok {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s field %q to exist", where, key),
				Actual:   fmt.Sprintf("unknown field; have %v", fieldNames(fields)),
			}
		}
		if !valuesEqual(actual, expected) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s %s = %v (type %T)", where, key, expected, expected),
				Actual:   fmt.Sprintf("%s %s = %v (type %T)", where, key, actual, actual),
			}
		}
	}
	return nil
}

func questionFields(q *tree.Question) map[string]any {
	if q == nil {
		return map[string]any{"exists": false}
	}
	return map[string]any{
		"exists":       true,
		"answer":       q.Answer(),
		"dirty":        q.Dirty(),
		"server_error": q.ServerError(),
		"error":        q.Error(),
		"required":     q.Required(),
		"caption":      q.Caption(),
		"valid":        q.IsValid(),
		"has_error":    q.HasError(),
		"choices":      q.Choices(),
	}
}

func formFields(f *tree.Form) map[string]any {
	jump := ""
	if q := f.CurrentJumpPoint(); q != nil {
		jump = tree.AbsoluteIndex(q)
	}
	errored := f.ErroredLabels()
	if errored == nil {
		errored = []string{}
	}
	return map[string]any{
		"title":                   f.Title(),
		"current_index":           f.CurrentIndex(),
		"at_first_index":          f.AtFirstIndex(),
		"at_last_index":           f.AtLastIndex(),
		"submitting":              f.IsSubmitting(),
		"submit_attempted":        f.HasSubmitAttempted(),
		"enable_next":             f.EnableNext(),
		"enable_previous":         f.EnablePrevious(),
		"enable_force_next":       f.EnableForceNext(),
		"enable_submit":           f.EnableSubmit(),
		"show_required_notice":    f.ShowRequiredNotice(),
		"show_submit":             f.ShowSubmit(),
		"inputs_disabled":         f.InputsDisabled(),
		"block_submit":            f.BlockSubmit(),
		"one_question_per_screen": f.OneQuestionPerScreen(),
		"jump_point":              jump,
		"errored":                 errored,
	}
}

func fieldNames(fields map[string]any) []string {
	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}

// matchPayload checks if actual contains all expected fields (subset match).
// Extra keys in actual are ignored.
func matchPayload(actual any, expected map[string]any) bool {
	if len(expected) == 0 {
		return true
	}

	actualMap, ok := actual.(map[string]any)
	if !ok {
		return false
	}

	for key, expectedVal := range expected {
		actualVal, exists := actualMap[key]
		if !exists {
			return false
		}
		if !valuesEqual(actualVal, expectedVal) {
			return false
		}
	}
	return true
}

// valuesEqual compares a decoded value with a YAML-authored one. Nested
// objects match as subsets; everything else compares like answers, so
// YAML's 3 equals JSON's 3.0.
func valuesEqual(actual, expected any) bool {
	if exp, ok := expected.(map[string]any); ok {
		return matchPayload(actual, exp)
	}
	return wire.AnswersEqual(actual, expected)
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState:
			err = assertFinalState(result.Form, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
