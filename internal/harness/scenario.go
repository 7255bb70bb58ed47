package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/roach88/formentry/internal/bus"
	"github.com/roach88/formentry/internal/wire"
)

// Scenario defines a scripted form session.
// Scenarios validate engine behavior by playing the server's side of the
// bus and asserting on the resulting trace and final form state.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Payload is a path to the initial server payload (JSON).
	// Relative paths resolve against the scenario file's directory.
	Payload string `yaml:"payload,omitempty"`

	// Initial is an inline initial payload, used when Payload is empty.
	Initial map[string]any `yaml:"initial,omitempty"`

	// OneQuestionPerScreen overrides the payload's display option.
	OneQuestionPerScreen *bool `yaml:"one_question_per_screen,omitempty"`

	// Steps run in order. Each step holds exactly one action.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and form state.
	// Supported types: trace_contains, trace_order, trace_count, final_state
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one user action, wait, or server message.
type Step struct {
	// User actions.
	Answer       *AnswerStep `yaml:"answer,omitempty"`
	Clear        string      `yaml:"clear,omitempty"`
	NewRepeat    string      `yaml:"new_repeat,omitempty"`
	DeleteRepeat string      `yaml:"delete_repeat,omitempty"`
	Next         bool        `yaml:"next,omitempty"`
	Prev         bool        `yaml:"prev,omitempty"`
	Submit       bool        `yaml:"submit,omitempty"`

	// Wait advances the wall clock, firing due throttle windows.
	Wait time.Duration `yaml:"wait,omitempty"`

	// Server messages.
	Reconcile    *ReconcileStep    `yaml:"reconcile,omitempty"`
	Block        *int              `yaml:"block,omitempty"`
	SubmitResult *SubmitResultStep `yaml:"submit_result,omitempty"`
	AnswerFailed *AnswerFailedStep `yaml:"answer_failed,omitempty"`
	Navigated    *NavigatedStep    `yaml:"navigated,omitempty"`
}

// AnswerStep records a user edit.
type AnswerStep struct {
	Ix    string `yaml:"ix"`
	Value any    `yaml:"value"`
}

// ReconcileStep delivers a server response.
type ReconcileStep struct {
	// Request is the request id answered, or "last" for the most recent
	// request sent. Empty for untargeted updates.
	Request string `yaml:"request,omitempty"`

	// Ix addresses the target question when there is no request id.
	Ix string `yaml:"ix,omitempty"`

	// Response is the server response object.
	Response map[string]any `yaml:"response"`
}

// ErrorStep is a per-question validation error.
type ErrorStep struct {
	Type   string `yaml:"type"`
	Reason string `yaml:"reason,omitempty"`
}

// SubmitResultStep delivers the outcome of a submission.
type SubmitResultStep struct {
	Status string               `yaml:"status"`
	Errors map[string]ErrorStep `yaml:"errors,omitempty"`
}

// AnswerFailedStep reports that a request got no response.
type AnswerFailedStep struct {
	Request string `yaml:"request,omitempty"`
	Ix      string `yaml:"ix,omitempty"`
}

// NavigatedStep answers the most recent navigation request.
type NavigatedStep struct {
	CurrentIndex string `yaml:"current_index"`
	AtFirst      bool   `yaml:"at_first,omitempty"`
	AtLast       bool   `yaml:"at_last,omitempty"`
}

// Assertion validates the trace or the final form state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": a message on Topic contains Payload
	// - "trace_order": the first messages on Topics appear in order
	// - "trace_count": exactly Count messages on Topic
	// - "final_state": Expect holds for the question at Ix (or the form)
	Type string `yaml:"type"`

	// Topic is the message topic (trace_contains, trace_count).
	// The "formplayer." or "session." prefix may be omitted.
	Topic string `yaml:"topic,omitempty"`

	// Payload holds the expected payload fields (trace_contains).
	// Subset match - only specified fields are validated.
	Payload map[string]any `yaml:"payload,omitempty"`

	// Topics is the expected topic order (trace_order).
	Topics []string `yaml:"topics,omitempty"`

	// Count is the expected number of messages (trace_count).
	Count int `yaml:"count,omitempty"`

	// Ix is the absolute index of the question checked by final_state.
	// Empty checks form-level state.
	Ix string `yaml:"ix,omitempty"`

	// Expect contains expected field values (final_state).
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the payload path relative to the provided base path.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict fields catch typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Payload != "" && !filepath.IsAbs(scenario.Payload) && basePath != "" {
		scenario.Payload = filepath.Join(basePath, scenario.Payload)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// InitialResponse decodes the scenario's initial payload.
func (s *Scenario) InitialResponse() (*wire.Response, error) {
	var data []byte
	if s.Payload != "" {
		raw, err := os.ReadFile(s.Payload)
		if err != nil {
			return nil, fmt.Errorf("read payload: %w", err)
		}
		data = raw
	} else {
		raw, err := json.Marshal(s.Initial)
		if err != nil {
			return nil, fmt.Errorf("encode initial payload: %w", err)
		}
		data = raw
	}

	resp, err := wire.DecodeResponse(data)
	if err != nil {
		return nil, err
	}
	if s.OneQuestionPerScreen != nil {
		resp.DisplayOptions = &wire.DisplayOptions{OneQuestionPerScreen: *s.OneQuestionPerScreen}
	}
	if resp.SessionID == "" {
		resp.SessionID = s.Name
	}
	return resp, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch {
	case s.Payload != "" && s.Initial != nil:
		return fmt.Errorf("payload and initial are mutually exclusive")
	case s.Payload == "" && s.Initial == nil:
		return fmt.Errorf("payload or initial is required")
	case s.Payload != "":
		if _, err := os.Stat(s.Payload); os.IsNotExist(err) {
			return fmt.Errorf("payload file not found: %s", s.Payload)
		}
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateStep checks that a step holds exactly one action.
func validateStep(index int, s *Step) error {
	set := 0
	count := func(ok bool) {
		if ok {
			set++
		}
	}
	count(s.Answer != nil)
	count(s.Clear != "")
	count(s.NewRepeat != "")
	count(s.DeleteRepeat != "")
	count(s.Next)
	count(s.Prev)
	count(s.Submit)
	count(s.Wait != 0)
	count(s.Reconcile != nil)
	count(s.Block != nil)
	count(s.SubmitResult != nil)
	count(s.AnswerFailed != nil)
	count(s.Navigated != nil)

	switch {
	case set == 0:
		return fmt.Errorf("steps[%d]: no action", index)
	case set > 1:
		return fmt.Errorf("steps[%d]: %d actions in one step", index, set)
	case s.Answer != nil && s.Answer.Ix == "":
		return fmt.Errorf("steps[%d].answer: ix is required", index)
	case s.Wait < 0:
		return fmt.Errorf("steps[%d]: wait must be positive", index)
	case s.Reconcile != nil && s.Reconcile.Response == nil:
		return fmt.Errorf("steps[%d].reconcile: response is required", index)
	case s.Block != nil && (*s.Block < 0 || *s.Block > 2):
		return fmt.Errorf("steps[%d]: block level must be 0, 1 or 2", index)
	case s.SubmitResult != nil && s.SubmitResult.Status == "":
		return fmt.Errorf("steps[%d].submit_result: status is required", index)
	case s.AnswerFailed != nil && s.AnswerFailed.Request == "" && s.AnswerFailed.Ix == "":
		return fmt.Errorf("steps[%d].answer_failed: request or ix is required", index)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Topic == "" {
			return fmt.Errorf("assertions[%d]: topic is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Topics) == 0 {
			return fmt.Errorf("assertions[%d]: topics list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Topic == "" {
			return fmt.Errorf("assertions[%d]: topic is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

// inboundNames are the topics the server sends.
var inboundNames = map[string]bool{
	"reconcile":     true,
	"block":         true,
	"submit-result": true,
	"answer-failed": true,
	"navigated":     true,
}

// resolveTopic adds the bus prefix to a short topic name.
func resolveTopic(name string) string {
	if strings.HasPrefix(name, bus.OutboundPrefix) || strings.HasPrefix(name, bus.InboundPrefix) {
		return name
	}
	if inboundNames[name] {
		return bus.InboundPrefix + name
	}
	return bus.OutboundPrefix + name
}
