package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/goccy/go-json"

	"github.com/roach88/formentry/internal/bus"
	"github.com/roach88/formentry/internal/engine"
	"github.com/roach88/formentry/internal/journal"
	"github.com/roach88/formentry/internal/render"
	"github.com/roach88/formentry/internal/testutil"
	"github.com/roach88/formentry/internal/wire"
)

// Harness is the scenario execution engine.
// It plays the server's side of the bus with a manual clock and sequential
// request ids.
type Harness struct {
	ctx     context.Context
	bus     *bus.Bus
	out     *bus.Recorder
	engine  *engine.Engine
	journal *journal.Journal
	clock   *testutil.ManualClock
	logger  *slog.Logger
}

// Run executes a scenario and returns the result.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory journal for isolation.
//
// Execution flow:
//  1. Decode the initial payload and start an engine on a private bus
//  2. Execute steps, draining the engine after each one
//  3. Read the journal back as the trace
//  4. Evaluate assertions
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	initial, err := scenario.InitialResponse()
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	j, err := journal.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory journal: %w", err)
	}
	defer j.Close()

	b := bus.New()
	out := bus.Record(b, "")
	defer out.Close()
	clock := testutil.NewManualClock(testutil.Epoch)

	eng, err := engine.New(b, initial,
		engine.WithClock(clock),
		engine.WithIDGenerator(testutil.NewSequentialIDs("req")),
		engine.WithJournal(j),
		engine.WithCaptioner(render.Identity{}),
	)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}
	defer eng.Stop()

	h := &Harness{
		ctx:     ctx,
		bus:     b,
		out:     out,
		engine:  eng,
		journal: j,
		clock:   clock,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for i, step := range scenario.Steps {
		if err := h.execute(step); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		if err := eng.Drain(ctx); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		h.logger.Info("step completed", "step", i)
	}

	result := NewResult()
	result.Form = eng.Form()
	result.Trace, err = h.trace(eng.SessionID())
	if err != nil {
		return nil, err
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// execute runs one step. User actions only enqueue; the caller drains.
func (h *Harness) execute(s Step) error {
	e := h.engine
	switch {
	case s.Answer != nil:
		return e.Answer(s.Answer.Ix, s.Answer.Value)
	case s.Clear != "":
		return e.ClearAnswer(s.Clear)
	case s.NewRepeat != "":
		return e.NewRepeat(s.NewRepeat)
	case s.DeleteRepeat != "":
		return e.DeleteRepeat(s.DeleteRepeat)
	case s.Next:
		return e.Next()
	case s.Prev:
		return e.Prev()
	case s.Submit:
		return e.Submit()

	case s.Wait != 0:
		// Drain first so edits made by earlier steps have their windows open.
		if err := e.Drain(h.ctx); err != nil {
			return err
		}
		h.clock.Advance(s.Wait)
		return nil

	case s.Reconcile != nil:
		return h.reconcile(s.Reconcile)
	case s.Block != nil:
		h.bus.Send(bus.TopicBlock, wire.Block{Level: *s.Block})
		return nil
	case s.SubmitResult != nil:
		res := wire.SubmitResult{Status: s.SubmitResult.Status}
		if len(s.SubmitResult.Errors) > 0 {
			res.Errors = make(map[string]*wire.ValidationError, len(s.SubmitResult.Errors))
			for ix, ve := range s.SubmitResult.Errors {
				res.Errors[ix] = &wire.ValidationError{Type: ve.Type, Reason: ve.Reason}
			}
		}
		h.bus.Send(bus.TopicSubmitResult, res)
		return nil
	case s.AnswerFailed != nil:
		rid, err := h.requestID(s.AnswerFailed.Request)
		if err != nil {
			return err
		}
		h.bus.Send(bus.TopicAnswerFailed, wire.AnswerFailed{RequestID: rid, Target: s.AnswerFailed.Ix})
		return nil
	case s.Navigated != nil:
		return h.navigated(s.Navigated)
	}
	return fmt.Errorf("empty step")
}

func (h *Harness) reconcile(s *ReconcileStep) error {
	data, err := json.Marshal(s.Response)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	resp, err := wire.DecodeResponse(data)
	if err != nil {
		return err
	}
	rid, err := h.requestID(s.Request)
	if err != nil {
		return err
	}
	h.bus.Send(bus.TopicReconcile, wire.Reconcile{RequestID: rid, Target: s.Ix, Response: resp})
	return nil
}

// navigated answers the most recent navigation request through its callback.
func (h *Harness) navigated(s *NavigatedStep) error {
	msgs := h.out.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		req, ok := msgs[i].Payload.(wire.NavigationRequest)
		if !ok || req.Callback == nil {
			continue
		}
		req.Callback(wire.NavigationResult{
			CurrentIndex:   s.CurrentIndex,
			IsAtFirstIndex: s.AtFirst,
			IsAtLastIndex:  s.AtLast,
		})
		return nil
	}
	return fmt.Errorf("navigated: no navigation request was sent")
}

// requestID resolves "last" to the most recent outbound request id.
func (h *Harness) requestID(ref string) (string, error) {
	if ref != "last" {
		return ref, nil
	}
	msgs := h.out.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if rid := requestIDOf(msgs[i].Payload); rid != "" {
			return rid, nil
		}
	}
	return "", fmt.Errorf("request \"last\": no request was sent")
}

func requestIDOf(payload any) string {
	switch p := payload.(type) {
	case wire.AnswerRequest:
		return p.RequestID
	case wire.RepeatRequest:
		return p.RequestID
	case wire.DeleteRepeatRequest:
		return p.RequestID
	case wire.NavigationRequest:
		return p.RequestID
	case wire.SubmitRequest:
		return p.RequestID
	}
	return ""
}

// trace reads the session's journal as trace events.
func (h *Harness) trace(sessionID string) ([]TraceEvent, error) {
	entries, err := h.journal.Read(h.ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("read trace: %w", err)
	}
	out := make([]TraceEvent, 0, len(entries))
	for _, entry := range entries {
		var payload any
		if err := entry.Decode(&payload); err != nil {
			return nil, err
		}
		out = append(out, TraceEvent{
			Seq:       entry.Seq,
			Direction: string(entry.Direction),
			Topic:     entry.Topic,
			RequestID: entry.RequestID,
			Payload:   payload,
		})
	}
	return out, nil
}

// Topics returns the distinct topics of a trace in first-seen order.
func Topics(trace []TraceEvent) []string {
	var out []string
	for _, e := range trace {
		if !slices.Contains(out, e.Topic) {
			out = append(out, e.Topic)
		}
	}
	return out
}
