package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/formentry/internal/bus"
	"github.com/roach88/formentry/internal/journal"
	"github.com/roach88/formentry/internal/render"
	"github.com/roach88/formentry/internal/schema"
	"github.com/roach88/formentry/internal/throttle"
	"github.com/roach88/formentry/internal/tree"
	"github.com/roach88/formentry/internal/wire"
)

// Engine is the single-writer form session loop.
//
// The engine owns one Form. User actions and server messages are queued as
// events and applied one at a time, so a reconcile always finishes before
// the next edit or message is looked at.
//
// CRITICAL: All form mutations happen in the goroutine running Run (or
// Drain). External callers use the action methods, which only enqueue.
//
// Thread-safety model:
//   - Answer, ClearAnswer, NewRepeat, DeleteRepeat, Next, Prev, Submit, Do:
//     safe from any goroutine
//   - Run / Drain: must be called from exactly one goroutine at a time
//   - Form: only from the loop goroutine, inside Do, or while nothing runs
//
// INVARIANTS:
//   - At most one answer request per question is in flight. An edit made
//     while one is out is sent when its response arrives.
//   - Journaled messages carry strictly increasing seq numbers.
type Engine struct {
	ch        bus.Channel
	form      *tree.Form
	queue     *eventQueue
	clock     *Clock
	wall      throttle.Clock
	window    time.Duration
	throttle  *throttle.Keyed[*tree.Question]
	ids       IDGenerator
	journal   *journal.Journal
	schema    *schema.Schema
	captioner render.Captioner
	sessionID string

	// actions holds the outbound action for the next flush of a question.
	actions map[*tree.Question]string
	// inflight holds the outstanding answer request per question.
	inflight map[*tree.Question]*inflight
	// requests holds every outstanding request by id.
	requests map[string]*request

	lastSeqID     int64
	submitWaiting bool
	unsubscribe   func()
}

type inflight struct {
	requestID string
	// deferred is set when the question was edited again while the
	// request was out.
	deferred bool
}

type request struct {
	topic    string
	question *tree.Question
	// labels are the errored info questions sent for re-validation.
	labels []string
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithThrottle sets the per-question answer window.
//
// Default: 200ms (throttle.DefaultWindow)
func WithThrottle(d time.Duration) EngineOption {
	return func(e *Engine) {
		e.window = d
	}
}

// WithClock sets the wall clock that drives throttle windows.
// Tests pass a testutil.ManualClock.
func WithClock(c throttle.Clock) EngineOption {
	return func(e *Engine) {
		e.wall = c
	}
}

// WithCaptioner sets the caption renderer of the form.
func WithCaptioner(c render.Captioner) EngineOption {
	return func(e *Engine) {
		e.captioner = c
	}
}

// WithJournal records every bus message of the session in j.
func WithJournal(j *journal.Journal) EngineOption {
	return func(e *Engine) {
		e.journal = j
	}
}

// WithIDGenerator sets the source of request and session ids.
//
// Default: UUIDv7Generator
func WithIDGenerator(g IDGenerator) EngineOption {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithSchema validates the initial payload and every reconcile response
// against s. Violations are logged, never fatal.
func WithSchema(s *schema.Schema) EngineOption {
	return func(e *Engine) {
		e.schema = s
	}
}

// New builds the form from the initial payload and subscribes to the inbound
// topics of ch. Protocol errors in the payload are logged and skipped; the
// only errors returned come from the journal.
func New(ch bus.Channel, initial *wire.Response, opts ...EngineOption) (*Engine, error) {
	e := &Engine{
		ch:       ch,
		queue:    newEventQueue(),
		clock:    NewClock(),
		wall:     throttle.System(),
		window:   throttle.DefaultWindow,
		ids:      UUIDv7Generator{},
		actions:  make(map[*tree.Question]string),
		inflight: make(map[*tree.Question]*inflight),
		requests: make(map[string]*request),
	}

	for _, opt := range opts {
		opt(e)
	}
	e.throttle = throttle.NewKeyed[*tree.Question](e.window, e.wall)

	e.checkSchema("initial", initial)

	var formOpts []tree.Option
	if e.captioner != nil {
		formOpts = append(formOpts, tree.WithCaptioner(e.captioner))
	}
	e.form, _ = tree.New(initial, formOpts...)
	e.lastSeqID = initial.SeqID

	e.sessionID = e.form.SessionID()
	if e.sessionID == "" {
		e.sessionID = e.ids.Generate()
	}

	if e.journal != nil {
		if err := e.beginJournal(initial); err != nil {
			return nil, err
		}
	}

	e.unsubscribe = ch.Subscribe(bus.InboundPrefix, e.receive)

	slog.Info("form session started",
		"session_id", e.sessionID,
		"title", e.form.Title(),
		"one_question_per_screen", e.form.OneQuestionPerScreen(),
	)
	return e, nil
}

func (e *Engine) beginJournal(initial *wire.Response) error {
	ctx := context.Background()
	payload, err := wire.MarshalCanonical(initial)
	if err != nil {
		return fmt.Errorf("journal initial payload: %w", err)
	}
	if err := e.journal.BeginSession(ctx, journal.Session{
		ID:      e.sessionID,
		Title:   e.form.Title(),
		Payload: payload,
	}); err != nil {
		return err
	}
	// A resumed session continues its seq numbering.
	last, err := e.journal.LastSeq(ctx, e.sessionID)
	if err != nil {
		return err
	}
	e.clock = NewClockAt(last)
	return nil
}

// Form returns the live form. See the thread-safety model on Engine.
func (e *Engine) Form() *tree.Form { return e.form }

// SessionID returns the session id used in the journal.
func (e *Engine) SessionID() string { return e.sessionID }

// Seq returns the seq of the last journaled message.
func (e *Engine) Seq() int64 { return e.clock.Current() }

// Answer records a user edit of the question at ix.
func (e *Engine) Answer(ix string, value any) error {
	return e.enqueue(Event{Type: EventTypeAnswer, Ix: ix, Answer: value})
}

// ClearAnswer records the user clearing the question at ix.
func (e *Engine) ClearAnswer(ix string) error {
	return e.enqueue(Event{Type: EventTypeClearAnswer, Ix: ix})
}

// NewRepeat asks the server for a new instance of the repeat at ix.
func (e *Engine) NewRepeat(ix string) error {
	return e.enqueue(Event{Type: EventTypeNewRepeat, Ix: ix})
}

// DeleteRepeat asks the server to remove the repeat instance at ix.
func (e *Engine) DeleteRepeat(ix string) error {
	return e.enqueue(Event{Type: EventTypeDeleteRepeat, Ix: ix})
}

// Next asks for the next screen in one-question-per-screen mode.
func (e *Engine) Next() error {
	return e.enqueue(Event{Type: EventTypeNext})
}

// Prev asks for the previous screen in one-question-per-screen mode.
func (e *Engine) Prev() error {
	return e.enqueue(Event{Type: EventTypePrev})
}

// Submit submits the form, or jumps to the first error if there is one.
func (e *Engine) Submit() error {
	return e.enqueue(Event{Type: EventTypeSubmit})
}

// Do runs fn against the form on the loop and waits for it. It needs a
// running Run loop.
func (e *Engine) Do(ctx context.Context, fn func(*tree.Form)) error {
	done := make(chan struct{})
	if err := e.enqueue(Event{Type: EventTypeDo, fn: fn, done: done}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) enqueue(ev Event) error {
	if !e.queue.Enqueue(ev) {
		return ErrStopped
	}
	return nil
}

// receive is the bus handler for inbound messages.
func (e *Engine) receive(msg bus.Message) {
	if !e.queue.Enqueue(Event{Type: EventTypeInbound, Message: msg}) {
		slog.Warn("inbound message after stop", "topic", msg.Topic)
	}
}

// Run starts the single-writer event loop.
// Blocks until context is cancelled or Stop() is called.
//
// ERROR HANDLING: a failing event is logged with its context and the loop
// moves on. Neither user actions nor server messages can stop a session.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("engine starting", "session_id", e.sessionID)

	for {
		event, ok := e.queue.TryDequeue()
		if ok {
			if err := e.processEvent(ctx, event); err != nil {
				logEventError(event, err)
			}
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("engine stopping: context cancelled")
			e.shutdown()
			return ctx.Err()

		case <-e.queue.Wait():
			// The signal channel closes with the queue.
			if e.queue.Closed() && e.queue.Len() == 0 {
				slog.Info("engine stopping: queue closed")
				e.shutdown()
				return nil
			}
		}
	}
}

// Drain processes queued events on the caller's goroutine until the queue
// is empty. Events enqueued while draining are processed too. It must not
// run concurrently with Run.
func (e *Engine) Drain(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		event, ok := e.queue.TryDequeue()
		if !ok {
			return nil
		}
		if err := e.processEvent(ctx, event); err != nil {
			logEventError(event, err)
		}
	}
}

// Stop gracefully shuts down the engine. Queued events are still processed
// by Run before it returns.
func (e *Engine) Stop() {
	e.queue.Close()
}

func (e *Engine) shutdown() {
	e.queue.Close()
	e.throttle.CancelAll()
	if e.unsubscribe != nil {
		e.unsubscribe()
		e.unsubscribe = nil
	}
}

// processEvent routes an event to its handler.
// CRITICAL: Called only from the loop goroutine.
func (e *Engine) processEvent(ctx context.Context, event Event) error {
	slog.Debug("processing event", "type", event.Type, "ix", event.Ix)

	switch event.Type {
	case EventTypeAnswer:
		return e.edit(ctx, event.Ix, event.Answer, wire.ActionAnswer)
	case EventTypeClearAnswer:
		return e.edit(ctx, event.Ix, nil, wire.ActionClearAnswer)
	case EventTypeFlush:
		return e.flush(ctx, event.question)
	case EventTypeNewRepeat:
		return e.newRepeat(ctx, event.Ix)
	case EventTypeDeleteRepeat:
		return e.deleteRepeat(ctx, event.Ix)
	case EventTypeNext:
		return e.navigate(ctx, wire.ActionNextIndex)
	case EventTypePrev:
		return e.navigate(ctx, wire.ActionPrevIndex)
	case EventTypeSubmit:
		return e.submit(ctx)
	case EventTypeInbound:
		return e.handleInbound(ctx, event.Message)
	case EventTypeDo:
		event.fn(e.form)
		close(event.done)
		return nil
	default:
		return fmt.Errorf("unknown event type: %d", event.Type)
	}
}

// logEventError logs an event processing failure with full context.
func logEventError(event Event, err error) {
	switch event.Type {
	case EventTypeInbound:
		slog.Error("inbound message failed",
			"error", err,
			"topic", event.Message.Topic,
		)
	case EventTypeFlush:
		ix := ""
		if event.question != nil {
			ix = tree.AbsoluteIndex(event.question)
		}
		slog.Error("answer flush failed",
			"error", err,
			"ix", ix,
		)
	default:
		slog.Error("user action failed",
			"error", err,
			"event_type", event.Type,
			"ix", event.Ix,
		)
	}
}
