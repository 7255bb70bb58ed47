package engine

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/roach88/formentry/internal/bus"
	"github.com/roach88/formentry/internal/ix"
	"github.com/roach88/formentry/internal/tree"
	"github.com/roach88/formentry/internal/wire"
)

// edit applies a user edit locally and schedules the answer request.
func (e *Engine) edit(ctx context.Context, index string, value any, action string) error {
	q := tree.FindByIndex(e.form, index)
	if q == nil {
		return notFound("question", index)
	}
	if e.form.InputsDisabled() {
		return &RuntimeError{Code: ErrCodeInputBlocked, Message: "inputs are blocked", Ix: index}
	}

	q.SetAnswer(value)
	q.MarkPending()
	e.actions[q] = action

	e.send(ctx, bus.TopicDirty, "", wire.Dirty{Action: action, Ix: index})
	e.schedule(q)
	return nil
}

// schedule asks the throttle for a flush of q. The flush itself runs on the
// loop: the throttle only enqueues.
func (e *Engine) schedule(q *tree.Question) {
	e.throttle.Trigger(q, func() {
		e.queue.Enqueue(Event{Type: EventTypeFlush, question: q})
	})
}

// flush sends q's current answer unless a request for q is already out, in
// which case the send is deferred until that request settles.
func (e *Engine) flush(ctx context.Context, q *tree.Question) error {
	index := tree.AbsoluteIndex(q)
	if tree.Find(e.form, index) != q {
		// Removed by a reconcile while the window was open.
		delete(e.actions, q)
		e.throttle.Cancel(q)
		slog.Debug("dropping answer for removed question", "ix", index)
		return nil
	}

	if st := e.inflight[q]; st != nil {
		st.deferred = true
		slog.Debug("answer deferred while request in flight",
			"ix", index,
			"request_id", st.requestID,
		)
		return nil
	}

	action := e.actions[q]
	if action == "" {
		action = wire.ActionAnswer
	}
	delete(e.actions, q)

	// The pending answer is exactly what goes on the wire.
	q.MarkPending()

	rid := e.ids.Generate()
	labels := e.form.ErroredLabels()
	req := wire.AnswerRequest{
		RequestID:            rid,
		Action:               action,
		Ix:                   index,
		Answer:               wire.Clone(q.Answer()),
		AnswersToValidate:    labels,
		OneQuestionPerScreen: e.form.OneQuestionPerScreen(),
	}
	e.inflight[q] = &inflight{requestID: rid}
	e.requests[rid] = &request{topic: topicFor(action), question: q, labels: labels}

	e.send(ctx, topicFor(action), rid, req)
	return nil
}

func topicFor(action string) string {
	if action == wire.ActionClearAnswer {
		return bus.TopicClearAnswer
	}
	return bus.TopicAnswer
}

// settle ends q's in-flight request. rid is the request the response was
// for; "" settles whatever is out. A deferred edit is scheduled again.
func (e *Engine) settle(q *tree.Question, rid string) {
	st := e.inflight[q]
	if st == nil || (rid != "" && st.requestID != rid) {
		return
	}
	delete(e.inflight, q)
	if !st.deferred {
		return
	}
	if tree.Find(e.form, tree.AbsoluteIndex(q)) != q {
		return
	}
	if e.actions[q] == "" {
		e.actions[q] = wire.ActionAnswer
	}
	q.MarkPending()
	e.schedule(q)
}

func (e *Engine) newRepeat(ctx context.Context, index string) error {
	if _, ok := tree.Find(e.form, index).(*tree.Repeat); !ok {
		return notFound("repeat", index)
	}
	rid := e.ids.Generate()
	e.requests[rid] = &request{topic: bus.TopicNewRepeat}
	e.send(ctx, bus.TopicNewRepeat, rid, wire.RepeatRequest{RequestID: rid, Ix: index})
	e.send(ctx, bus.TopicDirty, "", wire.Dirty{Action: wire.ActionNewRepeat, Ix: index})
	return nil
}

func (e *Engine) deleteRepeat(ctx context.Context, index string) error {
	g, ok := tree.Find(e.form, index).(*tree.Group)
	if !ok || !g.IsRepetition() {
		return notFound("repeat instance", index)
	}
	occurrence, err := strconv.Atoi(ix.OccurrenceNumber(g.RelIx()))
	if err != nil {
		return &RuntimeError{Code: ErrCodeNotFound, Message: "repeat instance without occurrence", Ix: index}
	}

	rid := e.ids.Generate()
	e.requests[rid] = &request{topic: bus.TopicDeleteRepeat}
	e.send(ctx, bus.TopicDeleteRepeat, rid, wire.DeleteRepeatRequest{
		RequestID: rid,
		Ix:        occurrence,
		FormIx:    tree.AbsoluteIndex(g.Parent()),
	})
	e.send(ctx, bus.TopicDirty, "", wire.Dirty{Action: wire.ActionDeleteRepeat, Ix: index})
	return nil
}

// navigate sends a next/prev request. A next on an unsatisfied required
// screen only reveals the required notice.
func (e *Engine) navigate(ctx context.Context, action string) error {
	enabled := e.form.EnablePrevious()
	topic := bus.TopicPrevIndex
	if action == wire.ActionNextIndex {
		topic = bus.TopicNextIndex
		enabled = e.form.EnableNext()
		if !enabled && e.form.EnableForceNext() {
			e.form.ClickedNextOnRequired()
			slog.Debug("next blocked by required question")
			return nil
		}
	}
	if !enabled {
		return &RuntimeError{Code: ErrCodeNavigationDisabled, Message: action + " is disabled", Ix: e.form.CurrentIndex()}
	}

	rid := e.ids.Generate()
	e.requests[rid] = &request{topic: topic}
	e.send(ctx, topic, rid, wire.NavigationRequest{
		RequestID: rid,
		Action:    action,
		Title:     e.form.Title(),
		Callback: func(res wire.NavigationResult) {
			e.receive(bus.Message{
				Topic:   bus.TopicNavigated,
				Payload: wire.Navigated{RequestID: rid, Result: res},
			})
		},
	})
	return nil
}

// submit latches the submit attempt, then either jumps to the first error
// or sends the answers. A submit during a submit-only block waits for the
// block to lift.
func (e *Engine) submit(ctx context.Context) error {
	if e.form.IsSubmitting() {
		slog.Debug("submit ignored: already submitting")
		return nil
	}
	e.form.AttemptSubmit()

	if errored := e.form.ErroredQuestions(); len(errored) > 0 {
		q := e.form.JumpToErrors()
		slog.Info("submit blocked by errors",
			"errors", len(errored),
			"jump_to", tree.AbsoluteIndex(q),
		)
		return nil
	}

	e.form.SetSubmitting(true)
	if e.form.BlockSubmit() {
		e.submitWaiting = true
		slog.Debug("submit waiting for block to lift")
		return nil
	}
	e.sendSubmit(ctx)
	return nil
}

func (e *Engine) sendSubmit(ctx context.Context) {
	e.submitWaiting = false
	answers, prevalidated := e.form.SubmitAnswers()
	rid := e.ids.Generate()
	e.requests[rid] = &request{topic: bus.TopicSubmitAll}
	e.send(ctx, bus.TopicSubmitAll, rid, wire.SubmitRequest{
		RequestID:    rid,
		Answers:      answers,
		Prevalidated: prevalidated,
	})
}
