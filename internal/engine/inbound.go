package engine

import (
	"context"
	"log/slog"

	"github.com/roach88/formentry/internal/bus"
	"github.com/roach88/formentry/internal/journal"
	"github.com/roach88/formentry/internal/tree"
	"github.com/roach88/formentry/internal/wire"
)

// handleInbound applies one server message.
func (e *Engine) handleInbound(ctx context.Context, msg bus.Message) error {
	switch msg.Topic {
	case bus.TopicReconcile:
		rc, ok := payloadAs[wire.Reconcile](msg.Payload)
		if !ok || rc.Response == nil {
			return badPayload(msg.Topic, msg.Payload)
		}
		return e.reconcile(ctx, rc)

	case bus.TopicBlock:
		level, ok := blockLevel(msg.Payload)
		if !ok {
			return badPayload(msg.Topic, msg.Payload)
		}
		e.record(ctx, journal.Inbound, msg.Topic, "", wire.Block{Level: int(level)})
		e.form.SetBlock(level)
		if level == tree.BlockNone && e.submitWaiting {
			e.sendSubmit(ctx)
		}
		return nil

	case bus.TopicSubmitResult:
		res, ok := payloadAs[wire.SubmitResult](msg.Payload)
		if !ok {
			return badPayload(msg.Topic, msg.Payload)
		}
		e.record(ctx, journal.Inbound, msg.Topic, "", res)
		e.form.ApplySubmitResult(res)
		e.submitWaiting = false
		for rid, req := range e.requests {
			if req.topic == bus.TopicSubmitAll {
				delete(e.requests, rid)
			}
		}
		slog.Info("submit result", "status", res.Status, "errors", len(res.Errors))
		return nil

	case bus.TopicAnswerFailed:
		af, ok := payloadAs[wire.AnswerFailed](msg.Payload)
		if !ok {
			return badPayload(msg.Topic, msg.Payload)
		}
		return e.answerFailed(ctx, af)

	case bus.TopicNavigated:
		nav, ok := payloadAs[wire.Navigated](msg.Payload)
		if !ok {
			return badPayload(msg.Topic, msg.Payload)
		}
		e.record(ctx, journal.Inbound, msg.Topic, nav.RequestID, nav)
		delete(e.requests, nav.RequestID)
		e.form.SetNavigation(nav.Result)
		return nil

	default:
		return &RuntimeError{Code: ErrCodeUnknownTopic, Message: "no handler", Topic: msg.Topic}
	}
}

// reconcile applies a server response. The response is journaled with its
// target resolved to an absolute index, so a replay without the original
// requests still addresses the same question.
func (e *Engine) reconcile(ctx context.Context, rc wire.Reconcile) error {
	resp := rc.Response
	req := e.requests[rc.RequestID]
	delete(e.requests, rc.RequestID)

	var target *tree.Question
	switch {
	case req != nil && req.question != nil:
		target = req.question
	case rc.Target != "":
		target = tree.FindByIndex(e.form, rc.Target)
		if target == nil {
			slog.Warn("reconcile target not found", "target", rc.Target)
		}
	}
	if target != nil {
		rc.Target = tree.AbsoluteIndex(target)
	}
	e.record(ctx, journal.Inbound, bus.TopicReconcile, rc.RequestID, rc)

	if resp.SeqID != 0 && resp.SeqID < e.lastSeqID {
		slog.Debug("stale response ignored",
			"seq_id", resp.SeqID,
			"last_seq_id", e.lastSeqID,
			"request_id", rc.RequestID,
		)
		if target != nil {
			e.settle(target, rc.RequestID)
		}
		return nil
	}
	if resp.SeqID > e.lastSeqID {
		e.lastSeqID = resp.SeqID
	}

	if !resp.IsValidationError() {
		e.checkSchema(bus.TopicReconcile, resp)
	}
	e.form.Reconcile(resp, target)

	if req != nil && len(req.labels) > 0 && !resp.IsValidationError() {
		e.form.ApplyErrors(req.labels, resp.Errors)
	}
	if target != nil {
		e.settle(target, rc.RequestID)
	}
	return nil
}

// answerFailed handles a request that got no response: the question shows
// a save error and its round trip ends.
func (e *Engine) answerFailed(ctx context.Context, af wire.AnswerFailed) error {
	var q *tree.Question
	if req := e.requests[af.RequestID]; req != nil {
		q = req.question
		delete(e.requests, af.RequestID)
	}
	if q == nil && af.Target != "" {
		q = tree.FindByIndex(e.form, af.Target)
	}
	if q == nil {
		return notFound("question", af.Target)
	}
	af.Target = tree.AbsoluteIndex(q)
	e.record(ctx, journal.Inbound, bus.TopicAnswerFailed, af.RequestID, af)

	q.SetServerError(wire.MessageSaveFailed)
	q.ClearPending()
	e.settle(q, af.RequestID)
	return nil
}

// send journals and publishes an outbound message.
func (e *Engine) send(ctx context.Context, topic, requestID string, payload any) {
	e.record(ctx, journal.Outbound, topic, requestID, payload)
	slog.Debug("publish", "topic", topic, "request_id", requestID)
	e.ch.Send(topic, payload)
}

// record stamps a message with the next seq and journals it. Journal
// failures are logged; the session goes on without a complete transcript.
func (e *Engine) record(ctx context.Context, dir journal.Direction, topic, requestID string, payload any) {
	seq := e.clock.Next()
	if e.journal == nil {
		return
	}
	entry, err := journal.NewEntry(e.sessionID, seq, dir, topic, requestID, payload)
	if err == nil {
		err = e.journal.Append(ctx, entry)
	}
	if err != nil {
		slog.Error("journal write failed",
			"error", err,
			"session_id", e.sessionID,
			"seq", seq,
			"topic", topic,
		)
	}
}

func (e *Engine) checkSchema(source string, resp *wire.Response) {
	if e.schema == nil {
		return
	}
	for _, v := range e.schema.ValidateResponse(resp) {
		slog.Warn("payload schema violation",
			"source", source,
			"path", v.Path,
			"error", v.Message,
		)
	}
}

// payloadAs accepts a payload sent by value or by pointer.
func payloadAs[T any](payload any) (T, bool) {
	switch v := payload.(type) {
	case T:
		return v, true
	case *T:
		if v != nil {
			return *v, true
		}
	}
	var zero T
	return zero, false
}

func blockLevel(payload any) (tree.BlockLevel, bool) {
	switch v := payload.(type) {
	case tree.BlockLevel:
		return v, true
	case int:
		return tree.BlockLevel(v), true
	}
	if b, ok := payloadAs[wire.Block](payload); ok {
		return tree.BlockLevel(b.Level), true
	}
	return 0, false
}
