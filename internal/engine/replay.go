package engine

// # Replay
//
// A journaled session is rebuilt by constructing a fresh engine from the
// recorded initial payload and re-delivering every inbound message in seq
// order. Outbound messages are not re-sent: the server's responses already
// carry their effect.
//
// ## Why Replay Reproduces the Tree
//
//   - The journal orders rows by the engine's logical seq, never wall time.
//   - Reconcile rows carry their target as an absolute index (resolved when
//     journaled), so validation errors land on the same question even though
//     the replaying engine never sent the original request.
//   - Navigation results are journaled as inbound messages, not callbacks.
//
// Local edits that never reached the server (pending answers, client
// validation errors) are not in the journal and are not replayed.

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/formentry/internal/bus"
	"github.com/roach88/formentry/internal/journal"
	"github.com/roach88/formentry/internal/wire"
)

// Replay rebuilds a journaled session and returns the engine holding the
// rebuilt form. The engine is not running and has no journal of its own.
func Replay(ctx context.Context, j *journal.Journal, sessionID string, opts ...EngineOption) (*Engine, error) {
	session, err := j.Session(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}
	initial, err := wire.DecodeResponse(session.Payload)
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", sessionID, err)
	}

	inbound, err := j.ReadDirection(ctx, sessionID, journal.Inbound)
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", sessionID, err)
	}

	// Replay must not write back into the journal it reads.
	opts = append(opts, WithJournal(nil))
	e, err := New(bus.New(), initial, opts...)
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", sessionID, err)
	}

	for _, entry := range inbound {
		payload, err := DecodeInbound(entry)
		if err != nil {
			return nil, fmt.Errorf("replay %s: %w", sessionID, err)
		}
		e.receive(bus.Message{Topic: entry.Topic, Payload: payload})
	}
	if err := e.Drain(ctx); err != nil {
		return nil, fmt.Errorf("replay %s: %w", sessionID, err)
	}

	slog.Info("session replayed",
		"session_id", sessionID,
		"messages", len(inbound),
	)
	return e, nil
}

// DecodeInbound decodes a journaled inbound payload into its wire type.
func DecodeInbound(entry journal.Entry) (any, error) {
	switch entry.Topic {
	case bus.TopicReconcile:
		var rc wire.Reconcile
		if err := entry.Decode(&rc); err != nil {
			return nil, err
		}
		if rc.Response == nil {
			return nil, fmt.Errorf("reconcile without response (seq %d)", entry.Seq)
		}
		rc.Response.Normalize()
		return rc, nil
	case bus.TopicBlock:
		var b wire.Block
		return b, entry.Decode(&b)
	case bus.TopicSubmitResult:
		var res wire.SubmitResult
		return res, entry.Decode(&res)
	case bus.TopicAnswerFailed:
		var af wire.AnswerFailed
		return af, entry.Decode(&af)
	case bus.TopicNavigated:
		var nav wire.Navigated
		return nav, entry.Decode(&nav)
	}
	return nil, fmt.Errorf("unknown inbound topic %q (seq %d)", entry.Topic, entry.Seq)
}
