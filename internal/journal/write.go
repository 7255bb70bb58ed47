package journal

import (
	"context"
	"fmt"
)

// BeginSession records a session header. Writing the same id twice is a
// no-op, so a resumed session keeps its original payload. A zero Created
// places the session after every existing one.
func (j *Journal) BeginSession(ctx context.Context, s Session) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO sessions (id, title, payload, created)
		VALUES (?, ?, ?, CASE WHEN ? = 0
			THEN (SELECT COALESCE(MAX(created), 0) + 1 FROM sessions)
			ELSE ? END)
		ON CONFLICT(id) DO NOTHING
	`,
		s.ID,
		s.Title,
		string(s.Payload),
		s.Created,
		s.Created,
	)
	if err != nil {
		return fmt.Errorf("begin session: %w", err)
	}
	return nil
}

// Append inserts a message. Duplicate (session, seq) pairs are silently
// ignored so a replayed write is idempotent.
//
// The session must exist (foreign key constraint).
func (j *Journal) Append(ctx context.Context, e Entry) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO messages
		(session_id, seq, direction, topic, request_id, payload)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, seq) DO NOTHING
	`,
		e.SessionID,
		e.Seq,
		string(e.Direction),
		e.Topic,
		e.RequestID,
		string(e.Payload),
	)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}
