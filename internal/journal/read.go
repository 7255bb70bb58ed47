package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned when a session id has no header row.
var ErrSessionNotFound = errors.New("session not found")

// Session returns the header row for id.
func (j *Journal) Session(ctx context.Context, id string) (Session, error) {
	var s Session
	var payload string
	err := j.db.QueryRowContext(ctx, `
		SELECT id, title, payload, created FROM sessions WHERE id = ?
	`, id).Scan(&s.ID, &s.Title, &payload, &s.Created)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return Session{}, fmt.Errorf("read session: %w", err)
	}
	s.Payload = []byte(payload)
	return s, nil
}

// Sessions lists every session header, oldest first.
func (j *Journal) Sessions(ctx context.Context) ([]Session, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, title, payload, created FROM sessions
		ORDER BY created ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		var s Session
		var payload string
		if err := rows.Scan(&s.ID, &s.Title, &payload, &s.Created); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		s.Payload = []byte(payload)
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// Read returns every message of a session in seq order.
//
// Returns an empty slice (not nil) if the session has no messages.
func (j *Journal) Read(ctx context.Context, sessionID string) ([]Entry, error) {
	return j.query(ctx, `
		SELECT session_id, seq, direction, topic, request_id, payload
		FROM messages
		WHERE session_id = ?
		ORDER BY seq ASC
	`, sessionID)
}

// ReadDirection returns the messages of a session sent in one direction.
func (j *Journal) ReadDirection(ctx context.Context, sessionID string, dir Direction) ([]Entry, error) {
	return j.query(ctx, `
		SELECT session_id, seq, direction, topic, request_id, payload
		FROM messages
		WHERE session_id = ? AND direction = ?
		ORDER BY seq ASC
	`, sessionID, string(dir))
}

// PendingRequests returns outbound requests that no inbound message has
// answered. An interrupted session resumes with these still open.
func (j *Journal) PendingRequests(ctx context.Context, sessionID string) ([]Entry, error) {
	return j.query(ctx, `
		SELECT o.session_id, o.seq, o.direction, o.topic, o.request_id, o.payload
		FROM messages o
		WHERE o.session_id = ? AND o.direction = 'out' AND o.request_id != ''
		  AND NOT EXISTS (
			SELECT 1 FROM messages i
			WHERE i.session_id = o.session_id
			  AND i.direction = 'in'
			  AND i.request_id = o.request_id
		  )
		ORDER BY o.seq ASC
	`, sessionID)
}

// LastSeq returns the highest seq recorded for a session, or 0.
func (j *Journal) LastSeq(ctx context.Context, sessionID string) (int64, error) {
	var seq sql.NullInt64
	err := j.db.QueryRowContext(ctx, `
		SELECT MAX(seq) FROM messages WHERE session_id = ?
	`, sessionID).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq.Int64, nil
}

func (j *Journal) query(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var dir, payload string
		if err := rows.Scan(&e.SessionID, &e.Seq, &dir, &e.Topic, &e.RequestID, &payload); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		e.Direction = Direction(dir)
		e.Payload = []byte(payload)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return entries, nil
}
