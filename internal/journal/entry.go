package journal

import (
	"fmt"

	"github.com/roach88/formentry/internal/wire"
)

// Direction tells which side sent a message.
type Direction string

const (
	// Inbound messages come from the session server.
	Inbound Direction = "in"
	// Outbound messages are sent by the engine.
	Outbound Direction = "out"
)

// Session is the header row of a transcript.
type Session struct {
	ID    string
	Title string
	// Payload is the canonical JSON of the initial form payload.
	Payload []byte
	// Created orders sessions; it is a logical counter, not a timestamp.
	Created int64
}

// Entry is one journaled bus message.
type Entry struct {
	SessionID string
	Seq       int64
	Direction Direction
	Topic     string
	RequestID string
	// Payload is canonical JSON.
	Payload []byte
}

// NewEntry encodes payload as canonical JSON. Fields tagged json:"-" (such
// as navigation callbacks) are dropped.
func NewEntry(sessionID string, seq int64, dir Direction, topic, requestID string, payload any) (Entry, error) {
	data, err := wire.MarshalCanonical(payload)
	if err != nil {
		return Entry{}, fmt.Errorf("marshal %s payload: %w", topic, err)
	}
	return Entry{
		SessionID: sessionID,
		Seq:       seq,
		Direction: dir,
		Topic:     topic,
		RequestID: requestID,
		Payload:   data,
	}, nil
}

// Decode parses the entry payload into v.
func (e Entry) Decode(v any) error {
	if err := wire.Decode(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload (seq %d): %w", e.Topic, e.Seq, err)
	}
	return nil
}
