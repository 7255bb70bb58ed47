package engine

import "sync/atomic"

// Clock numbers the messages of one session for the journal.
//
// Current is the seq of the last stamped message; 0 means nothing has been
// stamped. Rows are ordered by seq alone, so replay delivers them in the
// order they were recorded regardless of wall time.
//
// Only the loop stamps; Current may be read from any goroutine.
type Clock struct {
	last atomic.Int64
}

// NewClock returns a clock for a fresh session. Its first stamp is 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt returns a clock that continues after last, typically the
// journal's LastSeq for a resumed session. A negative last is treated as 0.
func NewClockAt(last int64) *Clock {
	c := &Clock{}
	if last > 0 {
		c.last.Store(last)
	}
	return c
}

// Next stamps a message and returns its seq.
func (c *Clock) Next() int64 {
	return c.last.Add(1)
}

// Current returns the seq of the last stamped message.
func (c *Clock) Current() int64 {
	return c.last.Load()
}
