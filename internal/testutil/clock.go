package testutil

import (
	"sort"
	"sync"
	"time"

	"github.com/roach88/formentry/internal/throttle"
)

// Epoch is the default start time of a ManualClock.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// ManualClock is a throttle.Clock whose time only moves when Advance is
// called. Timers due by the new time fire synchronously inside Advance, in
// deadline order.
//
// Thread-safety: All methods are safe for concurrent use. Callbacks run
// without the clock's lock held, so they may schedule further timers.
type ManualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
	nextID int
}

type manualTimer struct {
	clock    *ManualClock
	id       int
	deadline time.Time
	fn       func()
	stopped  bool
	fired    bool
}

// NewManualClock creates a clock at start. A zero start uses Epoch.
func NewManualClock(start time.Time) *ManualClock {
	if start.IsZero() {
		start = Epoch
	}
	return &ManualClock{now: start}
}

// Now returns the current manual time.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc schedules fn to run once the clock has advanced by d.
func (c *ManualClock) AfterFunc(d time.Duration, fn func()) throttle.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	t := &manualTimer{clock: c, id: c.nextID, deadline: c.now.Add(d), fn: fn}
	c.timers = append(c.timers, t)
	return t
}

// Stop cancels the timer. Reports whether it was still pending.
func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves the clock forward by d, firing every timer that becomes due.
// Time is stepped to each deadline before its timer fires, so callbacks
// observe their own deadline as Now.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		next := c.nextDue(target)
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		if next.deadline.After(c.now) {
			c.now = next.deadline
		}
		next.fired = true
		c.mu.Unlock()
		next.fn()
	}
}

// nextDue returns the earliest pending timer due by target. Caller holds mu.
func (c *ManualClock) nextDue(target time.Time) *manualTimer {
	live := c.timers[:0]
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			live = append(live, t)
		}
	}
	c.timers = live
	sort.SliceStable(c.timers, func(i, j int) bool {
		if c.timers[i].deadline.Equal(c.timers[j].deadline) {
			return c.timers[i].id < c.timers[j].id
		}
		return c.timers[i].deadline.Before(c.timers[j].deadline)
	})
	if len(c.timers) == 0 || c.timers[0].deadline.After(target) {
		return nil
	}
	return c.timers[0]
}

// Pending returns the number of timers that have not fired or been stopped.
func (c *ManualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}
