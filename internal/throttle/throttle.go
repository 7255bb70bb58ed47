// Package throttle rate-limits repeated calls to at most one per window.
//
// A Throttler runs its function on the leading edge of a window and, if
// triggered again inside the window, once more on the trailing edge. Calls in
// between are coalesced. This is the rate limit applied to answer
// submissions: a user typing quickly produces one submission per window, and
// the last value typed is always sent.
//
// Keyed holds one Throttler per key so different questions are throttled
// independently.
package throttle

import (
	"sync"
	"time"
)

// DefaultWindow is the answer submission window.
const DefaultWindow = 200 * time.Millisecond

// Timer is a pending callback created by Clock.AfterFunc.
type Timer interface {
	// Stop cancels the callback. It reports whether the callback was
	// still pending.
	Stop() bool
}

// Clock abstracts wall time so tests can drive windows deterministically.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// System returns the real wall clock.
func System() Clock { return systemClock{} }

// Throttler runs fn at most once per window.
//
// Thread-safety: Trigger and Cancel are safe for concurrent use. fn runs
// either on the caller's goroutine (leading edge) or on the clock's timer
// goroutine (trailing edge), never while the throttler's lock is held.
type Throttler struct {
	mu     sync.Mutex
	clock  Clock
	window time.Duration
	fn     func()
	last   time.Time
	ran    bool
	timer  Timer
	// gen identifies the scheduled timer so a stale callback is ignored.
	gen    int
}

// New creates a Throttler. A nil clock uses the system clock.
func New(window time.Duration, clock Clock, fn func()) *Throttler {
	if clock == nil {
		clock = System()
	}
	return &Throttler{clock: clock, window: window, fn: fn}
}

// Trigger requests a run of fn. It runs immediately if the window since the
// last run has elapsed, otherwise once at the end of the window.
func (t *Throttler) Trigger() {
	t.mu.Lock()
	now := t.clock.Now()
	remaining := t.window
	if t.ran {
		remaining = t.window - now.Sub(t.last)
	}
	if !t.ran || remaining <= 0 {
		if t.timer != nil {
			t.timer.Stop()
			t.timer = nil
		}
		t.last = now
		t.ran = true
		fn := t.fn
		t.mu.Unlock()
		fn()
		return
	}
	if t.timer == nil {
		t.gen++
		gen := t.gen
		t.timer = t.clock.AfterFunc(remaining, func() { t.trailing(gen) })
	}
	t.mu.Unlock()
}

func (t *Throttler) trailing(gen int) {
	t.mu.Lock()
	if t.timer == nil || gen != t.gen {
		// Cancelled, or superseded by a leading-edge run.
		t.mu.Unlock()
		return
	}
	t.timer = nil
	t.last = t.clock.Now()
	fn := t.fn
	t.mu.Unlock()
	fn()
}

// Pending reports whether a trailing run is scheduled.
func (t *Throttler) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timer != nil
}

// Cancel drops a scheduled trailing run and resets the window.
func (t *Throttler) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.ran = false
}

// Keyed throttles calls independently per key.
type Keyed[K comparable] struct {
	mu     sync.Mutex
	clock  Clock
	window time.Duration
	byKey  map[K]*keyed
}

type keyed struct {
	throttler *Throttler
	mu        sync.Mutex
	fn        func()
}

// NewKeyed creates a per-key throttle. A nil clock uses the system clock.
func NewKeyed[K comparable](window time.Duration, clock Clock) *Keyed[K] {
	if clock == nil {
		clock = System()
	}
	return &Keyed[K]{clock: clock, window: window, byKey: make(map[K]*keyed)}
}

// Trigger requests a run of fn for key. When runs coalesce, the fn passed
// to the latest Trigger is the one that runs.
func (k *Keyed[K]) Trigger(key K, fn func()) {
	k.mu.Lock()
	e, ok := k.byKey[key]
	if !ok {
		e = &keyed{}
		e.throttler = New(k.window, k.clock, func() {
			e.mu.Lock()
			run := e.fn
			e.mu.Unlock()
			run()
		})
		k.byKey[key] = e
	}
	k.mu.Unlock()

	e.mu.Lock()
	e.fn = fn
	e.mu.Unlock()
	e.throttler.Trigger()
}

// Pending reports whether a trailing run is scheduled for key.
func (k *Keyed[K]) Pending(key K) bool {
	k.mu.Lock()
	e, ok := k.byKey[key]
	k.mu.Unlock()
	return ok && e.throttler.Pending()
}

// Cancel drops any scheduled run for key and forgets it.
func (k *Keyed[K]) Cancel(key K) {
	k.mu.Lock()
	e, ok := k.byKey[key]
	delete(k.byKey, key)
	k.mu.Unlock()
	if ok {
		e.throttler.Cancel()
	}
}

// CancelAll drops every scheduled run.
func (k *Keyed[K]) CancelAll() {
	k.mu.Lock()
	entries := k.byKey
	k.byKey = make(map[K]*keyed)
	k.mu.Unlock()
	for _, e := range entries {
		e.throttler.Cancel()
	}
}

// Len returns the number of keys with throttle state.
func (k *Keyed[K]) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.byKey)
}
