// Package observable provides reactive state cells.
//
// A Value holds one piece of node state (an answer, an error message, a
// collapsed flag). Writers call Set; every subscriber is notified
// synchronously, in subscription order, after the new value is stored. Derived
// state is computed from the current cell values by plain methods on the
// owning type, so a subscriber always observes a consistent snapshot: there
// is no intermediate state where a derived flag still reflects the old value.
//
// Values are not safe for concurrent use. The engine owns all cells and only
// touches them from its single writer loop.
package observable

// Equal reports whether two values are equal. A Value only notifies when
// Equal(old, new) is false.
type Equal[T any] func(a, b T) bool

// Subscription releases a handler registered with Subscribe.
type Subscription interface {
	Dispose()
}

// Value is a reactive cell.
type Value[T any] struct {
	v      T
	equal  Equal[T]
	subs   []*handler[T]
	nextID int
	// notifying guards against a handler writing the same cell while it is
	// being notified; nested writes are applied and notified after the
	// current round finishes.
	notifying bool
	pending   []T
}

type handler[T any] struct {
	id int
	fn func(T)
	v  *Value[T]
}

// Dispose unregisters the handler. Safe to call more than once.
func (h *handler[T]) Dispose() {
	if h.v == nil {
		return
	}
	h.v.remove(h.id)
	h.v = nil
}

// New creates a Value holding initial. A nil equal means every Set notifies.
func New[T any](initial T, equal Equal[T]) *Value[T] {
	return &Value[T]{v: initial, equal: equal}
}

// NewComparable creates a Value for a comparable type using ==.
func NewComparable[T comparable](initial T) *Value[T] {
	return New(initial, func(a, b T) bool { return a == b })
}

// Get returns the current value.
func (o *Value[T]) Get() T {
	return o.v
}

// Set stores v and notifies subscribers if it differs from the current value.
// It reports whether the value changed.
func (o *Value[T]) Set(v T) bool {
	if o.notifying {
		// Compare with the last queued write, not the stored value.
		if o.equal != nil && o.equal(o.latest(), v) {
			return false
		}
		o.pending = append(o.pending, v)
		return true
	}
	if o.equal != nil && o.equal(o.v, v) {
		return false
	}
	o.v = v
	o.notify()
	return true
}

// latest returns the value the cell will hold once pending writes drain.
func (o *Value[T]) latest() T {
	if n := len(o.pending); n > 0 {
		return o.pending[n-1]
	}
	return o.v
}

// Subscribe registers fn to be called with every new value.
func (o *Value[T]) Subscribe(fn func(T)) Subscription {
	o.nextID++
	h := &handler[T]{id: o.nextID, fn: fn, v: o}
	o.subs = append(o.subs, h)
	return h
}

// Subscribers returns the number of live subscriptions.
func (o *Value[T]) Subscribers() int {
	return len(o.subs)
}

func (o *Value[T]) notify() {
	o.notifying = true
	defer func() { o.notifying = false }()

	for {
		// Copy so handlers can dispose themselves mid-notification.
		subs := make([]*handler[T], len(o.subs))
		copy(subs, o.subs)
		for _, h := range subs {
			if h.v != nil {
				h.fn(o.v)
			}
		}
		advanced := false
		for len(o.pending) > 0 {
			next := o.pending[0]
			o.pending = o.pending[1:]
			if o.equal != nil && o.equal(o.v, next) {
				continue
			}
			o.v = next
			advanced = true
			break
		}
		if !advanced {
			return
		}
	}
}

func (o *Value[T]) remove(id int) {
	for i, h := range o.subs {
		if h.id == id {
			o.subs = append(o.subs[:i], o.subs[i+1:]...)
			return
		}
	}
}

// Group collects subscriptions so an owner can release them together.
type Group struct {
	subs []Subscription
}

// Add records s for later disposal.
func (g *Group) Add(s Subscription) {
	g.subs = append(g.subs, s)
}

// Len returns the number of held subscriptions.
func (g *Group) Len() int {
	return len(g.subs)
}

// Dispose releases every held subscription.
func (g *Group) Dispose() {
	for _, s := range g.subs {
		s.Dispose()
	}
	g.subs = nil
}
