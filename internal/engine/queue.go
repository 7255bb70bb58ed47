package engine

import (
	"sync"

	"github.com/roach88/formentry/internal/bus"
	"github.com/roach88/formentry/internal/tree"
)

// EventType distinguishes between event kinds.
type EventType int

const (
	// EventTypeAnswer is a user edit of a question's answer.
	EventTypeAnswer EventType = iota + 1
	// EventTypeClearAnswer is a user clearing a question.
	EventTypeClearAnswer
	// EventTypeFlush is a throttle window releasing a question's answer.
	EventTypeFlush
	// EventTypeNewRepeat asks for a new repeat instance.
	EventTypeNewRepeat
	// EventTypeDeleteRepeat asks to remove a repeat instance.
	EventTypeDeleteRepeat
	// EventTypeNext asks for the next screen.
	EventTypeNext
	// EventTypePrev asks for the previous screen.
	EventTypePrev
	// EventTypeSubmit asks to submit the form.
	EventTypeSubmit
	// EventTypeInbound is a message from the session server.
	EventTypeInbound
	// EventTypeDo runs a function against the form on the loop.
	EventTypeDo
)

var eventTypeNames = map[EventType]string{
	EventTypeAnswer:       "answer",
	EventTypeClearAnswer:  "clear-answer",
	EventTypeFlush:        "flush",
	EventTypeNewRepeat:    "new-repeat",
	EventTypeDeleteRepeat: "delete-repeat",
	EventTypeNext:         "next",
	EventTypePrev:         "prev",
	EventTypeSubmit:       "submit",
	EventTypeInbound:      "inbound",
	EventTypeDo:           "do",
}

func (t EventType) String() string {
	if name, ok := eventTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// Event is one unit of work for the Run loop.
type Event struct {
	Type EventType

	// Ix is the absolute index of the node a user action applies to.
	Ix string
	// Answer is the new value for EventTypeAnswer.
	Answer any
	// Message is the bus message for EventTypeInbound.
	Message bus.Message

	question *tree.Question
	fn       func(*tree.Form)
	done     chan struct{}
}

// eventQueue is a thread-safe FIFO queue for events.
//
// The queue is unbounded: throttle timers and bus handlers enqueue from
// their own goroutines and must never block on the loop.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop.
type eventQueue struct {
	mu     sync.Mutex
	events []Event
	closed bool
	signal chan struct{} // buffered, size 1
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]Event, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an event to the back of the queue.
// Returns false if the queue is closed.
func (q *eventQueue) Enqueue(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.events = append(q.events, e)

	// Non-blocking: the buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front event without blocking.
// Returns (Event{}, false) if the queue is empty.
func (q *eventQueue) TryDequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return Event{}, false
	}

	e := q.events[0]
	// Clear the slot so the backing array does not pin the event's pointers.
	q.events[0] = Event{}

	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}

	return e, true
}

// Wait returns a channel that signals when events may be available.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Closed reports whether Close has been called.
func (q *eventQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close stops further enqueues and wakes any waiter.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
