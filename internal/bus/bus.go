// Package bus is the in-process message channel between the form engine and
// the session server collaborator.
//
// Topics are plain strings scoped by prefix: "formplayer." for messages the
// engine sends, "session." for messages the engine receives. Delivery is
// synchronous, in subscription order, on the sender's goroutine.
package bus

import (
	"log/slog"
	"slices"
	"strings"
	"sync"
)

// Topic prefixes.
const (
	OutboundPrefix = "formplayer."
	InboundPrefix  = "session."
)

// Outbound topics (engine to server).
const (
	TopicAnswer       = OutboundPrefix + "answer"
	TopicClearAnswer  = OutboundPrefix + "clear-answer"
	TopicNewRepeat    = OutboundPrefix + "new-repeat"
	TopicDeleteRepeat = OutboundPrefix + "delete-repeat"
	TopicNextIndex    = OutboundPrefix + "next-index"
	TopicPrevIndex    = OutboundPrefix + "prev-index"
	TopicSubmitAll    = OutboundPrefix + "submit-all"
	TopicDirty        = OutboundPrefix + "dirty"
)

// Inbound topics (server to engine).
const (
	TopicReconcile    = InboundPrefix + "reconcile"
	TopicBlock        = InboundPrefix + "block"
	TopicSubmitResult = InboundPrefix + "submit-result"
	TopicAnswerFailed = InboundPrefix + "answer-failed"
	TopicNavigated    = InboundPrefix + "navigated"
)

// Message is one sent message.
type Message struct {
	Topic   string
	Payload any
}

// Handler receives a message.
type Handler func(Message)

// Channel is a named-message channel.
type Channel interface {
	Send(topic string, payload any)
	Subscribe(topic string, h Handler) (unsubscribe func())
}

// Bus is the in-process Channel.
//
// Thread-safety: Send and Subscribe are safe for concurrent use. Handlers
// run without the bus lock held and may send or subscribe.
type Bus struct {
	mu     sync.Mutex
	subs   map[string][]subscription
	nextID int
}

type subscription struct {
	id int
	h  Handler
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[string][]subscription)}
}

// Send delivers payload to every handler subscribed to topic. Handlers
// subscribed to a prefix ending in "." also receive it.
func (b *Bus) Send(topic string, payload any) {
	handlers := b.handlers(topic)
	if len(handlers) == 0 {
		slog.Debug("bus message without subscribers", "topic", topic)
		return
	}
	msg := Message{Topic: topic, Payload: payload}
	for _, h := range handlers {
		h(msg)
	}
}

func (b *Bus) handlers(topic string) []Handler {
	b.mu.Lock()
	defer b.mu.Unlock()

	var matched []subscription
	for key, subs := range b.subs {
		if key == topic || (strings.HasSuffix(key, ".") && strings.HasPrefix(topic, key)) {
			matched = append(matched, subs...)
		}
	}
	// Deliver in subscription order regardless of map order.
	slices.SortFunc(matched, func(a, c subscription) int { return a.id - c.id })

	out := make([]Handler, len(matched))
	for i, s := range matched {
		out[i] = s.h
	}
	return out
}

// Subscribe registers h for topic. A topic ending in "." subscribes to every
// topic with that prefix. The returned function removes the subscription.
func (b *Bus) Subscribe(topic string, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs[topic] = append(b.subs[topic], subscription{id: id, h: h})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.subs[topic] = slices.DeleteFunc(b.subs[topic], func(s subscription) bool { return s.id == id })
		if len(b.subs[topic]) == 0 {
			delete(b.subs, topic)
		}
	}
}

// Unsubscribe removes every handler for topic, or for every topic under it
// when topic ends in ".".
func (b *Bus) Unsubscribe(topic string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key := range b.subs {
		if key == topic || (strings.HasSuffix(topic, ".") && strings.HasPrefix(key, topic)) {
			delete(b.subs, key)
		}
	}
}
