package bus

import (
	"slices"
	"sync"
)

// Recorder captures the messages sent under a topic or prefix. It stands in
// for the session server side of the channel in tests and in the CLI.
//
// Thread-safety: Recorder is safe for concurrent use via internal mutex.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
	stop     func()
}

// Record subscribes a new Recorder to topic on ch. An empty topic records
// every outbound message.
func Record(ch Channel, topic string) *Recorder {
	if topic == "" {
		topic = OutboundPrefix
	}
	r := &Recorder{}
	r.stop = ch.Subscribe(topic, func(msg Message) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.messages = append(r.messages, msg)
	})
	return r
}

// Messages returns a copy of everything recorded so far.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.messages)
}

// Topics returns the recorded topics in order.
func (r *Recorder) Topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.messages))
	for i, m := range r.messages {
		out[i] = m.Topic
	}
	return out
}

// On returns the payloads recorded for topic, in order.
func (r *Recorder) On(topic string) []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []any
	for _, m := range r.messages {
		if m.Topic == topic {
			out = append(out, m.Payload)
		}
	}
	return out
}

// Last returns the most recent payload for topic, or nil.
func (r *Recorder) Last(topic string) any {
	on := r.On(topic)
	if len(on) == 0 {
		return nil
	}
	return on[len(on)-1]
}

// Reset forgets the recorded messages.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = nil
}

// Close stops recording.
func (r *Recorder) Close() {
	r.stop()
}
