// Package engine runs a form entry session.
//
// The engine owns the reconciled form tree and is the only code that mutates
// it. It turns user actions into outbound requests on the bus and applies the
// session server's inbound messages to the tree.
//
// ARCHITECTURE:
//
// Single-Writer Event Loop:
// User actions, throttle flushes and inbound messages are all queued as
// events and processed one at a time. This ensures:
//   - A reconcile finishes before the next edit or response is looked at
//   - Derived state read inside a handler is never half-updated
//   - A journaled session replays to the same tree
//
// Event Processing Flow:
//  1. Answer / ClearAnswer update the question and publish a dirty signal
//  2. The per-question throttle enqueues a flush at most once per window
//  3. The flush publishes the answer request and marks the answer pending
//  4. The server's reconcile message is applied to the tree
//  5. An edit made while its request was out is flushed again
//
// CRITICAL PATTERNS:
//
// Logical Clock:
// Every journaled message is stamped with a monotonic seq from Clock.Next().
// Wall time only drives throttle windows and never orders messages.
//
// One Request Per Question:
// A question has at most one answer request in flight. Responses are matched
// to their request by request id; a response whose seq_id is older than one
// already applied is dropped.
package engine
