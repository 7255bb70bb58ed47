// Package tree implements the live form tree that mirrors a server-held form
// session.
//
// The tree is built from the server's initial payload and then kept in sync
// by reconciling each later snapshot against it:
//
//   - Siblings are matched by identity key (uuid when present, else ix).
//     Matched nodes are updated in place so subscriptions and UI state
//     survive; unmatched snapshots create new nodes; nodes missing from the
//     snapshot are dropped and their subscriptions released.
//   - The reconciled child order is the snapshot order.
//   - A question with an answer in flight keeps its local answer unless the
//     snapshot echoes exactly what was submitted.
//   - A question with a server error keeps its displayed answer until a
//     successful response for that question clears the error.
//   - An unchanged choice list is not replaced.
//
// Snapshots pass through the grouping preprocessor before they are applied,
// so questions always live inside tile rows.
//
// Protocol errors (unknown node types, duplicate keys, kind changes) are
// logged and returned; they never abort a pass.
//
// Navigation and validation state (next/previous enablement, required
// notices, errored questions) is derived from the live tree by methods on
// Form and is therefore always consistent with it.
package tree
