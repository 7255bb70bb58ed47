// Package journal records form session traffic in SQLite.
//
// A journal holds one row per session (with the initial form payload) and
// one row per bus message, in both directions. Rows are append-only and
// ordered by the engine's logical sequence number, so reading a session back
// and feeding its inbound messages to a fresh engine rebuilds the same form.
//
// The journal is a debugging transcript. The session server stays the
// authority on form state.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Payloads are stored as canonical JSON (wire.MarshalCanonical) so two runs
// of the same scenario produce byte-identical transcripts.
package journal
