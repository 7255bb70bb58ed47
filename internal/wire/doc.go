// Package wire defines the JSON shapes exchanged with the form session
// server and the value semantics the engine applies to them.
//
// Tree snapshots arrive as recursive Node values. Answers are untyped JSON
// (scalars for most datatypes, arrays for multiselect and geo), so equality
// and cloning are defined here rather than with ==.
//
// MarshalCanonical produces deterministic JSON (sorted keys, NFC strings) so
// transcripts and golden snapshots compare byte for byte.
package wire
