// Package testutil provides deterministic time and id sources for tests.
//
// ManualClock drives throttle windows without sleeping; SequentialIDs makes
// session and request ids reproducible so transcripts can be compared byte
// for byte.
package testutil
