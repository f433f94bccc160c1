// Package worker manages one media worker subprocess: launching it, reading
// the ready handshake, tracking its lifecycle state, and force-killing it
// when a command times out or the pool shuts down.
//
// Process launching sits behind a Launcher interface so lifecycle logic can
// be exercised in tests with scripted in-memory workers instead of real
// subprocesses. The default launcher runs the resolved worker binary with its
// working directory set to the script directory so relative resource paths
// resolve.
//
// A worker never serves two in-flight commands at once; the protocol has no
// per-message correlation and relies on strict request/response ordering on a
// single stream pair. The pool enforces that by leasing each worker to one
// caller at a time, and the state machine here rejects violations outright.
package worker
