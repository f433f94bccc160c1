// Package bridge drives the protocol exchange with a single worker: write
// one command envelope, then read response lines until the terminal one.
//
// Call blocks for exactly one terminal response. Stream forwards progress
// lines to a callback before returning the terminal response; the pool wraps
// it in a goroutine so callers are never parked beyond dispatch itself.
//
// The bridge assumes exclusive access to its worker for the duration of one
// exchange. It does not arbitrate between callers; that is the pool's job.
// Every response deadline, crash check, and dead-worker kill lives here so a
// caller can never hang on a silent worker.
package bridge
