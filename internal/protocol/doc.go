// Package protocol defines the line-oriented JSON vocabulary spoken between
// the bridge and the media worker process.
//
// Every exchange is one command envelope written to the worker followed by
// zero or more progress responses and exactly one terminal response read
// back. Payloads are decoded once at the boundary into typed structs keyed by
// the action tag; unrecognized response fields are preserved verbatim so newer
// workers can ship extra result data without breaking older callers.
//
// The package also owns the shared failure taxonomy (startup, framing,
// timeout, crash, saturation, application) used by the worker, bridge, and
// pool layers to classify faults.
package protocol
