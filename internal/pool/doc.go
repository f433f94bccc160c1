// Package pool coordinates a fixed set of bridges over worker subprocesses.
//
// Startup launches all workers' handshakes concurrently; a pool with no ready
// worker fails outright, while a partial pool starts degraded with reduced
// concurrency. Dispatch leases exactly one idle worker per command through a
// channel, which makes selection and the idle-to-busy transition atomic under
// concurrent callers. Dead workers are respawned a bounded number of times
// with backoff and then permanently retired.
//
// Shutdown is idempotent: a best-effort shutdown command goes to every
// worker, each process gets a grace period to exit, and stragglers are
// force-killed.
package pool
