// Package history persists dispatched command outcomes in SQLite.
//
// Every command the pool sends to a worker is recorded with its request
// identifier, action, worker slot, timing, and final status. The CLI reads
// this log back for the history command and for aggregate stats.
package history
