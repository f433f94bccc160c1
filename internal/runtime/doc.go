// Package runtime assembles the worker pool, history store, and instance
// lock into a single lifecycle the CLI can start and stop.
package runtime
