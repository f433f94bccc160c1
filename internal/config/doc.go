// Package config loads, normalizes, and validates mediabridge configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and derives the worker pool size from the
// host when none is configured. The Config type centralizes every knob the
// CLI and pool need, so downstream code receives sanitized paths, canonical
// log formats, and clear validation errors.
package config
