package pool

import (
	"errors"
	"time"

	"mediabridge/internal/transport"
)

// Defaults applied by Config.withDefaults.
const (
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultResponseTimeout  = 300 * time.Second
	DefaultShutdownGrace    = 5 * time.Second
	DefaultMaxRestarts      = 3
	DefaultRestartBackoff   = 2 * time.Second
)

// Config carries every pool policy knob explicitly so retry counts and
// deadlines are testable without real process spawning.
type Config struct {
	// Workers is the fixed pool size N.
	Workers int
	// HandshakeTimeout bounds the wait for a worker's ready line.
	HandshakeTimeout time.Duration
	// ResponseTimeout bounds the wait for each response line of a command.
	ResponseTimeout time.Duration
	// ShutdownGrace is how long each worker gets to exit on its own.
	ShutdownGrace time.Duration
	// MaxRestarts bounds respawn attempts before a worker is retired.
	MaxRestarts int
	// RestartBackoff is the first respawn delay; it doubles per attempt.
	RestartBackoff time.Duration
	// MaxLineBytes bounds one response line on the transport.
	MaxLineBytes int
}

// Validate rejects configurations the pool cannot run with.
func (c Config) Validate() error {
	if c.Workers <= 0 {
		return errors.New("pool config: workers must be positive")
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.ResponseTimeout <= 0 {
		c.ResponseTimeout = DefaultResponseTimeout
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = DefaultShutdownGrace
	}
	if c.MaxRestarts <= 0 {
		c.MaxRestarts = DefaultMaxRestarts
	}
	if c.RestartBackoff <= 0 {
		c.RestartBackoff = DefaultRestartBackoff
	}
	if c.MaxLineBytes <= 0 {
		c.MaxLineBytes = transport.DefaultMaxLineBytes
	}
	return c
}
