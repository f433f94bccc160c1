package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePool(); err != nil {
		return err
	}
	if err := c.validateTimeouts(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePool() error {
	if c.Pool.Workers < 0 {
		return errors.New("pool.workers must be >= 0 (0 derives from host size)")
	}
	if c.Pool.MaxRestarts < 0 {
		return errors.New("pool.max_restarts must be >= 0")
	}
	if c.Pool.RestartBackoffSeconds <= 0 {
		return errors.New("pool.restart_backoff_seconds must be positive")
	}
	if c.Pool.MaxLineKiB <= 0 {
		return errors.New("pool.max_line_kib must be positive")
	}
	return nil
}

func (c *Config) validateTimeouts() error {
	return ensurePositiveMap(map[string]int{
		"timeouts.handshake":      c.Timeouts.Handshake,
		"timeouts.command":        c.Timeouts.Command,
		"timeouts.shutdown_grace": c.Timeouts.ShutdownGrace,
	})
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
