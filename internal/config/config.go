package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Worker contains configuration for the external worker process.
type Worker struct {
	// Binary is an explicit worker executable path. When empty the bundled
	// platform binary is used, falling back to the system interpreter.
	Binary string `toml:"binary"`
	// BundledDir is the directory holding per-platform worker binaries
	// shipped alongside mediabridge.
	BundledDir string `toml:"bundled_dir"`
	// Script is the worker entry script passed as the first argument when
	// running under the system interpreter.
	Script string `toml:"script"`
	// Interpreter is the system interpreter used when no binary is found.
	Interpreter string   `toml:"interpreter"`
	WorkDir     string   `toml:"work_dir"`
	Env         []string `toml:"env"`
}

// Pool contains configuration for the worker pool.
type Pool struct {
	// Workers is the pool size. Zero means derive from host CPU and memory.
	Workers               int `toml:"workers"`
	MaxRestarts           int `toml:"max_restarts"`
	RestartBackoffSeconds int `toml:"restart_backoff_seconds"`
	MaxLineKiB            int `toml:"max_line_kib"`
}

// Timeouts contains the protocol deadlines, in seconds.
type Timeouts struct {
	Handshake     int `toml:"handshake"`
	Command       int `toml:"command"`
	ShutdownGrace int `toml:"shutdown_grace"`
}

// Paths contains directory configuration.
type Paths struct {
	MediaDir   string `toml:"media_dir"`
	LogDir     string `toml:"log_dir"`
	HistoryDB  string `toml:"history_db"`
	RuntimeDir string `toml:"runtime_dir"`
}

// Subtitles contains defaults for subtitle actions.
type Subtitles struct {
	Languages []string `toml:"languages"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for mediabridge.
type Config struct {
	Worker    Worker    `toml:"worker"`
	Pool      Pool      `toml:"pool"`
	Timeouts  Timeouts  `toml:"timeouts"`
	Paths     Paths     `toml:"paths"`
	Subtitles Subtitles `toml:"subtitles"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/mediabridge/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("mediabridge.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the runtime writes into.
func (c *Config) EnsureDirectories() error {
	dbDir := filepath.Dir(c.Paths.HistoryDB)
	for _, dir := range []string{c.Paths.LogDir, c.Paths.RuntimeDir, dbDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LockPath returns the single-instance lock file path.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.RuntimeDir, "mediabridge.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
