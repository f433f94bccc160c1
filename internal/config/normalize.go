package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizeWorker(); err != nil {
		return err
	}
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizePool()
	c.normalizeSubtitles()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeWorker() error {
	var err error
	if c.Worker.Binary = strings.TrimSpace(c.Worker.Binary); c.Worker.Binary != "" {
		if c.Worker.Binary, err = expandPath(c.Worker.Binary); err != nil {
			return fmt.Errorf("worker.binary: %w", err)
		}
	}
	if c.Worker.BundledDir, err = expandPath(c.Worker.BundledDir); err != nil {
		return fmt.Errorf("worker.bundled_dir: %w", err)
	}
	if c.Worker.Script, err = expandPath(c.Worker.Script); err != nil {
		return fmt.Errorf("worker.script: %w", err)
	}
	c.Worker.Interpreter = strings.TrimSpace(c.Worker.Interpreter)
	if c.Worker.Interpreter == "" {
		c.Worker.Interpreter = defaultInterpreter
	}
	if c.Worker.WorkDir = strings.TrimSpace(c.Worker.WorkDir); c.Worker.WorkDir != "" {
		if c.Worker.WorkDir, err = expandPath(c.Worker.WorkDir); err != nil {
			return fmt.Errorf("worker.work_dir: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.MediaDir, err = expandPath(c.Paths.MediaDir); err != nil {
		return fmt.Errorf("paths.media_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.HistoryDB, err = expandPath(c.Paths.HistoryDB); err != nil {
		return fmt.Errorf("paths.history_db: %w", err)
	}
	if strings.TrimSpace(c.Paths.RuntimeDir) == "" {
		c.Paths.RuntimeDir = defaultRuntimeDir
	}
	if c.Paths.RuntimeDir, err = expandPath(c.Paths.RuntimeDir); err != nil {
		return fmt.Errorf("paths.runtime_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizePool() {
	if c.Pool.MaxRestarts == 0 {
		c.Pool.MaxRestarts = defaultMaxRestarts
	}
	if c.Pool.RestartBackoffSeconds == 0 {
		c.Pool.RestartBackoffSeconds = defaultRestartBackoffSeconds
	}
	if c.Pool.MaxLineKiB == 0 {
		c.Pool.MaxLineKiB = defaultMaxLineKiB
	}
}

func (c *Config) normalizeSubtitles() {
	if len(c.Subtitles.Languages) == 0 {
		c.Subtitles.Languages = []string{"en"}
		return
	}
	langs := make([]string, 0, len(c.Subtitles.Languages))
	seen := make(map[string]struct{}, len(c.Subtitles.Languages))
	for _, lang := range c.Subtitles.Languages {
		normalized := strings.ToLower(strings.TrimSpace(lang))
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		langs = append(langs, normalized)
	}
	if len(langs) == 0 {
		langs = []string{"en"}
	}
	c.Subtitles.Languages = langs
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
