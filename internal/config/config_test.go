package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mediabridge/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantBundled := filepath.Join(tempHome, ".local", "share", "mediabridge", "worker")
	if cfg.Worker.BundledDir != wantBundled {
		t.Fatalf("unexpected bundled dir: got %q want %q", cfg.Worker.BundledDir, wantBundled)
	}
	if cfg.Paths.MediaDir != filepath.Join(tempHome, "media") {
		t.Fatalf("unexpected media dir: %q", cfg.Paths.MediaDir)
	}
	if cfg.Pool.Workers != 0 {
		t.Fatalf("expected auto pool size by default, got %d", cfg.Pool.Workers)
	}
	if cfg.Pool.MaxRestarts != 3 {
		t.Fatalf("unexpected max restarts: %d", cfg.Pool.MaxRestarts)
	}
	if cfg.Timeouts.Command != 300 {
		t.Fatalf("unexpected command timeout: %d", cfg.Timeouts.Command)
	}
	if cfg.Logging.Format != "console" {
		t.Fatalf("unexpected log format: %q", cfg.Logging.Format)
	}
	if len(cfg.Subtitles.Languages) != 1 || cfg.Subtitles.Languages[0] != "en" {
		t.Fatalf("unexpected subtitle languages: %v", cfg.Subtitles.Languages)
	}
}

func TestLoadReadsFileAndNormalizes(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	path := filepath.Join(tempHome, "config.toml")
	body := `
[worker]
binary = "~/bin/media-worker"

[pool]
workers = 2

[subtitles]
languages = ["EN", " fr ", "en", ""]

[logging]
level = "DEBUG"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if resolved != path {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}
	if cfg.Worker.Binary != filepath.Join(tempHome, "bin", "media-worker") {
		t.Fatalf("expected tilde expansion, got %q", cfg.Worker.Binary)
	}
	if cfg.Pool.Workers != 2 {
		t.Fatalf("unexpected workers: %d", cfg.Pool.Workers)
	}
	if got := cfg.Subtitles.Languages; len(got) != 2 || got[0] != "en" || got[1] != "fr" {
		t.Fatalf("expected deduplicated lowercase languages, got %v", got)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected lowercased level, got %q", cfg.Logging.Level)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cases := []struct {
		name string
		body string
		want string
	}{
		{"negative workers", "[pool]\nworkers = -1\n", "pool.workers"},
		{"zero handshake", "[timeouts]\nhandshake = -5\n", "timeouts.handshake"},
		{"bad format", "[logging]\nformat = \"yaml\"\n", "logging.format"},
		{"bad level", "[logging]\nlevel = \"trace\"\n", "logging.level"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tc.body), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			_, _, _, err := config.Load(path)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestDefaultWorkerCount(t *testing.T) {
	cases := []struct {
		name     string
		cpus     int
		memBytes uint64
		want     int
	}{
		{"small laptop", 4, 8 << 30, 2},
		{"memory bound", 16, 4 << 30, 2},
		{"cpu bound", 4, 64 << 30, 2},
		{"big host clamps", 64, 256 << 30, 8},
		{"tiny host floors", 1, 1 << 30, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := config.DefaultWorkerCount(tc.cpus, tc.memBytes); got != tc.want {
				t.Fatalf("DefaultWorkerCount(%d, %d) = %d, want %d", tc.cpus, tc.memBytes, got, tc.want)
			}
		})
	}
}

func TestCreateSampleWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[pool]") {
		t.Fatal("sample config missing [pool] section")
	}
}
