package runtime_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"mediabridge/internal/config"
	"mediabridge/internal/logging"
	"mediabridge/internal/protocol"
	"mediabridge/internal/runtime"
	"mediabridge/internal/testsupport"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)

	binary := filepath.Join(home, "media-worker")
	if err := os.WriteFile(binary, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write worker stub: %v", err)
	}

	cfg := config.Default()
	cfg.Worker.Binary = binary
	cfg.Pool.Workers = 2
	cfg.Paths.LogDir = filepath.Join(home, "logs")
	cfg.Paths.HistoryDB = filepath.Join(home, "history.db")
	cfg.Paths.RuntimeDir = filepath.Join(home, "run")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config invalid: %v", err)
	}
	return &cfg
}

func TestRuntimeStartDispatchClose(t *testing.T) {
	cfg := testConfig(t)
	launcher := testsupport.NewFakeLauncher(testsupport.Script{Handshake: `{"status":"ready"}`})

	rt, err := runtime.New(cfg, logging.NewNop(), runtime.WithLauncher(launcher))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	ctx := context.Background()
	if err := rt.Start(ctx); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	env, err := protocol.NewEnvelope(protocol.ScanDirectory{Path: "/media"})
	if err != nil {
		t.Fatalf("NewEnvelope returned error: %v", err)
	}
	term, err := rt.Pool().Dispatch(ctx, env)
	if err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}
	if !term.Succeeded() {
		t.Fatalf("expected success, got %#v", term)
	}

	if err := rt.Close(ctx); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	// The dispatch outcome must be queryable from the history store after
	// the run, so reopen the database.
	reopened, err := runtime.New(cfg, logging.NewNop(), runtime.WithLauncher(launcher))
	if err != nil {
		t.Fatalf("reopen runtime: %v", err)
	}
	defer reopened.Close(ctx)

	jobs, err := reopened.Store().Recent(ctx, 5)
	if err != nil {
		t.Fatalf("Recent returned error: %v", err)
	}
	if len(jobs) != 1 || jobs[0].Status != "success" {
		t.Fatalf("unexpected history: %#v", jobs)
	}
}

func TestRuntimeRejectsSecondInstance(t *testing.T) {
	cfg := testConfig(t)
	launcher := testsupport.NewFakeLauncher(testsupport.Script{Handshake: `{"status":"ready"}`})

	first, err := runtime.New(cfg, logging.NewNop(), runtime.WithLauncher(launcher))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	ctx := context.Background()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	defer first.Close(ctx)

	second, err := runtime.New(cfg, logging.NewNop(), runtime.WithLauncher(launcher))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	defer second.Close(ctx)
	if err := second.Start(ctx); err == nil {
		t.Fatal("expected second instance to fail lock acquisition")
	}
}

func TestRuntimeDerivesWorkerCountWhenUnset(t *testing.T) {
	cfg := testConfig(t)
	cfg.Pool.Workers = 0
	launcher := testsupport.NewFakeLauncher(testsupport.Script{Handshake: `{"status":"ready"}`})

	rt, err := runtime.New(cfg, logging.NewNop(), runtime.WithLauncher(launcher))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	defer rt.Close(context.Background())

	if rt.Workers() < 1 {
		t.Fatalf("expected at least one worker, got %d", rt.Workers())
	}
}
