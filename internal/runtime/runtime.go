package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	gort "runtime"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"mediabridge/internal/config"
	"mediabridge/internal/deps"
	"mediabridge/internal/history"
	"mediabridge/internal/logging"
	"mediabridge/internal/pool"
	"mediabridge/internal/worker"
)

// Runtime owns a started worker pool and its supporting state.
type Runtime struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      *history.Store
	pool       *pool.Pool
	resolution deps.Resolution
	workers    int

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
}

// Option adjusts runtime construction.
type Option func(*options)

type options struct {
	launcher worker.Launcher
}

// WithLauncher overrides the process launcher, used by tests to avoid
// spawning real subprocesses.
func WithLauncher(l worker.Launcher) Option {
	return func(o *options) { o.launcher = l }
}

// New resolves the worker executable and constructs an unstarted runtime.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Runtime, error) {
	if cfg == nil {
		return nil, errors.New("runtime requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	settings := options{launcher: worker.ExecLauncher{}}
	for _, opt := range opts {
		opt(&settings)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	resolution, err := deps.ResolveWorker(cfg.Worker)
	if err != nil {
		return nil, fmt.Errorf("resolve worker: %w", err)
	}

	workers := cfg.Pool.Workers
	if workers == 0 {
		workers = config.DefaultWorkerCount(gort.NumCPU(), totalMemoryBytes())
	}

	store, err := history.Open(cfg.Paths.HistoryDB, logger)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}

	poolCfg := pool.Config{
		Workers:          workers,
		HandshakeTimeout: time.Duration(cfg.Timeouts.Handshake) * time.Second,
		ResponseTimeout:  time.Duration(cfg.Timeouts.Command) * time.Second,
		ShutdownGrace:    time.Duration(cfg.Timeouts.ShutdownGrace) * time.Second,
		MaxRestarts:      cfg.Pool.MaxRestarts,
		RestartBackoff:   time.Duration(cfg.Pool.RestartBackoffSeconds) * time.Second,
		MaxLineBytes:     cfg.Pool.MaxLineKiB * 1024,
	}
	p, err := pool.New(poolCfg, settings.launcher, resolution.Command,
		pool.WithLogger(logger), pool.WithRecorder(store))
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	lockPath := cfg.LockPath()
	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		pool:       p,
		resolution: resolution,
		workers:    workers,
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
	}, nil
}

// Start acquires the instance lock and hands-shakes the pool.
func (r *Runtime) Start(ctx context.Context) error {
	if r.running.Load() {
		return errors.New("runtime already started")
	}

	ok, err := r.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another mediabridge instance holds %s", r.lockPath)
	}

	if err := r.pool.Start(ctx); err != nil {
		_ = r.lock.Unlock()
		return err
	}

	r.running.Store(true)
	r.logger.Info("worker pool started",
		logging.Int("workers", r.workers),
		logging.String("worker_binary", r.resolution.Command.Binary),
		logging.String("worker_source", r.resolution.Source))
	return nil
}

// Pool returns the dispatch surface.
func (r *Runtime) Pool() *pool.Pool { return r.pool }

// Store returns the job history store.
func (r *Runtime) Store() *history.Store { return r.store }

// Resolution reports which worker executable was selected.
func (r *Runtime) Resolution() deps.Resolution { return r.resolution }

// Workers reports the configured pool size.
func (r *Runtime) Workers() int { return r.workers }

// LockPath returns the instance lock file location.
func (r *Runtime) LockPath() string { return r.lockPath }

// Close shuts the pool down, releases the lock, and closes the store.
func (r *Runtime) Close(ctx context.Context) error {
	var errs []error
	if r.running.Load() {
		if err := r.pool.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		if err := r.lock.Unlock(); err != nil {
			r.logger.Warn("release instance lock", logging.Error(err))
		}
		r.running.Store(false)
	}
	if err := r.store.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
