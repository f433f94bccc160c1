package pool

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"mediabridge/internal/bridge"
	"mediabridge/internal/logging"
	"mediabridge/internal/protocol"
	"mediabridge/internal/worker"
)

// ErrClosed is returned by dispatch calls after shutdown.
var ErrClosed = errors.New("pool is shut down")

// Entry records the outcome of one dispatched command.
type Entry struct {
	RequestID string
	Action    protocol.Action
	Worker    int
	Started   time.Time
	Finished  time.Time
	Status    string
	Message   string
}

// Recorder receives the outcome of every dispatched command.
type Recorder interface {
	Record(entry Entry)
}

// Option configures a Pool.
type Option func(*Pool)

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithRecorder wires a dispatch outcome recorder.
func WithRecorder(rec Recorder) Option {
	return func(p *Pool) {
		p.recorder = rec
	}
}

// Pool owns N bridges and arbitrates access to their workers.
type Pool struct {
	cfg      Config
	launcher worker.Launcher
	cmd      worker.Command
	logger   *slog.Logger
	recorder Recorder

	bridges []*bridge.Bridge
	idle    chan *bridge.Bridge

	mu      sync.Mutex
	started bool
	closed  bool
	retired int

	closedCh     chan struct{}
	shutdownOnce sync.Once
	reviveWG     sync.WaitGroup
}

// New constructs an unstarted pool.
func New(cfg Config, launcher worker.Launcher, cmd worker.Command, opts ...Option) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	p := &Pool{
		cfg:      cfg,
		launcher: launcher,
		cmd:      cmd,
		logger:   logging.NewNop(),
		idle:     make(chan *bridge.Bridge, cfg.Workers),
		closedCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	for i := 0; i < cfg.Workers; i++ {
		w := worker.New(i, launcher, cmd,
			worker.WithLogger(p.logger),
			worker.WithMaxLineBytes(cfg.MaxLineBytes))
		p.bridges = append(p.bridges, bridge.New(w,
			bridge.WithResponseTimeout(cfg.ResponseTimeout),
			bridge.WithLogger(p.logger)))
	}
	return p, nil
}

// Start launches all workers' handshakes concurrently and returns once every
// worker has resolved to ready or dead. No ready worker is fatal; a partial
// pool runs degraded. Failed workers are not retried during initial start.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return errors.New("pool already started")
	}
	p.started = true
	p.mu.Unlock()

	var wg sync.WaitGroup
	errs := make([]error, len(p.bridges))
	for i, br := range p.bridges {
		wg.Add(1)
		go func(i int, br *bridge.Bridge) {
			defer wg.Done()
			errs[i] = br.Worker().Start(ctx, p.cfg.HandshakeTimeout)
		}(i, br)
	}
	wg.Wait()

	ready := 0
	for i, br := range p.bridges {
		if errs[i] != nil {
			p.logger.Warn("worker failed to start",
				logging.Int("worker", i),
				logging.Error(errs[i]))
			continue
		}
		ready++
		p.idle <- br
	}
	if ready == 0 {
		return protocol.Wrap(protocol.ErrStartup, "pool", "start", "no workers became ready", errors.Join(errs...))
	}
	if ready < len(p.bridges) {
		p.logger.Warn("pool started degraded",
			logging.Int("ready", ready),
			logging.Int("configured", len(p.bridges)))
	} else {
		p.logger.Info("pool started", logging.Int("workers", ready))
	}
	return nil
}

// Dispatch sends a command on the first idle worker, blocking until one frees
// up or ctx expires.
func (p *Pool) Dispatch(ctx context.Context, env protocol.Envelope) (*protocol.Terminal, error) {
	br, err := p.acquire(ctx, true)
	if err != nil {
		return nil, err
	}
	return p.run(ctx, br, env, nil)
}

// TryDispatch is Dispatch without blocking: when no worker is idle it fails
// immediately with a saturation error.
func (p *Pool) TryDispatch(ctx context.Context, env protocol.Envelope) (*protocol.Terminal, error) {
	br, err := p.acquire(ctx, false)
	if err != nil {
		return nil, err
	}
	return p.run(ctx, br, env, nil)
}

// DispatchStream acquires a worker, sends the command, and returns once the
// exchange is underway. Progress responses are forwarded to onProgress from a
// dedicated goroutine; onDone receives the terminal response or the failure,
// exactly once, after the last progress notification.
func (p *Pool) DispatchStream(ctx context.Context, env protocol.Envelope, onProgress func(protocol.Progress), onDone func(*protocol.Terminal, error)) error {
	if onProgress == nil || onDone == nil {
		return errors.New("pool: stream dispatch requires progress and done callbacks")
	}
	br, err := p.acquire(ctx, true)
	if err != nil {
		return err
	}
	go func() {
		term, err := p.run(ctx, br, env, onProgress)
		onDone(term, err)
	}()
	return nil
}

func (p *Pool) acquire(ctx context.Context, wait bool) (*bridge.Bridge, error) {
	if p.isClosed() {
		return nil, ErrClosed
	}
	if !wait {
		select {
		case br := <-p.idle:
			return br, nil
		default:
			return nil, protocol.Wrap(protocol.ErrSaturated, "pool", "dispatch", "no idle worker", nil)
		}
	}
	select {
	case br := <-p.idle:
		return br, nil
	case <-ctx.Done():
		return nil, protocol.Wrap(protocol.ErrSaturated, "pool", "dispatch", "timed out waiting for an idle worker", ctx.Err())
	case <-p.closedCh:
		return nil, ErrClosed
	}
}

func (p *Pool) run(ctx context.Context, br *bridge.Bridge, env protocol.Envelope, onProgress func(protocol.Progress)) (*protocol.Terminal, error) {
	started := time.Now()
	var term *protocol.Terminal
	var err error
	if onProgress != nil {
		term, err = br.Stream(ctx, env, onProgress)
	} else {
		term, err = br.Call(ctx, env)
	}
	p.record(env, br.Worker().ID(), started, term, err)
	p.release(br)
	return term, err
}

// release returns a healthy worker to rotation or hands a dead one to the
// revive loop.
func (p *Pool) release(br *bridge.Bridge) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	if br.Worker().State().Available() {
		p.mu.Unlock()
		p.idle <- br
		return
	}
	p.reviveWG.Add(1)
	p.mu.Unlock()
	go func() {
		defer p.reviveWG.Done()
		p.revive(br)
	}()
}

func (p *Pool) record(env protocol.Envelope, workerID int, started time.Time, term *protocol.Terminal, err error) {
	if p.recorder == nil {
		return
	}
	entry := Entry{
		RequestID: env.RequestID,
		Action:    env.Action,
		Worker:    workerID,
		Started:   started,
		Finished:  time.Now(),
		Status:    outcomeStatus(term, err),
	}
	switch {
	case err != nil:
		entry.Message = err.Error()
	case term != nil:
		entry.Message = term.Message
	}
	p.recorder.Record(entry)
}

func outcomeStatus(term *protocol.Terminal, err error) string {
	switch {
	case err == nil:
		if term != nil {
			return term.Status
		}
		return protocol.StatusSuccess
	case errors.Is(err, protocol.ErrTimeout):
		return "timeout"
	case errors.Is(err, protocol.ErrCanceled):
		return "canceled"
	case errors.Is(err, protocol.ErrCrash):
		return "crash"
	case errors.Is(err, protocol.ErrFraming):
		return "framing"
	case errors.Is(err, protocol.ErrSaturated):
		return "saturated"
	case errors.Is(err, protocol.ErrStartup):
		return "startup"
	default:
		return "failure"
	}
}

func (p *Pool) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Shutdown drains and terminates every worker. It is safe to call from
// multiple goroutines and signal handlers; only the first call does the work.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.shutdownOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		close(p.closedCh)

		// Unblock queued dispatchers and stop revive loops before touching
		// the processes.
		for {
			select {
			case <-p.idle:
				continue
			default:
			}
			break
		}
		p.reviveWG.Wait()

		shutdownEnv, err := protocol.NewEnvelope(protocol.Shutdown{})
		if err == nil {
			for _, br := range p.bridges {
				if err := br.Notify(shutdownEnv); err != nil {
					p.logger.Debug("shutdown notify failed",
						logging.Int("worker", br.Worker().ID()),
						logging.Error(err))
				}
			}
		}

		deadline := time.NewTimer(p.cfg.ShutdownGrace)
		defer deadline.Stop()
		expired := false
		for _, br := range p.bridges {
			w := br.Worker()
			done := w.ProcessDone()
			if done == nil {
				continue
			}
			if expired {
				w.MarkDead()
				<-done
				continue
			}
			select {
			case <-done:
			case <-deadline.C:
				expired = true
				p.logger.Warn("force-killing workers after grace period",
					logging.Int("worker", w.ID()))
				w.MarkDead()
				<-done
			case <-ctx.Done():
				expired = true
				w.MarkDead()
				<-done
			}
		}
		p.logger.Info("pool shut down", logging.Int("workers", len(p.bridges)))
	})
	return nil
}
