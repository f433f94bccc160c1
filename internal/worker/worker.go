package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mediabridge/internal/logging"
	"mediabridge/internal/protocol"
	"mediabridge/internal/transport"
)

// State is a worker lifecycle phase.
type State string

const (
	StateStarting State = "starting"
	StateReady    State = "ready"
	StateBusy     State = "busy"
	StateIdle     State = "idle"
	StateDead     State = "dead"
)

// Available reports whether the worker can accept a command.
func (s State) Available() bool { return s == StateReady || s == StateIdle }

// Option configures a Worker.
type Option func(*Worker)

// WithLogger attaches a logger; a no-op logger is used otherwise.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithMaxLineBytes bounds response line length on the worker's transport.
func WithMaxLineBytes(limit int) Option {
	return func(w *Worker) {
		if limit > 0 {
			w.maxLine = limit
		}
	}
}

// Worker couples one subprocess with its transport and lifecycle state.
type Worker struct {
	id       int
	launcher Launcher
	cmd      Command
	logger   *slog.Logger
	maxLine  int

	mu           sync.Mutex
	state        State
	proc         Process
	conn         *transport.Conn
	current      protocol.Action
	lastActivity time.Time
	restarts     int
}

// Snapshot is a point-in-time view of a worker for status reporting.
type Snapshot struct {
	ID           int
	State        State
	PID          int
	Action       protocol.Action
	Restarts     int
	LastActivity time.Time
}

// New constructs an unstarted worker.
func New(id int, launcher Launcher, cmd Command, opts ...Option) *Worker {
	w := &Worker{
		id:       id,
		launcher: launcher,
		cmd:      cmd,
		logger:   logging.NewNop(),
		maxLine:  transport.DefaultMaxLineBytes,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// ID returns the pool slot index.
func (w *Worker) ID() int { return w.id }

// Start launches the subprocess and consumes the ready handshake. Any other
// first line, a handshake timeout, or an early exit marks the worker dead and
// returns a startup failure.
func (w *Worker) Start(ctx context.Context, handshakeTimeout time.Duration) error {
	w.mu.Lock()
	if w.state == StateBusy {
		w.mu.Unlock()
		return fmt.Errorf("worker %d: start while busy", w.id)
	}
	w.state = StateStarting
	w.mu.Unlock()

	proc, err := w.launcher.Launch(ctx, w.cmd)
	if err != nil {
		w.markDead(nil)
		return protocol.Wrap(protocol.ErrStartup, "worker", "launch", w.cmd.Binary, err)
	}
	conn := transport.New(proc.Stdout(), proc.Stdin(), transport.WithMaxLineBytes(w.maxLine))

	w.mu.Lock()
	w.proc = proc
	w.conn = conn
	w.mu.Unlock()

	line, err := awaitLine(conn, handshakeTimeout)
	if err != nil {
		w.markDead(proc)
		return protocol.Wrap(protocol.ErrStartup, "worker", "handshake", "", err)
	}
	if err := protocol.ParseHandshake(line); err != nil {
		w.markDead(proc)
		return err
	}

	w.mu.Lock()
	w.state = StateReady
	w.lastActivity = time.Now()
	w.mu.Unlock()
	w.logger.Debug("worker ready",
		logging.Int("worker", w.id),
		logging.Int("pid", proc.PID()))
	return nil
}

// Restart counts a respawn attempt and runs the start protocol again.
func (w *Worker) Restart(ctx context.Context, handshakeTimeout time.Duration) error {
	w.mu.Lock()
	w.restarts++
	attempt := w.restarts
	w.mu.Unlock()
	w.logger.Info("restarting worker",
		logging.Int("worker", w.id),
		logging.Int("attempt", attempt))
	return w.Start(ctx, handshakeTimeout)
}

// BeginCommand transitions an available worker to busy. It is the single
// choke point that upholds the one-command-per-worker invariant.
func (w *Worker) BeginCommand(action protocol.Action) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.state.Available() {
		return fmt.Errorf("worker %d: dispatch in state %s", w.id, w.state)
	}
	w.state = StateBusy
	w.current = action
	w.lastActivity = time.Now()
	return nil
}

// FinishCommand returns a busy worker to rotation after its terminal
// response. Dead workers stay dead.
func (w *Worker) FinishCommand() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StateBusy {
		return
	}
	w.state = StateIdle
	w.current = ""
	w.lastActivity = time.Now()
}

// MarkDead force-kills the subprocess and removes the worker from rotation.
// The in-flight command, if any, is abandoned; killing avoids a zombie
// holding encoder resources.
func (w *Worker) MarkDead() {
	w.mu.Lock()
	proc := w.proc
	w.mu.Unlock()
	w.markDead(proc)
}

func (w *Worker) markDead(proc Process) {
	if proc != nil {
		_ = proc.Kill()
	}
	w.mu.Lock()
	w.state = StateDead
	w.current = ""
	w.mu.Unlock()
}

// State returns the current lifecycle state.
func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Restarts returns how many respawn attempts this worker has consumed.
func (w *Worker) Restarts() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.restarts
}

// Alive reports whether the subprocess is running.
func (w *Worker) Alive() bool {
	w.mu.Lock()
	proc := w.proc
	w.mu.Unlock()
	return proc != nil && proc.Alive()
}

// Conn exposes the worker's transport. Callers must hold the busy lease.
func (w *Worker) Conn() *transport.Conn {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn
}

// ProcessDone returns a channel closed when the subprocess exits, or nil if
// it was never launched.
func (w *Worker) ProcessDone() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.proc == nil {
		return nil
	}
	return w.proc.Done()
}

// Snapshot captures the worker's state for status rendering.
func (w *Worker) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	snap := Snapshot{
		ID:           w.id,
		State:        w.state,
		Action:       w.current,
		Restarts:     w.restarts,
		LastActivity: w.lastActivity,
	}
	if w.proc != nil {
		snap.PID = w.proc.PID()
	}
	return snap
}

// Touch records response activity on the worker.
func (w *Worker) Touch() {
	w.mu.Lock()
	w.lastActivity = time.Now()
	w.mu.Unlock()
}

// awaitLine reads one line with a deadline. On timeout the caller is expected
// to kill the process, which unblocks the abandoned read.
func awaitLine(conn *transport.Conn, timeout time.Duration) (json.RawMessage, error) {
	type result struct {
		raw json.RawMessage
		err error
	}
	ch := make(chan result, 1)
	go func() {
		raw, err := conn.ReadLine()
		ch <- result{raw: raw, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case res := <-ch:
		return res.raw, res.err
	case <-timer.C:
		return nil, context.DeadlineExceeded
	}
}
