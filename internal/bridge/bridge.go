package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"mediabridge/internal/logging"
	"mediabridge/internal/protocol"
	"mediabridge/internal/worker"
)

// DefaultResponseTimeout bounds the wait for each response line. Media
// operations are slow, so the deadline is generous; progress lines reset it.
const DefaultResponseTimeout = 300 * time.Second

// DefaultStopGrace bounds the wait for a worker to acknowledge a stop
// request after cancellation before its process is killed.
const DefaultStopGrace = 2 * time.Second

// Option configures a Bridge.
type Option func(*Bridge)

// WithResponseTimeout overrides the per-line response deadline.
func WithResponseTimeout(d time.Duration) Option {
	return func(b *Bridge) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithStopGrace overrides the stop-acknowledgement deadline.
func WithStopGrace(d time.Duration) Option {
	return func(b *Bridge) {
		if d > 0 {
			b.stopGrace = d
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// Bridge owns the request/response protocol over one worker.
type Bridge struct {
	w         *worker.Worker
	timeout   time.Duration
	stopGrace time.Duration
	logger    *slog.Logger
}

// New wraps a worker in a bridge.
func New(w *worker.Worker, opts ...Option) *Bridge {
	b := &Bridge{
		w:         w,
		timeout:   DefaultResponseTimeout,
		stopGrace: DefaultStopGrace,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Worker returns the owned worker.
func (b *Bridge) Worker() *worker.Worker { return b.w }

// Call sends one command and blocks until its terminal response, a timeout,
// or a worker fault.
func (b *Bridge) Call(ctx context.Context, env protocol.Envelope) (*protocol.Terminal, error) {
	return b.exchange(ctx, env, nil)
}

// Stream sends one command and forwards progress responses to onProgress
// until the terminal response arrives. The terminal response is returned, not
// passed to the callback; no callbacks are delivered after Stream returns.
func (b *Bridge) Stream(ctx context.Context, env protocol.Envelope, onProgress func(protocol.Progress)) (*protocol.Terminal, error) {
	if onProgress == nil {
		return nil, fmt.Errorf("bridge: stream requires a progress callback")
	}
	return b.exchange(ctx, env, onProgress)
}

// Notify writes an envelope without awaiting any response. Used for the
// out-of-band stop request against a busy worker and for best-effort shutdown.
func (b *Bridge) Notify(env protocol.Envelope) error {
	conn := b.w.Conn()
	if conn == nil {
		return protocol.Wrap(protocol.ErrCrash, "bridge", string(env.Action), "worker never started", nil)
	}
	return conn.WriteLine(env)
}

type lineResult struct {
	raw json.RawMessage
	err error
}

// terminalLine reports whether a response line carries a top-level status
// field and therefore ends its exchange.
func terminalLine(raw json.RawMessage) bool {
	var probe struct {
		Status json.RawMessage `json:"status"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return false
	}
	return probe.Status != nil
}

func (b *Bridge) exchange(ctx context.Context, env protocol.Envelope, onProgress func(protocol.Progress)) (*protocol.Terminal, error) {
	w := b.w
	if err := w.BeginCommand(env.Action); err != nil {
		return nil, err
	}
	if !w.Alive() {
		w.MarkDead()
		return nil, protocol.Wrap(protocol.ErrCrash, "bridge", string(env.Action), "worker process not running", nil)
	}
	conn := w.Conn()
	if err := conn.WriteLine(env); err != nil {
		w.MarkDead()
		return nil, protocol.Wrap(protocol.ErrCrash, "bridge", string(env.Action), "write command", err)
	}

	stop := make(chan struct{})
	defer close(stop)
	results := make(chan lineResult)
	go func() {
		// The goroutine must not outlive the exchange on a live worker: a
		// second reader on the same buffered stream would race it for the
		// next command's response. A status line ends the exchange, so the
		// reader retires itself there; on the abandonment paths (timeout,
		// cancel) the worker is killed, which unblocks the pending read.
		for {
			raw, err := conn.ReadLine()
			last := err != nil || terminalLine(raw)
			select {
			case results <- lineResult{raw: raw, err: err}:
			case <-stop:
				return
			}
			if last {
				return
			}
		}
	}()

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	for {
		select {
		case res := <-results:
			term, err := b.handleLine(env, res, onProgress)
			if err != nil {
				return nil, err
			}
			if term != nil {
				return term, nil
			}
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(b.timeout)

		case <-timer.C:
			w.MarkDead()
			b.logger.Warn("command timed out",
				logging.String("action", string(env.Action)),
				logging.Duration("timeout", b.timeout),
				logging.Int("worker", w.ID()))
			return nil, protocol.Wrap(protocol.ErrTimeout, "bridge", string(env.Action),
				fmt.Sprintf("no response within %s", b.timeout), nil)

		case <-ctx.Done():
			return nil, b.abandon(ctx.Err(), env, results)
		}
	}
}

// abandon handles caller cancellation of an in-flight command. The worker is
// asked to stop first; one that acknowledges with a terminal line survives
// for the next dispatch, one that keeps streaming or goes silent is killed.
func (b *Bridge) abandon(cause error, env protocol.Envelope, results <-chan lineResult) error {
	w := b.w
	canceled := func(note string) error {
		return protocol.Wrap(protocol.ErrCanceled, "bridge", string(env.Action), note, cause)
	}

	stopEnv, err := protocol.NewEnvelope(protocol.Stop{})
	if err == nil {
		err = b.Notify(stopEnv)
	}
	if err != nil {
		w.MarkDead()
		return canceled("abandoned")
	}

	timer := time.NewTimer(b.stopGrace)
	defer timer.Stop()
	for {
		select {
		case res := <-results:
			term, herr := b.handleLine(env, res, nil)
			if herr != nil {
				return canceled("worker lost during stop")
			}
			if term != nil {
				return canceled("stopped")
			}

		case <-timer.C:
			w.MarkDead()
			b.logger.Warn("stop request ignored",
				logging.String("action", string(env.Action)),
				logging.Int("worker", w.ID()))
			return canceled("stop request ignored")
		}
	}
}

// handleLine processes one response line. It returns a non-nil terminal when
// the exchange is complete, nil/nil for consumed progress lines.
func (b *Bridge) handleLine(env protocol.Envelope, res lineResult, onProgress func(protocol.Progress)) (*protocol.Terminal, error) {
	w := b.w
	if res.err != nil {
		w.MarkDead()
		if errors.Is(res.err, protocol.ErrFraming) {
			return nil, res.err
		}
		if errors.Is(res.err, io.EOF) {
			return nil, protocol.Wrap(protocol.ErrCrash, "bridge", string(env.Action), "worker closed its stream", nil)
		}
		return nil, protocol.Wrap(protocol.ErrCrash, "bridge", string(env.Action), "read response", res.err)
	}

	w.Touch()
	term, prog, err := protocol.Classify(res.raw)
	if err != nil {
		w.MarkDead()
		return nil, err
	}
	if prog != nil {
		if onProgress != nil {
			onProgress(*prog)
		}
		return nil, nil
	}
	w.FinishCommand()
	return term, nil
}
