package testsupport

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"mediabridge/internal/worker"
)

var fakePID atomic.Int32

// Script describes the behavior of one fake worker process.
type Script struct {
	// Handshake is the first line emitted after launch. Empty means the
	// default ready line; NoHandshake suppresses it entirely.
	Handshake   string
	NoHandshake bool
	// ExitBeforeHandshake terminates the process immediately after launch.
	ExitBeforeHandshake bool
	// LaunchErr fails the launch itself.
	LaunchErr error
	// Respond computes the response lines for a command. Returning ok=false
	// simulates a worker that never answers. Nil uses a responder that
	// answers every command with a bare success terminal.
	Respond func(action string, command []byte) (lines []string, ok bool)
}

// FakeLauncher hands out scripted in-memory worker processes.
type FakeLauncher struct {
	mu      sync.Mutex
	scripts []Script
	procs   []*FakeProcess
}

// NewFakeLauncher queues one script per expected launch; the last script
// repeats for any further launches.
func NewFakeLauncher(scripts ...Script) *FakeLauncher {
	if len(scripts) == 0 {
		scripts = []Script{{}}
	}
	return &FakeLauncher{scripts: scripts}
}

// Launch implements worker.Launcher.
func (l *FakeLauncher) Launch(ctx context.Context, cmd worker.Command) (worker.Process, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	script := l.scripts[min(len(l.procs), len(l.scripts)-1)]
	if script.LaunchErr != nil {
		l.procs = append(l.procs, nil)
		return nil, script.LaunchErr
	}
	proc := newFakeProcess(script)
	l.procs = append(l.procs, proc)
	return proc, nil
}

// Launches returns how many launches were attempted.
func (l *FakeLauncher) Launches() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.procs)
}

// Proc returns the i-th launched process, or nil for failed launches.
func (l *FakeLauncher) Proc(i int) *FakeProcess {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i < 0 || i >= len(l.procs) {
		return nil
	}
	return l.procs[i]
}

// ProcByPID finds a launched process by its fake pid.
func (l *FakeLauncher) ProcByPID(pid int) *FakeProcess {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, proc := range l.procs {
		if proc != nil && proc.pid == pid {
			return proc
		}
	}
	return nil
}

// FakeProcess is an in-memory worker.Process driven by a Script.
type FakeProcess struct {
	script Script
	pid    int

	stdinR  *io.PipeReader
	stdinW  *io.PipeWriter
	stdoutR *io.PipeReader
	stdoutW *io.PipeWriter

	done     chan struct{}
	termOnce sync.Once
}

func newFakeProcess(script Script) *FakeProcess {
	stdinR, stdinW := io.Pipe()
	stdoutR, stdoutW := io.Pipe()
	p := &FakeProcess{
		script:  script,
		pid:     int(fakePID.Add(1)) + 40000,
		stdinR:  stdinR,
		stdinW:  stdinW,
		stdoutR: stdoutR,
		stdoutW: stdoutW,
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *FakeProcess) Stdin() io.Writer      { return p.stdinW }
func (p *FakeProcess) Stdout() io.Reader     { return p.stdoutR }
func (p *FakeProcess) PID() int              { return p.pid }
func (p *FakeProcess) Done() <-chan struct{} { return p.done }

func (p *FakeProcess) Alive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

func (p *FakeProcess) Signal(sig os.Signal) error { return nil }

// Kill terminates the fake process, closing both stream pairs.
func (p *FakeProcess) Kill() error {
	p.terminate()
	return nil
}

func (p *FakeProcess) terminate() {
	p.termOnce.Do(func() {
		_ = p.stdoutW.Close()
		_ = p.stdinR.Close()
		_ = p.stdinW.Close()
		close(p.done)
	})
}

// EmitLine writes a raw line on the fake worker's stdout, bypassing the
// scripted responder.
func (p *FakeProcess) EmitLine(line string) {
	_, _ = fmt.Fprintln(p.stdoutW, line)
}

func (p *FakeProcess) run() {
	if p.script.ExitBeforeHandshake {
		p.terminate()
		return
	}
	if !p.script.NoHandshake {
		handshake := p.script.Handshake
		if handshake == "" {
			handshake = `{"status":"ready"}`
		}
		if _, err := fmt.Fprintln(p.stdoutW, handshake); err != nil {
			p.terminate()
			return
		}
	}

	scanner := bufio.NewScanner(p.stdinR)
	for scanner.Scan() {
		command := append([]byte(nil), scanner.Bytes()...)
		var head struct {
			Action string `json:"action"`
		}
		_ = json.Unmarshal(command, &head)

		if head.Action == "shutdown" {
			_, _ = fmt.Fprintln(p.stdoutW, `{"status":"success"}`)
			break
		}

		lines, ok := p.respond(head.Action, command)
		if !ok {
			continue
		}
		for _, line := range lines {
			if _, err := fmt.Fprintln(p.stdoutW, line); err != nil {
				p.terminate()
				return
			}
		}
	}
	p.terminate()
}

func (p *FakeProcess) respond(action string, command []byte) ([]string, bool) {
	if p.script.Respond != nil {
		return p.script.Respond(action, command)
	}
	return []string{`{"status":"success"}`}, true
}
