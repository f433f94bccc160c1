package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// Command describes how to launch the worker binary.
type Command struct {
	Binary string
	Args   []string
	Dir    string
	Env    []string
}

// Process is a launched worker subprocess.
type Process interface {
	Stdin() io.Writer
	Stdout() io.Reader
	PID() int
	// Alive reports whether the process has not yet exited.
	Alive() bool
	// Signal delivers sig, tolerating an already-exited process.
	Signal(sig os.Signal) error
	// Kill force-terminates the process and releases its resources.
	Kill() error
	// Done is closed when the process has exited.
	Done() <-chan struct{}
}

// Launcher starts worker processes. Tests inject scripted fakes.
type Launcher interface {
	Launch(ctx context.Context, cmd Command) (Process, error)
}

// ExecLauncher launches real subprocesses via os/exec.
type ExecLauncher struct{}

// Launch starts the command with piped stdio and begins reaping it in the
// background.
func (ExecLauncher) Launch(ctx context.Context, cmd Command) (Process, error) {
	if cmd.Binary == "" {
		return nil, errors.New("launch: binary required")
	}
	execCmd := exec.CommandContext(ctx, cmd.Binary, cmd.Args...) //nolint:gosec
	execCmd.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		execCmd.Env = append(os.Environ(), cmd.Env...)
	}
	stdin, err := execCmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("launch: stdin pipe: %w", err)
	}
	stdout, err := execCmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("launch: stdout pipe: %w", err)
	}
	execCmd.Stderr = os.Stderr
	if err := execCmd.Start(); err != nil {
		return nil, fmt.Errorf("launch %s: %w", cmd.Binary, err)
	}

	proc := &execProcess{
		cmd:    execCmd,
		stdin:  stdin,
		stdout: stdout,
		done:   make(chan struct{}),
	}
	go func() {
		proc.waitErr = execCmd.Wait()
		close(proc.done)
	}()
	return proc, nil
}

type execProcess struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser

	done    chan struct{}
	waitErr error

	killOnce sync.Once
}

func (p *execProcess) Stdin() io.Writer      { return p.stdin }
func (p *execProcess) Stdout() io.Reader     { return p.stdout }
func (p *execProcess) PID() int              { return p.cmd.Process.Pid }
func (p *execProcess) Done() <-chan struct{} { return p.done }

func (p *execProcess) Alive() bool {
	select {
	case <-p.done:
		return false
	default:
	}
	// Signal 0 probes existence without delivering anything; ESRCH means the
	// process is gone even if the reaper goroutine has not observed it yet.
	if err := unix.Kill(p.cmd.Process.Pid, 0); err != nil {
		return !errors.Is(err, unix.ESRCH)
	}
	return true
}

func (p *execProcess) Signal(sig os.Signal) error {
	err := p.cmd.Process.Signal(sig)
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

func (p *execProcess) Kill() error {
	var err error
	p.killOnce.Do(func() {
		_ = p.stdin.Close()
		if killErr := p.cmd.Process.Signal(syscall.SIGKILL); killErr != nil && !errors.Is(killErr, os.ErrProcessDone) {
			err = killErr
		}
	})
	return err
}
