package deps

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"mediabridge/internal/config"
	"mediabridge/internal/worker"
)

// Worker resolution sources, in preference order.
const (
	SourceExplicit    = "explicit"
	SourceBundled     = "bundled"
	SourceInterpreter = "interpreter"
)

// Resolution describes the worker command that will be launched and where
// the executable came from.
type Resolution struct {
	Command worker.Command
	Source  string
}

// ResolveWorker determines the worker executable from configuration. An
// explicitly configured binary wins; otherwise the bundled platform binary
// is preferred, with the system interpreter running the worker script as
// the final fallback.
func ResolveWorker(cfg config.Worker) (Resolution, error) {
	if cfg.Binary != "" {
		info, err := os.Stat(cfg.Binary)
		if err != nil {
			return Resolution{}, fmt.Errorf("worker binary %q: %w", cfg.Binary, err)
		}
		if !isExecutable(info) {
			return Resolution{}, fmt.Errorf("worker binary %q is not executable", cfg.Binary)
		}
		return Resolution{
			Command: worker.Command{Binary: cfg.Binary, Dir: cfg.WorkDir, Env: cfg.Env},
			Source:  SourceExplicit,
		}, nil
	}

	if candidate := bundledCandidate(cfg.BundledDir); candidate != "" {
		if info, err := os.Stat(candidate); err == nil && isExecutable(info) {
			return Resolution{
				Command: worker.Command{Binary: candidate, Dir: cfg.WorkDir, Env: cfg.Env},
				Source:  SourceBundled,
			}, nil
		}
	}

	interpreter, err := exec.LookPath(cfg.Interpreter)
	if err != nil {
		return Resolution{}, fmt.Errorf("no bundled worker in %q and interpreter %q not found", cfg.BundledDir, cfg.Interpreter)
	}
	if _, err := os.Stat(cfg.Script); err != nil {
		return Resolution{}, fmt.Errorf("worker script %q: %w", cfg.Script, err)
	}
	return Resolution{
		Command: worker.Command{
			Binary: interpreter,
			Args:   []string{cfg.Script},
			Dir:    cfg.WorkDir,
			Env:    cfg.Env,
		},
		Source: SourceInterpreter,
	}, nil
}

// BundledName returns the platform-specific bundled worker binary name.
func BundledName() string {
	name := "media-worker-" + runtime.GOOS + "-" + runtime.GOARCH
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return name
}

func bundledCandidate(dir string) string {
	if strings.TrimSpace(dir) == "" {
		return ""
	}
	return filepath.Join(dir, BundledName())
}

func isExecutable(info os.FileInfo) bool {
	if info == nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
