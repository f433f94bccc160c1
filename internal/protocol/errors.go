package protocol

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrStartup marks worker launch or handshake failures.
	ErrStartup = errors.New("worker startup failure")
	// ErrFraming marks lines that are not valid JSON or streams that close mid-line.
	ErrFraming = errors.New("framing error")
	// ErrTimeout marks commands that produced no terminal response within the deadline.
	ErrTimeout = errors.New("command timeout")
	// ErrCrash marks worker process exits detected during or between I/O operations.
	ErrCrash = errors.New("worker crash")
	// ErrCanceled marks commands abandoned because the caller's context ended.
	ErrCanceled = errors.New("command canceled")
	// ErrSaturated marks dispatch attempts when no idle worker is available.
	ErrSaturated = errors.New("pool saturated")
	// ErrApplication marks well-formed terminal responses carrying status "error".
	ErrApplication = errors.New("application error")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrCrash
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// TransportFault reports whether err is a plumbing failure rather than a
// result the worker itself produced. Callers use this to decide whether a
// retry on a fresh worker could make sense.
func TransportFault(err error) bool {
	switch {
	case errors.Is(err, ErrStartup), errors.Is(err, ErrFraming),
		errors.Is(err, ErrTimeout), errors.Is(err, ErrCrash):
		return true
	default:
		return false
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "bridge failure"
	}
	return strings.Join(parts, ": ")
}
