package types

import (
	"errors"
	"fmt"
	"time"
)

// Error taxonomy shared by every command. Callers wrap these with %w and
// test with errors.Is.
var (
	ErrNotFound            = errors.New("not found")
	ErrNetwork             = errors.New("network error")
	ErrVersionNotFound     = errors.New("version not found")
	ErrPlatformUnsupported = errors.New("platform unsupported")
	ErrCorruptArtifact     = errors.New("corrupt artifact")
	ErrAlreadyRunning      = errors.New("already running")
	ErrTimedOut            = errors.New("timed out")
	ErrIOFailure           = errors.New("io failure")
	ErrNotInstalled        = errors.New("toolchain not installed")
	ErrStopTimeout         = errors.New("process did not stop within grace period")
	ErrProcessExited       = errors.New("process exited")
)

// TimedOutError reports a readiness wait that ran out of time
type TimedOutError struct {
	Endpoint string
	Timeout  time.Duration
	Last     string
}

func (e *TimedOutError) Error() string {
	msg := fmt.Sprintf("timed out after %s waiting for %s to become ready", e.Timeout, e.Endpoint)
	if e.Last != "" {
		msg += " (last check: " + e.Last + ")"
	}
	return msg
}

func (e *TimedOutError) Unwrap() error {
	return ErrTimedOut
}

// IOError wraps a filesystem failure so it matches ErrIOFailure while keeping
// the underlying error visible to errors.Is/As.
func IOError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &ioError{op: op, err: err}
}

type ioError struct {
	op  string
	err error
}

func (e *ioError) Error() string {
	return e.op + ": " + e.err.Error()
}

func (e *ioError) Unwrap() []error {
	return []error{ErrIOFailure, e.err}
}
