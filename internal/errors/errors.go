package errors

import (
	"errors"
	"fmt"
	"time"
)

// ProbeError is the base interface for all harness errors.
type ProbeError interface {
	error
	IsProbeError() bool
}

// Compile-time verification that all error types implement ProbeError.
var (
	_ ProbeError = (*ServerNotFoundError)(nil)
	_ ProbeError = (*ConnectionError)(nil)
	_ ProbeError = (*ProcessError)(nil)
	_ ProbeError = (*PayloadDecodeError)(nil)
	_ ProbeError = (*DeadlineError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrReadyTimeout indicates the server never printed its readiness marker
	// within the readiness budget.
	ErrReadyTimeout = errors.New("server not ready before deadline")

	// ErrResponseTimeout indicates no correlated response arrived within the
	// response budget.
	ErrResponseTimeout = errors.New("no response before deadline")

	// ErrTransportNotConnected indicates the transport has not been started.
	ErrTransportNotConnected = errors.New("transport not connected")

	// ErrStdinClosed indicates stdin was closed due to context cancellation.
	ErrStdinClosed = errors.New("stdin closed")

	// ErrServerExited indicates the server process exited before the cycle
	// completed.
	ErrServerExited = errors.New("server process exited")
)

// ServerNotFoundError indicates the server command executable was not found.
type ServerNotFoundError struct {
	Command       string
	SearchedPaths []string
}

func (e *ServerNotFoundError) Error() string {
	return fmt.Sprintf("server command %q not found in: %v", e.Command, e.SearchedPaths)
}

// IsProbeError implements ProbeError.
func (e *ServerNotFoundError) IsProbeError() bool { return true }

// ConnectionError indicates failure to start or wire up the server process.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to server: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsProbeError implements ProbeError.
func (e *ConnectionError) IsProbeError() bool { return true }

// ProcessError indicates the server process failed.
type ProcessError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ProcessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("server process failed (exit %d): %v", e.ExitCode, e.Err)
	}

	return fmt.Sprintf("server process failed (exit %d): %s", e.ExitCode, e.Stderr)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// IsProbeError implements ProbeError.
func (e *ProcessError) IsProbeError() bool { return true }

// PayloadDecodeError indicates the nested control payload in a received
// response could not be decoded. Unlike stray malformed stdout lines, which
// are skipped, a correlated response with an undecodable payload is a hard
// failure: the cycle matched its response and still cannot report on it.
type PayloadDecodeError struct {
	RawData string
	Err     error
}

func (e *PayloadDecodeError) Error() string {
	return fmt.Sprintf("failed to decode control payload: %v", e.Err)
}

func (e *PayloadDecodeError) Unwrap() error {
	return e.Err
}

// IsProbeError implements ProbeError.
func (e *PayloadDecodeError) IsProbeError() bool { return true }

// DeadlineError wraps a timeout sentinel with the budget that was exhausted.
type DeadlineError struct {
	Budget time.Duration
	Err    error
}

func (e *DeadlineError) Error() string {
	return fmt.Sprintf("%v after %s", e.Err, e.Budget)
}

func (e *DeadlineError) Unwrap() error {
	return e.Err
}

// IsProbeError implements ProbeError.
func (e *DeadlineError) IsProbeError() bool { return true }
