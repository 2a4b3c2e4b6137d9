package mcpprobe

import "github.com/probekit/mcpprobe/internal/errors"

// Re-export error types from internal package

// ServerNotFoundError indicates the server command executable was not found.
type ServerNotFoundError = errors.ServerNotFoundError

// ConnectionError indicates failure to start or wire up the server process.
type ConnectionError = errors.ConnectionError

// ProcessError indicates the server process failed.
type ProcessError = errors.ProcessError

// PayloadDecodeError indicates the nested control payload in a received
// response could not be decoded.
type PayloadDecodeError = errors.PayloadDecodeError

// DeadlineError indicates a timeout budget was exhausted. It wraps
// ErrReadyTimeout or ErrResponseTimeout.
type DeadlineError = errors.DeadlineError

// ProbeError is the base interface for all harness errors.
type ProbeError = errors.ProbeError

// Re-export sentinel errors from internal package.
var (
	// ErrReadyTimeout indicates the server never printed its readiness
	// marker within the readiness budget.
	ErrReadyTimeout = errors.ErrReadyTimeout

	// ErrResponseTimeout indicates no correlated response arrived within
	// the response budget.
	ErrResponseTimeout = errors.ErrResponseTimeout

	// ErrServerExited indicates the server process exited before the cycle
	// completed.
	ErrServerExited = errors.ErrServerExited
)
