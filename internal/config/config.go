// Package config provides the harness configuration: what to launch, what
// readiness looks like, which tool to call, and the timeout budgets.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

// Defaults for a probe cycle. The budgets mirror the split the harness has
// always used: a generous window for a dev server to boot, a tight one for
// a single tool call.
const (
	DefaultReadyMarker     = "AI agents can now control"
	DefaultTool            = "list_controls"
	DefaultRequestID       = 1
	DefaultReadyTimeout    = 10 * time.Second
	DefaultResponseTimeout = 5 * time.Second
)

// Options configures a probe run.
type Options struct {
	// Logger is the slog logger for debug output.
	// If nil, logging is disabled (silent operation).
	Logger *slog.Logger

	// Command is the server executable to launch.
	Command string `env:"MCPPROBE_COMMAND"`

	// Args are passed to the server command.
	Args []string `env:"MCPPROBE_ARGS"`

	// Cwd sets the working directory for the server process.
	Cwd string `env:"MCPPROBE_CWD"`

	// Env provides additional environment variables for the server process.
	// The parent environment is always inherited.
	Env map[string]string

	// ReadyMarker is the substring on stdout that signals readiness.
	ReadyMarker string `env:"MCPPROBE_READY_MARKER"`

	// Tool is the tool name sent in the tools/call request.
	Tool string `env:"MCPPROBE_TOOL"`

	// RequestID is the correlation id for the single request.
	RequestID int64 `env:"MCPPROBE_REQUEST_ID"`

	// ReadyTimeout bounds the wait for the readiness marker.
	ReadyTimeout time.Duration `env:"MCPPROBE_READY_TIMEOUT"`

	// ResponseTimeout bounds the wait for the correlated response.
	ResponseTimeout time.Duration `env:"MCPPROBE_RESPONSE_TIMEOUT"`

	// Strict fails the run (non-zero exit) when the diagnosis finds uniform
	// or missing component attribution, not just on protocol failures.
	Strict bool `env:"MCPPROBE_STRICT"`

	// Stderr is a callback invoked per server stderr line.
	Stderr func(string)

	// Transport allows injecting a custom transport implementation.
	// If nil, the default subprocess transport is created automatically.
	Transport Transport
}

// ApplyDefaults fills zero-valued fields with the package defaults.
func (o *Options) ApplyDefaults() {
	if o.ReadyMarker == "" {
		o.ReadyMarker = DefaultReadyMarker
	}

	if o.Tool == "" {
		o.Tool = DefaultTool
	}

	if o.RequestID == 0 {
		o.RequestID = DefaultRequestID
	}

	if o.ReadyTimeout == 0 {
		o.ReadyTimeout = DefaultReadyTimeout
	}

	if o.ResponseTimeout == 0 {
		o.ResponseTimeout = DefaultResponseTimeout
	}
}

// Validate checks that the options describe a runnable probe.
func (o *Options) Validate() error {
	if o.Command == "" && o.Transport == nil {
		return fmt.Errorf("no server command configured")
	}

	if o.ReadyTimeout < 0 || o.ResponseTimeout < 0 {
		return fmt.Errorf("timeout budgets must be non-negative")
	}

	return nil
}

// FromEnv overlays MCPPROBE_* environment variables onto the options.
func (o *Options) FromEnv() error {
	if err := env.Parse(o); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	return nil
}
