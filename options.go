package mcpprobe

import (
	"log/slog"
	"time"

	"github.com/probekit/mcpprobe/internal/config"
)

// Option configures a probe run.
type Option func(*config.Options)

// WithLogger sets the slog logger for operation tracking.
// Without it, the harness is silent.
func WithLogger(log *slog.Logger) Option {
	return func(o *config.Options) {
		o.Logger = log
	}
}

// WithArgs sets the arguments passed to the server command.
func WithArgs(args ...string) Option {
	return func(o *config.Options) {
		o.Args = args
	}
}

// WithCwd sets the working directory for the server process.
func WithCwd(cwd string) Option {
	return func(o *config.Options) {
		o.Cwd = cwd
	}
}

// WithEnv adds environment variables for the server process.
// The parent environment is always inherited.
func WithEnv(env map[string]string) Option {
	return func(o *config.Options) {
		o.Env = env
	}
}

// WithReadyMarker overrides the stdout substring that signals readiness.
func WithReadyMarker(marker string) Option {
	return func(o *config.Options) {
		o.ReadyMarker = marker
	}
}

// WithTool overrides the tool name sent in the tools/call request.
func WithTool(tool string) Option {
	return func(o *config.Options) {
		o.Tool = tool
	}
}

// WithRequestID overrides the correlation id for the single request.
func WithRequestID(id int64) Option {
	return func(o *config.Options) {
		o.RequestID = id
	}
}

// WithReadyTimeout bounds the wait for the readiness marker.
func WithReadyTimeout(d time.Duration) Option {
	return func(o *config.Options) {
		o.ReadyTimeout = d
	}
}

// WithResponseTimeout bounds the wait for the correlated response.
func WithResponseTimeout(d time.Duration) Option {
	return func(o *config.Options) {
		o.ResponseTimeout = d
	}
}

// WithStderr sets a callback invoked per server stderr line.
func WithStderr(callback func(string)) Option {
	return func(o *config.Options) {
		o.Stderr = callback
	}
}

// WithTransport injects a custom transport, bypassing the subprocess
// launch. The command argument to Run is ignored when set.
func WithTransport(t Transport) Option {
	return func(o *config.Options) {
		o.Transport = t
	}
}
