// Package cli resolves the server command into an executable path before
// the subprocess is launched, so a missing executable surfaces as a typed
// startup error instead of a raw exec failure.
package cli

import (
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/probekit/mcpprobe/internal/errors"
)

// Resolver locates the server command executable.
type Resolver interface {
	// Resolve returns the path to launch for the given command.
	Resolve(command string) (string, error)
}

type resolver struct {
	log *slog.Logger
}

// Compile-time verification that resolver implements Resolver.
var _ Resolver = (*resolver)(nil)

// NewResolver creates a command resolver. A nil logger disables logging.
func NewResolver(log *slog.Logger) Resolver {
	if log == nil {
		log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1}))
	}

	return &resolver{log: log.With("component", "resolver")}
}

// Resolve locates the executable for command.
//
// Commands containing a path separator are checked directly; bare names are
// searched in PATH. Returns ServerNotFoundError when nothing matches.
func (r *resolver) Resolve(command string) (string, error) {
	if command == "" {
		return "", &errors.ServerNotFoundError{Command: command, SearchedPaths: nil}
	}

	if strings.ContainsRune(command, filepath.Separator) {
		r.log.Debug("Checking explicit command path", "path", command)

		if _, err := os.Stat(command); err == nil {
			return command, nil
		}

		return "", &errors.ServerNotFoundError{Command: command, SearchedPaths: []string{command}}
	}

	r.log.Debug("Searching for command in PATH", "command", command)

	path, err := exec.LookPath(command)
	if err != nil {
		r.log.Warn("Server command not found in PATH", "command", command)

		return "", &errors.ServerNotFoundError{Command: command, SearchedPaths: []string{"$PATH"}}
	}

	r.log.Debug("Found command in PATH", "path", path)

	return path, nil
}
