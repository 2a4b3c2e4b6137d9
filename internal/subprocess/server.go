package subprocess

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/probekit/mcpprobe/internal/cli"
	"github.com/probekit/mcpprobe/internal/config"
	"github.com/probekit/mcpprobe/internal/errors"
)

const (
	// maxScanTokenSize is the maximum buffer size for reading server output lines.
	maxScanTokenSize = 1024 * 1024 // 1MB
	// maxStderrBufferSize caps the stderr buffer used for error reporting.
	// Stderr reading continues past the cap (the callback still receives all
	// lines), but the buffer stops growing.
	maxStderrBufferSize = 10 * 1024 * 1024 // 10MB
)

// ServerTransport implements config.Transport by spawning the MCP server
// subprocess and exchanging newline-delimited messages over its pipes.
type ServerTransport struct {
	log            *slog.Logger
	options        *config.Options
	cmdPath        string
	cmd            *exec.Cmd
	stdin          io.WriteCloser
	stdout         io.ReadCloser
	stderr         io.ReadCloser
	stderrCallback func(string)
	mu             sync.Mutex // Protects stdin writes
	closing        bool
	stdinClosed    bool
	waitOnce       sync.Once
	waitErr        error
}

// Compile-time verification that ServerTransport implements the Transport interface.
var _ config.Transport = (*ServerTransport)(nil)

// NewServerTransport creates a transport for the server command in options.
//
// Command resolution is deferred to Start(). Start() returns
// ServerNotFoundError if the executable cannot be located.
func NewServerTransport(log *slog.Logger, options *config.Options) *ServerTransport {
	return &ServerTransport{
		log:            log.With("component", "server_transport"),
		options:        options,
		stderrCallback: options.Stderr,
	}
}

// Start launches the server subprocess.
//
// The command is resolved, the process is spawned with the configured
// environment, and stdin, stdout, and stderr pipes are wired up.
func (t *ServerTransport) Start(ctx context.Context) error {
	t.log.Info("Starting MCP server subprocess", "command", t.options.Command)

	resolver := cli.NewResolver(t.log)

	cmdPath, err := resolver.Resolve(t.options.Command)
	if err != nil {
		return fmt.Errorf("resolve command: %w", err)
	}

	t.cmdPath = cmdPath

	//nolint:gosec // G204: launching a caller-supplied server command is the point
	cmd := exec.CommandContext(ctx, t.cmdPath, t.options.Args...)
	cmd.Dir = t.options.Cwd
	cmd.Env = buildEnvironment(t.options.Env)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		t.log.Error("Failed to create stdin pipe", "error", err)

		return &errors.ConnectionError{Err: fmt.Errorf("stdin pipe: %w", err)}
	}

	t.stdin = stdin

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		t.log.Error("Failed to create stdout pipe", "error", err)

		return &errors.ConnectionError{Err: fmt.Errorf("stdout pipe: %w", err)}
	}

	t.stdout = stdout

	stderr, err := cmd.StderrPipe()
	if err != nil {
		t.log.Error("Failed to create stderr pipe", "error", err)

		return &errors.ConnectionError{Err: fmt.Errorf("stderr pipe: %w", err)}
	}

	t.stderr = stderr

	if err := cmd.Start(); err != nil {
		t.log.Error("Failed to start server process", "error", err)

		return &errors.ConnectionError{Err: fmt.Errorf("start process: %w", err)}
	}

	t.cmd = cmd
	t.log.Info("MCP server subprocess started", "pid", cmd.Process.Pid)

	return nil
}

// ReadLines reads raw lines from the server stdout.
//
// A goroutine scans stdout line by line and delivers each line undecoded:
// the consumer classifies them (log record, response candidate, banner
// noise). It exits when the process terminates or the context is cancelled,
// then closes both channels.
//
// If the process exits before Close() is called, a ProcessError carrying the
// exit code and buffered stderr is sent on the error channel.
func (t *ServerTransport) ReadLines(ctx context.Context) (<-chan string, <-chan error) {
	lines := make(chan string)
	errs := make(chan error, 1)

	var stderrWg sync.WaitGroup

	var stderrBuffer strings.Builder

	var stderrMu sync.Mutex

	// Always buffer stderr for error reporting (must complete reads before Wait())
	// See: https://pkg.go.dev/os/exec#Cmd.StderrPipe

	stderrWg.Go(func() {
		// Simple scanner loop - relies on process kill to close pipes and
		// unblock Scan().
		scanner := bufio.NewScanner(t.stderr)
		for scanner.Scan() {
			select {
			case <-ctx.Done():
				return
			default:
			}

			line := scanner.Text()

			stderrMu.Lock()

			if stderrBuffer.Len() < maxStderrBufferSize {
				if stderrBuffer.Len() > 0 {
					stderrBuffer.WriteString("\n")
				}

				stderrBuffer.WriteString(line)
			}

			stderrMu.Unlock()

			if t.stderrCallback != nil {
				t.stderrCallback(line)
			}
		}

		if err := scanner.Err(); err != nil {
			t.log.Debug("Stderr scanner error", "error", err)
		}
	})

	go func() {
		defer close(lines)
		defer close(errs)
		defer t.log.Debug("ReadLines goroutine stopped")

		scanner := bufio.NewScanner(t.stdout)
		buf := make([]byte, maxScanTokenSize)
		scanner.Buffer(buf, maxScanTokenSize)

		lineCount := 0

		for scanner.Scan() {
			select {
			case <-ctx.Done():
				t.log.Debug("Context cancelled during scan", "error", ctx.Err())

				errs <- ctx.Err()

				return
			default:
			}

			lineCount++
			t.log.Debug("Received line from server", "line_count", lineCount)

			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				t.log.Debug("Context cancelled during line send", "error", ctx.Err())

				errs <- ctx.Err()

				return
			}
		}

		if err := scanner.Err(); err != nil {
			t.log.Error("Scanner error while reading server output", "error", err)

			errs <- fmt.Errorf("scanner error: %w", err)
		}

		// Wait for stderr goroutine before harvesting the exit status
		stderrWg.Wait()

		t.mu.Lock()
		isClosing := t.closing
		t.mu.Unlock()

		if isClosing {
			t.log.Debug("Server output ended during shutdown")

			return
		}

		// Stdout closed without Close() being called: the server died on us.
		t.log.Debug("Waiting for server process to exit")

		if err := t.wait(); err != nil {
			stderrMu.Lock()

			stderrOutput := cleanStderr(stderrBuffer.String())

			stderrMu.Unlock()

			exitCode := 0

			if exitErr, ok := stderrors.AsType[*exec.ExitError](err); ok {
				exitCode = exitErr.ExitCode()
			}

			t.log.Error("Server process exited with error", "exit_code", exitCode, "stderr", stderrOutput)

			errs <- &errors.ProcessError{
				ExitCode: exitCode,
				Stderr:   stderrOutput,
				Err:      err,
			}
		} else {
			t.log.Info("Server process exited")

			errs <- errors.ErrServerExited
		}
	}()

	return lines, errs
}

// SendMessage sends one message to the server stdin.
//
// A trailing newline is appended if missing and the write is flushed by the
// pipe itself. Safe for concurrent use and respects context cancellation
// even during blocking writes: if the context is cancelled mid-write, stdin
// is closed to unblock the writer and subsequent calls return ErrStdinClosed.
func (t *ServerTransport) SendMessage(ctx context.Context, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stdin == nil {
		return errors.ErrTransportNotConnected
	}

	if t.stdinClosed {
		return errors.ErrStdinClosed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	t.log.Debug("Sending message to server", "data_len", len(data))

	// Explicit copy so the caller's backing array is never mutated
	if len(data) == 0 || data[len(data)-1] != '\n' {
		newData := make([]byte, len(data)+1)
		copy(newData, data)
		newData[len(data)] = '\n'
		data = newData
	}

	// Write in goroutine to respect context cancellation
	done := make(chan error, 1)

	go func() {
		_, err := t.stdin.Write(data)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.log.Error("Failed to write message to server", "error", err)

			return fmt.Errorf("write to stdin: %w", err)
		}

		t.log.Debug("Message sent")

		return nil

	case <-ctx.Done():
		t.log.Debug("Context cancelled during write, closing stdin")

		if t.stdin != nil {
			_ = t.stdin.Close()
			t.stdinClosed = true
		}

		select {
		case <-done:
		case <-time.After(1 * time.Second):
			t.log.Warn("Write goroutine did not exit after stdin close, potential leak")
		}

		return ctx.Err()
	}
}

// Close terminates the server process and waits for it.
//
// The process is killed with SIGKILL and reaped, so no orphan survives the
// probe whatever path led here. Safe to call multiple times or on an
// already-terminated process.
func (t *ServerTransport) Close() error {
	t.mu.Lock()

	t.closing = true
	t.stdinClosed = true

	cmd := t.cmd

	t.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}

	t.log.Debug("Killing server process", "pid", cmd.Process.Pid)

	if err := cmd.Process.Kill(); err != nil && !stderrors.Is(err, os.ErrProcessDone) {
		// Reap anyway; a kill failure usually means the process is gone
		_ = t.wait()

		return fmt.Errorf("kill server process (pid %d): %w", cmd.Process.Pid, err)
	}

	_ = t.wait()

	return nil
}

// wait reaps the process exactly once and caches the result.
func (t *ServerTransport) wait() error {
	t.waitOnce.Do(func() {
		t.waitErr = t.cmd.Wait()
	})

	return t.waitErr
}

// buildEnvironment merges extra variables over the inherited environment.
func buildEnvironment(extra map[string]string) []string {
	env := os.Environ()

	for k, v := range extra {
		env = append(env, k+"="+v)
	}

	return env
}

// cleanStderr strips noise from buffered stderr before it lands in a
// ProcessError. Dev-server launchers echo the script invocation and emit
// lifecycle chatter that drowns the actual failure.
func cleanStderr(stderr string) string {
	if stderr == "" {
		return ""
	}

	var cleaned strings.Builder

	for line := range strings.SplitSeq(stderr, "\n") {
		trimmed := strings.TrimSpace(line)
		if isLauncherNoiseLine(trimmed) {
			continue
		}

		if cleaned.Len() > 0 {
			cleaned.WriteString("\n")
		}

		cleaned.WriteString(line)
	}

	return strings.TrimSpace(cleaned.String())
}

// isLauncherNoiseLine reports whether a stderr line is npm/yarn launcher
// chatter rather than server output: the "> script" echo and verbose
// lifecycle logs.
func isLauncherNoiseLine(line string) bool {
	if strings.HasPrefix(line, "> ") {
		return true
	}

	for _, prefix := range []string{"npm verb", "npm timing", "npm sill", "npm http"} {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}

	return false
}
