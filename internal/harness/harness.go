package harness

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/probekit/mcpprobe/internal/config"
	"github.com/probekit/mcpprobe/internal/diagnose"
	"github.com/probekit/mcpprobe/internal/errors"
	"github.com/probekit/mcpprobe/internal/subprocess"
	"github.com/probekit/mcpprobe/internal/wire"
)

// Report is the outcome of one probe cycle. A report is produced only when
// the cycle completed: readiness observed, response correlated, payload
// decoded. Protocol-level failures surface as errors from Run instead.
type Report struct {
	// RunID labels this probe run in logs and output.
	RunID string `json:"run_id"`

	// Tool is the tool the cycle called.
	Tool string `json:"tool"`

	// ReadyLatency is how long the server took to print its readiness marker.
	ReadyLatency time.Duration `json:"ready_latency"`

	// ResponseLatency is how long the correlated response took after the
	// request was written.
	ResponseLatency time.Duration `json:"response_latency"`

	// SkippedLines counts stdout lines discarded while waiting for the
	// response (log records and unparseable output).
	SkippedLines int `json:"skipped_lines"`

	// Diagnosis is the component-attribution verdict.
	Diagnosis *diagnose.Diagnosis `json:"diagnosis"`
}

// Harness drives one request/response cycle against a server subprocess and
// reports a diagnosis.
type Harness struct {
	log  *slog.Logger
	opts *config.Options
}

// New creates a harness for the given options. Defaults are applied; a nil
// logger in the options disables logging.
func New(opts *config.Options) (*Harness, error) {
	opts.ApplyDefaults()

	if err := opts.Validate(); err != nil {
		return nil, err
	}

	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	return &Harness{
		log:  log.With("component", "harness"),
		opts: opts,
	}, nil
}

// Run executes the probe cycle: start the server, wait for readiness, send
// the tools/call request, await the correlated response, and diagnose the
// returned controls. The server process is terminated and reaped on every
// exit path.
func (h *Harness) Run(ctx context.Context) (*Report, error) {
	runID := ulid.Make().String()
	log := h.log.With("run_id", runID)

	transport := h.opts.Transport
	if transport == nil {
		transport = subprocess.NewServerTransport(log, h.opts)
	}

	if err := transport.Start(ctx); err != nil {
		return nil, fmt.Errorf("start server: %w", err)
	}

	// Kill+Wait whatever path exits this function
	defer func() {
		if err := transport.Close(); err != nil {
			log.Warn("Failed to close transport", "error", err)
		}
	}()

	lines, errs := transport.ReadLines(ctx)

	log.Info("Waiting for readiness marker", "marker", h.opts.ReadyMarker, "budget", h.opts.ReadyTimeout)

	readyStart := time.Now()

	if err := h.waitForReady(ctx, lines, errs); err != nil {
		return nil, err
	}

	readyLatency := time.Since(readyStart)
	log.Info("Server ready", "latency", readyLatency)

	req := wire.NewToolCall(h.opts.Tool, h.opts.RequestID)

	data, err := req.Encode()
	if err != nil {
		return nil, err
	}

	log.Info("Sending tools/call request", "tool", h.opts.Tool, "id", h.opts.RequestID)

	if err := transport.SendMessage(ctx, data); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	respStart := time.Now()

	resp, skipped, err := h.awaitResponse(ctx, lines, errs)
	if err != nil {
		return nil, err
	}

	respLatency := time.Since(respStart)
	log.Info("Response received", "latency", respLatency, "skipped_lines", skipped)

	controls, err := wire.DecodeControls(resp.Result)
	if err != nil {
		return nil, err
	}

	d := diagnose.Evaluate(controls)
	log.Info("Diagnosis complete",
		"outcome", d.Outcome.String(),
		"total", d.Total,
		"unique_components", d.UniqueComponents(),
	)

	return &Report{
		RunID:           runID,
		Tool:            h.opts.Tool,
		ReadyLatency:    readyLatency,
		ResponseLatency: respLatency,
		SkippedLines:    skipped,
		Diagnosis:       d,
	}, nil
}

// waitForReady consumes stdout lines until one contains the readiness
// marker or the readiness budget elapses. Reads block on line delivery; the
// deadline is enforced by a timer, not polling.
func (h *Harness) waitForReady(
	ctx context.Context,
	lines <-chan string,
	errs <-chan error,
) error {
	deadline := time.NewTimer(h.opts.ReadyTimeout)
	defer deadline.Stop()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return h.drainExitError(errs)
			}

			if strings.Contains(line, h.opts.ReadyMarker) {
				return nil
			}

			h.log.Debug("Line before readiness", "line", line)

		case err, ok := <-errs:
			if !ok {
				errs = nil

				continue
			}

			if err != nil {
				return fmt.Errorf("before readiness: %w", err)
			}

		case <-deadline.C:
			return &errors.DeadlineError{Budget: h.opts.ReadyTimeout, Err: errors.ErrReadyTimeout}

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// awaitResponse consumes stdout lines until one classifies as a response
// candidate with the matching correlation id and a result field, or the
// response budget elapses. Log records and unparseable lines are counted
// and skipped.
func (h *Harness) awaitResponse(
	ctx context.Context,
	lines <-chan string,
	errs <-chan error,
) (*wire.Response, int, error) {
	deadline := time.NewTimer(h.opts.ResponseTimeout)
	defer deadline.Stop()

	skipped := 0

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return nil, skipped, h.drainExitError(errs)
			}

			kind, resp := wire.Classify(line)
			if kind != wire.LineResponseCandidate {
				skipped++

				h.log.Debug("Skipping line", "kind", kind.String())

				continue
			}

			if !wire.Matches(resp, h.opts.RequestID) {
				h.log.Debug("Envelope is not the awaited response",
					"id", resp.ID,
					"has_result", resp.HasResult(),
					"has_error", resp.Error != nil,
				)

				continue
			}

			return resp, skipped, nil

		case err, ok := <-errs:
			if !ok {
				errs = nil

				continue
			}

			if err != nil {
				return nil, skipped, fmt.Errorf("awaiting response: %w", err)
			}

		case <-deadline.C:
			return nil, skipped, &errors.DeadlineError{
				Budget: h.opts.ResponseTimeout,
				Err:    errors.ErrResponseTimeout,
			}

		case <-ctx.Done():
			return nil, skipped, ctx.Err()
		}
	}
}

// drainExitError returns the transport's pending error after the line
// channel closed, falling back to ErrServerExited.
func (h *Harness) drainExitError(errs <-chan error) error {
	select {
	case err, ok := <-errs:
		if ok && err != nil {
			return err
		}
	default:
	}

	return errors.ErrServerExited
}
