package mcpprobe

import (
	"context"

	"github.com/probekit/mcpprobe/internal/config"
	"github.com/probekit/mcpprobe/internal/diagnose"
	"github.com/probekit/mcpprobe/internal/harness"
	"github.com/probekit/mcpprobe/internal/wire"
)

// Report is the outcome of one probe cycle.
type Report = harness.Report

// Diagnosis is the component-attribution verdict for a control collection.
type Diagnosis = diagnose.Diagnosis

// Outcome classifies what the control collection revealed.
type Outcome = diagnose.Outcome

// Outcome values.
const (
	OutcomeDistinct        = diagnose.OutcomeDistinct
	OutcomeUniformSentinel = diagnose.OutcomeUniformSentinel
	OutcomeUniform         = diagnose.OutcomeUniform
	OutcomeEmpty           = diagnose.OutcomeEmpty
)

// Control is an application-level record describing a controllable parameter.
type Control = wire.Control

// Options configures a probe run. Most callers use Run with functional
// options instead of filling this in directly.
type Options = config.Options

// Transport defines the interface for server communication.
// Implement this to probe over something other than a spawned subprocess.
type Transport = config.Transport

// Run executes one probe cycle against the given server command.
//
// The server is spawned with piped stdio, awaited for readiness, sent a
// single tools/call request, and terminated on every exit path. The
// returned Report carries the diagnosis; protocol-level failures (startup,
// readiness timeout, response timeout) are returned as errors.
func Run(ctx context.Context, command string, opts ...Option) (*Report, error) {
	options := &config.Options{Command: command}

	for _, opt := range opts {
		opt(options)
	}

	h, err := harness.New(options)
	if err != nil {
		return nil, err
	}

	return h.Run(ctx)
}
