// Package stubserver is a reference MCP server for exercising the harness
// without a product server. It speaks stdio MCP via the official SDK,
// prints the readiness marker the harness waits for, and serves a
// list_controls tool whose component attribution is configurable: healthy
// per-component names, a uniform component, or the "All Components"
// sentinel that reproduces the defect the probe was built to catch.
package stubserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/probekit/mcpprobe/internal/config"
	"github.com/probekit/mcpprobe/internal/diagnose"
)

// Mode selects how the stub attributes controls to components.
type Mode string

const (
	// ModeDistinct returns controls owned by distinct components.
	ModeDistinct Mode = "distinct"

	// ModeUniform returns controls all owned by the same component.
	ModeUniform Mode = "uniform"

	// ModeSentinel stamps every control with the "All Components" sentinel.
	ModeSentinel Mode = "sentinel"
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeDistinct, ModeUniform, ModeSentinel:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown stub mode %q (want distinct, uniform, or sentinel)", s)
	}
}

// control mirrors the record shape the harness decodes.
type control struct {
	Name      string `json:"name"`
	Component string `json:"component"`
	Type      string `json:"type"`
	Value     any    `json:"value"`
}

// catalog is the fixed control set served in every mode; only the component
// column varies.
var catalog = []control{
	{Name: "master_gain", Type: "slider", Value: 0.8},
	{Name: "eq_low_shelf", Type: "slider", Value: -2.5},
	{Name: "compressor_threshold", Type: "slider", Value: -18.0},
	{Name: "reverb_mix", Type: "slider", Value: 0.25},
	{Name: "input_mute", Type: "toggle", Value: false},
}

var distinctComponents = []string{"Mixer", "Equalizer", "Compressor", "Reverb", "Input"}

// Server is the stub MCP server.
type Server struct {
	log  *slog.Logger
	mode Mode
	mcp  *mcp.Server
}

// New creates a stub server in the given mode. A nil logger disables logging.
func New(log *slog.Logger, mode Mode) *Server {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	s := &Server{
		log:  log.With("component", "stubserver"),
		mode: mode,
	}

	server := mcp.NewServer(&mcp.Implementation{Name: "mcpprobe-stub", Version: "0.1.0"}, nil)

	server.AddTool(&mcp.Tool{
		Name:        "list_controls",
		Description: "List all controllable parameters with owning component attribution.",
		InputSchema: &jsonschema.Schema{Type: "object"},
	}, s.listControls)

	s.mcp = server

	return s
}

// Controls returns the catalog with components filled in per the mode.
func (s *Server) Controls() []control {
	out := make([]control, len(catalog))
	copy(out, catalog)

	for i := range out {
		switch s.mode {
		case ModeDistinct:
			out[i].Component = distinctComponents[i%len(distinctComponents)]
		case ModeUniform:
			out[i].Component = "Mixer"
		case ModeSentinel:
			out[i].Component = diagnose.SentinelComponent
		}
	}

	return out
}

// listControls serves the tools/call. The control collection is returned as
// a JSON-encoded string inside the first text content item, matching the
// nested payload shape the harness expects from the product server.
func (s *Server) listControls(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.log.Debug("Serving list_controls", "mode", string(s.mode))

	payload, err := json.Marshal(s.Controls())
	if err != nil {
		return nil, fmt.Errorf("marshal controls: %w", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(payload)},
		},
	}, nil
}

// Connect attaches the stub to a transport and returns the session.
// Used by tests to drive the stub over in-memory transports.
func (s *Server) Connect(ctx context.Context, transport mcp.Transport) (*mcp.ServerSession, error) {
	return s.mcp.Connect(ctx, transport, nil)
}

// Run announces readiness on w and serves stdio MCP until ctx is cancelled
// or the client disconnects. The readiness line goes to w (the harness
// watches stdout) before the MCP session starts on the same stream.
func (s *Server) Run(ctx context.Context, w io.Writer) error {
	fmt.Fprintln(w, config.DefaultReadyMarker)

	s.log.Info("Stub server ready", "mode", string(s.mode))

	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}
