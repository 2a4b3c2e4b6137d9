// mcpprobe - single-shot diagnostic harness for stdio MCP servers.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Build-time variables set via ldflags
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	root := &cobra.Command{
		Use:   "mcpprobe",
		Short: "Probe an MCP server over stdio and diagnose control attribution",
		Long: `mcpprobe launches an MCP server as a subprocess, waits for its readiness
marker, sends a single tools/call request over stdin, and reports whether
the returned controls carry per-component attribution.

The probe exits 0 when the request/response cycle completes, regardless of
the diagnosis; it exits 1 when the server never becomes ready or never
answers. Use --strict to also fail on a defective diagnosis.`,
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newRunCmd())
	root.AddCommand(newStubCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "mcpprobe:", err)
		os.Exit(1)
	}
}
