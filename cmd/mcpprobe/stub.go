package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/probekit/mcpprobe/internal/stubserver"
)

// newStubCmd builds the "stub" command: a reference MCP server for
// exercising the probe (and MCP clients) without a product server.
func newStubCmd() *cobra.Command {
	var (
		mode    string
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "stub",
		Short: "Run a reference MCP server over stdio",
		Long: `Run a stdio MCP server exposing a list_controls tool. The --mode flag
selects the component attribution served: distinct (healthy), uniform
(one component owns everything), or sentinel (the "All Components"
defect the probe detects).`,
		Example: `  mcpprobe stub --mode distinct
  mcpprobe stub --mode sentinel`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := stubserver.ParseMode(mode)
			if err != nil {
				return err
			}

			var log *slog.Logger
			if verbose {
				log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
					Level: slog.LevelDebug,
				}))
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return stubserver.New(log, m).Run(ctx, os.Stdout)
		},
	}

	cmd.Flags().StringVar(&mode, "mode", string(stubserver.ModeDistinct), "component attribution mode: distinct, uniform, or sentinel")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug logging to stderr")

	return cmd
}
