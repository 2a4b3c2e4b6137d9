package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/probekit/mcpprobe/internal/config"
	"github.com/probekit/mcpprobe/internal/harness"
)

// newRunCmd builds the "run" command: one probe cycle against a server.
func newRunCmd() *cobra.Command {
	var (
		configFile      string
		readyMarker     string
		tool            string
		requestID       int64
		readyTimeout    time.Duration
		responseTimeout time.Duration
		cwd             string
		strict          bool
		jsonOutput      bool
		verbose         bool
		showStderr      bool
	)

	cmd := &cobra.Command{
		Use:   "run [flags] -- <command> [args...]",
		Short: "Launch a server, send one tools/call, diagnose the result",
		Example: `  mcpprobe run -- npm run dev
  mcpprobe run --tool list_controls --ready-timeout 30s -- npm run dev
  mcpprobe run --config probe.yaml
  mcpprobe run --strict --json -- node dist/server.js`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := &config.Options{}

			// Precedence: file, then environment, then flags
			if configFile != "" {
				if err := opts.LoadFile(configFile); err != nil {
					return err
				}
			}

			if err := opts.FromEnv(); err != nil {
				return err
			}

			if len(args) > 0 {
				opts.Command = args[0]
				opts.Args = args[1:]
			}

			flags := cmd.Flags()

			if flags.Changed("ready-marker") {
				opts.ReadyMarker = readyMarker
			}

			if flags.Changed("tool") {
				opts.Tool = tool
			}

			if flags.Changed("request-id") {
				opts.RequestID = requestID
			}

			if flags.Changed("ready-timeout") {
				opts.ReadyTimeout = readyTimeout
			}

			if flags.Changed("response-timeout") {
				opts.ResponseTimeout = responseTimeout
			}

			if flags.Changed("cwd") {
				opts.Cwd = cwd
			}

			if flags.Changed("strict") {
				opts.Strict = strict
			}

			if verbose {
				opts.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
					Level: slog.LevelDebug,
				}))
			}

			return runProbe(cmd.Context(), opts, jsonOutput, showStderr)
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "YAML probe file")
	cmd.Flags().StringVar(&readyMarker, "ready-marker", config.DefaultReadyMarker, "stdout substring signaling readiness")
	cmd.Flags().StringVar(&tool, "tool", config.DefaultTool, "tool name for the tools/call request")
	cmd.Flags().Int64Var(&requestID, "request-id", config.DefaultRequestID, "correlation id for the request")
	cmd.Flags().DurationVar(&readyTimeout, "ready-timeout", config.DefaultReadyTimeout, "budget for the readiness marker")
	cmd.Flags().DurationVar(&responseTimeout, "response-timeout", config.DefaultResponseTimeout, "budget for the correlated response")
	cmd.Flags().StringVar(&cwd, "cwd", "", "working directory for the server process")
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when the diagnosis finds defective attribution")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "emit the report as JSON instead of text")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug logging to stderr")
	cmd.Flags().BoolVar(&showStderr, "show-stderr", false, "relay server stderr lines")

	return cmd
}

func runProbe(ctx context.Context, opts *config.Options, jsonOutput, showStderr bool) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Relay stderr through a channel so probe output and server noise
	// don't interleave mid-line.
	var stderrLines chan string

	probeDone := make(chan struct{})

	if showStderr {
		stderrLines = make(chan string, 64)
		opts.Stderr = func(line string) {
			// Non-blocking: a stalled printer must never block the
			// transport's stderr reader
			select {
			case stderrLines <- line:
			default:
			}
		}
	}

	h, err := harness.New(opts)
	if err != nil {
		return err
	}

	g, gCtx := errgroup.WithContext(ctx)

	var report *harness.Report

	g.Go(func() error {
		defer close(probeDone)

		var runErr error

		report, runErr = h.Run(gCtx)

		return runErr
	})

	if stderrLines != nil {
		g.Go(func() error {
			for {
				select {
				case line := <-stderrLines:
					fmt.Fprintln(os.Stderr, "server:", line)
				case <-probeDone:
					// Drain whatever is already buffered, then stop
					for {
						select {
						case line := <-stderrLines:
							fmt.Fprintln(os.Stderr, "server:", line)
						default:
							return nil
						}
					}
				}
			}
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
	} else {
		fmt.Printf("Probe %s completed (ready in %s, answered in %s)\n\n",
			report.RunID, report.ReadyLatency.Round(time.Millisecond),
			report.ResponseLatency.Round(time.Millisecond))

		report.Diagnosis.Render(os.Stdout)
	}

	if opts.Strict && !report.Diagnosis.Outcome.Healthy() {
		return fmt.Errorf("strict mode: diagnosis is %s", report.Diagnosis.Outcome)
	}

	return nil
}
