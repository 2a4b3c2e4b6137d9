// Package mcpprobe is a single-shot diagnostic harness for MCP servers
// that speak line-delimited JSON-RPC over stdio.
//
// The harness spawns the server as a subprocess, waits for a readiness
// marker on stdout, sends one tools/call request, filters stdout until the
// correlated response arrives, and diagnoses whether the returned control
// records carry per-component attribution.
//
// # Basic Usage
//
//	ctx := context.Background()
//	report, err := mcpprobe.Run(ctx, "npm",
//	    mcpprobe.WithArgs("run", "dev"),
//	    mcpprobe.WithReadyTimeout(10*time.Second),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	report.Diagnosis.Render(os.Stdout)
//
// # Error Handling
//
// Protocol-level failures return typed errors:
//
//	report, err := mcpprobe.Run(ctx, "npm", mcpprobe.WithArgs("run", "dev"))
//	if err != nil {
//	    if errors.Is(err, mcpprobe.ErrReadyTimeout) {
//	        log.Fatal("server never became ready")
//	    }
//	    if procErr, ok := errors.AsType[*mcpprobe.ProcessError](err); ok {
//	        log.Fatalf("server died (exit %d): %s", procErr.ExitCode, procErr.Stderr)
//	    }
//	    log.Fatal(err)
//	}
//
// A completed cycle never fails on the diagnosis itself: a defective
// component attribution is reported in Report.Diagnosis, not as an error.
//
// # Logging
//
// For detailed operation tracking, pass a logger:
//
//	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
//	report, err := mcpprobe.Run(ctx, "npm",
//	    mcpprobe.WithArgs("run", "dev"),
//	    mcpprobe.WithLogger(logger),
//	)
package mcpprobe
