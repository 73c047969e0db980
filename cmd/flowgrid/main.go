package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/vk/flowgrid/internal/cli"
	"github.com/vk/flowgrid/internal/eventlog"
)

// main is the entrypoint for the flowgrid replay tool.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	// The real main function handles errors and exit codes.
	if err := run(os.Stdout, os.Args[1:]); err != nil {
		if exitErr, ok := err.(*cli.ExitError); ok {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run encapsulates the main application logic for easier testing and error handling.
func run(outW io.Writer, args []string) error {
	cfg, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	configureLogger(cfg)

	src, err := os.ReadFile(cfg.LogPath)
	if err != nil {
		return fmt.Errorf("reading event log: %w", err)
	}

	store := eventlog.New()
	count, err := store.ReplayLines(src)
	if err != nil {
		return err
	}
	slog.Debug("Event log replayed.", "records", count)

	for _, runID := range store.RunIDs() {
		printRun(outW, store, runID)
	}
	return nil
}

func configureLogger(cfg *cli.Config) {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func printRun(outW io.Writer, store *eventlog.Store, runID string) {
	recs := store.Events(runID)
	job := ""
	if len(recs) > 0 {
		job = recs[0].JobName
	}
	fmt.Fprintf(outW, "run %s  job=%s  status=%s  events=%d\n",
		runID, job, store.RunStatus(runID), len(recs))
	for _, e := range recs {
		if !e.Type.IsFailure() {
			continue
		}
		fmt.Fprintf(outW, "  %s: %s\n", e.Type.DisplayName(), e.Message)
	}
}
