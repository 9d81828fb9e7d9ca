package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/cosmotech/csm-orc/orchestrator"
)

func newLogger(logLevel string) *slog.Logger {
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func runRun(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	logLevel := fs.String("log-level", "info", "Log level (debug, info, warn, error)")
	dryRun := fs.Bool("dry-run", false, "Evaluate the DAG without launching any subprocess")
	yamlFile := fs.Bool("yaml", false, "Parse the pipeline file as YAML instead of JSON")
	ignoreErrors := fs.Bool("ignore-errors", false, "Run even if required environment variables are missing")
	skip := fs.String("skip", "", "Comma-separated list of step ids to mark as skipped")
	noExitHandlers := fs.Bool("no-exit-handlers", false, "Skip exit-handler dispatch after the run completes")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: csmorcctl run [options] <pipeline-file>\n\nRun a pipeline file to completion.\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return fmt.Errorf("pipeline file path is required")
	}

	opts := orchestrator.Options{
		Logger:              newLogger(*logLevel),
		YAML:                *yamlFile,
		IgnoreErrors:        *ignoreErrors,
		DisableExitHandlers: *noExitHandlers,
	}
	if *skip != "" {
		opts.SkippedSteps = strings.Split(*skip, ",")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	result, err := orchestrator.Run(ctx, fs.Arg(0), *dryRun, opts)
	if err != nil {
		return fmt.Errorf("running pipeline: %w", err)
	}

	for id, status := range result.Statuses {
		fmt.Printf("%s: %s\n", id, status)
	}
	for id, status := range result.ExitHandlers {
		fmt.Printf("exit handler %s: %s\n", id, status)
	}

	if !result.Success {
		os.Exit(1)
	}
	return nil
}
