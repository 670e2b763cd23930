package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/storyofalicia/datadirector"
	"github.com/storyofalicia/datadirector/config"
)

var (
	configFlag  = flag.String("config", "", "Path to the YAML configuration file")
	versionFlag = flag.Bool("version", false, "Show version information")
	vFlag       = flag.Bool("v", false, "Show version information (short)")
)

func main() {
	flag.Parse()

	if *versionFlag || *vFlag {
		fmt.Printf("datadirector %s (commit %s, %s)\n", datadirector.Version, datadirector.Commit, runtime.Version())
		os.Exit(0)
	}

	if err := run(*configFlag); err != nil {
		fmt.Fprintf(os.Stderr, "datadirector: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := cfg.Log.Logger(os.Stderr)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dd, err := datadirector.Open(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("opening data director: %w", err)
	}

	logger.Info().
		Str("backend", cfg.Backend).
		Dur("flushInterval", cfg.Director.FlushInterval.Std()).
		Str("version", datadirector.Version).
		Msg("running")

	runErr := dd.Run(ctx, cfg.Director.FlushInterval.Std())
	logger.Info().Msg("shutting down")

	// The run context is already cancelled; the final flush gets its own deadline.
	closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Director.ShutdownTimeout.Std())
	defer cancel()

	if err := dd.Close(closeCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown incomplete")
		return err
	}
	return runErr
}
