package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/gixiebright/internal/app"
	"github.com/dokzlo13/gixiebright/internal/config"
)

func main() {
	opts, err := parseArgs(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// Setup logging
	setupLogging(opts.verbose)

	// Load configuration
	log.Debug().Str("config", opts.configPath).Msg("Loading configuration")
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log.Debug().Interface("config", cfg).Msg("Configuration loaded")

	application, err := app.New(cfg, os.Stdout)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create application")
	}

	// Create context that cancels on shutdown signal
	ctx := app.SignalContext()

	if err := run(ctx, application, opts.cmd); err != nil {
		log.Fatal().Err(err).Msg("Command failed")
	}
}

func run(ctx context.Context, a *app.App, cmd command) error {
	switch c := cmd.(type) {
	case getCommand:
		return a.Get(ctx)
	case setCommand:
		return a.Set(ctx, c.value, c.smooth)
	case sunInfoCommand:
		return a.SunInfo(ctx)
	case autoCommand:
		return a.Auto(ctx)
	default:
		return fmt.Errorf("unhandled command %T", cmd)
	}
}

func setupLogging(verbose bool) {
	// ISO 8601 format with timezone
	zerolog.TimeFieldFormat = time.RFC3339

	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})

	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
