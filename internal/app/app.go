package app

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/gixiebright/internal/clock"
	"github.com/dokzlo13/gixiebright/internal/config"
	"github.com/dokzlo13/gixiebright/internal/geo"
)

// Device is the part of the clock connection the commands need.
type Device interface {
	Get(ctx context.Context) (uint8, error)
	Set(ctx context.Context, value uint8) (bool, error)
	Close() error
}

// Dialer opens a device connection.
type Dialer func(ctx context.Context, cfg *config.Config) (Device, error)

// App holds the configuration and collaborators shared by all commands.
type App struct {
	cfg  *config.Config
	out  io.Writer
	sun  *geo.Calculator
	dial Dialer
}

// New creates an App that talks to the real clock and uses the wall clock.
func New(cfg *config.Config, out io.Writer) (*App, error) {
	return NewWithClock(cfg, out, time.Now)
}

// NewWithClock creates an App whose notion of "now" comes from now.
func NewWithClock(cfg *config.Config, out io.Writer, now func() time.Time) (*App, error) {
	provider, err := geo.NewProvider(cfg.Coord.Provider)
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:  cfg,
		out:  out,
		sun:  geo.NewCalculatorWithClock(provider, now),
		dial: dialClock,
	}, nil
}

func dialClock(ctx context.Context, cfg *config.Config) (Device, error) {
	return clock.Connect(ctx, cfg)
}

// SignalContext creates a context that is cancelled when SIGINT or SIGTERM is received.
func SignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Warn().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	return ctx
}
