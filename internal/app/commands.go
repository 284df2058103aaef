package app

import (
	"context"
	"fmt"

	"github.com/ncruces/go-strftime"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/gixiebright/internal/brightness"
	"github.com/dokzlo13/gixiebright/internal/geo"
)

// Get prints the current brightness
func (a *App) Get(ctx context.Context) error {
	return a.withDevice(ctx, func(dev Device) error {
		value, err := dev.Get(ctx)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(a.out, value)
		return err
	})
}

// Set changes the brightness, either in one write or as a stepped ramp from
// the current value.
func (a *App) Set(ctx context.Context, value uint8, smooth bool) error {
	return a.withDevice(ctx, func(dev Device) error {
		if smooth {
			current, err := dev.Get(ctx)
			if err != nil {
				return err
			}
			log.Debug().Uint8("brightness", current).Msg("Current brightness")
			return a.transition(ctx, dev, current, value)
		}

		ok, err := dev.Set(ctx, value)
		if err != nil {
			return err
		}
		if !ok {
			log.Warn().Uint8("value", value).Msg("Brightness not changed")
			return nil
		}
		log.Info().Uint8("brightness", value).Msg("Brightness set")
		return nil
	})
}

// SunInfo prints today's sunrise and sunset
func (a *App) SunInfo(ctx context.Context) error {
	info, err := a.sunInfo()
	if err != nil {
		return err
	}

	layout := a.cfg.Clock.DateFmt
	_, err = fmt.Fprintf(a.out, "sunrise: %s\n sunset: %s\n",
		strftime.Format(layout, info.Sunrise),
		strftime.Format(layout, info.Sunset))
	return err
}

// Auto moves the brightness to what the sun position calls for
func (a *App) Auto(ctx context.Context) error {
	info, err := a.sunInfo()
	if err != nil {
		return err
	}

	return a.withDevice(ctx, func(dev Device) error {
		target := brightness.Target(a.cfg.Brightness, info)
		log.Debug().Uint8("brightness", target).Msg("New brightness")

		current, err := dev.Get(ctx)
		if err != nil {
			return err
		}
		log.Debug().Uint8("brightness", current).Msg("Current brightness")

		return a.transition(ctx, dev, current, target)
	})
}

func (a *App) sunInfo() (*geo.SunInfo, error) {
	log.Debug().Msg("Calculate sun info data")
	info, err := a.sun.Today(a.cfg.Coord.Latitude, a.cfg.Coord.Longitude, a.cfg.Clock.Timezone)
	if err != nil {
		return nil, err
	}
	log.Debug().
		Time("now", info.Now).
		Time("sunrise", info.Sunrise).
		Time("sunset", info.Sunset).
		Msg("Sun info")
	return info, nil
}

func (a *App) transition(ctx context.Context, dev Device, current, target uint8) error {
	t := brightness.NewTransition(dev, a.cfg.Brightness.Step, a.cfg.Brightness.StepDelay.Duration())
	result, err := t.Run(ctx, current, target)
	if err != nil {
		return err
	}
	log.Debug().
		Stringer("outcome", result.Outcome).
		Int("applied", len(result.Applied)).
		Int("planned", result.Planned).
		Msg("Transition finished")
	return nil
}

// withDevice opens the clock connection for fn and closes it on every path
func (a *App) withDevice(ctx context.Context, fn func(Device) error) error {
	dev, err := a.dial(ctx, a.cfg)
	if err != nil {
		return err
	}
	log.Debug().Msg("Established websocket connection")

	defer func() {
		if err := dev.Close(); err != nil {
			log.Debug().Err(err).Msg("Failed to close websocket connection")
		}
	}()

	return fn(dev)
}
