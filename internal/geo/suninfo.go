// Package geo computes today's sunrise and sunset for a fixed location.
package geo

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	ErrTimezone    = errors.New("cannot construct fixed offset timezone")
	ErrMidday      = errors.New("cannot construct midday datetime")
	ErrTimestamp   = errors.New("cannot construct datetime from timestamp")
	ErrSunPosition = errors.New("cannot calculate sunrise and sunset")
)

const maxOffsetHours = 23

// Provider returns sunrise and sunset as unix seconds around the instant
// midday. Implementations key on the UTC date of midday, which differs from
// the local date where local noon falls on the previous UTC day (UTC+13, +14).
type Provider interface {
	SunriseSunset(midday time.Time, lat, lon float64) (rise, set int64, err error)
}

// NewProvider returns the provider registered under name ("sunrise" or "noaa")
func NewProvider(name string) (Provider, error) {
	switch name {
	case "", "sunrise":
		return Sunrise{}, nil
	case "noaa":
		return NOAA{}, nil
	default:
		return nil, fmt.Errorf("unknown sun position provider %q", name)
	}
}

// SunInfo holds the current time and today's sun events in the configured offset
type SunInfo struct {
	Now     time.Time
	Sunrise time.Time
	Sunset  time.Time
}

// Calculator derives SunInfo for a location
type Calculator struct {
	provider Provider
	now      func() time.Time
}

// NewCalculator creates a calculator using the wall clock
func NewCalculator(provider Provider) *Calculator {
	return NewCalculatorWithClock(provider, time.Now)
}

// NewCalculatorWithClock creates a calculator with an injected clock
func NewCalculatorWithClock(provider Provider, now func() time.Time) *Calculator {
	return &Calculator{provider: provider, now: now}
}

// Today computes now, sunrise and sunset for the current calendar day at a
// fixed offset of tzHours from UTC.
func (c *Calculator) Today(lat, lon float64, tzHours int) (*SunInfo, error) {
	zone, err := FixedZone(tzHours)
	if err != nil {
		return nil, err
	}

	now := c.now().In(zone)
	log.Debug().Time("now", now).Msg("Current datetime")

	midday := time.Date(now.Year(), now.Month(), now.Day(), 12, 0, 0, 0, zone)
	if h, m, s := midday.Clock(); h != 12 || m != 0 || s != 0 || midday.Day() != now.Day() {
		return nil, fmt.Errorf("%w: %s", ErrMidday, midday)
	}

	rise, set, err := c.provider.SunriseSunset(midday, lat, lon)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSunPosition, err)
	}
	log.Debug().
		Int64("midday", midday.Unix()).
		Int64("rise", rise).
		Int64("set", set).
		Msg("Sun position calculated")

	sunrise, err := fromTimestamp(rise, zone)
	if err != nil {
		return nil, err
	}
	sunset, err := fromTimestamp(set, zone)
	if err != nil {
		return nil, err
	}

	return &SunInfo{Now: now, Sunrise: sunrise, Sunset: sunset}, nil
}

// FixedZone builds a location offset by hours from UTC
func FixedZone(hours int) (*time.Location, error) {
	if hours < -maxOffsetHours || hours > maxOffsetHours {
		return nil, fmt.Errorf("%w: offset %dh out of range", ErrTimezone, hours)
	}
	return time.FixedZone(fmt.Sprintf("UTC%+03d:00", hours), hours*3600), nil
}

func fromTimestamp(sec int64, zone *time.Location) (time.Time, error) {
	t := time.Unix(sec, 0).In(zone)
	if t.Year() < 1 || t.Year() > 9999 {
		return time.Time{}, fmt.Errorf("%w: %d", ErrTimestamp, sec)
	}
	return t, nil
}
