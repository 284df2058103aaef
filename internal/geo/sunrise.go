package geo

import (
	"errors"
	"time"

	"github.com/nathan-osman/go-sunrise"
)

var errNoSunEvents = errors.New("sun does not rise or set on this day")

// Sunrise is the default Provider, backed by github.com/nathan-osman/go-sunrise.
type Sunrise struct{}

// SunriseSunset implements Provider
func (Sunrise) SunriseSunset(midday time.Time, lat, lon float64) (int64, int64, error) {
	u := midday.UTC()
	rise, set := sunrise.SunriseSunset(lat, lon, u.Year(), u.Month(), u.Day())
	if rise.IsZero() || set.IsZero() {
		return 0, 0, errNoSunEvents
	}
	return rise.Unix(), set.Unix(), nil
}
