// Package brightness decides what the display brightness should be and ramps
// the device towards it.
package brightness

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/gixiebright/internal/config"
	"github.com/dokzlo13/gixiebright/internal/geo"
)

// Target maps the sun position to a brightness value.
//
//	    min          max          min
//	.......... | .......... | ..........
//	        sunrise       sunset
//
// Panics if now is before sunrise but after sunset, which cannot happen while
// sunrise precedes sunset.
func Target(cfg config.BrightnessConfig, info *geo.SunInfo) uint8 {
	sunriseDiff := info.Sunrise.Sub(info.Now)
	sunsetDiff := info.Sunset.Sub(info.Now)

	log.Debug().
		Int64("sunrise_diff", int64(sunriseDiff.Seconds())).
		Int64("sunset_diff", int64(sunsetDiff.Seconds())).
		Msg("Sun position relative to now")

	switch beforeSunrise, beforeSunset := sunriseDiff > 0, sunsetDiff > 0; {
	case beforeSunrise && beforeSunset:
		return cfg.Min
	case !beforeSunrise && beforeSunset:
		return cfg.Max
	case !beforeSunrise && !beforeSunset:
		return cfg.Min
	default:
		panic(fmt.Sprintf("brightness: sunset %s precedes sunrise %s", info.Sunset, info.Sunrise))
	}
}
