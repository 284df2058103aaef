package geo

import (
	"fmt"
	"math"
	"time"
)

// Standard altitude of the sun's upper limb at rise/set, accounting for refraction
const sunriseAngle = -0.833

// NOAA computes sunrise and sunset with the sunrise equation (solar transit,
// declination and hour angle). It needs no external data.
type NOAA struct{}

// SunriseSunset implements Provider
func (NOAA) SunriseSunset(midday time.Time, lat, lon float64) (int64, int64, error) {
	// Julian day - add 0.5 because the sunrise equation expects JD at noon, not midnight
	jd := toJulianDay(midday.UTC()) + 0.5

	rise, err := sunTime(jd, lat, lon, sunriseAngle, true)
	if err != nil {
		return 0, 0, err
	}
	set, err := sunTime(jd, lat, lon, sunriseAngle, false)
	if err != nil {
		return 0, 0, err
	}
	return rise, set, nil
}

// toJulianDay converts a calendar date to Julian day number
func toJulianDay(t time.Time) float64 {
	y := float64(t.Year())
	m := float64(t.Month())
	d := float64(t.Day())

	if m <= 2 {
		y--
		m += 12
	}

	a := math.Floor(y / 100)
	b := 2 - a + math.Floor(a/4)

	return math.Floor(365.25*(y+4716)) + math.Floor(30.6001*(m+1)) + d + b - 1524.5
}

// sunTime calculates sunrise or sunset as unix seconds
func sunTime(jd, lat, lon, angle float64, rising bool) (int64, error) {
	// Approximate solar noon
	n := jd - 2451545.0 + 0.0008
	jStar := n - lon/360.0

	// Solar mean anomaly
	m := math.Mod(357.5291+0.98560028*jStar, 360.0)
	mRad := m * math.Pi / 180.0

	// Equation of center
	c := 1.9148*math.Sin(mRad) + 0.02*math.Sin(2*mRad) + 0.0003*math.Sin(3*mRad)

	// Ecliptic longitude
	lambda := math.Mod(m+c+180+102.9372, 360.0)
	lambdaRad := lambda * math.Pi / 180.0

	// Solar transit
	jTransit := 2451545.0 + jStar + 0.0053*math.Sin(mRad) - 0.0069*math.Sin(2*lambdaRad)

	// Declination of the sun
	sinDec := math.Sin(lambdaRad) * math.Sin(23.44*math.Pi/180.0)
	dec := math.Asin(sinDec)

	// Hour angle
	latRad := lat * math.Pi / 180.0
	angleRad := angle * math.Pi / 180.0

	cosOmega := (math.Sin(angleRad) - math.Sin(latRad)*math.Sin(dec)) / (math.Cos(latRad) * math.Cos(dec))

	// The sun never crosses the horizon on this day
	if cosOmega > 1 || cosOmega < -1 || math.IsNaN(cosOmega) {
		return 0, fmt.Errorf("no sunrise or sunset at latitude %.4f (cos ω = %.3f)", lat, cosOmega)
	}

	omega := math.Acos(cosOmega) * 180.0 / math.Pi

	var jTime float64
	if rising {
		jTime = jTransit - omega/360.0
	} else {
		jTime = jTransit + omega/360.0
	}

	return julianToUnix(jTime), nil
}

// julianToUnix converts a Julian day to unix seconds
func julianToUnix(jd float64) int64 {
	return int64(math.Round((jd - 2440587.5) * 86400.0))
}
