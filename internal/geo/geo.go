// Package geo has the position maths the API needs: distance and bearing
// from the receiver and magnetic variation for converting true tracks.
package geo

import (
	"math"
	"time"

	"github.com/westphae/geomag/pkg/egm96"
	"github.com/westphae/geomag/pkg/wmm"
)

// Constants
const (
	EarthRadiusM = 6371008.8 // mean Earth radius (m)
	MetersPerNM  = 1852.0
	FeetToMeters = 0.3048
)

// Haversine returns the great-circle distance in meters between two points
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return 2 * EarthRadiusM * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// MetersToNM converts meters to nautical miles
func MetersToNM(m float64) float64 {
	return m / MetersPerNM
}

// InitialBearing returns the true bearing in degrees [0, 360) from point 1
// towards point 2
func InitialBearing(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	y := math.Sin(dLambda) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLambda)
	return NormalizeDegrees(math.Atan2(y, x) * 180 / math.Pi)
}

// NormalizeDegrees maps any angle onto [0, 360)
func NormalizeDegrees(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

// CalculateMagneticVariation calculates the magnetic declination for a given position and time
// Returns declination in degrees (+East, -West)
func CalculateMagneticVariation(lat, lon, altFt float64, date time.Time) float64 {
	loc := egm96.NewLocationGeodetic(lat, lon, altFt*FeetToMeters)

	mag, err := wmm.CalculateWMMMagneticField(loc, date)
	if err != nil {
		// outside the model's validity window
		return 0.0
	}

	return mag.D()
}

// MagneticTrack converts a true track using an east-positive declination
func MagneticTrack(trueTrack, declination float64) float64 {
	return NormalizeDegrees(trueTrack - declination)
}
