package geo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHaversine(t *testing.T) {
	// Dublin to London Heathrow is roughly 449 km
	d := Haversine(53.4213, -6.2701, 51.4700, -0.4543)
	assert.InDelta(t, 449_000, d, 3_000)
	assert.InDelta(t, 242.4, MetersToNM(d), 2)

	assert.Zero(t, Haversine(10, 10, 10, 10))
}

func TestInitialBearing(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		want                   float64
	}{
		{"north", 0, 0, 1, 0, 0},
		{"east", 0, 0, 0, 1, 90},
		{"south", 1, 0, 0, 0, 180},
		{"west", 0, 1, 0, 0, 270},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, InitialBearing(tt.lat1, tt.lon1, tt.lat2, tt.lon2), 0.01)
		})
	}
}

func TestNormalizeDegrees(t *testing.T) {
	assert.InDelta(t, 350, NormalizeDegrees(-10), 1e-9)
	assert.InDelta(t, 10, NormalizeDegrees(370), 1e-9)
	assert.InDelta(t, 0, NormalizeDegrees(360), 1e-9)
}

func TestMagneticVariation(t *testing.T) {
	// Ireland has a small westerly variation, or zero outside the model's epoch
	d := CalculateMagneticVariation(53.4, -6.2, 0, time.Now())
	assert.LessOrEqual(t, d, 0.0)
	assert.Greater(t, d, -6.0)

	assert.InDelta(t, 92, MagneticTrack(90, -2), 1e-9)
	assert.InDelta(t, 358, MagneticTrack(1, 3), 1e-9)
}
