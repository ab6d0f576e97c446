package basestation

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendRecordReproducesReceiverOutput(t *testing.T) {
	m, err := Parser{}.Translate(airbornePosition, 0)
	require.NoError(t, err)
	assert.Equal(t, airbornePosition+"\r\n", string(m.AppendRecord(nil)))
}

func TestAppendRecordIsParseable(t *testing.T) {
	alt, gs, track := int32(12025), float32(251.5), float32(273.2)
	vr, squawk, emergency := int32(-640), int16(7500), true
	when := time.Date(2024, 1, 15, 12, 34, 56, 789_000_000, time.UTC)

	record := (&Message{
		MessageType:      MessageMSG,
		TransmissionType: TransmissionAirborneVel,
		SessionID:        1,
		AircraftID:       1,
		Icao24:           "400F01",
		FlightID:         1,
		MessageGenerated: when,
		MessageLogged:    when,
		Callsign:         "EIN123",
		Altitude:         &alt,
		GroundSpeed:      &gs,
		Track:            &track,
		VerticalRate:     &vr,
		Squawk:           &squawk,
		Emergency:        &emergency,
	}).AppendRecord(nil)

	line := strings.TrimSuffix(string(record), "\r\n")
	assert.Len(t, strings.Split(line, ","), FieldCount)

	m, err := Parser{}.Translate(line, 0)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, TransmissionAirborneVel, m.TransmissionType)
	assert.Equal(t, "EIN123", m.Callsign)
	assert.Equal(t, when, m.MessageGenerated)
	assert.EqualValues(t, 12025, *m.Altitude)
	assert.InDelta(t, 251.5, *m.GroundSpeed, 0.01)
	assert.InDelta(t, 273.2, *m.Track, 0.01)
	assert.EqualValues(t, -640, *m.VerticalRate)
	assert.EqualValues(t, 7500, *m.Squawk)
	assert.True(t, *m.Emergency)
	assert.Nil(t, m.SquawkChanged)
	assert.Nil(t, m.Latitude)
}
