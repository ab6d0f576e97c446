package basestation

import (
	"time"

	"github.com/yegors/co-track/internal/transponder"
)

// Converter turns raw feed lines into transponder messages
type Converter struct {
	parser         Parser
	strictIcao     bool
	timeZoneOffset time.Duration
}

// NewConverter creates a converter. With strictIcao unset, stray non-hex
// characters in the address field are skipped rather than rejected.
func NewConverter(strictIcao bool, timeZoneOffset time.Duration) *Converter {
	return &Converter{
		strictIcao:     strictIcao,
		timeZoneOffset: timeZoneOffset,
	}
}

// FromFeedMessage parses one chunk and returns zero or one messages. Records
// that are not aircraft messages, or whose address does not parse, give
// nothing. The only error is a malformed date or time.
func (c *Converter) FromFeedMessage(chunk []byte) ([]*transponder.Message, error) {
	parsed, err := c.parser.Translate(string(chunk), c.timeZoneOffset)
	if err != nil {
		return nil, err
	}
	msg := c.Convert(parsed)
	if msg == nil {
		return nil, nil
	}
	return []*transponder.Message{msg}, nil
}

// Convert maps a parsed record onto a transponder message, or returns nil
func (c *Converter) Convert(m *Message) *transponder.Message {
	if m == nil || !m.IsAircraftMessage() {
		return nil
	}
	icao, ok := transponder.ParseIcao24(m.Icao24, c.strictIcao)
	if !ok {
		return nil
	}

	msg := transponder.NewMessage(int32(icao))
	msg.MessageTime = m.MessageGenerated
	msg.Icao24 = &icao

	if m.Callsign != "" {
		msg.Callsign = transponder.Ptr(m.Callsign)
	}
	if m.Altitude != nil {
		msg.AltitudeFeet = m.Altitude
		msg.AltitudeType = transponder.Ptr(transponder.AltitudeBarometric)
	}
	if m.GroundSpeed != nil {
		msg.GroundSpeedKnots = m.GroundSpeed
		msg.GroundSpeedType = transponder.Ptr(transponder.SpeedGround)
	}
	msg.GroundTrackDegrees = m.Track
	if m.Latitude != nil && m.Longitude != nil {
		msg.Location = &transponder.Location{Lat: *m.Latitude, Lon: *m.Longitude}
	}
	msg.VerticalRateFpm = m.VerticalRate
	msg.Squawk = m.Squawk
	msg.SquawkChanged = m.SquawkChanged
	msg.Emergency = m.Emergency
	msg.IdentActive = m.IdentActive
	msg.OnGround = m.OnGround

	return msg
}
