// Package transponder holds the canonical, feed-independent representation
// of one decoded transponder transmission.
package transponder

import (
	"fmt"
	"time"
)

// AltitudeType says which instrument an altitude came from
type AltitudeType uint8

const (
	AltitudeBarometric AltitudeType = iota + 1
	AltitudeGeometric
)

func (t AltitudeType) String() string {
	switch t {
	case AltitudeBarometric:
		return "barometric"
	case AltitudeGeometric:
		return "geometric"
	default:
		return "unknown"
	}
}

// SpeedType says what kind of speed a reported speed is
type SpeedType uint8

const (
	SpeedGround SpeedType = iota + 1
	SpeedGroundReversing
	SpeedIndicatedAir
	SpeedTrueAir
)

func (t SpeedType) String() string {
	switch t {
	case SpeedGround:
		return "ground"
	case SpeedGroundReversing:
		return "ground-reversing"
	case SpeedIndicatedAir:
		return "indicated-air"
	case SpeedTrueAir:
		return "true-air"
	default:
		return "unknown"
	}
}

// Location is a WGS84 position in decimal degrees
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (l Location) String() string {
	return fmt.Sprintf("%.6f,%.6f", l.Lat, l.Lon)
}

// Message is one decoded transmission. Only the aircraft id is mandatory.
// Every other field is a pointer and nil means "not transmitted", which is
// not the same as zero or false: applying a zero where the feed sent nothing
// would overwrite state that is still valid.
type Message struct {
	aircraftID int32

	MessageTime time.Time // when the receiver generated the message, zero if unknown

	Icao24             *Icao24
	Callsign           *string
	AltitudeFeet       *int32
	AltitudeType       *AltitudeType
	GroundSpeedKnots   *float32
	GroundSpeedType    *SpeedType
	GroundTrackDegrees *float32
	Location           *Location
	VerticalRateFpm    *int32
	Squawk             *int16
	SquawkChanged      *bool
	Emergency          *bool
	IdentActive        *bool
	OnGround           *bool
}

// NewMessage creates an empty message for the given aircraft
func NewMessage(aircraftID int32) *Message {
	return &Message{aircraftID: aircraftID}
}

// AircraftID returns the session-scoped id of the aircraft the message is about
func (m *Message) AircraftID() int32 {
	return m.aircraftID
}

// Ptr returns a pointer to a copy of v. Handy when filling in messages.
func Ptr[T any](v T) *T {
	return &v
}
