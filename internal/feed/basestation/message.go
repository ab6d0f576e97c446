// Package basestation decodes the BaseStation (SBS-1) text feed: one
// comma-separated record per line, 22 fields per record.
package basestation

import "time"

// MessageType is field 0 of a record
type MessageType string

// BaseStation message types
const (
	MessageSEL MessageType = "SEL" // Selection Change
	MessageID  MessageType = "ID"  // New ID
	MessageAIR MessageType = "AIR" // New Aircraft
	MessageSTA MessageType = "STA" // Status Change
	MessageCLK MessageType = "CLK" // Click
	MessageMSG MessageType = "MSG" // Transmission
)

// TransmissionType is field 1 of a MSG record
type TransmissionType int

// BaseStation transmission types
const (
	TransmissionNone           TransmissionType = 0
	TransmissionIDAndCategory  TransmissionType = 1 // Extended Squitter Aircraft ID and Category
	TransmissionSurfacePos     TransmissionType = 2 // Extended Squitter Surface Position
	TransmissionAirbornePos    TransmissionType = 3 // Extended Squitter Airborne Position
	TransmissionAirborneVel    TransmissionType = 4 // Extended Squitter Airborne Velocity
	TransmissionSurveillance   TransmissionType = 5 // Surveillance Alt, Squawk change
	TransmissionSurveillanceID TransmissionType = 6 // Surveillance ID change
	TransmissionAirToAir       TransmissionType = 7 // Air-to-Air Message
	TransmissionAllCall        TransmissionType = 8 // All Call Reply
)

// StatusCode is field 10 of a STA record
type StatusCode string

const (
	StatusPositionLost StatusCode = "PL"
	StatusSignalLost   StatusCode = "SL"
	StatusRemove       StatusCode = "RM"
	StatusDelete       StatusCode = "AD"
	StatusOK           StatusCode = "OK"
)

// FieldCount is the minimum number of fields in a record
const FieldCount = 22

// Message is one parsed record. Optional values are nil when the field was
// empty or could not be parsed.
type Message struct {
	MessageType      MessageType
	TransmissionType TransmissionType
	SessionID        int
	AircraftID       int
	Icao24           string
	FlightID         int
	MessageGenerated time.Time
	MessageLogged    time.Time
	Callsign         string
	StatusCode       StatusCode
	Altitude         *int32
	GroundSpeed      *float32
	Track            *float32
	Latitude         *float64
	Longitude        *float64
	VerticalRate     *int32
	Squawk           *int16
	SquawkChanged    *bool
	Emergency        *bool
	IdentActive      *bool
	OnGround         *bool
}

// IsAircraftMessage reports whether the record describes an aircraft's state.
// Only transmissions of a known type do, the other record types are session
// bookkeeping from the receiver software.
func (m *Message) IsAircraftMessage() bool {
	return m.MessageType == MessageMSG &&
		m.TransmissionType >= TransmissionIDAndCategory &&
		m.TransmissionType <= TransmissionAllCall
}
