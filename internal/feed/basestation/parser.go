package basestation

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidDateTime is returned when a date or time field has the wrong shape.
// A well-behaved receiver never sends one so it points at a corrupted stream.
var ErrInvalidDateTime = errors.New("invalid basestation date/time")

const (
	dateLength = len("2006/01/02")
	timeLength = len("15:04:05.000")
)

// Parser translates one line of text into a Message
type Parser struct{}

// Translate parses a record. Lines with fewer than FieldCount fields give
// (nil, nil). Unparseable numbers leave the value nil. A date or time field
// that is present but not exactly the expected length is an error.
//
// tzOffset is the feed clock's offset east of UTC.
func (Parser) Translate(text string, tzOffset time.Duration) (*Message, error) {
	fields := strings.Split(text, ",")
	if len(fields) < FieldCount {
		return nil, nil
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	m := &Message{
		MessageType:      MessageType(strings.ToUpper(fields[0])),
		TransmissionType: TransmissionType(parseIntOr(fields[1], 0)),
		SessionID:        parseIntOr(fields[2], 0),
		AircraftID:       parseIntOr(fields[3], 0),
		Icao24:           fields[4],
		FlightID:         parseIntOr(fields[5], 0),
	}

	var err error
	if m.MessageGenerated, err = parseDateTime(fields[6], fields[7], tzOffset); err != nil {
		return nil, fmt.Errorf("message generated: %w", err)
	}
	if m.MessageLogged, err = parseDateTime(fields[8], fields[9], tzOffset); err != nil {
		return nil, fmt.Errorf("message logged: %w", err)
	}

	switch {
	case m.IsAircraftMessage():
		m.Callsign = fields[10]
	case m.MessageType == MessageSTA:
		m.StatusCode = StatusCode(strings.ToUpper(fields[10]))
	}

	m.Altitude = parseInt32(fields[11])
	m.GroundSpeed = parseFloat32(fields[12])
	m.Track = parseFloat32(fields[13])
	m.Latitude = parseFloat64(fields[14])
	m.Longitude = parseFloat64(fields[15])
	m.VerticalRate = parseInt32(fields[16])
	if sq := parseInt32(fields[17]); sq != nil && *sq > 0 && *sq <= 7777 {
		v := int16(*sq)
		m.Squawk = &v
	}
	m.SquawkChanged = parseFlag(fields[18])
	m.Emergency = parseFlag(fields[19])
	m.IdentActive = parseFlag(fields[20])
	m.OnGround = parseFlag(fields[21])

	return m, nil
}

// parseDateTime combines a YYYY/MM/DD date with an HH:MM:SS.fff time. Both
// empty is not an error, it just means the receiver did not say. Separators
// are never looked at, only digit positions.
func parseDateTime(date, clock string, tzOffset time.Duration) (time.Time, error) {
	if date == "" && clock == "" {
		return time.Time{}, nil
	}
	if len(date) != dateLength {
		return time.Time{}, fmt.Errorf("%w: date %q", ErrInvalidDateTime, date)
	}
	if len(clock) != timeLength {
		return time.Time{}, fmt.Errorf("%w: time %q", ErrInvalidDateTime, clock)
	}

	year, ok1 := digits(date[0:4])
	month, ok2 := digits(date[5:7])
	day, ok3 := digits(date[8:10])
	hour, ok4 := digits(clock[0:2])
	minute, ok5 := digits(clock[3:5])
	second, ok6 := digits(clock[6:8])
	millis, ok7 := digits(clock[9:12])
	if !(ok1 && ok2 && ok3 && ok4 && ok5 && ok6 && ok7) {
		return time.Time{}, fmt.Errorf("%w: %q %q", ErrInvalidDateTime, date, clock)
	}
	if month < 1 || month > 12 || day < 1 || day > 31 || hour > 23 || minute > 59 || second > 59 {
		return time.Time{}, fmt.Errorf("%w: %q %q out of range", ErrInvalidDateTime, date, clock)
	}

	local := time.Date(year, time.Month(month), day, hour, minute, second, millis*int(time.Millisecond), time.UTC)
	return local.Add(-tzOffset), nil
}

func digits(s string) (int, bool) {
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

func parseIntOr(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return v
}

func parseInt32(s string) *int32 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		// some receivers write altitudes with a fraction
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || math.IsNaN(f) || f > float64(1<<31-1) || f < -float64(1<<31) {
			return nil
		}
		v = int64(f)
	}
	r := int32(v)
	return &r
}

func parseFloat32(s string) *float32 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 32)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	r := float32(v)
	return &r
}

func parseFloat64(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// parseFlag treats "0" as false and anything else (usually "-1") as true
func parseFlag(s string) *bool {
	if s == "" {
		return nil
	}
	v := s != "0"
	return &v
}
