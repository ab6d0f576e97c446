package basestation

import (
	"strconv"
	"time"
)

// AppendRecord appends m as one CRLF terminated record, the way a receiver
// writes it. Times are written in UTC.
func (m *Message) AppendRecord(dst []byte) []byte {
	dst = append(dst, m.MessageType...)
	dst = append(dst, ',')
	if m.MessageType == MessageMSG {
		dst = strconv.AppendInt(dst, int64(m.TransmissionType), 10)
	}
	dst = append(dst, ',')
	dst = strconv.AppendInt(dst, int64(m.SessionID), 10)
	dst = append(dst, ',')
	dst = strconv.AppendInt(dst, int64(m.AircraftID), 10)
	dst = append(dst, ',')
	dst = append(dst, m.Icao24...)
	dst = append(dst, ',')
	dst = strconv.AppendInt(dst, int64(m.FlightID), 10)
	dst = append(dst, ',')
	dst = appendDateTime(dst, m.MessageGenerated)
	dst = append(dst, ',')
	dst = appendDateTime(dst, m.MessageLogged)
	dst = append(dst, ',')

	if m.MessageType == MessageSTA {
		dst = append(dst, m.StatusCode...)
	} else {
		dst = append(dst, m.Callsign...)
	}
	dst = append(dst, ',')

	if m.Altitude != nil {
		dst = strconv.AppendInt(dst, int64(*m.Altitude), 10)
	}
	dst = append(dst, ',')
	if m.GroundSpeed != nil {
		dst = strconv.AppendFloat(dst, float64(*m.GroundSpeed), 'f', 1, 32)
	}
	dst = append(dst, ',')
	if m.Track != nil {
		dst = strconv.AppendFloat(dst, float64(*m.Track), 'f', 1, 32)
	}
	dst = append(dst, ',')
	if m.Latitude != nil {
		dst = strconv.AppendFloat(dst, *m.Latitude, 'f', 5, 64)
	}
	dst = append(dst, ',')
	if m.Longitude != nil {
		dst = strconv.AppendFloat(dst, *m.Longitude, 'f', 5, 64)
	}
	dst = append(dst, ',')
	if m.VerticalRate != nil {
		dst = strconv.AppendInt(dst, int64(*m.VerticalRate), 10)
	}
	dst = append(dst, ',')
	if m.Squawk != nil {
		dst = strconv.AppendInt(dst, int64(*m.Squawk), 10)
	}
	for _, flag := range []*bool{m.SquawkChanged, m.Emergency, m.IdentActive, m.OnGround} {
		dst = append(dst, ',')
		if flag != nil {
			if *flag {
				dst = append(dst, "-1"...)
			} else {
				dst = append(dst, '0')
			}
		}
	}
	return append(dst, '\r', '\n')
}

func appendDateTime(dst []byte, t time.Time) []byte {
	if t.IsZero() {
		return append(dst, ',')
	}
	t = t.UTC()
	dst = t.AppendFormat(dst, "2006/01/02")
	dst = append(dst, ',')
	return t.AppendFormat(dst, "15:04:05.000")
}
