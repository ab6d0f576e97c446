// Package jsonfeed decodes aircraft objects in the dump1090/tar1090 JSON
// shape, either streamed one object at a time or as a whole aircraft.json
// document.
package jsonfeed

import (
	"strconv"
	"strings"
	"time"

	"github.com/yegors/co-track/internal/lookup"
	"github.com/yegors/co-track/internal/transponder"
)

// Record is one aircraft object
type Record struct {
	Hex          string        `json:"hex"`
	Flight       string        `json:"flight"`
	Registration string        `json:"r"`
	AircraftType string        `json:"t"`
	Description  string        `json:"desc"`
	Operator     string        `json:"ownOp"`
	Year         FlexibleField `json:"year"`
	AltBaro      FlexibleField `json:"alt_baro"`
	AltGeom      FlexibleField `json:"alt_geom"`
	GS           FlexibleField `json:"gs"`
	IAS          FlexibleField `json:"ias"`
	TAS          FlexibleField `json:"tas"`
	Track        FlexibleField `json:"track"`
	BaroRate     FlexibleField `json:"baro_rate"`
	GeomRate     FlexibleField `json:"geom_rate"`
	Lat          FlexibleField `json:"lat"`
	Lon          FlexibleField `json:"lon"`
	Squawk       string        `json:"squawk"`
	Emergency    string        `json:"emergency"`
	Alert        FlexibleField `json:"alert"`
	SPI          FlexibleField `json:"spi"`
	Now          FlexibleField `json:"now"`
}

// Document is a whole aircraft.json. Some aggregators call the list "ac".
type Document struct {
	Now      FlexibleField `json:"now"`
	Aircraft []Record      `json:"aircraft"`
	AC       []Record      `json:"ac"`
}

// Records returns every record in the document, stamping each with the
// document time when it has none of its own
func (d *Document) Records() []Record {
	records := make([]Record, 0, len(d.Aircraft)+len(d.AC))
	records = append(records, d.Aircraft...)
	records = append(records, d.AC...)
	for i := range records {
		if !records[i].Now.Present() {
			records[i].Now = d.Now
		}
	}
	return records
}

// Time returns the record's own timestamp, zero if it has none
func (r *Record) Time() time.Time {
	secs, ok := r.Now.Float64()
	if !ok || secs <= 0 {
		return time.Time{}
	}
	whole := int64(secs)
	return time.Unix(whole, int64((secs-float64(whole))*float64(time.Second))).UTC()
}

// Convert maps the record onto a transponder message. It returns nil when
// the address does not parse.
func (r *Record) Convert(strictIcao bool) *transponder.Message {
	icao, ok := transponder.ParseIcao24(r.Hex, strictIcao)
	if !ok {
		return nil
	}

	msg := transponder.NewMessage(int32(icao))
	msg.MessageTime = r.Time()
	msg.Icao24 = &icao

	if callsign := strings.TrimSpace(r.Flight); callsign != "" {
		msg.Callsign = &callsign
	}

	if alt, ok := r.AltBaro.Int(); ok {
		msg.AltitudeFeet = transponder.Ptr(int32(alt))
		msg.AltitudeType = transponder.Ptr(transponder.AltitudeBarometric)
		msg.OnGround = transponder.Ptr(false)
	} else if r.AltBaro.String() == "ground" {
		msg.OnGround = transponder.Ptr(true)
	}
	if msg.AltitudeFeet == nil {
		if alt, ok := r.AltGeom.Int(); ok {
			msg.AltitudeFeet = transponder.Ptr(int32(alt))
			msg.AltitudeType = transponder.Ptr(transponder.AltitudeGeometric)
		}
	}

	switch {
	case r.GS.Present():
		setSpeed(msg, r.GS, transponder.SpeedGround)
	case r.TAS.Present():
		setSpeed(msg, r.TAS, transponder.SpeedTrueAir)
	case r.IAS.Present():
		setSpeed(msg, r.IAS, transponder.SpeedIndicatedAir)
	}

	if track, ok := r.Track.Float64(); ok {
		msg.GroundTrackDegrees = transponder.Ptr(float32(track))
	}

	lat, latOK := r.Lat.Float64()
	lon, lonOK := r.Lon.Float64()
	if latOK && lonOK {
		msg.Location = &transponder.Location{Lat: lat, Lon: lon}
	}

	if rate, ok := r.BaroRate.Int(); ok {
		msg.VerticalRateFpm = transponder.Ptr(int32(rate))
	} else if rate, ok := r.GeomRate.Int(); ok {
		msg.VerticalRateFpm = transponder.Ptr(int32(rate))
	}

	if sq, err := strconv.Atoi(strings.TrimSpace(r.Squawk)); err == nil && sq > 0 && sq <= 7777 {
		msg.Squawk = transponder.Ptr(int16(sq))
	}

	switch strings.ToLower(strings.TrimSpace(r.Emergency)) {
	case "":
	case "none":
		msg.Emergency = transponder.Ptr(false)
	default:
		msg.Emergency = transponder.Ptr(true)
	}
	if alert, ok := r.Alert.Bool(); ok {
		msg.SquawkChanged = &alert
	}
	if spi, ok := r.SPI.Bool(); ok {
		msg.IdentActive = &spi
	}

	return msg
}

func setSpeed(msg *transponder.Message, field FlexibleField, speedType transponder.SpeedType) {
	speed, ok := field.Float64()
	if !ok {
		return
	}
	msg.GroundSpeedKnots = transponder.Ptr(float32(speed))
	msg.GroundSpeedType = transponder.Ptr(speedType)
}

// Lookup returns the aircraft details carried in the record, if any
func (r *Record) Lookup(strictIcao bool, fallbackAge time.Time) (lookup.Outcome, bool) {
	if r.Registration == "" && r.AircraftType == "" {
		return lookup.Outcome{}, false
	}
	icao, ok := transponder.ParseIcao24(r.Hex, strictIcao)
	if !ok {
		return lookup.Outcome{}, false
	}

	age := r.Time()
	if age.IsZero() {
		age = fallbackAge
	}
	outcome := lookup.Outcome{
		Icao24:       icao,
		Found:        true,
		SourceAge:    age,
		Registration: strings.TrimSpace(r.Registration),
		ModelIcao:    strings.TrimSpace(r.AircraftType),
		Model:        strings.TrimSpace(r.Description),
		Operator:     strings.TrimSpace(r.Operator),
	}
	if year, ok := r.Year.Int(); ok {
		outcome.YearBuilt = year
	}
	return outcome, true
}
