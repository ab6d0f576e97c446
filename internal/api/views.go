package api

import (
	"fmt"
	"math"
	"time"

	"github.com/yegors/co-track/internal/aircraft"
	"github.com/yegors/co-track/internal/config"
	"github.com/yegors/co-track/internal/geo"
	"github.com/yegors/co-track/internal/transponder"
)

// AircraftView is the JSON form of one aircraft. Fields the aircraft has
// never reported are omitted.
type AircraftView struct {
	ID           int32     `json:"id"`
	Icao         string    `json:"icao,omitempty"`
	Stamp        int64     `json:"stamp"`
	FirstSeen    time.Time `json:"first_seen"`
	LastSeen     time.Time `json:"last_seen"`
	MessageCount int64     `json:"message_count"`

	Callsign         string                `json:"callsign,omitempty"`
	AltitudeFeet     *int32                `json:"altitude,omitempty"`
	AltitudeType     string                `json:"altitude_type,omitempty"`
	GroundSpeedKnots *float32              `json:"ground_speed,omitempty"`
	GroundSpeedType  string                `json:"ground_speed_type,omitempty"`
	TrackDegrees     *float32              `json:"track,omitempty"`
	MagneticTrack    *float64              `json:"magnetic_track,omitempty"`
	Location         *transponder.Location `json:"location,omitempty"`
	VerticalRateFpm  *int32                `json:"vertical_rate,omitempty"`
	Squawk           string                `json:"squawk,omitempty"`
	SquawkChanged    *bool                 `json:"squawk_changed,omitempty"`
	Emergency        *bool                 `json:"emergency,omitempty"`
	IdentActive      *bool                 `json:"ident,omitempty"`
	OnGround         *bool                 `json:"on_ground,omitempty"`

	// Relative to the receiver
	DistanceNM     *float64 `json:"distance_nm,omitempty"`
	BearingDegrees *float64 `json:"bearing,omitempty"`

	Details *DetailsView `json:"details,omitempty"`
}

// DetailsView holds what the lookup service knows about the airframe
type DetailsView struct {
	Registration string    `json:"registration,omitempty"`
	Country      string    `json:"country,omitempty"`
	ModelIcao    string    `json:"model_icao,omitempty"`
	Manufacturer string    `json:"manufacturer,omitempty"`
	Model        string    `json:"model,omitempty"`
	OperatorIcao string    `json:"operator_icao,omitempty"`
	Operator     string    `json:"operator,omitempty"`
	Serial       string    `json:"serial,omitempty"`
	YearBuilt    int       `json:"year_built,omitempty"`
	LookupAge    time.Time `json:"lookup_age"`
}

// ChangeSetView is one entry of an aircraft's history
type ChangeSetView struct {
	Stamp   int64          `json:"stamp"`
	UTC     time.Time      `json:"utc"`
	Changes map[string]any `json:"changes"`
}

// HistoryView answers a history query
type HistoryView struct {
	AircraftID int32           `json:"aircraft_id"`
	Stamp      int64           `json:"stamp"`
	Fields     []string        `json:"fields"`
	ChangeSets []ChangeSetView `json:"change_sets"`
}

// ListView answers a list query. Stamp is the list stamp to pass as since
// on the next poll.
type ListView struct {
	Stamp    int64           `json:"stamp"`
	Count    int             `json:"count"`
	Aircraft []*AircraftView `json:"aircraft"`
}

// viewer renders aircraft relative to the receiver
type viewer struct {
	station config.StationConfig
	now     func() time.Time
}

func ptr[T any](v T) *T {
	return &v
}

func (v viewer) aircraft(a *aircraft.Aircraft) *AircraftView {
	out := &AircraftView{
		ID:           a.ID,
		Stamp:        a.Stamp,
		FirstSeen:    a.FirstSeen,
		LastSeen:     a.LastSeen,
		MessageCount: a.MessageCount,
		Callsign:     a.Callsign.Value(),
	}

	if a.Icao24.Established() {
		out.Icao = a.Icao24.Value().String()
	}
	if a.AltitudeFeet.Established() {
		out.AltitudeFeet = ptr(a.AltitudeFeet.Value())
	}
	if a.AltitudeType.Established() {
		out.AltitudeType = a.AltitudeType.Value().String()
	}
	if a.GroundSpeedKnots.Established() {
		out.GroundSpeedKnots = ptr(a.GroundSpeedKnots.Value())
	}
	if a.GroundSpeedType.Established() {
		out.GroundSpeedType = a.GroundSpeedType.Value().String()
	}
	if a.VerticalRateFpm.Established() {
		out.VerticalRateFpm = ptr(a.VerticalRateFpm.Value())
	}
	if a.Squawk.Established() {
		out.Squawk = fmt.Sprintf("%04d", a.Squawk.Value())
	}
	if a.SquawkChanged.Established() {
		out.SquawkChanged = ptr(a.SquawkChanged.Value())
	}
	if a.Emergency.Established() {
		out.Emergency = ptr(a.Emergency.Value())
	}
	if a.IdentActive.Established() {
		out.IdentActive = ptr(a.IdentActive.Value())
	}
	if a.OnGround.Established() {
		out.OnGround = ptr(a.OnGround.Value())
	}

	if a.Location.Established() {
		loc := a.Location.Value()
		out.Location = &loc

		meters := geo.Haversine(v.station.Latitude, v.station.Longitude, loc.Lat, loc.Lon)
		out.DistanceNM = ptr(round(geo.MetersToNM(meters), 1))
		out.BearingDegrees = ptr(round(geo.InitialBearing(v.station.Latitude, v.station.Longitude, loc.Lat, loc.Lon), 1))
	}

	if a.GroundTrackDegrees.Established() {
		track := a.GroundTrackDegrees.Value()
		out.TrackDegrees = &track

		// Variation at the aircraft when we know where it is, else at the receiver
		lat, lon, alt := v.station.Latitude, v.station.Longitude, float64(v.station.ElevationFeet)
		if out.Location != nil {
			lat, lon = out.Location.Lat, out.Location.Lon
		}
		if out.AltitudeFeet != nil {
			alt = float64(*out.AltitudeFeet)
		}
		declination := geo.CalculateMagneticVariation(lat, lon, alt, v.now())
		out.MagneticTrack = ptr(round(geo.MagneticTrack(float64(track), declination), 1))
	}

	if hasDetails(a) {
		out.Details = &DetailsView{
			Registration: a.Registration.Value(),
			Country:      a.Country.Value(),
			ModelIcao:    a.ModelIcao.Value(),
			Manufacturer: a.Manufacturer.Value(),
			Model:        a.Model.Value(),
			OperatorIcao: a.OperatorIcao.Value(),
			Operator:     a.Operator.Value(),
			Serial:       a.Serial.Value(),
			YearBuilt:    a.YearBuilt.Value(),
			LookupAge:    a.LookupAge.Value(),
		}
	}

	return out
}

func hasDetails(a *aircraft.Aircraft) bool {
	return a.LookupAge.Established() || a.Registration.Established() || a.ModelIcao.Established() ||
		a.Operator.Established() || a.Model.Established()
}

func changeSetView(cs *aircraft.ChangeSet, fields aircraft.FieldMask) ChangeSetView {
	view := ChangeSetView{
		Stamp:   cs.Stamp(),
		UTC:     cs.UTC(),
		Changes: make(map[string]any, cs.Len()),
	}
	for _, c := range cs.Changes() {
		if fields.Has(c.Key()) {
			view.Changes[c.Key().String()] = c.Untyped()
		}
	}
	return view
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
