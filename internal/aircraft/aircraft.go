// Package aircraft holds the live aircraft state built from transponder
// messages and lookups. Every change is recorded in a per-aircraft history
// of change sets ordered by a process-wide stamp.
package aircraft

import (
	"time"

	"github.com/yegors/co-track/internal/lookup"
	"github.com/yegors/co-track/internal/transponder"
)

// Aircraft is the current state of one aircraft track. It is not safe for
// concurrent use; List serializes access and hands out copies.
type Aircraft struct {
	ID    int32
	Stamp int64

	FirstSeen    time.Time
	LastSeen     time.Time
	MessageCount int64

	Icao24             StampedValue[transponder.Icao24]
	Callsign           StampedValue[string]
	AltitudeFeet       StampedValue[int32]
	AltitudeType       StampedValue[transponder.AltitudeType]
	GroundSpeedKnots   StampedValue[float32]
	GroundSpeedType    StampedValue[transponder.SpeedType]
	GroundTrackDegrees StampedValue[float32]
	Location           StampedValue[transponder.Location]
	VerticalRateFpm    StampedValue[int32]
	Squawk             StampedValue[int16]
	SquawkChanged      StampedValue[bool]
	Emergency          StampedValue[bool]
	IdentActive        StampedValue[bool]
	OnGround           StampedValue[bool]

	Registration StampedValue[string]
	Country      StampedValue[string]
	ModelIcao    StampedValue[string]
	Manufacturer StampedValue[string]
	Model        StampedValue[string]
	OperatorIcao StampedValue[string]
	Operator     StampedValue[string]
	Serial       StampedValue[string]
	YearBuilt    StampedValue[int]
	LookupAge    StampedValue[time.Time]

	history *History
}

// New creates an aircraft with no state
func New(id int32) *Aircraft {
	return &Aircraft{ID: id, history: &History{}}
}

// History returns a snapshot of the aircraft's change sets
func (a *Aircraft) History() *HistorySnapshot {
	return a.history.Snapshot()
}

// ApplyMessage copies every field the message carries. It returns the
// locked change set, or nil when nothing changed.
func (a *Aircraft) ApplyMessage(msg *transponder.Message, stamp int64, utc time.Time) *ChangeSet {
	cs := NewChangeSet(stamp, utc)

	setPtr(&a.Icao24, cs, FieldIcao24, msg.Icao24)
	setPtr(&a.Callsign, cs, FieldCallsign, msg.Callsign)
	setPtr(&a.AltitudeFeet, cs, FieldAltitudeFeet, msg.AltitudeFeet)
	setPtr(&a.AltitudeType, cs, FieldAltitudeType, msg.AltitudeType)
	setPtr(&a.GroundSpeedKnots, cs, FieldGroundSpeedKnots, msg.GroundSpeedKnots)
	setPtr(&a.GroundSpeedType, cs, FieldGroundSpeedType, msg.GroundSpeedType)
	setPtr(&a.GroundTrackDegrees, cs, FieldGroundTrackDegrees, msg.GroundTrackDegrees)
	setPtr(&a.Location, cs, FieldLocation, msg.Location)
	setPtr(&a.VerticalRateFpm, cs, FieldVerticalRateFpm, msg.VerticalRateFpm)
	setPtr(&a.Squawk, cs, FieldSquawk, msg.Squawk)
	setPtr(&a.SquawkChanged, cs, FieldSquawkChanged, msg.SquawkChanged)
	setPtr(&a.Emergency, cs, FieldEmergency, msg.Emergency)
	setPtr(&a.IdentActive, cs, FieldIdentActive, msg.IdentActive)
	setPtr(&a.OnGround, cs, FieldOnGround, msg.OnGround)

	if a.FirstSeen.IsZero() {
		a.FirstSeen = utc
	}
	a.LastSeen = utc
	a.MessageCount++

	return a.commit(cs)
}

// ApplyLookup copies the details of a found lookup. Empty strings never
// clear a known value. A missing outcome only records its age.
func (a *Aircraft) ApplyLookup(outcome lookup.Outcome, stamp int64, utc time.Time) *ChangeSet {
	cs := NewChangeSet(stamp, utc)

	if outcome.Found {
		a.Registration.SetIfNotDefault(cs, FieldRegistration, outcome.Registration)
		a.Country.SetIfNotDefault(cs, FieldCountry, outcome.Country)
		a.ModelIcao.SetIfNotDefault(cs, FieldModelIcao, outcome.ModelIcao)
		a.Manufacturer.SetIfNotDefault(cs, FieldManufacturer, outcome.Manufacturer)
		a.Model.SetIfNotDefault(cs, FieldModel, outcome.Model)
		a.OperatorIcao.SetIfNotDefault(cs, FieldOperatorIcao, outcome.OperatorIcao)
		a.Operator.SetIfNotDefault(cs, FieldOperator, outcome.Operator)
		a.Serial.SetIfNotDefault(cs, FieldSerial, outcome.Serial)
		a.YearBuilt.SetIfNotDefault(cs, FieldYearBuilt, outcome.YearBuilt)
	}
	a.LookupAge.SetIfNotDefault(cs, FieldLookupAge, outcome.SourceAge.UTC())

	return a.commit(cs)
}

func (a *Aircraft) commit(cs *ChangeSet) *ChangeSet {
	if !cs.HasChanges() {
		return nil
	}
	if latest := a.history.latest(); latest != nil {
		cs.EnsureLaterThan(latest.utc)
	}
	cs.Lock()
	a.history.append(cs)
	if cs.stamp > a.Stamp {
		a.Stamp = cs.stamp
	}
	return cs
}

// Copy returns an independent copy. Change sets are locked so the copy
// shares them; its history never sees later changes to a.
func (a *Aircraft) Copy() *Aircraft {
	c := *a
	snap := a.history.Snapshot()
	c.history = &History{changeSets: snap.changeSets, established: snap.established}
	return &c
}
