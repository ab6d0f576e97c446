package aircraft

import (
	"fmt"
	"math/bits"
	"sort"
	"strings"
)

// HistoryField identifies one tracked attribute of an aircraft. The numeric
// values end up in stored history and in API clients, never renumber them.
type HistoryField uint8

const (
	FieldIcao24             HistoryField = 1
	FieldCallsign           HistoryField = 2
	FieldAltitudeFeet       HistoryField = 3
	FieldAltitudeType       HistoryField = 4
	FieldGroundSpeedKnots   HistoryField = 5
	FieldGroundSpeedType    HistoryField = 6
	FieldGroundTrackDegrees HistoryField = 7
	FieldLocation           HistoryField = 8
	FieldVerticalRateFpm    HistoryField = 9
	FieldSquawk             HistoryField = 10
	FieldSquawkChanged      HistoryField = 11
	FieldEmergency          HistoryField = 12
	FieldIdentActive        HistoryField = 13
	FieldOnGround           HistoryField = 14
	FieldRegistration       HistoryField = 15
	FieldCountry            HistoryField = 16
	FieldModelIcao          HistoryField = 17
	FieldManufacturer       HistoryField = 18
	FieldModel              HistoryField = 19
	FieldOperatorIcao       HistoryField = 20
	FieldOperator           HistoryField = 21
	FieldSerial             HistoryField = 22
	FieldYearBuilt          HistoryField = 23
	FieldLookupAge          HistoryField = 24
)

// maxHistoryField must stay below 64, the mask is a uint64
const maxHistoryField = FieldLookupAge

var fieldNames = map[HistoryField]string{
	FieldIcao24:             "icao24",
	FieldCallsign:           "callsign",
	FieldAltitudeFeet:       "altitude",
	FieldAltitudeType:       "altitude_type",
	FieldGroundSpeedKnots:   "ground_speed",
	FieldGroundSpeedType:    "ground_speed_type",
	FieldGroundTrackDegrees: "track",
	FieldLocation:           "location",
	FieldVerticalRateFpm:    "vertical_rate",
	FieldSquawk:             "squawk",
	FieldSquawkChanged:      "squawk_changed",
	FieldEmergency:          "emergency",
	FieldIdentActive:        "ident",
	FieldOnGround:           "on_ground",
	FieldRegistration:       "registration",
	FieldCountry:            "country",
	FieldModelIcao:          "model_icao",
	FieldManufacturer:       "manufacturer",
	FieldModel:              "model",
	FieldOperatorIcao:       "operator_icao",
	FieldOperator:           "operator",
	FieldSerial:             "serial",
	FieldYearBuilt:          "year_built",
	FieldLookupAge:          "lookup_age",
}

var fieldsByName = func() map[string]HistoryField {
	m := make(map[string]HistoryField, len(fieldNames))
	for f, name := range fieldNames {
		m[name] = f
	}
	return m
}()

func (f HistoryField) String() string {
	if name, ok := fieldNames[f]; ok {
		return name
	}
	return fmt.Sprintf("field(%d)", uint8(f))
}

// IsValid reports whether f is a known field
func (f HistoryField) IsValid() bool {
	_, ok := fieldNames[f]
	return ok
}

// ParseHistoryField looks a field up by its API name
func ParseHistoryField(name string) (HistoryField, error) {
	f, ok := fieldsByName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("unknown history field %q", name)
	}
	return f, nil
}

// AllHistoryFields returns every known field in numeric order
func AllHistoryFields() []HistoryField {
	fields := make([]HistoryField, 0, len(fieldNames))
	for f := range fieldNames {
		fields = append(fields, f)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })
	return fields
}

// FieldMask is a set of history fields
type FieldMask uint64

// MaskOf builds a mask from fields. No fields means every field.
func MaskOf(fields ...HistoryField) FieldMask {
	if len(fields) == 0 {
		return AllFields
	}
	var m FieldMask
	for _, f := range fields {
		m = m.With(f)
	}
	return m
}

// AllFields contains every known field
var AllFields = func() FieldMask {
	var m FieldMask
	for f := range fieldNames {
		m = m.With(f)
	}
	return m
}()

// With returns the mask with f added
func (m FieldMask) With(f HistoryField) FieldMask {
	return m | 1<<f
}

// Has reports whether f is in the mask
func (m FieldMask) Has(f HistoryField) bool {
	return m&(1<<f) != 0
}

// Empty reports whether no field is set
func (m FieldMask) Empty() bool {
	return m == 0
}

// Len counts the fields in the mask
func (m FieldMask) Len() int {
	return bits.OnesCount64(uint64(m))
}

// Fields lists the mask's fields in numeric order
func (m FieldMask) Fields() []HistoryField {
	var fields []HistoryField
	for f := HistoryField(1); f <= maxHistoryField; f++ {
		if m.Has(f) {
			fields = append(fields, f)
		}
	}
	return fields
}
