package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/yegors/co-track/internal/aircraft"
	"github.com/yegors/co-track/internal/transponder"
)

// Change is the payload of aircraft_added and aircraft_changed frames
type Change struct {
	AircraftID int32          `json:"aircraft_id"`
	Icao       string         `json:"icao,omitempty"`
	Stamp      int64          `json:"stamp"`
	UTC        time.Time      `json:"utc"`
	Changes    map[string]any `json:"changes"`
	fields     aircraft.FieldMask
}

// NewChangeMessage renders one list update as a stream frame
func NewChangeMessage(update aircraft.Update) *Message {
	cs := update.ChangeSet
	change := &Change{
		AircraftID: update.AircraftID,
		Stamp:      cs.Stamp(),
		UTC:        cs.UTC(),
		Changes:    make(map[string]any, cs.Len()),
		fields:     cs.Fields(),
	}
	if update.Icao24 != nil {
		change.Icao = update.Icao24.String()
	}
	for _, c := range cs.Changes() {
		change.Changes[c.Key().String()] = c.Untyped()
	}

	messageType := MessageTypeAircraftChanged
	if update.Added {
		messageType = MessageTypeAircraftAdded
	}
	return &Message{Type: messageType, Data: change}
}

// ClientFilters narrow the stream for one client. The zero value lets
// everything through.
type ClientFilters struct {
	Aircraft map[int32]bool
	Icaos    map[transponder.Icao24]bool
	Fields   aircraft.FieldMask
}

// filterRequest is the wire form of a filter_update frame
type filterRequest struct {
	AircraftIDs []int32  `json:"aircraft_ids"`
	Icaos       []string `json:"icaos"`
	Fields      []string `json:"fields"`
}

// ParseFilters decodes the data of a filter_update frame
func ParseFilters(data json.RawMessage) (*ClientFilters, error) {
	var req filterRequest
	if len(data) > 0 {
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, fmt.Errorf("invalid filter: %w", err)
		}
	}

	filters := &ClientFilters{}
	if len(req.AircraftIDs) > 0 {
		filters.Aircraft = make(map[int32]bool, len(req.AircraftIDs))
		for _, id := range req.AircraftIDs {
			filters.Aircraft[id] = true
		}
	}
	if len(req.Icaos) > 0 {
		filters.Icaos = make(map[transponder.Icao24]bool, len(req.Icaos))
		for _, s := range req.Icaos {
			var icao transponder.Icao24
			if err := icao.UnmarshalText([]byte(s)); err != nil {
				return nil, err
			}
			filters.Icaos[icao] = true
		}
	}
	for _, name := range req.Fields {
		field, err := aircraft.ParseHistoryField(name)
		if err != nil {
			return nil, err
		}
		filters.Fields = filters.Fields.With(field)
	}
	return filters, nil
}

// Apply returns change unchanged when it passes untouched, a copy holding
// only the requested fields, or nil when the client is not interested
func (f *ClientFilters) Apply(change *Change) *Change {
	if f == nil {
		return change
	}

	var icao *transponder.Icao24
	if change.Icao != "" {
		var parsed transponder.Icao24
		if parsed.UnmarshalText([]byte(change.Icao)) == nil {
			icao = &parsed
		}
	}
	if !f.Selects(change.AircraftID, icao) {
		return nil
	}

	if f.Fields.Empty() {
		return change
	}
	if change.fields&f.Fields == 0 {
		return nil
	}
	if change.fields&^f.Fields == 0 {
		return change
	}

	trimmed := *change
	trimmed.Changes = make(map[string]any)
	trimmed.fields = change.fields & f.Fields
	for _, field := range trimmed.fields.Fields() {
		name := field.String()
		trimmed.Changes[name] = change.Changes[name]
	}
	return &trimmed
}

// Selects reports whether the aircraft passes the id and address filters
func (f *ClientFilters) Selects(id int32, icao *transponder.Icao24) bool {
	if f == nil || (len(f.Aircraft) == 0 && len(f.Icaos) == 0) {
		return true
	}
	if f.Aircraft[id] {
		return true
	}
	return icao != nil && f.Icaos[*icao]
}
