package aircraft

import (
	"sort"
	"sync"
	"time"

	"github.com/yegors/co-track/internal/event"
	"github.com/yegors/co-track/internal/lookup"
	"github.com/yegors/co-track/internal/metrics"
	"github.com/yegors/co-track/internal/stamp"
	"github.com/yegors/co-track/internal/transponder"
)

// ApplyResult says what applying one message did to the list
type ApplyResult struct {
	AddedAircraft   bool
	ChangedAircraft bool
	Stamp           int64      // the aircraft's stamp after the message
	ChangeSet       *ChangeSet // nil when nothing changed
}

// Update is one locked change set applied to one aircraft
type Update struct {
	AircraftID int32
	Icao24     *transponder.Icao24 // nil until the aircraft has an address
	Added      bool
	ChangeSet  *ChangeSet
}

// List is every aircraft seen in this session, by id and by ICAO address.
// One mutex covers the whole list. Aircraft are never removed here.
//
// When two ids claim the same ICAO address the last one to change it owns
// the address index entry.
type List struct {
	mu     sync.Mutex
	stamps stamp.Source
	clock  func() time.Time
	byID   map[int32]*Aircraft
	byIcao map[transponder.Icao24]*Aircraft
	stamp  int64

	updates event.Feed[Update]
}

// NewList creates an empty list that takes its stamps from stamps
func NewList(stamps stamp.Source) *List {
	return NewListWithClock(stamps, time.Now)
}

// NewListWithClock is NewList with a custom wall clock
func NewListWithClock(stamps stamp.Source, clock func() time.Time) *List {
	return &List{
		stamps: stamps,
		clock:  clock,
		byID:   make(map[int32]*Aircraft),
		byIcao: make(map[transponder.Icao24]*Aircraft),
	}
}

// ApplyMessage applies msg to its aircraft, creating the aircraft first if
// this is the first message for its id
func (l *List) ApplyMessage(msg *transponder.Message) ApplyResult {
	l.mu.Lock()

	var result ApplyResult

	a, ok := l.byID[msg.AircraftID()]
	if !ok {
		a = New(msg.AircraftID())
		l.byID[a.ID] = a
		result.AddedAircraft = true
		metrics.AircraftTracked.Set(float64(len(l.byID)))
	}

	oldIcao, hadIcao := a.Icao24.Value(), a.Icao24.Established()

	cs := a.ApplyMessage(msg, l.stamps.Next(), l.clock().UTC())
	if cs != nil {
		if cs.fields.Has(FieldIcao24) {
			if hadIcao && l.byIcao[oldIcao] == a {
				delete(l.byIcao, oldIcao)
			}
			l.byIcao[a.Icao24.Value()] = a
		}
		l.incorporate(cs)
	}

	result.ChangedAircraft = cs != nil
	result.ChangeSet = cs
	result.Stamp = a.Stamp

	var update Update
	if cs != nil {
		update = updateOf(a, cs, result.AddedAircraft)
	}
	l.mu.Unlock()

	if cs != nil {
		l.updates.Publish(update)
	}
	return result
}

// OnUpdate subscribes fn to every change set the list applies. fn runs on
// the applying goroutine after the list lock has been released.
func (l *List) OnUpdate(fn func(Update)) func() {
	return l.updates.Subscribe(fn)
}

func updateOf(a *Aircraft, cs *ChangeSet, added bool) Update {
	u := Update{AircraftID: a.ID, Added: added, ChangeSet: cs}
	if a.Icao24.Established() {
		icao := a.Icao24.Value()
		u.Icao24 = &icao
	}
	return u
}

// ApplyLookup routes a lookup outcome to the aircraft with its address. It
// returns false when no aircraft has the address or nothing changed.
func (l *List) ApplyLookup(outcome lookup.Outcome) bool {
	l.mu.Lock()
	update, ok := l.applyLookup(outcome)
	l.mu.Unlock()

	if ok {
		l.updates.Publish(update)
	}
	return ok
}

// ApplyLookupBatch applies every outcome in the batch under one lock and
// returns how many aircraft changed
func (l *List) ApplyLookupBatch(batch *lookup.Batch) int {
	l.mu.Lock()
	var updates []Update
	for _, outcome := range batch.All() {
		if update, ok := l.applyLookup(outcome); ok {
			updates = append(updates, update)
		}
	}
	l.mu.Unlock()

	for _, update := range updates {
		l.updates.Publish(update)
	}
	return len(updates)
}

func (l *List) applyLookup(outcome lookup.Outcome) (Update, bool) {
	a, ok := l.byIcao[outcome.Icao24]
	if !ok {
		return Update{}, false
	}
	cs := a.ApplyLookup(outcome, l.stamps.Next(), l.clock().UTC())
	if cs == nil {
		return Update{}, false
	}
	l.incorporate(cs)
	return updateOf(a, cs, false), true
}

func (l *List) incorporate(cs *ChangeSet) {
	if cs.stamp > l.stamp {
		l.stamp = cs.stamp
	}
	metrics.AircraftChangeSets.Inc()
}

// ToArray returns copies of every aircraft, ordered by id, and the list
// stamp they are consistent with
func (l *List) ToArray() ([]*Aircraft, int64) {
	return l.ChangedSince(-1)
}

// ChangedSince is ToArray limited to aircraft whose stamp is after since
func (l *List) ChangedSince(since int64) ([]*Aircraft, int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]*Aircraft, 0, len(l.byID))
	for _, a := range l.byID {
		if a.Stamp > since {
			out = append(out, a.Copy())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, l.stamp
}

// TryGet returns a copy of the aircraft with the given id
func (l *List) TryGet(id int32) (*Aircraft, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	a, ok := l.byID[id]
	if !ok {
		return nil, false
	}
	return a.Copy(), true
}

// TryGetByIcao returns a copy of the aircraft that currently owns icao
func (l *List) TryGetByIcao(icao transponder.Icao24) (*Aircraft, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	a, ok := l.byIcao[icao]
	if !ok {
		return nil, false
	}
	return a.Copy(), true
}

// Count returns the number of aircraft
func (l *List) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.byID)
}

// Stamp returns the highest stamp of any change in the list
func (l *List) Stamp() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stamp
}
