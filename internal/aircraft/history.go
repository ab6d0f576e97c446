package aircraft

import "time"

// History is the growing list of locked change sets of one aircraft
type History struct {
	changeSets  []*ChangeSet
	established FieldMask
}

func (h *History) append(cs *ChangeSet) {
	h.changeSets = append(h.changeSets, cs)
	h.established |= cs.fields
}

func (h *History) latest() *ChangeSet {
	if len(h.changeSets) == 0 {
		return nil
	}
	return h.changeSets[len(h.changeSets)-1]
}

// Snapshot returns a read-only view of the history as it is now. Later
// appends do not show up in it.
func (h *History) Snapshot() *HistorySnapshot {
	n := len(h.changeSets)
	return &HistorySnapshot{
		changeSets:  h.changeSets[:n:n],
		established: h.established,
	}
}

// HistorySnapshot is an immutable view over an aircraft's change sets
type HistorySnapshot struct {
	changeSets  []*ChangeSet
	established FieldMask
}

// Len returns the number of change sets
func (s *HistorySnapshot) Len() int {
	return len(s.changeSets)
}

// Established returns every field that has ever been set
func (s *HistorySnapshot) Established() FieldMask {
	return s.established
}

// All returns every change set, oldest first
func (s *HistorySnapshot) All() []*ChangeSet {
	out := make([]*ChangeSet, len(s.changeSets))
	copy(out, s.changeSets)
	return out
}

// Latest returns the newest change set or nil
func (s *HistorySnapshot) Latest() *ChangeSet {
	if len(s.changeSets) == 0 {
		return nil
	}
	return s.changeSets[len(s.changeSets)-1]
}

// ChangeSetsFromUTC returns the change sets at or after from that touch any
// of fields, plus the latest earlier change set for every requested field
// that the window does not cover. No fields means every field. The result
// is oldest first.
func (s *HistorySnapshot) ChangeSetsFromUTC(from time.Time, fields ...HistoryField) []*ChangeSet {
	return s.scan(MaskOf(fields...), func(cs *ChangeSet) bool {
		return !cs.utc.Before(from)
	})
}

// ChangeSetsAfterStamp is ChangeSetsFromUTC with a logical bound: the window
// holds the change sets stamped after stamp.
func (s *HistorySnapshot) ChangeSetsAfterStamp(stamp int64, fields ...HistoryField) []*ChangeSet {
	return s.scan(MaskOf(fields...), func(cs *ChangeSet) bool {
		return cs.stamp > stamp
	})
}

// scan walks backwards from the newest change set. Only fields that were
// ever established can be found, so the rest are never searched for. The
// walk carries on past the bound until every needed field has been seen.
func (s *HistorySnapshot) scan(requested FieldMask, inWindow func(*ChangeSet) bool) []*ChangeSet {
	need := requested & s.established

	var found []*ChangeSet
	for i := len(s.changeSets) - 1; i >= 0; i-- {
		cs := s.changeSets[i]
		within := inWindow(cs)
		if !within && need.Empty() {
			break
		}

		if (within && cs.Touches(requested)) || (!within && cs.Touches(need)) {
			found = append(found, cs)
		}
		need &^= cs.fields
	}

	for i, j := 0, len(found)-1; i < j; i, j = i+1, j-1 {
		found[i], found[j] = found[j], found[i]
	}
	return found
}
