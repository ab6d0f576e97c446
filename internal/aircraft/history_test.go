package aircraft

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildHistory records one change set per entry. Field A is altitude and
// field B is callsign.
func buildHistory(t *testing.T, entries ...historyEntry) (*History, []*ChangeSet) {
	t.Helper()
	h := &History{}
	var alt StampedValue[int32]
	var callsign StampedValue[string]
	var sets []*ChangeSet

	for i, e := range entries {
		cs := NewChangeSet(int64(i+1)*10, e.utc)
		if e.a {
			require.True(t, alt.Set(cs, FieldAltitudeFeet, int32(1000*(i+1))))
		}
		if e.b {
			require.True(t, callsign.Set(cs, FieldCallsign, string(rune('A'+i))))
		}
		cs.Lock()
		h.append(cs)
		sets = append(sets, cs)
	}
	return h, sets
}

type historyEntry struct {
	utc  time.Time
	a, b bool
}

var (
	t1 = t0.Add(1 * time.Minute)
	t2 = t0.Add(2 * time.Minute)
	t3 = t0.Add(3 * time.Minute)
	t4 = t0.Add(4 * time.Minute)
)

func TestHistorySnapshot_FromUTCWithinWindow(t *testing.T) {
	h, sets := buildHistory(t,
		historyEntry{utc: t1, a: true},
		historyEntry{utc: t2, b: true},
		historyEntry{utc: t3, a: true, b: true},
	)

	got := h.Snapshot().ChangeSetsFromUTC(t2, FieldAltitudeFeet, FieldCallsign)
	assert.Equal(t, []*ChangeSet{sets[1], sets[2]}, got)
}

func TestHistorySnapshot_ScansPastBoundForNeededField(t *testing.T) {
	h, sets := buildHistory(t,
		historyEntry{utc: t1, a: true},
		historyEntry{utc: t3, b: true},
	)

	got := h.Snapshot().ChangeSetsFromUTC(t2, FieldAltitudeFeet, FieldCallsign)
	assert.Equal(t, []*ChangeSet{sets[0], sets[1]}, got)
}

func TestHistorySnapshot_StopsOnceSatisfied(t *testing.T) {
	h, sets := buildHistory(t,
		historyEntry{utc: t0, a: true},
		historyEntry{utc: t1, a: true},
		historyEntry{utc: t2, b: true},
		historyEntry{utc: t4, b: true},
	)

	got := h.Snapshot().ChangeSetsFromUTC(t3, FieldAltitudeFeet, FieldCallsign)
	assert.Equal(t, []*ChangeSet{sets[1], sets[3]}, got, "only the latest earlier altitude is needed")
}

func TestHistorySnapshot_NeverEstablishedFieldIsNotSearched(t *testing.T) {
	h, sets := buildHistory(t,
		historyEntry{utc: t0, a: true},
		historyEntry{utc: t1, a: true},
		historyEntry{utc: t3, a: true},
	)

	got := h.Snapshot().ChangeSetsFromUTC(t3, FieldCallsign, FieldAltitudeFeet)
	assert.Equal(t, []*ChangeSet{sets[2]}, got)

	assert.Empty(t, h.Snapshot().ChangeSetsFromUTC(t0, FieldSquawk))
}

func TestHistorySnapshot_UnrequestedFieldsIgnored(t *testing.T) {
	h, sets := buildHistory(t,
		historyEntry{utc: t1, a: true},
		historyEntry{utc: t2, b: true},
		historyEntry{utc: t3, b: true},
	)

	got := h.Snapshot().ChangeSetsFromUTC(t2, FieldAltitudeFeet)
	assert.Equal(t, []*ChangeSet{sets[0]}, got)
}

func TestHistorySnapshot_AfterStamp(t *testing.T) {
	h, sets := buildHistory(t,
		historyEntry{utc: t1, a: true},
		historyEntry{utc: t2, b: true},
		historyEntry{utc: t3, a: true},
		historyEntry{utc: t4, b: true},
	)
	snap := h.Snapshot()

	// stamps are 10, 20, 30, 40 and the bound is exclusive
	assert.Equal(t, []*ChangeSet{sets[2], sets[3]}, snap.ChangeSetsAfterStamp(20, FieldAltitudeFeet, FieldCallsign))
	assert.Equal(t, []*ChangeSet{sets[1], sets[2], sets[3]}, snap.ChangeSetsAfterStamp(19, FieldAltitudeFeet, FieldCallsign))
	assert.Equal(t, []*ChangeSet{sets[2], sets[3]}, snap.ChangeSetsAfterStamp(40, FieldAltitudeFeet, FieldCallsign))
	assert.Equal(t, []*ChangeSet{sets[2], sets[3]}, snap.ChangeSetsAfterStamp(20))
}

func TestHistorySnapshot_IsFrozen(t *testing.T) {
	h, _ := buildHistory(t, historyEntry{utc: t1, a: true})
	snap := h.Snapshot()

	var squawk StampedValue[int16]
	cs := NewChangeSet(99, t2)
	squawk.Set(cs, FieldSquawk, 7000)
	cs.Lock()
	h.append(cs)

	assert.Equal(t, 1, snap.Len())
	assert.False(t, snap.Established().Has(FieldSquawk))
	assert.Equal(t, 2, h.Snapshot().Len())
	assert.Same(t, cs, h.Snapshot().Latest())
}
