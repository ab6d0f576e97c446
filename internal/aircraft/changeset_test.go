package aircraft

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChangeSet_LockRejectsWrites(t *testing.T) {
	var alt StampedValue[int32]
	var reg StampedValue[string]

	cs := NewChangeSet(1, t0)
	require.True(t, alt.Set(cs, FieldAltitudeFeet, 1000))
	cs.Lock()
	assert.True(t, cs.Locked())

	assert.PanicsWithValue(t, ErrChangeSetLocked, func() { alt.Set(cs, FieldAltitudeFeet, 2000) })
	assert.PanicsWithValue(t, ErrChangeSetLocked, func() { alt.Set(cs, FieldAltitudeFeet, 1000) })
	assert.PanicsWithValue(t, ErrChangeSetLocked, func() { reg.SetIfNotDefault(cs, FieldRegistration, "") })
	assert.PanicsWithValue(t, ErrChangeSetLocked, func() { cs.EnsureLaterThan(t0) })

	assert.Equal(t, int32(1000), alt.Value())
	assert.Equal(t, 1, cs.Len())
}

func TestChangeSet_EnsureLaterThan(t *testing.T) {
	cs := NewChangeSet(1, t0)
	cs.EnsureLaterThan(t0.Add(-time.Second))
	assert.Equal(t, t0, cs.UTC())

	cs.EnsureLaterThan(t0)
	assert.Equal(t, t0.Add(time.Nanosecond), cs.UTC())

	cs.EnsureLaterThan(t0.Add(time.Minute))
	assert.Equal(t, t0.Add(time.Minute+time.Nanosecond), cs.UTC())
}

func TestChangeSet_FieldsAndValues(t *testing.T) {
	var alt StampedValue[int32]
	var callsign StampedValue[string]

	cs := NewChangeSet(7, t0)
	alt.Set(cs, FieldAltitudeFeet, 3500)
	callsign.Set(cs, FieldCallsign, "RYR1")

	assert.Equal(t, int64(7), cs.Stamp())
	assert.Equal(t, MaskOf(FieldAltitudeFeet, FieldCallsign), cs.Fields())
	assert.True(t, cs.Touches(MaskOf(FieldCallsign)))
	assert.False(t, cs.Touches(MaskOf(FieldSquawk)))

	v, ok := cs.Value(FieldCallsign)
	require.True(t, ok)
	assert.Equal(t, "RYR1", v)
	_, ok = cs.Value(FieldSquawk)
	assert.False(t, ok)
}

func TestHistoryFieldNames(t *testing.T) {
	for _, f := range AllHistoryFields() {
		parsed, err := ParseHistoryField(f.String())
		require.NoError(t, err)
		assert.Equal(t, f, parsed)
	}

	_, err := ParseHistoryField("wingspan")
	assert.Error(t, err)
	assert.Equal(t, AllFields, MaskOf())
	assert.Equal(t, len(AllHistoryFields()), AllFields.Len())
	assert.Equal(t, []HistoryField{FieldCallsign, FieldLocation}, MaskOf(FieldLocation, FieldCallsign).Fields())
}
