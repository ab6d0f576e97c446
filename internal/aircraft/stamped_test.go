package aircraft

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

func TestStampedValue_Set(t *testing.T) {
	var v StampedValue[int32]
	assert.False(t, v.Established())

	candidates := []int32{100, 100, 200, 200, 200, 150, 100}
	lastStamp := int64(0)
	expected := int32(0)
	for i, candidate := range candidates {
		stamp := int64(i + 1)
		cs := NewChangeSet(stamp, t0)

		changed := v.Set(cs, FieldAltitudeFeet, candidate)

		assert.Equal(t, candidate != expected || i == 0, changed, "candidate %d", i)
		assert.GreaterOrEqual(t, v.Stamp(), lastStamp)
		if changed {
			assert.Equal(t, stamp, v.Stamp())
			require.Equal(t, 1, cs.Len())
			assert.Equal(t, FieldAltitudeFeet, cs.Changes()[0].Key())
			assert.Equal(t, candidate, cs.Changes()[0].Untyped())
		} else {
			assert.Zero(t, cs.Len())
		}
		expected = candidate
		lastStamp = v.Stamp()
	}

	assert.Equal(t, int32(100), v.Value())
	assert.Equal(t, int64(7), v.Stamp())
}

func TestStampedValue_FirstZeroIsRecorded(t *testing.T) {
	var v StampedValue[bool]
	cs := NewChangeSet(1, t0)

	assert.True(t, v.Set(cs, FieldOnGround, false))
	assert.True(t, v.Established())
	assert.False(t, v.Set(NewChangeSet(2, t0), FieldOnGround, false))
	assert.Equal(t, int64(1), v.Stamp())
}

func TestStampedValue_SetIfNotDefault(t *testing.T) {
	var v StampedValue[string]
	require.True(t, v.Set(NewChangeSet(1, t0), FieldRegistration, "EI-DWF"))

	cs := NewChangeSet(2, t0)
	assert.False(t, v.SetIfNotDefault(cs, FieldRegistration, ""))
	assert.Equal(t, "EI-DWF", v.Value())
	assert.Equal(t, int64(1), v.Stamp())
	assert.False(t, cs.HasChanges())

	assert.True(t, v.SetIfNotDefault(cs, FieldRegistration, "EI-DWG"))
	assert.Equal(t, int64(2), v.Stamp())
}

func TestStampedValue_SetIfNotDefaultNeverEstablishesZero(t *testing.T) {
	var v StampedValue[int]
	cs := NewChangeSet(1, t0)
	assert.False(t, v.SetIfNotDefault(cs, FieldYearBuilt, 0))
	assert.False(t, v.Established())
	assert.Zero(t, v.Stamp())
}

func TestStampedValue_ExactFloatEquality(t *testing.T) {
	var v StampedValue[float32]
	require.True(t, v.Set(NewChangeSet(1, t0), FieldGroundSpeedKnots, 450.0))
	assert.True(t, v.Set(NewChangeSet(2, t0), FieldGroundSpeedKnots, 450.01))
}
