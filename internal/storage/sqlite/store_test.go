package sqlite

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/co-track/internal/aircraft"
	"github.com/yegors/co-track/internal/lookup"
	"github.com/yegors/co-track/internal/transponder"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "co-track.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestLookupCache_PutGet(t *testing.T) {
	s := openTestStore(t)
	cache := s.Lookups()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	cache.clock = func() time.Time { return now }
	ctx := context.Background()

	age := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, cache.Put(ctx, []lookup.Outcome{
		{Icao24: 0x4CA1E3, Found: true, SourceAge: age, Registration: "EI-DWF", ModelIcao: "B738", YearBuilt: 2008},
		{Icao24: 0x00ABCD, SourceAge: age},
	}))

	got, err := cache.Get(ctx, []transponder.Icao24{0x4CA1E3, 0x00ABCD, 0x123456}, time.Hour)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, lookup.Outcome{
		Icao24: 0x4CA1E3, Found: true, SourceAge: age, Registration: "EI-DWF", ModelIcao: "B738", YearBuilt: 2008,
	}, got[0x4CA1E3])
	assert.False(t, got[0x00ABCD].Found)

	// overwrite
	require.NoError(t, cache.Put(ctx, []lookup.Outcome{{Icao24: 0x00ABCD, Found: true, SourceAge: age, Registration: "N1"}}))
	got, err = cache.Get(ctx, []transponder.Icao24{0x00ABCD}, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "N1", got[0x00ABCD].Registration)
}

func TestLookupCache_MaxAgeAndPrune(t *testing.T) {
	s := openTestStore(t)
	cache := s.Lookups()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	cache.clock = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, []lookup.Outcome{{Icao24: 1, Found: true, Registration: "A"}}))

	now = now.Add(2 * time.Hour)
	got, err := cache.Get(ctx, []transponder.Icao24{1}, time.Hour)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = cache.Get(ctx, []transponder.Icao24{1}, 3*time.Hour)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	n, err := cache.Prune(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestLookupCache_EmptyRequest(t *testing.T) {
	s := openTestStore(t)
	got, err := s.Lookups().Get(context.Background(), nil, time.Hour)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, s.Lookups().Put(context.Background(), nil))
}

func TestArchive_WriteAndRead(t *testing.T) {
	s := openTestStore(t)
	archive := s.Archive()
	ctx := context.Background()
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	a := aircraft.New(0x4CA1E3)
	first := transponder.NewMessage(0x4CA1E3)
	first.Icao24 = transponder.Ptr(transponder.Icao24(0x4CA1E3))
	first.AltitudeFeet = transponder.Ptr(int32(35000))
	first.Location = &transponder.Location{Lat: 53.4, Lon: -6.2}
	cs1 := a.ApplyMessage(first, 100, t0)

	second := transponder.NewMessage(0x4CA1E3)
	second.AltitudeFeet = transponder.Ptr(int32(34000))
	cs2 := a.ApplyMessage(second, 200, t0.Add(time.Second))

	icao := transponder.Icao24(0x4CA1E3)
	require.NoError(t, archive.Write(ctx, []ArchiveEntry{
		{AircraftID: a.ID, Icao24: &icao, ChangeSet: cs1},
		{AircraftID: a.ID, Icao24: &icao, ChangeSet: cs2},
	}))

	all, err := archive.Changes(ctx, a.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, aircraft.FieldIcao24, all[0].Field)
	assert.JSONEq(t, `"4CA1E3"`, string(all[0].Value))
	assert.Equal(t, "location", all[2].FieldName)
	assert.JSONEq(t, `{"lat":53.4,"lon":-6.2}`, string(all[2].Value))
	assert.Equal(t, t0, all[0].UTC)

	later, err := archive.Changes(ctx, a.ID, 100, 10)
	require.NoError(t, err)
	require.Len(t, later, 1)
	var alt int32
	require.NoError(t, json.Unmarshal(later[0].Value, &alt))
	assert.EqualValues(t, 34000, alt)

	n, err := archive.Prune(ctx, t0.Add(500*time.Millisecond))
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func TestArchive_RefusesOpenChangeSet(t *testing.T) {
	s := openTestStore(t)
	open := aircraft.NewChangeSet(1, time.Now())
	err := s.Archive().Write(context.Background(), []ArchiveEntry{{AircraftID: 1, ChangeSet: open}})
	assert.ErrorContains(t, err, "open change set")
}

func TestLookupCache_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "co-track.db")
	ctx := context.Background()
	age := time.Date(2024, 2, 1, 8, 30, 0, 123456789, time.UTC)

	s, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Lookups().Put(ctx, []lookup.Outcome{{Icao24: 0x4CA1E3, Found: true, SourceAge: age, Registration: "EI-DWF"}}))
	require.NoError(t, s.Close())

	s, err = Open(path, nil)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Lookups().Get(ctx, []transponder.Icao24{0x4CA1E3}, time.Hour)
	require.NoError(t, err)
	require.Contains(t, got, transponder.Icao24(0x4CA1E3))
	assert.Equal(t, "EI-DWF", got[0x4CA1E3].Registration)
	assert.True(t, age.Equal(got[0x4CA1E3].SourceAge))
}

func TestParseTime(t *testing.T) {
	want := time.Date(2024, 2, 1, 8, 30, 0, 84282325, time.UTC)

	tests := []struct {
		name string
		text string
	}{
		{"stored layout", formatTime(want)},
		{"rfc3339", want.Format(time.RFC3339Nano)},
		{"rfc3339 offset", want.In(time.FixedZone("CET", 3600)).Format(time.RFC3339Nano)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseTime(tt.text)
			require.NoError(t, err)
			assert.True(t, want.Equal(got), "got %s", got)
		})
	}

	_, err := parseTime("yesterday")
	assert.Error(t, err)
}
