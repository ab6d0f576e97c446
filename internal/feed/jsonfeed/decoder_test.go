package jsonfeed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/co-track/internal/feed"
	"github.com/yegors/co-track/internal/lookup"
	"github.com/yegors/co-track/internal/transponder"
)

type captured struct {
	messages []*transponder.Message
	lookups  []lookup.Outcome
}

func newTestDecoder(t *testing.T) (*Decoder, *captured) {
	t.Helper()
	d := NewDecoder(nil)
	d.now = func() time.Time { return time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC) }
	require.NoError(t, d.Configure(feed.Options{}))
	t.Cleanup(func() { _ = d.Close() })

	c := &captured{}
	d.OnMessage(func(m *transponder.Message) { c.messages = append(c.messages, m) })
	d.OnLookup(func(o lookup.Outcome) { c.lookups = append(c.lookups, o) })
	return d, c
}

func TestDecoderSingleObject(t *testing.T) {
	d, c := newTestDecoder(t)

	obj := `{"hex":"4ca1e3","flight":"EIN4TK  ","alt_baro":"36000","gs":451.2,"track":92.5,` +
		`"lat":53.4,"lon":-6.2,"baro_rate":-64,"squawk":"2214","emergency":"none","alert":0,"spi":0}`
	require.NoError(t, d.ParseFeedPacket(context.Background(), []byte(obj)))

	require.Len(t, c.messages, 1)
	msg := c.messages[0]
	assert.EqualValues(t, 0x4CA1E3, msg.AircraftID())
	assert.Equal(t, "EIN4TK", *msg.Callsign)
	assert.EqualValues(t, 36000, *msg.AltitudeFeet)
	assert.Equal(t, transponder.AltitudeBarometric, *msg.AltitudeType)
	assert.InDelta(t, 451.2, *msg.GroundSpeedKnots, 0.001)
	assert.Equal(t, transponder.SpeedGround, *msg.GroundSpeedType)
	assert.InDelta(t, 92.5, *msg.GroundTrackDegrees, 0.001)
	assert.Equal(t, transponder.Location{Lat: 53.4, Lon: -6.2}, *msg.Location)
	assert.EqualValues(t, -64, *msg.VerticalRateFpm)
	assert.EqualValues(t, 2214, *msg.Squawk)
	assert.False(t, *msg.Emergency)
	assert.False(t, *msg.OnGround)
	assert.True(t, msg.MessageTime.IsZero())

	assert.Empty(t, c.lookups)
}

func TestDecoderObjectSplitAcrossPackets(t *testing.T) {
	d, c := newTestDecoder(t)
	ctx := context.Background()

	require.NoError(t, d.ParseFeedPacket(ctx, []byte(`garbage{"hex":"40`)))
	require.NoError(t, d.ParseFeedPacket(ctx, []byte(`0F01","flight":"x}y`)))
	assert.Empty(t, c.messages)
	require.NoError(t, d.ParseFeedPacket(ctx, []byte(`"}{"hex":"406B90"}`)))

	require.Len(t, c.messages, 2)
	assert.EqualValues(t, 0x400F01, c.messages[0].AircraftID())
	assert.Equal(t, "x}y", *c.messages[0].Callsign)
	assert.EqualValues(t, 0x406B90, c.messages[1].AircraftID())
}

func TestDecoderDocument(t *testing.T) {
	d, c := newTestDecoder(t)

	doc := `{"now":1714550400.5,"aircraft":[` +
		`{"hex":"4ca1e3","alt_baro":"ground","r":"EI-DWF","t":"B738","desc":"BOEING 737-800","ownOp":"Ryanair","year":"2008"},` +
		`{"hex":"zzzzzz"},` +
		`{"hex":"~3c6444","alt_geom":1200,"tas":140,"geom_rate":500,"emergency":"general"}]}`
	require.NoError(t, d.ParseFeedPacket(context.Background(), []byte(doc)))

	require.Len(t, c.messages, 2)

	ground := c.messages[0]
	assert.True(t, *ground.OnGround)
	assert.Nil(t, ground.AltitudeFeet)
	assert.Equal(t, time.Date(2024, 5, 1, 8, 0, 0, 500_000_000, time.UTC), ground.MessageTime)

	tisb := c.messages[1]
	assert.EqualValues(t, 0x3C6444, tisb.AircraftID())
	assert.EqualValues(t, 1200, *tisb.AltitudeFeet)
	assert.Equal(t, transponder.AltitudeGeometric, *tisb.AltitudeType)
	assert.Equal(t, transponder.SpeedTrueAir, *tisb.GroundSpeedType)
	assert.EqualValues(t, 500, *tisb.VerticalRateFpm)
	assert.True(t, *tisb.Emergency)
	assert.Nil(t, tisb.OnGround)

	require.Len(t, c.lookups, 1)
	outcome := c.lookups[0]
	assert.Equal(t, transponder.Icao24(0x4CA1E3), outcome.Icao24)
	assert.True(t, outcome.Found)
	assert.Equal(t, "EI-DWF", outcome.Registration)
	assert.Equal(t, "B738", outcome.ModelIcao)
	assert.Equal(t, "BOEING 737-800", outcome.Model)
	assert.Equal(t, "Ryanair", outcome.Operator)
	assert.Equal(t, 2008, outcome.YearBuilt)
	assert.Equal(t, ground.MessageTime, outcome.SourceAge)
}

func TestDecoderLookupUsesClockWithoutTimestamp(t *testing.T) {
	d, c := newTestDecoder(t)

	require.NoError(t, d.ParseFeedPacket(context.Background(), []byte(`{"hex":"4ca1e3","r":"EI-DWF"}`)))

	require.Len(t, c.lookups, 1)
	assert.Equal(t, time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC), c.lookups[0].SourceAge)
}

func TestDecoderMalformedObject(t *testing.T) {
	d, c := newTestDecoder(t)

	err := d.ParseFeedPacket(context.Background(), []byte(`{"hex":}{"hex":"4ca1e3"}`))
	assert.ErrorIs(t, err, ErrMalformedObject)
	assert.Len(t, c.messages, 1)
}

func TestFlexibleField(t *testing.T) {
	tests := []struct {
		name      string
		field     FlexibleField
		wantFloat float64
		wantOK    bool
	}{
		{"number", FlexibleField{value: 12.5, set: true}, 12.5, true},
		{"numeric string", FlexibleField{value: "36000", set: true}, 36000, true},
		{"ground", FlexibleField{value: "ground", set: true}, 0, false},
		{"empty string", FlexibleField{value: "", set: true}, 0, false},
		{"bool", FlexibleField{value: true, set: true}, 0, false},
		{"absent", FlexibleField{}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.field.Float64()
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantFloat, got)
		})
	}
}
