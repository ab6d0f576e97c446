package lookup

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/yegors/co-track/internal/transponder"
	"github.com/yegors/co-track/pkg/logger"
)

var testSettings = Settings{
	MaxBatchSize:     2,
	MinRetryInterval: 5 * time.Millisecond,
	MaxRetryInterval: 40 * time.Millisecond,
}

type fakeProvider struct {
	mu       sync.Mutex
	failures int
	calls    [][]transponder.Icao24
	known    map[transponder.Icao24]string
}

func (p *fakeProvider) Lookup(_ context.Context, icaos []transponder.Icao24) (*Batch, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = append(p.calls, append([]transponder.Icao24(nil), icaos...))
	if p.failures > 0 {
		p.failures--
		return nil, errors.New("connection refused")
	}

	b := &Batch{}
	for _, icao := range icaos {
		if reg, ok := p.known[icao]; ok {
			b.Found = append(b.Found, Outcome{Icao24: icao, Registration: reg})
		}
	}
	return b, nil
}

func (p *fakeProvider) Settings(context.Context) (Settings, error) {
	return testSettings, nil
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[transponder.Icao24]Outcome
	puts    int
}

func (c *memoryCache) Get(_ context.Context, icaos []transponder.Icao24, _ time.Duration) (map[transponder.Icao24]Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[transponder.Icao24]Outcome)
	for _, icao := range icaos {
		if o, ok := c.entries[icao]; ok {
			out[icao] = o
		}
	}
	return out, nil
}

func (c *memoryCache) Put(_ context.Context, outcomes []Outcome) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.puts++
	for _, o := range outcomes {
		c.entries[o.Icao24] = o
	}
	return nil
}

type batchRecorder struct {
	mu      sync.Mutex
	batches []*Batch
}

func (r *batchRecorder) record(b *Batch) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, b)
}

func (r *batchRecorder) outcomes() map[transponder.Icao24]Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[transponder.Icao24]Outcome)
	for _, b := range r.batches {
		for _, o := range b.All() {
			out[o.Icao24] = o
		}
	}
	return out
}

func startService(t *testing.T, provider Provider, cache Cache) (*Service, *batchRecorder) {
	t.Helper()
	svc := NewService(provider, cache, Options{CacheMaxAge: time.Hour}, nil)
	rec := &batchRecorder{}
	svc.OnCompleted(rec.record)
	require.NoError(t, svc.Start(context.Background()))
	t.Cleanup(svc.Stop)
	return svc, rec
}

func TestService_LooksUpInBatches(t *testing.T) {
	provider := &fakeProvider{known: map[transponder.Icao24]string{0x4CA1E3: "EI-DWF", 0x400F01: "G-EUUA"}}
	svc, rec := startService(t, provider, nil)

	svc.Enqueue(0x4CA1E3, 0x400F01, 0x123456, 0x4CA1E3)

	require.Eventually(t, func() bool { return len(rec.outcomes()) == 3 }, time.Second, time.Millisecond)

	got := rec.outcomes()
	assert.True(t, got[0x4CA1E3].Found)
	assert.Equal(t, "EI-DWF", got[0x4CA1E3].Registration)
	assert.True(t, got[0x400F01].Found)
	assert.False(t, got[0x123456].Found)
	assert.False(t, got[0x123456].SourceAge.IsZero())

	provider.mu.Lock()
	defer provider.mu.Unlock()
	require.GreaterOrEqual(t, len(provider.calls), 2)
	assert.Len(t, provider.calls[0], 2, "batch size comes from the provider settings")
	assert.Zero(t, svc.Pending())
}

func TestService_RetriesAfterFailure(t *testing.T) {
	provider := &fakeProvider{failures: 3, known: map[transponder.Icao24]string{0x4CA1E3: "EI-DWF"}}
	svc, rec := startService(t, provider, nil)

	svc.Enqueue(0x4CA1E3)

	require.Eventually(t, func() bool { return len(rec.outcomes()) == 1 }, 2*time.Second, time.Millisecond)
	assert.Equal(t, 4, provider.callCount())
	assert.Zero(t, svc.Pending())
}

func TestService_UsesCache(t *testing.T) {
	provider := &fakeProvider{known: map[transponder.Icao24]string{0x400F01: "G-EUUA"}}
	cache := &memoryCache{entries: map[transponder.Icao24]Outcome{
		0x4CA1E3: {Icao24: 0x4CA1E3, Found: true, Registration: "EI-DWF"},
	}}
	svc, rec := startService(t, provider, cache)

	svc.Enqueue(0x4CA1E3, 0x400F01)

	require.Eventually(t, func() bool { return len(rec.outcomes()) == 2 }, time.Second, time.Millisecond)

	provider.mu.Lock()
	assert.Equal(t, []transponder.Icao24{0x400F01}, provider.calls[0])
	provider.mu.Unlock()

	cache.mu.Lock()
	defer cache.mu.Unlock()
	assert.Equal(t, "G-EUUA", cache.entries[0x400F01].Registration)
	assert.Equal(t, 1, cache.puts)
}

func TestService_PanickingSubscriberDoesNotStopLoop(t *testing.T) {
	provider := &fakeProvider{known: map[transponder.Icao24]string{}}
	svc, rec := startService(t, provider, nil)
	svc.OnCompleted(func(*Batch) { panic("boom") })

	svc.Enqueue(0x000001)
	require.Eventually(t, func() bool { return len(rec.outcomes()) == 1 }, time.Second, time.Millisecond)

	svc.Enqueue(0x000002)
	require.Eventually(t, func() bool { return len(rec.outcomes()) == 2 }, time.Second, time.Millisecond)
}

func TestService_StartTwice(t *testing.T) {
	svc, _ := startService(t, &fakeProvider{}, nil)
	assert.Error(t, svc.Start(context.Background()))
}

// unreachableProvider fails every call until it is brought back
type unreachableProvider struct {
	fakeProvider
	down          bool
	settingsCalls int
}

func (p *unreachableProvider) Settings(context.Context) (Settings, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settingsCalls++
	if p.down {
		return Settings{}, errors.New("dial tcp: connection refused")
	}
	return testSettings, nil
}

func (p *unreachableProvider) setDown(down bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.down = down
}

func (p *unreachableProvider) settingsCallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settingsCalls
}

func TestService_BacksOffQuietlyWhileProviderUnreachable(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	provider := &unreachableProvider{
		fakeProvider: fakeProvider{known: map[transponder.Icao24]string{0x4CA1E3: "EI-DWF"}},
		down:         true,
	}
	svc := NewService(provider, nil, Options{}, logger.FromZap(zap.New(core)))
	svc.settings = testSettings
	svc.interval = testSettings.MinRetryInterval
	rec := &batchRecorder{}
	svc.OnCompleted(rec.record)

	require.NoError(t, svc.Start(context.Background()))
	t.Cleanup(svc.Stop)
	svc.Enqueue(0x4CA1E3)

	time.Sleep(300 * time.Millisecond)

	// 5ms ticks would be about 60 calls, backing off to 40ms keeps it near 9
	calls := provider.settingsCallCount()
	assert.GreaterOrEqual(t, calls, 2)
	assert.LessOrEqual(t, calls, 15)
	assert.Zero(t, provider.callCount(), "no lookups while the provider is unreachable")
	assert.Equal(t, 1, logs.FilterMessage("Lookup provider unreachable, backing off").Len())
	assert.Equal(t, 1, svc.Pending())

	provider.setDown(false)
	require.Eventually(t, func() bool { return len(rec.outcomes()) == 1 }, 2*time.Second, time.Millisecond)
	assert.Equal(t, "EI-DWF", rec.outcomes()[0x4CA1E3].Registration)
	assert.Equal(t, 1, logs.FilterMessage("Lookup provider reachable again").Len())
	assert.Equal(t, 1, logs.FilterMessage("Lookup provider unreachable, backing off").Len())
}

func TestNextInterval(t *testing.T) {
	tests := []struct {
		name    string
		current time.Duration
		want    time.Duration
	}{
		{"doubles", 5 * time.Millisecond, 10 * time.Millisecond},
		{"never below minimum", 0, 5 * time.Millisecond},
		{"capped", 30 * time.Millisecond, 40 * time.Millisecond},
		{"stays at cap", 40 * time.Millisecond, 40 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, nextInterval(tt.current, testSettings))
		})
	}
}

func TestSanitiseSettings(t *testing.T) {
	got := sanitise(Settings{MinRetryInterval: time.Minute, MaxRetryInterval: time.Second})
	assert.Equal(t, DefaultSettings.MaxBatchSize, got.MaxBatchSize)
	assert.Equal(t, time.Minute, got.MaxRetryInterval)
}

func TestNormalise(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	resp := &Batch{
		Found:   []Outcome{{Icao24: 1, Registration: "A"}, {Icao24: 9, Registration: "stray"}},
		Missing: []Outcome{{Icao24: 2, SourceAge: now.Add(-time.Hour), Registration: "ignored"}},
	}

	got := normalise(resp, []transponder.Icao24{1, 2, 3}, now)

	require.Len(t, got.Found, 1)
	assert.True(t, got.Found[0].Found)
	assert.Equal(t, []Outcome{
		{Icao24: 2, SourceAge: now.Add(-time.Hour)},
		{Icao24: 3, SourceAge: now},
	}, got.Missing)
}
