package lookup

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/yegors/co-track/internal/event"
	"github.com/yegors/co-track/internal/metrics"
	"github.com/yegors/co-track/internal/transponder"
	"github.com/yegors/co-track/pkg/logger"
)

// Options tune the poll loop
type Options struct {
	// CacheMaxAge is how old a cached outcome may be before it is looked up again
	CacheMaxAge time.Duration
	// RequestTimeout bounds one provider call
	RequestTimeout time.Duration
}

// Service looks up aircraft details in the background. Addresses are queued
// with Enqueue and drained by a timer that reschedules itself after every
// tick: immediately-ish after a success, with a growing interval while the
// provider keeps failing.
type Service struct {
	provider Provider
	cache    Cache
	options  Options
	logger   *logger.Logger
	clock    func() time.Time

	mu       sync.Mutex
	pending  []transponder.Icao24
	queued   map[transponder.Icao24]struct{}
	settings Settings
	offline  bool // settings failed on the last tick
	interval time.Duration
	timer    *time.Timer
	running  bool
	ctx      context.Context
	cancel   context.CancelFunc

	completed event.Feed[*Batch]
	wg        sync.WaitGroup
}

// NewService creates a lookup service. cache may be nil.
func NewService(provider Provider, cache Cache, opts Options, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewNop()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	return &Service{
		provider: provider,
		cache:    cache,
		options:  opts,
		logger:   log.Named("lookup"),
		clock:    time.Now,
		queued:   make(map[transponder.Icao24]struct{}),
		settings: DefaultSettings,
		interval: DefaultSettings.MinRetryInterval,
	}
}

// Start schedules the first tick
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("lookup service already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true

	s.logger.Info("Starting lookup service",
		logger.Int("max_batch_size", s.settings.MaxBatchSize),
		logger.Duration("min_retry_interval", s.settings.MinRetryInterval))

	s.scheduleLocked(0)
	return nil
}

// Stop cancels the timer and waits for a running tick to finish
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	if s.timer != nil {
		s.timer.Stop()
	}
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("Lookup service stopped")
}

// Enqueue queues addresses for lookup. Addresses already queued are ignored.
func (s *Service) Enqueue(icaos ...transponder.Icao24) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, icao := range icaos {
		if _, ok := s.queued[icao]; ok {
			continue
		}
		s.queued[icao] = struct{}{}
		s.pending = append(s.pending, icao)
	}
	metrics.LookupPending.Set(float64(len(s.pending)))
}

// Pending returns the number of queued addresses
func (s *Service) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// OnCompleted subscribes to finished batches. A handler that panics is
// logged and does not stop the loop or the other handlers.
func (s *Service) OnCompleted(fn func(*Batch)) func() {
	return s.completed.Subscribe(func(b *Batch) {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("Lookup completion handler panicked", logger.Any("panic", r))
			}
		}()
		fn(b)
	})
}

func (s *Service) scheduleLocked(after time.Duration) {
	if !s.running {
		return
	}
	if s.timer == nil {
		s.timer = time.AfterFunc(after, s.tick)
		return
	}
	s.timer.Reset(after)
}

func (s *Service) tick() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	ctx := s.ctx
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	next := s.safeRun(ctx)

	s.mu.Lock()
	s.scheduleLocked(next)
	s.mu.Unlock()
}

// safeRun keeps a bug in one tick from killing the loop
func (s *Service) safeRun(ctx context.Context) (next time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Lookup tick panicked", logger.Any("panic", r))
			next = s.backoff()
		}
	}()
	return s.run(ctx)
}

// run does one round and returns when the next one is due
func (s *Service) run(ctx context.Context) time.Duration {
	settings, ok := s.refreshSettings(ctx)
	if !ok {
		metrics.LookupRequests.WithLabelValues("error").Inc()
		return s.backoff()
	}

	s.mu.Lock()
	n := len(s.pending)
	if n > settings.MaxBatchSize {
		n = settings.MaxBatchSize
	}
	batch := append([]transponder.Icao24(nil), s.pending[:n]...)
	s.mu.Unlock()

	if len(batch) == 0 {
		return settings.MinRetryInterval
	}

	result := &Batch{}
	remaining := s.fromCache(ctx, batch, result)

	if len(remaining) > 0 {
		reqCtx, cancel := context.WithTimeout(ctx, s.options.RequestTimeout)
		resp, err := s.provider.Lookup(reqCtx, remaining)
		cancel()
		if err != nil {
			// not logged, provider failures only drive the backoff
			metrics.LookupRequests.WithLabelValues("error").Inc()
			if result.Len() > 0 {
				s.complete(result)
			}
			return s.backoff()
		}
		metrics.LookupRequests.WithLabelValues("ok").Inc()

		fetched := normalise(resp, remaining, s.clock().UTC())
		s.toCache(ctx, fetched)
		countOutcomes("provider", fetched)
		result.Found = append(result.Found, fetched.Found...)
		result.Missing = append(result.Missing, fetched.Missing...)
	}

	s.mu.Lock()
	s.interval = settings.MinRetryInterval
	s.mu.Unlock()

	s.complete(result)
	return settings.MinRetryInterval
}

// refreshSettings reports false when the provider could not be reached.
// Only the first failure of an outage is logged.
func (s *Service) refreshSettings(ctx context.Context) (Settings, bool) {
	settings, err := s.provider.Settings(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		if !s.offline {
			s.logger.Warn("Lookup provider unreachable, backing off", logger.Error(err))
		}
		s.offline = true
		return s.settings, false
	}
	if s.offline {
		s.logger.Info("Lookup provider reachable again")
		s.offline = false
	}
	s.settings = sanitise(settings)
	return s.settings, true
}

// backoff doubles the retry interval up to the provider's ceiling
func (s *Service) backoff() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interval = nextInterval(s.interval, s.settings)
	return s.interval
}

func nextInterval(current time.Duration, settings Settings) time.Duration {
	next := current * 2
	if next < settings.MinRetryInterval {
		next = settings.MinRetryInterval
	}
	if next > settings.MaxRetryInterval {
		next = settings.MaxRetryInterval
	}
	return next
}

func sanitise(settings Settings) Settings {
	if settings.MaxBatchSize <= 0 {
		settings.MaxBatchSize = DefaultSettings.MaxBatchSize
	}
	if settings.MinRetryInterval <= 0 {
		settings.MinRetryInterval = DefaultSettings.MinRetryInterval
	}
	if settings.MaxRetryInterval < settings.MinRetryInterval {
		settings.MaxRetryInterval = settings.MinRetryInterval
	}
	return settings
}

func (s *Service) fromCache(ctx context.Context, batch []transponder.Icao24, result *Batch) []transponder.Icao24 {
	if s.cache == nil || s.options.CacheMaxAge <= 0 {
		return batch
	}

	hits, err := s.cache.Get(ctx, batch, s.options.CacheMaxAge)
	if err != nil {
		s.logger.Error("Failed to read lookup cache", logger.Error(err))
		return batch
	}

	var remaining []transponder.Icao24
	cached := &Batch{}
	for _, icao := range batch {
		outcome, ok := hits[icao]
		switch {
		case !ok:
			remaining = append(remaining, icao)
		case outcome.Found:
			cached.Found = append(cached.Found, outcome)
		default:
			cached.Missing = append(cached.Missing, outcome)
		}
	}
	countOutcomes("cache", cached)
	result.Found = append(result.Found, cached.Found...)
	result.Missing = append(result.Missing, cached.Missing...)
	return remaining
}

func (s *Service) toCache(ctx context.Context, batch *Batch) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Put(ctx, batch.All()); err != nil {
		s.logger.Error("Failed to write lookup cache", logger.Error(err))
	}
}

// complete dequeues the batch's addresses and tells the subscribers
func (s *Service) complete(batch *Batch) {
	done := make(map[transponder.Icao24]struct{}, batch.Len())
	for _, o := range batch.All() {
		done[o.Icao24] = struct{}{}
	}

	s.mu.Lock()
	kept := s.pending[:0]
	for _, icao := range s.pending {
		if _, ok := done[icao]; ok {
			delete(s.queued, icao)
			continue
		}
		kept = append(kept, icao)
	}
	s.pending = kept
	metrics.LookupPending.Set(float64(len(s.pending)))
	s.mu.Unlock()

	s.logger.Debug("Lookup batch completed",
		logger.Int("found", len(batch.Found)),
		logger.Int("missing", len(batch.Missing)))
	s.completed.Publish(batch)
}

// normalise makes sure every requested address is answered exactly once.
// Addresses the provider left out count as missing.
func normalise(resp *Batch, requested []transponder.Icao24, now time.Time) *Batch {
	want := make(map[transponder.Icao24]struct{}, len(requested))
	for _, icao := range requested {
		want[icao] = struct{}{}
	}

	out := &Batch{}
	if resp != nil {
		for _, o := range resp.Found {
			if _, ok := want[o.Icao24]; ok {
				o.Found = true
				out.Found = append(out.Found, o)
				delete(want, o.Icao24)
			}
		}
		for _, o := range resp.Missing {
			if _, ok := want[o.Icao24]; ok {
				out.Missing = append(out.Missing, Outcome{Icao24: o.Icao24, SourceAge: o.SourceAge})
				delete(want, o.Icao24)
			}
		}
	}
	for _, icao := range requested {
		if _, ok := want[icao]; ok {
			out.Missing = append(out.Missing, Outcome{Icao24: icao, SourceAge: now})
			delete(want, icao)
		}
	}
	return out
}

func countOutcomes(source string, batch *Batch) {
	if n := len(batch.Found); n > 0 {
		metrics.LookupOutcomes.WithLabelValues(source, strconv.FormatBool(true)).Add(float64(n))
	}
	if n := len(batch.Missing); n > 0 {
		metrics.LookupOutcomes.WithLabelValues(source, strconv.FormatBool(false)).Add(float64(n))
	}
}
