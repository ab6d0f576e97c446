// Package tracker runs the live side of the engine: one goroutine per feed
// connection decoding into the aircraft list, lookups for newly seen
// addresses, and fan-out of every change set to the stream and the archive.
package tracker

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/yegors/co-track/internal/aircraft"
	"github.com/yegors/co-track/internal/config"
	"github.com/yegors/co-track/internal/feed"
	"github.com/yegors/co-track/internal/feed/basestation"
	"github.com/yegors/co-track/internal/feed/jsonfeed"
	"github.com/yegors/co-track/internal/lookup"
	"github.com/yegors/co-track/internal/metrics"
	"github.com/yegors/co-track/internal/storage/sqlite"
	"github.com/yegors/co-track/internal/transponder"
	"github.com/yegors/co-track/pkg/logger"
)

// LookupQueue is the part of the lookup service the tracker drives
type LookupQueue interface {
	Enqueue(icaos ...transponder.Icao24)
	OnCompleted(fn func(*lookup.Batch)) func()
}

// Stream receives every change set as it is applied
type Stream interface {
	BroadcastUpdate(update aircraft.Update) bool
}

// Archive persists change sets
type Archive interface {
	Write(ctx context.Context, entries []sqlite.ArchiveEntry) error
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// Pruner drops stored rows older than a cutoff
type Pruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// Options tune the tracker
type Options struct {
	Feeds                []config.FeedConfig
	Retention            time.Duration // archived changes older than this are pruned
	LookupCacheMaxAge    time.Duration // cached lookups older than this are pruned
	PruneInterval        time.Duration
	ArchiveBatchSize     int
	ArchiveFlushInterval time.Duration
	Dialer               Dialer
}

func (o *Options) setDefaults() {
	if o.ArchiveBatchSize <= 0 {
		o.ArchiveBatchSize = 256
	}
	if o.ArchiveFlushInterval <= 0 {
		o.ArchiveFlushInterval = time.Second
	}
	if o.PruneInterval <= 0 {
		o.PruneInterval = time.Hour
	}
	if o.Dialer == nil {
		var d net.Dialer
		o.Dialer = d.DialContext
	}
}

// NewRegistry returns the registry of every decoder this build ships
func NewRegistry() (*feed.Registry, error) {
	return feed.NewRegistry(basestation.Registration, jsonfeed.Registration)
}

// Service connects feeds to the aircraft list and the list to its consumers
type Service struct {
	options  Options
	list     *aircraft.List
	registry *feed.Registry
	logger   *logger.Logger

	lookups     LookupQueue
	stream      Stream
	archive     Archive
	lookupCache Pruner

	connections []*connection
	archiveCh   chan aircraft.Update
	unsubscribe []func()

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewService creates a tracker for list
func NewService(opts Options, list *aircraft.List, registry *feed.Registry, log *logger.Logger) *Service {
	opts.setDefaults()
	s := &Service{
		options:  opts,
		list:     list,
		registry: registry,
		logger:   log.Named("tracker"),
	}
	for _, fc := range opts.Feeds {
		s.connections = append(s.connections, newConnection(fc, registry, list, opts.Dialer, s.logger))
	}
	return s
}

// SetLookups enables lookups of newly seen addresses
func (s *Service) SetLookups(queue LookupQueue) {
	s.lookups = queue
}

// SetStream sets where change sets are broadcast
func (s *Service) SetStream(stream Stream) {
	s.stream = stream
}

// SetArchive enables persisting change sets
func (s *Service) SetArchive(archive Archive) {
	s.archive = archive
}

// SetLookupCache enables pruning of the lookup cache
func (s *Service) SetLookupCache(cache Pruner) {
	s.lookupCache = cache
}

// Start checks every feed format and starts the connections and workers
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("tracker already started")
	}
	for _, c := range s.connections {
		decoder, err := s.registry.New(c.cfg.Format, s.logger)
		if err != nil {
			return fmt.Errorf("feed %s: %w", c.cfg.Name, err)
		}
		decoder.Close()
	}

	s.logger.Info("Starting tracker",
		logger.Int("feeds", len(s.connections)),
		logger.Bool("lookups", s.lookups != nil),
		logger.Bool("stream", s.stream != nil),
		logger.Bool("archive", s.archive != nil))

	ctx, s.cancel = context.WithCancel(ctx)
	s.stopCh = make(chan struct{})
	s.running = true

	if s.archive != nil {
		s.archiveCh = make(chan aircraft.Update, s.options.ArchiveBatchSize*4)
		s.wg.Add(1)
		go s.archiveLoop(s.archiveCh, s.stopCh)
	}
	if s.lookups != nil {
		s.unsubscribe = append(s.unsubscribe, s.lookups.OnCompleted(s.onLookupCompleted))
	}
	s.unsubscribe = append(s.unsubscribe, s.list.OnUpdate(s.onUpdate))

	if s.archive != nil || s.lookupCache != nil {
		s.wg.Add(1)
		go s.pruneLoop(ctx, s.stopCh)
	}

	for _, c := range s.connections {
		s.wg.Add(1)
		go func(c *connection) {
			defer s.wg.Done()
			c.run(ctx)
		}(c)
	}
	return nil
}

// Stop disconnects every feed, flushes the archive and waits for the workers
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	stopCh, unsubscribes := s.stopCh, s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	s.logger.Info("Stopping tracker")
	s.cancel()
	for _, unsubscribe := range unsubscribes {
		unsubscribe()
	}
	close(stopCh)
	s.wg.Wait()
	s.logger.Info("Tracker stopped")
}

// Status returns the state of every feed connection
func (s *Service) Status() []ConnectionStatus {
	out := make([]ConnectionStatus, 0, len(s.connections))
	for _, c := range s.connections {
		out = append(out, c.snapshot())
	}
	return out
}

// onUpdate runs on the feed goroutine that applied the change
func (s *Service) onUpdate(update aircraft.Update) {
	if s.lookups != nil && update.Icao24 != nil && update.ChangeSet.Fields().Has(aircraft.FieldIcao24) {
		s.lookups.Enqueue(*update.Icao24)
	}

	if s.stream != nil {
		s.stream.BroadcastUpdate(update)
	}

	if s.archiveCh != nil {
		select {
		case s.archiveCh <- update:
		default:
			metrics.ArchivedChangeSets.WithLabelValues("dropped").Inc()
		}
	}
}

func (s *Service) onLookupCompleted(batch *lookup.Batch) {
	changed := s.list.ApplyLookupBatch(batch)
	s.logger.Debug("Applied lookup batch",
		logger.Int("outcomes", batch.Len()),
		logger.Int("changed", changed))
}

// archiveLoop batches change sets into archive writes
func (s *Service) archiveLoop(updates <-chan aircraft.Update, stop <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.options.ArchiveFlushInterval)
	defer ticker.Stop()

	pending := make([]sqlite.ArchiveEntry, 0, s.options.ArchiveBatchSize)
	flush := func() {
		if len(pending) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.archive.Write(ctx, pending); err != nil {
			s.logger.Error("Failed to archive change sets",
				logger.Error(err),
				logger.Int("count", len(pending)))
			metrics.ArchivedChangeSets.WithLabelValues("failed").Add(float64(len(pending)))
		} else {
			metrics.ArchivedChangeSets.WithLabelValues("written").Add(float64(len(pending)))
		}
		pending = pending[:0]
	}

	for {
		select {
		case update := <-updates:
			pending = append(pending, archiveEntry(update))
			if len(pending) >= s.options.ArchiveBatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-stop:
			for {
				select {
				case update := <-updates:
					pending = append(pending, archiveEntry(update))
				default:
					flush()
					return
				}
			}
		}
	}
}

func archiveEntry(update aircraft.Update) sqlite.ArchiveEntry {
	return sqlite.ArchiveEntry{
		AircraftID: update.AircraftID,
		Icao24:     update.Icao24,
		ChangeSet:  update.ChangeSet,
	}
}

// pruneLoop applies the retention limits
func (s *Service) pruneLoop(ctx context.Context, stop <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.options.PruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.prune(ctx)
		case <-stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Service) prune(ctx context.Context) {
	now := time.Now()
	if s.archive != nil && s.options.Retention > 0 {
		n, err := s.archive.Prune(ctx, now.Add(-s.options.Retention))
		if err != nil {
			s.logger.Error("Failed to prune change archive", logger.Error(err))
		} else if n > 0 {
			metrics.PrunedRows.WithLabelValues("change_sets").Add(float64(n))
			s.logger.Info("Pruned change archive", logger.Int64("rows", n))
		}
	}
	if s.lookupCache != nil && s.options.LookupCacheMaxAge > 0 {
		n, err := s.lookupCache.Prune(ctx, now.Add(-s.options.LookupCacheMaxAge))
		if err != nil {
			s.logger.Error("Failed to prune lookup cache", logger.Error(err))
		} else if n > 0 {
			metrics.PrunedRows.WithLabelValues("lookup_outcomes").Add(float64(n))
			s.logger.Info("Pruned lookup cache", logger.Int64("rows", n))
		}
	}
}
