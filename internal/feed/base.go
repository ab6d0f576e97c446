package feed

import (
	"context"
	"errors"
	"sync"

	"github.com/yegors/co-track/internal/event"
	"github.com/yegors/co-track/internal/feed/chunker"
	"github.com/yegors/co-track/internal/lookup"
	"github.com/yegors/co-track/internal/metrics"
	"github.com/yegors/co-track/internal/transponder"
	"github.com/yegors/co-track/pkg/logger"
)

// Base holds what every chunk-oriented decoder shares: configure-once
// options, the chunker state for the connection and the two event feeds.
// Decoders embed it and supply a chunk handler.
type Base struct {
	format string
	logger *logger.Logger

	mu         sync.Mutex
	configured bool
	closed     bool
	options    Options
	chunker    *chunker.Chunker
	state      *chunker.State

	messages event.Feed[*transponder.Message]
	lookups  event.Feed[lookup.Outcome]
}

// NewBase creates the shared decoder state for a format
func NewBase(format string, log *logger.Logger) *Base {
	if log == nil {
		log = logger.NewNop()
	}
	return &Base{format: format, logger: log}
}

// Format returns the format name
func (b *Base) Format() string {
	return b.format
}

// Logger returns the decoder's logger
func (b *Base) Logger() *logger.Logger {
	return b.logger
}

// Options returns the options given to Configure
func (b *Base) Options() Options {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.options
}

// ConfigureWith stores the options and creates the chunker for splitter.
// setup, when not nil, runs under the decoder lock once the options are known
// so the embedding decoder can build its own state.
func (b *Base) ConfigureWith(opts Options, splitter chunker.Splitter, setup func(Options)) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	if b.configured {
		return ErrAlreadyConfigured
	}
	if opts.MaxChunkSize <= 0 {
		opts.MaxChunkSize = DefaultMaxChunkSize
	}

	c := chunker.New(splitter, opts.MaxChunkSize)
	c.OnDiscard = func(n int) {
		metrics.FeedBytesDiscarded.WithLabelValues(b.format).Add(float64(n))
		b.logger.Debug("Discarded unterminated feed data", logger.Int("bytes", n))
	}

	if setup != nil {
		setup(opts)
	}
	b.options = opts
	b.chunker = c
	b.configured = true
	return nil
}

// Feed runs data through the chunker and calls handle for every complete
// chunk. Errors from handle do not stop extraction, they are joined and
// returned once the block is consumed. Cancelling ctx stops handling the
// remaining chunks of this block.
func (b *Base) Feed(ctx context.Context, data []byte, handle func(chunk []byte) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	if !b.configured {
		return ErrNotConfigured
	}

	metrics.FeedBytesReceived.WithLabelValues(b.format).Add(float64(len(data)))

	var errs []error
	b.state = b.chunker.ParseBlock(data, b.state, func(chunk []byte) {
		if ctx.Err() != nil {
			return
		}
		metrics.FeedChunks.WithLabelValues(b.format).Inc()
		if err := handle(chunk); err != nil {
			metrics.FeedErrors.WithLabelValues(b.format).Inc()
			errs = append(errs, err)
		}
	})

	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// OnMessage subscribes to decoded messages
func (b *Base) OnMessage(fn func(*transponder.Message)) func() {
	return b.messages.Subscribe(fn)
}

// OnLookup subscribes to aircraft details found in the feed itself
func (b *Base) OnLookup(fn func(lookup.Outcome)) func() {
	return b.lookups.Subscribe(fn)
}

// PublishMessage hands a message to every subscriber
func (b *Base) PublishMessage(msg *transponder.Message) {
	metrics.FeedMessages.WithLabelValues(b.format).Inc()
	b.messages.Publish(msg)
}

// PublishLookup hands an in-band lookup outcome to every subscriber
func (b *Base) PublishLookup(outcome lookup.Outcome) {
	b.lookups.Publish(outcome)
}

// Close releases the chunker buffer and drops all subscribers
func (b *Base) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	b.state.Release()
	b.state = nil
	b.messages.Clear()
	b.lookups.Clear()
	return nil
}
