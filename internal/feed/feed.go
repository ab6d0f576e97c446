// Package feed defines the contract every feed decoder implements and the
// registry that creates decoders by format name.
package feed

import (
	"context"
	"errors"
	"time"

	"github.com/yegors/co-track/internal/lookup"
	"github.com/yegors/co-track/internal/transponder"
)

var (
	// ErrAlreadyConfigured is returned when Configure is called twice
	ErrAlreadyConfigured = errors.New("feed decoder already configured")
	// ErrNotConfigured is returned when data arrives before Configure
	ErrNotConfigured = errors.New("feed decoder not configured")
	// ErrClosed is returned once the decoder has been closed
	ErrClosed = errors.New("feed decoder closed")
)

// DefaultMaxChunkSize bounds a single protocol message
const DefaultMaxChunkSize = 4096

// Options configure a decoder for one connection
type Options struct {
	// StrictIcao rejects addresses containing anything but hex digits
	StrictIcao bool
	// TimeZoneOffset is the feed clock's offset east of UTC. It is subtracted
	// from the wall-clock times the feed carries.
	TimeZoneOffset time.Duration
	// MaxChunkSize is the per-connection buffer size, DefaultMaxChunkSize when zero
	MaxChunkSize int
}

// Decoder turns the raw bytes of one connection into transponder messages.
//
// A decoder is configured exactly once and then fed every block read from
// the connection, in order. Decoded messages and any aircraft details carried
// in-band are published synchronously to subscribers.
type Decoder interface {
	Format() string
	Configure(opts Options) error
	ParseFeedPacket(ctx context.Context, data []byte) error
	OnMessage(fn func(*transponder.Message)) func()
	OnLookup(fn func(lookup.Outcome)) func()
	Close() error
}
