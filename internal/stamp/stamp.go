// Package stamp issues the process-wide logical clock that orders every
// change to aircraft state.
package stamp

import (
	"sync"
	"time"
)

// Source hands out stamps. Every call returns a value strictly greater than
// the previous one, regardless of which goroutine asks.
type Source interface {
	Next() int64
}

// Sequencer is the default Source. Stamps follow the wall clock in
// nanoseconds where possible so they stay comparable across restarts, but
// never repeat or go backwards when the clock does.
type Sequencer struct {
	mu    sync.Mutex
	last  int64
	clock func() time.Time
}

// NewSequencer creates a sequencer driven by time.Now
func NewSequencer() *Sequencer {
	return NewSequencerWithClock(time.Now)
}

// NewSequencerWithClock creates a sequencer driven by the supplied clock
func NewSequencerWithClock(clock func() time.Time) *Sequencer {
	return &Sequencer{clock: clock}
}

// Next returns the next stamp
func (s *Sequencer) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.clock().UnixNano()
	if next <= s.last {
		next = s.last + 1
	}
	s.last = next
	return next
}

// Last returns the most recently issued stamp, or zero
func (s *Sequencer) Last() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
